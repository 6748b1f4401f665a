package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"facegate/internal/api/handlers"
	"facegate/internal/api/middleware"
)

// RouteRegistrar ist ein Handler, der seine Routen selbst registriert
type RouteRegistrar interface {
	RegisterRoutes(router gin.IRoutes)
}

// Options steuern die globale Middleware des Routers
type Options struct {
	CORSOrigins   []string
	SessionSecret string // signiert das Session-Cookie (Sprachwahl); leer deaktiviert Sessions
}

// NewRouter baut die gin-Engine mit Middleware und allen Handlern
func NewRouter(translator *middleware.Translator, opts Options, registrars ...RouteRegistrar) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(cors.New(corsConfig(opts.CORSOrigins)))
	if opts.SessionSecret != "" {
		store := cookie.NewStore([]byte(opts.SessionSecret))
		store.Options(sessions.Options{Path: "/", MaxAge: 30 * 24 * 3600, HttpOnly: true})
		router.Use(sessions.Sessions("facegate", store))
	}
	if translator != nil {
		router.Use(middleware.I18n(translator))
	}

	for _, r := range registrars {
		r.RegisterRoutes(router)
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept-Language"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

var (
	_ RouteRegistrar = (*handlers.CaptureHandler)(nil)
	_ RouteRegistrar = (*handlers.IdentityHandler)(nil)
	_ RouteRegistrar = (*handlers.PreviewHandler)(nil)
	_ RouteRegistrar = (*handlers.SystemHandler)(nil)
)
