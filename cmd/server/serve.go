package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"facegate/internal/api"
	"facegate/internal/api/handlers"
	"facegate/internal/api/middleware"
	"facegate/internal/cleanup"
)

func registerHomeAssistant(ctx context.Context, app *serverApp) {
	if err := app.discovery.RegisterBaseSensors(); err != nil {
		log.Warnf("Home Assistant discovery failed: %v", err)
		return
	}
	identities, err := app.repo.ListIdentities(ctx)
	if err != nil {
		log.Warnf("Failed to list identities for Home Assistant discovery: %v", err)
		return
	}
	labels := make([]string, 0, len(identities))
	for _, id := range identities {
		labels = append(labels, id.Label)
	}
	app.discovery.RegisterIdentities(labels)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP capture service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	app, err := buildServer(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	go app.hub.Run(ctx)

	if err := app.mqtt.Start(); err != nil {
		log.Warnf("MQTT unavailable, continuing without it: %v", err)
	} else if app.discovery != nil {
		registerHomeAssistant(ctx, app)
	}
	if app.haPub != nil {
		go app.haPub.Run(ctx.Done())
	}

	var cleaner *cleanup.Service
	if cfg.Cleanup.Enabled {
		cleaner = cleanup.NewService(app.repo, app.store,
			time.Duration(cfg.Cleanup.OrphanGraceMinutes)*time.Minute,
			time.Duration(cfg.Cleanup.IntervalMinutes)*time.Minute)
		cleaner.StartBackgroundCleanup(ctx)
		defer cleaner.StopBackgroundCleanup()
	}

	translator, err := middleware.NewTranslator(cfg.I18n.DefaultLanguage)
	if err != nil {
		return fmt.Errorf("failed to load translations: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	secret := cfg.Server.SessionSecret
	if secret == "" {
		secret = uuid.NewString()
	}
	router := api.NewRouter(translator, api.Options{CORSOrigins: cfg.Server.CORSOrigins, SessionSecret: secret},
		handlers.NewCaptureHandler(app.service),
		handlers.NewIdentityHandler(app.repo, app.service),
		handlers.NewPreviewHandler(app.registry),
		handlers.NewSystemHandler(handlers.SystemDeps{
			Provider:     app.provider,
			ProviderName: string(app.provider.GetProviderName()),
			Stats:        app.repo,
			MQTT:         app.mqtt,
			Hub:          app.hub,
			Summary:      configSummary(cfg),
		}),
	)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	log.Infof("Server listening on %s", addr)
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warnf("sd_notify failed: %v", err)
	} else if ok {
		log.Debug("Notified systemd of readiness")
	}

	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	daemon.SdNotify(false, daemon.SdNotifyStopping)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Server shutdown incomplete: %v", err)
	}
	log.Info("Server stopped.")
	return nil
}
