package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func TestI18nSelectsLanguage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	translator, err := NewTranslator("en")
	if err != nil {
		t.Fatalf("NewTranslator failed: %v", err)
	}

	router := gin.New()
	router.Use(I18n(translator))
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, T(c, "error.no_face", nil))
	})

	tests := []struct {
		name   string
		query  string
		accept string
		want   string
	}{
		{"default", "", "", "No face was detected."},
		{"accept-language", "", "de-DE,de;q=0.9,en;q=0.5", "Es wurde kein Gesicht erkannt."},
		{"query wins", "?lang=ko", "de", "얼굴이 감지되지 않았습니다."},
		{"unsupported falls back", "", "fr-FR", "No face was detected."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if got := w.Body.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTTemplateDataAndUnknownID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	translator, err := NewTranslator("en")
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set(localizerKey, translator.Localizer("", ""))

	if got := T(c, "error.search_timeout", map[string]interface{}{"Seconds": 8}); got != "No face was detected within 8 seconds." {
		t.Errorf("unexpected translation %q", got)
	}
	if got := T(c, "does.not.exist", nil); got != "does.not.exist" {
		t.Errorf("expected id fallback, got %q", got)
	}
}

func TestI18nRemembersLanguageInSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	translator, err := NewTranslator("en")
	if err != nil {
		t.Fatal(err)
	}

	router := gin.New()
	router.Use(sessions.Sessions("facegate", cookie.NewStore([]byte("test-secret"))))
	router.Use(I18n(translator))
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, T(c, "error.no_face", nil))
	})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/?lang=de", nil))
	if got := first.Body.String(); got != "Es wurde kein Gesicht erkannt." {
		t.Fatalf("unexpected first response %q", got)
	}
	cookies := first.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	second := httptest.NewRecorder()
	router.ServeHTTP(second, req)
	if got := second.Body.String(); got != "Es wurde kein Gesicht erkannt." {
		t.Errorf("language was not remembered, got %q", got)
	}
}
