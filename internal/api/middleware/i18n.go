package middleware

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

const (
	localizerKey = "localizer"
	languageKey  = "language"
)

// Translator hält das Übersetzungs-Bundle und die unterstützten Sprachen
type Translator struct {
	bundle   *i18n.Bundle
	matcher  language.Matcher
	fallback language.Tag
}

// NewTranslator lädt alle eingebetteten Übersetzungsdateien
func NewTranslator(defaultLanguage string) (*Translator, error) {
	fallback, err := language.Parse(defaultLanguage)
	if err != nil {
		fallback = language.English
	}

	bundle := i18n.NewBundle(fallback)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	files, err := fs.Glob(localeFS, "locales/*.json")
	if err != nil {
		return nil, err
	}

	// Die Standardsprache muss zuerst im Matcher stehen
	tags := []language.Tag{fallback}
	for _, file := range files {
		mf, err := bundle.LoadMessageFileFS(localeFS, file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
		if mf.Tag != fallback {
			tags = append(tags, mf.Tag)
		}
		log.Debugf("Loaded locale %s", strings.TrimSuffix(path.Base(file), ".json"))
	}

	return &Translator{
		bundle:   bundle,
		matcher:  language.NewMatcher(tags),
		fallback: fallback,
	}, nil
}

// Localizer liefert einen Localizer für lang (Query-Parameter) und Accept-Language
func (t *Translator) Localizer(lang, acceptLanguage string) *i18n.Localizer {
	tag, _ := language.MatchStrings(t.matcher, lang, acceptLanguage)
	base, _ := tag.Base()
	return i18n.NewLocalizer(t.bundle, base.String(), t.fallback.String())
}

// I18n erstellt eine Middleware, die pro Anfrage einen Localizer im Kontext ablegt.
// Ist die Session-Middleware aktiv, wird ein per ?lang gewählte Sprache in der
// Session gespeichert und bei späteren Anfragen ohne ?lang verwendet.
func I18n(t *Translator) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := c.Query("lang")

		if _, ok := c.Get(sessions.DefaultKey); ok {
			session := sessions.Default(c)
			if lang != "" {
				session.Set(languageKey, lang)
				if err := session.Save(); err != nil {
					log.Debugf("Failed to save language in session: %v", err)
				}
			} else if stored, ok := session.Get(languageKey).(string); ok {
				lang = stored
			}
		}

		c.Set(localizerKey, t.Localizer(lang, c.GetHeader("Accept-Language")))
		c.Next()
	}
}

// T übersetzt messageID für die aktuelle Anfrage. Ohne Localizer oder bei
// unbekannter ID wird die ID selbst zurückgegeben.
func T(c *gin.Context, messageID string, data map[string]interface{}) string {
	v, ok := c.Get(localizerKey)
	if !ok {
		return messageID
	}
	localizer, ok := v.(*i18n.Localizer)
	if !ok {
		return messageID
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID, TemplateData: data})
	if err != nil {
		return messageID
	}
	return msg
}
