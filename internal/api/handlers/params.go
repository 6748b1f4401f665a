package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// requestValues sammelt Parameter aus Query, Formular oder JSON-Body.
// Body-Werte überschreiben Query-Werte.
type requestValues map[string]string

func collectValues(c *gin.Context) (requestValues, error) {
	values := requestValues{}
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			values[k] = v[0]
		}
	}

	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return values, nil
	}

	if strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
		var body map[string]interface{}
		if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil && err != io.EOF {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		for k, v := range body {
			if v == nil {
				continue
			}
			values[k] = fmt.Sprint(v)
		}
		return values, nil
	}

	if err := c.Request.ParseMultipartForm(1 << 20); err != nil {
		// Kein Multipart-Formular: reguläres URL-kodiertes Formular versuchen
		if err := c.Request.ParseForm(); err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
	}
	for k, v := range c.Request.PostForm {
		if len(v) > 0 {
			values[k] = v[0]
		}
	}
	return values, nil
}

func (v requestValues) intValue(key string, def int) (int, error) {
	raw, ok := v[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		// JSON-Zahlen kommen als float64 an, z.B. "2" oder "2.0"
		f, ferr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
		n = int(f)
	}
	return n, nil
}

func (v requestValues) floatValue(key string, def float64) (float64, error) {
	raw, ok := v[key]
	if !ok || strings.TrimSpace(raw) == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return f, nil
}

// optionalFloat returns nil when key is absent, so the caller's default applies.
func (v requestValues) optionalFloat(key string) (*float64, error) {
	if raw, ok := v[key]; !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	f, err := v.floatValue(key, 0)
	if err != nil {
		return nil, err
	}
	if f < 0 {
		return nil, fmt.Errorf("%s must not be negative", key)
	}
	return &f, nil
}

func (v requestValues) seconds(key string, def time.Duration) (time.Duration, error) {
	f, err := v.floatValue(key, def.Seconds())
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return time.Duration(f * float64(time.Second)), nil
}

// truthy akzeptiert nur "1", "true" und "True"
func (v requestValues) truthy(key string) bool {
	switch v[key] {
	case "1", "true", "True":
		return true
	}
	return false
}
