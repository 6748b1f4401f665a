package insightface

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"facegate/config"
	"facegate/internal/capture"
)

func testFrame() capture.Frame {
	return capture.Frame{Image: image.NewRGBA(image.Rect(0, 0, 16, 16))}
}

func TestEvaluate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/detect" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("expected multipart form: %v", err)
		}
		if r.FormValue("extract_embedding") != "true" {
			t.Errorf("expected extract_embedding=true, got %q", r.FormValue("extract_embedding"))
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("expected file part: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"faces_count": 2,
			"faces": []map[string]any{
				{"bbox": []int{10, 20, 110, 140}, "confidence": 0.99, "embedding": []float32{0.5, -0.5}},
				{"bbox": []int{200, 20, 260, 90}, "confidence": 0.9, "embedding": []float32{1, 0}},
			},
		})
	}))
	defer server.Close()

	client := NewAPIClient(config.InsightFaceConfig{URL: server.URL + "/"})
	obs, err := client.Evaluate(context.Background(), testFrame())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}
	want := capture.BoundingBox{Top: 20, Right: 110, Bottom: 140, Left: 10}
	if obs[0].Box != want {
		t.Errorf("expected box %+v, got %+v", want, obs[0].Box)
	}
	if obs[0].Embedding[0] != 0.5 || obs[0].Embedding[1] != -0.5 {
		t.Errorf("unexpected embedding %v", obs[0].Embedding)
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"server error", http.StatusInternalServerError, `boom`},
		{"api error status", http.StatusOK, `{"status":"error"}`},
		{"missing embedding", http.StatusOK, `{"status":"ok","faces":[{"bbox":[1,2,3,4]}]}`},
		{"bad bbox", http.StatusOK, `{"status":"ok","faces":[{"bbox":[1,2],"embedding":[1]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			_, err := NewAPIClient(config.InsightFaceConfig{URL: server.URL}).Evaluate(context.Background(), testFrame())
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestIsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"status":"ok","version":"1.0"}`))
	}))
	defer server.Close()

	client := NewAPIClient(config.InsightFaceConfig{URL: server.URL})
	if !client.IsAvailable(context.Background()) {
		t.Error("expected service to be available")
	}

	server.Close()
	if client.IsAvailable(context.Background()) {
		t.Error("expected closed service to be unavailable")
	}
}
