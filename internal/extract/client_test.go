package extract

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestClient_Extract(t *testing.T) {
	var gotContentType string
	var gotImage []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/embed/face" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotContentType = header.Header.Get("Content-Type")
		gotImage, _ = io.ReadAll(file)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(FaceResponse{
			FacesCount: 2,
			Faces: []FaceDetection{
				{FaceIndex: 0, Dim: 3, Embedding: []float32{0.5, -0.25, 1}, DetScore: 0.98},
				{FaceIndex: 1, Dim: 3, Embedding: []float32{0, 0, 0}, DetScore: 0.7},
			},
			Model: "buffalo_l",
		})
	}))
	defer srv.Close()

	img := pngBytes(t, 4, 4)
	descs, err := NewClient(srv.URL+"/").Extract(context.Background(), img)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(descs) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(descs))
	}
	if descs[0][0] != 0.5 || descs[0][1] != -0.25 || descs[0][2] != 1 {
		t.Errorf("unexpected first descriptor %v", descs[0])
	}
	if gotContentType != "image/png" {
		t.Errorf("expected image/png part, got %q", gotContentType)
	}
	if len(gotImage) != len(img) {
		t.Errorf("expected %d image bytes, server got %d", len(img), len(gotImage))
	}
}

func TestClient_ExtractNoFaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"faces_count": 0, "faces": [], "model": "buffalo_l"}`))
	}))
	defer srv.Close()

	descs, err := NewClient(srv.URL).Extract(context.Background(), []byte("blank"))
	if err != nil {
		t.Fatalf("zero faces must not be an error, got %v", err)
	}
	if descs != nil {
		t.Errorf("expected nil descriptors, got %v", descs)
	}
}

func TestClient_ExtractErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"server error", http.StatusInternalServerError, "model not loaded", "status 500"},
		{"invalid json", http.StatusOK, "{not json", "failed to parse response"},
		{"empty embedding", http.StatusOK, `{"faces_count": 1, "faces": [{"face_index": 0, "embedding": []}]}`, "empty embedding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).Extract(context.Background(), []byte("img"))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected error containing %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestClient_ExtractHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewClient(srv.URL).Extract(ctx, []byte("img")); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestClient_Health(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if err := c.Health(context.Background()); err != nil {
		t.Errorf("expected healthy, got %v", err)
	}

	healthy.Store(false)
	if err := c.Health(context.Background()); err == nil {
		t.Error("expected unhealthy error")
	}
}

func TestNewClient_DefaultURL(t *testing.T) {
	if c := NewClient(""); c.baseURL != defaultEmbeddingURL {
		t.Errorf("expected default URL, got %q", c.baseURL)
	}
}
