package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := CORS([]string{"https://traceon-frontend.onrender.com", " "})(next)

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"configured origin", http.MethodPost, "https://traceon-frontend.onrender.com", "https://traceon-frontend.onrender.com", http.StatusTeapot},
		{"localhost with port", http.MethodGet, "http://localhost:5173", "http://localhost:5173", http.StatusTeapot},
		{"localhost lookalike", http.MethodGet, "http://localhost.evil.com", "", http.StatusTeapot},
		{"unknown origin", http.MethodGet, "https://evil.example", "", http.StatusTeapot},
		{"no origin", http.MethodGet, "", "", http.StatusTeapot},
		{"preflight", http.MethodOptions, "http://localhost:3000", "http://localhost:3000", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/check-image", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("expected allow-origin %q, got %q", tt.wantOrigin, got)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusCreated || rec.Body.String() != "ok" {
		t.Errorf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}
