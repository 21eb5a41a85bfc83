package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/traceon/internal/check"
	"github.com/kozaktomas/traceon/internal/extract"
	"github.com/kozaktomas/traceon/internal/gallery"
)

const testDim = 128

// filled returns a testDim descriptor with every value set to v.
func filled(v float64) gallery.Descriptor {
	d := make(gallery.Descriptor, testDim)
	for i := range d {
		d[i] = v
	}
	return d
}

// testStore creates the Jane Doe gallery used across handler tests.
func testStore(t *testing.T) *gallery.Store {
	t.Helper()
	away := filled(3)
	s, err := gallery.New([]gallery.Identity{
		{
			Label:      "Jane Doe",
			Descriptor: filled(0),
			Metadata: gallery.Metadata{
				gallery.MetaStatus:           "Missing since 2024-10-01",
				gallery.MetaLastSeenLocation: "Central City Park",
			},
		},
		{
			Label:      "Alex Poe",
			Descriptor: away,
			Metadata:   gallery.Metadata{gallery.MetaStatus: "Missing"},
		},
	}, testDim)
	if err != nil {
		t.Fatalf("building store: %v", err)
	}
	return s
}

// extractorReturning creates an extractor with a fixed answer.
func extractorReturning(descs []gallery.Descriptor, err error) extract.Extractor {
	return extract.ExtractorFunc(func(context.Context, []byte) ([]gallery.Descriptor, error) {
		return descs, err
	})
}

// testService creates a check service over testStore.
func testService(t *testing.T, ex extract.Extractor) *check.Service {
	t.Helper()
	return check.NewService(testStore(t), ex, 0.6)
}

// pngImage returns a small valid PNG.
func pngImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

// uploadRequest builds a multipart POST with one file part and optional fields.
func uploadRequest(t *testing.T, path, field, contentType string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}

	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="portrait.png"`)
		h.Set("Content-Type", contentType)
		part, err := writer.CreatePart(h)
		if err != nil {
			t.Fatalf("failed to create part: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("failed to write part: %v", err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// assertDirEmpty fails if dir contains any entries.
func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	for _, e := range entries {
		t.Errorf("leftover file in upload dir: %s", e.Name())
	}
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
