package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/traceon/internal/check"
	"github.com/kozaktomas/traceon/internal/constants"
	"github.com/kozaktomas/traceon/internal/gallery"
	"github.com/kozaktomas/traceon/internal/matcher"
)

// Messages returned for non-matching outcomes.
const (
	msgNoFace         = "No face found in the provided image."
	msgNotMatched     = "No match found in our records."
	msgAnalysisFailed = "An error occurred during analysis."
	msgInvalidType    = "Invalid file type."
)

// CheckResponse is the body returned for every check outcome.
type CheckResponse struct {
	Match    bool              `json:"match"`
	Outcome  matcher.Kind      `json:"outcome"`
	Distance *float64          `json:"distance,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
	Message  string            `json:"message,omitempty"`
}

// newCheckResponse flattens an outcome. On a match, data carries the label
// as "name" next to the identity's metadata.
func newCheckResponse(out matcher.Outcome) CheckResponse {
	resp := CheckResponse{Outcome: out.Kind}
	switch out.Kind {
	case matcher.KindMatched:
		resp.Match = true
		d := out.Distance
		resp.Distance = &d
		resp.Data = make(map[string]string, len(out.Identity.Metadata)+1)
		for k, v := range out.Identity.Metadata {
			resp.Data[k] = v
		}
		resp.Data[gallery.MetaName] = out.Identity.Label
	case matcher.KindNoFaceDetected:
		resp.Message = msgNoFace
	case matcher.KindNotMatched:
		resp.Message = msgNotMatched
	default:
		resp.Outcome = matcher.KindAnalysisFailed
		resp.Message = msgAnalysisFailed
	}
	return resp
}

// CheckHandler handles photo check uploads.
type CheckHandler struct {
	service   *check.Service
	uploadDir string
}

// NewCheckHandler creates a check handler storing uploads in uploadDir
// (os.TempDir() when empty) while they are analyzed.
func NewCheckHandler(svc *check.Service, uploadDir string) *CheckHandler {
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	return &CheckHandler{service: svc, uploadDir: uploadDir}
}

// readImageUpload returns the uploaded image part, rejecting requests that
// are not multipart, have no file, or carry a non-image content type. On
// failure it has already written the response.
func readImageUpload(w http.ResponseWriter, r *http.Request) (multipart.File, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return nil, false
	}

	file, header, err := r.FormFile(constants.UploadFormField)
	if err != nil {
		respondError(w, http.StatusBadRequest, "no file part in the request")
		return nil, false
	}
	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		file.Close()
		respondError(w, http.StatusBadRequest, msgInvalidType)
		return nil, false
	}
	return file, true
}

// saveTempUpload copies the upload to a uniquely named file in dir.
func saveTempUpload(src io.Reader, dir string) (string, error) {
	path := filepath.Join(dir, "upload-"+uuid.NewString())
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600) //nolint:gosec // name is generated
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	return path, nil
}

func removeTempUpload(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).WithField("path", path).Error("Failed to remove temp upload")
	}
}

// CheckImage handles POST /api/check-image. Every analysis outcome is a 200;
// only malformed uploads are rejected.
func (h *CheckHandler) CheckImage(w http.ResponseWriter, r *http.Request) {
	file, ok := readImageUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	path, err := saveTempUpload(file, h.uploadDir)
	if err != nil {
		log.WithError(err).Error("Failed to store upload")
		respondError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer removeTempUpload(path)

	out := h.service.CheckFile(r.Context(), path)
	respondJSON(w, http.StatusOK, newCheckResponse(out))
}
