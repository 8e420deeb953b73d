package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/eta-study/eta-server/internal/core"
)

// MaxUploadBytes bounds a multipart upload.
const MaxUploadBytes = 25 << 20

func isPDF(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return true
	}
	return strings.HasPrefix(strings.ToLower(contentType), "application/pdf")
}

func (h *APIHandler) UploadContext(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.InvalidInput("file exceeds the %d MiB upload limit", MaxUploadBytes>>20)
		}
		return core.InvalidInput("invalid multipart form: %v", err)
	}
	defer r.MultipartForm.RemoveAll()

	etaID := firstNonEmpty(r.FormValue("etaId"), r.FormValue("eta_id"))
	if etaID == "" {
		return core.InvalidInput("etaId is required")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return core.InvalidInput("file is required")
	}
	defer file.Close()

	if !isPDF(header.Filename, header.Header.Get("Content-Type")) {
		return core.InvalidInput("only PDF files are supported")
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return core.InvalidInput("failed to read upload: %v", err)
	}

	res, err := h.svc.Context.Ingest(r.Context(), etaID, filepath.Base(header.Filename), data)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}
