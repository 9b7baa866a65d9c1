package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	jobdomain "vidconv/internal/domain/job"
)

type converterUseCases interface {
	Submit(upload io.Reader) (jobdomain.Job, error)
	Snapshot(id string) (jobdomain.Job, error)
	Download(id string) (string, error)
	HLSAsset(id, name string) (string, error)
	DASHAsset(id, name string) (string, error)
}

type Handler struct {
	converter      converterUseCases
	maxUploadBytes int64
}

// NewHandler wires HTTP handlers with the conversion use cases.
func NewHandler(converter converterUseCases, maxUploadBytes int64) *Handler {
	return &Handler{converter: converter, maxUploadBytes: maxUploadBytes}
}

// Convert handles job submission endpoint.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Missing file")
		return
	}
	defer file.Close()

	created, err := h.converter.Submit(file)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, map[string]string{"jobId": created.ID})
}

// Status handles the pull-mode snapshot endpoint.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	record, err := h.converter.Snapshot(mux.Vars(r)["id"])
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "Not found")
		return
	}

	writeJSON(w, map[string]interface{}{
		"id":       record.ID,
		"status":   record.Status,
		"progress": record.Progress,
		"error":    errField(record.Err),
	})
}

// Download handles primary artifact retrieval endpoint.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	outputPath, err := h.converter.Download(id)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, notFoundMessage(err))
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.mp4"`)
	streamFile(w, r, outputPath, "video/mp4")
}

// HLSAsset handles playlist/segment retrieval for the HLS package.
func (h *Handler) HLSAsset(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	full, err := h.converter.HLSAsset(vars["id"], vars["file"])
	if err != nil {
		writeJSONError(w, http.StatusNotFound, notFoundMessage(err))
		return
	}
	streamFile(w, r, full, assetContentType(full))
}

// DASHAsset handles manifest/segment retrieval for the DASH package.
func (h *Handler) DASHAsset(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	full, err := h.converter.DASHAsset(vars["id"], vars["file"])
	if err != nil {
		writeJSONError(w, http.StatusNotFound, notFoundMessage(err))
		return
	}
	streamFile(w, r, full, assetContentType(full))
}

func notFoundMessage(err error) string {
	if errors.Is(err, jobdomain.ErrNotReady) {
		return "Not ready"
	}
	return "Not found"
}

func assetContentType(path string) string {
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return contentType
}

func errField(message string) interface{} {
	if message == "" {
		return nil
	}
	return message
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
