package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	jobdomain "vidconv/internal/domain/job"
)

const pushTickInterval = time.Second

// Progress handles the push-mode event stream endpoint. A progress event
// is emitted immediately and on every tick; a done job gets one terminal
// done event carrying the resource locators before the stream closes.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.converter.Snapshot(id); err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if h.emitProgressEvent(w, flusher, id) {
		return
	}

	ticker := time.NewTicker(pushTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if h.emitProgressEvent(w, flusher, id) {
				return
			}
		}
	}
}

// emitProgressEvent writes one update and reports whether the stream is
// finished.
func (h *Handler) emitProgressEvent(w io.Writer, flusher http.Flusher, id string) bool {
	record, err := h.converter.Snapshot(id)
	if err != nil {
		fmt.Fprint(w, "event: error\ndata: Job not found\n\n")
		flusher.Flush()
		return true
	}

	payload, _ := json.Marshal(progressPayload(record))
	fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload)

	if record.Status == jobdomain.StatusDone {
		done, _ := json.Marshal(donePayload(record.ID))
		fmt.Fprintf(w, "event: done\ndata: %s\n\n", done)
		flusher.Flush()
		return true
	}

	flusher.Flush()
	return record.Status == jobdomain.StatusError
}

func progressPayload(record jobdomain.Job) map[string]interface{} {
	return map[string]interface{}{
		"status":   record.Status,
		"progress": record.Progress,
		"error":    errField(record.Err),
	}
}

func donePayload(id string) map[string]string {
	return map[string]string{
		"downloadUrl": "/api/download/" + id,
		"hlsUrl":      "/api/hls/" + id + "/index.m3u8",
		"dashUrl":     "/api/dash/" + id + "/stream.mpd",
	}
}

// streamFile serves a file with byte-range support.
func streamFile(w http.ResponseWriter, r *http.Request, fullPath, contentType string) {
	file, err := os.Open(fullPath)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "Not found")
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	fileSize := info.Size()
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(fileSize, 10))
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, file)
		return
	}

	start, end, ok := parseRange(rangeHeader, fileSize)
	if !ok {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", fileSize))
		http.Error(w, "Invalid range", http.StatusRequestedRangeNotSatisfiable)
		return
	}

	contentLength := end - start + 1
	w.Header().Set("Content-Length", strconv.FormatInt(contentLength, 10))
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, fileSize))
	w.WriteHeader(http.StatusPartialContent)
	_, _ = file.Seek(start, 0)
	_, _ = io.CopyN(w, file, contentLength)
}

// parseRange resolves a single-part Range header, including the suffix
// form "bytes=-N" for the last N bytes. Multipart ranges are not
// supported.
func parseRange(header string, size int64) (int64, int64, bool) {
	spec, found := strings.CutPrefix(header, "bytes=")
	if !found {
		return 0, 0, false
	}
	first, last, found := strings.Cut(spec, "-")
	if !found {
		return 0, 0, false
	}

	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 || size == 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, true
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start >= size {
		return 0, 0, false
	}
	end := size - 1
	if last != "" {
		parsed, err := strconv.ParseInt(last, 10, 64)
		if err != nil || parsed < start {
			return 0, 0, false
		}
		if parsed < end {
			end = parsed
		}
	}
	return start, end, true
}
