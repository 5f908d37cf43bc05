package server

import (
	"io"
	"net/http"
)

// streamWriter sends reply chunks as plain text. Headers go out with the
// first chunk so that a failure before it can still become a JSON error.
type streamWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newStreamWriter(w http.ResponseWriter) *streamWriter {
	f, _ := w.(http.Flusher)
	return &streamWriter{w: w, flusher: f}
}

func (sw *streamWriter) write(chunk string) error {
	if !sw.started {
		h := sw.w.Header()
		h.Set("Content-Type", "text/plain; charset=utf-8")
		h.Set("Cache-Control", "no-cache")
		h.Set("X-Content-Type-Options", "nosniff")
		sw.w.WriteHeader(http.StatusOK)
		sw.started = true
	}
	if _, err := io.WriteString(sw.w, chunk); err != nil {
		return err
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}
