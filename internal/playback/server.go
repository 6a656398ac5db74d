// Package playback serves clip source media to the frontend's video element
// with byte-range support, so scrubbing stays responsive without the
// frontend touching the filesystem.
package playback

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

type MediaService interface {
	ServeSource(w http.ResponseWriter, r *http.Request, sourceRef string) error
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{logger: logger}
}

// ServeSource streams the clip's source file, honoring a Range header.
func (s *Server) ServeSource(w http.ResponseWriter, r *http.Request, sourceRef string) error {
	file, err := os.Open(sourceRef)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "source media not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	size := stat.Size()
	contentType := mime.TypeByExtension(filepath.Ext(sourceRef))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	br, err := ParseRange(r.Header.Get("Range"), size)
	if err == ErrUnsatisfiable {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}
	if err != nil && err != ErrInvalidRange {
		return err
	}

	if br == nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, file)
		return nil
	}

	w.Header().Set("Content-Length", fmt.Sprintf("%d", br.Length()))
	w.Header().Set("Content-Range", br.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := file.Seek(br.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	io.CopyN(w, file, br.Length())
	return nil
}
