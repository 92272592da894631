package web

import (
	"errors"
	"net/http"

	"github.com/erazemk/claimwildcats/internal/objstore"
)

// StorageObject handles GET /storage/{bucket}/{path...}, serving an
// attachment to holders of a signed download URL.
func (s *Server) StorageObject(w http.ResponseWriter, r *http.Request) {
	bucket := r.PathValue("bucket")
	path := r.PathValue("path")

	f, mime, err := s.storage.Open(bucket, path, r.URL.Query().Get("token"))
	switch {
	case errors.Is(err, objstore.ErrUnauthorized):
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	case errors.Is(err, objstore.ErrNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		s.logger.Warn("failed to open stored object", "bucket", bucket, "path", path, "error", err)
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.logger.Error("failed to stat stored object", "bucket", bucket, "path", path, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeContent(w, r, "", info.ModTime(), f)
}
