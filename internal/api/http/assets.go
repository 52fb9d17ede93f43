package http

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smartlearn/smartlearn/internal/auth"
	"github.com/smartlearn/smartlearn/internal/quiz"
)

// GET /files/{fileID}/download -> streams the stored blob. Useful in fs
// blob mode where the signed URL is a file:// path a browser cannot fetch.
func DownloadFileHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserIDFromContext(r.Context())
		fileID := chi.URLParam(r, "fileID")

		file, rc, err := svc.OpenFile(r.Context(), fileID, userID)
		if err != nil {
			writeError(w, err)
			return
		}
		defer rc.Close()

		ct := file.MimeType
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
		_, _ = io.Copy(w, rc)
	}
}
