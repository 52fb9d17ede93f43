package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smartlearn/smartlearn/internal/apperr"
	"github.com/smartlearn/smartlearn/internal/auth"
	"github.com/smartlearn/smartlearn/internal/quiz"
)

// POST /files/upload (multipart, field "file")
func UploadFileHandler(svc *quiz.Service, maxSize int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserIDFromContext(r.Context())

		r.Body = http.MaxBytesReader(w, r.Body, maxSize)
		if err := r.ParseMultipartForm(maxSize); err != nil {
			writeError(w, apperr.Validation("file too large or malformed upload"))
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			writeError(w, apperr.Validation("no file uploaded"))
			return
		}
		defer f.Close()

		file, err := svc.UploadFile(r.Context(), userID, quiz.UploadInput{
			Filename: hdr.Filename,
			MimeType: hdr.Header.Get("Content-Type"),
			Size:     hdr.Size,
			Body:     f,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, http.StatusCreated, "File uploaded successfully", map[string]any{"file": file})
	}
}

// GET /files
func ListFilesHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserIDFromContext(r.Context())
		opts := listOpts(r)

		files, total, err := store.ListFiles(r.Context(), userID, opts)
		if err != nil {
			writeError(w, err)
			return
		}
		if files == nil {
			files = []quiz.File{}
		}
		writeData(w, http.StatusOK, map[string]any{
			"files":      files,
			"pagination": paginate(opts.Page, opts.Limit, total),
		})
	}
}

// GET /files/{fileID}
func GetFileHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserIDFromContext(r.Context())
		fileID := chi.URLParam(r, "fileID")

		file, url, err := svc.FileURL(r.Context(), fileID, userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"file": file, "downloadUrl": url})
	}
}

// DELETE /files/{fileID}
func DeleteFileHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserIDFromContext(r.Context())
		fileID := chi.URLParam(r, "fileID")

		if err := svc.DeleteFile(r.Context(), fileID, userID); err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "File deleted successfully", nil)
	}
}
