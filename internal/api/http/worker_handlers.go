package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/smartlearn/smartlearn/internal/auth"
	"github.com/smartlearn/smartlearn/internal/quiz"
)

// WorkerAuth guards the callback endpoints. A bad or missing credential is
// rejected with 401 before any mutation.
func WorkerAuth(cred auth.WorkerCredential) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			jobID := chi.URLParam(r, "jobID")
			if token == "" || !cred.Verify(r.Context(), jobID, token) {
				writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "Unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PATCH /mcq/jobs/{jobID}/progress
func UpdateJobProgressHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")

		var upd quiz.ProgressUpdate
		if err := decodeBody(r, &upd); err != nil {
			writeError(w, err)
			return
		}
		job, err := svc.Progress(r.Context(), jobID, upd)
		if err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "Progress updated", map[string]any{
			"jobId":    job.ID,
			"progress": job.Progress,
			"status":   job.Status,
		})
	}
}

// POST /mcq/jobs/{jobID}/complete
func CompleteJobHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")

		var req quiz.CompleteRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		qz, err := svc.Complete(r.Context(), jobID, req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "Job completed successfully", map[string]any{
			"quizId":    qz.ID,
			"jobId":     jobID,
			"questions": qz.QuestionCount,
		})
	}
}

// POST /mcq/jobs/{jobID}/fail
func FailJobHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")

		var req struct {
			Error string `json:"error"`
		}
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		if err := svc.Fail(r.Context(), jobID, req.Error); err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "Job marked as failed", nil)
	}
}
