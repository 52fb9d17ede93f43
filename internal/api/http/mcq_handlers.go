package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/smartlearn/smartlearn/internal/auth"
	"github.com/smartlearn/smartlearn/internal/quiz"
)

// POST /mcq/generate
func GenerateMCQHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserIDFromContext(r.Context())

		var req quiz.GenerateRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		accepted, err := svc.Generate(r.Context(), userID, req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, http.StatusAccepted, "MCQ generation started", accepted)
	}
}

// GET /mcq/jobs/{jobID}
func GetJobHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserIDFromContext(r.Context())
		jobID := chi.URLParam(r, "jobID")

		job, err := store.GetJob(r.Context(), jobID, userID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeData(w, http.StatusOK, job)
	}
}

type pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func paginate(page, limit, total int) pagination {
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

func listOpts(r *http.Request) quiz.ListOpts {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return quiz.ListOpts{Status: q.Get("status"), Page: page, Limit: limit}
}

// GET /mcq/jobs
func ListJobsHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserIDFromContext(r.Context())
		opts := listOpts(r)

		jobs, total, err := store.ListJobs(r.Context(), userID, opts)
		if err != nil {
			writeError(w, err)
			return
		}
		if jobs == nil {
			jobs = []quiz.Job{}
		}
		writeData(w, http.StatusOK, map[string]any{
			"jobs":       jobs,
			"pagination": paginate(opts.Page, opts.Limit, total),
		})
	}
}
