package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/smartlearn/smartlearn/internal/auth"
	"github.com/smartlearn/smartlearn/internal/quiz"
)

// safeQuestion is the pre-attempt view of a question. It never carries the
// correct index or the explanation.
type safeQuestion struct {
	ID           string          `json:"id"`
	QuestionText string          `json:"questionText"`
	Options      []string        `json:"options"`
	Difficulty   quiz.Difficulty `json:"difficulty"`
}

// GET /quiz/{quizID}
func GetQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserIDFromContext(r.Context())
		quizID := chi.URLParam(r, "quizID")

		qz, err := store.GetQuiz(r.Context(), quizID, userID)
		if err != nil {
			writeError(w, err)
			return
		}
		questions, err := store.Questions(r.Context(), quizID, false)
		if err != nil {
			writeError(w, err)
			return
		}
		attempts, err := store.CountAttempts(r.Context(), quizID)
		if err != nil {
			writeError(w, err)
			return
		}

		safe := make([]safeQuestion, 0, len(questions))
		for _, q := range questions {
			safe = append(safe, safeQuestion{
				ID:           q.ID,
				QuestionText: q.Text,
				Options:      q.Options,
				Difficulty:   q.Difficulty,
			})
		}
		writeData(w, http.StatusOK, map[string]any{
			"quiz": map[string]any{
				"id":            qz.ID,
				"title":         qz.Title,
				"questionCount": qz.QuestionCount,
				"status":        qz.Status,
				"created_at":    qz.CreatedAt,
				"questions":     safe,
				"_count":        map[string]int{"attempts": attempts},
			},
		})
	}
}

// GET /quizzes
func ListQuizzesHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserIDFromContext(r.Context())
		opts := listOpts(r)

		quizzes, total, err := store.ListQuizzes(r.Context(), userID, opts)
		if err != nil {
			writeError(w, err)
			return
		}
		if quizzes == nil {
			quizzes = []quiz.QuizSummary{}
		}
		writeData(w, http.StatusOK, map[string]any{
			"quizzes":    quizzes,
			"pagination": paginate(opts.Page, opts.Limit, total),
		})
	}
}

// POST /quiz/{quizID}/submit
func SubmitQuizHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserIDFromContext(r.Context())
		quizID := chi.URLParam(r, "quizID")

		var req quiz.SubmitRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
		result, err := svc.Submit(r.Context(), userID, quizID, req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "Quiz submitted successfully", result)
	}
}

// DELETE /quiz/{quizID}
func DeleteQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserIDFromContext(r.Context())
		quizID := chi.URLParam(r, "quizID")

		if err := store.DeleteQuiz(r.Context(), quizID, userID); err != nil {
			writeError(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "Quiz deleted successfully", nil)
	}
}

// GET /quiz/{quizID}/results
func QuizResultsHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserIDFromContext(r.Context())
		quizID := chi.URLParam(r, "quizID")

		results, err := svc.Results(r.Context(), userID, quizID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeData(w, http.StatusOK, results)
	}
}

// GET /quiz/analytics?days=N
func AnalyticsHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserIDFromContext(r.Context())
		days, _ := strconv.Atoi(r.URL.Query().Get("days"))

		analytics, err := svc.UserAnalytics(r.Context(), userID, days)
		if err != nil {
			writeError(w, err)
			return
		}
		writeData(w, http.StatusOK, analytics)
	}
}
