package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/smartlearn/smartlearn/internal/auth"
	"github.com/smartlearn/smartlearn/internal/quiz"
)

// RouterDeps carries everything the API surface needs. main wires the real
// implementations; tests wire sqlite, an in-process bus and an fs blob store.
type RouterDeps struct {
	Service       *quiz.Service
	Store         quiz.Store
	Users         *auth.UserStore
	Auth          *auth.AuthService
	WorkerCred    auth.WorkerCredential
	CORSOrigins   []string
	MaxUploadSize int64
	Ready         func() error
}

func NewRouter(d RouterDeps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/register", auth.RegisterHandler(d.Users, d.Auth))
	r.Post("/auth/login", auth.LoginHandler(d.Users, d.Auth))

	// Worker callbacks: authenticated by the worker credential, not a user
	// JWT. Mounted outside the user group on purpose.
	r.Group(func(wr chi.Router) {
		wr.Use(WorkerAuth(d.WorkerCred))
		wr.Patch("/mcq/jobs/{jobID}/progress", UpdateJobProgressHandler(d.Service))
		wr.Post("/mcq/jobs/{jobID}/complete", CompleteJobHandler(d.Service))
		wr.Post("/mcq/jobs/{jobID}/fail", FailJobHandler(d.Service))
	})

	// User-facing API (JWT → user id in context).
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))

		pr.Route("/files", func(fr chi.Router) {
			fr.Post("/upload", UploadFileHandler(d.Service, d.MaxUploadSize))
			fr.Get("/", ListFilesHandler(d.Store))
			fr.Get("/{fileID}", GetFileHandler(d.Service))
			fr.Get("/{fileID}/download", DownloadFileHandler(d.Service))
			fr.Delete("/{fileID}", DeleteFileHandler(d.Service))
		})

		pr.Post("/auth/password", auth.ChangePasswordHandler(d.Users))

		pr.Post("/mcq/generate", GenerateMCQHandler(d.Service))
		pr.Get("/mcq/jobs", ListJobsHandler(d.Store))
		pr.Get("/mcq/jobs/{jobID}", GetJobHandler(d.Store))

		pr.Get("/quizzes", ListQuizzesHandler(d.Store))
		pr.Get("/quiz/analytics", AnalyticsHandler(d.Service))
		pr.Get("/quiz/{quizID}", GetQuizHandler(d.Store))
		pr.Post("/quiz/{quizID}/submit", SubmitQuizHandler(d.Service))
		pr.Delete("/quiz/{quizID}", DeleteQuizHandler(d.Store))
		pr.Get("/quiz/{quizID}/results", QuizResultsHandler(d.Service))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	return r
}
