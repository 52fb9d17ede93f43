package quiz

import "context"

type ListOpts struct {
	Status string
	Page   int
	Limit  int
}

func (o ListOpts) normalize() ListOpts {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit < 1 || o.Limit > 100 {
		o.Limit = 10
	}
	return o
}

func (o ListOpts) offset() int { return (o.Page - 1) * o.Limit }

// QuizSummary is a quiz row enriched with attempt aggregates for list views.
type QuizSummary struct {
	Quiz
	Filename     string `json:"filename,omitempty"`
	AttemptCount int    `json:"attempt_count"`
	LatestScore  *int   `json:"latest_score,omitempty"`
	LastAttempt  *int64 `json:"last_attempt,omitempty"`
}

// AnswerDetail joins an answer with its question for post-attempt review.
type AnswerDetail struct {
	Answer
	QuestionText string   `json:"question_text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation"`
}

type QuizOverview struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CreatedAt    int64  `json:"created_at"`
	LatestScore  *int   `json:"latest_score,omitempty"`
	AttemptCount int    `json:"totalAttempts"`
}

type DailyStat struct {
	Date         string `json:"date"`
	AverageScore int    `json:"averageScore"`
	AttemptCount int    `json:"attempts"`
}

// Store is the persistence surface of the quiz core. Every multi-statement
// write happens inside one transaction with rollback on any error.
type Store interface {
	// Files
	CreateFile(ctx context.Context, f File) error
	GetFile(ctx context.Context, id, userID string) (File, error)
	ListFiles(ctx context.Context, userID string, opts ListOpts) ([]File, int, error)
	DeleteFile(ctx context.Context, id, userID string) (File, error)

	// Jobs
	CreateJob(ctx context.Context, j Job) error
	GetJob(ctx context.Context, id, userID string) (Job, error)
	// GetJobUnscoped is the worker-callback path; callbacks carry no user.
	GetJobUnscoped(ctx context.Context, id string) (Job, error)
	ListJobs(ctx context.Context, userID string, opts ListOpts) ([]Job, int, error)
	UpdateJobProgress(ctx context.Context, id string, progress int, status JobStatus) (Job, error)
	FailJob(ctx context.Context, id, errMsg string) error
	// CompleteJob materializes worker output: quiz + questions + job and
	// file updates, atomically.
	CompleteJob(ctx context.Context, jobID string, mcqs []MCQ, totalQuestions, textLength int) (Quiz, error)

	// Quizzes
	GetQuiz(ctx context.Context, id, userID string) (Quiz, error)
	// Questions returns a quiz's questions in order. withKeys governs
	// whether correct_index and explanation are populated.
	Questions(ctx context.Context, quizID string, withKeys bool) ([]Question, error)
	ListQuizzes(ctx context.Context, userID string, opts ListOpts) ([]QuizSummary, int, error)
	DeleteQuiz(ctx context.Context, id, userID string) error

	// Attempts
	CreateAttempt(ctx context.Context, a Attempt, answers []Answer) error
	RecentAttempts(ctx context.Context, quizID, userID string, limit int) ([]Attempt, error)
	AttemptAnswers(ctx context.Context, attemptID string) ([]AnswerDetail, error)
	CountAttempts(ctx context.Context, quizID string) (int, error)

	// Analytics
	CountQuizzes(ctx context.Context, userID string) (int, error)
	AttemptStatsSince(ctx context.Context, userID string, since int64) (count int, avgScore float64, err error)
	RecentQuizOverviews(ctx context.Context, userID string, limit int) ([]QuizOverview, error)
	DailyProgress(ctx context.Context, userID string, since int64, limit int) ([]DailyStat, error)
}
