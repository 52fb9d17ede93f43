package quiz

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether a job accepts no further mutation.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

type FileStatus string

const (
	FileUploaded   FileStatus = "uploaded"
	FileProcessing FileStatus = "processing"
	FileCompleted  FileStatus = "completed"
)

type File struct {
	ID         string     `json:"id"`
	UserID     string     `json:"-"`
	Filename   string     `json:"filename"`
	StorageKey string     `json:"-"`
	MimeType   string     `json:"mime_type"`
	Size       int64      `json:"size"`
	Status     FileStatus `json:"status"`
	CreatedAt  int64      `json:"created_at"`
	UpdatedAt  int64      `json:"updated_at"`
}

// Job tracks one unit of asynchronous quiz generation. QuizID is set iff
// the job completed.
type Job struct {
	ID            string     `json:"jobId"`
	UserID        string     `json:"-"`
	FileID        string     `json:"fileId"`
	QuestionCount int        `json:"questionCount"`
	Difficulty    Difficulty `json:"difficulty"`
	FocusAreas    []string   `json:"focusAreas,omitempty"`
	Status        JobStatus  `json:"status"`
	Progress      int        `json:"progress"`
	Error         *string    `json:"error,omitempty"`
	QuizID        *string    `json:"quizId,omitempty"`
	CreatedAt     int64      `json:"createdAt"`
	CompletedAt   *int64     `json:"completedAt,omitempty"`
}

type Quiz struct {
	ID            string `json:"id"`
	JobID         string `json:"-"`
	FileID        string `json:"fileId"`
	UserID        string `json:"-"`
	Title         string `json:"title"`
	QuestionCount int    `json:"questionCount"`
	Status        string `json:"status"`
	CreatedAt     int64  `json:"created_at"`
}

type Question struct {
	ID           string     `json:"id"`
	QuizID       string     `json:"-"`
	Text         string     `json:"questionText"`
	Options      []string   `json:"options"`
	CorrectIndex int        `json:"-"`
	Explanation  string     `json:"-"`
	Difficulty   Difficulty `json:"difficulty"`
	Position     int        `json:"-"`
}

// Attempt is one scored submission of answers to a quiz. Immutable once
// written; retakes create new rows.
type Attempt struct {
	ID           string `json:"id"`
	QuizID       string `json:"-"`
	UserID       string `json:"-"`
	Score        int    `json:"score"`
	CorrectCount int    `json:"correct_count"`
	WrongCount   int    `json:"wrong_count"`
	TotalCount   int    `json:"total_count"`
	StartedAt    int64  `json:"started_at"`
	SubmittedAt  int64  `json:"submitted_at"`
}

type Answer struct {
	ID            string `json:"id"`
	AttemptID     string `json:"-"`
	QuestionID    string `json:"question_id"`
	SelectedIndex int    `json:"selected_index"`
	IsCorrect     bool   `json:"is_correct"`
}

// MCQ is a generated question as delivered by the worker: exactly four
// options and one correct index.
type MCQ struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation"`
}

// JobMessage is the payload published to the mcq_jobs channel.
type JobMessage struct {
	JobID         string     `json:"jobId"`
	FileID        string     `json:"fileId"`
	UserID        string     `json:"userId"`
	FileURL       string     `json:"fileUrl"`
	QuestionCount int        `json:"questionCount"`
	Difficulty    Difficulty `json:"difficulty"`
	FocusAreas    []string   `json:"focusAreas"`
}

// JobChannel is the bus channel the worker listens on.
const JobChannel = "mcq_jobs"
