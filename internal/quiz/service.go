package quiz

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/smartlearn/smartlearn/internal/apperr"
	"github.com/smartlearn/smartlearn/internal/bus"
	"github.com/smartlearn/smartlearn/internal/storage"
)

var validate = validator.New()

// Service wires the quiz core together: persistence, blob storage and the
// job bus. One Service instance is shared by all handlers.
type Service struct {
	store  Store
	blob   storage.BlobStore
	bus    bus.Bus
	urlTTL time.Duration
	log    *slog.Logger
}

func NewService(store Store, blob storage.BlobStore, b bus.Bus, urlTTL time.Duration, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if urlTTL <= 0 {
		urlTTL = time.Hour
	}
	return &Service{store: store, blob: blob, bus: b, urlTTL: urlTTL, log: log}
}

func (s *Service) Store() Store { return s.store }

// --- Job submission ---

type GenerateRequest struct {
	FileID        string     `json:"fileId" validate:"required,uuid"`
	QuestionCount int        `json:"questionCount" validate:"required,min=1,max=50"`
	Difficulty    Difficulty `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	FocusAreas    []string   `json:"focusAreas" validate:"omitempty,max=5,dive,min=1"`
}

type Polling struct {
	Endpoint string `json:"endpoint"`
	Interval string `json:"interval"`
}

type JobAccepted struct {
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
	Progress int      `json:"progress"`
	Polling Polling   `json:"polling"`
}

// Generate accepts a generation request: persists a pending job, signs a
// download URL for the file and publishes the job message. Returns before
// any generation work happens; callers poll the job endpoint.
func (s *Service) Generate(ctx context.Context, userID string, req GenerateRequest) (JobAccepted, error) {
	if err := validate.Struct(req); err != nil {
		return JobAccepted{}, apperr.Wrap(apperr.KindValidation, "invalid generation request", err)
	}
	if req.Difficulty == "" {
		req.Difficulty = DifficultyMedium
	}

	file, err := s.store.GetFile(ctx, req.FileID, userID)
	if err != nil {
		return JobAccepted{}, err
	}

	job := Job{
		ID:            uuid.NewString(),
		UserID:        userID,
		FileID:        file.ID,
		QuestionCount: req.QuestionCount,
		Difficulty:    req.Difficulty,
		FocusAreas:    req.FocusAreas,
		Status:        JobPending,
		Progress:      0,
		CreatedAt:     time.Now().Unix(),
	}
	// The partial unique index on (file_id, user_id) closes the
	// check-then-insert race: a concurrent duplicate surfaces as Conflict.
	if err := s.store.CreateJob(ctx, job); err != nil {
		return JobAccepted{}, err
	}

	fileURL, err := s.blob.SignedURL(ctx, file.StorageKey, s.urlTTL)
	if err != nil {
		s.abandonJob(ctx, job.ID, "failed to sign file URL")
		return JobAccepted{}, fmt.Errorf("sign file url: %w", err)
	}

	msg := JobMessage{
		JobID:         job.ID,
		FileID:        file.ID,
		UserID:        userID,
		FileURL:       fileURL,
		QuestionCount: req.QuestionCount,
		Difficulty:    req.Difficulty,
		FocusAreas:    orEmpty(req.FocusAreas),
	}
	if err := s.bus.Publish(ctx, JobChannel, msg); err != nil {
		// The job row exists but was never dispatched. Mark it failed so
		// the caller is not left polling a job no worker will ever pick up.
		s.abandonJob(ctx, job.ID, "failed to dispatch generation job")
		return JobAccepted{}, apperr.Wrap(apperr.KindInternal, "failed to send job to worker", err)
	}

	s.log.Info("mcq generation job published", "job_id", job.ID, "file_id", file.ID, "user_id", userID)

	return JobAccepted{
		JobID:    job.ID,
		Status:   JobPending,
		Progress: 0,
		Polling: Polling{
			Endpoint: "/mcq/jobs/" + job.ID,
			Interval: "3000ms",
		},
	}, nil
}

func (s *Service) abandonJob(ctx context.Context, jobID, reason string) {
	if err := s.store.FailJob(ctx, jobID, reason); err != nil {
		s.log.Error("failed to mark undispatched job as failed", "job_id", jobID, "error", err)
	}
}

func orEmpty(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

// --- Worker callbacks ---

type ProgressUpdate struct {
	Progress int       `json:"progress" validate:"min=0,max=100"`
	Status   JobStatus `json:"status" validate:"required,oneof=pending processing"`
	Message  string    `json:"message"`
}

// Progress applies a worker progress update. Completion and failure have
// their own callbacks; this one cannot move a job to a terminal state.
func (s *Service) Progress(ctx context.Context, jobID string, upd ProgressUpdate) (Job, error) {
	if err := validate.Struct(upd); err != nil {
		return Job{}, apperr.Wrap(apperr.KindValidation, "invalid progress update", err)
	}
	job, err := s.store.UpdateJobProgress(ctx, jobID, upd.Progress, upd.Status)
	if err != nil {
		return Job{}, err
	}
	s.log.Debug("job progress updated", "job_id", jobID, "progress", upd.Progress, "status", upd.Status)
	return job, nil
}

type CompleteRequest struct {
	MCQs           []MCQ `json:"mcqs" validate:"required,min=1,dive"`
	TotalQuestions int   `json:"total_questions" validate:"required,min=1"`
	TextLength     int   `json:"text_length" validate:"min=0"`
}

// Complete materializes the worker's output into a quiz. Exactly-once: a
// second completion for the same job is rejected with Conflict.
func (s *Service) Complete(ctx context.Context, jobID string, req CompleteRequest) (Quiz, error) {
	if err := validate.Struct(req); err != nil {
		return Quiz{}, apperr.Wrap(apperr.KindValidation, "invalid completion payload", err)
	}
	for i, m := range req.MCQs {
		if len(m.Options) != 4 {
			return Quiz{}, apperr.Newf(apperr.KindValidation, "mcq %d: exactly 4 options required", i)
		}
		if m.CorrectIndex < 0 || m.CorrectIndex > 3 {
			return Quiz{}, apperr.Newf(apperr.KindValidation, "mcq %d: correct_index out of range", i)
		}
	}

	qz, err := s.store.CompleteJob(ctx, jobID, req.MCQs, req.TotalQuestions, req.TextLength)
	if err != nil {
		return Quiz{}, err
	}
	s.log.Info("job completed", "job_id", jobID, "quiz_id", qz.ID, "questions", req.TotalQuestions)
	return qz, nil
}

// Fail records a worker-reported failure. The error text is stored verbatim
// for later display.
func (s *Service) Fail(ctx context.Context, jobID, errMsg string) error {
	if err := s.store.FailJob(ctx, jobID, errMsg); err != nil {
		return err
	}
	s.log.Info("job marked as failed", "job_id", jobID)
	return nil
}

// --- Files ---

type UploadInput struct {
	Filename string
	MimeType string
	Size     int64
	Body     io.Reader
}

func (s *Service) UploadFile(ctx context.Context, userID string, in UploadInput) (File, error) {
	if in.Filename == "" {
		return File{}, apperr.Validation("filename is required")
	}

	now := time.Now().Unix()
	f := File{
		ID:        uuid.NewString(),
		UserID:    userID,
		Filename:  in.Filename,
		MimeType:  in.MimeType,
		Size:      in.Size,
		Status:    FileUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.StorageKey = fmt.Sprintf("%s/%s-%s", userID, f.ID, in.Filename)

	if err := s.blob.Put(ctx, f.StorageKey, in.Body, in.Size, in.MimeType); err != nil {
		return File{}, fmt.Errorf("upload blob: %w", err)
	}
	if err := s.store.CreateFile(ctx, f); err != nil {
		// Keep storage consistent with the DB when the row insert fails.
		if derr := s.blob.Delete(ctx, f.StorageKey); derr != nil {
			s.log.Error("orphaned blob after failed file insert", "key", f.StorageKey, "error", derr)
		}
		return File{}, err
	}

	s.log.Info("file uploaded", "file_id", f.ID, "user_id", userID, "size", in.Size)
	return f, nil
}

// OpenFile streams the stored blob for direct download. The caller owns the
// returned reader.
func (s *Service) OpenFile(ctx context.Context, id, userID string) (File, io.ReadCloser, error) {
	f, err := s.store.GetFile(ctx, id, userID)
	if err != nil {
		return File{}, nil, err
	}
	rc, err := s.blob.Get(ctx, f.StorageKey)
	if err != nil {
		return File{}, nil, fmt.Errorf("open blob: %w", err)
	}
	return f, rc, nil
}

func (s *Service) FileURL(ctx context.Context, id, userID string) (File, string, error) {
	f, err := s.store.GetFile(ctx, id, userID)
	if err != nil {
		return File{}, "", err
	}
	u, err := s.blob.SignedURL(ctx, f.StorageKey, s.urlTTL)
	if err != nil {
		return File{}, "", fmt.Errorf("sign file url: %w", err)
	}
	return f, u, nil
}

func (s *Service) DeleteFile(ctx context.Context, id, userID string) error {
	f, err := s.store.DeleteFile(ctx, id, userID)
	if err != nil {
		return err
	}
	if err := s.blob.Delete(ctx, f.StorageKey); err != nil {
		// Row is gone; the blob is unreachable garbage at worst.
		s.log.Error("failed to delete blob", "key", f.StorageKey, "error", err)
	}
	return nil
}
