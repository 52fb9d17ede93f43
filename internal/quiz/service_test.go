package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartlearn/smartlearn/internal/apperr"
	"github.com/smartlearn/smartlearn/internal/bus"
	"github.com/smartlearn/smartlearn/internal/storage"
)

func newTestService(t *testing.T) (*Service, *SQLStore, *sql.DB, *bus.Memory) {
	t.Helper()
	store, dbh := newTestStore(t)
	blob, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	b := bus.NewMemory()
	return NewService(store, blob, b, time.Hour, nil), store, dbh, b
}

func TestGeneratePublishesJob(t *testing.T) {
	svc, store, dbh, b := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, dbh)
	file := seedFile(t, store, userID)

	var messages []JobMessage
	require.NoError(t, b.Subscribe(ctx, JobChannel, func(_ context.Context, payload []byte) {
		var m JobMessage
		require.NoError(t, json.Unmarshal(payload, &m))
		messages = append(messages, m)
	}))

	accepted, err := svc.Generate(ctx, userID, GenerateRequest{
		FileID:        file.ID,
		QuestionCount: 10,
		Difficulty:    DifficultyHard,
		FocusAreas:    []string{"photosynthesis"},
	})
	require.NoError(t, err)
	assert.Equal(t, JobPending, accepted.Status)
	assert.Zero(t, accepted.Progress)
	assert.Equal(t, "/mcq/jobs/"+accepted.JobID, accepted.Polling.Endpoint)

	require.Len(t, messages, 1)
	msg := messages[0]
	assert.Equal(t, accepted.JobID, msg.JobID)
	assert.Equal(t, file.ID, msg.FileID)
	assert.Equal(t, userID, msg.UserID)
	assert.Equal(t, 10, msg.QuestionCount)
	assert.Equal(t, DifficultyHard, msg.Difficulty)
	assert.Equal(t, []string{"photosynthesis"}, msg.FocusAreas)
	assert.True(t, strings.HasPrefix(msg.FileURL, "file://"), "signed URL expected, got %q", msg.FileURL)

	job, err := store.GetJob(ctx, accepted.JobID, userID)
	require.NoError(t, err)
	assert.Equal(t, JobPending, job.Status)
}

func TestGenerateDefaultsDifficulty(t *testing.T) {
	svc, store, dbh, _ := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, dbh)
	file := seedFile(t, store, userID)

	accepted, err := svc.Generate(ctx, userID, GenerateRequest{FileID: file.ID, QuestionCount: 5})
	require.NoError(t, err)

	job, err := store.GetJob(ctx, accepted.JobID, userID)
	require.NoError(t, err)
	assert.Equal(t, DifficultyMedium, job.Difficulty)
}

func TestGenerateValidation(t *testing.T) {
	svc, store, dbh, _ := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, dbh)
	file := seedFile(t, store, userID)

	cases := []GenerateRequest{
		{FileID: file.ID, QuestionCount: 0},
		{FileID: file.ID, QuestionCount: 51},
		{FileID: file.ID, QuestionCount: 10, Difficulty: "impossible"},
		{FileID: "not-a-uuid", QuestionCount: 10},
		{FileID: file.ID, QuestionCount: 10, FocusAreas: []string{"a", "b", "c", "d", "e", "f"}},
	}
	for _, req := range cases {
		_, err := svc.Generate(ctx, userID, req)
		require.Error(t, err)
		assert.True(t, apperr.IsValidation(err), "request %+v", req)
	}
}

func TestGenerateFileNotFound(t *testing.T) {
	svc, _, dbh, _ := newTestService(t)
	userID := seedUser(t, dbh)

	_, err := svc.Generate(context.Background(), userID, GenerateRequest{
		FileID:        uuid.NewString(),
		QuestionCount: 10,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestGenerateConflictOnInflightJob(t *testing.T) {
	svc, store, dbh, _ := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, dbh)
	file := seedFile(t, store, userID)

	_, err := svc.Generate(ctx, userID, GenerateRequest{FileID: file.ID, QuestionCount: 10})
	require.NoError(t, err)

	_, err = svc.Generate(ctx, userID, GenerateRequest{FileID: file.ID, QuestionCount: 10})
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

type failBus struct{}

func (failBus) Publish(context.Context, string, any) error {
	return errors.New("connection refused")
}
func (failBus) Subscribe(context.Context, string, bus.Handler) error { return nil }

func TestGeneratePublishFailureMarksJobFailed(t *testing.T) {
	store, dbh := newTestStore(t)
	blob, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	svc := NewService(store, blob, failBus{}, time.Hour, nil)

	ctx := context.Background()
	userID := seedUser(t, dbh)
	file := seedFile(t, store, userID)

	_, err = svc.Generate(ctx, userID, GenerateRequest{FileID: file.ID, QuestionCount: 10})
	require.Error(t, err)

	// The undispatched job must not stay pending forever.
	jobs, _, err := store.ListJobs(ctx, userID, ListOpts{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, JobFailed, jobs[0].Status)

	// A retry is possible immediately since the guard only covers
	// pending/processing jobs.
	_, err = svc.Generate(ctx, userID, GenerateRequest{FileID: file.ID, QuestionCount: 10})
	require.Error(t, err) // still failing bus, but it got past the guard
	var jobCount int
	require.NoError(t, dbh.QueryRow(`SELECT COUNT(*) FROM mcq_jobs WHERE file_id=$1`, file.ID).Scan(&jobCount))
	assert.Equal(t, 2, jobCount)
}

func TestProgressValidation(t *testing.T) {
	svc, store, dbh, _ := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, dbh)
	file := seedFile(t, store, userID)
	job := seedJob(t, store, userID, file.ID)

	_, err := svc.Progress(ctx, job.ID, ProgressUpdate{Progress: 101, Status: JobProcessing})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))

	// The progress callback cannot move a job to a terminal state.
	_, err = svc.Progress(ctx, job.ID, ProgressUpdate{Progress: 100, Status: JobCompleted})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))

	got, err := svc.Progress(ctx, job.ID, ProgressUpdate{Progress: 75, Status: JobProcessing})
	require.NoError(t, err)
	assert.Equal(t, 75, got.Progress)
	assert.Equal(t, JobProcessing, got.Status)
}

func TestCompleteValidatesMCQShape(t *testing.T) {
	svc, store, dbh, _ := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, dbh)
	file := seedFile(t, store, userID)
	job := seedJob(t, store, userID, file.ID)

	bad := []MCQ{{Question: "Q?", Options: []string{"A", "B"}, CorrectIndex: 0}}
	_, err := svc.Complete(ctx, job.ID, CompleteRequest{MCQs: bad, TotalQuestions: 1})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))

	bad = []MCQ{{Question: "Q?", Options: []string{"A", "B", "C", "D"}, CorrectIndex: 4}}
	_, err = svc.Complete(ctx, job.ID, CompleteRequest{MCQs: bad, TotalQuestions: 1})
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))

	// The job is untouched by rejected payloads.
	got, err := store.GetJob(ctx, job.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, JobPending, got.Status)
}

func TestUploadAndDeleteFile(t *testing.T) {
	svc, store, dbh, _ := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, dbh)

	f, err := svc.UploadFile(ctx, userID, UploadInput{
		Filename: "chapter1.pdf",
		MimeType: "application/pdf",
		Size:     11,
		Body:     strings.NewReader("hello world"),
	})
	require.NoError(t, err)
	assert.Equal(t, FileUploaded, f.Status)

	got, err := store.GetFile(ctx, f.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, "chapter1.pdf", got.Filename)

	_, url, err := svc.FileURL(ctx, f.ID, userID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"))

	require.NoError(t, svc.DeleteFile(ctx, f.ID, userID))
	_, err = store.GetFile(ctx, f.ID, userID)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}
