package quiz

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartlearn/smartlearn/internal/apperr"
	"github.com/smartlearn/smartlearn/internal/db"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })
	return dbh
}

func newTestStore(t *testing.T) (*SQLStore, *sql.DB) {
	t.Helper()
	dbh := newTestDB(t)
	return NewSQLStore(dbh, "sqlite"), dbh
}

func seedUser(t *testing.T, dbh *sql.DB) string {
	t.Helper()
	id := uuid.NewString()
	_, err := dbh.Exec(`INSERT INTO users (id,email,name,password_hash,created_at) VALUES ($1,$2,$3,$4,$5)`,
		id, id+"@example.com", "Test User", "x", time.Now().Unix())
	require.NoError(t, err)
	return id
}

func seedFile(t *testing.T, s *SQLStore, userID string) File {
	t.Helper()
	now := time.Now().Unix()
	f := File{
		ID:         uuid.NewString(),
		UserID:     userID,
		Filename:   "lecture-notes.pdf",
		StorageKey: userID + "/lecture-notes.pdf",
		MimeType:   "application/pdf",
		Size:       2048,
		Status:     FileUploaded,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, s.CreateFile(context.Background(), f))
	return f
}

func seedJob(t *testing.T, s *SQLStore, userID, fileID string) Job {
	t.Helper()
	j := Job{
		ID:            uuid.NewString(),
		UserID:        userID,
		FileID:        fileID,
		QuestionCount: 10,
		Difficulty:    DifficultyMedium,
		Status:        JobPending,
		CreatedAt:     time.Now().Unix(),
	}
	require.NoError(t, s.CreateJob(context.Background(), j))
	return j
}

func makeMCQs(n int) []MCQ {
	out := make([]MCQ, n)
	for i := range out {
		out[i] = MCQ{
			Question:     fmt.Sprintf("Question %d?", i+1),
			Options:      []string{"A", "B", "C", "D"},
			CorrectIndex: i % 4,
			Explanation:  fmt.Sprintf("Because %d.", i+1),
		}
	}
	return out
}

func TestCreateJobDuplicateInflight(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, dbh)
	file := seedFile(t, s, userID)

	seedJob(t, s, userID, file.ID)

	dup := Job{
		ID:            uuid.NewString(),
		UserID:        userID,
		FileID:        file.ID,
		QuestionCount: 5,
		Difficulty:    DifficultyEasy,
		Status:        JobPending,
		CreatedAt:     time.Now().Unix(),
	}
	err := s.CreateJob(ctx, dup)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

func TestCreateJobAllowedAfterTerminal(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, dbh)
	file := seedFile(t, s, userID)

	first := seedJob(t, s, userID, file.ID)
	require.NoError(t, s.FailJob(ctx, first.ID, "worker crashed"))

	// Terminal jobs no longer count against the in-flight guard.
	second := Job{
		ID:            uuid.NewString(),
		UserID:        userID,
		FileID:        file.ID,
		QuestionCount: 10,
		Difficulty:    DifficultyMedium,
		Status:        JobPending,
		CreatedAt:     time.Now().Unix(),
	}
	require.NoError(t, s.CreateJob(ctx, second))
}

func TestJobQuizIDIffCompleted(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, dbh)
	file := seedFile(t, s, userID)
	job := seedJob(t, s, userID, file.ID)

	got, err := s.GetJob(ctx, job.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, JobPending, got.Status)
	assert.Nil(t, got.QuizID)

	_, err = s.UpdateJobProgress(ctx, job.ID, 50, JobProcessing)
	require.NoError(t, err)
	got, err = s.GetJob(ctx, job.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, JobProcessing, got.Status)
	assert.Equal(t, 50, got.Progress)
	assert.Nil(t, got.QuizID)

	qz, err := s.CompleteJob(ctx, job.ID, makeMCQs(3), 3, 1234)
	require.NoError(t, err)

	got, err = s.GetJob(ctx, job.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.QuizID)
	assert.Equal(t, qz.ID, *got.QuizID)
	assert.NotNil(t, got.CompletedAt)
}

func TestCompleteJobMaterialization(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, dbh)
	file := seedFile(t, s, userID)
	job := seedJob(t, s, userID, file.ID)

	qz, err := s.CompleteJob(ctx, job.ID, makeMCQs(10), 10, 5000)
	require.NoError(t, err)
	assert.Equal(t, 10, qz.QuestionCount)
	assert.Equal(t, "Quiz - lecture-notes.pdf", qz.Title)
	assert.Equal(t, "active", qz.Status)

	questions, err := s.Questions(ctx, qz.ID, true)
	require.NoError(t, err)
	require.Len(t, questions, 10)
	for i, q := range questions {
		assert.Equal(t, i, q.Position)
		assert.Len(t, q.Options, 4)
		assert.Equal(t, DifficultyMedium, q.Difficulty)
	}

	f, err := s.GetFile(ctx, file.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, FileCompleted, f.Status)
}

func TestCompleteJobTwiceRejected(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, dbh)
	file := seedFile(t, s, userID)
	job := seedJob(t, s, userID, file.ID)

	_, err := s.CompleteJob(ctx, job.ID, makeMCQs(5), 5, 100)
	require.NoError(t, err)

	_, err = s.CompleteJob(ctx, job.ID, makeMCQs(5), 5, 100)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))

	// Exactly one quiz exists for the job.
	var n int
	require.NoError(t, dbh.QueryRow(`SELECT COUNT(*) FROM quizzes WHERE job_id=$1`, job.ID).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestCompleteJobMissing(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.CompleteJob(context.Background(), uuid.NewString(), makeMCQs(1), 1, 10)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestTerminalJobRejectsMutation(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, dbh)
	file := seedFile(t, s, userID)
	job := seedJob(t, s, userID, file.ID)

	require.NoError(t, s.FailJob(ctx, job.ID, "model timeout"))

	got, err := s.GetJob(ctx, job.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, JobFailed, got.Status)
	require.NotNil(t, got.Error)
	assert.Equal(t, "model timeout", *got.Error)
	assert.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.QuizID)

	// A late progress update must not resurrect the job.
	_, err = s.UpdateJobProgress(ctx, job.ID, 10, JobProcessing)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))

	err = s.FailJob(ctx, job.ID, "again")
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
}

func TestQuestionsWithoutKeys(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, dbh)
	file := seedFile(t, s, userID)
	job := seedJob(t, s, userID, file.ID)

	qz, err := s.CompleteJob(ctx, job.ID, makeMCQs(4), 4, 100)
	require.NoError(t, err)

	questions, err := s.Questions(ctx, qz.ID, false)
	require.NoError(t, err)
	require.Len(t, questions, 4)
	for _, q := range questions {
		assert.Equal(t, -1, q.CorrectIndex)
		assert.Empty(t, q.Explanation)
	}
}

func TestDeleteQuizCascades(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, dbh)
	file := seedFile(t, s, userID)
	job := seedJob(t, s, userID, file.ID)

	qz, err := s.CompleteJob(ctx, job.ID, makeMCQs(2), 2, 100)
	require.NoError(t, err)
	questions, err := s.Questions(ctx, qz.ID, true)
	require.NoError(t, err)

	attempt := Attempt{
		ID: uuid.NewString(), QuizID: qz.ID, UserID: userID,
		Score: 50, CorrectCount: 1, WrongCount: 1, TotalCount: 2,
		StartedAt: time.Now().Unix(), SubmittedAt: time.Now().Unix(),
	}
	answers := []Answer{
		{ID: uuid.NewString(), QuestionID: questions[0].ID, SelectedIndex: 0, IsCorrect: true},
		{ID: uuid.NewString(), QuestionID: questions[1].ID, SelectedIndex: 0, IsCorrect: false},
	}
	require.NoError(t, s.CreateAttempt(ctx, attempt, answers))

	require.NoError(t, s.DeleteQuiz(ctx, qz.ID, userID))

	for _, table := range []string{"questions", "quiz_attempts"} {
		var n int
		require.NoError(t, dbh.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE quiz_id=$1`, qz.ID).Scan(&n))
		assert.Zero(t, n, table)
	}
	var n int
	require.NoError(t, dbh.QueryRow(`SELECT COUNT(*) FROM answers WHERE attempt_id=$1`, attempt.ID).Scan(&n))
	assert.Zero(t, n)
}

func TestDeleteQuizWrongOwner(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, dbh)
	other := seedUser(t, dbh)
	file := seedFile(t, s, userID)
	job := seedJob(t, s, userID, file.ID)

	qz, err := s.CompleteJob(ctx, job.ID, makeMCQs(1), 1, 10)
	require.NoError(t, err)

	err = s.DeleteQuiz(ctx, qz.ID, other)
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestListJobsPagination(t *testing.T) {
	s, dbh := newTestStore(t)
	ctx := context.Background()
	userID := seedUser(t, dbh)

	for i := 0; i < 3; i++ {
		f := seedFile(t, s, userID)
		seedJob(t, s, userID, f.ID)
	}

	jobs, total, err := s.ListJobs(ctx, userID, ListOpts{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, jobs, 2)

	jobs, _, err = s.ListJobs(ctx, userID, ListOpts{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	jobs, total, err = s.ListJobs(ctx, userID, ListOpts{Status: "failed", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, jobs)
}
