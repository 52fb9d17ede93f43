package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smartlearn/smartlearn/internal/apperr"
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// --- Files ---

func (s *SQLStore) CreateFile(ctx context.Context, f File) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (id,user_id,filename,storage_key,mime_type,size,status,created_at,updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		f.ID, f.UserID, f.Filename, f.StorageKey, f.MimeType, f.Size, f.Status, f.CreatedAt, f.UpdatedAt)
	return err
}

func (s *SQLStore) GetFile(ctx context.Context, id, userID string) (File, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,user_id,filename,storage_key,mime_type,size,status,created_at,updated_at
		 FROM files WHERE id=$1 AND user_id=$2`, id, userID)
	return scanFile(row)
}

func (s *SQLStore) ListFiles(ctx context.Context, userID string, opts ListOpts) ([]File, int, error) {
	opts = opts.normalize()
	where := `WHERE user_id=$1`
	args := []any{userID}
	if opts.Status != "" {
		where += ` AND status=$2`
		args = append(args, opts.Status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT id,user_id,filename,storage_key,mime_type,size,status,created_at,updated_at
		 FROM files %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, q, append(args, opts.Limit, opts.offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, f)
	}
	return out, total, rows.Err()
}

func (s *SQLStore) DeleteFile(ctx context.Context, id, userID string) (File, error) {
	f, err := s.GetFile(ctx, id, userID)
	if err != nil {
		return File{}, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id=$1 AND user_id=$2`, id, userID); err != nil {
		return File{}, err
	}
	return f, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanFile(r rowScanner) (File, error) {
	var f File
	err := r.Scan(&f.ID, &f.UserID, &f.Filename, &f.StorageKey, &f.MimeType, &f.Size, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return File{}, apperr.NotFound("file not found")
	}
	if err != nil {
		return File{}, err
	}
	return f, nil
}

// --- Jobs ---

func (s *SQLStore) CreateJob(ctx context.Context, j Job) error {
	fa, err := json.Marshal(j.FocusAreas)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO mcq_jobs (id,user_id,file_id,question_count,difficulty,focus_areas,status,progress,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		j.ID, j.UserID, j.FileID, j.QuestionCount, j.Difficulty, string(fa), j.Status, j.Progress, j.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.Conflict("file is already being processed")
		}
		return err
	}
	return nil
}

const jobCols = `id,user_id,file_id,question_count,difficulty,focus_areas,status,progress,error,quiz_id,created_at,completed_at`

func (s *SQLStore) GetJob(ctx context.Context, id, userID string) (Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobCols+` FROM mcq_jobs WHERE id=$1 AND user_id=$2`, id, userID)
	return scanJob(row)
}

func (s *SQLStore) GetJobUnscoped(ctx context.Context, id string) (Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobCols+` FROM mcq_jobs WHERE id=$1`, id)
	return scanJob(row)
}

func (s *SQLStore) ListJobs(ctx context.Context, userID string, opts ListOpts) ([]Job, int, error) {
	opts = opts.normalize()
	where := `WHERE user_id=$1`
	args := []any{userID}
	if opts.Status != "" {
		where += ` AND status=$2`
		args = append(args, opts.Status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mcq_jobs `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT `+jobCols+` FROM mcq_jobs %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, q, append(args, opts.Limit, opts.offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, j)
	}
	return out, total, rows.Err()
}

func scanJob(r rowScanner) (Job, error) {
	var j Job
	var fa string
	err := r.Scan(&j.ID, &j.UserID, &j.FileID, &j.QuestionCount, &j.Difficulty, &fa,
		&j.Status, &j.Progress, &j.Error, &j.QuizID, &j.CreatedAt, &j.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, apperr.NotFound("job not found")
	}
	if err != nil {
		return Job{}, err
	}
	if fa != "" {
		if err := json.Unmarshal([]byte(fa), &j.FocusAreas); err != nil {
			j.FocusAreas = nil
		}
	}
	return j, nil
}

// UpdateJobProgress overwrites progress and status. Terminal jobs reject
// the update: a stray callback after completion or failure is a protocol
// violation, not a state change.
func (s *SQLStore) UpdateJobProgress(ctx context.Context, id string, progress int, status JobStatus) (Job, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE mcq_jobs SET progress=$1, status=$2
		 WHERE id=$3 AND status NOT IN ('completed','failed')`,
		progress, status, id)
	if err != nil {
		return Job{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Job{}, err
	}
	if n == 0 {
		return Job{}, s.jobUpdateRefused(ctx, id)
	}
	return s.GetJobUnscoped(ctx, id)
}

func (s *SQLStore) FailJob(ctx context.Context, id, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE mcq_jobs SET status='failed', error=$1, completed_at=$2
		 WHERE id=$3 AND status NOT IN ('completed','failed')`,
		errMsg, time.Now().Unix(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return s.jobUpdateRefused(ctx, id)
	}
	return nil
}

// jobUpdateRefused distinguishes a missing job from a terminal one.
func (s *SQLStore) jobUpdateRefused(ctx context.Context, id string) error {
	if _, err := s.GetJobUnscoped(ctx, id); err != nil {
		return err
	}
	return apperr.Conflict("job already finished")
}

// CompleteJob materializes worker output inside one transaction: quiz row,
// question rows, job transition to completed, file marked processed. Any
// failure rolls the whole thing back; a quiz is never left half-created.
func (s *SQLStore) CompleteJob(ctx context.Context, jobID string, mcqs []MCQ, totalQuestions, textLength int) (Quiz, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Quiz{}, err
	}
	defer tx.Rollback()

	var (
		job      Job
		filename string
	)
	row := tx.QueryRowContext(ctx,
		`SELECT j.id, j.user_id, j.file_id, j.difficulty, j.status, f.filename
		 FROM mcq_jobs j JOIN files f ON j.file_id = f.id
		 WHERE j.id=$1`, jobID)
	if err := row.Scan(&job.ID, &job.UserID, &job.FileID, &job.Difficulty, &job.Status, &filename); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, apperr.NotFound("job not found")
		}
		return Quiz{}, err
	}
	if job.Status.Terminal() {
		return Quiz{}, apperr.Conflict("job already finished")
	}

	now := time.Now().Unix()
	qz := Quiz{
		ID:            uuid.NewString(),
		JobID:         job.ID,
		FileID:        job.FileID,
		UserID:        job.UserID,
		Title:         "Quiz - " + filename,
		QuestionCount: totalQuestions,
		Status:        "active",
		CreatedAt:     now,
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO quizzes (id,job_id,file_id,user_id,title,question_count,status,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		qz.ID, qz.JobID, qz.FileID, qz.UserID, qz.Title, qz.QuestionCount, qz.Status, qz.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Quiz{}, apperr.Conflict("job already materialized")
		}
		return Quiz{}, err
	}

	for i, m := range mcqs {
		opts, err := json.Marshal(m.Options)
		if err != nil {
			return Quiz{}, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO questions (id,quiz_id,question_text,options_json,correct_index,explanation,difficulty,position)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			uuid.NewString(), qz.ID, m.Question, string(opts), m.CorrectIndex, m.Explanation, job.Difficulty, i)
		if err != nil {
			return Quiz{}, err
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE mcq_jobs SET status='completed', progress=100, quiz_id=$1, completed_at=$2
		 WHERE id=$3 AND status NOT IN ('completed','failed')`,
		qz.ID, now, jobID)
	if err != nil {
		return Quiz{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return Quiz{}, err
	} else if n == 0 {
		return Quiz{}, apperr.Conflict("job already finished")
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE files SET status='completed', updated_at=$1 WHERE id=$2`,
		now, job.FileID)
	if err != nil {
		return Quiz{}, err
	}
	_ = textLength // recorded by the worker; nothing durable to keep here

	if err := tx.Commit(); err != nil {
		return Quiz{}, err
	}
	return qz, nil
}

// --- Quizzes ---

func (s *SQLStore) GetQuiz(ctx context.Context, id, userID string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,job_id,file_id,user_id,title,question_count,status,created_at
		 FROM quizzes WHERE id=$1 AND user_id=$2`, id, userID)
	var q Quiz
	err := row.Scan(&q.ID, &q.JobID, &q.FileID, &q.UserID, &q.Title, &q.QuestionCount, &q.Status, &q.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Quiz{}, apperr.NotFound("quiz not found")
	}
	if err != nil {
		return Quiz{}, err
	}
	return q, nil
}

func (s *SQLStore) Questions(ctx context.Context, quizID string, withKeys bool) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,quiz_id,question_text,options_json,correct_index,explanation,difficulty,position
		 FROM questions WHERE quiz_id=$1 ORDER BY position`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		var q Question
		var opts string
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Text, &opts, &q.CorrectIndex, &q.Explanation, &q.Difficulty, &q.Position); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			return nil, err
		}
		if !withKeys {
			q.CorrectIndex = -1
			q.Explanation = ""
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListQuizzes(ctx context.Context, userID string, opts ListOpts) ([]QuizSummary, int, error) {
	opts = opts.normalize()
	where := `WHERE q.user_id=$1`
	args := []any{userID}
	if opts.Status != "" {
		where += ` AND q.status=$2`
		args = append(args, opts.Status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quizzes q `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf(`SELECT q.id, q.job_id, q.file_id, q.user_id, q.title, q.question_count, q.status, q.created_at,
		  COALESCE(f.filename, ''),
		  (SELECT COUNT(*) FROM quiz_attempts WHERE quiz_id = q.id),
		  (SELECT score FROM quiz_attempts WHERE quiz_id = q.id ORDER BY submitted_at DESC LIMIT 1),
		  (SELECT submitted_at FROM quiz_attempts WHERE quiz_id = q.id ORDER BY submitted_at DESC LIMIT 1)
		 FROM quizzes q LEFT JOIN files f ON q.file_id = f.id
		 %s ORDER BY q.created_at DESC LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, q, append(args, opts.Limit, opts.offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []QuizSummary
	for rows.Next() {
		var sum QuizSummary
		if err := rows.Scan(&sum.ID, &sum.JobID, &sum.FileID, &sum.UserID, &sum.Title, &sum.QuestionCount,
			&sum.Status, &sum.CreatedAt, &sum.Filename, &sum.AttemptCount, &sum.LatestScore, &sum.LastAttempt); err != nil {
			return nil, 0, err
		}
		out = append(out, sum)
	}
	return out, total, rows.Err()
}

func (s *SQLStore) DeleteQuiz(ctx context.Context, id, userID string) error {
	// Cascade removes questions, attempts and answers.
	res, err := s.db.ExecContext(ctx, `DELETE FROM quizzes WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("quiz not found")
	}
	return nil
}

// --- Attempts ---

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt, answers []Answer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO quiz_attempts (id,quiz_id,user_id,score,correct_count,wrong_count,total_count,started_at,submitted_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.QuizID, a.UserID, a.Score, a.CorrectCount, a.WrongCount, a.TotalCount, a.StartedAt, a.SubmittedAt)
	if err != nil {
		return err
	}
	for _, ans := range answers {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO answers (id,attempt_id,question_id,selected_index,is_correct)
			 VALUES ($1,$2,$3,$4,$5)`,
			ans.ID, a.ID, ans.QuestionID, ans.SelectedIndex, ans.IsCorrect)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) RecentAttempts(ctx context.Context, quizID, userID string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,quiz_id,user_id,score,correct_count,wrong_count,total_count,started_at,submitted_at
		 FROM quiz_attempts WHERE quiz_id=$1 AND user_id=$2
		 ORDER BY submitted_at DESC LIMIT $3`, quizID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.QuizID, &a.UserID, &a.Score, &a.CorrectCount, &a.WrongCount,
			&a.TotalCount, &a.StartedAt, &a.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) AttemptAnswers(ctx context.Context, attemptID string) ([]AnswerDetail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.attempt_id, a.question_id, a.selected_index, a.is_correct,
		        q.question_text, q.options_json, q.correct_index, q.explanation
		 FROM answers a JOIN questions q ON a.question_id = q.id
		 WHERE a.attempt_id=$1 ORDER BY q.position`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AnswerDetail
	for rows.Next() {
		var d AnswerDetail
		var opts string
		if err := rows.Scan(&d.ID, &d.AttemptID, &d.QuestionID, &d.SelectedIndex, &d.IsCorrect,
			&d.QuestionText, &opts, &d.CorrectIndex, &d.Explanation); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(opts), &d.Options); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountAttempts(ctx context.Context, quizID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quiz_attempts WHERE quiz_id=$1`, quizID).Scan(&n)
	return n, err
}

// --- Analytics ---

func (s *SQLStore) CountQuizzes(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quizzes WHERE user_id=$1`, userID).Scan(&n)
	return n, err
}

func (s *SQLStore) AttemptStatsSince(ctx context.Context, userID string, since int64) (int, float64, error) {
	var n int
	var avg float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(score), 0)
		 FROM quiz_attempts WHERE user_id=$1 AND submitted_at >= $2`, userID, since).Scan(&n, &avg)
	return n, avg, err
}

func (s *SQLStore) RecentQuizOverviews(ctx context.Context, userID string, limit int) ([]QuizOverview, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT q.id, q.title, q.created_at,
		  (SELECT score FROM quiz_attempts WHERE quiz_id = q.id ORDER BY submitted_at DESC LIMIT 1),
		  (SELECT COUNT(*) FROM quiz_attempts WHERE quiz_id = q.id)
		 FROM quizzes q WHERE q.user_id=$1
		 ORDER BY q.created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QuizOverview
	for rows.Next() {
		var o QuizOverview
		if err := rows.Scan(&o.ID, &o.Title, &o.CreatedAt, &o.LatestScore, &o.AttemptCount); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLStore) DailyProgress(ctx context.Context, userID string, since int64, limit int) ([]DailyStat, error) {
	if limit <= 0 {
		limit = 7
	}
	// Timestamps are unix seconds; date bucketing differs per driver.
	var day string
	switch s.driver {
	case "postgres":
		day = `to_char(to_timestamp(submitted_at), 'YYYY-MM-DD')`
	default:
		day = `date(submitted_at, 'unixepoch')`
	}
	q := fmt.Sprintf(
		`SELECT %s AS day, AVG(score), COUNT(*)
		 FROM quiz_attempts WHERE user_id=$1 AND submitted_at >= $2
		 GROUP BY day ORDER BY day DESC LIMIT $3`, day)
	rows, err := s.db.QueryContext(ctx, q, userID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyStat
	for rows.Next() {
		var d DailyStat
		var avg float64
		if err := rows.Scan(&d.Date, &avg, &d.AttemptCount); err != nil {
			return nil, err
		}
		d.AverageScore = int(math.Round(avg))
		out = append(out, d)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") // postgres
}
