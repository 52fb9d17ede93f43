package quiz

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/smartlearn/smartlearn/internal/apperr"
)

type AnswerInput struct {
	QuestionID    string `json:"questionId" validate:"required,uuid"`
	SelectedIndex int    `json:"selectedIndex" validate:"min=0,max=3"`
}

type SubmitRequest struct {
	Answers []AnswerInput `json:"answers" validate:"dive"`
}

// SubmittedAnswer carries the post-submission reveal: correctness, the
// authoritative index and the explanation.
type SubmittedAnswer struct {
	QuestionID    string `json:"questionId"`
	SelectedIndex int    `json:"selectedIndex"`
	IsCorrect     bool   `json:"isCorrect"`
	CorrectIndex  int    `json:"correctIndex"`
	Explanation   string `json:"explanation"`
}

type SubmitResult struct {
	AttemptID    string            `json:"attemptId"`
	Score        int               `json:"score"`
	CorrectCount int               `json:"correctCount"`
	TotalCount   int               `json:"totalCount"`
	Percentage   int               `json:"percentage"`
	Answers      []SubmittedAnswer `json:"answers"`
}

// Submit scores a learner's answers against the quiz's authoritative keys
// and persists the attempt with its answers in one transaction.
//
// Correctness is always recomputed server-side. Questions omitted from the
// submission count as wrong against the quiz's full question count. An
// empty submission is accepted and scores zero.
func (s *Service) Submit(ctx context.Context, userID, quizID string, req SubmitRequest) (SubmitResult, error) {
	if err := validate.Struct(req); err != nil {
		return SubmitResult{}, apperr.Wrap(apperr.KindValidation, "invalid submission", err)
	}

	quiz, err := s.store.GetQuiz(ctx, quizID, userID)
	if err != nil {
		return SubmitResult{}, err
	}
	questions, err := s.store.Questions(ctx, quizID, true)
	if err != nil {
		return SubmitResult{}, err
	}
	if len(questions) == 0 {
		return SubmitResult{}, apperr.Validation("quiz has no questions")
	}

	byID := make(map[string]Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	// Every submitted id must belong to this quiz; a single foreign or
	// duplicate id fails the whole submission before anything is written.
	seen := make(map[string]bool, len(req.Answers))
	correctCount := 0
	results := make([]SubmittedAnswer, 0, len(req.Answers))
	rows := make([]Answer, 0, len(req.Answers))

	for _, in := range req.Answers {
		q, ok := byID[in.QuestionID]
		if !ok {
			return SubmitResult{}, apperr.Newf(apperr.KindValidation, "invalid question ID: %s", in.QuestionID)
		}
		if seen[in.QuestionID] {
			return SubmitResult{}, apperr.Newf(apperr.KindValidation, "duplicate answer for question %s", in.QuestionID)
		}
		seen[in.QuestionID] = true

		isCorrect := in.SelectedIndex == q.CorrectIndex
		if isCorrect {
			correctCount++
		}
		results = append(results, SubmittedAnswer{
			QuestionID:    in.QuestionID,
			SelectedIndex: in.SelectedIndex,
			IsCorrect:     isCorrect,
			CorrectIndex:  q.CorrectIndex,
			Explanation:   q.Explanation,
		})
		rows = append(rows, Answer{
			ID:            uuid.NewString(),
			QuestionID:    in.QuestionID,
			SelectedIndex: in.SelectedIndex,
			IsCorrect:     isCorrect,
		})
	}

	totalCount := len(questions)
	score := int(math.Round(float64(correctCount) / float64(totalCount) * 100))

	now := time.Now().Unix()
	attempt := Attempt{
		ID:           uuid.NewString(),
		QuizID:       quiz.ID,
		UserID:       userID,
		Score:        score,
		CorrectCount: correctCount,
		WrongCount:   totalCount - correctCount,
		TotalCount:   totalCount,
		StartedAt:    now,
		SubmittedAt:  now,
	}
	if err := s.store.CreateAttempt(ctx, attempt, rows); err != nil {
		return SubmitResult{}, err
	}

	s.log.Info("quiz submitted", "quiz_id", quizID, "user_id", userID,
		"score", score, "correct", correctCount, "total", totalCount)

	return SubmitResult{
		AttemptID:    attempt.ID,
		Score:        score,
		CorrectCount: correctCount,
		TotalCount:   totalCount,
		Percentage:   score,
		Answers:      results,
	}, nil
}
