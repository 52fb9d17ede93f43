package quiz

import (
	"context"
	"math"
	"time"

	"github.com/smartlearn/smartlearn/internal/apperr"
)

const resultsWindow = 10

type AttemptResult struct {
	Attempt
	// Answers is populated only for the newest attempt in the window to
	// keep the payload bounded.
	Answers []AnswerDetail `json:"answers"`
}

type QuizStatistics struct {
	BestScore     int `json:"bestScore"`
	AverageScore  int `json:"averageScore"`
	TotalAttempts int `json:"totalAttempts"`
	Improvement   int `json:"improvement"`
}

type QuizResults struct {
	Quiz struct {
		ID             string `json:"id"`
		Title          string `json:"title"`
		TotalQuestions int    `json:"totalQuestions"`
	} `json:"quiz"`
	Attempts   []AttemptResult `json:"attempts"`
	Statistics QuizStatistics  `json:"statistics"`
}

// Results aggregates the most recent window of attempts for a quiz:
// best/average score and the improvement from the oldest attempt in the
// window to the newest.
func (s *Service) Results(ctx context.Context, userID, quizID string) (QuizResults, error) {
	attempts, err := s.store.RecentAttempts(ctx, quizID, userID, resultsWindow)
	if err != nil {
		return QuizResults{}, err
	}
	if len(attempts) == 0 {
		return QuizResults{}, apperr.NotFound("no attempts found for this quiz")
	}

	quiz, err := s.store.GetQuiz(ctx, quizID, userID)
	if err != nil {
		return QuizResults{}, err
	}

	best := attempts[0].Score
	sum := 0
	for _, a := range attempts {
		if a.Score > best {
			best = a.Score
		}
		sum += a.Score
	}
	avg := int(math.Round(float64(sum) / float64(len(attempts))))

	improvement := 0
	if len(attempts) > 1 {
		improvement = attempts[0].Score - attempts[len(attempts)-1].Score
	}

	latest, err := s.store.AttemptAnswers(ctx, attempts[0].ID)
	if err != nil {
		return QuizResults{}, err
	}

	var out QuizResults
	out.Quiz.ID = quiz.ID
	out.Quiz.Title = quiz.Title
	out.Quiz.TotalQuestions = quiz.QuestionCount
	out.Statistics = QuizStatistics{
		BestScore:     best,
		AverageScore:  avg,
		TotalAttempts: len(attempts),
		Improvement:   improvement,
	}
	for i, a := range attempts {
		ar := AttemptResult{Attempt: a, Answers: []AnswerDetail{}}
		if i == 0 {
			ar.Answers = latest
		}
		out.Attempts = append(out.Attempts, ar)
	}
	return out, nil
}

type AnalyticsOverview struct {
	TotalQuizzes  int `json:"totalQuizzes"`
	TotalAttempts int `json:"totalAttempts"`
	AverageScore  int `json:"averageScore"`
	SuccessRate   int `json:"successRate"`
}

type Analytics struct {
	Overview      AnalyticsOverview `json:"overview"`
	RecentQuizzes []QuizOverview    `json:"recentQuizzes"`
	DailyProgress []DailyStat       `json:"dailyProgress"`
}

// UserAnalytics computes cross-quiz statistics for a user over a window of
// days: totals, average score, the 5 most recent quizzes and a daily series
// for the last 7 days.
func (s *Service) UserAnalytics(ctx context.Context, userID string, days int) (Analytics, error) {
	if days <= 0 {
		days = 30
	}
	if days > 365 {
		days = 365
	}

	now := time.Now()
	since := now.AddDate(0, 0, -days).Unix()

	totalQuizzes, err := s.store.CountQuizzes(ctx, userID)
	if err != nil {
		return Analytics{}, err
	}
	attemptCount, avg, err := s.store.AttemptStatsSince(ctx, userID, since)
	if err != nil {
		return Analytics{}, err
	}
	recent, err := s.store.RecentQuizOverviews(ctx, userID, 5)
	if err != nil {
		return Analytics{}, err
	}
	weekAgo := now.AddDate(0, 0, -7).Unix()
	daily, err := s.store.DailyProgress(ctx, userID, weekAgo, 7)
	if err != nil {
		return Analytics{}, err
	}

	avgRounded := int(math.Round(avg))
	return Analytics{
		Overview: AnalyticsOverview{
			TotalQuizzes:  totalQuizzes,
			TotalAttempts: attemptCount,
			AverageScore:  avgRounded,
			SuccessRate:   avgRounded,
		},
		RecentQuizzes: orEmptyOverviews(recent),
		DailyProgress: orEmptyDaily(daily),
	}, nil
}

func orEmptyOverviews(v []QuizOverview) []QuizOverview {
	if v == nil {
		return []QuizOverview{}
	}
	return v
}

func orEmptyDaily(v []DailyStat) []DailyStat {
	if v == nil {
		return []DailyStat{}
	}
	return v
}
