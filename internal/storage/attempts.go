package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/flipdeck/internal/domain"
)

var (
	ErrInvalidTotal   = errors.New("storage: totalQuestions must be a positive integer")
	ErrInvalidCorrect = errors.New("storage: correctAnswers must be a non-negative integer")
	ErrCorrectExceeds = errors.New("storage: correctAnswers cannot exceed totalQuestions")
)

// ValidateAttempt checks the counts of a quiz attempt.
func ValidateAttempt(totalQuestions, correctAnswers int) error {
	switch {
	case totalQuestions <= 0:
		return ErrInvalidTotal
	case correctAnswers < 0:
		return ErrInvalidCorrect
	case correctAnswers > totalQuestions:
		return ErrCorrectExceeds
	}
	return nil
}

// RecordQuizAttempt stores a completed quiz. A zero SubmittedAt means now.
// The stored attempt, with its generated id, is returned.
func (db *DB) RecordQuizAttempt(attempt domain.QuizAttempt) (domain.QuizAttempt, error) {
	if err := ValidateAttempt(attempt.TotalQuestions, attempt.CorrectAnswers); err != nil {
		return attempt, err
	}
	if attempt.SubmittedAt.IsZero() {
		attempt.SubmittedAt = db.now()
	}
	attempt.SubmittedAt = attempt.SubmittedAt.UTC().Truncate(time.Millisecond)
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}

	_, err := db.conn.Exec(`
		INSERT INTO quiz_attempts (id, total_questions, correct_answers, created_at)
		VALUES (?, ?, ?, ?)
	`, attempt.ID, attempt.TotalQuestions, attempt.CorrectAnswers, formatTime(attempt.SubmittedAt))
	if err != nil {
		return attempt, fmt.Errorf("failed to insert quiz attempt: %w", err)
	}
	return attempt, nil
}

// QuizAttemptSummary returns one row per UTC day for the last days days,
// ending with the day of now. Days without attempts are zero-filled.
func (db *DB) QuizAttemptSummary(days int, now time.Time) ([]domain.DailyQuizSummary, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", days)
	}

	today := now.UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -(days - 1))

	rows, err := db.conn.Query(`
		SELECT
			substr(created_at, 1, 10) AS day,
			COUNT(*),
			COALESCE(SUM(total_questions), 0),
			COALESCE(SUM(correct_answers), 0)
		FROM quiz_attempts
		WHERE created_at >= ?
		GROUP BY day
		ORDER BY day ASC
	`, formatTime(start))
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz attempt summary: %w", err)
	}
	defer rows.Close()

	byDate := make(map[string]domain.DailyQuizSummary)
	for rows.Next() {
		var s domain.DailyQuizSummary
		if err := rows.Scan(&s.Date, &s.AttemptCount, &s.TotalQuestions, &s.CorrectAnswers); err != nil {
			return nil, fmt.Errorf("failed to scan quiz attempt summary row: %w", err)
		}
		byDate[s.Date] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read quiz attempt summary: %w", err)
	}

	summary := make([]domain.DailyQuizSummary, 0, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(time.DateOnly)
		row, ok := byDate[date]
		if !ok {
			row = domain.DailyQuizSummary{Date: date}
		}
		summary = append(summary, row)
	}
	return summary, nil
}
