package web

import (
	"math"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/conorfennell/flipdeck/internal/domain"
)

const (
	minRangeDays = 7
	maxRangeDays = 30
)

// ClampRange bounds a requested summary range to [7, 30] days.
func ClampRange(days int) int {
	return min(max(days, minRangeDays), maxRangeDays)
}

// handleGetQuizAttempts returns one zero-filled row per UTC day.
func (s *Server) handleGetQuizAttempts() fiber.Handler {
	return func(c *fiber.Ctx) error {
		days := ClampRange(c.QueryInt("days", minRangeDays))

		data, err := s.repo.QuizAttemptSummary(days, s.now())
		if err != nil {
			s.logger.Error("Failed to fetch quiz attempt summary", "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch quiz attempt summary")
		}
		return c.JSON(fiber.Map{"rangeDays": days, "data": data})
	}
}

type quizAttemptRequest struct {
	TotalQuestions *float64 `json:"totalQuestions"`
	CorrectAnswers *float64 `json:"correctAnswers"`
	SubmittedAt    string   `json:"submittedAt"`
}

func (r quizAttemptRequest) attempt() (domain.QuizAttempt, bool) {
	if !isInt(r.TotalQuestions) || !isInt(r.CorrectAnswers) {
		return domain.QuizAttempt{}, false
	}
	total, correct := int(*r.TotalQuestions), int(*r.CorrectAnswers)
	if total <= 0 || correct < 0 || correct > total {
		return domain.QuizAttempt{}, false
	}

	// An unparseable timestamp is replaced with the time of recording.
	submitted, err := time.Parse(time.RFC3339Nano, r.SubmittedAt)
	if err != nil {
		submitted = time.Time{}
	}
	return domain.QuizAttempt{
		TotalQuestions: total,
		CorrectAnswers: correct,
		SubmittedAt:    submitted,
	}, true
}

func isInt(v *float64) bool {
	return v != nil && !math.IsInf(*v, 0) && *v == math.Trunc(*v)
}

func (s *Server) handlePostQuizAttempt() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req quizAttemptRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid quiz attempt payload")
		}
		attempt, ok := req.attempt()
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "invalid quiz attempt payload")
		}

		if _, err := s.repo.RecordQuizAttempt(attempt); err != nil {
			s.logger.Error("Failed to record quiz attempt", "error", err)
			return fiber.NewError(fiber.StatusInternalServerError, "failed to record quiz attempt")
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "ok"})
	}
}
