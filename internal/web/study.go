package web

import (
	"github.com/gofiber/fiber/v2"

	"github.com/conorfennell/flipdeck/internal/collection"
	"github.com/conorfennell/flipdeck/internal/srs"
	"github.com/conorfennell/flipdeck/internal/study"
)

type studyAnswerRequest struct {
	Correct *bool `json:"correct" validate:"required"`
}

type studyAnswerResponse struct {
	Result  study.Result `json:"result"`
	Learned bool         `json:"learned"`
	Tally   study.Tally  `json:"tally"`
}

func (s *Server) handleGetStudyState() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("cardId")
		if _, ok := s.cards.Flashcard(id); !ok {
			return collection.ErrNotFound
		}
		state, err := s.study.State(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"cardId": id,
			"state":  state,
			"due":    srs.DueDate(state, s.now()),
		})
	}
}

// handleStudyAnswer records a study answer. Cards in a locked category are
// refused before their schedule is touched; a graduating card is marked
// learned and the collection saved.
func (s *Server) handleStudyAnswer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req studyAnswerRequest
		if err := s.parseBody(c, &req); err != nil {
			return err
		}
		id := c.Params("cardId")

		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		card, ok := s.cards.Flashcard(id)
		if !ok {
			return collection.ErrNotFound
		}
		if s.cards.IsCategoryLocked(card.CategoryID) {
			return collection.ErrCategoryLocked
		}

		res, err := s.study.RecordAnswer(c.UserContext(), id, *req.Correct)
		if err != nil {
			return err
		}
		s.tally.Record(*req.Correct)
		if res.Graduated {
			if err := s.persist(); err != nil {
				return err
			}
		}

		card, _ = s.cards.Flashcard(id)
		return c.JSON(studyAnswerResponse{Result: res, Learned: card.Learned, Tally: s.tally})
	}
}

// handleGetTally returns the study answer counters since the last reset.
func (s *Server) handleGetTally() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		return c.JSON(s.tally)
	}
}

// handleResetTally starts a new study run.
func (s *Server) handleResetTally() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		s.tally.Reset()
		return c.JSON(s.tally)
	}
}
