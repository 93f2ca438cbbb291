package web

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lithammer/shortuuid/v4"

	"github.com/conorfennell/flipdeck/internal/collection"
	"github.com/conorfennell/flipdeck/internal/domain"
	"github.com/conorfennell/flipdeck/internal/quiz"
)

// DefaultSessionTTL is how long an untouched quiz session is kept.
const DefaultSessionTTL = 30 * time.Minute

// quizSession pairs a session with whether its completed attempt was recorded.
// lastUsed is guarded by Server.sessionsMu, the rest by mu.
type quizSession struct {
	mu       sync.Mutex
	id       string
	session  *quiz.Session
	recorded bool
	lastUsed time.Time
}

// categoryCards draws quiz cards from a single category.
type categoryCards struct {
	store      *collection.Store
	categoryID string
}

func (cc categoryCards) Flashcards() []domain.Flashcard {
	return cc.store.ByCategory(cc.categoryID)
}

type optionView struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type questionView struct {
	ID               string       `json:"id"`
	Prompt           string       `json:"prompt"`
	Options          []optionView `json:"options"`
	SelectedOptionID string       `json:"selectedOptionId,omitempty"`
}

// reviewView shows one graded question of a completed quiz.
type reviewView struct {
	ID               string       `json:"id"`
	Prompt           string       `json:"prompt"`
	Options          []optionView `json:"options"`
	SelectedOptionID string       `json:"selectedOptionId,omitempty"`
	CorrectOptionID  string       `json:"correctOptionId"`
	Correct          bool         `json:"correct"`
}

type sessionView struct {
	ID             string        `json:"id"`
	Status         quiz.Status   `json:"status"`
	CurrentIndex   int           `json:"currentIndex"`
	QuestionCount  int           `json:"questionCount"`
	TotalQuestions int           `json:"totalQuestions"`
	Question       *questionView `json:"question,omitempty"`
	Score          *quiz.Score   `json:"score,omitempty"`
	Review         []reviewView  `json:"review,omitempty"`
	Error          string        `json:"error,omitempty"`
}

func optionViews(options []quiz.Option) []optionView {
	out := make([]optionView, len(options))
	for i, o := range options {
		out[i] = optionView{ID: o.ID, Label: o.Label}
	}
	return out
}

func (qs *quizSession) view() sessionView {
	sess := qs.session
	v := sessionView{
		ID:             qs.id,
		Status:         sess.Status(),
		CurrentIndex:   sess.CurrentIndex(),
		QuestionCount:  sess.QuestionCount(),
		TotalQuestions: len(sess.Questions()),
	}
	if err := sess.Err(); err != nil {
		v.Error = err.Error()
	}

	// Correct options stay hidden until the quiz is completed, when answers can no longer change.
	if q, ok := sess.CurrentQuestion(); ok && sess.Status() == quiz.InProgress {
		v.Question = &questionView{
			ID:               q.ID,
			Prompt:           q.Prompt,
			Options:          optionViews(q.Options),
			SelectedOptionID: sess.Answer(q.ID),
		}
	}
	if sess.Status() == quiz.Completed {
		score := sess.Score()
		v.Score = &score

		answers := sess.Answers()
		for _, q := range sess.Questions() {
			v.Review = append(v.Review, reviewView{
				ID:               q.ID,
				Prompt:           q.Prompt,
				Options:          optionViews(q.Options),
				SelectedOptionID: answers[q.ID],
				CorrectOptionID:  q.CorrectOptionID,
				Correct:          answers[q.ID] == q.CorrectOptionID,
			})
		}
	}
	return v
}

type startRequest struct {
	QuestionCount int    `json:"questionCount" validate:"min=0"`
	CategoryID    string `json:"categoryId"`
}

// handleCreateSession creates a session and starts it. When no quiz can be
// generated the session is not kept and 422 is returned.
func (s *Server) handleCreateSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req startRequest
		if len(c.Body()) > 0 {
			if err := s.parseBody(c, &req); err != nil {
				return err
			}
		}

		var source quiz.CardSource = s.cards
		if req.CategoryID != "" {
			if _, ok := s.cards.Category(req.CategoryID); !ok {
				return collection.ErrNotFound
			}
			source = categoryCards{store: s.cards, categoryID: req.CategoryID}
		}

		qs := &quizSession{
			id:       shortuuid.New(),
			session:  quiz.NewSession(s.gen, source, s.gen.DefaultCount()),
			lastUsed: s.now(),
		}
		qs.session.Start(req.QuestionCount)
		if err := qs.session.Err(); err != nil {
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		}

		s.sessionsMu.Lock()
		s.expireSessions()
		s.sessions[qs.id] = qs
		s.sessionsMu.Unlock()

		s.logger.Debug("Quiz session started", "session", qs.id, "questions", len(qs.session.Questions()))
		return c.Status(fiber.StatusCreated).JSON(qs.view())
	}
}

func (s *Server) lookupSession(c *fiber.Ctx) (*quizSession, error) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.expireSessions()
	qs, ok := s.sessions[c.Params("id")]
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "quiz session not found")
	}
	qs.lastUsed = s.now()
	return qs, nil
}

// expireSessions drops sessions untouched for longer than the session TTL.
// Callers hold sessionsMu.
func (s *Server) expireSessions() {
	cutoff := s.now().Add(-s.sessionTTL)
	for id, qs := range s.sessions {
		if qs.lastUsed.Before(cutoff) {
			delete(s.sessions, id)
			s.logger.Debug("Quiz session expired", "session", id)
		}
	}
}

// withSession runs fn with the session locked and responds with its view.
func (s *Server) withSession(fn func(c *fiber.Ctx, qs *quizSession) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		qs, err := s.lookupSession(c)
		if err != nil {
			return err
		}
		qs.mu.Lock()
		defer qs.mu.Unlock()

		if fn != nil {
			if err := fn(c, qs); err != nil {
				return err
			}
		}
		return c.JSON(qs.view())
	}
}

func (s *Server) handleGetSession() fiber.Handler {
	return s.withSession(nil)
}

// handleStartSession starts a fresh question set, for a retake or after a reset.
func (s *Server) handleStartSession() fiber.Handler {
	return s.withSession(func(c *fiber.Ctx, qs *quizSession) error {
		var req startRequest
		if len(c.Body()) > 0 {
			if err := s.parseBody(c, &req); err != nil {
				return err
			}
		}
		qs.session.SetQuestionCount(req.QuestionCount)
		qs.session.Start(0)
		qs.recorded = false
		return nil
	})
}

type selectRequest struct {
	OptionID string `json:"optionId" validate:"required"`
}

func (s *Server) handleSelectOption() fiber.Handler {
	return s.withSession(func(c *fiber.Ctx, qs *quizSession) error {
		var req selectRequest
		if err := s.parseBody(c, &req); err != nil {
			return err
		}
		qs.session.SelectOption(req.OptionID)
		return nil
	})
}

// handleNextQuestion advances the session and records the attempt once it completes.
func (s *Server) handleNextQuestion() fiber.Handler {
	return s.withSession(func(c *fiber.Ctx, qs *quizSession) error {
		qs.session.GoToNextQuestion()
		s.recordCompletion(qs)
		return nil
	})
}

func (s *Server) handleResetSession() fiber.Handler {
	return s.withSession(func(c *fiber.Ctx, qs *quizSession) error {
		qs.session.Reset()
		qs.recorded = false
		return nil
	})
}

func (s *Server) handleDeleteSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s.sessionsMu.Lock()
		defer s.sessionsMu.Unlock()

		id := c.Params("id")
		if _, ok := s.sessions[id]; !ok {
			return fiber.NewError(fiber.StatusNotFound, "quiz session not found")
		}
		delete(s.sessions, id)
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// recordCompletion stores the attempt of a newly completed session. Failures
// are logged; the quiz result is still shown.
func (s *Server) recordCompletion(qs *quizSession) {
	if qs.recorded {
		return
	}
	attempt, ok := qs.session.Attempt(s.now())
	if !ok {
		return
	}
	qs.recorded = true
	if _, err := s.repo.RecordQuizAttempt(attempt); err != nil {
		s.logger.Error("Failed to record quiz attempt", "session", qs.id, "error", err)
		return
	}
	s.logger.Info("Quiz completed", "session", qs.id,
		"correct", attempt.CorrectAnswers, "total", attempt.TotalQuestions)
}
