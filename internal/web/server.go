// Package web exposes the collection, study schedule, quiz sessions and quiz
// history over a JSON API.
package web

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/conorfennell/flipdeck/internal/collection"
	"github.com/conorfennell/flipdeck/internal/domain"
	"github.com/conorfennell/flipdeck/internal/quiz"
	"github.com/conorfennell/flipdeck/internal/study"
)

// Repository persists the collection and quiz history. *storage.DB satisfies it.
type Repository interface {
	GetCollections() (domain.Collection, error)
	ReplaceCollections(coll domain.Collection) error
	RecordQuizAttempt(attempt domain.QuizAttempt) (domain.QuizAttempt, error)
	QuizAttemptSummary(days int, now time.Time) ([]domain.DailyQuizSummary, error)
}

// Config tunes the server.
type Config struct {
	// RateLimitMax is the number of requests per minute per client IP. Zero disables the limiter.
	RateLimitMax int
	// RequestLog receives one line per request. Nil disables request logging.
	RequestLog io.Writer
	// SessionTTL is how long an idle quiz session is kept. Zero means DefaultSessionTTL.
	SessionTTL time.Duration
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	app      *fiber.App
	repo     Repository
	cards    *collection.Store
	study    *study.Service
	gen      *quiz.Generator
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time

	// writeMu serializes collection mutations with the snapshot written after them.
	writeMu sync.Mutex

	sessionsMu sync.Mutex
	sessions   map[string]*quizSession
	sessionTTL time.Duration

	// tally counts study answers since the last reset. Guarded by writeMu.
	tally study.Tally
}

// NewServer creates and configures a new server.
func NewServer(repo Repository, cards *collection.Store, studySvc *study.Service, gen *quiz.Generator, log *slog.Logger, cfg Config) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		repo:       repo,
		cards:      cards,
		study:      studySvc,
		gen:        gen,
		logger:     log,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		now:        time.Now,
		sessions:   make(map[string]*quizSession),
		sessionTTL: cfg.SessionTTL,
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "flipdeck",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	if cfg.RequestLog != nil {
		s.app.Use(logger.New(logger.Config{Output: cfg.RequestLog}))
	}
	if cfg.RateLimitMax > 0 {
		s.app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimitMax,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
		}))
	}
	s.routes()
	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves HTTP on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	api := s.app.Group("/api")

	api.Get("/collections", s.handleGetCollections())
	api.Put("/collections", s.handlePutCollections())

	api.Get("/categories", s.handleGetCategories())
	api.Post("/categories", s.handleCreateCategory())
	api.Patch("/categories/:id", s.handleRenameCategory())
	api.Post("/categories/:id/lock", s.handleToggleLock())
	api.Delete("/categories/:id", s.handleDeleteCategory())

	api.Get("/flashcards", s.handleListFlashcards())
	api.Post("/flashcards", s.handleCreateFlashcard())
	api.Patch("/flashcards/:id", s.handleUpdateFlashcard())
	api.Delete("/flashcards/:id", s.handleDeleteFlashcard())
	api.Post("/flashcards/:id/learned", s.handleSetLearned(true))
	api.Delete("/flashcards/:id/learned", s.handleSetLearned(false))

	api.Get("/study/tally", s.handleGetTally())
	api.Delete("/study/tally", s.handleResetTally())
	api.Get("/study/:cardId", s.handleGetStudyState())
	api.Post("/study/:cardId/answer", s.handleStudyAnswer())

	api.Get("/progress", s.handleGetProgress())
	api.Get("/quiz-attempts", s.handleGetQuizAttempts())
	api.Post("/quiz-attempts", s.handlePostQuizAttempt())

	sessions := api.Group("/quiz/sessions")
	sessions.Post("/", s.handleCreateSession())
	sessions.Get("/:id", s.handleGetSession())
	sessions.Post("/:id/start", s.handleStartSession())
	sessions.Post("/:id/select", s.handleSelectOption())
	sessions.Post("/:id/next", s.handleNextQuestion())
	sessions.Post("/:id/reset", s.handleResetSession())
	sessions.Delete("/:id", s.handleDeleteSession())
}

// Hydrate replaces the in-memory collection with what the repository holds.
func (s *Server) Hydrate() error {
	coll, err := s.repo.GetCollections()
	if err != nil {
		return err
	}
	s.cards.Load(coll)
	return nil
}

// persist writes the current collection. Callers hold writeMu.
func (s *Server) persist() error {
	if err := s.repo.ReplaceCollections(s.cards.Snapshot()); err != nil {
		s.logger.Error("Failed to persist collection", "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to save collection")
	}
	return nil
}

// handleError renders every error as {"error": message}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal server error"

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code, msg = fe.Code, fe.Message
	case errors.Is(err, collection.ErrNotFound):
		code, msg = fiber.StatusNotFound, err.Error()
	case errors.Is(err, collection.ErrCategoryLocked), errors.Is(err, collection.ErrLastCategory):
		code, msg = fiber.StatusConflict, err.Error()
	case errors.Is(err, collection.ErrEmptyName), errors.Is(err, collection.ErrEmptyCard):
		code, msg = fiber.StatusBadRequest, err.Error()
	default:
		s.logger.Error("Unhandled request error", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

// parseBody decodes and validates a JSON request body.
func (s *Server) parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}
