package quiz

import (
	"encoding"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/conorfennell/flipdeck/internal/domain"
)

// Errors surfaced when a session cannot start.
var (
	ErrTooFewFlashcards = errors.New("at least four flashcards are required to start a quiz")
	ErrGenerationFailed = errors.New("unable to generate a quiz with the current flashcards")
)

// Status is the lifecycle stage of a Session.
type Status int

const (
	Idle Status = iota
	InProgress
	Completed
)

var statusNames = [...]string{Idle: "idle", InProgress: "in-progress", Completed: "completed"}

var (
	_ fmt.Stringer             = Status(0)
	_ encoding.TextMarshaler   = Status(0)
	_ encoding.TextUnmarshaler = (*Status)(nil)
)

func (s Status) String() string {
	if s >= Idle && s <= Completed {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if s < Idle || s > Completed {
		return nil, fmt.Errorf("quiz: invalid status: %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("quiz: invalid status: %q", text)
}

// CardSource supplies the flashcards a session draws questions from.
type CardSource interface {
	Flashcards() []domain.Flashcard
}

// Session walks one user through a generated quiz. It is not safe for
// concurrent use; callers sharing a session must serialize access.
type Session struct {
	gen    *Generator
	source CardSource

	questions     []Question
	currentIndex  int
	answers       map[string]string
	status        Status
	err           error
	questionCount int
}

// NewSession returns an idle session. A non-positive questionCount falls back
// to the generator default.
func NewSession(gen *Generator, source CardSource, questionCount int) *Session {
	return &Session{
		gen:           gen,
		source:        source,
		answers:       make(map[string]string),
		questionCount: ResolveCount(questionCount, gen.DefaultCount()),
	}
}

// SetQuestionCount changes the count used by later starts. Non-positive values are ignored.
func (s *Session) SetQuestionCount(n int) {
	if n <= 0 {
		return
	}
	s.questionCount = n
}

// Start generates a fresh question set and moves to InProgress. When no
// question can be built the session stays Idle and Err reports why.
// Starting from Completed begins a retake with new questions.
func (s *Session) Start(requested int) {
	count := ResolveCount(requested, s.questionCount)
	s.questionCount = count

	cards := s.source.Flashcards()
	questions := s.gen.Generate(cards, count)

	s.answers = make(map[string]string)
	s.currentIndex = 0

	if len(questions) == 0 {
		s.questions = nil
		s.status = Idle
		if len(cards) < OptionsPerQuestion {
			s.err = ErrTooFewFlashcards
		} else {
			s.err = ErrGenerationFailed
		}
		return
	}

	s.questions = questions
	s.status = InProgress
	s.err = nil
}

// SelectOption records optionID as the answer to the current question,
// replacing any earlier choice. It does nothing unless the quiz is in progress.
func (s *Session) SelectOption(optionID string) {
	if s.status != InProgress {
		return
	}
	q, ok := s.CurrentQuestion()
	if !ok {
		return
	}
	s.answers[q.ID] = optionID
}

// GoToNextQuestion advances past an answered question; after the last one
// the session is Completed. Without an answer it does nothing.
func (s *Session) GoToNextQuestion() {
	if s.status != InProgress {
		return
	}
	q, ok := s.CurrentQuestion()
	if !ok {
		return
	}
	if s.answers[q.ID] == "" {
		return
	}

	if s.currentIndex >= len(s.questions)-1 {
		s.status = Completed
		return
	}
	s.currentIndex++
}

// Reset discards the quiz and returns to Idle.
func (s *Session) Reset() {
	s.questions = nil
	s.answers = make(map[string]string)
	s.currentIndex = 0
	s.status = Idle
	s.err = nil
}

// Score grades the recorded answers.
func (s *Session) Score() Score {
	return Grade(s.questions, s.answers)
}

// Attempt returns the record to report for a completed quiz.
func (s *Session) Attempt(now time.Time) (domain.QuizAttempt, bool) {
	if s.status != Completed {
		return domain.QuizAttempt{}, false
	}
	score := s.Score()
	return domain.QuizAttempt{
		TotalQuestions: score.Total,
		CorrectAnswers: score.Correct,
		SubmittedAt:    now,
	}, true
}

// CurrentQuestion returns the question being presented, if any.
func (s *Session) CurrentQuestion() (Question, bool) {
	if s.currentIndex < 0 || s.currentIndex >= len(s.questions) {
		return Question{}, false
	}
	return s.questions[s.currentIndex], true
}

func (s *Session) Status() Status           { return s.status }
func (s *Session) CurrentIndex() int        { return s.currentIndex }
func (s *Session) Questions() []Question    { return s.questions }
func (s *Session) QuestionCount() int       { return s.questionCount }
func (s *Session) Err() error               { return s.err }
func (s *Session) Answer(qID string) string { return s.answers[qID] }

// Answers returns a copy of the recorded answers.
func (s *Session) Answers() map[string]string {
	return maps.Clone(s.answers)
}
