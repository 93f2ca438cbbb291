// Package quiz builds multiple-choice quizzes from flashcards, tracks a quiz
// session from start to completion and grades the answers.
package quiz

import (
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/flipdeck/internal/domain"
)

const (
	// OptionsPerQuestion is the number of choices on every question.
	OptionsPerQuestion = 4
	// DefaultQuestionCount is used when neither caller nor configuration asks for a count.
	DefaultQuestionCount = 5
)

// Option is one answer choice. Its label is the back text of a flashcard.
type Option struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	FlashcardID string `json:"flashcardId"`
	IsCorrect   bool   `json:"isCorrect"`
}

// Question asks for the back text of one flashcard given its front text.
type Question struct {
	ID              string   `json:"id"`
	Prompt          string   `json:"prompt"`
	FlashcardID     string   `json:"flashcardId"`
	Options         []Option `json:"options"`
	CorrectOptionID string   `json:"correctOptionId"`
}

// Rand is the source of randomness for shuffling and sampling.
// *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

// Generator builds questions. The zero value is not usable; use NewGenerator.
type Generator struct {
	rng          Rand
	newID        func() string
	defaultCount int
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithRand replaces the time-seeded random source.
func WithRand(r Rand) GeneratorOption {
	return func(g *Generator) { g.rng = r }
}

// WithIDFunc replaces the UUID generator used for question and option ids.
func WithIDFunc(fn func() string) GeneratorOption {
	return func(g *Generator) { g.newID = fn }
}

// WithDefaultCount sets the count used when Generate is asked for zero questions.
func WithDefaultCount(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.defaultCount = n
		}
	}
}

// NewGenerator returns a Generator with the given options applied.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		newID:        uuid.NewString,
		defaultCount: DefaultQuestionCount,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DefaultCount returns the count used for non-positive requests.
func (g *Generator) DefaultCount() int {
	return g.defaultCount
}

// Generate builds up to desired questions from cards. Cards without text on
// both sides are ignored; fewer than OptionsPerQuestion usable cards yields an
// empty result. A non-positive desired count means the generator default.
func (g *Generator) Generate(cards []domain.Flashcard, desired int) []Question {
	valid := make([]domain.Flashcard, 0, len(cards))
	for _, card := range cards {
		if card.Quizzable() {
			valid = append(valid, card)
		}
	}
	if len(valid) < OptionsPerQuestion {
		return []Question{}
	}

	desired = ResolveCount(desired, g.defaultCount)

	candidates := append([]domain.Flashcard(nil), valid...)
	shuffle(g.rng, candidates)

	questions := make([]Question, 0, min(desired, len(candidates)))
	for _, card := range candidates {
		if len(questions) >= desired {
			break
		}

		pool := make([]domain.Flashcard, 0, len(valid)-1)
		for _, other := range valid {
			if other.ID != card.ID {
				pool = append(pool, other)
			}
		}
		if len(pool) < OptionsPerQuestion-1 {
			continue
		}

		options := make([]Option, 0, OptionsPerQuestion)
		for _, distractor := range sample(g.rng, pool, OptionsPerQuestion-1) {
			options = append(options, Option{
				ID:          g.newID(),
				Label:       strings.TrimSpace(distractor.Back),
				FlashcardID: distractor.ID,
			})
		}
		correct := Option{
			ID:          g.newID(),
			Label:       strings.TrimSpace(card.Back),
			FlashcardID: card.ID,
			IsCorrect:   true,
		}
		options = append(options, correct)
		shuffle(g.rng, options)

		questions = append(questions, Question{
			ID:              g.newID(),
			Prompt:          strings.TrimSpace(card.Front),
			FlashcardID:     card.ID,
			Options:         options,
			CorrectOptionID: correct.ID,
		})
	}

	return questions
}

// ResolveCount returns requested when positive, otherwise fallback, and never less than 1.
func ResolveCount(requested, fallback int) int {
	n := requested
	if n <= 0 {
		n = fallback
	}
	return max(n, 1)
}

// shuffle is an in-place Fisher-Yates shuffle.
func shuffle[T any](rng Rand, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}

// sample picks n distinct items uniformly without replacement.
func sample[T any](rng Rand, items []T, n int) []T {
	pool := append([]T(nil), items...)
	if n >= len(pool) {
		return pool
	}
	shuffle(rng, pool)
	return pool[:n]
}
