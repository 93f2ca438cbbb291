// Package study applies answers from the study flow to the spaced-repetition
// state map and graduates cards into the learned set.
package study

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/conorfennell/flipdeck/internal/srs"
)

// CardMarker flips a card into the learned set.
type CardMarker interface {
	MarkLearned(id string) error
}

// Result describes the state of a card after one answer.
type Result struct {
	CardID    string    `json:"cardId"`
	State     srs.State `json:"state"`
	Graduated bool      `json:"graduated"`
	Due       time.Time `json:"due"`
}

// Service records study answers against a state store.
type Service struct {
	store  srs.Store
	cards  CardMarker
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a Service. cards may be nil, in which case graduation
// is reported but never applied.
func NewService(store srs.Store, cards CardMarker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, cards: cards, logger: logger, now: time.Now}
}

// RecordAnswer loads the card's state (default when absent), applies the
// answer and saves the map. Graduation is only checked after a correct answer.
// The new state is saved even if marking the card learned fails.
func (s *Service) RecordAnswer(ctx context.Context, cardID string, correct bool) (Result, error) {
	states, err := s.store.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load study state: %w", err)
	}
	if states == nil {
		states = make(map[string]srs.State)
	}

	current, ok := states[cardID]
	if !ok {
		current = srs.DefaultState()
	}
	next := srs.RecordAnswer(current, correct)
	states[cardID] = next

	if err := s.store.Save(ctx, states); err != nil {
		return Result{}, fmt.Errorf("failed to save study state for card %s: %w", cardID, err)
	}

	res := Result{
		CardID:    cardID,
		State:     next,
		Graduated: correct && srs.ShouldGraduate(next),
		Due:       srs.DueDate(next, s.now()),
	}

	s.logger.Debug("Recorded answer", "card", cardID, "correct", correct,
		"interval", next.Interval, "ease", next.EaseFactor, "repetition", next.Repetition)

	if res.Graduated && s.cards != nil {
		if err := s.cards.MarkLearned(cardID); err != nil {
			return res, fmt.Errorf("failed to mark card %s as learned: %w", cardID, err)
		}
		s.logger.Info("Card graduated", "card", cardID)
	}
	return res, nil
}

// State returns the stored state of a card, or the default when none exists.
func (s *Service) State(ctx context.Context, cardID string) (srs.State, error) {
	states, err := s.store.Load(ctx)
	if err != nil {
		return srs.State{}, fmt.Errorf("failed to load study state: %w", err)
	}
	if st, ok := states[cardID]; ok {
		return st, nil
	}
	return srs.DefaultState(), nil
}

// Forget removes the state of the given cards.
func (s *Service) Forget(ctx context.Context, cardIDs ...string) error {
	if len(cardIDs) == 0 {
		return nil
	}
	states, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load study state: %w", err)
	}

	removed := 0
	for _, id := range cardIDs {
		if _, ok := states[id]; ok {
			delete(states, id)
			removed++
		}
	}
	if removed == 0 {
		return nil
	}
	if err := s.store.Save(ctx, states); err != nil {
		return fmt.Errorf("failed to save study state: %w", err)
	}
	return nil
}

// Prune removes state entries whose card is not in liveIDs and returns how
// many were removed.
func (s *Service) Prune(ctx context.Context, liveIDs []string) (int, error) {
	states, err := s.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load study state: %w", err)
	}

	live := make(map[string]struct{}, len(liveIDs))
	for _, id := range liveIDs {
		live[id] = struct{}{}
	}

	var orphans []string
	for id := range states {
		if _, ok := live[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	for _, id := range orphans {
		delete(states, id)
	}
	if err := s.store.Save(ctx, states); err != nil {
		return 0, fmt.Errorf("failed to save study state: %w", err)
	}
	s.logger.Info("Pruned orphaned study state", "count", len(orphans))
	return len(orphans), nil
}
