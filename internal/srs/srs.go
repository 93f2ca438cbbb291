// Package srs implements the per-card spaced-repetition schedule used by the
// study flow: interval, ease factor and repetition count updated on every
// answer, and the graduation rule that marks a card as learned.
package srs

import (
	"math"
	"time"
)

const (
	// DefaultEaseFactor is the ease factor of a card that has never been answered.
	DefaultEaseFactor = 2.5
	// MinEaseFactor is the floor the ease factor never drops below.
	MinEaseFactor = 1.3

	// GraduationRepetitions and GraduationInterval must both be reached
	// for a card to graduate.
	GraduationRepetitions = 3
	GraduationInterval    = 7
)

// The ease update is SM-2's formula with the recall grade pinned, so every
// answer, right or wrong, moves the factor by the same amount (-0.54).
const (
	easeQuality = 1
	easeDelta   = 0.1 - (5-easeQuality)*(0.08+(5-easeQuality)*0.02)
)

// State holds the scheduling state of one card.
type State struct {
	Interval   int     `json:"interval"`   // days until the next review
	EaseFactor float64 `json:"easeFactor"` // interval multiplier, >= MinEaseFactor
	Repetition int     `json:"repetition"` // consecutive correct answers
}

// DefaultState returns the state of a card with no recorded answers.
func DefaultState() State {
	return State{Interval: 0, EaseFactor: DefaultEaseFactor, Repetition: 0}
}

// RecordAnswer computes the state that follows answering a card.
// A miss resets interval and repetition but keeps the ease factor.
func RecordAnswer(state State, correct bool) State {
	next := state

	if correct {
		switch state.Interval {
		case 0:
			next.Interval = 1
		case 1:
			next.Interval = 3
		default:
			next.Interval = int(math.Round(float64(state.Interval) * state.EaseFactor))
		}
		next.Repetition = state.Repetition + 1
	} else {
		next.Interval = 0
		next.Repetition = 0
	}

	next.EaseFactor = math.Max(MinEaseFactor, state.EaseFactor+easeDelta)
	return next
}

// ShouldGraduate reports whether a card in the given state counts as learned.
// Callers only ask after a correct answer.
func ShouldGraduate(state State) bool {
	return state.Repetition >= GraduationRepetitions && state.Interval >= GraduationInterval
}

// DueDate returns when a card in the given state is next due, counted in
// whole days from the given time.
func DueDate(state State, from time.Time) time.Time {
	return from.AddDate(0, 0, state.Interval)
}
