package srs

import (
	"encoding/json"
	"fmt"
	"math"
)

// StorageKey is the key the whole state map is persisted under.
const StorageKey = "spacedRepetitionData"

type rawState struct {
	Interval   *float64 `json:"interval"`
	EaseFactor *float64 `json:"easeFactor"`
	Repetition *float64 `json:"repetition"`
}

// DecodeStates parses a persisted state map keyed by card id.
// An entry with missing, non-numeric or out-of-range fields is replaced with
// DefaultState; only a document that is not a JSON object is an error.
func DecodeStates(data []byte) (map[string]State, error) {
	states := make(map[string]State)
	if len(data) == 0 {
		return states, nil
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode scheduling states: %w", err)
	}

	for id, entry := range entries {
		states[id] = decodeEntry(entry)
	}
	return states, nil
}

func decodeEntry(entry json.RawMessage) State {
	var raw rawState
	if err := json.Unmarshal(entry, &raw); err != nil {
		return DefaultState()
	}
	if raw.Interval == nil || raw.EaseFactor == nil || raw.Repetition == nil {
		return DefaultState()
	}
	for _, v := range []float64{*raw.Interval, *raw.EaseFactor, *raw.Repetition} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return DefaultState()
		}
	}

	return State{
		Interval:   int(math.Round(*raw.Interval)),
		EaseFactor: math.Max(MinEaseFactor, *raw.EaseFactor),
		Repetition: int(math.Round(*raw.Repetition)),
	}
}

// EncodeStates serializes a state map in the shape DecodeStates reads.
func EncodeStates(states map[string]State) ([]byte, error) {
	if states == nil {
		states = map[string]State{}
	}
	data, err := json.Marshal(states)
	if err != nil {
		return nil, fmt.Errorf("encode scheduling states: %w", err)
	}
	return data, nil
}
