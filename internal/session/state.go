// Package session holds the per-conversation state of a slideshow loop.
//
// The only thing the server remembers between callbacks is the loop
// generation: an integer stamped on every loop instance and bumped each time
// the user picks another camera. Callbacks carrying an older generation
// belong to a superseded loop and are ignored.
//
// The state travels inside the assistant's session attributes. FromAttributes
// and Attributes convert at that boundary; everything past it works on the
// typed State.
package session

import (
	"encoding/json"
	"strconv"
)

// AttributeGeneration is the session attribute key carrying the generation.
const AttributeGeneration = "gen"

// State is the typed conversation state. The zero value means "no loop has
// been started yet".
type State struct {
	generation int
}

// New returns a State with the given generation already set.
func New(generation int) *State {
	return &State{generation: generation}
}

// Current returns the active generation, or 1 when none has been set.
func (s *State) Current() int {
	if s.generation <= 0 {
		return 1
	}
	return s.generation
}

// Bump increments the generation (from 0 when unset) and returns the new
// value.
func (s *State) Bump() int {
	if s.generation < 0 {
		s.generation = 0
	}
	s.generation++
	return s.generation
}

// Reset overwrites the generation.
func (s *State) Reset(value int) {
	s.generation = value
}

// IsSet reports whether a generation has been stored.
func (s *State) IsSet() bool {
	return s.generation > 0
}

// FromAttributes decodes the state from session attributes. Values that
// cannot be read as an integer are treated as absent.
func FromAttributes(attrs map[string]any) *State {
	s := &State{}
	raw, ok := attrs[AttributeGeneration]
	if !ok {
		return s
	}

	switch v := raw.(type) {
	case float64:
		s.generation = int(v)
	case int:
		s.generation = v
	case int64:
		s.generation = int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			s.generation = int(n)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			s.generation = n
		}
	}
	return s
}

// Attributes encodes the state for the response envelope. An unset state
// encodes to nil so that no attributes are echoed back.
func (s *State) Attributes() map[string]any {
	if !s.IsSet() {
		return nil
	}
	return map[string]any{AttributeGeneration: s.generation}
}
