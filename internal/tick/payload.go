// Package tick encodes and decodes the loop state carried by the client's
// callback event.
//
// The client is the only channel able to carry state forward in time: every
// step batch ends with a SendEvent command whose arguments hold the complete
// loop state, and the next callback hands those arguments back. The wire
// format is a flat list of strings with fixed positions:
//
//	[0] kind          "tick" or "quit_done"
//	[1] start_ms      loop start, unix milliseconds
//	[2] delay_ms      pause between steps
//	[3] step          step number just rendered (1-based)
//	[4] target_index  optional, default 0
//	[5] generation    optional, default 1
package tick

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Kind identifies a callback event.
type Kind string

const (
	// KindTick asks for the next step of the loop.
	KindTick Kind = "tick"
	// KindQuitDone acknowledges that the client navigated back and the
	// conversation can be closed.
	KindQuitDone Kind = "quit_done"
)

// ErrMalformed is wrapped by Decode when the numeric fields could not be
// read and the fallback payload was used instead.
var ErrMalformed = errors.New("malformed tick payload")

// Payload is the loop state carried by one callback.
type Payload struct {
	Kind        Kind
	StartMs     int64
	DelayMs     int
	Step        int
	TargetIndex int
	Generation  int
}

// Fallback returns the payload used when decoding fails: a fresh loop on the
// first target starting now.
func Fallback(now time.Time, defaultDelayMs int) Payload {
	return Payload{
		Kind:        KindTick,
		StartMs:     now.UnixMilli(),
		DelayMs:     defaultDelayMs,
		Step:        1,
		TargetIndex: 0,
		Generation:  1,
	}
}

// KindOf returns the kind named by the first argument, or "" when args is
// empty.
func KindOf(args []string) Kind {
	if len(args) == 0 {
		return ""
	}
	return Kind(args[0])
}

// Decode rebuilds a payload from callback arguments. The returned payload is
// always usable: if any of fields 1-5 is missing or not an integer the whole
// payload is replaced by Fallback (keeping the decoded kind) and the error
// wraps ErrMalformed. There is no partial recovery.
func Decode(args []string, now time.Time, defaultDelayMs int) (Payload, error) {
	p, err := decode(args)
	if err != nil {
		fb := Fallback(now, defaultDelayMs)
		if kind := KindOf(args); kind != "" {
			fb.Kind = kind
		}
		return fb, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return p, nil
}

func decode(args []string) (Payload, error) {
	if len(args) < 4 {
		return Payload{}, fmt.Errorf("expected at least 4 arguments, got %d", len(args))
	}

	p := Payload{Kind: Kind(args[0]), TargetIndex: 0, Generation: 1}

	var err error
	if p.StartMs, err = strconv.ParseInt(args[1], 10, 64); err != nil {
		return Payload{}, fmt.Errorf("start_ms: %w", err)
	}
	if p.DelayMs, err = strconv.Atoi(args[2]); err != nil {
		return Payload{}, fmt.Errorf("delay_ms: %w", err)
	}
	if p.Step, err = strconv.Atoi(args[3]); err != nil {
		return Payload{}, fmt.Errorf("step: %w", err)
	}
	if len(args) > 4 {
		if p.TargetIndex, err = strconv.Atoi(args[4]); err != nil {
			return Payload{}, fmt.Errorf("target_index: %w", err)
		}
	}
	if len(args) > 5 {
		if p.Generation, err = strconv.Atoi(args[5]); err != nil {
			return Payload{}, fmt.Errorf("generation: %w", err)
		}
	}
	return p, nil
}

// Encode returns the callback arguments for p. A quit_done payload encodes
// to a single element; anything else encodes as a six-field tick.
func Encode(p Payload) []string {
	if p.Kind == KindQuitDone {
		return QuitDone()
	}
	return []string{
		string(KindTick),
		strconv.FormatInt(p.StartMs, 10),
		strconv.Itoa(p.DelayMs),
		strconv.Itoa(p.Step),
		strconv.Itoa(p.TargetIndex),
		strconv.Itoa(p.Generation),
	}
}

// QuitDone returns the arguments of the termination acknowledgement.
func QuitDone() []string {
	return []string{string(KindQuitDone)}
}
