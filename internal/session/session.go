package session

import (
	"fmt"
	"image"
	"time"

	uuid "github.com/gofrs/uuid/v5"
)

type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EndReason tells why a session was finalized.
type EndReason string

const (
	EndTimeout     EndReason = "timeout"
	EndOfStream    EndReason = "end-of-stream"
	EndInterrupted EndReason = "interrupt"
	EndFailed      EndReason = "error"
)

// Session is one contiguous recording episode.
type Session struct {
	ID         uuid.UUID
	Output     string
	Size       image.Point
	Started    time.Time
	Remaining  time.Duration
	Frames     int
	Triggers   int
	PeakEnergy float64
}

var newSessionID = uuid.NewV4

func newSession(output string, size image.Point, started time.Time) (*Session, error) {
	ref, err := newSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session UUID: %w", err)
	}

	return &Session{
		ID:      ref,
		Output:  output,
		Size:    size,
		Started: started,
	}, nil
}

func (s *Session) trigger(energy float64, window time.Duration) {
	s.Remaining = window
	s.Triggers++
	if energy > s.PeakEnergy {
		s.PeakEnergy = energy
	}
}
