package session

import (
	"errors"
	"fmt"
	"image"
	"math"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Config holds the controller parameters. Threshold depends on the frame
// resolution because the energy score is not normalised.
type Config struct {
	Threshold float64
	Extension time.Duration
	FPS       float64
}

func (c Config) Validate() error {
	if !(c.Threshold > 0) || math.IsInf(c.Threshold, 0) {
		return fmt.Errorf("energy threshold must be positive, got %v", c.Threshold)
	}
	if c.Extension <= 0 {
		return fmt.Errorf("extension window must be positive, got %v", c.Extension)
	}
	if !(c.FPS > 0) {
		return fmt.Errorf("output frame rate must be positive, got %v", c.FPS)
	}
	return nil
}

// Namer derives an output identifier from the session start time.
type Namer func(started time.Time) string

// DefaultNamer names outputs intrusion_<unix seconds>.avi inside dir.
func DefaultNamer(dir string) Namer {
	return func(started time.Time) string {
		return filepath.Join(dir, fmt.Sprintf("intrusion_%d.avi", started.Unix()))
	}
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func WithNamer(namer Namer) Option {
	return func(c *Controller) { c.namer = namer }
}

func WithListener(listener Listener) Option {
	return func(c *Controller) { c.listener = listener }
}

func WithLogger(logger log.FieldLogger) Option {
	return func(c *Controller) { c.log = logger }
}

// Controller is the recording session state machine. It holds at most one
// open output at a time and is not safe for concurrent use.
type Controller struct {
	cfg      Config
	sink     Sink
	listener Listener
	log      log.FieldLogger
	now      func() time.Time
	namer    Namer

	state   State
	session *Session
	handle  Handle

	lastOutput string
	collisions int
	sessions   int
}

func NewController(cfg Config, sink Sink, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, errors.New("video sink is required")
	}

	c := &Controller{
		cfg:   cfg,
		sink:  sink,
		log:   log.StandardLogger(),
		now:   time.Now,
		namer: DefaultNamer("."),
		state: Idle,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

func (c *Controller) State() State {
	return c.state
}

// Session returns a copy of the active session, or nil when idle.
func (c *Controller) Session() *Session {
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

func (c *Controller) Remaining() time.Duration {
	if c.session == nil {
		return 0
	}
	return c.session.Remaining
}

// Sessions is the number of sessions opened so far.
func (c *Controller) Sessions() int {
	return c.sessions
}

// Step runs one cycle: evaluate the energy, append the frame when
// recording, then charge the elapsed cycle time against the countdown.
func (c *Controller) Step(energy float64, frame Frame, size image.Point, elapsed time.Duration) error {
	if _, err := c.Evaluate(energy, size); err != nil {
		return err
	}
	if err := c.Record(frame); err != nil {
		return err
	}
	if _, err := c.Elapse(elapsed); err != nil {
		return err
	}
	return nil
}

// Evaluate compares energy against the threshold. A trigger while idle opens
// a new session; a trigger while recording resets the countdown to the full
// extension window.
func (c *Controller) Evaluate(energy float64, size image.Point) (bool, error) {
	if !(energy > c.cfg.Threshold) {
		return false, nil
	}

	if c.state == Idle {
		if err := c.open(size); err != nil {
			return false, err
		}
	}

	c.session.trigger(energy, c.cfg.Extension)

	c.log.WithFields(log.Fields{
		"session":   c.session.ID,
		"energy":    energy,
		"remaining": c.session.Remaining,
	}).Debug("Motion trigger")

	return true, nil
}

// Record appends frame to the open output. It is a no-op while idle.
func (c *Controller) Record(frame Frame) error {
	if c.state != Recording {
		return nil
	}

	if err := c.handle.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame to %s: %w", c.session.Output, err)
	}
	c.session.Frames++

	return nil
}

// Elapse charges elapsed against the countdown and finalizes the session
// once it reaches zero.
func (c *Controller) Elapse(elapsed time.Duration) (bool, error) {
	if c.state != Recording {
		return false, nil
	}

	if elapsed < 0 {
		elapsed = 0
	}
	c.session.Remaining -= elapsed

	if c.session.Remaining > 0 {
		return false, nil
	}

	c.log.WithField("session", c.session.ID).Info("Stopping recording due to timeout")

	return true, c.Finish(EndTimeout)
}

// Finish finalizes the active session, if any. Calling it while idle is a
// no-op, so it is safe on every exit path.
func (c *Controller) Finish(reason EndReason) error {
	if c.state != Recording {
		return nil
	}

	s, h := c.session, c.handle
	c.state = Idle
	c.session = nil
	c.handle = nil

	err := h.Close()

	report := NewReport(s, c.now(), true, reason)
	c.log.WithFields(log.Fields{
		"session":  s.ID,
		"output":   s.Output,
		"frames":   s.Frames,
		"triggers": s.Triggers,
		"duration": report.Duration,
		"reason":   reason,
	}).Info("Recording finalized")

	if c.listener != nil {
		c.listener.SessionEnded(report)
	}

	if err != nil {
		return fmt.Errorf("failed to close %s: %w", s.Output, err)
	}
	return nil
}

func (c *Controller) open(size image.Point) error {
	started := c.now()
	output := c.outputName(started)

	handle, err := c.sink.Open(output, size, c.cfg.FPS)
	if err != nil {
		return &SetupError{Op: "open output", Target: output, Err: err}
	}

	s, err := newSession(output, size, started)
	if err != nil {
		if closeErr := handle.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close %s: %w", output, closeErr))
		}
		return err
	}

	c.state = Recording
	c.session = s
	c.handle = handle
	c.sessions++

	c.log.WithFields(log.Fields{
		"session": s.ID,
		"output":  output,
		"size":    size,
	}).Info("Intrusion detected: starting recording")

	if c.listener != nil {
		c.listener.SessionStarted(NewReport(s, started, false, ""))
	}

	return nil
}

// outputName keeps identifiers unique when two sessions start within the
// same namer resolution.
func (c *Controller) outputName(started time.Time) string {
	name := c.namer(started)
	if name != c.lastOutput {
		c.lastOutput = name
		c.collisions = 0
		return name
	}

	c.collisions++
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), c.collisions, ext)
}
