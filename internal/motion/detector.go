package motion

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"motionrecorder/internal/energy"
	"motionrecorder/internal/session"
)

type Stats struct {
	Cycles     int
	Scored     int
	LastEnergy float64
	PeakEnergy float64
}

type DetectorOption func(*MotionDetector)

func WithAnnotator(annotator Annotator) DetectorOption {
	return func(md *MotionDetector) { md.annotator = annotator }
}

func WithLogger(logger log.FieldLogger) DetectorOption {
	return func(md *MotionDetector) { md.log = logger }
}

func WithClock(now func() time.Time) DetectorOption {
	return func(md *MotionDetector) { md.now = now }
}

// MotionDetector runs the capture/estimate/score/record loop for one feed.
// Cycles run strictly one after another.
type MotionDetector struct {
	source     Source
	estimator  Estimator
	controller *session.Controller
	annotator  Annotator
	log        log.FieldLogger
	now        func() time.Time

	frameBuffer *FrameBuffer
	timer       *CycleTimer
	stats       Stats
}

func NewMotionDetector(source Source, estimator Estimator, controller *session.Controller, opts ...DetectorOption) *MotionDetector {
	md := &MotionDetector{
		source:      source,
		estimator:   estimator,
		controller:  controller,
		log:         log.StandardLogger(),
		now:         time.Now,
		frameBuffer: NewFrameBuffer(),
	}
	for _, opt := range opts {
		opt(md)
	}
	md.timer = NewCycleTimer(md.now)

	return md
}

func (md *MotionDetector) Stats() Stats {
	return md.stats
}

// Detect loops until the source ends, ctx is cancelled or a cycle fails.
// End of stream and cancellation return nil. Any open session is finalized
// before Detect returns, whatever the exit path.
func (md *MotionDetector) Detect(ctx context.Context) (err error) {
	reason := session.EndOfStream

	defer md.frameBuffer.Close()
	defer func() {
		if err != nil {
			reason = session.EndFailed
		}
		if finishErr := md.controller.Finish(reason); finishErr != nil {
			err = errors.Join(err, finishErr)
		}
		md.log.WithFields(log.Fields{
			"cycles":   md.stats.Cycles,
			"sessions": md.controller.Sessions(),
			"peak":     md.stats.PeakEnergy,
			"reason":   reason,
		}).Info("Motion detector stopped")
	}()

	for {
		if ctx.Err() != nil {
			md.log.Info("Signal received, shutting down")
			reason = session.EndInterrupted
			return nil
		}

		done, err := md.cycle()
		if err != nil {
			return err
		}
		if done {
			md.log.Info("End of stream")
			return nil
		}
	}
}

func (md *MotionDetector) cycle() (bool, error) {
	currentFrame, err := md.source.Read()
	if errors.Is(err, ErrEndOfStream) || (err == nil && currentFrame == nil) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read frame: %w", err)
	}
	defer currentFrame.Close()

	md.stats.Cycles++

	grayFrame, err := currentFrame.Gray()
	if err != nil {
		return false, fmt.Errorf("failed to convert frame %d to gray: %w", currentFrame.Index(), err)
	}

	if !md.frameBuffer.Seeded() {
		md.frameBuffer.Swap(grayFrame)
		md.timer.Reset()
		return false, nil
	}

	if err := md.frameBuffer.Check(grayFrame); err != nil {
		grayFrame.Close()
		return false, err
	}

	field, err := md.estimator.Estimate(md.frameBuffer.Previous(), grayFrame)
	md.frameBuffer.Swap(grayFrame)
	if err != nil {
		return false, fmt.Errorf("failed to estimate motion for frame %d: %w", currentFrame.Index(), err)
	}

	score := energy.Score(field)
	elapsed := md.timer.Lap()
	md.record(score)

	if md.annotator != nil {
		md.annotator.Annotate(currentFrame, md.now())
	}

	if err := md.controller.Step(score, currentFrame, currentFrame.Size(), elapsed); err != nil {
		return false, err
	}

	md.log.WithFields(log.Fields{
		"frame":     currentFrame.Index(),
		"energy":    score,
		"elapsed":   elapsed,
		"state":     md.controller.State(),
		"remaining": md.controller.Remaining(),
	}).Debug("Cycle")

	return false, nil
}

func (md *MotionDetector) record(score float64) {
	md.stats.Scored++
	md.stats.LastEnergy = score
	if score > md.stats.PeakEnergy {
		md.stats.PeakEnergy = score
	}
}
