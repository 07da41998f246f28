package motion

import (
	"errors"
	"image"
	"time"

	"motionrecorder/internal/energy"
)

// ErrEndOfStream is returned by a Source once no more frames are available.
// It is a graceful stop, not a failure.
var ErrEndOfStream = errors.New("end of stream")

// Frame is one captured image with its acquisition index.
type Frame interface {
	Index() int
	Size() image.Point
	// Gray returns a new single-channel intensity copy of the frame.
	Gray() (Frame, error)
	Close()
}

// Source yields frames in acquisition order. A nil frame with a nil error is
// treated like ErrEndOfStream.
type Source interface {
	Read() (Frame, error)
}

// Estimator computes the dense motion field between two intensity frames of
// identical size.
type Estimator interface {
	Estimate(prev, curr Frame) (*energy.Field, error)
}

// Annotator stamps cosmetic information on a frame before it is recorded.
// It must not change the frame size.
type Annotator interface {
	Annotate(frame Frame, at time.Time)
}
