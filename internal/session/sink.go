package session

import "image"

// Frame is whatever the sink knows how to encode. The controller only passes
// it through.
type Frame any

// Sink opens one output per session.
type Sink interface {
	Open(output string, size image.Point, fps float64) (Handle, error)
}

// Handle is an open output. Frames are appended in call order.
type Handle interface {
	Write(frame Frame) error
	Close() error
}

// Listener is notified of session boundaries. Implementations must not block
// the recording loop for long.
type Listener interface {
	SessionStarted(report *Report)
	SessionEnded(report *Report)
}
