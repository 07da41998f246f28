package motion

import (
	"errors"
	"fmt"
)

var ErrStaleFrame = errors.New("previous frame is not the immediate predecessor")

// FrameBuffer holds the intensity frame of the previous cycle. Each swap
// releases the frame it replaces.
type FrameBuffer struct {
	previous Frame
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

func (fb *FrameBuffer) Seeded() bool {
	return fb.previous != nil
}

func (fb *FrameBuffer) Previous() Frame {
	return fb.previous
}

// Check verifies that current directly follows the buffered frame.
func (fb *FrameBuffer) Check(current Frame) error {
	if fb.previous == nil {
		return nil
	}
	if current.Index() != fb.previous.Index()+1 {
		return fmt.Errorf("%w: previous %d, current %d", ErrStaleFrame, fb.previous.Index(), current.Index())
	}
	return nil
}

func (fb *FrameBuffer) Swap(current Frame) {
	if fb.previous != nil {
		fb.previous.Close()
	}
	fb.previous = current
}

func (fb *FrameBuffer) Close() {
	fb.Swap(nil)
}
