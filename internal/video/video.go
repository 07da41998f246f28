package video

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"motionrecorder/internal/frame"
	"motionrecorder/internal/session"
)

const DefaultCodec = "MJPG"

// Writer opens one video file per recording session. Output is written at a
// fixed frame rate regardless of the capture rate.
type Writer struct {
	codec string
}

func NewWriter(codec string) *Writer {
	if codec == "" {
		codec = DefaultCodec
	}
	return &Writer{codec: codec}
}

func (w *Writer) Open(output string, size image.Point, fps float64) (session.Handle, error) {
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	writer, err := gocv.VideoWriterFile(output, w.codec, fps, size.X, size.Y, true)
	if err != nil {
		return nil, fmt.Errorf("unable to open video writer: %w", err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, errors.New("could not open the output video file for write")
	}

	return &clip{writer: writer, size: size}, nil
}

type clip struct {
	writer *gocv.VideoWriter
	size   image.Point
}

func (c *clip) Write(f session.Frame) error {
	m, ok := f.(frame.MatFrame)
	if !ok {
		return fmt.Errorf("unsupported frame type %T", f)
	}

	mat := m.Mat()
	if got := image.Pt(mat.Cols(), mat.Rows()); got != c.size {
		return fmt.Errorf("frame size %v does not match output size %v", got, c.size)
	}

	return c.writer.Write(*mat)
}

func (c *clip) Close() error {
	return c.writer.Close()
}
