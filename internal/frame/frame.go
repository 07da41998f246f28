package frame

import (
	"errors"
	"image"

	"gocv.io/x/gocv"

	"motionrecorder/internal/motion"
)

// MatFrame is implemented by frames backed by an OpenCV matrix.
type MatFrame interface {
	Mat() *gocv.Mat
}

type Frame struct {
	frameIndex int
	mat        *gocv.Mat
}

func NewFrame(frameIndex int, mat *gocv.Mat) (*Frame, error) {
	if mat.Empty() {
		return nil, errors.New("Frame is empty")
	}

	return &Frame{frameIndex: frameIndex, mat: mat}, nil
}

func (f *Frame) Mat() *gocv.Mat {
	return f.mat
}

func (f *Frame) Index() int {
	return f.frameIndex
}

// Gray returns a single-channel copy. Frames that are already single-channel
// are cloned as is.
func (f *Frame) Gray() (motion.Frame, error) {
	gray := gocv.NewMat()
	if f.mat.Channels() == 1 {
		f.mat.CopyTo(&gray)
	} else {
		gocv.CvtColor(*f.mat, &gray, gocv.ColorBGRToGray)
	}

	g, err := NewFrame(f.frameIndex, &gray)
	if err != nil {
		gray.Close()
		return nil, err
	}
	return g, nil
}

func (f *Frame) Height() int {
	return f.mat.Rows()
}

func (f *Frame) Width() int {
	return f.mat.Cols()
}

func (f *Frame) Size() image.Point {
	return image.Pt(f.Width(), f.Height())
}

func (f *Frame) Close() {
	f.mat.Close()
}
