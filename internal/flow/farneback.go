package flow

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"motionrecorder/internal/energy"
	"motionrecorder/internal/frame"
	"motionrecorder/internal/motion"
)

// Farneback estimates dense optical flow with OpenCV's Farneback algorithm.
type Farneback struct {
	PyrScale   float64
	Levels     int
	WinSize    int
	Iterations int
	PolyN      int
	PolySigma  float64
	Flags      int
}

func NewFarneback() *Farneback {
	return &Farneback{
		PyrScale:   0.5,
		Levels:     3,
		WinSize:    15,
		Iterations: 3,
		PolyN:      5,
		PolySigma:  1.2,
		Flags:      0,
	}
}

func (fb *Farneback) Estimate(prev, curr motion.Frame) (*energy.Field, error) {
	prevMat, err := matOf(prev)
	if err != nil {
		return nil, err
	}
	currMat, err := matOf(curr)
	if err != nil {
		return nil, err
	}

	if prev.Size() != curr.Size() {
		return nil, fmt.Errorf("frame size mismatch: %v vs %v", prev.Size(), curr.Size())
	}

	flow := gocv.NewMat()
	defer flow.Close()

	gocv.CalcOpticalFlowFarneback(*prevMat, *currMat, &flow,
		fb.PyrScale, fb.Levels, fb.WinSize, fb.Iterations, fb.PolyN, fb.PolySigma, fb.Flags)

	parts := gocv.Split(flow)
	defer func() {
		for _, p := range parts {
			p.Close()
		}
	}()
	if len(parts) != 2 {
		return nil, fmt.Errorf("expected 2 flow channels, got %d", len(parts))
	}

	dx, err := parts[0].DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("unable to read horizontal flow: %w", err)
	}
	dy, err := parts[1].DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("unable to read vertical flow: %w", err)
	}

	field := energy.NewField(flow.Cols(), flow.Rows())
	copy(field.DX, dx)
	copy(field.DY, dy)

	return field, field.Validate()
}

func matOf(f motion.Frame) (*gocv.Mat, error) {
	m, ok := f.(frame.MatFrame)
	if !ok {
		return nil, errors.New("frame is not backed by an OpenCV matrix")
	}
	return m.Mat(), nil
}
