package video

import (
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"motionrecorder/internal/frame"
	"motionrecorder/internal/motion"
)

// Overlay stamps the capture time in the bottom-left corner of each frame.
type Overlay struct {
	Layout    string
	Color     color.RGBA
	Scale     float64
	Thickness int
}

func NewOverlay() *Overlay {
	return &Overlay{
		Layout:    "2006-01-02 15:04:05",
		Color:     color.RGBA{255, 255, 255, 0},
		Scale:     1.2,
		Thickness: 2,
	}
}

func (o *Overlay) Annotate(f motion.Frame, at time.Time) {
	m, ok := f.(frame.MatFrame)
	if !ok {
		return
	}

	origin := image.Pt(10, f.Size().Y-10)
	gocv.PutText(m.Mat(), at.Format(o.Layout), origin, gocv.FontHersheyPlain, o.Scale, o.Color, o.Thickness)
}
