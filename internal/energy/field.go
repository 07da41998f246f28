package energy

import (
	"errors"
	"fmt"
)

// Field is a dense motion field: one horizontal and one vertical
// displacement per pixel, stored row-major.
type Field struct {
	Width  int
	Height int
	DX     []float32
	DY     []float32
}

func NewField(width, height int) *Field {
	return &Field{
		Width:  width,
		Height: height,
		DX:     make([]float32, width*height),
		DY:     make([]float32, width*height),
	}
}

func (f *Field) Pixels() int {
	return f.Width * f.Height
}

func (f *Field) Validate() error {
	if f == nil {
		return errors.New("motion field is nil")
	}
	if f.Width < 0 || f.Height < 0 {
		return fmt.Errorf("invalid motion field size %dx%d", f.Width, f.Height)
	}
	if len(f.DX) != f.Pixels() || len(f.DY) != f.Pixels() {
		return fmt.Errorf("motion field planes %d/%d do not match size %dx%d",
			len(f.DX), len(f.DY), f.Width, f.Height)
	}
	return nil
}

// At returns the displacement vector at column x, row y.
func (f *Field) At(x, y int) (float32, float32) {
	i := y*f.Width + x
	return f.DX[i], f.DY[i]
}

func (f *Field) Set(x, y int, dx, dy float32) {
	i := y*f.Width + x
	f.DX[i] = dx
	f.DY[i] = dy
}
