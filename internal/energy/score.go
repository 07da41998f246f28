package energy

import "math"

// Score reduces a motion field to its kinetic energy: the square root of the
// summed squared per-pixel magnitudes. The result is not normalised by pixel
// count, so thresholds must be calibrated per resolution.
func Score(f *Field) float64 {
	if f == nil {
		return 0
	}

	n := min(len(f.DX), len(f.DY))

	sum := 0.0
	for i := 0; i < n; i++ {
		magnitude := math.Hypot(float64(f.DX[i]), float64(f.DY[i]))
		sum += math.Pow(magnitude, 2)
	}

	return math.Sqrt(sum)
}
