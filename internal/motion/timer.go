package motion

import "time"

// CycleTimer measures the wall-clock time between consecutive laps, which is
// the duration of one full cycle including capture and estimation. Slow
// cycles therefore consume the recording window faster.
type CycleTimer struct {
	now  func() time.Time
	last time.Time
}

func NewCycleTimer(now func() time.Time) *CycleTimer {
	return &CycleTimer{now: now, last: now()}
}

func (t *CycleTimer) Reset() {
	t.last = t.now()
}

// Lap returns the time since the previous lap (or reset), never negative.
func (t *CycleTimer) Lap() time.Duration {
	now := t.now()
	elapsed := now.Sub(t.last)
	t.last = now

	if elapsed < 0 {
		return 0
	}
	return elapsed
}
