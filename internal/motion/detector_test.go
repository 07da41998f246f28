package motion

import (
	"context"
	"errors"
	"image"
	"io"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"motionrecorder/internal/energy"
	"motionrecorder/internal/session"
)

type fakeFrame struct {
	index  int
	gray   bool
	closed int
}

func (f *fakeFrame) Index() int        { return f.index }
func (f *fakeFrame) Size() image.Point { return image.Pt(4, 3) }
func (f *fakeFrame) Close()            { f.closed++ }

func (f *fakeFrame) Gray() (Frame, error) {
	g := &fakeFrame{index: f.index, gray: true}
	grays = append(grays, g)
	return g, nil
}

var grays []*fakeFrame

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

// fakeSource advances the clock by step on every read, so each cycle takes
// exactly step.
type fakeSource struct {
	clock  *fakeClock
	step   time.Duration
	frames []*fakeFrame
	next   int
	err    error
	failAt int
}

func newFakeSource(clock *fakeClock, n int) *fakeSource {
	s := &fakeSource{clock: clock, step: time.Second, failAt: -1}
	for i := 0; i < n; i++ {
		s.frames = append(s.frames, &fakeFrame{index: i})
	}
	return s
}

func (s *fakeSource) Read() (Frame, error) {
	s.clock.t = s.clock.t.Add(s.step)
	if s.next == s.failAt {
		return nil, s.err
	}
	if s.next >= len(s.frames) {
		return nil, ErrEndOfStream
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

// fakeEstimator yields a 1x1 field whose energy is energies[curr.Index()].
type fakeEstimator struct {
	energies map[int]float64
	pairs    [][2]int
	onCall   func(curr int)
	err      error
}

func (e *fakeEstimator) Estimate(prev, curr Frame) (*energy.Field, error) {
	e.pairs = append(e.pairs, [2]int{prev.Index(), curr.Index()})
	if e.onCall != nil {
		e.onCall(curr.Index())
	}
	if e.err != nil {
		return nil, e.err
	}
	f := energy.NewField(1, 1)
	f.DX[0] = float32(e.energies[curr.Index()])
	return f, nil
}

type fakeHandle struct {
	frames []int
	closed int
}

func (h *fakeHandle) Write(frame session.Frame) error {
	h.frames = append(h.frames, frame.(Frame).Index())
	return nil
}

func (h *fakeHandle) Close() error {
	h.closed++
	return nil
}

type fakeSink struct {
	opened  []*fakeHandle
	openErr error
}

func (s *fakeSink) Open(string, image.Point, float64) (session.Handle, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	h := &fakeHandle{}
	s.opened = append(s.opened, h)
	return h, nil
}

type fakeAnnotator struct {
	annotated []int
}

func (a *fakeAnnotator) Annotate(frame Frame, _ time.Time) {
	a.annotated = append(a.annotated, frame.Index())
}

func quietLogger() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

type harness struct {
	clock     *fakeClock
	source    *fakeSource
	estimator *fakeEstimator
	sink      *fakeSink
	listener  *endListener
	detector  *MotionDetector
}

type endListener struct {
	reasons []string
}

func (l *endListener) SessionStarted(*session.Report) {}
func (l *endListener) SessionEnded(r *session.Report) { l.reasons = append(l.reasons, r.Reason) }

func newHarness(t *testing.T, frames int, energies map[int]float64, opts ...DetectorOption) *harness {
	t.Helper()
	grays = nil

	h := &harness{
		clock:     &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		estimator: &fakeEstimator{energies: energies},
		sink:      &fakeSink{},
		listener:  &endListener{},
	}
	h.source = newFakeSource(h.clock, frames)

	controller, err := session.NewController(
		session.Config{Threshold: 1000, Extension: 30 * time.Second, FPS: 10},
		h.sink,
		session.WithClock(h.clock.now),
		session.WithLogger(quietLogger()),
		session.WithListener(h.listener),
	)
	require.NoError(t, err)

	opts = append([]DetectorOption{WithClock(h.clock.now), WithLogger(quietLogger())}, opts...)
	h.detector = NewMotionDetector(h.source, h.estimator, controller, opts...)

	return h
}

func TestFirstFrameOnlySeeds(t *testing.T) {
	h := newHarness(t, 1, nil)

	require.NoError(t, h.detector.Detect(context.Background()))

	assert.Empty(t, h.estimator.pairs)
	assert.Equal(t, 1, h.detector.Stats().Cycles)
	assert.Equal(t, 0, h.detector.Stats().Scored)
}

func TestEstimatorAlwaysSeesImmediatePredecessor(t *testing.T) {
	h := newHarness(t, 6, nil)

	require.NoError(t, h.detector.Detect(context.Background()))

	assert.Equal(t, [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 5}}, h.estimator.pairs)
}

func TestSingleSpikeThroughDetector(t *testing.T) {
	// Frame 0 seeds; frame 1 is the first scored cycle.
	h := newHarness(t, 41, map[int]float64{1: 5000})

	require.NoError(t, h.detector.Detect(context.Background()))

	require.Len(t, h.sink.opened, 1)
	expected := make([]int, 0, 30)
	for i := 1; i <= 30; i++ {
		expected = append(expected, i)
	}
	assert.Equal(t, expected, h.sink.opened[0].frames)
	assert.Equal(t, 1, h.sink.opened[0].closed)
	assert.Equal(t, []string{"timeout"}, h.listener.reasons)
	assert.Equal(t, 5000.0, h.detector.Stats().PeakEnergy)
}

func TestEndOfStreamWhileRecordingClosesOnce(t *testing.T) {
	h := newHarness(t, 5, map[int]float64{2: 5000})

	require.NoError(t, h.detector.Detect(context.Background()))

	require.Len(t, h.sink.opened, 1)
	assert.Equal(t, []int{2, 3, 4}, h.sink.opened[0].frames)
	assert.Equal(t, 1, h.sink.opened[0].closed)
	assert.Equal(t, []string{"end-of-stream"}, h.listener.reasons)
}

func TestNilFrameIsEndOfStream(t *testing.T) {
	h := newHarness(t, 3, map[int]float64{1: 5000})
	h.source.failAt = 3
	h.source.err = nil

	require.NoError(t, h.detector.Detect(context.Background()))

	assert.Equal(t, 1, h.sink.opened[0].closed)
	assert.Equal(t, []string{"end-of-stream"}, h.listener.reasons)
}

func TestCancellationFinalizesSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHarness(t, 100, map[int]float64{1: 5000})
	h.estimator.onCall = func(curr int) {
		if curr == 4 {
			cancel()
		}
	}

	require.NoError(t, h.detector.Detect(ctx))

	require.Len(t, h.sink.opened, 1)
	assert.Equal(t, []int{1, 2, 3, 4}, h.sink.opened[0].frames)
	assert.Equal(t, 1, h.sink.opened[0].closed)
	assert.Equal(t, []string{"interrupt"}, h.listener.reasons)
	assert.Equal(t, 5, h.source.next)
}

func TestReadFailureIsReturnedAndSessionClosed(t *testing.T) {
	h := newHarness(t, 10, map[int]float64{1: 5000})
	h.source.failAt = 3
	h.source.err = errors.New("device unplugged")

	err := h.detector.Detect(context.Background())

	assert.ErrorContains(t, err, "device unplugged")
	assert.Equal(t, 1, h.sink.opened[0].closed)
	assert.Equal(t, []string{"error"}, h.listener.reasons)
}

func TestSinkOpenFailureIsFatal(t *testing.T) {
	h := newHarness(t, 10, map[int]float64{2: 5000})
	h.sink.openErr = errors.New("read-only filesystem")

	err := h.detector.Detect(context.Background())

	require.Error(t, err)
	assert.True(t, session.IsSetupError(err))
	assert.Equal(t, 3, h.source.next)
	assert.Empty(t, h.listener.reasons)
}

func TestEstimatorFailureIsReturned(t *testing.T) {
	h := newHarness(t, 10, nil)
	h.estimator.err = errors.New("size mismatch")

	err := h.detector.Detect(context.Background())

	assert.ErrorContains(t, err, "size mismatch")
}

func TestFramesAreReleased(t *testing.T) {
	h := newHarness(t, 8, map[int]float64{3: 5000})

	require.NoError(t, h.detector.Detect(context.Background()))

	for _, f := range h.source.frames {
		assert.Equal(t, 1, f.closed, "frame %d", f.index)
	}
	require.Len(t, grays, 8)
	for _, g := range grays {
		assert.Equal(t, 1, g.closed, "gray frame %d", g.index)
	}
}

func TestAnnotatorSeesScoredFrames(t *testing.T) {
	annotator := &fakeAnnotator{}
	h := newHarness(t, 4, nil, WithAnnotator(annotator))

	require.NoError(t, h.detector.Detect(context.Background()))

	assert.Equal(t, []int{1, 2, 3}, annotator.annotated)
}

func TestCancelledBeforeFirstCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := newHarness(t, 10, nil)

	require.NoError(t, h.detector.Detect(ctx))
	assert.Equal(t, 0, h.source.next)
}
