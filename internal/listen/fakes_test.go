package listen

import (
	"context"
	"io"
	"sync"
	"time"

	"hark/internal/asr"
	"hark/internal/audio"
)

type read struct {
	data []byte
	err  error
}

// fakeSource hands out scripted reads and blocks once they run out, unless
// closed, in which case it reports io.EOF.
type fakeSource struct {
	reads      chan read
	mu         sync.Mutex
	calibrated int
	calErr     error
}

func newFakeSource(buffer int) *fakeSource {
	return &fakeSource{reads: make(chan read, buffer)}
}

func (f *fakeSource) Calibrate(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calibrated++
	return f.calErr
}

func (f *fakeSource) ReadChunk(ctx context.Context, _ time.Duration) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r, ok := <-f.reads:
		if !ok {
			return nil, io.EOF
		}
		return r.data, r.err
	}
}

func (f *fakeSource) SampleRate() int { return 16000 }
func (f *fakeSource) Close() error    { return nil }

// stubTranscriber returns texts in order, repeating the last one.
type stubTranscriber struct {
	mu      sync.Mutex
	texts   []string
	errs    map[int]error
	calls   int
	samples []int
	ctxs    []context.Context
}

func (s *stubTranscriber) Transcribe(ctx context.Context, samples []float32, _ *asr.Options) (asr.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	s.samples = append(s.samples, len(samples))
	s.ctxs = append(s.ctxs, ctx)
	if err := s.errs[i]; err != nil {
		return asr.Result{}, err
	}
	text := ""
	if len(s.texts) > 0 {
		text = s.texts[min(i, len(s.texts)-1)]
	}
	return asr.Result{
		Text:     text,
		Segments: []asr.Segment{{ID: 0, Text: text}},
		Language: "en",
	}, nil
}

func (s *stubTranscriber) Close() error { return nil }

func (s *stubTranscriber) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeClock is advanced by hand.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingObserver struct {
	mu          sync.Mutex
	captured    int
	transient   int
	fatal       int
	idle        int
	transcribed int
	failed      int
	updates     int
}

func (o *countingObserver) ChunkCaptured(int) { o.mu.Lock(); o.captured++; o.mu.Unlock() }
func (o *countingObserver) CaptureFailed(fatal bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if fatal {
		o.fatal++
	} else {
		o.transient++
	}
}
func (o *countingObserver) ChunksEvicted(int) {}
func (o *countingObserver) QueueDepth(int)    {}
func (o *countingObserver) IdleCycle()        { o.mu.Lock(); o.idle++; o.mu.Unlock() }
func (o *countingObserver) Transcribed(_ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transcribed++
	if err != nil {
		o.failed++
	}
}
func (o *countingObserver) LineUpdated(bool, int) { o.mu.Lock(); o.updates++; o.mu.Unlock() }

// tone returns n PCM16 bytes of a non-silent signal.
func tone(samples int) []byte {
	f := make([]float32, samples)
	for i := range f {
		f[i] = 0.25
	}
	return audio.EncodePCM16(f)
}

func testOptions() *asr.Options {
	return &asr.Options{Model: "stub", Language: "en", Temperature: []float64{0}}
}
