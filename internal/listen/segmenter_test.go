package listen

import (
	"errors"
	"testing"
	"time"

	"hark/internal/audio"
)

func TestPhraseClockBoundary(t *testing.T) {
	const timeout = 3 * time.Second
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var c PhraseClock
	if c.Advance(t0, timeout) {
		t.Fatalf("first observation must not complete a phrase")
	}
	if c.Advance(t0.Add(timeout), timeout) {
		t.Fatalf("gap equal to timeout must not complete a phrase")
	}
	if !c.Advance(t0.Add(2*timeout+time.Nanosecond), timeout) {
		t.Fatalf("gap just past timeout must complete a phrase")
	}
}

func TestPhraseClockNeverMovesBackwards(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var c PhraseClock
	c.Advance(t0, time.Second)
	c.Advance(t0.Add(-time.Minute), time.Second)
	if last, ok := c.Last(); !ok || !last.Equal(t0) {
		t.Fatalf("clock moved backwards to %v", last)
	}
	c.Reset()
	if _, ok := c.Last(); ok {
		t.Fatalf("reset should clear the clock")
	}
}

func TestSegmenterIdleOnEmptyQueue(t *testing.T) {
	s := NewSegmenter(audio.NewChunkQueue(0), time.Second)
	if _, ok, err := s.Next(); ok || err != nil {
		t.Fatalf("expected idle, got ok=%v err=%v", ok, err)
	}
	if _, set := s.clock.Last(); set {
		t.Fatalf("idle cycle must not touch the clock")
	}
}

func TestSegmenterBatchesQueuedChunks(t *testing.T) {
	q := audio.NewChunkQueue(0)
	clock := newFakeClock()
	s := NewSegmenter(q, time.Second)
	s.now = clock.Now

	q.Push(audio.Int16ToBytes([]int16{16384}))
	q.Push(audio.Int16ToBytes([]int16{-16384, 0}))
	b, ok, err := s.Next()
	if !ok || err != nil {
		t.Fatalf("next: ok=%v err=%v", ok, err)
	}
	if b.Chunks != 2 || b.Bytes != 6 {
		t.Fatalf("batch %+v", b)
	}
	want := []float32{0.5, -0.5, 0}
	for i := range want {
		if b.Samples[i] != want[i] {
			t.Fatalf("samples %v want %v", b.Samples, want)
		}
	}
	if b.PhraseComplete {
		t.Fatalf("first batch cannot complete a phrase")
	}
	if !b.At.Equal(clock.Now()) {
		t.Fatalf("batch time %v", b.At)
	}
}

func TestSegmenterAdvancesClockOnMalformedBatch(t *testing.T) {
	q := audio.NewChunkQueue(0)
	clock := newFakeClock()
	s := NewSegmenter(q, time.Second)
	s.now = clock.Now

	q.Push([]byte{1, 2, 3})
	_, ok, err := s.Next()
	if !ok || !errors.Is(err, audio.ErrOddLength) {
		t.Fatalf("expected malformed batch error, ok=%v err=%v", ok, err)
	}
	if last, set := s.clock.Last(); !set || !last.Equal(clock.Now()) {
		t.Fatalf("clock not advanced on failure")
	}
	if q.Len() != 0 {
		t.Fatalf("malformed chunk should still be drained")
	}
}
