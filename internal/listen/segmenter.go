package listen

import (
	"time"

	"hark/internal/audio"
)

// PhraseClock remembers when audio was last drained.
type PhraseClock struct {
	last time.Time
	set  bool
}

// Advance reports whether more than timeout passed since the previous
// observation, then records now. The first observation never completes a
// phrase. The stored time never moves backwards.
func (c *PhraseClock) Advance(now time.Time, timeout time.Duration) bool {
	complete := c.set && now.Sub(c.last) > timeout
	if !c.set || now.After(c.last) {
		c.last = now
	}
	c.set = true
	return complete
}

// Last returns the recorded time and whether one exists.
func (c *PhraseClock) Last() (time.Time, bool) { return c.last, c.set }

// Reset clears the clock for a new session.
func (c *PhraseClock) Reset() { *c = PhraseClock{} }

// Batch is everything drained in one cycle, ready for transcription.
type Batch struct {
	Samples        []float32
	PhraseComplete bool
	Chunks         int
	Bytes          int
	At             time.Time
}

// Segmenter drains the queue once per cycle and decides phrase boundaries.
type Segmenter struct {
	queue         *audio.ChunkQueue
	clock         PhraseClock
	phraseTimeout time.Duration
	now           func() time.Time
}

// NewSegmenter returns a segmenter using the wall clock.
func NewSegmenter(q *audio.ChunkQueue, phraseTimeout time.Duration) *Segmenter {
	return &Segmenter{queue: q, phraseTimeout: phraseTimeout, now: time.Now}
}

// Next drains the queue. ok is false when nothing was pending. The phrase
// clock advances before samples are decoded, so a malformed batch still moves
// the boundary forward.
func (s *Segmenter) Next() (b Batch, ok bool, err error) {
	chunks := s.queue.DrainAll()
	if len(chunks) == 0 {
		return Batch{}, false, nil
	}
	now := s.now()
	b.At = now
	b.Chunks = len(chunks)
	for _, c := range chunks {
		b.Bytes += len(c)
	}
	b.PhraseComplete = s.clock.Advance(now, s.phraseTimeout)

	b.Samples, err = audio.Normalize(chunks)
	if err != nil {
		return b, true, err
	}
	return b, true, nil
}

// Reset clears the phrase clock.
func (s *Segmenter) Reset() { s.clock.Reset() }
