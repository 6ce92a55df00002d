package listen

import "time"

// Observer receives pipeline events for metrics. Methods are called from the
// feed goroutine (Chunk*, Capture*) and the scheduler goroutine (the rest).
type Observer interface {
	ChunkCaptured(bytes int)
	CaptureFailed(fatal bool)
	ChunksEvicted(n int)
	QueueDepth(n int)
	IdleCycle()
	Transcribed(latency time.Duration, err error)
	LineUpdated(phraseComplete bool, lines int)
}

type nopObserver struct{}

func (nopObserver) ChunkCaptured(int)                {}
func (nopObserver) CaptureFailed(bool)               {}
func (nopObserver) ChunksEvicted(int)                {}
func (nopObserver) QueueDepth(int)                   {}
func (nopObserver) IdleCycle()                       {}
func (nopObserver) Transcribed(time.Duration, error) {}
func (nopObserver) LineUpdated(bool, int)            {}
