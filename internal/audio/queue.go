package audio

import "sync"

// ChunkQueue is a FIFO of raw capture chunks shared by one producer and one
// consumer. Push never blocks; DrainAll takes everything queued at once.
type ChunkQueue struct {
	mu     sync.Mutex
	chunks [][]byte
	max    int
	ready  chan struct{}
}

// NewChunkQueue returns an empty queue. maxChunks <= 0 leaves it unbounded;
// otherwise the oldest chunks are evicted once the cap is reached.
func NewChunkQueue(maxChunks int) *ChunkQueue {
	if maxChunks < 0 {
		maxChunks = 0
	}
	return &ChunkQueue{
		max:   maxChunks,
		ready: make(chan struct{}, 1),
	}
}

// Push appends chunk and returns how many old chunks were evicted to make room.
func (q *ChunkQueue) Push(chunk []byte) int {
	q.mu.Lock()
	evicted := 0
	if q.max > 0 && len(q.chunks) >= q.max {
		evicted = len(q.chunks) - q.max + 1
		clear(q.chunks[:evicted])
		q.chunks = q.chunks[evicted:]
	}
	q.chunks = append(q.chunks, chunk)
	select {
	case q.ready <- struct{}{}:
	default:
	}
	q.mu.Unlock()
	return evicted
}

// DrainAll removes and returns every queued chunk in push order. It returns
// nil when nothing is pending.
func (q *ChunkQueue) DrainAll() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	select {
	case <-q.ready:
	default:
	}
	if len(q.chunks) == 0 {
		return nil
	}
	out := q.chunks
	q.chunks = nil
	return out
}

// Len reports the number of pending chunks.
func (q *ChunkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// Ready is signalled (coalesced) after every Push and cleared by DrainAll.
func (q *ChunkQueue) Ready() <-chan struct{} {
	return q.ready
}
