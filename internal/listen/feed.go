package listen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"hark/internal/audio"

	"github.com/sirupsen/logrus"
)

// Feed pulls chunks from a Source and pushes them onto the queue until its
// context is cancelled or the source fails.
type Feed struct {
	source   audio.Source
	queue    *audio.ChunkQueue
	chunkDur time.Duration
	logger   logrus.FieldLogger
	observer Observer
}

// NewFeed returns a feed reading chunks of at most chunkDur.
func NewFeed(src audio.Source, q *audio.ChunkQueue, chunkDur time.Duration, logger logrus.FieldLogger, obs Observer) *Feed {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Feed{source: src, queue: q, chunkDur: chunkDur, logger: logger, observer: obs}
}

// Run captures until ctx is done (nil), the source is exhausted (nil) or a
// fatal read error occurs (returned).
func (f *Feed) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		data, err := f.source.ReadChunk(ctx, f.chunkDur)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, io.EOF):
				f.logger.Info("audio source exhausted")
				return nil
			case errors.Is(err, audio.ErrTransient):
				f.observer.CaptureFailed(false)
				f.logger.Warnf("capture: %v", err)
				continue
			default:
				f.observer.CaptureFailed(true)
				return fmt.Errorf("capture: %w", err)
			}
		}
		if len(data) == 0 {
			continue
		}
		if evicted := f.queue.Push(data); evicted > 0 {
			f.observer.ChunksEvicted(evicted)
			f.logger.Warnf("chunk queue full, dropped %d oldest chunk(s)", evicted)
		}
		f.observer.ChunkCaptured(len(data))
		f.observer.QueueDepth(f.queue.Len())
	}
}
