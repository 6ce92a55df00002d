// Package listen turns a stream of captured chunks into a growing transcript.
//
// A Feed goroutine pushes chunks from an audio.Source onto a ChunkQueue. The
// Listener's Run loop owns everything else: each cycle it drains the queue,
// decides whether the silence since the previous drain closed a phrase,
// transcribes the batch, and either replaces the open transcript line or
// starts a new one.
package listen

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"hark/internal/asr"
	"hark/internal/audio"
	"hark/internal/config"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrStopped is returned by Run on a listener that already ran.
var ErrStopped = errors.New("listener stopped")

// State is the scheduler state.
type State int32

const (
	StateIdle State = iota
	StateProcessing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessing:
		return "processing"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Config holds the timing knobs of the pipeline.
type Config struct {
	RecordTimeout     time.Duration
	PhraseTimeout     time.Duration
	IdleBackoff       time.Duration
	MaxQueuedChunks   int
	TranscribeTimeout time.Duration
	Calibrate         time.Duration
}

// ConfigFrom extracts the listener settings from the user config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		RecordTimeout:     cfg.RecordTimeout(),
		PhraseTimeout:     cfg.PhraseTimeout(),
		IdleBackoff:       cfg.IdleBackoff(),
		MaxQueuedChunks:   cfg.Listener.MaxQueuedChunks,
		TranscribeTimeout: cfg.TranscribeTimeout(),
		Calibrate:         time.Duration(cfg.Audio.CalibrateMS) * time.Millisecond,
	}
}

// Option customises a Listener.
type Option func(*Listener)

// WithObserver reports pipeline events to o.
func WithObserver(o Observer) Option {
	return func(l *Listener) { l.observer = o }
}

// WithClosedLine calls fn with every line that a completed phrase closes.
func WithClosedLine(fn func(line string)) Option {
	return func(l *Listener) { l.onClosed = fn }
}

// WithClock replaces the wall clock used for phrase boundaries.
func WithClock(now func() time.Time) Option {
	return func(l *Listener) { l.now = now }
}

// Listener drives the segment, transcribe, accumulate cycle.
type Listener struct {
	cfg        Config
	source     audio.Source
	queue      *audio.ChunkQueue
	segmenter  *Segmenter
	dispatcher *Dispatcher
	transcript *Transcript
	logger     logrus.FieldLogger
	observer   Observer
	now        func() time.Time
	wait       func(ctx context.Context, d time.Duration) error

	onUpdate UpdateFunc
	onClosed func(string)

	session string
	state   atomic.Int32
}

// New wires a listener around src and tr. opts is shared read-only by every
// transcription call.
func New(cfg Config, src audio.Source, tr asr.Transcriber, opts *asr.Options, logger logrus.FieldLogger, options ...Option) *Listener {
	l := &Listener{
		cfg:        cfg,
		source:     src,
		queue:      audio.NewChunkQueue(cfg.MaxQueuedChunks),
		transcript: NewTranscript(),
		observer:   nopObserver{},
		now:        time.Now,
		session:    uuid.NewString(),
	}
	for _, o := range options {
		o(l)
	}
	if l.observer == nil {
		l.observer = nopObserver{}
	}
	l.logger = logger.WithField("session", l.session)
	l.segmenter = NewSegmenter(l.queue, cfg.PhraseTimeout)
	l.segmenter.now = l.now
	l.dispatcher = NewDispatcher(tr, opts, cfg.TranscribeTimeout, l.logger, l.observer)
	l.wait = l.idleWait
	return l
}

// Session is the id attached to this listener's log lines.
func (l *Listener) Session() string { return l.session }

// State returns the current scheduler state.
func (l *Listener) State() State { return State(l.state.Load()) }

// QueueLen reports chunks captured but not yet drained.
func (l *Listener) QueueLen() int { return l.queue.Len() }

// Run calibrates the source, starts the capture feed and processes audio
// until ctx is cancelled, the source is exhausted or capture fails fatally.
// The cycle in flight when ctx is cancelled is completed. Run returns the
// final transcript.
func (l *Listener) Run(ctx context.Context, onUpdate UpdateFunc) ([]string, error) {
	if l.State() == StateStopped {
		return l.transcript.Lines(), ErrStopped
	}
	l.onUpdate = onUpdate
	l.segmenter.Reset()
	defer l.setState(StateStopped)

	if l.cfg.Calibrate > 0 {
		l.logger.Infof("calibrating for ambient noise (%s)", l.cfg.Calibrate)
		if err := l.source.Calibrate(ctx, l.cfg.Calibrate); err != nil {
			if ctx.Err() != nil {
				return l.transcript.Lines(), nil
			}
			return l.transcript.Lines(), fmt.Errorf("calibrate: %w", err)
		}
	}

	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()
	feed := NewFeed(l.source, l.queue, l.cfg.RecordTimeout, l.logger, l.observer)
	feedErr := make(chan error, 1)
	go func() { feedErr <- feed.Run(feedCtx) }()

	l.logger.Info("listening")
	var (
		runErr   error
		feedDone bool
	)
	for ctx.Err() == nil {
		if !feedDone {
			select {
			case err := <-feedErr:
				feedDone = true
				if err != nil {
					runErr = err
				}
			default:
			}
			if runErr != nil {
				break
			}
		}
		processed, _ := l.Step(ctx)
		if processed {
			continue
		}
		if feedDone {
			break
		}
		if err := l.wait(ctx, l.cfg.IdleBackoff); err != nil {
			break
		}
	}

	stopFeed()
	if !feedDone {
		if err := <-feedErr; err != nil && runErr == nil {
			runErr = err
		}
	}
	lines := l.transcript.Lines()
	l.logger.WithField("lines", len(lines)).Info("listener stopped")
	return lines, runErr
}

// Step runs one cycle. It reports whether audio was drained; the error is the
// cycle's segmentation or transcription failure, already logged.
func (l *Listener) Step(ctx context.Context) (bool, error) {
	batch, ok, err := l.segmenter.Next()
	if !ok {
		l.observer.IdleCycle()
		return false, nil
	}
	l.setState(StateProcessing)
	defer l.setState(StateIdle)
	l.observer.QueueDepth(l.queue.Len())

	log := l.logger.WithFields(logrus.Fields{
		"chunks":          batch.Chunks,
		"bytes":           batch.Bytes,
		"phrase_complete": batch.PhraseComplete,
	})
	if err != nil {
		log.Errorf("segment: %v", err)
		return true, err
	}
	res, err := l.dispatcher.Dispatch(ctx, batch.Samples)
	if err != nil {
		log.Errorf("transcribe: %v", err)
		return true, err
	}

	closed, didClose := l.transcript.Apply(batch.PhraseComplete, res.Text)
	l.observer.LineUpdated(batch.PhraseComplete, l.transcript.Len())
	log.Debugf("heard: %q", res.Text)
	if didClose && l.onClosed != nil {
		l.onClosed(closed)
	}
	if l.onUpdate != nil {
		l.onUpdate(l.transcript.Lines(), res)
	}
	return true, nil
}

func (l *Listener) setState(s State) {
	if l.State() == StateStopped {
		return
	}
	l.state.Store(int32(s))
}

// idleWait sleeps for d, waking early when a chunk arrives.
func (l *Listener) idleWait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.queue.Ready():
		return nil
	case <-t.C:
		return nil
	}
}
