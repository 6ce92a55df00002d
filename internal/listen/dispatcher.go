package listen

import (
	"context"
	"errors"
	"time"

	"hark/internal/asr"

	"github.com/sirupsen/logrus"
)

// ErrEmptyBuffer is returned when a batch decodes to no samples.
var ErrEmptyBuffer = errors.New("empty sample buffer")

// Dispatcher runs one transcription per batch. It never retries.
type Dispatcher struct {
	transcriber asr.Transcriber
	opts        *asr.Options
	timeout     time.Duration
	logger      logrus.FieldLogger
	observer    Observer
	now         func() time.Time
}

// NewDispatcher returns a dispatcher; timeout <= 0 disables the call bound.
func NewDispatcher(tr asr.Transcriber, opts *asr.Options, timeout time.Duration, logger logrus.FieldLogger, obs Observer) *Dispatcher {
	if obs == nil {
		obs = nopObserver{}
	}
	return &Dispatcher{
		transcriber: tr,
		opts:        opts,
		timeout:     timeout,
		logger:      logger,
		observer:    obs,
		now:         time.Now,
	}
}

// Dispatch transcribes samples. Cancellation of ctx does not abort a call in
// progress; only the configured timeout does.
func (d *Dispatcher) Dispatch(ctx context.Context, samples []float32) (asr.Result, error) {
	if len(samples) == 0 {
		d.observer.Transcribed(0, ErrEmptyBuffer)
		return asr.Result{}, ErrEmptyBuffer
	}
	callCtx := context.WithoutCancel(ctx)
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, d.timeout)
		defer cancel()
	}

	start := d.now()
	res, err := d.transcriber.Transcribe(callCtx, samples, d.opts)
	latency := d.now().Sub(start)
	d.observer.Transcribed(latency, err)
	if err != nil {
		return asr.Result{}, err
	}
	d.logger.WithField("latency", latency).Debugf("transcribed %d samples", len(samples))
	return res, nil
}
