// Package audio holds the capture side of the pipeline: the chunk queue, PCM
// conversion, the speech gate and the sources that produce chunks.
package audio

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTransient marks a read failure that loses one chunk but leaves the
	// source usable.
	ErrTransient = errors.New("transient capture error")

	// ErrNoCapture is returned by OpenMic in builds without PortAudio.
	ErrNoCapture = errors.New("microphone capture unavailable: build with -tags whisper (PortAudio required)")
)

// Source produces raw PCM16 mono chunks.
type Source interface {
	// Calibrate samples ambient noise for d and adjusts the speech threshold.
	Calibrate(ctx context.Context, d time.Duration) error
	// ReadChunk blocks until one utterance of at most max has been captured.
	ReadChunk(ctx context.Context, max time.Duration) ([]byte, error)
	SampleRate() int
	Close() error
}

// Device describes a capture device.
type Device struct {
	Index     int     `json:"index"`
	Name      string  `json:"name"`
	Channels  int     `json:"channels"`
	LatencyMs float64 `json:"latency_ms"`
	Default   bool    `json:"default"`
}

// MicConfig configures OpenMic.
type MicConfig struct {
	DeviceName        string
	VADEnabled        bool
	VADAggressiveness int
	Gate              GateConfig
}

// vadFrameValid reports whether webrtc VAD accepts frameMS frames at rate.
func vadFrameValid(rate, frameMS int) error {
	switch rate {
	case 8000, 16000, 32000, 48000:
	default:
		return fmt.Errorf("sample_rate must be 8k/16k/32k/48k for webrtc VAD (got %d)", rate)
	}
	switch frameMS {
	case 10, 20, 30:
	default:
		return fmt.Errorf("audio.frame_ms must be 10, 20, or 30 with VAD (got %d)", frameMS)
	}
	return nil
}

func samplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
