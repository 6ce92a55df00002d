//go:build !whisper

package audio

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Mic is unavailable without PortAudio.
type Mic struct{}

// OpenMic always fails in this build.
func OpenMic(MicConfig, logrus.FieldLogger) (*Mic, error) { return nil, ErrNoCapture }

func (m *Mic) Calibrate(context.Context, time.Duration) error { return ErrNoCapture }

func (m *Mic) ReadChunk(context.Context, time.Duration) ([]byte, error) { return nil, ErrNoCapture }

func (m *Mic) SampleRate() int { return 0 }

func (m *Mic) Close() error { return nil }

// ListMics always fails in this build.
func ListMics() ([]Device, error) { return nil, ErrNoCapture }

// Probe always fails in this build.
func Probe() error { return ErrNoCapture }
