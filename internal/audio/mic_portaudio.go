//go:build whisper

package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"
	webrtcvad "github.com/maxhawkins/go-webrtcvad"
	"github.com/sirupsen/logrus"
)

// Mic captures from a PortAudio input device.
type Mic struct {
	stream *portaudio.Stream
	buf    []int16
	gate   *Gate
	vad    *webrtcvad.VAD
	rate   int
	name   string
	logger logrus.FieldLogger
}

// OpenMic opens and starts the input stream selected by cfg.DeviceName.
func OpenMic(cfg MicConfig, logger logrus.FieldLogger) (*Mic, error) {
	gc := cfg.Gate
	frame := gc.FrameSamples()
	if frame <= 0 {
		return nil, fmt.Errorf("invalid frame_ms %d for sample_rate %d", gc.FrameMS, gc.SampleRate)
	}

	var v *webrtcvad.VAD
	if cfg.VADEnabled {
		if err := vadFrameValid(gc.SampleRate, gc.FrameMS); err != nil {
			return nil, err
		}
		var err error
		v, err = webrtcvad.New()
		if err != nil {
			return nil, fmt.Errorf("vad: %w", err)
		}
		if err := v.SetMode(cfg.VADAggressiveness); err != nil {
			return nil, fmt.Errorf("vad mode: %w", err)
		}
		if !v.ValidRateAndFrameLength(gc.SampleRate, frame) {
			return nil, fmt.Errorf("webrtc VAD rejected %d-sample frames at %d Hz", frame, gc.SampleRate)
		}
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	dev, err := selectDevice(cfg.DeviceName)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}
	m := &Mic{
		buf:    make([]int16, frame),
		gate:   NewGate(gc),
		vad:    v,
		rate:   gc.SampleRate,
		name:   dev.Name,
		logger: logger,
	}
	m.stream, err = portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(gc.SampleRate),
		FramesPerBuffer: frame,
	}, &m.buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if err := m.stream.Start(); err != nil {
		_ = m.stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start stream: %w", err)
	}
	logger.Infof("listening on mic: %s @ %d Hz", dev.Name, gc.SampleRate)
	return m, nil
}

// Calibrate listens to ambient noise for d and fixes the energy threshold.
func (m *Mic) Calibrate(ctx context.Context, d time.Duration) error {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			return fmt.Errorf("stream read: %w", err)
		}
		m.gate.Calibrate(m.buf)
	}
	m.logger.Infof("energy threshold calibrated to %.1f", m.gate.Threshold())
	return nil
}

// ReadChunk blocks until the gate closes an utterance.
func (m *Mic) ReadChunk(ctx context.Context, maxDur time.Duration) ([]byte, error) {
	m.gate.SetMaxDuration(maxDur)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := m.stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				m.gate.Reset()
				return nil, fmt.Errorf("%w: %v", ErrTransient, err)
			}
			return nil, fmt.Errorf("stream read: %w", err)
		}
		voiced := true
		if m.vad != nil {
			active, err := m.vad.Process(m.rate, Int16ToBytes(m.buf))
			if err != nil {
				m.logger.Debugf("vad: %v", err)
			} else {
				voiced = active
			}
		}
		if utt, ok := m.gate.Feed(m.buf, voiced); ok {
			return Int16ToBytes(utt), nil
		}
	}
}

// SampleRate implements Source.
func (m *Mic) SampleRate() int { return m.rate }

// Close stops the stream and releases PortAudio.
func (m *Mic) Close() error {
	var errs []error
	if err := m.stream.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := m.stream.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ListMics enumerates input-capable devices.
func ListMics() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	def, _ := portaudio.DefaultInputDevice()
	out := []Device{}
	for i, d := range devs {
		if d.MaxInputChannels < 1 {
			continue
		}
		out = append(out, Device{
			Index:     i,
			Name:      d.Name,
			Channels:  d.MaxInputChannels,
			LatencyMs: d.DefaultLowInputLatency.Seconds() * 1000,
			Default:   def != nil && d.Name == def.Name,
		})
	}
	return out, nil
}

// Probe checks that PortAudio initialises.
func Probe() error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	return portaudio.Terminate()
}

func selectDevice(preferred string) (*portaudio.DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if preferred != "" {
		for _, d := range devs {
			if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), strings.ToLower(preferred)) {
				return d, nil
			}
		}
		return nil, fmt.Errorf("target microphone not found: %q", preferred)
	}
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		return def, nil
	}
	for _, d := range devs {
		if d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no input devices found")
}
