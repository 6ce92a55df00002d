package run

import (
	"errors"
	"fmt"
	"time"

	"hark/internal/asr"
	"hark/internal/audio"
	"hark/internal/config"
	"hark/internal/listen"

	"github.com/sirupsen/logrus"
)

// GateConfig derives the speech gate settings from cfg.
func GateConfig(cfg *config.Config) audio.GateConfig {
	return audio.GateConfig{
		SampleRate:      cfg.Audio.SampleRate,
		FrameMS:         cfg.Audio.FrameMS,
		EnergyThreshold: cfg.Audio.EnergyThreshold,
		Pause:           time.Duration(cfg.Audio.PauseMS) * time.Millisecond,
		MaxDuration:     cfg.RecordTimeout(),
	}
}

// OpenSource opens the configured microphone, or replays file when it is set.
func OpenSource(cfg *config.Config, file string, realtime bool, logger logrus.FieldLogger) (audio.Source, error) {
	if file != "" {
		src, err := audio.OpenFile(file, GateConfig(cfg), realtime)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", file, err)
		}
		logger.Infof("replaying %s", file)
		return src, nil
	}
	mic, err := audio.OpenMic(audio.MicConfig{
		DeviceName:        cfg.Audio.DeviceName,
		VADEnabled:        cfg.Audio.VADEnabled,
		VADAggressiveness: cfg.Audio.VADAggressiveness,
		Gate:              GateConfig(cfg),
	}, logger)
	if err != nil {
		return nil, err
	}
	return mic, nil
}

// Pipeline is a listener together with the resources it owns.
type Pipeline struct {
	Source      audio.Source
	Transcriber asr.Transcriber
	Options     *asr.Options
	Listener    *listen.Listener
}

// NewPipeline validates cfg, loads the model and builds a listener over src.
// On error src is left open.
func NewPipeline(cfg *config.Config, src audio.Source, logger logrus.FieldLogger, options ...listen.Option) (*Pipeline, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if rate := src.SampleRate(); rate != asr.SampleRate {
		return nil, fmt.Errorf("audio source runs at %d Hz, transcription needs %d Hz", rate, asr.SampleRate)
	}
	opts, err := asr.NewOptions(cfg)
	if err != nil {
		return nil, err
	}
	tr, err := asr.Open(opts, logger)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &Pipeline{
		Source:      src,
		Transcriber: tr,
		Options:     opts,
		Listener:    listen.New(listen.ConfigFrom(cfg), src, tr, opts, logger, options...),
	}, nil
}

// Close releases the model and the audio source.
func (p *Pipeline) Close() error {
	return errors.Join(p.Transcriber.Close(), p.Source.Close())
}
