package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	defaultRecordTimeout = 2.0
	defaultPhraseTimeout = 3.0
	defaultIdleBackoffMS = 250
	defaultStatusTail    = 20
	defaultStateDirLinux = ".local/state/hark"
	defaultConfigDir     = ".config/hark"
	defaultModelName     = "ggml-base.en.bin"
)

// Config holds user configuration loaded from TOML (or YAML).
type Config struct {
	Listener struct {
		RecordTimeout     float64 `toml:"record_timeout" yaml:"record_timeout"` // seconds per captured chunk
		PhraseTimeout     float64 `toml:"phrase_timeout" yaml:"phrase_timeout"` // silence gap that closes a line
		IdleBackoffMS     int     `toml:"idle_backoff_ms" yaml:"idle_backoff_ms"`
		MaxQueuedChunks   int     `toml:"max_queued_chunks" yaml:"max_queued_chunks"` // 0 = unbounded
		TranscribeTimeout float64 `toml:"transcribe_timeout" yaml:"transcribe_timeout"`
	} `toml:"listener" yaml:"listener"`

	Audio struct {
		DeviceName        string  `toml:"device_name" yaml:"device_name"`
		SampleRate        int     `toml:"sample_rate" yaml:"sample_rate"`
		FrameMS           int     `toml:"frame_ms" yaml:"frame_ms"`
		EnergyThreshold   float64 `toml:"energy_threshold" yaml:"energy_threshold"`
		CalibrateMS       int     `toml:"calibrate_ms" yaml:"calibrate_ms"`
		PauseMS           int     `toml:"pause_ms" yaml:"pause_ms"`
		VADEnabled        bool    `toml:"vad_enabled" yaml:"vad_enabled"`
		VADAggressiveness int     `toml:"vad_aggressiveness" yaml:"vad_aggressiveness"`
	} `toml:"audio" yaml:"audio"`

	Transcribe struct {
		ModelPath                     string    `toml:"model_path" yaml:"model_path"`
		Language                      string    `toml:"language" yaml:"language"`
		Threads                       int       `toml:"threads" yaml:"threads"`
		Verbose                       bool      `toml:"verbose" yaml:"verbose"`
		Temperature                   []float64 `toml:"temperature" yaml:"temperature"`
		CompressionRatioThreshold     float64   `toml:"compression_ratio_threshold" yaml:"compression_ratio_threshold"`
		LogprobThreshold              float64   `toml:"logprob_threshold" yaml:"logprob_threshold"`
		NoSpeechThreshold             float64   `toml:"no_speech_threshold" yaml:"no_speech_threshold"`
		ConditionOnPreviousText       bool      `toml:"condition_on_previous_text" yaml:"condition_on_previous_text"`
		WordTimestamps                bool      `toml:"word_timestamps" yaml:"word_timestamps"`
		PrependPunctuations           string    `toml:"prepend_punctuations" yaml:"prepend_punctuations"`
		AppendPunctuations            string    `toml:"append_punctuations" yaml:"append_punctuations"`
		InitialPrompt                 string    `toml:"initial_prompt" yaml:"initial_prompt"`
		ClipTimestamps                string    `toml:"clip_timestamps" yaml:"clip_timestamps"`
		HallucinationSilenceThreshold float64   `toml:"hallucination_silence_threshold" yaml:"hallucination_silence_threshold"`
	} `toml:"transcribe" yaml:"transcribe"`

	Hook struct {
		Enabled     bool              `toml:"enabled" yaml:"enabled"`
		Command     string            `toml:"command" yaml:"command"`
		Args        []string          `toml:"args" yaml:"args"`
		ArgsLine    string            `toml:"args_line" yaml:"args_line"` // shell-style, appended to args
		Prefix      string            `toml:"prefix" yaml:"prefix"`
		MinChars    int               `toml:"min_chars" yaml:"min_chars"`
		CooldownSec float64           `toml:"cooldown_sec" yaml:"cooldown_sec"`
		RedactPII   bool              `toml:"redact_pii" yaml:"redact_pii"`
		QueueSize   int               `toml:"queue_size" yaml:"queue_size"`
		TimeoutSec  float64           `toml:"timeout_sec" yaml:"timeout_sec"`
		Env         map[string]string `toml:"env" yaml:"env"`
	} `toml:"hook" yaml:"hook"`

	Logging struct {
		Level  string `toml:"level" yaml:"level"`   // debug, info, warn, error
		Format string `toml:"format" yaml:"format"` // text, json
		Stdout bool   `toml:"stdout" yaml:"stdout"`
	} `toml:"logging" yaml:"logging"`

	Paths struct {
		StateDir   string `toml:"state_dir" yaml:"state_dir"`
		ModelDir   string `toml:"model_dir" yaml:"model_dir"`
		LogPath    string `toml:"log_path" yaml:"log_path"`
		SocketPath string `toml:"socket_path" yaml:"socket_path"`
		PidPath    string `toml:"pid_path" yaml:"pid_path"`
		ConfigPath string `toml:"-" yaml:"-"`
	} `toml:"paths" yaml:"paths"`

	UI struct {
		StatusTail  int  `toml:"status_tail" yaml:"status_tail"`
		ClearScreen bool `toml:"clear_screen" yaml:"clear_screen"`
	} `toml:"ui" yaml:"ui"`

	Metrics struct {
		Enabled bool   `toml:"enabled" yaml:"enabled"`
		Addr    string `toml:"addr" yaml:"addr"`
	} `toml:"metrics" yaml:"metrics"`
}

// Default returns Config populated with defaults.
func Default() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	stateDir := filepath.Join(home, defaultStateDirLinux)
	if isMac() {
		stateDir = filepath.Join(home, "Library", "Application Support", "hark")
	}

	cfg := &Config{}

	cfg.Listener.RecordTimeout = defaultRecordTimeout
	cfg.Listener.PhraseTimeout = defaultPhraseTimeout
	cfg.Listener.IdleBackoffMS = defaultIdleBackoffMS
	cfg.Listener.MaxQueuedChunks = 0
	cfg.Listener.TranscribeTimeout = 0

	cfg.Audio.SampleRate = 16000
	cfg.Audio.FrameMS = 30
	cfg.Audio.EnergyThreshold = 1000
	cfg.Audio.CalibrateMS = 1000
	cfg.Audio.PauseMS = 800
	cfg.Audio.VADEnabled = true
	cfg.Audio.VADAggressiveness = 2

	cfg.Transcribe.ModelPath = filepath.Join(stateDir, "models", defaultModelName)
	cfg.Transcribe.Language = "en"
	cfg.Transcribe.Temperature = []float64{0.0, 0.2, 0.4, 0.6, 0.8, 1.0}
	cfg.Transcribe.CompressionRatioThreshold = 2.4
	cfg.Transcribe.LogprobThreshold = -1.0
	cfg.Transcribe.NoSpeechThreshold = 0.6
	cfg.Transcribe.ConditionOnPreviousText = true
	cfg.Transcribe.PrependPunctuations = "\"'“¿([{-"
	cfg.Transcribe.AppendPunctuations = "\"'.。,，!！?？:：”)]}、"
	cfg.Transcribe.ClipTimestamps = "0"

	cfg.Hook.Enabled = false
	cfg.Hook.Prefix = ""
	cfg.Hook.QueueSize = 16
	cfg.Hook.TimeoutSec = 5
	cfg.Hook.Env = map[string]string{}

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	cfg.Paths.StateDir = stateDir
	cfg.Paths.ModelDir = filepath.Join(stateDir, "models")
	cfg.Paths.LogPath = filepath.Join(stateDir, "hark.log")
	cfg.Paths.SocketPath = filepath.Join(stateDir, "hark.sock")
	cfg.Paths.PidPath = filepath.Join(stateDir, "hark.pid")

	cfg.UI.StatusTail = defaultStatusTail
	cfg.UI.ClearScreen = true

	cfg.Metrics.Enabled = false
	cfg.Metrics.Addr = "127.0.0.1:9318"

	return cfg, nil
}

// Load loads config from file, applying defaults. A missing TOML file is
// created from the defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, defaultConfigDir, "config.toml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !isYAML(path) {
			if err := Save(cfg, path); err != nil {
				return nil, err
			}
			cfg.Paths.ConfigPath = path
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Paths.ConfigPath = path
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Save writes cfg to path in the format implied by its extension.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, cfg, path); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

// Encode writes cfg as YAML when path has a YAML extension, TOML otherwise.
func Encode(w io.Writer, cfg *Config, path string) error {
	if isYAML(path) {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	}
	return toml.NewEncoder(w).Encode(cfg)
}

// Validate checks values that would make the pipeline misbehave at runtime.
func Validate(cfg *Config) error {
	var errs []error
	if cfg.Listener.RecordTimeout <= 0 || math.IsNaN(cfg.Listener.RecordTimeout) {
		errs = append(errs, fmt.Errorf("listener.record_timeout must be > 0 (got %v)", cfg.Listener.RecordTimeout))
	}
	if cfg.Listener.PhraseTimeout <= 0 || math.IsNaN(cfg.Listener.PhraseTimeout) {
		errs = append(errs, fmt.Errorf("listener.phrase_timeout must be > 0 (got %v)", cfg.Listener.PhraseTimeout))
	}
	if cfg.Listener.IdleBackoffMS <= 0 {
		errs = append(errs, fmt.Errorf("listener.idle_backoff_ms must be > 0 (got %d)", cfg.Listener.IdleBackoffMS))
	}
	if cfg.Listener.MaxQueuedChunks < 0 {
		errs = append(errs, fmt.Errorf("listener.max_queued_chunks must be >= 0 (got %d)", cfg.Listener.MaxQueuedChunks))
	}
	if cfg.Listener.TranscribeTimeout < 0 || math.IsNaN(cfg.Listener.TranscribeTimeout) {
		errs = append(errs, fmt.Errorf("listener.transcribe_timeout must be >= 0 (got %v)", cfg.Listener.TranscribeTimeout))
	}
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be > 0 (got %d)", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameMS <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_ms must be > 0 (got %d)", cfg.Audio.FrameMS))
	}
	if cfg.Audio.EnergyThreshold < 0 || math.IsNaN(cfg.Audio.EnergyThreshold) {
		errs = append(errs, fmt.Errorf("audio.energy_threshold must be >= 0 (got %v)", cfg.Audio.EnergyThreshold))
	}
	if cfg.Audio.PauseMS <= 0 {
		errs = append(errs, fmt.Errorf("audio.pause_ms must be > 0 (got %d)", cfg.Audio.PauseMS))
	}
	if cfg.Audio.VADAggressiveness < 0 || cfg.Audio.VADAggressiveness > 3 {
		errs = append(errs, fmt.Errorf("audio.vad_aggressiveness must be 0-3 (got %d)", cfg.Audio.VADAggressiveness))
	}
	if cfg.Hook.CooldownSec < 0 {
		errs = append(errs, fmt.Errorf("hook.cooldown_sec must be >= 0 (got %v)", cfg.Hook.CooldownSec))
	}
	if cfg.Hook.Enabled && strings.TrimSpace(cfg.Hook.Command) == "" {
		errs = append(errs, errors.New("hook.enabled requires hook.command"))
	}
	return errors.Join(errs...)
}

// RecordTimeout is the capture chunk length.
func (c *Config) RecordTimeout() time.Duration { return seconds(c.Listener.RecordTimeout) }

// PhraseTimeout is the silence gap after which the next chunk starts a new line.
func (c *Config) PhraseTimeout() time.Duration { return seconds(c.Listener.PhraseTimeout) }

// IdleBackoff is the scheduler sleep when the queue is empty.
func (c *Config) IdleBackoff() time.Duration {
	return time.Duration(c.Listener.IdleBackoffMS) * time.Millisecond
}

// TranscribeTimeout bounds one model call; zero means no bound.
func (c *Config) TranscribeTimeout() time.Duration { return seconds(c.Listener.TranscribeTimeout) }

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func isMac() bool {
	return runtime.GOOS == "darwin"
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// MustStatePaths ensures state dirs exist.
func MustStatePaths(cfg *Config) error {
	for _, p := range []string{cfg.Paths.StateDir, filepath.Dir(cfg.Paths.LogPath), filepath.Dir(cfg.Paths.SocketPath)} {
		if p == "" || p == "." {
			continue
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HARK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HARK_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("HARK_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
		cfg.Metrics.Enabled = true
	}
	if v := os.Getenv("HARK_HOOK_ENABLED"); v != "" {
		cfg.Hook.Enabled = v != "0" && strings.ToLower(v) != "false"
	}
	if v := os.Getenv("HARK_MODEL_PATH"); v != "" {
		cfg.Transcribe.ModelPath = v
	}
	if v := os.Getenv("HARK_DEVICE"); v != "" {
		cfg.Audio.DeviceName = v
	}
}
