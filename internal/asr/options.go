package asr

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"
	"time"

	"hark/internal/config"
)

// Options is the validated transcription configuration shared by every call.
type Options struct {
	Model                         string
	Language                      string // "auto" to detect
	Threads                       int
	Verbose                       bool
	Temperature                   []float64
	CompressionRatioThreshold     float64
	LogprobThreshold              float64
	NoSpeechThreshold             float64
	ConditionOnPreviousText       bool
	WordTimestamps                bool
	PrependPunctuations           string
	AppendPunctuations            string
	InitialPrompt                 string
	ClipTimestamps                []float64 // seconds; start,end pairs, a trailing start runs to the end
	HallucinationSilenceThreshold float64
}

// Clip is one window of input to transcribe. End == 0 means until the end.
type Clip struct {
	Start time.Duration
	End   time.Duration
}

// NewOptions validates and normalises the transcribe section of cfg.
func NewOptions(cfg *config.Config) (*Options, error) {
	t := cfg.Transcribe
	o := &Options{
		Model:                         strings.TrimSpace(t.ModelPath),
		Language:                      strings.ToLower(strings.TrimSpace(t.Language)),
		Threads:                       t.Threads,
		Verbose:                       t.Verbose,
		Temperature:                   append([]float64(nil), t.Temperature...),
		CompressionRatioThreshold:     t.CompressionRatioThreshold,
		LogprobThreshold:              t.LogprobThreshold,
		NoSpeechThreshold:             t.NoSpeechThreshold,
		ConditionOnPreviousText:       t.ConditionOnPreviousText,
		WordTimestamps:                t.WordTimestamps,
		PrependPunctuations:           t.PrependPunctuations,
		AppendPunctuations:            t.AppendPunctuations,
		InitialPrompt:                 t.InitialPrompt,
		HallucinationSilenceThreshold: t.HallucinationSilenceThreshold,
	}
	if o.Language == "" {
		o.Language = "auto"
	}
	if o.Threads <= 0 {
		o.Threads = runtime.NumCPU()
	}
	if len(o.Temperature) == 0 {
		o.Temperature = []float64{0}
	}

	var errs []error
	if o.Model == "" {
		errs = append(errs, errors.New("transcribe.model_path is required"))
	}
	for _, temp := range o.Temperature {
		if temp < 0 || math.IsNaN(temp) || math.IsInf(temp, 0) {
			errs = append(errs, fmt.Errorf("transcribe.temperature values must be >= 0 (got %v)", temp))
			break
		}
	}
	if o.CompressionRatioThreshold < 0 {
		errs = append(errs, fmt.Errorf("transcribe.compression_ratio_threshold must be >= 0 (got %v)", o.CompressionRatioThreshold))
	}
	if o.NoSpeechThreshold < 0 || o.NoSpeechThreshold > 1 {
		errs = append(errs, fmt.Errorf("transcribe.no_speech_threshold must be in [0,1] (got %v)", o.NoSpeechThreshold))
	}
	if o.HallucinationSilenceThreshold < 0 {
		errs = append(errs, fmt.Errorf("transcribe.hallucination_silence_threshold must be >= 0 (got %v)", o.HallucinationSilenceThreshold))
	}
	clips, err := ParseClipTimestamps(t.ClipTimestamps)
	if err != nil {
		errs = append(errs, err)
	}
	o.ClipTimestamps = clips
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return o, nil
}

// ParseClipTimestamps parses a comma-separated list of seconds such as
// "0" or "1.5,3,10". Values must be non-negative and non-decreasing.
func ParseClipTimestamps(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return []float64{0}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("transcribe.clip_timestamps: %q is not a number", p)
		}
		if v < 0 {
			return nil, fmt.Errorf("transcribe.clip_timestamps: %v is negative", v)
		}
		if n := len(out); n > 0 && v < out[n-1] {
			return nil, fmt.Errorf("transcribe.clip_timestamps must be non-decreasing (%v after %v)", v, out[n-1])
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		out = []float64{0}
	}
	return out, nil
}

// Clips pairs up ClipTimestamps.
func (o *Options) Clips() []Clip {
	var out []Clip
	for i := 0; i < len(o.ClipTimestamps); i += 2 {
		c := Clip{Start: secs(o.ClipTimestamps[i])}
		if i+1 < len(o.ClipTimestamps) {
			c.End = secs(o.ClipTimestamps[i+1])
		}
		out = append(out, c)
	}
	return out
}

// IgnoredClips returns the clip windows after the first. The whisper.cpp
// backend decodes a single offset/duration window per call.
func (o *Options) IgnoredClips() []Clip {
	clips := o.Clips()
	if len(clips) < 2 {
		return nil
	}
	return clips[1:]
}

// TemperatureFallback is the increment between successive temperatures, or 0
// when the schedule has a single entry.
func (o *Options) TemperatureFallback() float64 {
	if len(o.Temperature) < 2 {
		return 0
	}
	return o.Temperature[1] - o.Temperature[0]
}

func secs(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
