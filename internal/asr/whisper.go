//go:build whisper

package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/sirupsen/logrus"
)

type whisperTranscriber struct {
	model  whisper.Model
	logger logrus.FieldLogger
}

// Open loads the whisper.cpp model named by opts.Model. The model is bound for
// the lifetime of the Transcriber; opts.Model is ignored on later calls.
func Open(opts *Options, logger logrus.FieldLogger) (Transcriber, error) {
	model, err := whisper.New(opts.Model)
	if err != nil {
		return nil, fmt.Errorf("load model %q: %w", opts.Model, err)
	}
	if opts.LogprobThreshold != 0 || opts.NoSpeechThreshold != 0 || opts.HallucinationSilenceThreshold != 0 {
		logger.Debug("logprob/no-speech/hallucination thresholds are not applied by the whisper.cpp backend")
	}
	if extra := opts.IgnoredClips(); len(extra) > 0 {
		logger.Warnf("clip_timestamps: only the first window is decoded; ignoring %d more", len(extra))
	}
	return &whisperTranscriber{model: model, logger: logger}, nil
}

func (w *whisperTranscriber) Transcribe(ctx context.Context, samples []float32, opts *Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	wctx, err := w.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("new context: %w", err)
	}

	if err := wctx.SetLanguage(opts.Language); err != nil {
		w.logger.Warnf("set language %q: %v", opts.Language, err)
	}
	wctx.SetThreads(uint(opts.Threads))
	wctx.SetTemperature(float32(opts.Temperature[0]))
	if step := opts.TemperatureFallback(); step > 0 {
		wctx.SetTemperatureFallback(float32(step))
	}
	if opts.CompressionRatioThreshold > 0 {
		wctx.SetEntropyThold(float32(opts.CompressionRatioThreshold))
	}
	if !opts.ConditionOnPreviousText {
		wctx.SetMaxContext(0)
	}
	if opts.InitialPrompt != "" {
		wctx.SetInitialPrompt(opts.InitialPrompt)
	}
	wctx.SetTokenTimestamps(opts.WordTimestamps)
	if clips := opts.Clips(); len(clips) > 0 {
		wctx.SetOffset(clips[0].Start)
		if clips[0].End > clips[0].Start {
			wctx.SetDuration(clips[0].End - clips[0].Start)
		}
	}

	// whisper.cpp only checks for abort when the encoder starts.
	keepGoing := func() bool { return ctx.Err() == nil }
	if err := wctx.Process(samples, keepGoing, nil, nil); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, fmt.Errorf("process: %w", err)
	}

	var segs []Segment
	for {
		seg, err := wctx.NextSegment()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Result{}, fmt.Errorf("next segment: %w", err)
		}
		s := Segment{
			ID:    seg.Num,
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		}
		for _, t := range seg.Tokens {
			s.Tokens = append(s.Tokens, Token{ID: t.Id, Text: t.Text, P: t.P, Start: t.Start, End: t.End})
		}
		if opts.WordTimestamps {
			s.Words = MergePunctuations(BuildWords(s.Tokens), opts.PrependPunctuations, opts.AppendPunctuations)
		}
		segs = append(segs, s)
	}

	lang := opts.Language
	if lang == "auto" {
		lang = wctx.DetectedLanguage()
	}
	if opts.Verbose {
		for _, s := range segs {
			w.logger.Debugf("[%s -> %s] %s", s.Start, s.End, strings.TrimSpace(s.Text))
		}
	}
	return Result{
		Text:     JoinSegments(segs),
		Segments: segs,
		Language: lang,
	}, nil
}

func (w *whisperTranscriber) Close() error {
	return w.model.Close()
}
