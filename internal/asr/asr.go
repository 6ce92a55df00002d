// Package asr defines the transcription capability used by the listener and
// its whisper.cpp backend.
package asr

import (
	"context"
	"errors"
	"strings"
	"time"
)

// SampleRate is the input rate every Transcriber expects.
const SampleRate = 16000

// ErrUnavailable is returned by Open in builds without whisper.cpp.
var ErrUnavailable = errors.New("transcription unavailable: build with -tags whisper")

// Token is one decoder token with its probability and timing.
type Token struct {
	ID    int
	Text  string
	P     float32
	Start time.Duration
	End   time.Duration
}

// Word is a run of tokens forming one word, with punctuation merged in.
type Word struct {
	Text        string
	Start       time.Duration
	End         time.Duration
	Probability float32
}

// Segment is a model-reported span of the input. The listener passes it
// through untouched.
type Segment struct {
	ID     int
	Start  time.Duration
	End    time.Duration
	Text   string
	Tokens []Token
	Words  []Word
}

// Result is the outcome of one transcription call.
type Result struct {
	Text     string
	Segments []Segment
	Language string
}

// Transcriber converts normalized mono samples into text.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, opts *Options) (Result, error)
	Close() error
}

// JoinSegments concatenates segment texts with single spaces.
func JoinSegments(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		t := strings.TrimSpace(s.Text)
		if t == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t)
	}
	return b.String()
}
