package audio

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWAV decodes a PCM WAV stream into mono float32 samples in [-1, 1) and
// reports its sample rate. Multi-channel input is averaged down.
func ReadWAV(r io.ReadSeeker) ([]float32, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("not a valid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("wav has no sample rate")
	}
	return downmix(buf), buf.Format.SampleRate, nil
}

// ReadWAVFile is ReadWAV on a path.
func ReadWAVFile(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return ReadWAV(f)
}

func downmix(buf *goaudio.IntBuffer) []float32 {
	ch := buf.Format.NumChannels
	if ch < 1 {
		ch = 1
	}
	depth := buf.SourceBitDepth
	if depth <= 0 {
		depth = 16
	}
	scale := math.Pow(2, float64(depth-1))
	out := make([]float32, len(buf.Data)/ch)
	for i := range out {
		var sum float64
		for c := 0; c < ch; c++ {
			sum += float64(buf.Data[i*ch+c])
		}
		out[i] = float32(sum / float64(ch) / scale)
	}
	return out
}

// ResampleLinear converts between sample rates by linear interpolation.
func ResampleLinear(in []float32, srcSR, dstSR int) []float32 {
	if srcSR == dstSR || len(in) == 0 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}
	ratio := float64(dstSR) / float64(srcSR)
	outLen := int(float64(len(in))*ratio + 0.9999)
	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		pos := float64(i) / ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}

// FileSource replays audio through the speech gate as if it came from a mic.
type FileSource struct {
	samples  []int16
	pos      int
	rate     int
	frame    int
	gate     *Gate
	realtime bool
}

// OpenFile reads a WAV file and prepares it for replay at gc.SampleRate. With
// realtime set, ReadChunk sleeps for the duration of audio it consumes.
func OpenFile(path string, gc GateConfig, realtime bool) (*FileSource, error) {
	samples, rate, err := ReadWAVFile(path)
	if err != nil {
		return nil, err
	}
	samples = ResampleLinear(samples, rate, gc.SampleRate)
	pcm := make([]int16, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * pcmScale)
		pcm[i] = int16(max(math.MinInt16, min(math.MaxInt16, v)))
	}
	return NewFileSource(pcm, gc, realtime), nil
}

// NewFileSource replays samples already at gc.SampleRate.
func NewFileSource(samples []int16, gc GateConfig, realtime bool) *FileSource {
	frame := gc.FrameSamples()
	if frame <= 0 {
		frame = 160
	}
	return &FileSource{
		samples:  samples,
		rate:     gc.SampleRate,
		frame:    frame,
		gate:     NewGate(gc),
		realtime: realtime,
	}
}

// Calibrate adjusts the threshold from the first d of audio without consuming it.
func (s *FileSource) Calibrate(ctx context.Context, d time.Duration) error {
	end := min(len(s.samples), int(d.Seconds()*float64(s.rate)))
	for i := 0; i < end; i += s.frame {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.gate.Calibrate(s.samples[i:min(i+s.frame, end)])
	}
	return nil
}

// ReadChunk returns the next utterance, or io.EOF once the file is exhausted.
func (s *FileSource) ReadChunk(ctx context.Context, maxDur time.Duration) ([]byte, error) {
	s.gate.SetMaxDuration(maxDur)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.pos >= len(s.samples) {
			if utt, ok := s.gate.Flush(); ok {
				return Int16ToBytes(utt), nil
			}
			return nil, io.EOF
		}
		end := min(s.pos+s.frame, len(s.samples))
		frame := s.samples[s.pos:end]
		s.pos = end
		if s.realtime {
			if err := sleepCtx(ctx, samplesDuration(len(frame), s.rate)); err != nil {
				return nil, err
			}
		}
		if utt, ok := s.gate.Feed(frame, true); ok {
			return Int16ToBytes(utt), nil
		}
	}
}

// SampleRate implements Source.
func (s *FileSource) SampleRate() int { return s.rate }

// Close implements Source.
func (s *FileSource) Close() error { return nil }
