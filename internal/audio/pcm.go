package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// pcmScale maps int16 samples onto [-1, 1).
const pcmScale = 32768.0

// ErrOddLength is returned when a PCM16 buffer does not hold whole samples.
var ErrOddLength = errors.New("pcm16 buffer has odd length")

// Normalize concatenates chunks in order and decodes them as little-endian
// int16 samples scaled to float32.
func Normalize(chunks [][]byte) ([]float32, error) {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total%2 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrOddLength, total)
	}
	out := make([]float32, 0, total/2)
	var carry []byte
	for _, c := range chunks {
		if len(carry) == 1 && len(c) > 0 {
			out = append(out, decodeSample(carry[0], c[0]))
			c = c[1:]
			carry = carry[:0]
		}
		n := len(c) &^ 1
		for i := 0; i < n; i += 2 {
			out = append(out, decodeSample(c[i], c[i+1]))
		}
		if n < len(c) {
			carry = append(carry[:0], c[n])
		}
	}
	return out, nil
}

func decodeSample(lo, hi byte) float32 {
	return float32(int16(uint16(lo)|uint16(hi)<<8)) / pcmScale
}

// EncodePCM16 converts float samples to little-endian int16 bytes, clamping to
// the representable range.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := math.Round(float64(s) * pcmScale)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

// Int16ToBytes packs samples as little-endian PCM16.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// RMS returns the root-mean-square amplitude of a frame in int16 units.
func RMS(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}
