package audio

import (
	"errors"
	"math"
	"testing"
)

func TestNormalizeRoundTrip(t *testing.T) {
	in := []float32{-1, -0.5, -1.0 / 3, 0, 0.001, 0.25, 0.999, 1}
	got, err := Normalize([][]byte{EncodePCM16(in)})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("len %d want %d", len(got), len(in))
	}
	step := 1.0 / 32768
	for i := range in {
		if d := math.Abs(float64(got[i] - in[i])); d > step+1e-9 {
			t.Fatalf("sample %d: %v -> %v (diff %v)", i, in[i], got[i], d)
		}
	}
}

func TestNormalizeConcatenatesInOrder(t *testing.T) {
	a := Int16ToBytes([]int16{0, 16384})
	b := Int16ToBytes([]int16{-32768})
	got, err := Normalize([][]byte{a, b})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := []float32{0, 0.5, -1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestNormalizeSampleSplitAcrossChunks(t *testing.T) {
	whole := Int16ToBytes([]int16{1000, -2000, 3000})
	got, err := Normalize([][]byte{whole[:3], whole[3:]})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want, _ := Normalize([][]byte{whole})
	if len(got) != len(want) {
		t.Fatalf("len %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: %v want %v", i, got[i], want[i])
		}
	}
}

func TestNormalizeOddLength(t *testing.T) {
	_, err := Normalize([][]byte{{1, 2, 3}})
	if !errors.Is(err, ErrOddLength) {
		t.Fatalf("expected ErrOddLength, got %v", err)
	}
}

func TestEncodeClamps(t *testing.T) {
	got, _ := Normalize([][]byte{EncodePCM16([]float32{2, -2})})
	if got[0] != float32(math.MaxInt16)/32768 || got[1] != -1 {
		t.Fatalf("clamp failed: %v", got)
	}
}

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Fatalf("empty rms should be 0")
	}
	if got := RMS([]int16{3, -3, 3, -3}); got != 3 {
		t.Fatalf("rms got %v", got)
	}
}
