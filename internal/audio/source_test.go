package audio

import "testing"

func TestVADFrameValid(t *testing.T) {
	cases := []struct {
		rate, frameMS int
		samples       int
		ok            bool
	}{
		{16000, 10, 160, true},
		{16000, 20, 320, true},
		{16000, 30, 480, true},
		{48000, 30, 1440, true},
		{16000, 25, 400, false},
		{44100, 20, 882, false},
	}
	for _, tc := range cases {
		err := vadFrameValid(tc.rate, tc.frameMS)
		if (err == nil) != tc.ok {
			t.Fatalf("vadFrameValid(%d, %d) = %v, want ok=%v", tc.rate, tc.frameMS, err, tc.ok)
		}
		// webrtc VAD measures frames in samples, not bytes.
		if got := (GateConfig{SampleRate: tc.rate, FrameMS: tc.frameMS}).FrameSamples(); got != tc.samples {
			t.Fatalf("FrameSamples(%d, %d) = %d, want %d", tc.rate, tc.frameMS, got, tc.samples)
		}
	}
}
