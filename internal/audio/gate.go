package audio

import (
	"math"
	"time"
)

const (
	// ambient calibration: threshold decays towards 1.5x the observed energy,
	// with 15% of the old value surviving each second.
	dynamicEnergyDamping = 0.15
	dynamicEnergyRatio   = 1.5
	defaultPreRoll       = 500 * time.Millisecond
)

// GateConfig tunes speech detection on a frame stream.
type GateConfig struct {
	SampleRate      int
	FrameMS         int
	EnergyThreshold float64       // RMS in int16 units
	Pause           time.Duration // trailing silence that ends an utterance
	MaxDuration     time.Duration // hard cap per utterance, 0 for none
	PreRoll         time.Duration // audio kept from before speech onset
}

// FrameSamples is the number of samples per frame.
func (c GateConfig) FrameSamples() int {
	return c.SampleRate * c.FrameMS / 1000
}

// Gate turns a stream of fixed-size frames into utterances: it waits for a
// frame louder than the threshold, records until Pause of quiet or MaxDuration,
// then hands back the samples. Silence between utterances is discarded.
type Gate struct {
	cfg       GateConfig
	threshold float64

	inSpeech bool
	buf      []int16
	elapsed  time.Duration
	silence  time.Duration

	preroll    [][]int16
	prerollDur time.Duration
}

// NewGate returns a gate starting at cfg.EnergyThreshold.
func NewGate(cfg GateConfig) *Gate {
	if cfg.PreRoll == 0 {
		cfg.PreRoll = defaultPreRoll
	}
	return &Gate{cfg: cfg, threshold: cfg.EnergyThreshold}
}

// Threshold returns the current energy threshold.
func (g *Gate) Threshold() float64 { return g.threshold }

// SetMaxDuration changes the utterance cap for subsequent frames.
func (g *Gate) SetMaxDuration(d time.Duration) { g.cfg.MaxDuration = d }

// Calibrate folds one frame of ambient noise into the threshold.
func (g *Gate) Calibrate(frame []int16) {
	secs := samplesDuration(len(frame), g.cfg.SampleRate).Seconds()
	damping := math.Pow(dynamicEnergyDamping, secs)
	target := RMS(frame) * dynamicEnergyRatio
	g.threshold = g.threshold*damping + target*(1-damping)
}

// Feed consumes one frame. voiced is an external VAD verdict; pass true when
// no VAD is in use. It returns a finished utterance when one ends on this frame.
func (g *Gate) Feed(frame []int16, voiced bool) ([]int16, bool) {
	dur := samplesDuration(len(frame), g.cfg.SampleRate)
	speech := voiced && RMS(frame) > g.threshold

	if !g.inSpeech {
		if !speech {
			g.keepPreroll(frame, dur)
			return nil, false
		}
		g.inSpeech = true
		g.buf = g.buf[:0]
		for _, f := range g.preroll {
			g.buf = append(g.buf, f...)
		}
		g.elapsed = g.prerollDur
		g.silence = 0
		g.preroll = g.preroll[:0]
		g.prerollDur = 0
	}

	g.buf = append(g.buf, frame...)
	g.elapsed += dur
	if speech {
		g.silence = 0
	} else {
		g.silence += dur
	}
	if g.silence >= g.cfg.Pause || (g.cfg.MaxDuration > 0 && g.elapsed >= g.cfg.MaxDuration) {
		return g.take(), true
	}
	return nil, false
}

// Flush returns any utterance in progress.
func (g *Gate) Flush() ([]int16, bool) {
	if !g.inSpeech || len(g.buf) == 0 {
		return nil, false
	}
	return g.take(), true
}

// Reset drops any utterance in progress; the threshold is kept.
func (g *Gate) Reset() {
	g.inSpeech = false
	g.buf = g.buf[:0]
	g.elapsed = 0
	g.silence = 0
	g.preroll = g.preroll[:0]
	g.prerollDur = 0
}

func (g *Gate) take() []int16 {
	out := make([]int16, len(g.buf))
	copy(out, g.buf)
	g.Reset()
	return out
}

func (g *Gate) keepPreroll(frame []int16, dur time.Duration) {
	cpy := make([]int16, len(frame))
	copy(cpy, frame)
	g.preroll = append(g.preroll, cpy)
	g.prerollDur += dur
	for len(g.preroll) > 1 && g.prerollDur > g.cfg.PreRoll {
		g.prerollDur -= samplesDuration(len(g.preroll[0]), g.cfg.SampleRate)
		g.preroll = g.preroll[1:]
	}
}
