package whisper

import (
	"time"

	"github.com/rs/zerolog/log"
)

// silenceMeanAbs is the mean absolute amplitude below which a buffer is
// flagged as likely silent. Advisory only: flagged audio is still
// transcribed, the flag just explains empty results in the logs.
const silenceMeanAbs = 0.001

// Diagnostics summarizes an audio buffer before transcription.
type Diagnostics struct {
	Samples      int
	Duration     time.Duration
	Min          float32
	Max          float32
	MeanAbs      float32
	NonZeroRatio float64
	LikelySilent bool
}

// Analyze scans a 16 kHz mono buffer and reports its amplitude profile.
// The extremes accumulate against a zero seed, so a buffer that never
// crosses zero reports the seed on that side.
func Analyze(samples []float32) Diagnostics {
	d := Diagnostics{
		Samples:  len(samples),
		Duration: time.Duration(len(samples)) * time.Second / SampleRate,
	}
	if len(samples) == 0 {
		d.LikelySilent = true
		return d
	}
	var sumAbs float64
	nonZero := 0
	for _, v := range samples {
		if v < d.Min {
			d.Min = v
		}
		if v > d.Max {
			d.Max = v
		}
		if v < 0 {
			sumAbs -= float64(v)
		} else {
			sumAbs += float64(v)
		}
		if v != 0 {
			nonZero++
		}
	}
	d.MeanAbs = float32(sumAbs / float64(len(samples)))
	d.NonZeroRatio = float64(nonZero) / float64(len(samples))
	d.LikelySilent = d.MeanAbs < silenceMeanAbs
	return d
}

// Log writes the summary, at warn level when the buffer looks silent.
func (d Diagnostics) Log() {
	ev := log.Info()
	if d.LikelySilent {
		ev = log.Warn()
	}
	ev.Int("samples", d.Samples).
		Dur("duration", d.Duration).
		Float32("min", d.Min).
		Float32("max", d.Max).
		Float32("mean_abs", d.MeanAbs).
		Float64("non_zero_ratio", d.NonZeroRatio).
		Bool("likely_silent", d.LikelySilent).
		Msg("whisper: audio diagnostics")
}
