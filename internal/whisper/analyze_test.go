package whisper

import (
	"math"
	"testing"
	"time"
)

func approx(t *testing.T, name string, got, want, eps float64) {
	t.Helper()
	if math.Abs(got-want) > eps {
		t.Errorf("%s = %v, want %v (±%v)", name, got, want, eps)
	}
}

func constant(n int, v float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func alternating(n int, v float32) []float32 {
	s := make([]float32, n)
	for i := range s {
		if i%2 == 0 {
			s[i] = v
		} else {
			s[i] = -v
		}
	}
	return s
}

func TestAnalyzeFlagsNearSilence(t *testing.T) {
	tests := []struct {
		name   string
		input  []float32
		silent bool
	}{
		{"all zero", constant(16000, 0), true},
		{"within half a millivolt", alternating(16000, 0.0005), true},
		{"just under threshold", constant(16000, 0.0009), true},
		{"at threshold", constant(16000, 0.001), false},
		{"clearly voiced", alternating(16000, 0.01), false},
		{"loud", alternating(16000, 0.5), false},
		{"empty", nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := Analyze(tc.input)
			if d.LikelySilent != tc.silent {
				t.Errorf("LikelySilent = %v, want %v (meanAbs=%v)", d.LikelySilent, tc.silent, d.MeanAbs)
			}
		})
	}
}

func TestAnalyzeAmplitudeProfile(t *testing.T) {
	samples := []float32{0.5, -0.25, 0, 0.25}
	d := Analyze(samples)

	if d.Samples != 4 {
		t.Errorf("Samples = %d, want 4", d.Samples)
	}
	approx(t, "Min", float64(d.Min), -0.25, 1e-6)
	approx(t, "Max", float64(d.Max), 0.5, 1e-6)
	approx(t, "MeanAbs", float64(d.MeanAbs), 0.25, 1e-6)
	approx(t, "NonZeroRatio", d.NonZeroRatio, 0.75, 1e-9)
	if d.LikelySilent {
		t.Error("LikelySilent = true for a voiced buffer")
	}
}

func TestAnalyzeExtremesSeedAtZero(t *testing.T) {
	// A buffer that never goes negative keeps the zero seed as its minimum.
	d := Analyze([]float32{0.2, 0.4, 0.1})
	if d.Min != 0 {
		t.Errorf("Min = %v, want 0 for an all-positive buffer", d.Min)
	}
	approx(t, "Max", float64(d.Max), 0.4, 1e-6)
}

func TestAnalyzeDuration(t *testing.T) {
	tests := []struct {
		samples int
		want    time.Duration
	}{
		{0, 0},
		{16000, time.Second},
		{8000, 500 * time.Millisecond},
		{48000, 3 * time.Second},
	}
	for _, tc := range tests {
		d := Analyze(constant(tc.samples, 0.1))
		if d.Duration != tc.want {
			t.Errorf("Analyze(%d samples).Duration = %v, want %v", tc.samples, d.Duration, tc.want)
		}
	}
}
