package dsp

import (
	"math"
	"math/cmplx"
	"testing"

	"pgregory.net/rapid"
)

func TestDesignerStability(t *testing.T) {
	const fs = 48000.0
	rapid.Check(t, func(t *rapid.T) {
		fc := rapid.Float64Range(1, fs/2-1).Draw(t, "fc")
		q := rapid.Float64Range(0.05, 20).Draw(t, "q")
		for _, f := range []*Biquad{
			NewLowpass(fc, q, fs),
			NewHighpass(fc, q, fs),
			NewAllpass(fc, q, fs),
			NewPeakingEQ(fc, q, 6, fs),
			NewHighShelf(fc, q, -6, fs),
		} {
			p1, p2 := f.Poles()
			if cmplx.Abs(p1) >= 1 || cmplx.Abs(p2) >= 1 {
				t.Fatalf("unstable design at fc=%g q=%g: |p|=%g,%g", fc, q, cmplx.Abs(p1), cmplx.Abs(p2))
			}
		}
	})
}

func TestLowpassResponse(t *testing.T) {
	const fs = 48000.0
	f := NewLowpass(1000, math.Sqrt2/2, fs)
	dc := cmplx.Abs(f.FrequencyResponse(1, fs))
	cut := cmplx.Abs(f.FrequencyResponse(1000, fs))
	high := cmplx.Abs(f.FrequencyResponse(10000, fs))
	if math.Abs(dc-1) > 1e-3 {
		t.Fatalf("dc gain %g", dc)
	}
	if math.Abs(20*math.Log10(cut)+3) > 0.5 {
		t.Fatalf("cutoff gain %g dB", 20*math.Log10(cut))
	}
	if 20*math.Log10(high) > -35 {
		t.Fatalf("stopband only %g dB down", 20*math.Log10(high))
	}
}

func TestAllpassMagnitude(t *testing.T) {
	const fs = 48000.0
	f := NewAllpass(800, math.Sqrt2/2, fs)
	for _, freq := range []float64{50, 200, 800, 3000, 12000} {
		m := cmplx.Abs(f.FrequencyResponse(freq, fs))
		if math.Abs(m-1) > 1e-6 {
			t.Fatalf("allpass magnitude %g at %g Hz", m, freq)
		}
	}
}

func TestProcessMatchesResponse(t *testing.T) {
	const fs = 48000.0
	f := NewPeakingEQ(2000, 2, 6, fs)
	// drive with a sine and compare the steady-state amplitude against
	// the analytic response
	freq := 2000.0
	want := cmplx.Abs(f.FrequencyResponse(freq, fs))
	var peak float64
	n := int(fs / 4)
	for i := 0; i < n; i++ {
		y := f.Process(math.Sin(2 * math.Pi * freq * float64(i) / fs))
		if i > n/2 && math.Abs(y) > peak {
			peak = math.Abs(y)
		}
	}
	if math.Abs(peak-want) > 0.02*want {
		t.Fatalf("steady state %g, analytic %g", peak, want)
	}
}
