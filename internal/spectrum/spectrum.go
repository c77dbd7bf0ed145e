// Package spectrum provides band-level analysis of rendered output,
// used by the meter CLI and the rendering tests: a Hann-windowed power
// spectrum bucketed into frequency bands.
package spectrum

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/san-kum/vacoustic/internal/dsp"
)

// PowerSpectrum returns the single-sided magnitude spectrum of a
// Hann-windowed, zero-padded signal.
func PowerSpectrum(data []float64) []float64 {
	n := dsp.NextPow2(len(data))
	buf := make([]complex128, n)
	for i, v := range data {
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(len(data)-1)))
		buf[i] = complex(v*w, 0)
	}
	spec := fft.FFT(buf)
	ps := make([]float64, n/2)
	for i := range ps {
		ps[i] = cmplx.Abs(spec[i])
	}
	return ps
}

// MagnitudeAt returns the spectrum magnitude nearest to freq for a
// signal at sample rate fs.
func MagnitudeAt(ps []float64, freq, fs float64) float64 {
	n := len(ps) * 2
	bin := int(freq / fs * float64(n))
	if bin < 0 {
		bin = 0
	}
	if bin >= len(ps) {
		bin = len(ps) - 1
	}
	return ps[bin]
}

// Bands is a bass/mid/high bucketing of a power spectrum, the compact
// summary the terminal meter draws.
type Bands struct {
	Bass, Mid, High float64
}

// BucketBands sums magnitudes into bass (<250 Hz), mid (250-2000 Hz)
// and high (>2000 Hz) buckets, normalized by bin count.
func BucketBands(ps []float64, fs float64) Bands {
	n := len(ps) * 2
	var b Bands
	var nb, nm, nh float64
	for i, m := range ps {
		f := float64(i) * fs / float64(n)
		switch {
		case f < 250:
			b.Bass += m
			nb++
		case f < 2000:
			b.Mid += m
			nm++
		default:
			b.High += m
			nh++
		}
	}
	if nb > 0 {
		b.Bass /= nb
	}
	if nm > 0 {
		b.Mid /= nm
	}
	if nh > 0 {
		b.High /= nh
	}
	return b
}
