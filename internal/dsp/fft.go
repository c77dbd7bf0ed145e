// Package dsp implements the signal-processing primitives of the
// engine: the FFT wrapper, overlap-save and partitioned convolution,
// biquad designers, and the variable delay line.
package dsp

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// NextPow2 rounds n up to the next power of two.
func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// RealToComplex performs a zero-padded forward FFT of real input.
func RealToComplex(x []float64) []complex128 {
	return fft.FFTReal(x)
}

// ComplexToReal performs an inverse FFT, returning the real part.
func ComplexToReal(X []complex128) []float64 {
	y := fft.IFFT(X)
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = real(v)
	}
	return out
}

// Forward is the full complex-to-complex FFT (used by the Hilbert
// transform for min-phase conversion of calibration FIRs).
func Forward(x []complex128) []complex128 { return fft.FFT(x) }

// Inverse is the full complex-to-complex inverse FFT.
func Inverse(X []complex128) []complex128 { return fft.IFFT(X) }

// Hilbert returns the analytic signal of a real sequence via the
// standard single-sideband spectral construction, used to derive a
// minimum-phase equivalent of a linear-phase calibration FIR.
func Hilbert(x []float64) []complex128 {
	n := len(x)
	X := make([]complex128, n)
	for i, v := range x {
		X[i] = complex(v, 0)
	}
	X = fft.FFT(X)
	h := make([]float64, n)
	switch {
	case n%2 == 0:
		h[0] = 1
		h[n/2] = 1
		for i := 1; i < n/2; i++ {
			h[i] = 2
		}
	default:
		h[0] = 1
		for i := 1; i < (n+1)/2; i++ {
			h[i] = 2
		}
	}
	for i := range X {
		X[i] *= complex(h[i], 0)
	}
	return fft.IFFT(X)
}

// MinPhase converts a linear-phase (symmetric) impulse response to its
// minimum-phase equivalent of the same magnitude spectrum, via the
// complex cepstrum method: log spectrum -> Hilbert window -> exp.
func MinPhase(ir []float64) []float64 {
	n := NextPow2(len(ir) * 4)
	padded := make([]complex128, n)
	for i, v := range ir {
		padded[i] = complex(v, 0)
	}
	spec := fft.FFT(padded)
	logmag := make([]float64, n)
	for i, v := range spec {
		m := cmplx.Abs(v)
		if m < 1e-12 {
			m = 1e-12
		}
		logmag[i] = math.Log(m)
	}
	cepComplex := Hilbert(logmag)
	minPhaseSpec := make([]complex128, n)
	for i := range minPhaseSpec {
		minPhaseSpec[i] = cmplx.Exp(cepComplex[i])
	}
	out := fft.IFFT(minPhaseSpec)
	result := make([]float64, len(ir))
	for i := range result {
		result[i] = real(out[i])
	}
	return result
}
