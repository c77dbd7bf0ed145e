package dsp

import "math"

// Biquad is a direct-form II transposed second-order section.
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64
}

func (f *Biquad) Process(x float64) float64 {
	y := f.b0*x + f.z1
	f.z1 = f.b1*x - f.a1*y + f.z2
	f.z2 = f.b2*x - f.a2*y
	return y
}

func (f *Biquad) Reset() { f.z1, f.z2 = 0, 0 }

func (f *Biquad) setCoeffs(b0, b1, b2, a0, a1, a2 float64) {
	f.b0, f.b1, f.b2 = b0/a0, b1/a0, b2/a0
	f.a1, f.a2 = a1/a0, a2/a0
}

// FrequencyResponse evaluates H(e^jw) at frequency f (Hz) for sample
// rate fs, for analytic testing.
func (f *Biquad) FrequencyResponse(freq, fs float64) complex128 {
	w := 2 * math.Pi * freq / fs
	z1 := complex(math.Cos(-w), math.Sin(-w))
	z2 := z1 * z1
	num := complex(f.b0, 0) + complex(f.b1, 0)*z1 + complex(f.b2, 0)*z2
	den := complex(1, 0) + complex(f.a1, 0)*z1 + complex(f.a2, 0)*z2
	return num / den
}

// Poles returns the two complex poles of the designed filter; a
// stable design has both magnitudes < 1.
func (f *Biquad) Poles() (p1, p2 complex128) {
	disc := complex(f.a1*f.a1-4*f.a2, 0)
	sq := cSqrt(disc)
	p1 = (complex(-f.a1, 0) + sq) / 2
	p2 = (complex(-f.a1, 0) - sq) / 2
	return
}

func cSqrt(c complex128) complex128 {
	r := real(c)
	if imag(c) == 0 && r >= 0 {
		return complex(math.Sqrt(r), 0)
	}
	m := math.Hypot(real(c), imag(c))
	re := math.Sqrt((m + real(c)) / 2)
	im := math.Sqrt((m - real(c)) / 2)
	if imag(c) < 0 {
		im = -im
	}
	return complex(re, im)
}

// NewLowpass designs an RBJ lowpass biquad at cutoff freq with Q.
func NewLowpass(freq, q, fs float64) *Biquad {
	w0 := 2 * math.Pi * freq / fs
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)
	b0 := (1 - cosw0) / 2
	b1 := 1 - cosw0
	b2 := (1 - cosw0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha
	f := &Biquad{}
	f.setCoeffs(b0, b1, b2, a0, a1, a2)
	return f
}

// NewHighpass designs an RBJ highpass biquad.
func NewHighpass(freq, q, fs float64) *Biquad {
	w0 := 2 * math.Pi * freq / fs
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)
	b0 := (1 + cosw0) / 2
	b1 := -(1 + cosw0)
	b2 := (1 + cosw0) / 2
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha
	f := &Biquad{}
	f.setCoeffs(b0, b1, b2, a0, a1, a2)
	return f
}

// NewAllpass designs an RBJ allpass biquad, used to phase-match the
// sub/main crossover split.
func NewAllpass(freq, q, fs float64) *Biquad {
	w0 := 2 * math.Pi * freq / fs
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)
	b0 := 1 - alpha
	b1 := -2 * cosw0
	b2 := 1 + alpha
	a0 := 1 + alpha
	a1 := -2 * cosw0
	a2 := 1 - alpha
	f := &Biquad{}
	f.setCoeffs(b0, b1, b2, a0, a1, a2)
	return f
}

// NewPeakingEQ designs an RBJ parametric peaking filter: gainDB at
// freq with bandwidth Q.
func NewPeakingEQ(freq, q, gainDB, fs float64) *Biquad {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / fs
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)
	b0 := 1 + alpha*a
	b1 := -2 * cosw0
	b2 := 1 - alpha*a
	a0 := 1 + alpha/a
	a1 := -2 * cosw0
	a2 := 1 - alpha/a
	f := &Biquad{}
	f.setCoeffs(b0, b1, b2, a0, a1, a2)
	return f
}

// NewHighShelf designs an RBJ high-shelf, used by the parametric HRTF's
// head/pinna/torso shadow filters.
func NewHighShelf(freq, q, gainDB, fs float64) *Biquad {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / fs
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)
	sqrtA := math.Sqrt(a)

	b0 := a * ((a + 1) + (a-1)*cosw0 + 2*sqrtA*alpha)
	b1 := -2 * a * ((a - 1) + (a+1)*cosw0)
	b2 := a * ((a + 1) + (a-1)*cosw0 - 2*sqrtA*alpha)
	a0 := (a + 1) - (a-1)*cosw0 + 2*sqrtA*alpha
	a1 := 2 * ((a - 1) - (a+1)*cosw0)
	a2 := (a + 1) - (a-1)*cosw0 - 2*sqrtA*alpha

	f := &Biquad{}
	f.setCoeffs(b0, b1, b2, a0, a1, a2)
	return f
}

// NewFromAnalogProto builds a biquad via bilinear transform from an
// analog-prototype pair of poles and zeros.
func NewFromAnalogProto(zeros, poles [2]complex128, gain, fs float64) *Biquad {
	t := 2 * fs
	bz := bilinearPoly(zeros, t)
	az := bilinearPoly(poles, t)
	f := &Biquad{}
	f.setCoeffs(gain*bz[0], gain*bz[1], gain*bz[2], az[0], az[1], az[2])
	return f
}

// bilinearPoly expands (s-r0)(s-r1) under s = t*(z-1)/(z+1), multiplied
// through by (z+1)^2 and re-expressed in z^-1 powers, into digital-domain
// coefficients [b0 b1 b2] (the caller normalizes by az[0]).
// (t(z-1) - r(z+1)) = (t-r)z - (t+r), so the product over both roots is
// a degree-2 polynomial in z whose coefficients, divided through by z^2,
// give the z^-1-power coefficients returned here.
func bilinearPoly(roots [2]complex128, t float64) [3]float64 {
	r0, r1 := roots[0], roots[1]
	tc := complex(t, 0)
	cz2 := (tc - r0) * (tc - r1)
	cz1 := -((tc-r0)*(tc+r1) + (tc-r1)*(tc+r0))
	cz0 := (tc + r0) * (tc + r1)
	return [3]float64{real(cz2), real(cz1), real(cz0)}
}

// GainZerosPoles designs a biquad directly from gain plus zero/pole
// pairs already in the z-domain.
func GainZerosPoles(gain float64, z0, z1, p0, p1 complex128) *Biquad {
	b0 := gain
	b1 := -gain * real(z0+z1)
	b2 := gain * real(z0*z1)
	a0 := 1.0
	a1 := -real(p0 + p1)
	a2 := real(p0 * p1)
	f := &Biquad{}
	f.setCoeffs(b0, b1, b2, a0, a1, a2)
	return f
}
