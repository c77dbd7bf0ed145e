package receiver

import (
	"fmt"
	"hash/crc32"
	"math"
	"sort"
	"time"

	"github.com/san-kum/vacoustic/internal/geom"
)

// Speaker is one loudspeaker of a layout: a unit direction with the
// per-channel calibration metadata/.
type Speaker struct {
	Az, El float64 // radians
	Radius float64 // meters, used as given
	Gain   float64 // linear calibration gain
	Delay  float64 // seconds of extra layout delay
	EQ     []float64
	// Connect is the external port name, carried for the audio
	// collaborator; the core does not interpret it.
	Connect string

	dir           geom.Vec3
	densityWeight float64
}

// Dir returns the cached unit direction.
func (s *Speaker) Dir() geom.Vec3 { return s.dir }

// DensityWeight is the inverse local angular density correction.
func (s *Speaker) DensityWeight() float64 { return s.densityWeight }

// NewSpeaker places a speaker at azimuth/elevation in degrees.
func NewSpeaker(azDeg, elDeg, radius float64) *Speaker {
	az := azDeg * math.Pi / 180
	el := elDeg * math.Pi / 180
	return &Speaker{Az: az, El: el, Radius: radius, Gain: 1}
}

// Layout is a speaker set plus subwoofers and calibration provenance.
type Layout struct {
	Name     string
	Speakers []*Speaker
	Subs     []*Speaker

	// Decorrelation length in seconds; 0 disables the filterbank.
	DecorrLen float64
	// SubCutoff is the crossover frequency in Hz; 0 disables the split.
	SubCutoff float64
	// ConvolveBeforeCalib orders the external FIR stage.
	ConvolveBeforeCalib bool

	CalibDate  time.Time
	CalibFor   string
	Checksum   uint32
	CalibLevel float64
}

// NewLayout derives the cached speaker state: unit vectors, a unit
// gain where none is set, and the density weights.
func NewLayout(name string, speakers []*Speaker, subs []*Speaker) *Layout {
	l := &Layout{Name: name, Speakers: speakers, Subs: subs, DecorrLen: 0.05}
	for _, s := range append(append([]*Speaker{}, speakers...), subs...) {
		s.dir = geom.SphericalToCartesian(s.Az, s.El, 1)
		if s.Gain == 0 {
			s.Gain = 1
		}
	}
	l.computeDensityWeights()
	return l
}

// MaxRadius returns the largest speaker radius, the reference for the
// static delay compensation.
func (l *Layout) MaxRadius() float64 {
	var r float64
	for _, s := range l.Speakers {
		if s.Radius > r {
			r = s.Radius
		}
	}
	return r
}

// computeDensityWeights assigns each speaker the normalized mean
// angular distance to its nearest neighbors, approximating the inverse
// of the local angular density.
func (l *Layout) computeDensityWeights() {
	n := len(l.Speakers)
	if n < 2 {
		for _, s := range l.Speakers {
			s.densityWeight = 1
		}
		return
	}
	var sum float64
	for _, s := range l.Speakers {
		dists := make([]float64, 0, n-1)
		for _, o := range l.Speakers {
			if o == s {
				continue
			}
			dists = append(dists, math.Acos(geom.Clamp(s.dir.Dot(o.dir), -1, 1)))
		}
		sort.Float64s(dists)
		k := 2
		if len(dists) < k {
			k = len(dists)
		}
		var m float64
		for i := 0; i < k; i++ {
			m += dists[i]
		}
		s.densityWeight = m / float64(k)
		sum += s.densityWeight
	}
	mean := sum / float64(n)
	if mean <= 0 {
		mean = 1
	}
	for _, s := range l.Speakers {
		s.densityWeight /= mean
	}
}

// ChecksumCalib computes the CRC over the calibration-affecting
// attributes, matching what the layout file carries.
func (l *Layout) ChecksumCalib() uint32 {
	h := crc32.NewIEEE()
	for _, s := range append(append([]*Speaker{}, l.Speakers...), l.Subs...) {
		fmt.Fprintf(h, "%.6f %.6f %.6f %.6f %.6f %d;",
			s.Az, s.El, s.Radius, s.Gain, s.Delay, len(s.EQ))
	}
	fmt.Fprintf(h, "%.3f %.3f", l.SubCutoff, l.CalibLevel)
	return h.Sum32()
}

// CheckCalibration appends warnings for stale, mismatched or
// type-incompatible calibration; it never blocks rendering.
func (l *Layout) CheckCalibration(receiverType string, maxAge time.Duration, now time.Time, warn func(format string, args ...any)) {
	if l.CalibDate.IsZero() {
		return
	}
	if now.Sub(l.CalibDate) > maxAge {
		warn("calibration of layout %q from %s is older than %s", l.Name, l.CalibDate.Format("2006-01-02"), maxAge)
	}
	if l.CalibFor != "" && l.CalibFor != receiverType {
		warn("layout %q was calibrated for receiver type %q, used with %q", l.Name, l.CalibFor, receiverType)
	}
	if l.Checksum != 0 && l.Checksum != l.ChecksumCalib() {
		warn("layout %q calibration checksum mismatch", l.Name)
	}
}
