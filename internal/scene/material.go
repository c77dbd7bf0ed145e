package scene

import (
	"math"
	"sort"

	"github.com/san-kum/vacoustic/internal/engineerr"
)

// Material is a named per-frequency absorption table. At configure
// time the table is fitted to the (reflectivity, damping) parameters of
// the first-order reflection filter at the running sample rate.
type Material struct {
	Name        string
	Frequencies []float64
	Alpha       []float64
}

// MaterialDB maps material names to their tables.
type MaterialDB struct {
	materials map[string]*Material
}

// NewMaterialDB returns an empty database.
func NewMaterialDB() *MaterialDB {
	return &MaterialDB{materials: make(map[string]*Material)}
}

// Add registers a material under its name.
func (db *MaterialDB) Add(m *Material) { db.materials[m.Name] = m }

// Lookup returns the named material or an error.
func (db *MaterialDB) Lookup(name string) (*Material, error) {
	m, ok := db.materials[name]
	if !ok {
		return nil, engineerr.NewConfigError(name, engineerr.ErrMaterialNotFound)
	}
	return m, nil
}

// ApplyTo fits the named material and writes the resulting parameters
// into the reflector; called at configure time for every face with a
// material reference.
func (db *MaterialDB) ApplyTo(r *Reflector, fs float64) error {
	if r.MaterialName == "" {
		return nil
	}
	m, err := db.Lookup(r.MaterialName)
	if err != nil {
		return err
	}
	r.Reflectivity, r.Damping = m.Fit(fs)
	return nil
}

// Fit converts the absorption table into (reflectivity, damping) of the
// 1-pole reflection filter y = damping*y + reflectivity*(1-damping)*x:
// the reflected amplitude sqrt(1-alpha) is matched at the band-averaged
// low and high frequencies, solving the two-point magnitude equation in
// closed form.
func (m *Material) Fit(fs float64) (reflectivity, damping float64) {
	n := len(m.Frequencies)
	if n == 0 || len(m.Alpha) != n {
		return 1, 0
	}
	bands := make([]band, n)
	for i := range bands {
		a := geomClamp(m.Alpha[i], 0, 1)
		bands[i] = band{f: m.Frequencies[i], g: math.Sqrt(1 - a)}
	}
	sort.Slice(bands, func(i, j int) bool { return bands[i].f < bands[j].f })
	if n == 1 {
		return geomClamp(bands[0].g, 0, 1), 0
	}

	half := n / 2
	fLow, gLow := bandMean(bands[:half])
	fHigh, gHigh := bandMean(bands[half:])
	if gLow <= 0 {
		return 0, 0
	}

	w1 := 2 * math.Pi * fLow / fs
	w2 := 2 * math.Pi * fHigh / fs
	c1, c2 := math.Cos(w1), math.Cos(w2)

	r := (gHigh / gLow) * (gHigh / gLow)
	var d float64
	if math.Abs(r-1) > 1e-9 {
		// (r-1)d^2 + 2(c1 - r*c2)d + (r-1) = 0
		a := r - 1
		b := 2 * (c1 - r*c2)
		disc := b*b - 4*a*a
		if disc >= 0 {
			sq := math.Sqrt(disc)
			for _, cand := range []float64{(-b + sq) / (2 * a), (-b - sq) / (2 * a)} {
				if cand >= 0 && cand < 1 {
					d = cand
					break
				}
			}
		}
	}
	d = geomClamp(d, 0, 0.999)

	mag1 := math.Sqrt(1 - 2*d*c1 + d*d)
	coef := gLow * mag1
	if 1-d > 0 {
		reflectivity = coef / (1 - d)
	}
	return geomClamp(reflectivity, 0, 1), d
}

// ReflectionResponse evaluates the fitted filter's amplitude at f, for
// verification against the absorption table.
func ReflectionResponse(reflectivity, damping, f, fs float64) float64 {
	w := 2 * math.Pi * f / fs
	coef := reflectivity * (1 - damping)
	return coef / math.Sqrt(1-2*damping*math.Cos(w)+damping*damping)
}

type band struct{ f, g float64 }

func bandMean(bands []band) (f, g float64) {
	var fsum, gsum float64
	for _, b := range bands {
		fsum += math.Log(math.Max(1, b.f))
		gsum += b.g
	}
	n := float64(len(bands))
	return math.Exp(fsum / n), gsum / n
}

func geomClamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
