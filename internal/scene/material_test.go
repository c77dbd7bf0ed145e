package scene

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/san-kum/vacoustic/internal/geom"
)

func mustReflector(t *testing.T, name string) *Reflector {
	t.Helper()
	r, err := NewReflector(name, []geom.Vec3{
		{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestFitFlatAbsorption(t *testing.T) {
	// frequency-flat absorption needs no damping and a reflectivity of
	// sqrt(1-alpha)
	m := &Material{
		Name:        "flat",
		Frequencies: []float64{125, 250, 500, 1000, 2000, 4000},
		Alpha:       []float64{0.19, 0.19, 0.19, 0.19, 0.19, 0.19},
	}
	refl, damp := m.Fit(44100)
	assert.InDelta(t, math.Sqrt(1-0.19), refl, 1e-3)
	assert.InDelta(t, 0.0, damp, 1e-3)
}

func TestFitRoundTrip(t *testing.T) {
	// rising absorption toward high frequencies: the fitted filter's
	// reflected amplitude must track sqrt(1-alpha) per band
	m := &Material{
		Name:        "curtain",
		Frequencies: []float64{125, 250, 500, 1000, 2000, 4000},
		Alpha:       []float64{0.05, 0.1, 0.2, 0.35, 0.5, 0.6},
	}
	const fs = 44100.0
	refl, damp := m.Fit(fs)
	assert.Greater(t, damp, 0.0)
	assert.Less(t, damp, 1.0)
	for i, f := range m.Frequencies {
		got := ReflectionResponse(refl, damp, f, fs)
		want := math.Sqrt(1 - m.Alpha[i])
		assert.InDelta(t, want, got, 0.2, "band %g Hz", f)
	}
}

func TestFitMonotoneInDamping(t *testing.T) {
	// more damping means more high-frequency absorption
	const fs = 44100.0
	prev := math.Inf(1)
	for _, damp := range []float64{0, 0.2, 0.4, 0.6, 0.8} {
		resp := ReflectionResponse(1, damp, 8000, fs)
		assert.Less(t, resp, prev+1e-12, "damping %g", damp)
		prev = resp
	}
}

func TestMaterialDBLookup(t *testing.T) {
	db := NewMaterialDB()
	db.Add(&Material{Name: "brick", Frequencies: []float64{1000}, Alpha: []float64{0.1}})

	_, err := db.Lookup("brick")
	assert.NoError(t, err)
	_, err = db.Lookup("unobtainium")
	assert.Error(t, err)
}

func TestMaterialApplyTo(t *testing.T) {
	db := NewMaterialDB()
	db.Add(&Material{
		Name:        "brick",
		Frequencies: []float64{125, 4000},
		Alpha:       []float64{0.02, 0.07},
	})
	r := mustReflector(t, "wall")
	r.MaterialName = "brick"
	assert.NoError(t, db.ApplyTo(r, 44100))
	assert.Greater(t, r.Reflectivity, 0.9)

	r2 := mustReflector(t, "wall2")
	r2.MaterialName = "missing"
	assert.Error(t, db.ApplyTo(r2, 44100))
}
