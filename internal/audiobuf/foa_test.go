package audiobuf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/san-kum/vacoustic/internal/geom"
)

func TestFOARoundTrip(t *testing.T) {
	// add_panned followed by the matched decoder yields 1.5*g for a
	// unit direction
	dirs := []geom.Vec3{
		{X: 1}, {Y: 1}, {Z: 1},
		{X: 1, Y: 1, Z: 1},
		{X: -0.3, Y: 0.8, Z: 0.2},
	}
	for _, d := range dirs {
		d = d.Normalized()
		f := NewFOA(16)
		mono := New(16)
		for i := range mono.Data {
			mono.Data[i] = 1
		}
		g := 0.7
		f.AddPanned(d.X, d.Y, d.Z, mono, g)
		got := f.DecodeAt(3, d.X, d.Y, d.Z)
		assert.InDelta(t, 1.5*g, got, 1e-6, "direction %+v", d)
	}
}

func TestBufferStats(t *testing.T) {
	b := New(4)
	copy(b.Data, []float32{1, -1, 1, -1})
	assert.InDelta(t, 1.0, b.RMS(), 1e-9)
	assert.InDelta(t, 1.0, b.Peak(), 1e-9)
	assert.InDelta(t, 0.0, b.PeakdB(1.0), 1e-9)

	b.Scale(0.5)
	assert.InDelta(t, 0.5, b.Peak(), 1e-9)
}

func TestAppendRing(t *testing.T) {
	b := New(4)
	head := b.AppendRing(0, []float32{1, 2, 3})
	assert.Equal(t, 3, head)
	head = b.AppendRing(head, []float32{4, 5})
	assert.Equal(t, 1, head)
	assert.Equal(t, []float32{5, 2, 3, 4}, b.Data)
}

func TestRotatorW(t *testing.T) {
	src := NewFOA(8)
	dst := NewFOA(8)
	for i := range src.Ch[W].Data {
		src.Ch[W].Data[i] = 0.5
		src.Ch[X].Data[i] = 1
	}
	r := NewRotator()
	// settle the interpolation, then rotate a second block by 90
	// degrees around z: X energy moves into Y
	r.Rotate(dst, src, geom.Euler{Z: math.Pi / 2})
	r.Rotate(dst, src, geom.Euler{Z: math.Pi / 2})
	last := dst.Len() - 1
	assert.InDelta(t, 0.5, float64(dst.Ch[W].Data[last]), 1e-6)
	assert.InDelta(t, 1.0, float64(dst.Ch[Y].Data[last]), 1e-3)
	assert.InDelta(t, 0.0, float64(dst.Ch[X].Data[last]), 1e-3)
}

func TestLevelMeterReport(t *testing.T) {
	m := NewLevelMeter(8000)
	block := New(8000)
	for i := range block.Data {
		block.Data[i] = float32(math.Sin(2 * math.Pi * 100 * float64(i) / 8000))
	}
	m.Process(block)
	rms, peak, pct := m.Report(1.0)
	assert.InDelta(t, 20*math.Log10(math.Sqrt2/2), rms, 0.5)
	assert.InDelta(t, 0.0, peak, 0.1)
	for _, q := range Percentiles {
		assert.Contains(t, pct, q)
	}
	assert.LessOrEqual(t, pct[30], pct[99])
}
