package dsp

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func directConv(x, h []float64) []float64 {
	out := make([]float64, len(x))
	for n := range out {
		var acc float64
		for k := 0; k < len(h); k++ {
			if n-k >= 0 {
				acc += h[k] * x[n-k]
			}
		}
		out[n] = acc
	}
	return out
}

func TestOverlapSaveMatchesDirect(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		block := rapid.SampledFrom([]int{16, 32, 64}).Draw(t, "block")
		irLen := rapid.IntRange(1, block).Draw(t, "irLen")
		ir := make([]float64, irLen)
		for i := range ir {
			ir[i] = rapid.Float64Range(-1, 1).Draw(t, "ir")
		}
		nBlocks := rapid.IntRange(1, 4).Draw(t, "nBlocks")
		x := make([]float64, block*nBlocks)
		for i := range x {
			x[i] = rapid.Float64Range(-1, 1).Draw(t, "x")
		}

		conv := NewOverlapSave(ir, block)
		got := make([]float64, 0, len(x))
		for b := 0; b < nBlocks; b++ {
			got = append(got, conv.Process(x[b*block:(b+1)*block])...)
		}
		want := directConv(x, ir)
		for i := range want {
			if math.Abs(got[i]-want[i]) > 1e-5 {
				t.Fatalf("sample %d: got %g want %g", i, got[i], want[i])
			}
		}
	})
}

func TestPartitionedMatchesDirect(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		block := rapid.SampledFrom([]int{16, 32}).Draw(t, "block")
		parts := rapid.IntRange(1, 5).Draw(t, "parts")
		irLen := rapid.IntRange(1, parts*block).Draw(t, "irLen")
		ir := make([]float64, irLen)
		for i := range ir {
			ir[i] = rapid.Float64Range(-1, 1).Draw(t, "ir")
		}
		nBlocks := rapid.IntRange(1, 8).Draw(t, "nBlocks")
		x := make([]float64, block*nBlocks)
		for i := range x {
			x[i] = rapid.Float64Range(-1, 1).Draw(t, "x")
		}

		conv := NewPartitioned(ir, block)
		got := make([]float64, 0, len(x))
		for b := 0; b < nBlocks; b++ {
			got = append(got, conv.Process(x[b*block:(b+1)*block])...)
		}
		want := directConv(x, ir)
		for i := range want {
			if math.Abs(got[i]-want[i]) > 1e-5 {
				t.Fatalf("sample %d: got %g want %g (block=%d irLen=%d)", i, got[i], want[i], block, irLen)
			}
		}
	})
}

func TestMinPhaseKeepsMagnitude(t *testing.T) {
	ir := []float64{0.1, 0.4, 1.0, 0.4, 0.1}
	mp := MinPhase(ir)
	if len(mp) != len(ir) {
		t.Fatalf("length changed: %d != %d", len(mp), len(ir))
	}
	var eIn, eOut float64
	for i := range ir {
		eIn += ir[i] * ir[i]
		eOut += mp[i] * mp[i]
	}
	if eOut < 0.5*eIn || eOut > 2*eIn {
		t.Fatalf("min phase energy drifted: in %g out %g", eIn, eOut)
	}
}
