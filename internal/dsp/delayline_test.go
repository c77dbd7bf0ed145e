package dsp

import (
	"math"
	"testing"
)

func TestVarDelayIntegerDelay(t *testing.T) {
	d := NewVarDelay(256, 0)
	for i := 0; i < 200; i++ {
		x := 0.0
		if i == 0 {
			x = 1
		}
		d.Push(x)
		y := d.Read(100)
		if i == 100 && math.Abs(y-1) > 1e-12 {
			t.Fatalf("impulse not at delay 100: %g", y)
		}
		if i != 100 && math.Abs(y) > 1e-12 {
			t.Fatalf("leakage at step %d: %g", i, y)
		}
	}
}

func TestVarDelaySincInterpolation(t *testing.T) {
	d := NewVarDelay(512, 5)
	// integer delay through the sinc path must still recover the
	// impulse within the window's ripple
	var got float64
	for i := 0; i < 300; i++ {
		x := 0.0
		if i == 0 {
			x = 1
		}
		d.Push(x)
		if i == 64 {
			got = d.Read(64)
		}
	}
	if math.Abs(got-1) > 0.01 {
		t.Fatalf("sinc read at integer delay: %g", got)
	}
}

func TestVarDelayFractionalEnergy(t *testing.T) {
	d := NewVarDelay(512, 5)
	var energy float64
	for i := 0; i < 300; i++ {
		x := 0.0
		if i == 0 {
			x = 1
		}
		d.Push(x)
		y := d.Read(64.5)
		energy += y * y
	}
	if energy < 0.8 || energy > 1.2 {
		t.Fatalf("fractional-delay energy %g", energy)
	}
}

func TestSilentPushShiftsContent(t *testing.T) {
	d := NewVarDelay(256, 0)
	d.Push(1)
	for i := 0; i < 63; i++ {
		d.Push(0)
	}
	if d.Read(63) != 1 {
		t.Fatalf("impulse not found at 63")
	}
	// one silent block of 64 samples moves the content by exactly 64
	for i := 0; i < 64; i++ {
		d.Push(0)
	}
	if d.Read(127) != 1 {
		t.Fatalf("impulse not shifted to 127 after silent block")
	}
}
