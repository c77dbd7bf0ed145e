package render

import (
	"math"

	"github.com/san-kum/vacoustic/internal/geom"
	"github.com/san-kum/vacoustic/internal/receiver"
)

// renderPath runs the block-level DSP for one acoustic path
// into one receiver. It returns false when the path was skipped; in
// that case the delay line has still advanced by one silent block so
// the propagation timeline stays consistent.
func (e *Engine) renderPath(a *pathArena, idx int, rec *receiver.Receiver, tp Transport) bool {
	p := &a.paths[idx]
	t := tp.Time()
	v := p.Vertex

	// 1. activity, receiver gate, broken chains, visibility
	if !v.IsActive(t) || v.Mute || !p.visible || !a.chainActive(idx, t) {
		return e.silentAdvance(p)
	}
	if e.soloActive && !v.Solo {
		return e.silentAdvance(p)
	}
	if p.Order == 0 && !rec.RenderPoint {
		return e.silentAdvance(p)
	}
	if p.Order > 0 && !rec.RenderImage {
		return e.silentAdvance(p)
	}

	// 2. order and layer gating with cross-fade
	if !v.OrderInRange(p.Order) || !rec.OrderInRange(p.Order) {
		return e.silentAdvance(p)
	}
	if v.Layers&rec.Layers != 0 {
		p.layerTarget = 1
	} else {
		p.layerTarget = 0
		if p.layerGain <= 1e-6 {
			p.layerGain = 0
			return e.silentAdvance(p)
		}
	}

	// 3. read the source with its directivity
	recPos := rec.Pose().Position
	srcPose := v.Pose()
	srcDir := srcPose.Orient.Unrotate(recPos.Sub(srcPose.Position)).Normalized()
	v.ReadDirective(e.chunk, srcDir)

	// 4. obstacle walk: each active obstacle updates the effective
	// source position through its diffraction state
	effPos := p.effPos
	for oi, obst := range e.scene.Obstacles {
		if !obst.IsActive(t) {
			p.diffStates[oi].Blocked = false
			e.diffRamp[oi] = 0
			continue
		}
		effPos = p.diffStates[oi].Update(obst, effPos, recPos, e.c, e.cfg.SampleRate)
		e.diffRamp[oi] = p.diffStates[oi].RampStep(e.cfg.Fragment)
	}

	// 5. distance, gain and relative position from the receiver
	prel, dist := rec.RelPos(effPos)
	if dist > v.MaxDist {
		return e.silentAdvance(p)
	}
	gain := rec.PointGain(dist, v.GainModel) * p.reflGain * v.Gain

	// 6. receiver mask gain; air absorption; delay compensation
	if rec.Mask != nil {
		gain *= rec.Mask.Gain(prel)
	}
	air := 0.0
	if v.AirAbsorption {
		air = math.Exp(-dist * e.cfg.SampleRate / (e.c * e.airDivisor))
	}
	delayDist := math.Max(0, dist-e.c*(rec.DelayComp+rec.RecDelayComp))

	// 7. transport gate
	if !tp.Rolling && rec.MuteOnStop {
		gain = 0
	}
	if math.IsNaN(gain) || math.IsInf(gain, 0) {
		gain = 0
		e.ctx.NonFiniteCount++
	}

	p.nextDist = delayDist * e.cfg.SampleRate / e.c // in samples
	p.nextGain = gain
	p.nextAir = air
	if !p.primed {
		p.curDist = p.nextDist
		p.curGain = p.nextGain
		p.curAir = p.nextAir
		p.primed = true
	}

	// 8. sample loop: ramp distance, gain and air coefficient; push
	// through the delay line; diffraction filters; air IIR; broadband
	// and layer gain; then the reflection filter chain
	n := e.cfg.Fragment
	inv := 1 / float64(n)
	dDist := (p.nextDist - p.curDist) * inv
	dGain := (p.nextGain - p.curGain) * inv
	dAir := (p.nextAir - p.curAir) * inv
	dLayer := 0.0
	if p.layerTarget != p.layerGain {
		step := e.cfg.BlockTime() / math.Max(1e-3, rec.LayerFadeLen)
		if p.layerTarget > p.layerGain {
			dLayer = math.Min(step, p.layerTarget-p.layerGain) * inv
		} else {
			dLayer = math.Max(-step, p.layerTarget-p.layerGain) * inv
		}
	}
	for i, r := range p.chain {
		p.reflFilters[i].Update(r)
	}

	dist64 := p.curDist
	g := p.curGain
	airC := p.curAir
	layer := p.layerGain
	useDelay := v.DelayLine
	for i := 0; i < n; i++ {
		dist64 += dDist
		g += dGain
		airC += dAir
		layer += dLayer

		x := float64(e.chunk.Data[i])
		if useDelay {
			p.delay.Push(x)
			x = p.delay.Read(dist64)
		}
		for oi := range p.diffStates {
			s := &p.diffStates[oi]
			if !s.Blocked {
				continue
			}
			s.A1 += e.diffRamp[oi]
			x = s.Process(x, e.scene.Obstacles[oi].Transmission)
		}
		if v.AirAbsorption {
			p.airState = (1-airC)*x + airC*p.airState
			if math.IsNaN(p.airState) || math.IsInf(p.airState, 0) {
				p.airState = 0
			}
			x = p.airState
		}
		x *= g * layer
		for fi := range p.reflFilters {
			x = p.reflFilters[fi].Process(x)
		}
		e.chunk.Data[i] = float32(x)
	}

	// 9. post-ramp: end values become the next block's previous values
	p.curDist = p.nextDist
	p.curGain = p.nextGain
	p.curAir = p.nextAir
	p.layerGain = geom.Clamp(layer, 0, 1)
	for oi := range p.diffStates {
		p.diffStates[oi].Commit()
	}

	// 10. minimum-level gate
	if v.MinLevel > 0 && e.chunk.RMS() <= v.MinLevel {
		e.ctx.SkippedPaths++
		return false
	}

	// 11. hand to the receiver
	width := math.Min(math.Pi/2, math.Pi/4*v.Size/math.Max(0.01, dist))
	scattering := 0.0
	if p.Reflector != nil {
		scattering = p.Reflector.Scattering
	}
	rec.AddPointSourceWithScattering(prel, width, scattering, e.chunk)
	return true
}

// silentAdvance pushes one silent block through the delay line so the
// timeline keeps moving while a path is gated.
func (e *Engine) silentAdvance(p *AcousticPath) bool {
	if p.Vertex.DelayLine {
		for i := 0; i < e.cfg.Fragment; i++ {
			p.delay.Push(0)
		}
	}
	e.ctx.SkippedPaths++
	return false
}
