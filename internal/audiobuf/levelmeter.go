package audiobuf

import (
	"math"
	"sort"
)

// segmentSeconds and overlapFrac set the 125ms/50% segments of the
// Z-weighted level meter.
const (
	segmentSeconds = 0.125
	overlapFrac    = 0.5
)

// Percentiles is the fixed set the level reports carry.
var Percentiles = []int{30, 50, 65, 95, 99}

// LevelMeter is a per-channel Z-weighted RMS/peak/percentile meter fed
// one block at a time, built on a time-domain ring of overlapping
// 125 ms segments.
type LevelMeter struct {
	sampleRate int
	segLen     int
	hop        int

	ring      []float32
	writeHead int
	filled    int

	segRMS []float64 // history of completed-segment RMS (linear)
	segPk  []float64

	rms, peak float64
}

func NewLevelMeter(sampleRate int) *LevelMeter {
	segLen := int(float64(sampleRate) * segmentSeconds)
	if segLen < 1 {
		segLen = 1
	}
	hop := int(float64(segLen) * (1 - overlapFrac))
	if hop < 1 {
		hop = 1
	}
	return &LevelMeter{
		sampleRate: sampleRate,
		segLen:     segLen,
		hop:        hop,
		ring:       make([]float32, segLen),
	}
}

// Process consumes one block. Z-weighting is unity gain across the
// audible band.
func (m *LevelMeter) Process(block *Buffer) {
	for _, s := range block.Data {
		m.ring[m.writeHead] = s
		m.writeHead = (m.writeHead + 1) % m.segLen
		if m.filled < m.segLen {
			m.filled++
		}
		if m.filled == m.segLen && m.writeHead%m.hop == 0 {
			m.commitSegment()
		}
	}
	m.rms = instRMS(block.Data)
	if p := instPeak(block.Data); p > m.peak {
		m.peak = p
	} else {
		m.peak *= 0.999
	}
}

func (m *LevelMeter) commitSegment() {
	var sum float64
	var peak float64
	for _, s := range m.ring {
		v := float64(s)
		sum += v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	rms := math.Sqrt(sum / float64(len(m.ring)))
	m.segRMS = append(m.segRMS, rms)
	m.segPk = append(m.segPk, peak)
	if len(m.segRMS) > 4096 {
		m.segRMS = m.segRMS[len(m.segRMS)-4096:]
		m.segPk = m.segPk[len(m.segPk)-4096:]
	}
}

// RMSdB reports the RMS of the last processed block and PeakdB the
// peak hold (decaying by 0.999 per block without a new maximum), both
// in dB relative to ref.
func (m *LevelMeter) RMSdB(ref float64) float64  { return DBRelative(m.rms, ref) }
func (m *LevelMeter) PeakdB(ref float64) float64 { return DBRelative(m.peak, ref) }

// PercentileDB returns the q-th percentile (0..100) of completed
// segment RMS values, in dB relative to ref.
func (m *LevelMeter) PercentileDB(q int, ref float64) float64 {
	if len(m.segRMS) == 0 {
		return math.Inf(-1)
	}
	sorted := append([]float64(nil), m.segRMS...)
	sort.Float64s(sorted)
	idx := int(float64(q) / 100 * float64(len(sorted)-1))
	return DBRelative(sorted[idx], ref)
}

// Report returns rms, peak, and the fixed percentile set in dB-SPL.
func (m *LevelMeter) Report(ref float64) (rms, peak float64, pct map[int]float64) {
	pct = make(map[int]float64, len(Percentiles))
	for _, q := range Percentiles {
		pct[q] = m.PercentileDB(q, ref)
	}
	return m.RMSdB(ref), m.PeakdB(ref), pct
}

func instRMS(d []float32) float64 {
	if len(d) == 0 {
		return 0
	}
	var sum float64
	for _, v := range d {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(d)))
}

func instPeak(d []float32) float64 {
	var p float64
	for _, v := range d {
		if a := math.Abs(float64(v)); a > p {
			p = a
		}
	}
	return p
}
