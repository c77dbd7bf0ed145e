package receiver

import (
	"math"

	"github.com/san-kum/vacoustic/internal/audiobuf"
	"github.com/san-kum/vacoustic/internal/dsp"
	"github.com/san-kum/vacoustic/internal/geom"
	"github.com/san-kum/vacoustic/internal/scene"
)

// HRTFParam is the parametric binaural receiver: per ear a
// Woodworth-Schlosberg ITD delay, cascaded high-shelf filters modeling
// head, pinna and torso shadow, a concha notch and an optional
// near-field shelf. The filter coefficients are rebuilt per block from
// the incidence angle.
type HRTFParam struct {
	HeadRadius float64
	NearField  bool

	fs    float64
	delay [2]*dsp.VarDelay

	headShelf  [2]*dsp.Biquad
	pinnaShelf [2]*dsp.Biquad
	torsoShelf [2]*dsp.Biquad
	notch      [2]*dsp.Biquad
	nearShelf  [2]*dsp.Biquad
}

// NewHRTFParam returns the receiver with the default 8.75 cm head.
func NewHRTFParam() *HRTFParam {
	return &HRTFParam{HeadRadius: 0.0875}
}

func (h *HRTFParam) Channels() int { return 2 }

// Configure allocates the ear delays and neutral filters.
func (h *HRTFParam) Configure(cfg scene.AudioConfig) error {
	h.fs = cfg.SampleRate
	maxITD := 2 * h.HeadRadius / cfg.C()
	for ear := 0; ear < 2; ear++ {
		h.delay[ear] = dsp.NewVarDelay(int(maxITD*cfg.SampleRate)+16, 3)
		h.headShelf[ear] = dsp.NewHighShelf(2000, 0.7, 0, cfg.SampleRate)
		h.pinnaShelf[ear] = dsp.NewHighShelf(6000, 0.7, 0, cfg.SampleRate)
		h.torsoShelf[ear] = dsp.NewHighShelf(800, 0.7, 0, cfg.SampleRate)
		h.notch[ear] = dsp.NewPeakingEQ(8500, 4, 0, cfg.SampleRate)
		h.nearShelf[ear] = dsp.NewHighShelf(500, 0.7, 0, cfg.SampleRate)
	}
	return nil
}

// PostPrepare has no cross-wiring.
func (h *HRTFParam) PostPrepare() error { return nil }

// Release drops the delay lines.
func (h *HRTFParam) Release() {
	h.delay = [2]*dsp.VarDelay{}
	h.fs = 0
}

// itd returns the Woodworth-Schlosberg interaural time difference for
// a lateral angle theta = asin(sinLat) (the angle between the source
// direction and the median plane), in seconds.
func (h *HRTFParam) itd(sinLat float64, c float64) float64 {
	theta := math.Asin(geom.Clamp(sinLat, -1, 1))
	return h.HeadRadius / c * (theta + math.Sin(theta))
}

func (h *HRTFParam) AddPointSource(prel geom.Vec3, width float64, chunk *audiobuf.Buffer, out []*audiobuf.Buffer) {
	if h.fs <= 0 {
		return
	}
	const c = 340.0
	// lateralization: +y is left
	for ear := 0; ear < 2; ear++ {
		side := 1.0
		if ear == 1 {
			side = -1
		}
		lat := side * prel.Y
		shadow := 0.5 * (1 - lat) // 0 at same side, 1 contralateral

		// azimuth-indexed interpolation of the published shadow fits:
		// contralateral incidence deepens the head and pinna shelves.
		h.headShelf[ear] = dsp.NewHighShelf(2000+3000*lat*lat, 0.7, -12*shadow, h.fs)
		h.pinnaShelf[ear] = dsp.NewHighShelf(6000, 1.0, -8*shadow*math.Max(0, -prel.X), h.fs)
		h.torsoShelf[ear] = dsp.NewHighShelf(800, 0.7, -3*math.Max(0, -prel.Z), h.fs)
		notchDepth := -10 * math.Max(0, prel.Z)
		h.notch[ear] = dsp.NewPeakingEQ(8500-2000*prel.Z, 4, notchDepth, h.fs)

		itdSamples := h.itd(lat, c) * h.fs
		if lat > 0 {
			itdSamples = 0 // leading ear
		} else {
			itdSamples = -h.itd(lat, c) * h.fs
		}

		dl := h.delay[ear]
		for i := range chunk.Data {
			x := float64(chunk.Data[i])
			dl.Push(x)
			y := dl.Read(itdSamples)
			y = h.headShelf[ear].Process(y)
			y = h.pinnaShelf[ear].Process(y)
			y = h.torsoShelf[ear].Process(y)
			y = h.notch[ear].Process(y)
			if h.NearField {
				y = h.nearShelf[ear].Process(y)
			}
			out[ear].Data[i] += float32(y)
		}
	}
}

func (h *HRTFParam) AddDiffuse(foa *audiobuf.FOABuffer, out []*audiobuf.Buffer) {
	// first-order decode at the two ear axes
	n := foa.Len()
	w := foa.Ch[audiobuf.W].Data
	y := foa.Ch[audiobuf.Y].Data
	for i := 0; i < n; i++ {
		m := float64(w[i]) * sqrtHalf * 2
		out[0].Data[i] += float32(0.5 * (m + float64(y[i])))
		out[1].Data[i] += float32(0.5 * (m - float64(y[i])))
	}
}
