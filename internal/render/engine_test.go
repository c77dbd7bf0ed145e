package render_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/san-kum/vacoustic/internal/config"
	"github.com/san-kum/vacoustic/internal/engineerr"
	"github.com/san-kum/vacoustic/internal/geom"
	"github.com/san-kum/vacoustic/internal/receiver"
	"github.com/san-kum/vacoustic/internal/render"
	"github.com/san-kum/vacoustic/internal/scene"
)

func newCtx() *render.RenderContext {
	cfg := config.DefaultConfig()
	cfg.SampleRate = 48000
	cfg.Fragment = 256
	return render.NewRenderContext(cfg, nil)
}

func TestValidateDuplicateNames(t *testing.T) {
	s := render.NewScene("dup")
	s.Sources = append(s.Sources, scene.NewSource("same"))
	s.Receivers = append(s.Receivers, receiver.New("same", "omni", receiver.Omni{}))
	err := s.Validate()
	assert.Error(t, err)
	assert.True(t, errors.Is(err, engineerr.ErrDuplicateName))
}

func TestValidateMissingMaterial(t *testing.T) {
	s := render.NewScene("mat")
	wall, err := scene.NewReflector("wall", []geom.Vec3{
		{Y: -1, Z: -1}, {Y: 1, Z: -1}, {Y: 1, Z: 1}, {Y: -1, Z: 1},
	})
	assert.NoError(t, err)
	wall.MaterialName = "marble"
	s.Reflectors = append(s.Reflectors, wall)
	err = s.Validate()
	assert.Error(t, err)
	assert.True(t, errors.Is(err, engineerr.ErrMaterialNotFound))
}

func TestConfigureFailsOnBadScene(t *testing.T) {
	s := render.NewScene("bad")
	s.Sources = append(s.Sources, scene.NewSource("a"))
	s.Sources = append(s.Sources, scene.NewSource("a"))
	e := render.NewEngine(newCtx(), s)
	err := e.Configure(scene.AudioConfig{SampleRate: 48000, Fragment: 256})
	assert.Error(t, err)
}

func TestMuteOnStop(t *testing.T) {
	s := render.NewScene("stop")
	src := scene.NewSource("src")
	v := scene.NewSoundVertex("src.0")
	v.LocalPos = geom.Vec3{X: 1}
	v.AirAbsorption = false
	src.Vertices = append(src.Vertices, v)
	s.Sources = append(s.Sources, src)

	rec := receiver.New("out", "omni", receiver.Omni{})
	rec.MuteOnStop = true
	s.Receivers = append(s.Receivers, rec)

	e := render.NewEngine(newCtx(), s)
	assert.NoError(t, e.Configure(scene.AudioConfig{SampleRate: 48000, Fragment: 256}))
	defer e.Release()

	for b := 0; b < 3; b++ {
		for i := range v.Input.Data {
			v.Input.Data[i] = 0.5
		}
		e.Process(render.Transport{Rolling: false, Sample: uint64(b * 256), SampleRate: 48000})
	}
	assert.InDelta(t, 0.0, rec.Out[0].RMS(), 1e-9)
}

func TestParamBusAppliesBetweenBlocks(t *testing.T) {
	s := render.NewScene("bus")
	src := scene.NewSource("src")
	v := scene.NewSoundVertex("src.0")
	v.LocalPos = geom.Vec3{X: 1}
	src.Vertices = append(src.Vertices, v)
	s.Sources = append(s.Sources, src)
	rec := receiver.New("out", "omni", receiver.Omni{})
	s.Receivers = append(s.Receivers, rec)

	e := render.NewEngine(newCtx(), s)
	assert.NoError(t, e.Configure(scene.AudioConfig{SampleRate: 48000, Fragment: 256}))
	defer e.Release()

	e.Params.Post(func() { v.Mute = true })
	for i := range v.Input.Data {
		v.Input.Data[i] = 0.5
	}
	e.Process(render.Transport{Rolling: true, Sample: 0, SampleRate: 48000})
	assert.InDelta(t, 0.0, rec.Out[0].RMS(), 1e-9)
}

func TestLevelReports(t *testing.T) {
	s := render.NewScene("levels")
	rec := receiver.New("out", "omni", receiver.Omni{})
	s.Receivers = append(s.Receivers, rec)
	e := render.NewEngine(newCtx(), s)
	assert.NoError(t, e.Configure(scene.AudioConfig{SampleRate: 48000, Fragment: 256}))
	defer e.Release()

	e.Process(render.Transport{Rolling: true, SampleRate: 48000})
	reports := e.LevelReports()
	assert.Len(t, reports, 1)
	assert.Equal(t, "out", reports[0].Receiver)
	for _, q := range []int{30, 50, 65, 95, 99} {
		assert.Contains(t, reports[0].Percentiles, q)
	}
}
