package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/san-kum/vacoustic/internal/render"
)

func TestSaveListLoad(t *testing.T) {
	s := New(t.TempDir())
	assert.NoError(t, s.Init())

	levels := []render.LevelReport{
		{
			Receiver: "out",
			Channel:  0,
			RMS:      72.5,
			Peak:     81.2,
			Percentiles: map[int]float64{
				30: 60.1, 50: 65.5, 65: 68.0, 95: 78.2, 99: 80.9,
			},
		},
	}
	id, err := s.Save("demo", 48000, 1024, 200, []string{"calibration of layout \"x\" is stale"}, levels)
	assert.NoError(t, err)
	assert.NotEmpty(t, id)

	runs, err := s.List()
	assert.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.Equal(t, "demo", runs[0].Scene)
	assert.Equal(t, 200, runs[0].Blocks)

	meta, err := s.Load(id)
	assert.NoError(t, err)
	assert.Equal(t, id, meta.ID)
	assert.Len(t, meta.Warnings, 1)
}

func TestListEmptyDir(t *testing.T) {
	s := New("/nonexistent/archive")
	runs, err := s.List()
	assert.NoError(t, err)
	assert.Empty(t, runs)
}
