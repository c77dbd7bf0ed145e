package scene

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeState struct {
	NoPostPrepare
	failConfigure bool
	configured    bool
	released      bool
}

func (f *fakeState) Configure(cfg AudioConfig) error {
	if f.failConfigure {
		return errors.New("boom")
	}
	f.configured = true
	return nil
}

func (f *fakeState) Release() { f.released = true }

func TestConfigureAllRollsBack(t *testing.T) {
	ok1 := &fakeState{}
	ok2 := &fakeState{}
	bad := &fakeState{failConfigure: true}
	after := &fakeState{}

	err := ConfigureAll(AudioConfig{SampleRate: 48000, Fragment: 64}, ok1, ok2, bad, after)
	assert.Error(t, err)
	assert.True(t, ok1.released)
	assert.True(t, ok2.released)
	assert.False(t, after.configured)
}

func TestConfigureAllSuccess(t *testing.T) {
	a := &fakeState{}
	b := &fakeState{}
	assert.NoError(t, ConfigureAll(AudioConfig{SampleRate: 48000, Fragment: 64}, a, b))
	assert.True(t, a.configured)
	assert.True(t, b.configured)
	assert.False(t, a.released)
}

func TestParamBusDrain(t *testing.T) {
	bus := NewParamBus(4)
	x := 0
	bus.Post(func() { x = 1 })
	bus.Post(func() { x++ })
	assert.Equal(t, 0, x)
	bus.Drain()
	assert.Equal(t, 2, x)
	bus.Drain()
	assert.Equal(t, 2, x)
}

func TestParamBusOverflowCounts(t *testing.T) {
	bus := NewParamBus(1)
	bus.Post(func() {})
	bus.Post(func() {})
	assert.Equal(t, uint64(1), bus.Dropped.Load())
}

func TestAtomicFloat(t *testing.T) {
	var f AtomicFloat
	f.Store(3.25)
	assert.Equal(t, 3.25, f.Load())
}
