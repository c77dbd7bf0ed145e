// Package audioio drives the engine from a real output device through
// portaudio, standing in for the jack/ALSA collaborator the engine
// normally runs under. The render callback advances the transport one
// fragment per invocation.
package audioio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/san-kum/vacoustic/internal/render"
)

// RenderFunc produces one block for the given transport and returns the
// per-channel output buffers to copy to the device.
type RenderFunc func(tp render.Transport) [][]float32

// Player owns a portaudio output stream fed by a RenderFunc.
type Player struct {
	stream *portaudio.Stream

	render     RenderFunc
	sampleRate float64
	fragment   int
	channels   int

	sample  uint64
	rolling bool
	active  bool
}

// NewPlayer prepares a player for the given block geometry.
func NewPlayer(render RenderFunc, sampleRate float64, fragment, channels int) *Player {
	return &Player{
		render:     render,
		sampleRate: sampleRate,
		fragment:   fragment,
		channels:   channels,
		rolling:    true,
	}
}

// Start opens the default output device and begins the block callback.
func (p *Player) Start() error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	stream, err := portaudio.OpenDefaultStream(0, p.channels, p.sampleRate, p.fragment, p.callback)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("start stream: %w", err)
	}
	p.stream = stream
	p.active = true
	return nil
}

// Stop closes the stream and terminates portaudio.
func (p *Player) Stop() {
	if p.stream != nil {
		p.stream.Stop()
		p.stream.Close()
		p.stream = nil
	}
	portaudio.Terminate()
	p.active = false
}

// SetRolling toggles the transport state seen by the engine.
func (p *Player) SetRolling(rolling bool) { p.rolling = rolling }

func (p *Player) callback(out [][]float32) {
	tp := render.Transport{
		Rolling:    p.rolling,
		Sample:     p.sample,
		SampleRate: p.sampleRate,
	}
	chans := p.render(tp)
	for c := range out {
		if c < len(chans) {
			copy(out[c], chans[c])
		} else {
			for i := range out[c] {
				out[c][i] = 0
			}
		}
	}
	if p.rolling {
		p.sample += uint64(p.fragment)
	}
}
