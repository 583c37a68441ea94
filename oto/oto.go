// Package oto plays rendered audio on the default output device.
package oto

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/cwolffff/m00sic/synth"
	"github.com/ebitengine/oto/v3"
)

type (
	// OtoContext wraps the process-wide oto context. oto allows only one
	// context per process, so create it once and reuse it.
	OtoContext struct {
		context *oto.Context
	}

	// Playback is a buffer being played.
	Playback struct {
		player *oto.Player
	}
)

const pollInterval = 20 * time.Millisecond

// NewContext opens the audio device for 44100 Hz stereo float32 output and
// waits until it is ready.
func NewContext() (*OtoContext, error) {
	op := &oto.NewContextOptions{
		SampleRate:   synth.SampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	}
	otoContext, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &OtoContext{context: otoContext}, nil
}

// Play starts playing the buffer and returns immediately.
func (c *OtoContext) Play(buffer synth.AudioBuffer) *Playback {
	p := c.context.NewPlayer(bytes.NewReader(FloatBufferToLE(buffer, nil)))
	p.Play()
	return &Playback{player: p}
}

// Close suspends the device; oto does not support closing a context for
// good.
func (c *OtoContext) Close() error {
	if err := c.context.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

// Wait blocks until the playback has finished or ctx is done; in the latter
// case the playback is stopped.
func (p *Playback) Wait(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for p.player.IsPlaying() {
		select {
		case <-ctx.Done():
			p.player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Stop pauses the playback; it cannot be resumed.
func (p *Playback) Stop() {
	p.player.Pause()
}

// FloatBufferToLE converts samples to little endian float32 bytes, clamping
// to [-1, 1]. The result is appended to dst, so a previous buffer can be
// reused by passing it with zero length.
func FloatBufferToLE(buffer []float32, dst []byte) []byte {
	var tmp [4]byte
	for _, v := range buffer {
		v = max(-1, min(1, v))
		binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(v))
		dst = append(dst, tmp[:]...)
	}
	return dst
}
