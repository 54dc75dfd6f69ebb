package dsp

import (
	"fmt"
	"sync/atomic"

	"github.com/chewxy/math32"
	"github.com/dh1tw/gosamplerate"
)

const (
	bassBoostFreq = 200.0
	bassBoostQ    = 0.707
	rateEpsilon   = 0.001
)

// Chain runs audio through the fixed effects order: equalizer, bass
// boost, pitch/tempo rate conversion, reverb, echo and a final soft
// clip. Parameter updates are published as an immutable snapshot; the
// processing goroutine picks them up at the next block boundary, so
// concurrent SetParams calls never tear a half-applied configuration.
type Chain struct {
	samplerate float64
	channels   int

	params  atomic.Pointer[Params]
	applied *Params

	eq     *equalizer
	bass   *biquad
	reverb *reverb
	echo   *echo
	src    gosamplerate.Src
	hasSrc bool
}

// NewChain returns an effects chain for the given stream layout with
// default (transparent) parameters.
func NewChain(samplerate float64, channels int) (*Chain, error) {
	if samplerate <= 0 {
		return nil, fmt.Errorf("invalid samplerate %v", samplerate)
	}
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}

	c := &Chain{
		samplerate: samplerate,
		channels:   channels,
		eq:         newEqualizer(samplerate, channels),
		bass:       newBiquad(channels),
	}

	src, err := gosamplerate.New(gosamplerate.SRC_SINC_FASTEST, channels, 65536)
	if err != nil {
		return nil, fmt.Errorf("could not create sample rate converter: %w", err)
	}
	c.src = src
	c.hasSrc = true

	p := DefaultParams()
	c.params.Store(&p)

	return c, nil
}

// Close releases the native sample rate converter.
func (c *Chain) Close() error {
	if !c.hasSrc {
		return nil
	}
	c.hasSrc = false
	return gosamplerate.Delete(c.src)
}

// SetParams validates and publishes a complete parameter set. On a
// validation error the previous parameters remain in effect.
func (c *Chain) SetParams(p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.params.Store(&p)
	return nil
}

// Params returns the most recently published parameter set.
func (c *Chain) Params() Params {
	return *c.params.Load()
}

// SetEQBand updates the gain of a single equalizer band, leaving all
// other parameters untouched.
func (c *Chain) SetEQBand(band int, gain float32) error {
	if band < 0 || band >= NumEQBands {
		return fmt.Errorf("eq band %d out of range [0, %d]", band, NumEQBands-1)
	}
	// retry on a lost race with a concurrent SetParams, so neither
	// update is silently dropped
	for {
		cur := c.params.Load()
		p := *cur
		p.EQBands[band] = gain
		if err := p.Validate(); err != nil {
			return err
		}
		if c.params.CompareAndSwap(cur, &p) {
			return nil
		}
	}
}

// reconfigure applies a new parameter snapshot to the stateful stages.
func (c *Chain) reconfigure(p *Params) {
	prev := c.applied
	c.applied = p

	c.eq.updateGains(p.EQBands)

	if p.BassBoost > 0 {
		c.bass.setLowShelf(c.samplerate, bassBoostFreq, bassBoostQ, p.BassBoost)
	}

	if p.ReverbMix > 0 {
		if c.reverb == nil {
			c.reverb = newReverb(c.samplerate, c.channels, p.ReverbRoomSize)
		} else if prev == nil || prev.ReverbRoomSize != p.ReverbRoomSize {
			c.reverb.setRoomSize(p.ReverbRoomSize)
		}
	}

	if p.EchoMix > 0 {
		if c.echo == nil || prev == nil || prev.EchoDelay != p.EchoDelay {
			c.echo = newEcho(c.samplerate, c.channels, p.EchoDelay, p.EchoFeedback)
		} else {
			c.echo.feedback = p.EchoFeedback
		}
	}
}

// Process runs one interleaved block through the chain. The returned
// slice aliases the input unless the rate stage resizes it. With fully
// transparent parameters the input passes through bit-exact.
func (c *Chain) Process(block []float32) ([]float32, error) {
	p := c.params.Load()
	if p != c.applied {
		c.reconfigure(p)
	}

	c.eq.processBlock(block)

	if p.BassBoost > 0 {
		c.bass.processBlock(block, c.channels)
	}

	ratio := 1.0 / float64(p.Tempo*p.PitchShift)
	if math32.Abs(float32(ratio)-1) > rateEpsilon && c.hasSrc {
		out, err := c.src.Process(block, ratio, false)
		if err != nil {
			return nil, fmt.Errorf("rate conversion failed: %w", err)
		}
		block = out
	}

	if p.ReverbMix > 0 {
		wet := p.ReverbMix
		dry := 1 - wet
		for i, x := range block {
			block[i] = x*dry + c.reverb.process(x, i%c.channels)*wet
		}
	}

	if p.EchoMix > 0 {
		wet := p.EchoMix
		for i, x := range block {
			block[i] = x + c.echo.process(x, i%c.channels)*wet
		}
	}

	softClipBlock(block)

	return block, nil
}

// Reset clears all filter and delay state, e.g. after a seek, so stale
// reverb or echo tails do not bleed into the new position.
func (c *Chain) Reset() {
	c.eq.reset()
	c.bass.reset()
	if c.reverb != nil && c.applied != nil {
		c.reverb = newReverb(c.samplerate, c.channels, c.applied.ReverbRoomSize)
	}
	if c.echo != nil && c.applied != nil {
		c.echo = newEcho(c.samplerate, c.channels, c.applied.EchoDelay, c.applied.EchoFeedback)
	}
	if c.hasSrc {
		_ = c.src.Reset()
	}
}
