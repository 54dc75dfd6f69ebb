package dsp

import "fmt"

// NumEQBands is the number of equalizer bands.
const NumEQBands = 10

// eqFrequencies are the center frequencies of the equalizer bands. The
// lowest band is a low-shelf, the highest a high-shelf, all others are
// peaking filters.
var eqFrequencies = [NumEQBands]float32{60, 170, 310, 600, 1000, 3000, 6000, 12000, 14000, 16000}

// Params is the full effects configuration. It is treated as an
// immutable value: the control surface always replaces the whole object,
// never patches individual fields.
type Params struct {
	PitchShift     float32             `json:"pitch_shift"`      // playback rate multiplier (0.5 .. 2.0)
	Tempo          float32             `json:"tempo"`            // playback rate multiplier (0.5 .. 2.0)
	ReverbMix      float32             `json:"reverb_mix"`       // wet/dry (0 .. 1)
	ReverbRoomSize float32             `json:"reverb_room_size"` // (0 .. 1)
	BassBoost      float32             `json:"bass_boost"`       // dB (0 .. 12)
	EchoDelay      float32             `json:"echo_delay"`       // seconds (0 .. 5)
	EchoFeedback   float32             `json:"echo_feedback"`    // (0 .. 0.95)
	EchoMix        float32             `json:"echo_mix"`         // wet/dry (0 .. 1)
	EQBands        [NumEQBands]float32 `json:"eq_bands"`         // dB (-12 .. +12) per band
}

// DefaultParams returns the neutral configuration: flat EQ, unity rate,
// all wet mixes at zero.
func DefaultParams() Params {
	return Params{
		PitchShift:     1.0,
		Tempo:          1.0,
		ReverbMix:      0.0,
		ReverbRoomSize: 0.5,
		BassBoost:      0.0,
		EchoDelay:      0.3,
		EchoFeedback:   0.3,
		EchoMix:        0.0,
	}
}

// Validate checks all parameter ranges. A Params value that fails
// validation must not be applied.
func (p Params) Validate() error {
	if p.PitchShift < 0.5 || p.PitchShift > 2.0 {
		return fmt.Errorf("dsp: pitch_shift %f out of range [0.5, 2.0]", p.PitchShift)
	}
	if p.Tempo < 0.5 || p.Tempo > 2.0 {
		return fmt.Errorf("dsp: tempo %f out of range [0.5, 2.0]", p.Tempo)
	}
	if p.ReverbMix < 0 || p.ReverbMix > 1 {
		return fmt.Errorf("dsp: reverb_mix %f out of range [0, 1]", p.ReverbMix)
	}
	if p.ReverbRoomSize < 0 || p.ReverbRoomSize > 1 {
		return fmt.Errorf("dsp: reverb_room_size %f out of range [0, 1]", p.ReverbRoomSize)
	}
	if p.BassBoost < 0 || p.BassBoost > 12 {
		return fmt.Errorf("dsp: bass_boost %f out of range [0, 12]", p.BassBoost)
	}
	if p.EchoDelay < 0 || p.EchoDelay > 5 {
		return fmt.Errorf("dsp: echo_delay %f out of range [0, 5]", p.EchoDelay)
	}
	if p.EchoFeedback < 0 || p.EchoFeedback > 0.95 {
		return fmt.Errorf("dsp: echo_feedback %f out of range [0, 0.95]", p.EchoFeedback)
	}
	if p.EchoMix < 0 || p.EchoMix > 1 {
		return fmt.Errorf("dsp: echo_mix %f out of range [0, 1]", p.EchoMix)
	}
	for i, gain := range p.EQBands {
		if gain < -12 || gain > 12 {
			return fmt.Errorf("dsp: eq band %d gain %f out of range [-12, 12]", i, gain)
		}
	}
	return nil
}

// EQFrequencies returns a copy of the equalizer center frequencies.
func EQFrequencies() [NumEQBands]float32 {
	return eqFrequencies
}
