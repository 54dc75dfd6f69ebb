package dsp

const (
	peakingQ = 1.41
	shelfQ   = 0.707
)

// equalizer is the 10-band EQ: low-shelf, eight peaking sections and a
// high-shelf, applied in series.
type equalizer struct {
	filters    [NumEQBands]*biquad
	gains      [NumEQBands]float32
	samplerate float64
	channels   int
}

func newEqualizer(samplerate float64, channels int) *equalizer {
	eq := &equalizer{
		samplerate: samplerate,
		channels:   channels,
	}
	for i := range eq.filters {
		eq.filters[i] = newBiquad(channels)
	}
	eq.updateGains([NumEQBands]float32{})
	return eq
}

func (eq *equalizer) updateGains(gains [NumEQBands]float32) {
	for i, gain := range gains {
		freq := eqFrequencies[i]
		switch i {
		case 0:
			eq.filters[i].setLowShelf(eq.samplerate, freq, shelfQ, gain)
		case NumEQBands - 1:
			eq.filters[i].setHighShelf(eq.samplerate, freq, shelfQ, gain)
		default:
			eq.filters[i].setPeaking(eq.samplerate, freq, peakingQ, gain)
		}
	}
	eq.gains = gains
}

// flat reports whether all bands are effectively at 0 dB, in which case
// the EQ stage is skipped entirely and acts as the identity transform.
func (eq *equalizer) flat() bool {
	for _, g := range eq.gains {
		if g > 0.01 || g < -0.01 {
			return false
		}
	}
	return true
}

func (eq *equalizer) processBlock(block []float32) {
	if eq.flat() {
		return
	}
	for _, f := range eq.filters {
		f.processBlock(block, eq.channels)
	}
}

func (eq *equalizer) reset() {
	for _, f := range eq.filters {
		f.reset()
	}
}
