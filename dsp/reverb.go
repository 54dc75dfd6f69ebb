package dsp

// Freeverb style reverberator: 8 parallel comb filters into 4 serial
// allpass filters, one network per audio channel. Tunings are the
// classic Freeverb delay lengths at 44.1kHz, scaled to the engine
// samplerate.

var combTunings = [8]int{1116, 1188, 1277, 1356, 1422, 1491, 1557, 1617}
var allpassTunings = [4]int{556, 441, 341, 225}

const reverbInputGain = 0.015

type combFilter struct {
	buffer   []float32
	index    int
	feedback float32
	damp     float32
	dampHist float32
}

func newCombFilter(size int) *combFilter {
	if size < 1 {
		size = 1
	}
	return &combFilter{
		buffer:   make([]float32, size),
		feedback: 0.7,
		damp:     0.2,
	}
}

func (c *combFilter) process(in float32) float32 {
	out := c.buffer[c.index]
	c.dampHist = out*(1-c.damp) + c.dampHist*c.damp
	c.buffer[c.index] = in + c.dampHist*c.feedback

	c.index++
	if c.index >= len(c.buffer) {
		c.index = 0
	}
	return out
}

type allpassFilter struct {
	buffer   []float32
	index    int
	feedback float32
}

func newAllpassFilter(size int) *allpassFilter {
	if size < 1 {
		size = 1
	}
	return &allpassFilter{
		buffer:   make([]float32, size),
		feedback: 0.5,
	}
}

func (a *allpassFilter) process(in float32) float32 {
	buffered := a.buffer[a.index]
	out := -in + buffered
	a.buffer[a.index] = in + buffered*a.feedback

	a.index++
	if a.index >= len(a.buffer) {
		a.index = 0
	}
	return out
}

type reverbChannel struct {
	combs     [8]*combFilter
	allpasses [4]*allpassFilter
}

type reverb struct {
	channels []reverbChannel
}

func newReverb(samplerate float64, channels int, roomSize float32) *reverb {
	scale := samplerate / 44100.0

	r := &reverb{channels: make([]reverbChannel, channels)}
	for ch := range r.channels {
		for i, tuning := range combTunings {
			r.channels[ch].combs[i] = newCombFilter(int(float64(tuning) * scale))
		}
		for i, tuning := range allpassTunings {
			r.channels[ch].allpasses[i] = newAllpassFilter(int(float64(tuning) * scale))
		}
	}
	r.setRoomSize(roomSize)
	return r
}

func (r *reverb) setRoomSize(roomSize float32) {
	feedback := 0.7 + roomSize*0.28 // max ~0.98
	damp := 0.2 * (1 - roomSize)

	for ch := range r.channels {
		for _, comb := range r.channels[ch].combs {
			comb.feedback = feedback
			comb.damp = damp
		}
	}
}

// process returns the wet signal for one sample of the given channel.
func (r *reverb) process(in float32, ch int) float32 {
	var out float32
	for _, comb := range r.channels[ch].combs {
		out += comb.process(in * reverbInputGain)
	}
	for _, allpass := range r.channels[ch].allpasses {
		out = allpass.process(out)
	}
	return out
}
