package dsp

// echo is a per-channel feedback delay line. Delay time is fixed at
// construction; mix and feedback come from the current parameter set.
type echo struct {
	buffers  [][]float32
	indices  []int
	feedback float32
}

func newEcho(samplerate float64, channels int, delaySec, feedback float32) *echo {
	size := int(samplerate * float64(delaySec))
	if size < 1 {
		size = 1
	}

	e := &echo{
		buffers:  make([][]float32, channels),
		indices:  make([]int, channels),
		feedback: feedback,
	}
	for ch := range e.buffers {
		e.buffers[ch] = make([]float32, size)
	}
	return e
}

// process returns the delayed signal for one sample of the given channel
// and stores the input plus feedback back into the delay line.
func (e *echo) process(in float32, ch int) float32 {
	buf := e.buffers[ch]
	idx := e.indices[ch]

	delayed := buf[idx]
	buf[idx] = in + delayed*e.feedback

	idx++
	if idx >= len(buf) {
		idx = 0
	}
	e.indices[ch] = idx

	return delayed
}
