package analyzer

const (
	energyHistory         = 43 // roughly one second of frames at ~43 fps
	beatThreshold         = 1.5
	beatRefractorySeconds = 0.3
)

// beatDetector flags energy spikes in the low frequency band. A frame
// counts as a beat when its bass energy exceeds the recent average by
// beatThreshold and the previous beat lies outside the refractory
// window, which suppresses double triggers on a single kick drum. The
// refractory window is measured in audio samples rather than wall
// time, so offline analysis running faster than real time detects the
// same beats as live playback.
type beatDetector struct {
	history []float32
	pos     int
	filled  int

	refractory int64 // samples
	seen       int64 // samples fed so far
	lastBeat   int64 // sample position of the previous beat
}

func newBeatDetector(samplerate float64) *beatDetector {
	refractory := int64(beatRefractorySeconds * samplerate)
	return &beatDetector{
		history:    make([]float32, energyHistory),
		refractory: refractory,
		lastBeat:   -refractory,
	}
}

// feed records one frame of bass energy covering the given number of
// samples and reports whether it constitutes a beat.
func (b *beatDetector) feed(energy float32, samples int) bool {
	beat := false
	if b.filled >= energyHistory/2 {
		var sum float32
		for i := 0; i < b.filled; i++ {
			sum += b.history[i]
		}
		avg := sum / float32(b.filled)

		if avg > 0 && energy > avg*beatThreshold && b.seen-b.lastBeat >= b.refractory {
			b.lastBeat = b.seen
			beat = true
		}
	}

	b.seen += int64(samples)
	b.history[b.pos] = energy
	b.pos = (b.pos + 1) % energyHistory
	if b.filled < energyHistory {
		b.filled++
	}
	return beat
}
