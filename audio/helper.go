package audio

// AdjustChannels converts interleaved audio frames between mono and
// stereo. Other channels counts are not supported.
func AdjustChannels(iChs, oChs int, audioFrames []float32) []float32 {

	if iChs == oChs {
		return audioFrames
	}

	// mono -> stereo
	if iChs == 1 && oChs == 2 {
		res := make([]float32, 0, len(audioFrames)*2)
		// left channel = right channel
		for _, frame := range audioFrames {
			res = append(res, frame)
			res = append(res, frame)
		}
		return res
	}

	// stereo -> mono
	res := make([]float32, 0, len(audioFrames)/2)
	// chop off the right channel
	for i := 0; i < len(audioFrames); i += 2 {
		res = append(res, audioFrames[i])
	}
	return res
}

// AdjustVolume scales the audio frames in place.
func AdjustVolume(volume float32, audioFrames []float32) {
	for i := 0; i < len(audioFrames); i++ {
		audioFrames[i] *= volume
	}
}

// Mixdown folds interleaved multi-channel frames into a mono signal.
// Used by the analysis tap, which operates on a single channel.
func Mixdown(channels int, audioFrames []float32) []float32 {
	if channels <= 1 {
		return audioFrames
	}
	res := make([]float32, 0, len(audioFrames)/channels)
	for i := 0; i+channels <= len(audioFrames); i += channels {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += audioFrames[i+ch]
		}
		res = append(res, sum/float32(channels))
	}
	return res
}
