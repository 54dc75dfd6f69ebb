package player

// crossfadeBlock mixes a fade-out block with a fade-in block using
// complementary linear ramps. done is the number of frames of the fade
// already played, total its full length. Both blocks must hold frames
// interleaved frames; the result is written into out.
func crossfadeBlock(out, in []float32, channels, done, total int) {
	if total <= 0 {
		return
	}
	frames := len(out) / channels
	for f := 0; f < frames; f++ {
		gIn := float32(done+f) / float32(total)
		if gIn > 1 {
			gIn = 1
		}
		gOut := 1 - gIn
		for ch := 0; ch < channels; ch++ {
			i := f*channels + ch
			var next float32
			if i < len(in) {
				next = in[i]
			}
			out[i] = out[i]*gOut + next*gIn
		}
	}
}
