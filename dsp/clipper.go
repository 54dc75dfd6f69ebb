package dsp

import "github.com/chewxy/math32"

// softClip tames samples that exceed full scale after the effects
// stages. Samples within [-1, 1] pass through untouched so the chain
// stays bit-transparent when no effect is active; anything beyond is
// squashed asymptotically towards ±1.5.
func softClip(x float32) float32 {
	switch {
	case x > 1:
		return 1 + (1-math32.Exp(-(x-1)))*0.5
	case x < -1:
		return -1 - (1-math32.Exp(x+1))*0.5
	default:
		return x
	}
}

func softClipBlock(block []float32) {
	for i, x := range block {
		if x > 1 || x < -1 {
			block[i] = softClip(x)
		}
	}
}
