package dsp

import "github.com/chewxy/math32"

// biquad is a second order IIR section (transposed direct form II) with
// independent state per audio channel, so interleaved stereo can run
// through a single filter instance.
type biquad struct {
	a0, a1, a2 float32
	b1, b2     float32
	z1, z2     []float32
}

func newBiquad(channels int) *biquad {
	return &biquad{
		a0: 1,
		z1: make([]float32, channels),
		z2: make([]float32, channels),
	}
}

// setPeaking configures a peaking EQ section (Audio EQ Cookbook).
func (f *biquad) setPeaking(samplerate float64, freq, q, gainDB float32) {
	w0 := 2 * math32.Pi * freq / float32(samplerate)
	alpha := math32.Sin(w0) / (2 * q)
	a := math32.Pow(10, gainDB/40)
	cosW0 := math32.Cos(w0)

	b0 := 1 + alpha*a
	b1 := -2 * cosW0
	b2 := 1 - alpha*a
	a0 := 1 + alpha/a
	a1 := -2 * cosW0
	a2 := 1 - alpha/a

	f.normalize(b0, b1, b2, a0, a1, a2)
}

// setLowShelf configures a low-shelf section.
func (f *biquad) setLowShelf(samplerate float64, freq, q, gainDB float32) {
	w0 := 2 * math32.Pi * freq / float32(samplerate)
	a := math32.Pow(10, gainDB/40)
	alpha := math32.Sin(w0) / (2 * q)
	cosW0 := math32.Cos(w0)
	sqrtA := math32.Sqrt(a)

	b0 := a * ((a + 1) - (a-1)*cosW0 + 2*sqrtA*alpha)
	b1 := 2 * a * ((a - 1) - (a+1)*cosW0)
	b2 := a * ((a + 1) - (a-1)*cosW0 - 2*sqrtA*alpha)
	a0 := (a + 1) + (a-1)*cosW0 + 2*sqrtA*alpha
	a1 := -2 * ((a - 1) + (a+1)*cosW0)
	a2 := (a + 1) + (a-1)*cosW0 - 2*sqrtA*alpha

	f.normalize(b0, b1, b2, a0, a1, a2)
}

// setHighShelf configures a high-shelf section.
func (f *biquad) setHighShelf(samplerate float64, freq, q, gainDB float32) {
	w0 := 2 * math32.Pi * freq / float32(samplerate)
	a := math32.Pow(10, gainDB/40)
	alpha := math32.Sin(w0) / (2 * q)
	cosW0 := math32.Cos(w0)
	sqrtA := math32.Sqrt(a)

	b0 := a * ((a + 1) + (a-1)*cosW0 + 2*sqrtA*alpha)
	b1 := -2 * a * ((a - 1) + (a+1)*cosW0)
	b2 := a * ((a + 1) + (a-1)*cosW0 - 2*sqrtA*alpha)
	a0 := (a + 1) - (a-1)*cosW0 + 2*sqrtA*alpha
	a1 := 2 * ((a - 1) - (a+1)*cosW0)
	a2 := (a + 1) - (a-1)*cosW0 - 2*sqrtA*alpha

	f.normalize(b0, b1, b2, a0, a1, a2)
}

func (f *biquad) normalize(b0, b1, b2, a0, a1, a2 float32) {
	f.a0 = b0 / a0
	f.a1 = b1 / a0
	f.a2 = b2 / a0
	f.b1 = a1 / a0
	f.b2 = a2 / a0
}

// process filters one sample of the given channel.
func (f *biquad) process(in float32, ch int) float32 {
	out := f.a0*in + f.z1[ch]
	f.z1[ch] = f.a1*in - f.b1*out + f.z2[ch]
	f.z2[ch] = f.a2*in - f.b2*out
	return out
}

// processBlock filters an interleaved block in place.
func (f *biquad) processBlock(block []float32, channels int) {
	for i := range block {
		block[i] = f.process(block[i], i%channels)
	}
}

// reset clears the filter state.
func (f *biquad) reset() {
	for i := range f.z1 {
		f.z1[i] = 0
		f.z2[i] = 0
	}
}
