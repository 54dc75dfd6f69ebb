package analyzer

import "math"

// Options contains the configurable analysis settings.
type Options struct {
	FFTSize     int
	Bins        int
	WaveformLen int
	MinFreq     float64
	MaxFreq     float64
	Smoothing   float32
}

// Option is a function which applies analysis settings.
type Option func(*Options)

// FFTSize sets the length of the analysis window. Must be a power of
// two. Default is 2048.
func FFTSize(size int) Option {
	return func(args *Options) {
		args.FFTSize = size
	}
}

// Bins sets the number of spectrum output bins. Default is 64.
func Bins(n int) Option {
	return func(args *Options) {
		args.Bins = n
	}
}

// WaveformLen sets the number of waveform samples in each snapshot.
// Default is 256.
func WaveformLen(n int) Option {
	return func(args *Options) {
		args.WaveformLen = n
	}
}

// FreqRange sets the frequency range covered by the spectrum bins.
// Default is 20Hz to 20kHz.
func FreqRange(min, max float64) Option {
	return func(args *Options) {
		args.MinFreq = min
		args.MaxFreq = max
	}
}

// Smoothing sets the temporal smoothing factor for the spectrum, with 0
// meaning no smoothing. Default is 0.7.
func Smoothing(s float32) Option {
	return func(args *Options) {
		args.Smoothing = s
	}
}

// logBinEdges maps the output bins onto logarithmically spaced FFT bin
// ranges between MinFreq and MaxFreq.
func logBinEdges(options Options, samplerate float64) []int {
	edges := make([]int, options.Bins+1)
	ratio := options.MaxFreq / options.MinFreq
	binWidth := samplerate / float64(options.FFTSize)

	for i := range edges {
		freq := options.MinFreq * math.Pow(ratio, float64(i)/float64(options.Bins))
		edges[i] = int(freq / binWidth)
	}
	return edges
}
