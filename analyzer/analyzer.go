package analyzer

import (
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/mjibson/go-dsp/fft"
)

// Analyzer turns blocks of mono samples into visualizer snapshots:
// a log-spaced frequency spectrum, a waveform excerpt, RMS level and
// a beat flag. It is not safe for concurrent use; the playback engine
// owns one instance and publishes immutable snapshots.
type Analyzer struct {
	options    Options
	samplerate float64

	window   []float64 // precomputed Hann window
	fftInput []float64
	binEdges []int // spectrum bin boundaries in FFT bin indices
	spectrum []float32
	runMax   float32
	beats    *beatDetector
	lastSnap Snapshot
}

// Snapshot is one frame of visualizer data. Spectrum values are
// normalized to [0, 1], waveform samples to [-1, 1].
type Snapshot struct {
	Spectrum      []float32 `json:"spectrum"`
	Waveform      []float32 `json:"waveform"`
	BeatDetected  bool      `json:"beat_detected"`
	RMS           float32   `json:"rms"`
	PeakFrequency float32   `json:"peak_frequency"`
}

// New returns an Analyzer for mono audio at the given samplerate.
func New(samplerate float64, opts ...Option) (*Analyzer, error) {
	options := Options{
		FFTSize:     2048,
		Bins:        64,
		WaveformLen: 256,
		MinFreq:     20,
		MaxFreq:     20000,
		Smoothing:   0.7,
	}

	for _, opt := range opts {
		opt(&options)
	}

	if samplerate <= 0 {
		return nil, fmt.Errorf("invalid samplerate %v", samplerate)
	}
	if options.FFTSize&(options.FFTSize-1) != 0 || options.FFTSize < 64 {
		return nil, fmt.Errorf("fft size %d must be a power of two >= 64", options.FFTSize)
	}
	if options.MaxFreq > samplerate/2 {
		options.MaxFreq = samplerate / 2
	}

	a := &Analyzer{
		options:    options,
		samplerate: samplerate,
		window:     hannWindow(options.FFTSize),
		fftInput:   make([]float64, options.FFTSize),
		spectrum:   make([]float32, options.Bins),
		beats:      newBeatDetector(samplerate),
	}
	a.binEdges = logBinEdges(options, samplerate)

	return a, nil
}

// Process analyzes the most recent window of mono samples and returns a
// fresh snapshot. An empty input decays the previous spectrum towards
// zero instead of dropping to black immediately.
func (a *Analyzer) Process(mono []float32) Snapshot {
	if len(mono) == 0 {
		for i := range a.spectrum {
			a.spectrum[i] *= 0.8
		}
		snap := a.lastSnap
		snap.Spectrum = copySlice(a.spectrum)
		snap.BeatDetected = false
		snap.RMS = 0
		a.lastSnap = snap
		return snap
	}

	// window the most recent FFTSize samples, zero padding short input
	n := a.options.FFTSize
	for i := 0; i < n; i++ {
		a.fftInput[i] = 0
	}
	src := mono
	if len(src) > n {
		src = src[len(src)-n:]
	}
	offset := n - len(src)
	for i, s := range src {
		a.fftInput[offset+i] = float64(s) * a.window[offset+i]
	}

	spec := fft.FFTReal(a.fftInput)

	// magnitude spectrum of the positive frequencies
	mags := make([]float32, n/2)
	peakBin := 0
	var peakMag float32
	for i := range mags {
		mags[i] = float32(math.Sqrt(real(spec[i])*real(spec[i]) + imag(spec[i])*imag(spec[i])))
		if mags[i] > peakMag {
			peakMag = mags[i]
			peakBin = i
		}
	}

	a.aggregateBins(mags)

	rms := rootMeanSquare(src)

	snap := Snapshot{
		Spectrum:      copySlice(a.spectrum),
		Waveform:      a.waveform(src),
		BeatDetected:  a.beats.feed(bassEnergy(mags, a.binEdges), len(mono)),
		RMS:           rms,
		PeakFrequency: float32(peakBin) * float32(a.samplerate) / float32(n),
	}
	a.lastSnap = snap
	return snap
}

// aggregateBins folds the linear magnitude spectrum into log-spaced
// output bins, normalizes against a slowly decaying running maximum and
// smooths with the previous frame.
func (a *Analyzer) aggregateBins(mags []float32) {
	a.runMax *= 0.999
	if a.runMax < 1e-6 {
		a.runMax = 1e-6
	}

	s := a.options.Smoothing
	for i := 0; i < a.options.Bins; i++ {
		lo, hi := a.binEdges[i], a.binEdges[i+1]
		if hi <= lo {
			hi = lo + 1
		}
		var sum float32
		for j := lo; j < hi && j < len(mags); j++ {
			sum += mags[j]
		}
		avg := sum / float32(hi-lo)
		if avg > a.runMax {
			a.runMax = avg
		}

		norm := avg / a.runMax
		if norm > 1 {
			norm = 1
		}
		a.spectrum[i] = a.spectrum[i]*s + norm*(1-s)
	}
}

// waveform picks evenly spaced samples from the analysis window and
// clamps them to [-1, 1].
func (a *Analyzer) waveform(src []float32) []float32 {
	out := make([]float32, a.options.WaveformLen)
	if len(src) == 0 {
		return out
	}
	step := float64(len(src)) / float64(len(out))
	for i := range out {
		s := src[int(float64(i)*step)]
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = s
	}
	return out
}

func rootMeanSquare(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float32
	for _, s := range samples {
		sum += s * s
	}
	return math32.Sqrt(sum / float32(len(samples)))
}

// bassEnergy sums the magnitudes of the lowest quarter of the output
// bins, the range the beat detector listens to.
func bassEnergy(mags []float32, edges []int) float32 {
	hi := edges[len(edges)/4]
	if hi < 2 {
		hi = 2
	}
	var sum float32
	for i := 0; i < hi && i < len(mags); i++ {
		sum += mags[i] * mags[i]
	}
	return sum
}

func hannWindow(size int) []float64 {
	w := make([]float64, size)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return w
}

func copySlice(s []float32) []float32 {
	out := make([]float32, len(s))
	copy(out, s)
	return out
}
