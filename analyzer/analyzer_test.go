package analyzer

import (
	"math"
	"testing"
)

func sine(freq float64, samplerate float64, n int, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/samplerate))
	}
	return out
}

func TestSnapshotDimensions(t *testing.T) {
	a, err := New(48000)
	if err != nil {
		t.Fatal(err)
	}

	snap := a.Process(sine(440, 48000, 2048, 0.5))

	if len(snap.Spectrum) != 64 {
		t.Errorf("spectrum length %d, want 64", len(snap.Spectrum))
	}
	if len(snap.Waveform) != 256 {
		t.Errorf("waveform length %d, want 256", len(snap.Waveform))
	}
	for i, v := range snap.Spectrum {
		if v < 0 || v > 1 {
			t.Errorf("spectrum[%d] = %f outside [0, 1]", i, v)
		}
	}
	for i, v := range snap.Waveform {
		if v < -1 || v > 1 {
			t.Errorf("waveform[%d] = %f outside [-1, 1]", i, v)
		}
	}
}

func TestPeakFrequency(t *testing.T) {
	a, err := New(48000)
	if err != nil {
		t.Fatal(err)
	}

	snap := a.Process(sine(1000, 48000, 2048, 0.5))

	// resolution is samplerate/fftsize = 23.4Hz
	if math.Abs(float64(snap.PeakFrequency)-1000) > 30 {
		t.Errorf("peak frequency %f, want ~1000", snap.PeakFrequency)
	}
}

func TestSpectrumConcentratesAtToneBin(t *testing.T) {
	a, err := New(48000)
	if err != nil {
		t.Fatal(err)
	}

	// run several frames so smoothing settles
	var snap Snapshot
	for i := 0; i < 20; i++ {
		snap = a.Process(sine(1000, 48000, 2048, 0.5))
	}

	peak := 0
	for i, v := range snap.Spectrum {
		if v > snap.Spectrum[peak] {
			peak = i
		}
	}

	// 1kHz sits at bin round(64 * ln(1000/20)/ln(20000/20)) = 36
	if peak < 33 || peak > 39 {
		t.Errorf("spectrum peak at bin %d, want near 36", peak)
	}
}

func TestRMS(t *testing.T) {
	a, err := New(48000)
	if err != nil {
		t.Fatal(err)
	}

	snap := a.Process(sine(440, 48000, 2048, 1.0))

	// RMS of a full scale sine is 1/sqrt(2)
	if math.Abs(float64(snap.RMS)-1/math.Sqrt2) > 0.01 {
		t.Errorf("RMS %f, want ~0.707", snap.RMS)
	}
}

func TestEmptyInputDecaysSpectrum(t *testing.T) {
	a, err := New(48000)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		a.Process(sine(1000, 48000, 2048, 0.5))
	}
	before := a.Process(sine(1000, 48000, 2048, 0.5))

	after := a.Process(nil)

	var sumBefore, sumAfter float32
	for i := range before.Spectrum {
		sumBefore += before.Spectrum[i]
		sumAfter += after.Spectrum[i]
	}
	if sumAfter >= sumBefore {
		t.Errorf("spectrum did not decay: %f -> %f", sumBefore, sumAfter)
	}
	if after.BeatDetected {
		t.Error("beat flagged on empty input")
	}
	if after.RMS != 0 {
		t.Errorf("RMS %f on empty input, want 0", after.RMS)
	}
}

func TestBeatDetection(t *testing.T) {
	const samplerate = 48000
	const frame = 1024 // ~21ms of audio per analysis frame
	b := newBeatDetector(samplerate)

	// establish a quiet baseline
	for i := 0; i < energyHistory; i++ {
		if b.feed(1.0, frame) {
			t.Fatal("beat flagged during baseline")
		}
	}

	if !b.feed(10.0, frame) {
		t.Fatal("energy spike not flagged as beat")
	}

	// a second spike ~100ms of audio later falls inside the refractory
	// window and must be suppressed
	for i := 0; i < 4; i++ {
		b.feed(1.0, frame)
	}
	if b.feed(10.0, frame) {
		t.Fatal("beat flagged inside refractory window")
	}

	// advance past the refractory window in audio time, then spike
	for i := 0; i < 16; i++ {
		b.feed(1.0, frame)
	}
	if !b.feed(10.0, frame) {
		t.Fatal("beat not flagged after refractory window")
	}
}

// The refractory window counts decoded samples, not wall time, so
// analyzing a file faster than real time keeps the beat count intact.
func TestBeatDetectionOfflineSpeed(t *testing.T) {
	const samplerate = 48000
	b := newBeatDetector(samplerate)

	// 427ms of audio between pulses, fed with no wall-clock delay
	const gapFrames = 20
	const frame = 1024

	for i := 0; i < energyHistory; i++ {
		b.feed(1.0, frame)
	}

	beats := 0
	for pulse := 0; pulse < 20; pulse++ {
		if b.feed(10.0, frame) {
			beats++
		}
		for i := 0; i < gapFrames-1; i++ {
			b.feed(1.0, frame)
		}
	}

	if beats != 20 {
		t.Errorf("detected %d beats of 20 pulses spaced past the refractory window", beats)
	}
}

func TestOptions(t *testing.T) {
	a, err := New(48000, Bins(32), WaveformLen(128), FFTSize(1024))
	if err != nil {
		t.Fatal(err)
	}

	snap := a.Process(sine(440, 48000, 1024, 0.5))
	if len(snap.Spectrum) != 32 {
		t.Errorf("spectrum length %d, want 32", len(snap.Spectrum))
	}
	if len(snap.Waveform) != 128 {
		t.Errorf("waveform length %d, want 128", len(snap.Waveform))
	}

	if _, err := New(48000, FFTSize(1000)); err == nil {
		t.Error("expected error for non power of two fft size")
	}
}
