package player

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cskr/pubsub"
	ga "github.com/go-audio/audio"
	wav "github.com/go-audio/wav"

	"github.com/klangd/klang/audio"
	"github.com/klangd/klang/events"
)

// fakeSink collects written audio in memory instead of playing it.
type fakeSink struct {
	mu          sync.Mutex
	data        []float32
	volume      float32
	muted       bool
	started     bool
	closed      bool
	wroteClosed bool
	flushes     int
}

func newFakeSink() *fakeSink            { return &fakeSink{volume: 0.7} }
func (f *fakeSink) Start() error        { f.mu.Lock(); defer f.mu.Unlock(); f.started = true; return nil }
func (f *fakeSink) Stop() error         { f.mu.Lock(); defer f.mu.Unlock(); f.started = false; return nil }
func (f *fakeSink) Close() error        { f.mu.Lock(); defer f.mu.Unlock(); f.closed = true; return nil }
func (f *fakeSink) SetVolume(v float32) { f.mu.Lock(); defer f.mu.Unlock(); f.volume = v }
func (f *fakeSink) Volume() float32     { f.mu.Lock(); defer f.mu.Unlock(); return f.volume }
func (f *fakeSink) SetMuted(m bool)     { f.mu.Lock(); defer f.mu.Unlock(); f.muted = m }
func (f *fakeSink) Muted() bool         { f.mu.Lock(); defer f.mu.Unlock(); return f.muted }
func (f *fakeSink) Flush()              { f.mu.Lock(); defer f.mu.Unlock(); f.flushes++ }

func (f *fakeSink) Write(msg audio.Msg) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		f.wroteClosed = true
		return fmt.Errorf("sink closed")
	}
	f.data = append(f.data, msg.Data...)
	return nil
}

func (f *fakeSink) samples() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data)
}

func (f *fakeSink) snapshot() []float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float32, len(f.data))
	copy(out, f.data)
	return out
}

func (f *fakeSink) flushCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushes
}

func (f *fakeSink) writtenAfterClose() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wroteClosed
}

// writeTone renders a sine tone to a 16bit PCM wav file at the engine's
// native rate and layout, so no resampling happens during the test.
func writeTone(t *testing.T, path string, dur time.Duration) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	const samplerate = 48000
	enc := wav.NewEncoder(f, samplerate, 16, 2, 1)

	frames := int(samplerate * dur.Seconds())
	data := make([]int, 0, frames*2)
	for i := 0; i < frames; i++ {
		s := int(0.5 * 32767 * math.Sin(2*math.Pi*440*float64(i)/samplerate))
		data = append(data, s, s)
	}

	buf := &ga.IntBuffer{
		Data:           data,
		Format:         &ga.Format{NumChannels: 2, SampleRate: samplerate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
}

// writeConst renders a constant-value wav. Fades show up in the sink
// output as intermediate sample values, which makes mixing assertions
// immune to tone phase.
func writeConst(t *testing.T, path string, value float64, dur time.Duration) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	const samplerate = 48000
	enc := wav.NewEncoder(f, samplerate, 16, 2, 1)

	frames := int(samplerate * dur.Seconds())
	s := int(value * 32767)
	data := make([]int, 0, frames*2)
	for i := 0; i < frames; i++ {
		data = append(data, s, s)
	}

	buf := &ga.IntBuffer{
		Data:           data,
		Format:         &ga.Format{NumChannels: 2, SampleRate: samplerate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
}

// writeBassTone renders a loud 60Hz tone, well inside the band the
// beat detector listens to.
func writeBassTone(t *testing.T, path string, dur time.Duration) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	const samplerate = 48000
	enc := wav.NewEncoder(f, samplerate, 16, 2, 1)

	frames := int(samplerate * dur.Seconds())
	data := make([]int, 0, frames*2)
	for i := 0; i < frames; i++ {
		s := int(0.8 * 32767 * math.Sin(2*math.Pi*60*float64(i)/samplerate))
		data = append(data, s, s)
	}

	buf := &ga.IntBuffer{
		Data:           data,
		Format:         &ga.Format{NumChannels: 2, SampleRate: samplerate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
}

func newTestPlayer(t *testing.T) (*Player, *fakeSink) {
	t.Helper()

	sink := newFakeSink()
	p, err := New(Sinks(func(string) (audio.Sink, error) {
		return sink, nil
	}))
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p, sink
}

func TestPlayPauseStop(t *testing.T) {
	p, sink := newTestPlayer(t)

	path := filepath.Join(t.TempDir(), "tone.wav")
	writeTone(t, path, 2*time.Second)

	if err := p.Play(); err == nil {
		t.Fatal("expected error when playing without a loaded track")
	}

	if err := p.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if s := p.State(); s.Playing {
		t.Fatal("player started before Play was called")
	}

	if err := p.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if sink.samples() == 0 {
		t.Fatal("no audio reached the sink")
	}
	if s := p.State(); !s.Playing || s.Paused {
		t.Fatalf("unexpected state: %+v", s)
	}

	if err := p.Pause(); err != nil {
		t.Fatalf("pause: %v", err)
	}
	time.Sleep(50 * time.Millisecond) // let an in-flight block drain
	before := sink.samples()
	time.Sleep(150 * time.Millisecond)
	if after := sink.samples(); after != before {
		t.Errorf("sink received audio while paused: %d -> %d", before, after)
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s := p.State(); s.Playing || s.Position != 0 {
		t.Fatalf("unexpected state after stop: %+v", s)
	}
}

func TestSeekPosition(t *testing.T) {
	p, _ := newTestPlayer(t)

	path := filepath.Join(t.TempDir(), "tone.wav")
	writeTone(t, path, 5*time.Second)

	if err := p.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := p.Seek(2 * time.Second); err != nil {
		t.Fatalf("seek: %v", err)
	}

	if pos := p.State().Position; math.Abs(pos-2) > 0.1 {
		t.Errorf("position after seek: got %f, expected ~2", pos)
	}

	// out of range positions are clamped
	if err := p.Seek(time.Minute); err != nil {
		t.Fatalf("seek past end: %v", err)
	}
	if pos := p.State().Position; pos > 5.01 {
		t.Errorf("position after overshoot seek: %f", pos)
	}

	if err := p.SeekPercent(150); err == nil {
		t.Error("expected error for percentage out of range")
	}
	if err := p.SeekPercent(50); err != nil {
		t.Fatalf("seek percent: %v", err)
	}
	if pos := p.State().Position; math.Abs(pos-2.5) > 0.1 {
		t.Errorf("position after 50%% seek: got %f, expected ~2.5", pos)
	}
}

func TestABLoopKeepsPositionInRange(t *testing.T) {
	p, _ := newTestPlayer(t)

	path := filepath.Join(t.TempDir(), "tone.wav")
	writeTone(t, path, 2*time.Second)

	if err := p.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := p.SetABLoop(200*time.Millisecond, 400*time.Millisecond); err != nil {
		t.Fatalf("set loop: %v", err)
	}
	if err := p.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}

	// play well past the loop length; the cursor must keep wrapping
	time.Sleep(900 * time.Millisecond)

	s := p.State()
	if !s.ABLoop.Enabled {
		t.Fatal("loop not reported as enabled")
	}
	if s.Position > 0.45 {
		t.Errorf("position %f escaped the loop", s.Position)
	}

	p.ClearABLoop()
	if p.State().ABLoop.Enabled {
		t.Error("loop still enabled after clear")
	}
}

func TestABLoopValidation(t *testing.T) {
	p, _ := newTestPlayer(t)

	if err := p.SetABLoop(0, time.Second); err == nil {
		t.Error("expected error without a loaded track")
	}

	path := filepath.Join(t.TempDir(), "tone.wav")
	writeTone(t, path, time.Second)
	if err := p.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := p.SetABLoop(500*time.Millisecond, 200*time.Millisecond); err == nil {
		t.Error("expected error for b before a")
	}
	if err := p.SetABLoop(0, time.Minute); err == nil {
		t.Error("expected error for b past the track end")
	}
}

func TestCrossfadeValidation(t *testing.T) {
	p, _ := newTestPlayer(t)

	if err := p.SetCrossfade(500 * time.Millisecond); err == nil {
		t.Error("expected error below minimum")
	}
	if err := p.SetCrossfade(11 * time.Second); err == nil {
		t.Error("expected error above maximum")
	}
	if err := p.SetCrossfade(3 * time.Second); err != nil {
		t.Errorf("3s crossfade rejected: %v", err)
	}
	if err := p.SetCrossfade(0); err != nil {
		t.Errorf("disabling crossfade rejected: %v", err)
	}
}

// countBetween tallies samples strictly inside (lo, hi).
func countBetween(data []float32, lo, hi float32) int {
	n := 0
	for _, s := range data {
		if s > lo && s < hi {
			n++
		}
	}
	return n
}

func TestCrossfadeMixesTrackTransition(t *testing.T) {
	p, sink := newTestPlayer(t)

	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	b := filepath.Join(dir, "b.wav")
	writeConst(t, a, 0.5, 1500*time.Millisecond)
	writeConst(t, b, -0.5, 1500*time.Millisecond)

	if err := p.SetQueue([]string{a, b}); err != nil {
		t.Fatalf("set queue: %v", err)
	}
	if err := p.SetCrossfade(time.Second); err != nil {
		t.Fatalf("set crossfade: %v", err)
	}
	if err := p.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}

	// the fade spans the last second of the first track
	time.Sleep(2 * time.Second)
	data := sink.snapshot()

	if countBetween(data, 0.45, 1) == 0 {
		t.Error("outgoing track never reached the sink")
	}
	if countBetween(data, -1, -0.45) == 0 {
		t.Error("incoming track never reached the sink")
	}
	// a hard cut jumps straight from 0.5 to -0.5; the fade must leave
	// a long stretch of mixed values in between
	if mixed := countBetween(data, 0.05, 0.45); mixed < 10000 {
		t.Errorf("only %d mixed samples around the transition", mixed)
	}
}

func TestNextCrossfadesWhenConfigured(t *testing.T) {
	p, sink := newTestPlayer(t)

	dir := t.TempDir()
	a := filepath.Join(dir, "a.wav")
	b := filepath.Join(dir, "b.wav")
	writeConst(t, a, 0.5, 3*time.Second)
	writeConst(t, b, -0.5, 3*time.Second)

	if err := p.SetQueue([]string{a, b}); err != nil {
		t.Fatalf("set queue: %v", err)
	}
	if err := p.SetCrossfade(time.Second); err != nil {
		t.Fatalf("set crossfade: %v", err)
	}
	if err := p.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	flushes := sink.flushCount()
	if err := p.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if sink.flushCount() != flushes {
		t.Error("manual skip flushed the sink despite an active crossfade")
	}

	time.Sleep(1300 * time.Millisecond)

	data := sink.snapshot()
	if mixed := countBetween(data, 0.05, 0.45); mixed < 10000 {
		t.Errorf("only %d mixed samples after the skip, expected a fade", mixed)
	}
	if got := p.State().Track; got != b {
		t.Errorf("current track %q after the fade, expected %q", got, b)
	}
}

func TestUnderrunEscalation(t *testing.T) {
	p, _ := newTestPlayer(t)

	base := time.Now()
	for i := 0; i < underrunBurst-1; i++ {
		if p.noteUnderrun(base.Add(time.Duration(i) * 10 * time.Millisecond)) {
			t.Fatal("escalated before the burst threshold")
		}
	}
	if !p.noteUnderrun(base.Add(100 * time.Millisecond)) {
		t.Fatal("burst inside the window not escalated")
	}

	// spaced-out underruns stay below the threshold indefinitely
	for i := 0; i < 3*underrunBurst; i++ {
		if p.noteUnderrun(base.Add(time.Duration(i+1) * 2 * underrunWindow)) {
			t.Fatal("escalated on sparse underruns")
		}
	}
}

func TestABPointStates(t *testing.T) {
	p, _ := newTestPlayer(t)

	path := filepath.Join(t.TempDir(), "tone.wav")
	writeTone(t, path, 2*time.Second)
	if err := p.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := p.SetABPoint("b", 500*time.Millisecond); err == nil {
		t.Error("expected error when setting b before a")
	}

	if err := p.SetABPoint("a", 200*time.Millisecond); err != nil {
		t.Fatalf("set a: %v", err)
	}
	if ab := p.State().ABLoop; !ab.ASet || ab.Enabled {
		t.Fatalf("a-only loop must stay inert: %+v", ab)
	}

	if err := p.SetABPoint("b", 100*time.Millisecond); err == nil {
		t.Error("expected error for b before a")
	}
	if err := p.SetABPoint("b", 400*time.Millisecond); err != nil {
		t.Fatalf("set b: %v", err)
	}
	if ab := p.State().ABLoop; !ab.Enabled || ab.A != 0.2 || ab.B != 0.4 {
		t.Fatalf("loop not engaged: %+v", ab)
	}

	if err := p.ClearABPoint("b"); err != nil {
		t.Fatalf("clear b: %v", err)
	}
	if ab := p.State().ABLoop; ab.Enabled || !ab.ASet {
		t.Errorf("clearing b must fall back to a-only: %+v", ab)
	}

	if err := p.ClearABPoint("a"); err != nil {
		t.Fatalf("clear a: %v", err)
	}
	if ab := p.State().ABLoop; ab.ASet || ab.BSet {
		t.Errorf("loop points survived a full clear: %+v", ab)
	}

	if err := p.SetABPoint("a", 3*time.Second); err == nil {
		t.Error("expected error for a point past the track end")
	}
}

func TestVisualizerPublishesBeat(t *testing.T) {
	bus := pubsub.New(100)
	sink := newFakeSink()
	p, err := New(
		Sinks(func(string) (audio.Sink, error) { return sink, nil }),
		EventBus(bus),
	)
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	t.Cleanup(func() { p.Close() })

	beatCh := bus.Sub(events.Beat)

	// prime the detector's energy history with a quiet bass baseline
	quiet := make([]float32, 2048)
	for i := range quiet {
		quiet[i] = float32(0.005 * math.Sin(2*math.Pi*60*float64(i)/48000))
	}
	for i := 0; i < 30; i++ {
		p.an.Process(quiet)
	}

	path := filepath.Join(t.TempDir(), "bass.wav")
	writeBassTone(t, path, 2*time.Second)
	if err := p.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := p.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p.VisualizerData()
		select {
		case <-beatCh:
			return
		default:
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("no beat event published for a loud bass onset")
}

func TestSetDeviceKeepsSinkHandoffClean(t *testing.T) {
	var mu sync.Mutex
	var sinks []*fakeSink

	p, err := New(Sinks(func(string) (audio.Sink, error) {
		s := newFakeSink()
		mu.Lock()
		sinks = append(sinks, s)
		mu.Unlock()
		return s, nil
	}))
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	t.Cleanup(func() { p.Close() })

	path := filepath.Join(t.TempDir(), "tone.wav")
	writeTone(t, path, 2*time.Second)
	if err := p.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := p.SetVolume(0.4); err != nil {
		t.Fatalf("set volume: %v", err)
	}
	if err := p.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 8; i++ {
		if err := p.SetDevice(fmt.Sprintf("out-%d", i)); err != nil {
			t.Fatalf("set device %d: %v", i, err)
		}
		time.Sleep(30 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, s := range sinks {
		if s.writtenAfterClose() {
			t.Errorf("sink %d received audio after it was closed", i)
		}
	}
	last := sinks[len(sinks)-1]
	if v := last.Volume(); v != 0.4 {
		t.Errorf("volume %f not carried to the new sink", v)
	}
	if last.samples() == 0 {
		t.Error("no audio reached the new sink")
	}
}

func TestVolumeAndMute(t *testing.T) {
	p, sink := newTestPlayer(t)

	if err := p.SetVolume(1.5); err == nil {
		t.Error("expected error for volume out of range")
	}
	if err := p.SetVolume(0.3); err != nil {
		t.Fatalf("set volume: %v", err)
	}
	if v := sink.Volume(); v != 0.3 {
		t.Errorf("sink volume %f, expected 0.3", v)
	}

	p.SetMute(true)
	if !sink.Muted() {
		t.Error("sink not muted")
	}
	if v := sink.Volume(); v != 0.3 {
		t.Errorf("mute changed volume to %f", v)
	}
	p.SetMute(false)
	if sink.Muted() {
		t.Error("sink still muted")
	}
}

func TestVisualizerSnapshot(t *testing.T) {
	p, _ := newTestPlayer(t)

	path := filepath.Join(t.TempDir(), "tone.wav")
	writeTone(t, path, 2*time.Second)
	if err := p.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := p.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	snap := p.VisualizerData()
	if len(snap.Spectrum) != 64 {
		t.Errorf("spectrum length %d, expected 64", len(snap.Spectrum))
	}
	if len(snap.Waveform) != 256 {
		t.Errorf("waveform length %d, expected 256", len(snap.Waveform))
	}
	for i, v := range snap.Spectrum {
		if v < 0 || v > 1 {
			t.Errorf("spectrum[%d] = %f outside [0, 1]", i, v)
		}
	}
	if snap.RMS == 0 {
		t.Error("RMS is zero while playing a tone")
	}
}

func TestQueueAdvance(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	q := newQueue(rng)
	q.setItems([]string{"a", "b", "c"})

	if cur, _ := q.current(); cur != "a" {
		t.Fatalf("current: %s", cur)
	}
	if !q.advance(RepeatOff) {
		t.Fatal("advance failed")
	}
	if cur, _ := q.current(); cur != "b" {
		t.Fatalf("current after advance: %s", cur)
	}
	q.advance(RepeatOff)
	if q.advance(RepeatOff) {
		t.Fatal("advance succeeded past the end with repeat off")
	}
}

func TestQueueRepeatAllWraps(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	q := newQueue(rng)
	q.setItems([]string{"a", "b"})

	q.advance(RepeatAll)
	if !q.advance(RepeatAll) {
		t.Fatal("repeat all did not wrap")
	}
	if cur, _ := q.current(); cur != "a" {
		t.Fatalf("current after wrap: %s", cur)
	}
}

func TestQueueRepeatOneStays(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	q := newQueue(rng)
	q.setItems([]string{"a", "b"})

	if !q.advance(RepeatOne) {
		t.Fatal("advance failed")
	}
	if cur, _ := q.current(); cur != "a" {
		t.Fatalf("repeat one moved to %s", cur)
	}
}

func TestQueueShuffleNoImmediateRepeat(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	q := newQueue(rng)
	q.setItems([]string{"a", "b", "c", "d"})
	q.setShuffle(true)

	// drive many full passes; a reshuffled pass must never open with
	// the track that just finished
	for pass := 0; pass < 50; pass++ {
		var last string
		for {
			cur, _ := q.current()
			last = cur
			if q.pos+1 >= len(q.order) {
				break
			}
			q.advance(RepeatAll)
		}
		q.advance(RepeatAll) // wrap, reshuffles
		first, _ := q.current()
		if first == last {
			t.Fatalf("pass %d: shuffled pass repeats track %q", pass, last)
		}
	}
}

func TestQueueShuffleKeepsCurrentTrack(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	q := newQueue(rng)
	q.setItems([]string{"a", "b", "c", "d"})
	q.advance(RepeatOff)
	cur, _ := q.current()

	q.setShuffle(true)
	if got, _ := q.current(); got != cur {
		t.Errorf("shuffle moved the current track: %s -> %s", cur, got)
	}

	q.setShuffle(false)
	if got, _ := q.current(); got != cur {
		t.Errorf("unshuffle moved the current track: %s -> %s", cur, got)
	}
}

func TestRepeatModeRoundtrip(t *testing.T) {
	for _, mode := range []RepeatMode{RepeatOff, RepeatAll, RepeatOne} {
		parsed, err := ParseRepeatMode(mode.String())
		if err != nil {
			t.Fatalf("parse %q: %v", mode, err)
		}
		if parsed != mode {
			t.Errorf("roundtrip %v -> %v", mode, parsed)
		}
	}
	if _, err := ParseRepeatMode("bogus"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestCrossfadeBlockRamps(t *testing.T) {
	const total = 100
	out := make([]float32, total*2)
	in := make([]float32, total*2)
	for i := range out {
		out[i] = 1
		in[i] = -1
	}

	crossfadeBlock(out, in, 2, 0, total)

	if out[0] != 1 {
		t.Errorf("fade start: got %f, expected 1", out[0])
	}
	// the mix must move monotonically from the old to the new track
	for f := 1; f < total; f++ {
		if out[f*2] > out[(f-1)*2] {
			t.Fatalf("gain not monotonic at frame %d", f)
		}
	}
	if last := out[(total-1)*2]; last > -0.9 {
		t.Errorf("fade end: got %f, expected close to -1", last)
	}
}
