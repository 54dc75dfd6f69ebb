package player

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dh1tw/gosamplerate"

	"github.com/klangd/klang/analyzer"
	"github.com/klangd/klang/audio"
	"github.com/klangd/klang/audio/ringbuffer"
	"github.com/klangd/klang/audio/sinks/scWriter"
	"github.com/klangd/klang/decoder"
	"github.com/klangd/klang/dsp"
	"github.com/klangd/klang/events"
)

const (
	// preloadAhead is how long before the end of the current track the
	// next one is decoded in the background, for gapless transitions.
	preloadAhead = 10 * time.Second

	minCrossfade = 1 * time.Second
	maxCrossfade = 10 * time.Second

	// a burst of underruns within the window escalates to a device error
	underrunBurst  = 10
	underrunWindow = 5 * time.Second
)

type eventMsg struct {
	topic string
	data  interface{}
}

// Player is the playback engine. It decodes tracks into memory, routes
// them through a ring buffer and the effects chain into an audio sink,
// and exposes the transport controls of the control surface. All
// methods are safe for concurrent use.
type Player struct {
	mu      sync.RWMutex
	options Options

	sink       audio.Sink
	deviceName string
	ring       *ringbuffer.RingBuffer
	chain      *dsp.Chain
	queue      *queue

	current    *decoder.Track
	cursor     int // frame index of the next block to produce
	next       *decoder.Track
	nextCursor int
	nextQueued bool // queue already points at next (manual skip fade)
	preloading bool

	playing   bool
	paused    bool
	ab        ABLoop
	repeat    RepeatMode
	shuffle   bool
	crossfade time.Duration

	visMu sync.Mutex
	an    *analyzer.Analyzer

	resetChain atomic.Bool
	underruns  uint64
	played     uint64
	decodeErrs uint64

	// underrun clustering, touched only by the pump goroutine
	urCount       int
	urWindowStart time.Time

	stopCh    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New returns a started playback engine. The engine runs two
// goroutines: a feeder which produces audio blocks into the ring buffer
// and a pump which drains the buffer through the effects chain into the
// sink at real-time pace.
func New(opts ...Option) (*Player, error) {

	p := &Player{
		options: Options{
			Samplerate:     48000,
			Channels:       2,
			FrameLength:    1024,
			RingBufferSize: 8192,
			DeviceName:     "default",
		},
		stopCh: make(chan struct{}),
	}

	for _, option := range opts {
		option(&p.options)
	}

	if p.options.SinkFactory == nil {
		p.options.SinkFactory = defaultSinkFactory(p.options)
	}

	sink, err := p.options.SinkFactory(p.options.DeviceName)
	if err != nil {
		return nil, fmt.Errorf("player: unable to open output device: %w", err)
	}
	p.sink = sink
	p.deviceName = p.options.DeviceName

	chain, err := dsp.NewChain(p.options.Samplerate, p.options.Channels)
	if err != nil {
		sink.Close()
		return nil, err
	}
	p.chain = chain

	an, err := analyzer.New(p.options.Samplerate)
	if err != nil {
		sink.Close()
		chain.Close()
		return nil, err
	}
	p.an = an

	p.ring = ringbuffer.New(p.options.RingBufferSize * p.options.Channels)
	p.queue = newQueue(rand.New(rand.NewSource(time.Now().UnixNano())))

	if err := p.sink.Start(); err != nil {
		p.chain.Close()
		return nil, fmt.Errorf("player: unable to start output device: %w", err)
	}

	p.wg.Add(2)
	go p.feeder()
	go p.pump()

	return p, nil
}

func defaultSinkFactory(options Options) SinkFactory {
	return func(deviceName string) (audio.Sink, error) {
		opts := []scWriter.Option{
			scWriter.Samplerate(options.Samplerate),
			scWriter.Channels(options.Channels),
			scWriter.FramesPerBuffer(options.FrameLength),
		}
		if deviceName != "" {
			opts = append(opts, scWriter.DeviceName(deviceName))
		}
		return scWriter.NewScWriter(opts...)
	}
}

// Close stops the engine and releases the audio device.
func (p *Player) Close() error {
	p.closeOnce.Do(func() {
		close(p.stopCh)
		p.ring.Close()
	})
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink.Stop()
	err := p.sink.Close()
	if cerr := p.chain.Close(); err == nil {
		err = cerr
	}
	return err
}

// feeder produces audio blocks from the current track into the ring
// buffer. The ring's write blocks while the buffer is full, pacing the
// producer against the real-time pump.
func (p *Player) feeder() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		block, evs := p.produceBlock()
		for _, ev := range evs {
			p.pub(ev.topic, ev.data)
		}

		if block == nil {
			select {
			case <-p.stopCh:
				return
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		if err := p.ring.Write(block); err != nil {
			return // buffer closed, engine is shutting down
		}
	}
}

// pump drains one block per tick from the ring buffer, runs it through
// the effects chain and hands it to the sink.
func (p *Player) pump() {
	defer p.wg.Done()

	interval := time.Duration(float64(p.options.FrameLength) /
		p.options.Samplerate * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	blockSize := p.options.FrameLength * p.options.Channels

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
		}

		p.mu.RLock()
		active := p.playing && !p.paused
		p.mu.RUnlock()

		if !active {
			continue
		}

		if p.resetChain.Swap(false) {
			p.chain.Reset()
		}

		data, underrun := p.ring.ReadForPlayback(blockSize)
		if underrun {
			atomic.AddUint64(&p.underruns, 1)
			p.pub(events.Underrun, int64(blockSize-p.ring.Len()))
			if p.noteUnderrun(time.Now()) {
				p.pub(events.DeviceError, fmt.Errorf(
					"%d playback underruns within %v", underrunBurst, underrunWindow))
			}
		}

		out, err := p.chain.Process(data)
		if err != nil {
			log.Printf("effects chain: %v", err)
			continue
		}

		msg := audio.Msg{
			Data:       out,
			Samplerate: p.options.Samplerate,
			Channels:   p.options.Channels,
			Frames:     len(out) / p.options.Channels,
		}
		// the sink is written under the read lock, so a concurrent
		// SetDevice cannot close it mid-block
		p.mu.RLock()
		err = p.sink.Write(msg)
		p.mu.RUnlock()
		if err != nil {
			log.Printf("audio sink: %v", err)
			p.pub(events.DeviceError, err)
		}
	}
}

// noteUnderrun tracks underrun clustering for the pump. It reports true
// when the burst threshold is crossed inside the sliding window, which
// the pump escalates to a device error.
func (p *Player) noteUnderrun(now time.Time) bool {
	if p.urCount == 0 || now.Sub(p.urWindowStart) > underrunWindow {
		p.urWindowStart = now
		p.urCount = 0
	}
	p.urCount++
	if p.urCount >= underrunBurst {
		p.urCount = 0
		return true
	}
	return false
}

// produceBlock assembles the next audio block from the current track,
// honoring the A-B loop, crossfade and track transitions. It returns
// nil when there is nothing to produce (stopped, paused, or a track
// boundary was handled instead).
func (p *Player) produceBlock() ([]float32, []eventMsg) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil || !p.playing || p.paused {
		return nil, nil
	}

	chs := p.options.Channels
	sr := p.options.Samplerate
	frames := p.options.FrameLength

	// A-B loop wraps the cursor back to A once it reaches B; the block
	// is truncated at B so the jump lands exactly on the loop point
	if p.ab.Enabled {
		aFrame := int(p.ab.A * sr)
		bFrame := int(p.ab.B * sr)
		if bFrame > p.current.Frames() {
			bFrame = p.current.Frames()
		}
		if p.cursor >= bFrame {
			p.cursor = aFrame
		}
		if p.cursor+frames > bFrame {
			frames = bFrame - p.cursor
		}
		if frames <= 0 {
			return nil, nil
		}
	}

	remaining := p.current.Frames() - p.cursor
	if remaining <= 0 {
		return nil, p.advanceTrack()
	}
	if frames > remaining {
		frames = remaining
	}

	block := make([]float32, frames*chs)
	copy(block, p.current.Samples[p.cursor*chs:(p.cursor+frames)*chs])

	if !p.ab.Enabled && p.repeat != RepeatOne {
		// decode the upcoming track in the background well before the
		// current one ends
		if p.next == nil && !p.preloading &&
			remaining <= durationToFrames(preloadAhead, sr) {
			p.startPreload()
		}

		cfFrames := durationToFrames(p.crossfade, sr)
		if cfFrames > 0 && remaining <= cfFrames && p.next != nil {
			nextBlock := sliceFrames(p.next, p.nextCursor, frames, chs)
			crossfadeBlock(block, nextBlock, chs, cfFrames-remaining, cfFrames)
			p.nextCursor += frames
		}
	}

	p.cursor += frames
	return block, nil
}

// advanceTrack handles the end of the current track under the active
// repeat mode. Called with the mutex held.
func (p *Player) advanceTrack() []eventMsg {
	ended := p.current.Path
	evs := []eventMsg{{events.TrackEnd, ended}}
	p.played++

	if p.repeat == RepeatOne {
		p.cursor = 0
		return evs
	}

	// a preloaded track continues seamlessly; its cursor is already
	// past the crossfaded region
	if p.next != nil {
		p.current = p.next
		p.cursor = p.nextCursor
		p.next = nil
		p.nextCursor = 0
		if p.nextQueued {
			// a manual skip already advanced the queue
			p.nextQueued = false
		} else {
			p.queue.advance(p.repeat)
		}
		evs = append(evs, eventMsg{events.StateChange, p.stateLocked()})
		return evs
	}

	if !p.queue.advance(p.repeat) {
		p.playing = false
		p.cursor = 0
		evs = append(evs, eventMsg{events.StateChange, p.stateLocked()})
		return evs
	}

	// no preload available, decode synchronously and skip over
	// undecodable tracks
	for attempts := 0; attempts < p.queue.len(); attempts++ {
		path, ok := p.queue.current()
		if !ok {
			break
		}
		t, err := p.loadTrack(path)
		if err == nil {
			p.current = t
			p.cursor = 0
			evs = append(evs, eventMsg{events.StateChange, p.stateLocked()})
			return evs
		}
		p.decodeErrs++
		evs = append(evs, eventMsg{events.TrackError, err})
		if !p.queue.advance(p.repeat) {
			break
		}
	}

	p.playing = false
	evs = append(evs, eventMsg{events.StateChange, p.stateLocked()})
	return evs
}

// startPreload decodes the upcoming queue entry in the background.
// Called with the mutex held.
func (p *Player) startPreload() {
	path, ok := p.queue.peekNext(p.repeat)
	if !ok || path == p.current.Path {
		return
	}
	p.preloading = true

	go func() {
		t, err := p.loadTrack(path)

		p.mu.Lock()
		defer p.mu.Unlock()
		p.preloading = false
		if err != nil {
			p.decodeErrs++
			go p.pub(events.TrackError, err)
			return
		}
		// the queue may have moved on in the meantime
		if next, ok := p.queue.peekNext(p.repeat); ok && next == path && p.next == nil {
			p.next = t
			p.nextCursor = 0
		}
	}()
}

// loadTrack decodes a file and converts it to the engine's sample rate
// and channel layout.
func (p *Player) loadTrack(path string) (*decoder.Track, error) {
	t, err := decoder.Open(path)
	if err != nil {
		return nil, err
	}

	data := t.Samples
	if t.Channels != p.options.Channels {
		data = audio.AdjustChannels(t.Channels, p.options.Channels, data)
	}
	if t.Samplerate != p.options.Samplerate {
		ratio := p.options.Samplerate / t.Samplerate
		data, err = gosamplerate.Simple(data, ratio, p.options.Channels,
			gosamplerate.SRC_SINC_FASTEST)
		if err != nil {
			return nil, fmt.Errorf("unable to resample %s: %w", path, err)
		}
	}

	return &decoder.Track{
		Path:       t.Path,
		Samples:    data,
		Samplerate: p.options.Samplerate,
		Channels:   p.options.Channels,
	}, nil
}

// sliceFrames returns count frames starting at cursor, zero padded past
// the end of the track.
func sliceFrames(t *decoder.Track, cursor, count, channels int) []float32 {
	out := make([]float32, count*channels)
	if cursor >= t.Frames() {
		return out
	}
	end := cursor + count
	if end > t.Frames() {
		end = t.Frames()
	}
	copy(out, t.Samples[cursor*channels:end*channels])
	return out
}

func (p *Player) pub(topic string, data interface{}) {
	if p.options.EventBus != nil {
		p.options.EventBus.Pub(data, topic)
	}
}

// pubState publishes the current playback state. Must be called without
// the mutex held.
func (p *Player) pubState() {
	p.pub(events.StateChange, p.State())
}

// --- control surface ---

// Load replaces the queue with a single track and cues it at the
// beginning. Playback does not start until Play is called.
func (p *Player) Load(path string) error {
	return p.SetQueue([]string{path})
}

// SetQueue replaces the play queue. The first entry is decoded and
// cued; playback does not start until Play is called.
func (p *Player) SetQueue(paths []string) error {
	if len(paths) == 0 {
		return fmt.Errorf("empty queue")
	}

	p.mu.Lock()
	p.queue.setItems(paths)
	path, _ := p.queue.current()
	t, err := p.loadTrack(path)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.current = t
	p.cursor = 0
	p.next = nil
	p.nextCursor = 0
	p.nextQueued = false
	p.ab = ABLoop{}
	p.ring.Flush()
	sink := p.sink
	p.mu.Unlock()

	p.resetChain.Store(true)
	sink.Flush()
	p.pubState()
	return nil
}

// Play starts or resumes playback.
func (p *Player) Play() error {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return fmt.Errorf("no track loaded")
	}
	p.playing = true
	p.paused = false
	p.mu.Unlock()

	p.pubState()
	return nil
}

// Pause suspends playback; the position is retained.
func (p *Player) Pause() error {
	p.mu.Lock()
	if !p.playing {
		p.mu.Unlock()
		return fmt.Errorf("not playing")
	}
	p.paused = true
	p.mu.Unlock()

	p.pubState()
	return nil
}

// Stop halts playback and rewinds to the beginning of the track.
func (p *Player) Stop() error {
	p.mu.Lock()
	p.playing = false
	p.paused = false
	p.cursor = 0
	p.nextCursor = 0
	p.ring.Flush()
	sink := p.sink
	p.mu.Unlock()

	p.resetChain.Store(true)
	sink.Flush()
	p.pubState()
	return nil
}

// Next skips to the next track in the queue. With a crossfade
// configured the outgoing track fades into the incoming one; otherwise
// the switch is a hard cut.
func (p *Player) Next() error {
	p.mu.Lock()
	mode := p.repeat
	if mode == RepeatOne {
		mode = RepeatOff
	}
	if !p.queue.advance(mode) {
		p.mu.Unlock()
		return fmt.Errorf("end of queue")
	}

	if p.crossfade > 0 && p.playing && !p.paused &&
		p.current != nil && p.repeat != RepeatOne {
		err := p.fadeToCurrent()
		p.mu.Unlock()
		if err != nil {
			return err
		}
		p.pubState()
		return nil
	}

	err := p.cueCurrent()
	sink := p.sink
	p.mu.Unlock()
	if err != nil {
		return err
	}

	p.resetChain.Store(true)
	sink.Flush()
	p.pubState()
	return nil
}

// fadeToCurrent cues the queue's current entry as the incoming fade
// track and truncates the outgoing one, so the regular crossfade path
// mixes the two starting at the present position. Called with the
// mutex held.
func (p *Player) fadeToCurrent() error {
	path, ok := p.queue.current()
	if !ok {
		return fmt.Errorf("queue is empty")
	}
	t, err := p.loadTrack(path)
	if err != nil {
		return err
	}

	chs := p.options.Channels
	end := p.cursor + durationToFrames(p.crossfade, p.options.Samplerate)
	if end > p.current.Frames() {
		end = p.current.Frames()
	}
	p.current = &decoder.Track{
		Path:       p.current.Path,
		Samples:    p.current.Samples[:end*chs],
		Samplerate: p.current.Samplerate,
		Channels:   p.current.Channels,
	}
	p.next = t
	p.nextCursor = 0
	p.nextQueued = true
	p.ab = ABLoop{}
	return nil
}

// Previous restarts the current track, or skips to the previous one
// when less than three seconds have played.
func (p *Player) Previous() error {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return fmt.Errorf("no track loaded")
	}
	if p.positionLocked() < 3.0 {
		p.queue.previous()
	}
	err := p.cueCurrent()
	sink := p.sink
	p.mu.Unlock()
	if err != nil {
		return err
	}

	p.resetChain.Store(true)
	sink.Flush()
	p.pubState()
	return nil
}

// cueCurrent loads the queue's current entry and rewinds. Called with
// the mutex held.
func (p *Player) cueCurrent() error {
	path, ok := p.queue.current()
	if !ok {
		return fmt.Errorf("queue is empty")
	}
	t, err := p.loadTrack(path)
	if err != nil {
		return err
	}
	p.current = t
	p.cursor = 0
	p.next = nil
	p.nextCursor = 0
	p.nextQueued = false
	p.ab = ABLoop{}
	p.ring.Flush()
	return nil
}

// Seek jumps to the given position in the current track.
func (p *Player) Seek(pos time.Duration) error {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return fmt.Errorf("no track loaded")
	}
	if pos < 0 {
		pos = 0
	}
	if pos > p.current.Duration() {
		pos = p.current.Duration()
	}
	p.cursor = durationToFrames(pos, p.options.Samplerate)
	p.nextCursor = 0
	p.ring.Flush()
	sink := p.sink
	p.mu.Unlock()

	p.resetChain.Store(true)
	sink.Flush()
	p.pubState()
	return nil
}

// SeekPercent jumps to a position given as a percentage of the track
// duration.
func (p *Player) SeekPercent(pct float64) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("seek percentage %f out of range [0, 100]", pct)
	}
	p.mu.RLock()
	if p.current == nil {
		p.mu.RUnlock()
		return fmt.Errorf("no track loaded")
	}
	d := p.current.Duration()
	p.mu.RUnlock()

	return p.Seek(time.Duration(float64(d) * pct / 100))
}

// SetVolume sets the output volume (0..1).
func (p *Player) SetVolume(v float32) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("volume %f out of range [0, 1]", v)
	}
	p.mu.RLock()
	p.sink.SetVolume(v)
	p.mu.RUnlock()

	p.pubState()
	return nil
}

// SetMute mutes or unmutes the output without changing the volume.
func (p *Player) SetMute(muted bool) {
	p.mu.RLock()
	p.sink.SetMuted(muted)
	p.mu.RUnlock()

	p.pubState()
}

// SetShuffle toggles shuffle mode.
func (p *Player) SetShuffle(on bool) {
	p.mu.Lock()
	p.shuffle = on
	p.queue.setShuffle(on)
	p.mu.Unlock()

	p.pubState()
}

// SetRepeat sets the repeat mode.
func (p *Player) SetRepeat(mode RepeatMode) {
	p.mu.Lock()
	p.repeat = mode
	p.mu.Unlock()

	p.pubState()
}

// SetABLoop sets the points of the A-B loop. Both points must lie
// within the current track and A must come before B.
func (p *Player) SetABLoop(a, b time.Duration) error {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return fmt.Errorf("no track loaded")
	}
	if a < 0 || b <= a || b > p.current.Duration() {
		p.mu.Unlock()
		return fmt.Errorf("invalid loop points: a=%v b=%v duration=%v",
			a, b, p.current.Duration())
	}
	p.ab = ABLoop{Enabled: true, ASet: true, BSet: true, A: a.Seconds(), B: b.Seconds()}
	p.mu.Unlock()

	p.pubState()
	return nil
}

// SetABPoint sets a single loop point, "a" or "b". Point A on its own
// leaves the loop inert; setting B engages it. B cannot be set before
// A, and the points must stay ordered within the track.
func (p *Player) SetABPoint(point string, at time.Duration) error {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return fmt.Errorf("no track loaded")
	}
	if at < 0 || at > p.current.Duration() {
		p.mu.Unlock()
		return fmt.Errorf("loop point %v outside the track (duration %v)",
			at, p.current.Duration())
	}

	sec := at.Seconds()
	switch point {
	case "a":
		if p.ab.BSet && sec >= p.ab.B {
			p.mu.Unlock()
			return fmt.Errorf("point a (%v) must come before b (%.2fs)", at, p.ab.B)
		}
		p.ab.A = sec
		p.ab.ASet = true
	case "b":
		if !p.ab.ASet {
			p.mu.Unlock()
			return fmt.Errorf("point a must be set first")
		}
		if sec <= p.ab.A {
			p.mu.Unlock()
			return fmt.Errorf("point b (%v) must come after a (%.2fs)", at, p.ab.A)
		}
		p.ab.B = sec
		p.ab.BSet = true
	default:
		p.mu.Unlock()
		return fmt.Errorf("unknown loop point %q", point)
	}
	p.ab.Enabled = p.ab.ASet && p.ab.BSet
	p.mu.Unlock()

	p.pubState()
	return nil
}

// ClearABPoint clears a single loop point. Clearing B falls back to the
// inert A-only state; clearing A drops the loop entirely.
func (p *Player) ClearABPoint(point string) error {
	p.mu.Lock()
	switch point {
	case "a":
		p.ab = ABLoop{}
	case "b":
		p.ab.B = 0
		p.ab.BSet = false
		p.ab.Enabled = false
	default:
		p.mu.Unlock()
		return fmt.Errorf("unknown loop point %q", point)
	}
	p.mu.Unlock()

	p.pubState()
	return nil
}

// ClearABLoop disables the A-B loop.
func (p *Player) ClearABLoop() {
	p.mu.Lock()
	p.ab = ABLoop{}
	p.mu.Unlock()

	p.pubState()
}

// SetCrossfade sets the crossfade duration between tracks. Zero
// disables crossfading; otherwise the duration must lie between one and
// ten seconds.
func (p *Player) SetCrossfade(d time.Duration) error {
	if d != 0 && (d < minCrossfade || d > maxCrossfade) {
		return fmt.Errorf("crossfade %v out of range [%v, %v]",
			d, minCrossfade, maxCrossfade)
	}
	p.mu.Lock()
	p.crossfade = d
	p.mu.Unlock()

	p.pubState()
	return nil
}

// SetEffects validates and applies a complete effects parameter set.
func (p *Player) SetEffects(params dsp.Params) error {
	return p.chain.SetParams(params)
}

// Effects returns the active effects parameters.
func (p *Player) Effects() dsp.Params {
	return p.chain.Params()
}

// SetEQBand sets the gain of a single equalizer band.
func (p *Player) SetEQBand(band int, gain float32) error {
	return p.chain.SetEQBand(band, gain)
}

// VisualizerData analyzes the most recent audio and returns a snapshot
// for the visualizer. While paused the spectrum decays towards zero.
func (p *Player) VisualizerData() analyzer.Snapshot {
	p.mu.RLock()
	active := p.playing && !p.paused
	raw := p.ring.PeekRecent(2048 * p.options.Channels)
	chs := p.options.Channels
	p.mu.RUnlock()

	p.visMu.Lock()
	var snap analyzer.Snapshot
	if !active || len(raw) == 0 {
		snap = p.an.Process(nil)
	} else {
		snap = p.an.Process(audio.Mixdown(chs, raw))
	}
	p.visMu.Unlock()

	if snap.BeatDetected {
		p.pub(events.Beat, true)
	}
	return snap
}

// Devices enumerates the available audio output devices.
func (p *Player) Devices() ([]scWriter.Device, error) {
	return scWriter.Devices()
}

// SetDevice switches playback to another output device. On failure the
// previous device stays active.
func (p *Player) SetDevice(name string) error {
	newSink, err := p.options.SinkFactory(name)
	if err != nil {
		return fmt.Errorf("unable to open device %q: %w", name, err)
	}

	p.mu.Lock()
	old := p.sink
	newSink.SetVolume(old.Volume())
	newSink.SetMuted(old.Muted())
	if err := newSink.Start(); err != nil {
		p.mu.Unlock()
		newSink.Close()
		return fmt.Errorf("unable to start device %q: %w", name, err)
	}
	p.sink = newSink
	p.deviceName = name
	p.mu.Unlock()

	old.Stop()
	old.Close()
	p.pubState()
	return nil
}

// State returns a snapshot of the playback state.
func (p *Player) State() PlaybackState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stateLocked()
}

func (p *Player) stateLocked() PlaybackState {
	s := PlaybackState{
		Playing:   p.playing,
		Paused:    p.paused,
		Volume:    p.sink.Volume(),
		Muted:     p.sink.Muted(),
		Shuffle:   p.shuffle,
		Repeat:    p.repeat,
		ABLoop:    p.ab,
		QueuePos:  p.queue.index(),
		QueueLen:  p.queue.len(),
		Crossfade: p.crossfade.Seconds(),
	}
	if p.current != nil {
		s.Track = p.current.Path
		s.Duration = p.current.Duration().Seconds()
		s.Position = p.positionLocked()
	}
	return s
}

// positionLocked returns the playback position in seconds: the decode
// cursor minus what is still buffered ahead of the sink.
func (p *Player) positionLocked() float64 {
	buffered := p.ring.Len() / p.options.Channels
	frames := p.cursor - buffered
	if frames < 0 {
		frames = 0
	}
	return float64(frames) / p.options.Samplerate
}

// Stats returns runtime counters of the engine and its output device.
func (p *Player) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Stats{
		Device:          p.deviceName,
		Underruns:       atomic.LoadUint64(&p.underruns),
		BufferedSamples: p.ring.Len(),
		TracksPlayed:    p.played,
		DecodeErrors:    p.decodeErrs,
	}
	if named, ok := p.sink.(interface{ DeviceName() string }); ok {
		s.Device = named.DeviceName()
	}
	return s
}
