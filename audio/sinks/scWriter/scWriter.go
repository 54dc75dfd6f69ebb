package scWriter

import (
	"fmt"
	"log"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	ringBuffer "github.com/dh1tw/golang-ring"
	"github.com/dh1tw/gosamplerate"
	pa "github.com/gordonklaus/portaudio"
	"github.com/klangd/klang/audio"
)

// ScWriter implements the audio.Sink interface and plays audio on a
// local output device (e.g. speakers). Incoming audio is chopped into
// fixed size frames and queued in a ring buffer from which the
// portaudio callback pulls; the callback itself never blocks and plays
// silence when the queue runs empty.
type ScWriter struct {
	sync.RWMutex
	options    Options
	deviceInfo *pa.DeviceInfo
	stream     *pa.Stream
	ring       ringBuffer.Ring
	stash      []float32
	volume     float32
	muted      bool
	src        src
	bufFill    bool // indicates if the buffer is filling up
	underruns  uint64
}

// src contains a samplerate converter and its needed variables
type src struct {
	gosamplerate.Src
	samplerate float64
	ratio      float64
}

// Device describes an audio output device available on this system.
type Device struct {
	Name       string  `json:"name"`
	HostAPI    string  `json:"host_api"`
	Channels   int     `json:"max_channels"`
	Samplerate float64 `json:"default_samplerate"`
	IsDefault  bool    `json:"is_default"`
}

// Stats reports runtime counters of the output device.
type Stats struct {
	Device         string `json:"device"`
	Underruns      uint64 `json:"underruns"`
	BufferedFrames int    `json:"buffered_frames"`
}

// NewScWriter returns a new soundcard writer for a specific audio
// output device.
func NewScWriter(opts ...Option) (*ScWriter, error) {

	w := &ScWriter{
		options: Options{
			DeviceName:      "default",
			HostAPI:         "default",
			Channels:        2,
			Samplerate:      48000,
			FramesPerBuffer: 1024,
			RingBufferSize:  10,
		},
		deviceInfo: nil,
		ring:       ringBuffer.Ring{},
		volume:     0.7,
	}

	for _, option := range opts {
		option(&w.options)
	}

	// setup a samplerate converter
	srConv, err := gosamplerate.New(gosamplerate.SRC_SINC_FASTEST, w.options.Channels, 65536)
	if err != nil {
		return nil, fmt.Errorf("scwriter: %v", err)
	}

	w.src = src{
		Src:        srConv,
		samplerate: w.options.Samplerate,
		ratio:      1,
	}

	hostAPI, err := selectHostAPI(w.options.HostAPI)
	if err != nil {
		return nil, err
	}

	if w.options.DeviceName == "default" {
		w.deviceInfo = hostAPI.DefaultOutputDevice
	} else {
		dev, err := getPaDevice(w.options.DeviceName, hostAPI)
		if err != nil {
			return nil, err
		}
		w.deviceInfo = dev
	}

	streamDeviceParam := pa.StreamDeviceParameters{
		Device:   w.deviceInfo,
		Channels: w.options.Channels,
		Latency:  w.deviceInfo.DefaultLowOutputLatency,
	}

	streamParm := pa.StreamParameters{
		FramesPerBuffer: w.options.FramesPerBuffer,
		Output:          streamDeviceParam,
		SampleRate:      w.options.Samplerate,
	}

	w.ring.SetCapacity(w.options.RingBufferSize)

	stream, err := pa.OpenStream(streamParm, w.playCb)
	if err != nil {
		return nil,
			fmt.Errorf("unable to open playback audio stream on device %s: %s",
				w.options.DeviceName, err)
	}

	w.stream = stream
	log.Printf("output sound device: %s, HostAPI: %s\n", w.deviceInfo.Name, w.deviceInfo.HostApi.Name)

	return w, nil
}

// portaudio callback which will be called continuously when the stream
// is started; this function should be short and never block
func (p *ScWriter) playCb(in []float32,
	iTime pa.StreamCallbackTimeInfo,
	iFlags pa.StreamCallbackFlags) {
	switch iFlags {
	case pa.OutputUnderflow:
		atomic.AddUint64(&p.underruns, 1)
		return // move on!
	case pa.OutputOverflow:
		log.Println("output overflow")
		return // move on!
	}

	var data interface{}

	p.Lock()
	bufFill := p.bufFill
	bufCapacity := p.ring.Capacity()
	bufLength := p.ring.Length()
	// when filling up the buffer, don't dequeue data
	if !bufFill {
		data = p.ring.Dequeue()
	}
	p.Unlock()

	// start filling buffer when buffer runs empty
	if bufLength == 0 {
		p.Lock()
		p.bufFill = true
		p.Unlock()
	}

	if bufFill {
		// stop filling buffer when it's again half full
		if bufLength >= bufCapacity/2 {
			p.bufFill = false
		}
	}

	// if no data is available we fill the audio package with silence
	if data == nil {
		atomic.AddUint64(&p.underruns, 1)
		for i := 0; i < len(in); i++ {
			in[i] = 0
		}
		return
	}

	audioData := data.([]float32)

	// should never happen
	if len(audioData) != len(in) {
		log.Printf("unable to play audio frame; expected frame size %d, but got %d",
			len(in), len(audioData))
		return
	}

	copy(in, audioData)
}

// Start starts streaming audio to the output device.
func (p *ScWriter) Start() error {
	if p.stream == nil {
		return fmt.Errorf("portaudio stream not initialized")
	}
	return p.stream.Start()
}

// Stop stops streaming audio.
func (p *ScWriter) Stop() error {
	if p.stream == nil {
		return fmt.Errorf("portaudio stream not initialized")
	}
	return p.stream.Stop()
}

// Close shuts down the soundcard audio device.
func (p *ScWriter) Close() error {
	if p.stream == nil {
		return fmt.Errorf("portaudio stream not initialized")
	}
	p.stream.Abort()
	p.stream.Stop()
	gosamplerate.Delete(p.src.Src)
	return nil
}

// SetVolume sets the volume for all upcoming audio frames.
func (p *ScWriter) SetVolume(v float32) {
	p.Lock()
	defer p.Unlock()
	if v < 0 {
		p.volume = 0
	} else if v > 1 {
		p.volume = 1
	} else {
		p.volume = v
	}
}

// Volume returns the current volume.
func (p *ScWriter) Volume() float32 {
	p.RLock()
	defer p.RUnlock()
	return p.volume
}

// SetMuted mutes or unmutes the output without touching the volume
// setting.
func (p *ScWriter) SetMuted(muted bool) {
	p.Lock()
	defer p.Unlock()
	p.muted = muted
}

// Muted returns whether the output is muted.
func (p *ScWriter) Muted() bool {
	p.RLock()
	defer p.RUnlock()
	return p.muted
}

// Write converts the frames in the audio buffer into the right format
// and queues them into a ring buffer for playing on the speaker.
func (p *ScWriter) Write(msg audio.Msg) error {

	var aData []float32
	var err error

	// if necessary adjust the amount of audio channels
	if msg.Channels != p.options.Channels {
		aData = audio.AdjustChannels(msg.Channels, p.options.Channels, msg.Data)
	} else {
		aData = msg.Data
	}

	// if necessary, resample the audio
	if msg.Samplerate != p.options.Samplerate {
		if p.src.samplerate != msg.Samplerate {
			p.src.Reset()
			p.src.samplerate = msg.Samplerate
			p.src.ratio = p.options.Samplerate / msg.Samplerate
		}
		aData, err = p.src.Process(aData, p.src.ratio, false)
		if err != nil {
			return err
		}
	}

	// audio buffer size we want to write into our ring buffer
	// (size expected by portaudio callback)
	expBufferSize := p.options.FramesPerBuffer * p.options.Channels

	// if there is data stashed from previous calls, prepend it to the
	// data received
	if len(p.stash) > 0 {
		aData = append(p.stash, aData...)
		p.stash = p.stash[:0]
	}

	// if the audio buffer size is actually smaller than the one we
	// need, then stash it for the next time and return
	if len(aData) < expBufferSize {
		p.stash = aData
		return nil
	}

	// slice of audio buffers which will be enqueued into the ring buffer
	var bData [][]float32

	p.Lock()
	vol := p.volume
	if p.muted {
		vol = 0
	}
	p.Unlock()

	// chop the data into frames of the expected buffer size
	for len(aData) >= expBufferSize {
		frame := make([]float32, expBufferSize)
		copy(frame, aData[:expBufferSize])
		if vol != 1 {
			audio.AdjustVolume(vol, frame)
		}
		bData = append(bData, frame)
		aData = aData[expBufferSize:]
	}

	// stash the left over
	if len(aData) > 0 {
		p.stash = aData
	}

	p.enqueue(bData)

	return nil
}

func (p *ScWriter) enqueue(bData [][]float32) {
	p.Lock()
	defer p.Unlock()
	for _, frame := range bData {
		p.ring.Enqueue(frame)
	}
}

// Flush clears all internal buffers.
func (p *ScWriter) Flush() {
	p.Lock()
	defer p.Unlock()

	p.stash = []float32{}

	p.ring = ringBuffer.Ring{}
	p.ring.SetCapacity(p.options.RingBufferSize)
}

// Stats returns runtime counters of the output device.
func (p *ScWriter) Stats() Stats {
	p.RLock()
	defer p.RUnlock()
	return Stats{
		Device:         p.deviceInfo.Name,
		Underruns:      atomic.LoadUint64(&p.underruns),
		BufferedFrames: p.ring.Length() * p.options.FramesPerBuffer,
	}
}

// DeviceName returns the name of the opened output device.
func (p *ScWriter) DeviceName() string {
	p.RLock()
	defer p.RUnlock()
	return p.deviceInfo.Name
}

// Devices enumerates the audio output devices of all host APIs.
// portaudio must be initialized before calling this function.
func Devices() ([]Device, error) {
	devs, err := pa.Devices()
	if err != nil {
		return nil, fmt.Errorf("unable to enumerate audio devices: %w", err)
	}

	defaultHost, err := pa.DefaultHostApi()
	if err != nil {
		return nil, err
	}

	var out []Device
	for _, dev := range devs {
		if dev.MaxOutputChannels == 0 {
			continue
		}
		out = append(out, Device{
			Name:       dev.Name,
			HostAPI:    dev.HostApi.Name,
			Channels:   dev.MaxOutputChannels,
			Samplerate: dev.DefaultSampleRate,
			IsDefault:  dev == defaultHost.DefaultOutputDevice,
		})
	}
	return out, nil
}

// selectHostAPI resolves a host api name to the portaudio host api,
// preferring WASAPI on Windows when asked for the default.
func selectHostAPI(name string) (*pa.HostApiInfo, error) {
	if name != "default" {
		return getHostAPI(name)
	}

	if runtime.GOOS == "windows" {
		// WASAPI provides lower latency than the other windows
		// audio apis
		if ha, err := pa.HostApi(pa.WASAPI); err == nil {
			return ha, nil
		}
	}

	ha, err := pa.DefaultHostApi()
	if err != nil {
		return nil, fmt.Errorf("unable to determine the default host api - please provide a specific host api")
	}
	return ha, nil
}

// getHostAPI takes the name of a supported portaudio host api and
// returns the corresponding portaudio hostApiInfo object
func getHostAPI(name string) (*pa.HostApiInfo, error) {

	var hostAPIType pa.HostApiType

	switch strings.ToLower(name) {
	case "directsound":
		hostAPIType = pa.DirectSound
	case "mme":
		hostAPIType = pa.MME
	case "asio":
		hostAPIType = pa.ASIO
	case "coreaudio":
		hostAPIType = pa.CoreAudio
	case "oss":
		hostAPIType = pa.OSS
	case "alsa":
		hostAPIType = pa.ALSA
	case "wdmks":
		hostAPIType = pa.WDMkS
	case "jack":
		hostAPIType = pa.JACK
	case "wasapi":
		hostAPIType = pa.WASAPI
	default:
		return nil, fmt.Errorf("unknown host api type: %s", name)
	}

	hostAPIInfo, err := pa.HostApi(hostAPIType)
	if err != nil {
		return nil, fmt.Errorf("unable to load host api %s: %s", name, err.Error())
	}

	return hostAPIInfo, nil
}

// getPaDevice checks if the audio device actually exists and
// then returns it
func getPaDevice(name string, hostAPI *pa.HostApiInfo) (*pa.DeviceInfo, error) {
	for _, device := range hostAPI.Devices {
		if strings.EqualFold(device.Name, name) {
			return device, nil
		}
	}
	return nil, fmt.Errorf("unknown audio device '%s'", name)
}
