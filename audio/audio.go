package audio

// Msg contains an audio buffer with its metadata.
type Msg struct {
	Data       []float32
	Samplerate float64
	Channels   int
	Frames     int // Number of Frames in the buffer
	EOF        bool // End of File / end of track
}

// Sink is the interface which is implemented by an audio sink. This is
// typically a local audio output device (e.g. speakers).
type Sink interface {
	Start() error
	Stop() error
	Close() error
	SetVolume(float32)
	Volume() float32
	SetMuted(bool)
	Muted() bool
	Write(Msg) error
	Flush()
}
