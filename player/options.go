package player

import (
	"github.com/cskr/pubsub"

	"github.com/klangd/klang/audio"
)

// Option is the type for a function option
type Option func(*Options)

// SinkFactory creates an audio sink for the named output device. An
// empty name selects the default device.
type SinkFactory func(deviceName string) (audio.Sink, error)

// Options contains the parameters for initializing a player.
type Options struct {
	Samplerate     float64
	Channels       int
	FrameLength    int
	RingBufferSize int // ring buffer capacity in frames
	DeviceName     string
	EventBus       *pubsub.PubSub
	SinkFactory    SinkFactory
}

// Samplerate is a functional option to set the internal sampling rate
// of the playback engine. All tracks are resampled to this rate when
// loaded.
func Samplerate(s float64) Option {
	return func(args *Options) {
		args.Samplerate = s
	}
}

// Channels is a functional option to set the amount of output channels.
func Channels(chs int) Option {
	return func(args *Options) {
		args.Channels = chs
	}
}

// FrameLength is a functional option which sets the amount of sample
// frames processed per engine tick.
func FrameLength(l int) Option {
	return func(args *Options) {
		args.FrameLength = l
	}
}

// RingBufferSize is a functional option to set the capacity of the
// playback ring buffer in frames. The buffer also serves as the history
// window for the visualizer.
func RingBufferSize(frames int) Option {
	return func(args *Options) {
		args.RingBufferSize = frames
	}
}

// DeviceName is a functional option to select the initial output
// device.
func DeviceName(name string) Option {
	return func(args *Options) {
		args.DeviceName = name
	}
}

// EventBus is a functional option to provide the pubsub event bus on
// which the player publishes state changes, track transitions and
// errors.
func EventBus(bus *pubsub.PubSub) Option {
	return func(args *Options) {
		args.EventBus = bus
	}
}

// Sinks is a functional option to provide the factory which creates
// audio sinks for output devices. The player recreates its sink through
// this factory when the output device is switched.
func Sinks(f SinkFactory) Option {
	return func(args *Options) {
		args.SinkFactory = f
	}
}
