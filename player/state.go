package player

import (
	"fmt"
	"time"
)

// RepeatMode controls what happens when a track or the queue ends.
type RepeatMode int

const (
	// RepeatOff stops playback at the end of the queue.
	RepeatOff RepeatMode = iota
	// RepeatAll restarts the queue from the beginning.
	RepeatAll
	// RepeatOne plays the current track in a loop.
	RepeatOne
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "off"
	}
}

// ParseRepeatMode parses the textual repeat mode used on the wire.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch s {
	case "off":
		return RepeatOff, nil
	case "all":
		return RepeatAll, nil
	case "one":
		return RepeatOne, nil
	}
	return RepeatOff, fmt.Errorf("unknown repeat mode %q", s)
}

// MarshalJSON encodes the repeat mode as its textual name.
func (m RepeatMode) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON decodes the textual repeat mode.
func (m *RepeatMode) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	mode, err := ParseRepeatMode(s)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ABLoop is a repeating section within the current track. Point A can
// be set on its own and stays inert; the loop engages once B follows.
// While engaged, playback jumps back to A whenever it reaches B.
type ABLoop struct {
	Enabled bool    `json:"enabled"`
	ASet    bool    `json:"a_set"`
	BSet    bool    `json:"b_set"`
	A       float64 `json:"a"` // seconds
	B       float64 `json:"b"` // seconds
}

// PlaybackState is a snapshot of the player, as published to clients.
type PlaybackState struct {
	Track      string     `json:"track"`
	Playing    bool       `json:"playing"`
	Paused     bool       `json:"paused"`
	Position   float64    `json:"position"` // seconds
	Duration   float64    `json:"duration"` // seconds
	Volume     float32    `json:"volume"`
	Muted      bool       `json:"muted"`
	Shuffle    bool       `json:"shuffle"`
	Repeat     RepeatMode `json:"repeat"`
	ABLoop     ABLoop     `json:"ab_loop"`
	QueuePos   int        `json:"queue_pos"`
	QueueLen   int        `json:"queue_len"`
	Crossfade  float64    `json:"crossfade"` // seconds, 0 = off
}

// Stats reports runtime counters of the playback engine.
type Stats struct {
	Device          string `json:"device"`
	Underruns       uint64 `json:"underruns"`
	BufferedSamples int    `json:"buffered_samples"`
	TracksPlayed    uint64 `json:"tracks_played"`
	DecodeErrors    uint64 `json:"decode_errors"`
}

func durationToFrames(d time.Duration, samplerate float64) int {
	return int(d.Seconds() * samplerate)
}
