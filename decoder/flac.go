package decoder

import (
	"io"

	"github.com/mewkiz/flac"
)

func openFlac(path string) (*Track, error) {

	stream, err := flac.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Kind: ErrCorruptFile, Err: err}
	}
	defer stream.Close()

	info := stream.Info
	if info == nil {
		return nil, &DecodeError{Path: path, Kind: ErrCorruptFile}
	}

	t := &Track{
		Path:       path,
		Samplerate: float64(info.SampleRate),
		Channels:   int(info.NChannels),
	}

	bitDepth := int(info.BitsPerSample)
	maxVal := float32(int64(1) << uint(bitDepth-1))

	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &DecodeError{Path: path, Kind: ErrTruncatedFile, Err: err}
		}

		// interleave the per-channel subframes
		for i := 0; i < len(frame.Subframes[0].Samples); i++ {
			for ch := 0; ch < t.Channels; ch++ {
				s := float32(frame.Subframes[ch].Samples[i]) / maxVal
				t.Samples = append(t.Samples, s)
			}
		}
	}

	if len(t.Samples) == 0 {
		return nil, &DecodeError{Path: path, Kind: ErrTruncatedFile}
	}

	return t, nil
}
