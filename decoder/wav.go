package decoder

import (
	"os"

	ga "github.com/go-audio/audio"
	wav "github.com/go-audio/wav"
)

const wavReadChunk = 8192 // frames per PCMBuffer call

func openWav(path string) (*Track, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Kind: err}
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, &DecodeError{Path: path, Kind: ErrCorruptFile}
	}

	format := dec.Format()
	bitDepth := int(dec.BitDepth)

	t := &Track{
		Path:       path,
		Samplerate: float64(format.SampleRate),
		Channels:   format.NumChannels,
	}

	buf := &ga.IntBuffer{
		Data:   make([]int, wavReadChunk*format.NumChannels),
		Format: format,
	}

	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return nil, &DecodeError{Path: path, Kind: ErrTruncatedFile, Err: err}
		}
		if n == 0 {
			break
		}
		t.Samples = append(t.Samples, normalize(buf.Data[:n], bitDepth)...)
	}

	if len(t.Samples) == 0 {
		return nil, &DecodeError{Path: path, Kind: ErrTruncatedFile}
	}

	return t, nil
}
