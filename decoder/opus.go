package decoder

import (
	"bytes"
	"io"
	"os"

	opus "gopkg.in/hraban/opus.v2"
)

// opus in an ogg container always decodes at 48kHz
const opusSamplerate = 48000

// opusHeadChannels extracts the channel count from the OpusHead packet
// at the start of the Ogg stream. The stream decoder fills its output
// buffer at the stream's channel count but does not expose it, so it
// has to be known before decoding starts.
func opusHeadChannels(header []byte) (int, error) {
	idx := bytes.Index(header, []byte("OpusHead"))
	if idx < 0 || idx+10 > len(header) {
		return 0, ErrCorruptFile
	}
	// OpusHead layout: 8 byte magic, 1 byte version, 1 byte channel count
	chs := int(header[idx+9])
	if chs < 1 {
		return 0, ErrCorruptFile
	}
	if chs > 2 {
		// multichannel mapping families are not supported by the engine
		return 0, ErrUnsupportedFormat
	}
	return chs, nil
}

func openOpus(path string) (*Track, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Kind: err}
	}
	defer f.Close()

	header := make([]byte, 512)
	hn, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, &DecodeError{Path: path, Kind: ErrCorruptFile, Err: err}
	}
	chs, err := opusHeadChannels(header[:hn])
	if err != nil {
		return nil, &DecodeError{Path: path, Kind: err}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, &DecodeError{Path: path, Kind: err}
	}

	stream, err := opus.NewStream(f)
	if err != nil {
		return nil, &DecodeError{Path: path, Kind: ErrCorruptFile, Err: err}
	}
	defer stream.Close()

	t := &Track{
		Path:       path,
		Samplerate: opusSamplerate,
		Channels:   chs,
	}

	pcm := make([]float32, 16384)
	for {
		// n counts samples per channel
		n, err := stream.ReadFloat32(pcm)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &DecodeError{Path: path, Kind: ErrTruncatedFile, Err: err}
		}
		if n == 0 {
			break
		}
		t.Samples = append(t.Samples, pcm[:n*chs]...)
	}

	if len(t.Samples) == 0 {
		return nil, &DecodeError{Path: path, Kind: ErrTruncatedFile}
	}

	return t, nil
}
