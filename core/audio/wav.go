package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrInvalidWAV       = errors.New("invalid wav payload")
	ErrUnsupportedAudio = errors.New("unsupported audio format")
)

// DecodePCM turns a resource into little-endian linear16 PCM suitable for an
// output device, together with the encoding of the returned samples.
func DecodePCM(resource *Resource) ([]byte, EncodingInfo, error) {
	data := resource.Data()
	if len(data) == 0 {
		return nil, EncodingInfo{}, fmt.Errorf("decode %s: no audio data", resource.ID)
	}

	switch resource.MimeType {
	case MimeTypeWAV:
		return decodeWAV(data)
	case MimeTypePCM, "":
		encoding := resource.Encoding
		if encoding.IsZero() {
			encoding = GetDefaultEncodingInfo()
		}
		if encoding.Format != EncodingLinear16 {
			return nil, EncodingInfo{}, fmt.Errorf("%w: %s pcm", ErrUnsupportedAudio, encoding.Format.Name())
		}
		return data, encoding, nil
	default:
		return nil, EncodingInfo{}, fmt.Errorf("%w: %s", ErrUnsupportedAudio, resource.MimeType)
	}
}

func decodeWAV(data []byte) ([]byte, EncodingInfo, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, EncodingInfo{}, ErrInvalidWAV
	}

	buffer, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, EncodingInfo{}, fmt.Errorf("read wav samples: %w", err)
	}

	encoding := EncodingInfo{
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		Format:     EncodingLinear16,
	}
	return intBufferToLinear16(buffer, int(decoder.BitDepth)), encoding, nil
}

func intBufferToLinear16(buffer *goaudio.IntBuffer, bitDepth int) []byte {
	pcm := make([]byte, len(buffer.Data)*2)
	for i, sample := range buffer.Data {
		switch bitDepth {
		case 8:
			sample = (sample - 128) << 8
		case 24:
			sample >>= 8
		case 32:
			sample >>= 16
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(sample)))
	}
	return pcm
}
