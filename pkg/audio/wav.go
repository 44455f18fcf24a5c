package audio

import (
	"encoding/binary"
	"fmt"
	"time"
)

// wavHeaderSize is the size of a canonical PCM WAV header: RIFF descriptor,
// fmt sub-chunk, and data sub-chunk header.
const wavHeaderSize = 44

// Header describes the format fields of a PCM WAV file.
type Header struct {
	Channels      int
	SampleRate    int
	BitsPerSample int
	DataSize      int
}

// Duration returns the play time of the audio described by the header.
func (h Header) Duration() time.Duration {
	bytesPerSec := h.SampleRate * h.Channels * h.BitsPerSample / 8
	if bytesPerSec <= 0 {
		return 0
	}
	return time.Duration(h.DataSize) * time.Second / time.Duration(bytesPerSec)
}

// EncodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container with the given sample rate and channel count.
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("audio: invalid channel count %d", channels)
	}

	const bps = 16
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, wavHeaderSize+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size - 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))        // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf, nil
}

// DecodeWAV parses a canonical PCM WAV file and returns its header fields
// and the raw PCM payload. Only uncompressed PCM with a 44-byte header is
// accepted; anything else is an error.
func DecodeWAV(data []byte) (*Header, []byte, error) {
	if len(data) < wavHeaderSize {
		return nil, nil, fmt.Errorf("audio: wav too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, nil, fmt.Errorf("audio: not a RIFF/WAVE file")
	}
	if string(data[12:16]) != "fmt " {
		return nil, nil, fmt.Errorf("audio: missing fmt sub-chunk")
	}
	if format := binary.LittleEndian.Uint16(data[20:22]); format != 1 {
		return nil, nil, fmt.Errorf("audio: unsupported wav format %d (want PCM)", format)
	}
	if string(data[36:40]) != "data" {
		return nil, nil, fmt.Errorf("audio: missing data sub-chunk")
	}

	h := &Header{
		Channels:      int(binary.LittleEndian.Uint16(data[22:24])),
		SampleRate:    int(binary.LittleEndian.Uint32(data[24:28])),
		BitsPerSample: int(binary.LittleEndian.Uint16(data[34:36])),
		DataSize:      int(binary.LittleEndian.Uint32(data[40:44])),
	}
	if h.Channels <= 0 || h.SampleRate <= 0 {
		return nil, nil, fmt.Errorf("audio: invalid wav header (channels=%d rate=%d)", h.Channels, h.SampleRate)
	}

	pcm := data[wavHeaderSize:]
	if h.DataSize < len(pcm) {
		pcm = pcm[:h.DataSize]
	}
	return h, pcm, nil
}
