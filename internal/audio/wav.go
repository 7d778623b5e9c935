package audio

import (
	"bytes"
	"encoding/binary"
)

// Raw fragments decoded on the server are interleaved 16-bit little-endian PCM in this format.
const (
	PCMSampleRate    = 48000
	PCMChannels      = 2
	pcmBitsPerSample = 16
)

var containerMagics = [][]byte{
	[]byte("RIFF"),
	[]byte("OggS"),
	[]byte("fLaC"),
	[]byte("ID3"),
	{0x1A, 0x45, 0xDF, 0xA3}, // EBML (webm, mkv)
}

// IsContainer reports whether payload starts with a known media container header.
// Anything else is treated as raw PCM.
func IsContainer(payload []byte) bool {
	for _, magic := range containerMagics {
		if bytes.HasPrefix(payload, magic) {
			return true
		}
	}
	return false
}

// WrapPCM prepends a canonical 44-byte WAV header to raw PCM samples.
func WrapPCM(pcm []byte, sampleRate, channels int) []byte {
	blockAlign := channels * pcmBitsPerSample / 8
	out := make([]byte, 44, 44+len(pcm))
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+len(pcm)))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], pcmBitsPerSample)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(len(pcm)))
	return append(out, pcm...)
}

// AsContainer returns payload unchanged when it already carries a container header and wraps it
// as WAV otherwise.
func AsContainer(payload []byte) []byte {
	if IsContainer(payload) {
		return payload
	}
	return WrapPCM(payload, PCMSampleRate, PCMChannels)
}

// FileName picks a file name whose extension matches the payload's container.
func FileName(payload []byte) string {
	switch {
	case bytes.HasPrefix(payload, []byte("OggS")):
		return "segment.ogg"
	case bytes.HasPrefix(payload, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return "segment.webm"
	case bytes.HasPrefix(payload, []byte("fLaC")):
		return "segment.flac"
	case bytes.HasPrefix(payload, []byte("ID3")):
		return "segment.mp3"
	default:
		return "segment.wav"
	}
}
