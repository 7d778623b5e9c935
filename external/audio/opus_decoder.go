//go:build opus

package audio

import (
	"encoding/binary"
	"fmt"

	"github.com/foxseedlab/livescribe/internal/audio"
	"github.com/hraban/opus"
)

const (
	sampleRate      = audio.PCMSampleRate
	channels        = audio.PCMChannels
	maxFrameSizeMs  = 120
	samplesPerFrame = sampleRate * maxFrameSizeMs * channels / 1000
)

type opusDecoder struct {
	dec *opus.Decoder
	pcm []int16
}

func newOpusDecoder() (audio.Decoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}
	return &opusDecoder{dec: dec, pcm: make([]int16, samplesPerFrame)}, nil
}

// Decode turns one Opus packet into interleaved 16-bit little-endian PCM.
func (d *opusDecoder) Decode(packet []byte) ([]byte, error) {
	if len(packet) == 0 {
		return nil, nil
	}
	n, err := d.dec.Decode(packet, d.pcm)
	if err != nil {
		return nil, fmt.Errorf("decode opus packet: %w", err)
	}
	total := n * channels
	if total > len(d.pcm) {
		total = len(d.pcm)
	}
	return writePCM(d.pcm[:total]), nil
}

func (d *opusDecoder) Close() {
	d.dec = nil
	d.pcm = nil
}

func writePCM(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
