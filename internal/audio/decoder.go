package audio

import (
	"errors"
	"fmt"
	"strings"
)

const (
	EncodingPCM  = "pcm"
	EncodingOpus = "opus"
)

var ErrUnsupportedEncoding = errors.New("unsupported audio encoding")

// Decoder converts one client fragment into the bytes handed to the buffer.
// A decoder keeps codec state between fragments, so each session stream needs its own.
type Decoder interface {
	Decode(fragment []byte) ([]byte, error)
	Close()
}

type DecoderFactory func(encoding string) (Decoder, error)

type passthroughDecoder struct{}

func (passthroughDecoder) Decode(fragment []byte) ([]byte, error) { return fragment, nil }
func (passthroughDecoder) Close()                                 {}

func PassthroughDecoder() Decoder {
	return passthroughDecoder{}
}

// NormalizeEncoding maps an empty or mixed-case encoding name to its canonical form.
func NormalizeEncoding(encoding string) (string, error) {
	switch e := strings.ToLower(strings.TrimSpace(encoding)); e {
	case "", EncodingPCM, "raw", "webm", "wav":
		return EncodingPCM, nil
	case EncodingOpus:
		return EncodingOpus, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedEncoding, encoding)
	}
}
