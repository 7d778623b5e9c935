package audio

import "github.com/foxseedlab/livescribe/internal/audio"

func NewDecoder(encoding string) (audio.Decoder, error) {
	enc, err := audio.NormalizeEncoding(encoding)
	if err != nil {
		return nil, err
	}
	if enc == audio.EncodingOpus {
		return newOpusDecoder()
	}
	return audio.PassthroughDecoder(), nil
}
