//go:build !opus

package audio

import (
	"fmt"

	"github.com/foxseedlab/livescribe/internal/audio"
)

func newOpusDecoder() (audio.Decoder, error) {
	return nil, fmt.Errorf("%w: binary built without the opus tag", audio.ErrUnsupportedEncoding)
}
