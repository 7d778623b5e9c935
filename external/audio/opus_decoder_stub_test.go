//go:build !opus

package audio

import (
	"errors"
	"testing"

	"github.com/foxseedlab/livescribe/internal/audio"
)

func TestNewDecoder_OpusUnavailableWithoutBuildTag(t *testing.T) {
	if _, err := NewDecoder("opus"); !errors.Is(err, audio.ErrUnsupportedEncoding) {
		t.Fatalf("expected ErrUnsupportedEncoding, got %v", err)
	}
}
