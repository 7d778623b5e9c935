package transcriber

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"time"

	"github.com/foxseedlab/livescribe/internal/transcriber"
)

const deterministicCharDuration = 100 * time.Millisecond

var deterministicPhrases = []string{
	"Welcome everyone, let's get started.",
	"This transcript is generated without a speech model.",
	"Install a whisper model to get real transcription.",
	"Audio is being received and processed in real time.",
	"The same audio always produces the same sentence.",
	"Recording, buffering and delivery all work as usual.",
	"Let's review the action items from last week.",
	"Stop the session to receive the final transcript.",
	"Thanks for joining, see you at the next meeting.",
	"Let's move on to the next topic on the agenda.",
}

// Deterministic derives a phrase and synthetic timestamps from the payload bytes.
// Identical payloads always yield identical spans.
type Deterministic struct {
	latency time.Duration
}

func NewDeterministic(latency time.Duration) *Deterministic {
	return &Deterministic{latency: latency}
}

func (d *Deterministic) Transcribe(ctx context.Context, payload []byte) ([]transcriber.Span, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	if d.latency > 0 {
		timer := time.NewTimer(d.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	text := deterministicPhrases[phraseIndex(payload)]
	return []transcriber.Span{{
		Start: 0,
		End:   time.Duration(len(text)) * deterministicCharDuration,
		Text:  text,
	}}, nil
}

func phraseIndex(payload []byte) int {
	sum := md5.Sum(payload)
	digest := hex.EncodeToString(sum[:])
	total := 0
	for _, c := range digest {
		total += int(c)
	}
	return total % len(deterministicPhrases)
}
