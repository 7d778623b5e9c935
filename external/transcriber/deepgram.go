package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/foxseedlab/livescribe/internal/audio"
	"github.com/foxseedlab/livescribe/internal/transcriber"
	"github.com/gorilla/websocket"
)

const (
	defaultDeepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	deepgramChunkSize       = 32 * 1024
)

type DeepgramConfig struct {
	APIKey   string
	Endpoint string
	Model    string
	Language string
}

// DeepgramTranscriber streams one payload over a live-listen connection and collects the final
// results until the server closes the stream.
type DeepgramTranscriber struct {
	apiKey   string
	endpoint string
	model    string
	language string
	dialer   *websocket.Dialer
}

type deepgramMessage struct {
	Type     string  `json:"type"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	IsFinal  bool    `json:"is_final"`
	Channel  struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func NewDeepgramTranscriber(cfg DeepgramConfig) *DeepgramTranscriber {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultDeepgramEndpoint
	}
	return &DeepgramTranscriber{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		endpoint: endpoint,
		model:    strings.TrimSpace(cfg.Model),
		language: strings.TrimSpace(cfg.Language),
		dialer:   websocket.DefaultDialer,
	}
}

func (d *DeepgramTranscriber) listenURL(payload []byte) (string, error) {
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse deepgram endpoint: %w", err)
	}
	q := u.Query()
	q.Set("punctuate", "true")
	if d.model != "" {
		q.Set("model", d.model)
	}
	if d.language != "" {
		q.Set("language", d.language)
	}
	if !audio.IsContainer(payload) {
		q.Set("encoding", "linear16")
		q.Set("sample_rate", fmt.Sprint(audio.PCMSampleRate))
		q.Set("channels", fmt.Sprint(audio.PCMChannels))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (d *DeepgramTranscriber) Transcribe(ctx context.Context, payload []byte) ([]transcriber.Span, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	if d.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key is empty: %w", transcriber.ErrEngineUnavailable)
	}
	target, err := d.listenURL(payload)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+d.apiKey)
	conn, resp, err := d.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("deepgram rejected api key: status %d: %w", resp.StatusCode, transcriber.ErrEngineUnavailable)
		}
		return nil, fmt.Errorf("dial deepgram: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
		_ = conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	for off := 0; off < len(payload); off += deepgramChunkSize {
		end := min(off+deepgramChunkSize, len(payload))
		if err := conn.WriteMessage(websocket.BinaryMessage, payload[off:end]); err != nil {
			return nil, d.wrapConnErr(ctx, "send audio", err)
		}
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		return nil, d.wrapConnErr(ctx, "close stream", err)
	}

	var spans []transcriber.Span
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			return nil, d.wrapConnErr(ctx, "read results", err)
		}
		var msg deepgramMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("failed to decode deepgram message", "error", err)
			continue
		}
		if msg.Type == "Metadata" {
			break
		}
		if msg.Type != "Results" || !msg.IsFinal || len(msg.Channel.Alternatives) == 0 {
			continue
		}
		spans = append(spans, transcriber.Span{
			Start: secondsToDuration(msg.Start),
			End:   secondsToDuration(msg.Start + msg.Duration),
			Text:  msg.Channel.Alternatives[0].Transcript,
		})
	}
	return transcriber.Normalize(spans), nil
}

func (d *DeepgramTranscriber) wrapConnErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("deepgram %s: connection closed", op)
	}
	return fmt.Errorf("deepgram %s: %w", op, err)
}
