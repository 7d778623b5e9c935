package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/livescribe/internal/audio"
	"github.com/foxseedlab/livescribe/internal/notifier"
	"github.com/foxseedlab/livescribe/internal/session"
	"github.com/gofiber/websocket/v2"
)

const (
	eventAudioData          = "audioData"
	eventSubscribe          = "subscribe"
	eventTranscription      = "transcription"
	eventTranscriptionError = "transcription_error"

	errorKindInvalidRequest = "invalid_request"
	errorKindInvalidAudio   = "invalid_audio"
	errorKindNotFound       = "session_not_found"
	errorKindNotActive      = "session_not_active"
	errorKindOverflow       = "buffer_overflow"

	outboundBuffer = 64
	writeTimeout   = 10 * time.Second
)

type clientFrame struct {
	Event     string `json:"event"`
	SessionID string `json:"sessionId"`
	Buffer    string `json:"buffer"`
}

type spanFrame struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type transcriptionFrame struct {
	Event          string      `json:"event"`
	SessionID      string      `json:"sessionId"`
	SequenceNumber uint64      `json:"sequenceNumber"`
	Transcript     string      `json:"transcript"`
	IsFinal        bool        `json:"isFinal"`
	Spans          []spanFrame `json:"spans"`
}

type errorFrame struct {
	Event     string `json:"event"`
	SessionID string `json:"sessionId,omitempty"`
	Error     string `json:"error"`
	Kind      string `json:"kind"`
}

// streamConn serializes every write to one WebSocket connection through a single writer goroutine.
type streamConn struct {
	conn *websocket.Conn
	hub  *notifier.Hub
	out  chan any
	done chan struct{}
	wg   sync.WaitGroup

	mu   sync.Mutex
	subs map[string]func()

	encoding string
	factory  audio.DecoderFactory
	decoders map[string]audio.Decoder
}

func newStreamConn(conn *websocket.Conn, hub *notifier.Hub, factory audio.DecoderFactory, encoding string) *streamConn {
	sc := &streamConn{
		conn:     conn,
		hub:      hub,
		out:      make(chan any, outboundBuffer),
		done:     make(chan struct{}),
		subs:     make(map[string]func()),
		encoding: encoding,
		factory:  factory,
		decoders: make(map[string]audio.Decoder),
	}
	sc.wg.Add(1)
	go sc.writeLoop()
	return sc
}

func (sc *streamConn) writeLoop() {
	defer sc.wg.Done()
	for {
		select {
		case <-sc.done:
			return
		case frame := <-sc.out:
			_ = sc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := sc.conn.WriteJSON(frame); err != nil {
				slog.Warn("failed to write websocket frame", "error", err)
				return
			}
		}
	}
}

func (sc *streamConn) send(frame any) {
	select {
	case sc.out <- frame:
	case <-sc.done:
	}
}

func (sc *streamConn) sendError(sessionID, kind string, err error) {
	sc.send(errorFrame{Event: eventTranscriptionError, SessionID: sessionID, Error: err.Error(), Kind: kind})
}

// subscribe is a no-op for a session the connection already follows.
func (sc *streamConn) subscribe(sessionID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if _, ok := sc.subs[sessionID]; ok {
		return
	}
	sub, cancel := sc.hub.Subscribe(sessionID)
	sc.subs[sessionID] = cancel
	sc.wg.Add(1)
	go sc.forward(sub)
}

func (sc *streamConn) forward(sub *notifier.Subscription) {
	defer sc.wg.Done()
	for ev := range sub.Events() {
		sc.send(eventFrame(ev))
	}
}

// decoder returns the session's own decoder, creating it on first audio.
func (sc *streamConn) decoder(sessionID string) (audio.Decoder, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if d, ok := sc.decoders[sessionID]; ok {
		return d, nil
	}
	d, err := sc.factory(sc.encoding)
	if err != nil {
		return nil, err
	}
	sc.decoders[sessionID] = d
	return d, nil
}

func (sc *streamConn) close() {
	close(sc.done)
	sc.mu.Lock()
	for _, cancel := range sc.subs {
		cancel()
	}
	for _, d := range sc.decoders {
		d.Close()
	}
	sc.mu.Unlock()
	sc.wg.Wait()
}

func eventFrame(ev notifier.Event) any {
	if ev.Failure != nil {
		return errorFrame{
			Event:     eventTranscriptionError,
			SessionID: ev.SessionID,
			Error:     ev.Failure.Message,
			Kind:      ev.Failure.Kind,
		}
	}
	spans := make([]spanFrame, 0, len(ev.Result.Spans))
	for _, sp := range ev.Result.Spans {
		spans = append(spans, spanFrame{Start: sp.Start.Seconds(), End: sp.End.Seconds(), Text: sp.Text})
	}
	return transcriptionFrame{
		Event:          eventTranscription,
		SessionID:      ev.SessionID,
		SequenceNumber: ev.Result.SequenceNumber,
		Transcript:     ev.Result.Text(),
		IsFinal:        ev.Result.IsFinal,
		Spans:          spans,
	}
}

func (s *Server) handleStream(conn *websocket.Conn) {
	bound := conn.Query("sessionId")
	remote := conn.RemoteAddr().String()
	slog.Info("stream client connected", "remote_addr", remote, "session_id", bound)
	defer slog.Info("stream client disconnected", "remote_addr", remote)

	encoding, err := audio.NormalizeEncoding(conn.Query("encoding"))
	sc := newStreamConn(conn, s.hub, s.decoders, encoding)
	defer sc.close()
	if err == nil {
		err = s.checkEncoding(sc, bound)
	}
	if err != nil {
		slog.Warn("rejected stream encoding", "error", err, "remote_addr", remote)
		sc.sendError(bound, errorKindInvalidRequest, err)
		return
	}

	if bound != "" {
		sc.subscribe(bound)
	}

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("websocket read error", "error", err, "remote_addr", remote)
			}
			return
		}
		switch mt {
		case websocket.BinaryMessage:
			if bound == "" {
				sc.sendError("", errorKindInvalidRequest, errors.New("binary audio requires a sessionId query parameter"))
				continue
			}
			s.submit(sc, bound, msg)
		case websocket.TextMessage:
			s.handleTextFrame(sc, msg)
		}
	}
}

// checkEncoding fails the connection early when this build cannot decode its encoding.
func (s *Server) checkEncoding(sc *streamConn, bound string) error {
	if bound != "" {
		_, err := sc.decoder(bound)
		return err
	}
	d, err := s.decoders(sc.encoding)
	if err != nil {
		return err
	}
	d.Close()
	return nil
}

func (s *Server) handleTextFrame(sc *streamConn, msg []byte) {
	var frame clientFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		sc.sendError("", errorKindInvalidRequest, fmt.Errorf("invalid frame: %w", err))
		return
	}
	if frame.SessionID == "" {
		sc.sendError("", errorKindInvalidRequest, errors.New("sessionId is required"))
		return
	}
	switch frame.Event {
	case eventSubscribe:
		if _, err := s.registry.Session(frame.SessionID); err != nil {
			sc.sendError(frame.SessionID, submitErrorKind(err), err)
			return
		}
		sc.subscribe(frame.SessionID)
	case eventAudioData:
		fragment, err := base64.StdEncoding.DecodeString(frame.Buffer)
		if err != nil {
			sc.sendError(frame.SessionID, errorKindInvalidAudio, fmt.Errorf("buffer is not valid base64: %w", err))
			return
		}
		s.submit(sc, frame.SessionID, fragment)
	default:
		sc.sendError(frame.SessionID, errorKindInvalidRequest, fmt.Errorf("unknown event %q", frame.Event))
	}
}

// submit subscribes the connection before the fragment can trigger a flush.
func (s *Server) submit(sc *streamConn, sessionID string, fragment []byte) {
	if _, err := s.registry.Session(sessionID); err != nil {
		sc.sendError(sessionID, submitErrorKind(err), err)
		return
	}
	decoder, err := sc.decoder(sessionID)
	if err != nil {
		sc.sendError(sessionID, errorKindInvalidRequest, err)
		return
	}
	pcm, err := decoder.Decode(fragment)
	if err != nil {
		sc.sendError(sessionID, errorKindInvalidAudio, err)
		return
	}
	sc.subscribe(sessionID)
	if err := s.registry.SubmitAudio(sessionID, pcm); err != nil {
		sc.sendError(sessionID, submitErrorKind(err), err)
	}
}

func submitErrorKind(err error) string {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return errorKindNotFound
	case errors.Is(err, session.ErrSessionNotActive):
		return errorKindNotActive
	case errors.Is(err, audio.ErrBufferOverflow):
		return errorKindOverflow
	default:
		return errorKindInvalidRequest
	}
}
