package server

import (
	"errors"
	"log/slog"
	"time"

	"github.com/foxseedlab/livescribe/internal/session"
	"github.com/gofiber/fiber/v2"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type startResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type stopResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Warning string `json:"warning,omitempty"`
}

type sessionView struct {
	SessionID          string     `json:"sessionId"`
	Status             string     `json:"status"`
	StartedAt          time.Time  `json:"startedAt"`
	EndedAt            *time.Time `json:"endedAt,omitempty"`
	LastActivityAt     time.Time  `json:"lastActivityAt"`
	PendingFragments   int        `json:"pendingFragments"`
	NextSequenceNumber uint64     `json:"nextSequenceNumber"`
	TranscriptChars    int        `json:"transcriptChars"`
}

type sessionResponse struct {
	Success bool        `json:"success"`
	Session sessionView `json:"session"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.SendString("ok")
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	info, err := s.registry.Start(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(startResponse{
		Success:   true,
		SessionID: info.ID,
		Message:   "Transcription session started. Send audio data over WebSocket.",
	})
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	id := c.Params("sessionId")
	res, err := s.registry.Stop(c.UserContext(), id)
	if err != nil {
		return sessionError(err)
	}
	if res.Warning != "" {
		slog.Warn("session stopped with warning", "session_id", id, "warning", res.Warning)
	}
	return c.JSON(stopResponse{
		Success: true,
		Message: "Transcription session stopped",
		Warning: res.Warning,
	})
}

func (s *Server) handleSession(c *fiber.Ctx) error {
	info, err := s.registry.Session(c.Params("sessionId"))
	if err != nil {
		return sessionError(err)
	}
	return c.JSON(sessionResponse{Success: true, Session: newSessionView(info)})
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return fiber.NewError(fiber.StatusNotFound, "Transcription session not found")
	case errors.Is(err, session.ErrSessionNotActive):
		return fiber.NewError(fiber.StatusConflict, "Transcription session is not active")
	default:
		return err
	}
}

func newSessionView(info session.Info) sessionView {
	v := sessionView{
		SessionID:          info.ID,
		Status:             string(info.Status),
		StartedAt:          info.StartedAt,
		LastActivityAt:     info.LastActivity,
		PendingFragments:   info.PendingFragments,
		NextSequenceNumber: info.NextSequence,
		TranscriptChars:    info.TranscriptChars,
	}
	if !info.EndedAt.IsZero() {
		endedAt := info.EndedAt
		v.EndedAt = &endedAt
	}
	return v
}
