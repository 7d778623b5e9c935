package session

import "errors"

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionNotActive     = errors.New("session is not active")
	ErrIdentifierGeneration = errors.New("failed to generate session id")
)
