package auth

import (
	"context"
	"errors"
)

// ErrNoCredential is returned when an authenticated call is attempted
// without any token configured. This is a client-side precondition
// failure, not a network error.
var ErrNoCredential = errors.New("no bearer credential configured")

// TokenSource supplies the bearer credential attached to outgoing
// requests. Implementations must be safe for concurrent use; the
// pipeline treats the credential as read-only for one run.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type StaticTokenSource struct {
	token string
}

func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

func (s *StaticTokenSource) Token(ctx context.Context) (string, error) {
	if s.token == "" {
		return "", ErrNoCredential
	}
	return s.token, nil
}
