package repository

import (
	"context"
	"time"
)

type CreateSessionInput struct {
	ID         string
	RemoteAddr string
	AckMode    bool
	StartedAt  time.Time
}

type CompleteSessionInput struct {
	SessionID      string
	EndedAt        time.Time
	BlocksReceived int64
	RepliesSent    int64
	EmptyResults   int64
	DecodeErrors   int64
	CloseCode      int
	CloseReason    string
}

type Repository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error)
	CompleteSession(ctx context.Context, input CompleteSessionInput) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListRecentSessions(ctx context.Context, limit int) ([]Session, error)
}
