package store

import (
	"context"
	"errors"

	"github.com/kindredapp/kindred/model"
)

// ErrStorage wraps every backend row-storage failure.
var ErrStorage = errors.New("storage error")

// ErrMatchNotFound indicates the referenced match row does not exist.
var ErrMatchNotFound = errors.New("match not found")

// RowStore is the row-storage surface of the hosted backend, scoped to the
// tables the messaging pipeline touches.
type RowStore interface {
	GetMatch(ctx context.Context, matchID string) (model.Match, error)
	ListMatches(ctx context.Context, userID string) ([]model.Match, error)

	ListMessagesAsc(ctx context.Context, matchID string) ([]model.Message, error)
	LatestMessage(ctx context.Context, matchID string) (*model.Message, error)
	InsertMessage(ctx context.Context, msg model.Message) error
	MarkMessagesRead(ctx context.Context, matchID, exceptSenderID string) error
	CountUnread(ctx context.Context, matchID, userID string) (int, error)

	GetProfile(ctx context.Context, userID string) (model.Profile, error)
}

// Notifier announces newly stored messages on the realtime channel.
type Notifier interface {
	PublishMessage(ctx context.Context, msg model.Message) error
}

// Pusher dispatches a fire-and-forget push notification.
type Pusher interface {
	Send(ctx context.Context, userID, title, body string, data map[string]string) error
}

// PhotoResolver turns an object-storage path into a short-lived signed URL.
type PhotoResolver interface {
	SignedURL(ctx context.Context, path string) (string, error)
}
