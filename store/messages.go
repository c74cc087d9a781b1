package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kindredapp/kindred/model"
)

// ListMessages returns a conversation's messages in ascending createdAt
// order with content decrypted for display. Results are served from a
// short-TTL cache unless forceRefresh is set. Read failures degrade to an
// empty slice so the view stays renderable.
func (g *Gateway) ListMessages(ctx context.Context, matchID string, forceRefresh bool) ([]model.Message, error) {
	if !forceRefresh {
		if cached, ok := g.messages.get(matchID); ok {
			return cached, nil
		}
	}

	m, err := g.match(ctx, matchID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "ListMessages",
			"match_id": matchID,
			"error":    err.Error(),
		}).Error("Failed to resolve match, returning empty list")
		return []model.Message{}, nil
	}

	rows, err := g.rows.ListMessagesAsc(ctx, matchID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "ListMessages",
			"match_id": matchID,
			"error":    err.Error(),
		}).Error("Message list read failed, returning empty list")
		return []model.Message{}, nil
	}

	out := make([]model.Message, 0, len(rows))
	for _, msg := range rows {
		out = append(out, g.decryptForDisplay(msg, m))
	}

	g.messages.put(matchID, out)
	return out, nil
}

// SendMessage encrypts plaintext for the match's participant pair, inserts
// the row, invalidates the conversation cache, announces the row on the
// realtime channel and fires a best-effort push to the other participant.
// The returned message carries plaintext for immediate display. Notify and
// push failures never fail the send.
func (g *Gateway) SendMessage(ctx context.Context, matchID, senderID, plaintext string) (*model.Message, error) {
	m, err := g.match(ctx, matchID)
	if err != nil {
		return nil, err
	}

	ciphertext, err := g.codec.Encrypt(plaintext, m.User1ID, m.User2ID)
	if err != nil {
		return nil, fmt.Errorf("encrypt message: %w", err)
	}

	msg := model.Message{
		ID:        newMessageID(),
		MatchID:   matchID,
		SenderID:  senderID,
		Content:   ciphertext,
		IsRead:    false,
		CreatedAt: time.Now().UTC(),
	}
	if err := g.rows.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: insert message: %v", ErrStorage, err)
	}
	g.messages.invalidate(matchID)

	logrus.WithFields(logrus.Fields{
		"function":   "SendMessage",
		"match_id":   matchID,
		"message_id": msg.ID,
	}).Info("Message stored")

	if g.notifier != nil {
		if err := g.notifier.PublishMessage(ctx, msg); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "SendMessage",
				"message_id": msg.ID,
				"error":      err.Error(),
			}).Warn("Realtime notify failed")
		}
	}
	if g.pusher != nil {
		recipient := m.Other(senderID)
		if err := g.pusher.Send(ctx, recipient, "New message", "You have a new message", map[string]string{
			"matchId": matchID,
		}); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "SendMessage",
				"message_id": msg.ID,
				"error":      err.Error(),
			}).Warn("Push dispatch failed")
		}
	}

	display := msg
	display.Content = plaintext
	return &display, nil
}

// MarkRead flips isRead on every message in the match not sent by readerID.
// Idempotent; repeated calls are harmless.
func (g *Gateway) MarkRead(ctx context.Context, matchID, readerID string) error {
	if err := g.rows.MarkMessagesRead(ctx, matchID, readerID); err != nil {
		return fmt.Errorf("%w: mark read: %v", ErrStorage, err)
	}
	g.messages.invalidate(matchID)
	return nil
}

// UnreadCount reports how many messages in the match are unread by userID.
func (g *Gateway) UnreadCount(ctx context.Context, matchID, userID string) (int, error) {
	n, err := g.rows.CountUnread(ctx, matchID, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: count unread: %v", ErrStorage, err)
	}
	return n, nil
}
