package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kindredapp/kindred/model"
)

// SubscribeTyping opens the lightweight broadcast-only typing channel for a
// match. There is no reconnect loop here; if the channel dies, onErr is
// notified once and the subscriber decides what to do.
func (m *Manager) SubscribeTyping(matchID string, onTyping TypingHandler, onErr ErrorHandler) error {
	c := m.registry.obtain(matchID)

	c.mu.Lock()
	if c.typingSub != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: typing channel for match %s", ErrAlreadySubscribed, matchID)
	}
	c.mu.Unlock()

	sub, err := m.transport.Subscribe(c.ctx, typingChannel(matchID))
	if err != nil {
		return fmt.Errorf("subscribe typing: %w", err)
	}

	c.mu.Lock()
	c.typingSub = sub
	c.mu.Unlock()

	go func() {
		for raw := range sub.Messages() {
			var status model.TypingStatus
			if err := json.Unmarshal(raw, &status); err != nil {
				continue
			}
			onTyping(status)
		}
		if c.ctx.Err() == nil && onErr != nil {
			onErr(fmt.Errorf("%w: typing channel closed", ErrChannelFailed))
		}
	}()
	return nil
}

// BroadcastTyping publishes the caller's typing state, debounced. The first
// true call publishes "typing" immediately and arms the stop timer; later
// true calls within the window only reset the timer. The "stopped typing"
// broadcast goes out when the timer fires, or immediately on isTyping
// false. One timer per conversation.
func (m *Manager) BroadcastTyping(ctx context.Context, matchID, userID string, isTyping bool) {
	c := m.registry.obtain(matchID)

	c.mu.Lock()
	if !isTyping {
		if c.typingTimer != nil {
			c.typingTimer.Stop()
			c.typingTimer = nil
		}
		active := c.typingActive
		c.typingActive = false
		c.mu.Unlock()
		if active {
			m.publishTyping(ctx, matchID, userID, false)
		}
		return
	}

	if c.typingTimer != nil {
		// Still inside the window: just push the stop broadcast out.
		c.typingTimer.Reset(m.typingDebounce)
		c.mu.Unlock()
		return
	}

	c.typingActive = true
	c.typingTimer = time.AfterFunc(m.typingDebounce, func() {
		c.mu.Lock()
		c.typingTimer = nil
		c.typingActive = false
		c.mu.Unlock()
		m.publishTyping(context.Background(), matchID, userID, false)
	})
	c.mu.Unlock()

	m.publishTyping(ctx, matchID, userID, true)
}

// publishTyping is best effort; a lost typing update is harmless.
func (m *Manager) publishTyping(ctx context.Context, matchID, userID string, isTyping bool) {
	payload, err := json.Marshal(model.TypingStatus{
		MatchID:   matchID,
		UserID:    userID,
		IsTyping:  isTyping,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return
	}
	if err := m.transport.Publish(ctx, typingChannel(matchID), payload); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "publishTyping",
			"match_id":  matchID,
			"is_typing": isTyping,
			"error":     err.Error(),
		}).Debug("Typing broadcast failed")
	}
}
