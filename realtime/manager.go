package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kindredapp/kindred/crypto"
	"github.com/kindredapp/kindred/model"
)

var (
	// ErrChannelFailed is the terminal error delivered after the reconnect
	// budget is exhausted.
	ErrChannelFailed = errors.New("realtime channel failed")
	// ErrAlreadySubscribed indicates a second message subscription was
	// requested for a match that already has one.
	ErrAlreadySubscribed = errors.New("already subscribed")
)

// Event types carried on the message channel.
const (
	eventMessage   = "message"
	eventHeartbeat = "heartbeat"
)

// event is the wire format on a match's message channel. Heartbeats carry
// no body.
type event struct {
	Type    string         `json:"type"`
	Message *model.Message `json:"message,omitempty"`
}

// MessageHandler receives inbound messages with Content already decrypted
// for display.
type MessageHandler func(model.Message)

// TypingHandler receives typing status updates.
type TypingHandler func(model.TypingStatus)

// ErrorHandler receives the terminal channel error.
type ErrorHandler func(error)

// SubscribeConfig tunes one message subscription.
type SubscribeConfig struct {
	ReconnectAfter       time.Duration
	MaxReconnectAttempts int
	HeartbeatInterval    time.Duration
	// OnStatus, when set, observes every status transition.
	OnStatus func(Status)
}

func (c SubscribeConfig) withDefaults() SubscribeConfig {
	if c.ReconnectAfter <= 0 {
		c.ReconnectAfter = 2 * time.Second
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	return c
}

// Manager owns the realtime side of every open conversation: message
// subscriptions with reconnect and heartbeat, typing subscriptions, and
// debounced typing broadcasts.
type Manager struct {
	transport      Transport
	codec          *crypto.Codec
	registry       *ConnectionRegistry
	typingDebounce time.Duration
}

// NewManager creates a manager. typingDebounce <= 0 selects 2s.
func NewManager(transport Transport, codec *crypto.Codec, typingDebounce time.Duration) *Manager {
	if typingDebounce <= 0 {
		typingDebounce = 2 * time.Second
	}
	return &Manager{
		transport:      transport,
		codec:          codec,
		registry:       NewConnectionRegistry(),
		typingDebounce: typingDebounce,
	}
}

// SubscribeMessages opens the message channel for a match. idA and idB are
// the conversation participants; inbound bodies are decrypted through the
// codec's fallback chain before delivery. Messages are delivered to
// onMessage in transport order. After MaxReconnectAttempts consecutive
// failures onErr is called exactly once with ErrChannelFailed and the loop
// stops.
func (m *Manager) SubscribeMessages(matchID, idA, idB string, onMessage MessageHandler, onErr ErrorHandler, cfg SubscribeConfig) error {
	cfg = cfg.withDefaults()
	c := m.registry.obtain(matchID)

	c.mu.Lock()
	if c.messageLoop {
		c.mu.Unlock()
		return fmt.Errorf("%w: match %s", ErrAlreadySubscribed, matchID)
	}
	c.messageLoop = true
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "SubscribeMessages",
		"match_id": matchID,
	}).Info("Opening message subscription")

	go m.runMessageLoop(c, matchID, idA, idB, onMessage, onErr, cfg)
	return nil
}

func (m *Manager) runMessageLoop(c *connection, matchID, idA, idB string, onMessage MessageHandler, onErr ErrorHandler, cfg SubscribeConfig) {
	attempts := 0
	c.setStatus(StatusConnecting, cfg.OnStatus)

	for {
		if c.ctx.Err() != nil {
			return
		}

		sub, err := m.transport.Subscribe(c.ctx, messageChannel(matchID))
		if err != nil {
			attempts++
			if m.budgetExhausted(c, matchID, attempts, cfg, onErr, err) {
				return
			}
			if !m.waitReconnect(c, cfg) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.messageSub = sub
		c.mu.Unlock()

		attempts = 0
		c.setStatus(StatusSubscribed, cfg.OnStatus)
		logrus.WithFields(logrus.Fields{
			"function": "runMessageLoop",
			"match_id": matchID,
		}).Info("Message channel subscribed")

		stopHeartbeat := m.startHeartbeat(c.ctx, matchID, cfg.HeartbeatInterval)
		m.receiveMessages(sub, idA, idB, onMessage)
		stopHeartbeat()

		c.mu.Lock()
		c.messageSub = nil
		c.mu.Unlock()

		if c.ctx.Err() != nil {
			return
		}

		// The receive channel closed without an unsubscribe: channel death.
		attempts++
		if m.budgetExhausted(c, matchID, attempts, cfg, onErr, errors.New("message channel closed")) {
			return
		}
		if !m.waitReconnect(c, cfg) {
			return
		}
	}
}

// budgetExhausted handles one failed attempt. It reports true, after firing
// the single terminal error, once the attempt count reaches the budget.
func (m *Manager) budgetExhausted(c *connection, matchID string, attempts int, cfg SubscribeConfig, onErr ErrorHandler, cause error) bool {
	logrus.WithFields(logrus.Fields{
		"function":     "runMessageLoop",
		"match_id":     matchID,
		"attempt":      attempts,
		"max_attempts": cfg.MaxReconnectAttempts,
		"error":        cause.Error(),
	}).Warn("Message channel failure")

	if attempts < cfg.MaxReconnectAttempts {
		return false
	}

	c.setStatus(StatusDisconnected, cfg.OnStatus)
	logrus.WithFields(logrus.Fields{
		"function": "runMessageLoop",
		"match_id": matchID,
	}).Error("Reconnect budget exhausted, giving up")
	if onErr != nil {
		onErr(fmt.Errorf("%w: %v", ErrChannelFailed, cause))
	}
	return true
}

func (m *Manager) waitReconnect(c *connection, cfg SubscribeConfig) bool {
	c.setStatus(StatusReconnecting, cfg.OnStatus)
	select {
	case <-c.ctx.Done():
		return false
	case <-time.After(cfg.ReconnectAfter):
		return true
	}
}

// receiveMessages delivers inbound events until the subscription channel
// closes. Own heartbeats and unparseable payloads are skipped.
func (m *Manager) receiveMessages(sub Subscription, idA, idB string, onMessage MessageHandler) {
	for raw := range sub.Messages() {
		var ev event
		if err := json.Unmarshal(raw, &ev); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "receiveMessages",
				"error":    err.Error(),
			}).Warn("Dropping unparseable channel payload")
			continue
		}
		if ev.Type != eventMessage || ev.Message == nil {
			continue
		}

		msg := *ev.Message
		msg.Content = m.codec.DecryptForDisplay(msg.Content, idA, idB)
		onMessage(msg)
	}
}

// startHeartbeat publishes a no-op event on its own interval until the
// returned stop function is called. Publish failures are logged only; the
// receive loop decides channel health.
func (m *Manager) startHeartbeat(ctx context.Context, matchID string, interval time.Duration) func() {
	hbCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				payload, _ := json.Marshal(event{Type: eventHeartbeat})
				if err := m.transport.Publish(hbCtx, messageChannel(matchID), payload); err != nil {
					logrus.WithFields(logrus.Fields{
						"function": "startHeartbeat",
						"match_id": matchID,
						"error":    err.Error(),
					}).Warn("Heartbeat publish failed")
				}
			}
		}
	}()
	return cancel
}

// PublishMessage announces a newly inserted message row on its match's
// channel. Content must be ciphertext; subscribers decrypt locally.
func (m *Manager) PublishMessage(ctx context.Context, msg model.Message) error {
	payload, err := json.Marshal(event{Type: eventMessage, Message: &msg})
	if err != nil {
		return fmt.Errorf("encode message event: %w", err)
	}
	return m.transport.Publish(ctx, messageChannel(msg.MatchID), payload)
}

// Status reports the current subscription status for a match.
func (m *Manager) Status(matchID string) Status {
	c, ok := m.registry.lookup(matchID)
	if !ok {
		return StatusDisconnected
	}
	return c.currentStatus()
}

// Unsubscribe tears down both channels for a match along with the
// heartbeat and any pending typing timer. Safe to call when nothing is
// subscribed.
func (m *Manager) Unsubscribe(matchID string) {
	logrus.WithFields(logrus.Fields{
		"function": "Unsubscribe",
		"match_id": matchID,
	}).Info("Tearing down realtime channels")
	m.registry.dispose(matchID)
}
