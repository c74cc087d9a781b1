package kindred

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/kindredapp/kindred/config"
	"github.com/kindredapp/kindred/crypto"
	"github.com/kindredapp/kindred/model"
	"github.com/kindredapp/kindred/push"
	"github.com/kindredapp/kindred/queue"
	"github.com/kindredapp/kindred/realtime"
	"github.com/kindredapp/kindred/session"
	"github.com/kindredapp/kindred/store"
)

// Client is the messaging pipeline facade for one signed-in user. It owns
// the shared subsystems; per-conversation state lives in the controllers
// returned by OpenConversation.
type Client struct {
	cfg    *config.Config
	selfID string

	db      *sql.DB
	rdb     *redis.Client
	codec   *crypto.Codec
	manager *realtime.Manager
	gateway *store.Gateway
	outbox  *queue.Outbox
}

// NewClient wires up the pipeline for selfID from the given configuration.
// The caller owns the returned client and must Close it.
func NewClient(selfID string, cfg *config.Config) (*Client, error) {
	if selfID == "" {
		return nil, fmt.Errorf("empty user id")
	}
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	secret, err := cfg.ProcessSecret()
	if err != nil {
		return nil, err
	}
	codec, err := crypto.NewCodec(secret)
	crypto.ZeroBytes(secret)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open row storage: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	manager := realtime.NewManager(realtime.NewRedisTransport(rdb), codec, cfg.TypingDebounce)

	var pusher store.Pusher
	if d := push.NewDispatcher(cfg.PushEndpoint); d.Enabled() {
		pusher = d
	}

	gateway := store.New(store.NewPostgresStore(db), codec, store.Options{
		Notifier:        manager,
		Pusher:          pusher,
		MessageCacheTTL: cfg.MessageCacheTTL,
		PhotoURLTTL:     cfg.PhotoURLTTL,
	})

	outbox, err := queue.Open(cfg.OutboxPath, cfg.QueueMaxRetries)
	if err != nil {
		// The pipeline still works without offline durability.
		logrus.WithFields(logrus.Fields{
			"function": "NewClient",
			"path":     cfg.OutboxPath,
			"error":    err.Error(),
		}).Warn("Offline outbox unavailable, sends will not be queued")
		outbox = nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewClient",
		"user_id":  selfID,
		"push":     pusher != nil,
		"outbox":   outbox != nil,
	}).Info("Messaging client created")

	return &Client{
		cfg:     cfg,
		selfID:  selfID,
		db:      db,
		rdb:     rdb,
		codec:   codec,
		manager: manager,
		gateway: gateway,
		outbox:  outbox,
	}, nil
}

// OpenConversation loads history and opens the realtime channels for one
// match. onChange, when non-nil, fires after every window or state change.
func (c *Client) OpenConversation(ctx context.Context, matchID, peerID string, onChange func()) (*session.Controller, error) {
	var outbox session.Outbox
	if c.outbox != nil {
		outbox = c.outbox
	}

	ctrl := session.New(c.gateway, c.manager, outbox, matchID, c.selfID, peerID, session.Config{
		MaxWindow: c.cfg.MessageWindow,
		Subscribe: realtime.SubscribeConfig{
			ReconnectAfter:       c.cfg.ReconnectAfter,
			MaxReconnectAttempts: c.cfg.MaxReconnectAttempts,
			HeartbeatInterval:    c.cfg.HeartbeatInterval,
		},
		OnChange: onChange,
	})
	if err := ctrl.Open(ctx); err != nil {
		ctrl.Close()
		return nil, err
	}
	return ctrl, nil
}

// Conversations returns the user's conversation list, newest first.
func (c *Client) Conversations(ctx context.Context) ([]model.Conversation, error) {
	return c.gateway.ListConversations(ctx, c.selfID)
}

// Close releases every shared subsystem. Conversation controllers must be
// closed first.
func (c *Client) Close() {
	c.gateway.Close()
	if c.outbox != nil {
		if err := c.outbox.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Close",
				"error":    err.Error(),
			}).Warn("Outbox close failed")
		}
	}
	if err := c.rdb.Close(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Close",
			"error":    err.Error(),
		}).Warn("Redis close failed")
	}
	if err := c.db.Close(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Close",
			"error":    err.Error(),
		}).Warn("Row storage close failed")
	}

	logrus.WithFields(logrus.Fields{
		"function": "Close",
		"user_id":  c.selfID,
	}).Info("Messaging client closed")
}
