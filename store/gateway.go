package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kindredapp/kindred/crypto"
	"github.com/kindredapp/kindred/model"
)

// Cache and sweep defaults.
const (
	DefaultMessageCacheTTL = 30 * time.Second
	DefaultPhotoURLTTL     = 10 * time.Minute
	defaultSweepInterval   = time.Minute
)

// Options tunes an optional collaborator or cache setting; zero values
// select defaults, nil collaborators disable the step.
type Options struct {
	Notifier        Notifier
	Pusher          Pusher
	Photos          PhotoResolver
	MessageCacheTTL time.Duration
	PhotoURLTTL     time.Duration
	Now             func() time.Time
}

// Gateway reads and writes conversation data, keeping ciphertext at rest
// and handing plaintext to callers.
type Gateway struct {
	rows     RowStore
	codec    *crypto.Codec
	notifier Notifier
	pusher   Pusher
	photos   PhotoResolver

	messages *messageCache
	urls     *urlCache

	sweepStop chan struct{}
}

// New creates a gateway over the given row store and codec.
func New(rows RowStore, codec *crypto.Codec, opts Options) *Gateway {
	if opts.MessageCacheTTL <= 0 {
		opts.MessageCacheTTL = DefaultMessageCacheTTL
	}
	if opts.PhotoURLTTL <= 0 {
		opts.PhotoURLTTL = DefaultPhotoURLTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	g := &Gateway{
		rows:      rows,
		codec:     codec,
		notifier:  opts.Notifier,
		pusher:    opts.Pusher,
		photos:    opts.Photos,
		messages:  newMessageCache(opts.MessageCacheTTL, now),
		urls:      newURLCache(opts.PhotoURLTTL, now),
		sweepStop: make(chan struct{}),
	}
	go g.sweepLoop()
	return g
}

// Close stops the cache sweep loop.
func (g *Gateway) Close() {
	select {
	case <-g.sweepStop:
	default:
		close(g.sweepStop)
	}
}

func (g *Gateway) sweepLoop() {
	ticker := time.NewTicker(defaultSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-g.sweepStop:
			return
		case <-ticker.C:
			g.messages.sweep()
			g.urls.sweep()
		}
	}
}

// match resolves the match row, which carries the participant pair every
// decrypt needs.
func (g *Gateway) match(ctx context.Context, matchID string) (model.Match, error) {
	m, err := g.rows.GetMatch(ctx, matchID)
	if err != nil {
		return model.Match{}, fmt.Errorf("%w: resolve match %s: %v", ErrStorage, matchID, err)
	}
	return m, nil
}

// decryptForDisplay swaps a message's ciphertext for display plaintext.
func (g *Gateway) decryptForDisplay(msg model.Message, m model.Match) model.Message {
	msg.Content = g.codec.DecryptForDisplay(msg.Content, m.User1ID, m.User2ID)
	return msg
}

// signedPhotoURL resolves a profile photo path through the URL cache.
// Failures are logged and return an empty URL; a missing avatar never
// breaks a conversation list.
func (g *Gateway) signedPhotoURL(ctx context.Context, path string) string {
	if g.photos == nil || path == "" {
		return ""
	}
	if url, ok := g.urls.get(path); ok {
		return url
	}

	url, err := g.photos.SignedURL(ctx, path)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "signedPhotoURL",
			"path":     path,
			"error":    err.Error(),
		}).Warn("Signed URL resolution failed")
		return ""
	}
	g.urls.put(path, url)
	return url
}

func newMessageID() string { return uuid.NewString() }
