package realtime

import (
	"context"
	"sync"
	"time"
)

// Status describes the lifecycle of a conversation's message subscription.
type Status int

const (
	// StatusDisconnected means no subscription is live (initial and terminal).
	StatusDisconnected Status = iota
	// StatusConnecting means the first subscribe is in flight.
	StatusConnecting
	// StatusSubscribed means the channel is live and delivering.
	StatusSubscribed
	// StatusReconnecting means the channel dropped and a retry is pending.
	StatusReconnecting
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusSubscribed:
		return "subscribed"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// connection owns every piece of per-conversation runtime state: the
// receive loops' context, the live subscriptions, and the typing debounce
// timer. All of it is released by dispose.
type connection struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	status       Status
	messageSub   Subscription
	typingSub    Subscription
	typingTimer  *time.Timer
	messageLoop  bool
	typingActive bool
}

func (c *connection) setStatus(s Status, notify func(Status)) {
	c.mu.Lock()
	changed := c.status != s
	c.status = s
	c.mu.Unlock()
	if changed && notify != nil {
		notify(s)
	}
}

func (c *connection) currentStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// ConnectionRegistry owns the keyed per-match connections. Create, lookup
// and dispose are the only operations; nothing else holds subscription or
// timer state.
type ConnectionRegistry struct {
	mu    sync.Mutex
	conns map[string]*connection
}

// NewConnectionRegistry returns an empty registry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{conns: make(map[string]*connection)}
}

// obtain returns the connection for matchID, creating it if absent.
func (r *ConnectionRegistry) obtain(matchID string) *connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.conns[matchID]; ok {
		return c
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &connection{ctx: ctx, cancel: cancel}
	r.conns[matchID] = c
	return c
}

// lookup returns the connection for matchID if one exists.
func (r *ConnectionRegistry) lookup(matchID string) (*connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[matchID]
	return c, ok
}

// dispose tears down and forgets the connection for matchID. It is
// idempotent: disposing an unknown match is a no-op.
func (r *ConnectionRegistry) dispose(matchID string) {
	r.mu.Lock()
	c, ok := r.conns[matchID]
	delete(r.conns, matchID)
	r.mu.Unlock()
	if !ok {
		return
	}

	c.cancel()

	c.mu.Lock()
	msgSub, typSub, timer := c.messageSub, c.typingSub, c.typingTimer
	c.messageSub, c.typingSub, c.typingTimer = nil, nil, nil
	c.typingActive = false
	c.status = StatusDisconnected
	c.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if msgSub != nil {
		msgSub.Close()
	}
	if typSub != nil {
		typSub.Close()
	}
}
