package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kindredapp/kindred/model"
	"github.com/kindredapp/kindred/queue"
	"github.com/kindredapp/kindred/realtime"
)

// ConnectionState is the conversation's connection status as shown to the UI.
type ConnectionState string

const (
	StateConnected    ConnectionState = "connected"
	StateDisconnected ConnectionState = "disconnected"
	StateReconnecting ConnectionState = "reconnecting"
)

// DeliveryState is the local delivery status of one window entry.
type DeliveryState uint8

const (
	// DeliveryConfirmed means the backend accepted the message.
	DeliveryConfirmed DeliveryState = iota
	// DeliveryPending means the message sits in the offline outbox.
	DeliveryPending
	// DeliveryFailed means delivery was abandoned; the entry stays visible.
	DeliveryFailed
)

// Entry is one message in the window together with its delivery status.
type Entry struct {
	model.Message
	Delivery DeliveryState
	queueID  string
}

// Store is the gateway surface the controller needs.
type Store interface {
	ListMessages(ctx context.Context, matchID string, forceRefresh bool) ([]model.Message, error)
	SendMessage(ctx context.Context, matchID, senderID, plaintext string) (*model.Message, error)
	MarkRead(ctx context.Context, matchID, readerID string) error
}

// Realtime is the channel-manager surface the controller needs.
type Realtime interface {
	SubscribeMessages(matchID, idA, idB string, onMessage realtime.MessageHandler, onErr realtime.ErrorHandler, cfg realtime.SubscribeConfig) error
	SubscribeTyping(matchID string, onTyping realtime.TypingHandler, onErr realtime.ErrorHandler) error
	BroadcastTyping(ctx context.Context, matchID, userID string, isTyping bool)
	Unsubscribe(matchID string)
}

// Outbox is the offline-queue surface the controller needs.
type Outbox interface {
	Enqueue(matchID, plaintext string) (string, error)
	Dequeue(id string) error
	Drain(ctx context.Context, send queue.SendFunc) queue.DrainReport
}

// Config tunes one controller.
type Config struct {
	// MaxWindow caps the in-memory message list; default 50.
	MaxWindow int
	// TypingExpiry hides the peer's typing indicator after silence; default 5s.
	TypingExpiry time.Duration
	// Subscribe tunes the underlying message subscription.
	Subscribe realtime.SubscribeConfig
	// OnChange, when set, is invoked after every state or window mutation.
	OnChange func()
}

// DefaultMaxWindow is the sliding-window cap unless configured otherwise.
const DefaultMaxWindow = 50

const defaultTypingExpiry = 5 * time.Second

// Controller orchestrates one open conversation.
type Controller struct {
	store   Store
	rt      Realtime
	outbox  Outbox // nil disables offline support
	matchID string
	selfID  string
	peerID  string
	cfg     Config

	mu          sync.Mutex
	window      []Entry
	seen        map[string]struct{}
	sending     bool
	state       ConnectionState
	peerTyping  bool
	typingTimer *time.Timer
	closed      bool
}

// New creates a controller for one conversation. outbox may be nil to
// disable offline queuing.
func New(store Store, rt Realtime, outbox Outbox, matchID, selfID, peerID string, cfg Config) *Controller {
	if cfg.MaxWindow <= 0 {
		cfg.MaxWindow = DefaultMaxWindow
	}
	if cfg.TypingExpiry <= 0 {
		cfg.TypingExpiry = defaultTypingExpiry
	}
	return &Controller{
		store:   store,
		rt:      rt,
		outbox:  outbox,
		matchID: matchID,
		selfID:  selfID,
		peerID:  peerID,
		cfg:     cfg,
		seen:    make(map[string]struct{}),
		state:   StateDisconnected,
	}
}

// Open loads the conversation history and opens both realtime channels.
// Partial failure leaves the controller in a state Close can still tear
// down safely.
func (c *Controller) Open(ctx context.Context) error {
	history, err := c.store.ListMessages(ctx, c.matchID, false)
	if err == nil {
		c.mu.Lock()
		for _, msg := range history {
			c.appendLocked(Entry{Message: msg, Delivery: DeliveryConfirmed})
		}
		c.mu.Unlock()
		c.notify()
	} else {
		logrus.WithFields(logrus.Fields{
			"function": "Open",
			"match_id": c.matchID,
			"error":    err.Error(),
		}).Warn("History load failed, starting with empty window")
	}

	cfg := c.cfg.Subscribe
	cfg.OnStatus = c.onStatus
	if err := c.rt.SubscribeMessages(c.matchID, c.selfID, c.peerID, c.onInbound, c.onChannelError, cfg); err != nil {
		return err
	}
	if err := c.rt.SubscribeTyping(c.matchID, c.onPeerTyping, nil); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Open",
			"match_id": c.matchID,
			"error":    err.Error(),
		}).Warn("Typing channel unavailable")
	}
	return nil
}

// Send encrypts-and-stores plaintext for this conversation. It is a no-op
// for whitespace-only input or while another send is in flight. With the
// outbox enabled the message is enqueued first, so a failed live send stays
// durable and visible as pending; without it a failure is surfaced as a
// failed entry.
func (c *Controller) Send(ctx context.Context, plaintext string) error {
	if strings.TrimSpace(plaintext) == "" {
		return nil
	}

	c.mu.Lock()
	if c.sending || c.closed {
		c.mu.Unlock()
		return nil
	}
	c.sending = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.sending = false
		c.mu.Unlock()
	}()

	var queueID string
	if c.outbox != nil {
		id, err := c.outbox.Enqueue(c.matchID, plaintext)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Send",
				"match_id": c.matchID,
				"error":    err.Error(),
			}).Warn("Outbox enqueue failed, continuing with live send only")
		} else {
			queueID = id
		}
	}

	msg, err := c.store.SendMessage(ctx, c.matchID, c.selfID, plaintext)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Send",
			"match_id": c.matchID,
			"error":    err.Error(),
		}).Error("Live send failed")
		c.recordFailedSend(plaintext, queueID)
		return err
	}

	if queueID != "" {
		if err := c.outbox.Dequeue(queueID); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Send",
				"queue_id": queueID,
				"error":    err.Error(),
			}).Warn("Outbox cleanup failed after successful send")
		}
	}

	c.mu.Lock()
	c.appendLocked(Entry{Message: *msg, Delivery: DeliveryConfirmed})
	c.mu.Unlock()
	c.notify()
	return nil
}

// recordFailedSend keeps a failed message visible in the window: pending if
// it is parked in the outbox, failed otherwise.
func (c *Controller) recordFailedSend(plaintext, queueID string) {
	delivery := DeliveryFailed
	if queueID != "" {
		delivery = DeliveryPending
	}

	c.mu.Lock()
	c.appendLocked(Entry{
		Message: model.Message{
			ID:        "local-" + uuid.NewString(),
			MatchID:   c.matchID,
			SenderID:  c.selfID,
			Content:   plaintext,
			CreatedAt: time.Now().UTC(),
		},
		Delivery: delivery,
		queueID:  queueID,
	})
	c.mu.Unlock()
	c.notify()
}

// onInbound handles realtime deliveries. The optimistic local append and
// the realtime copy of the same message collapse by ID.
func (c *Controller) onInbound(msg model.Message) {
	c.mu.Lock()
	c.appendLocked(Entry{Message: msg, Delivery: DeliveryConfirmed})
	c.mu.Unlock()
	c.notify()
}

// appendLocked adds an entry, deduplicating by message ID and sliding the
// window past its cap. Callers hold c.mu.
func (c *Controller) appendLocked(e Entry) {
	if e.ID != "" {
		if _, dup := c.seen[e.ID]; dup {
			return
		}
		c.seen[e.ID] = struct{}{}
	}
	c.window = append(c.window, e)
	for len(c.window) > c.cfg.MaxWindow {
		evicted := c.window[0]
		c.window = c.window[1:]
		delete(c.seen, evicted.ID)
	}
}

// Messages returns a copy of the current window, oldest first.
func (c *Controller) Messages() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.window))
	copy(out, c.window)
	return out
}

// HandleTyping forwards the user's input activity to the debounced typing
// broadcast: non-empty text means typing, empty text means stopped.
func (c *Controller) HandleTyping(ctx context.Context, text string) {
	c.rt.BroadcastTyping(ctx, c.matchID, c.selfID, strings.TrimSpace(text) != "")
}

// MarkAsRead flags the peer's messages as read. Safe to call repeatedly.
func (c *Controller) MarkAsRead(ctx context.Context) error {
	return c.store.MarkRead(ctx, c.matchID, c.selfID)
}

// State reports the current connection state.
func (c *Controller) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PeerTyping reports whether the peer is currently typing. The flag
// auto-expires after TypingExpiry without updates.
func (c *Controller) PeerTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerTyping
}

func (c *Controller) onStatus(s realtime.Status) {
	var next ConnectionState
	switch s {
	case realtime.StatusSubscribed:
		next = StateConnected
	case realtime.StatusConnecting, realtime.StatusReconnecting:
		next = StateReconnecting
	default:
		next = StateDisconnected
	}

	c.mu.Lock()
	changed := c.state != next
	c.state = next
	closed := c.closed
	c.mu.Unlock()

	if !changed || closed {
		return
	}
	c.notify()

	if next == StateConnected && c.outbox != nil {
		go c.drain(context.Background())
	}
}

func (c *Controller) onChannelError(err error) {
	logrus.WithFields(logrus.Fields{
		"function": "onChannelError",
		"match_id": c.matchID,
		"error":    err.Error(),
	}).Error("Realtime channel lost")

	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) onPeerTyping(status model.TypingStatus) {
	if status.UserID == c.selfID {
		return
	}

	c.mu.Lock()
	if c.typingTimer != nil {
		c.typingTimer.Stop()
		c.typingTimer = nil
	}
	c.peerTyping = status.IsTyping
	if status.IsTyping {
		c.typingTimer = time.AfterFunc(c.cfg.TypingExpiry, func() {
			c.mu.Lock()
			c.peerTyping = false
			c.typingTimer = nil
			c.mu.Unlock()
			c.notify()
		})
	}
	c.mu.Unlock()
	c.notify()
}

// drain replays the outbox through the store gateway. Successful sends
// replace their pending window entries; entries dropped after exhausting
// retries are surfaced as failed.
func (c *Controller) drain(ctx context.Context) {
	var delivered []model.Message
	report := c.outbox.Drain(ctx, func(ctx context.Context, matchID, plaintext string) error {
		msg, err := c.store.SendMessage(ctx, matchID, c.selfID, plaintext)
		if err != nil {
			return err
		}
		delivered = append(delivered, *msg)
		return nil
	})

	if len(report.Sent) == 0 && len(report.Dropped) == 0 {
		return
	}

	c.mu.Lock()
	// Drain sends sequentially, so sent entries pair with delivered in order.
	for i, entry := range report.Sent {
		c.resolvePendingLocked(entry.ID, &delivered[i], DeliveryConfirmed)
	}
	for _, entry := range report.Dropped {
		c.resolvePendingLocked(entry.ID, nil, DeliveryFailed)
	}
	c.mu.Unlock()
	c.notify()
}

// resolvePendingLocked updates the window entry parked for queueID. When
// the send succeeded, the local entry takes on the server row; a dropped
// entry is marked failed but stays visible. Callers hold c.mu.
func (c *Controller) resolvePendingLocked(queueID string, sent *model.Message, state DeliveryState) {
	for i := range c.window {
		if c.window[i].queueID != queueID || c.window[i].Delivery != DeliveryPending {
			continue
		}
		if sent != nil {
			delete(c.seen, c.window[i].ID)
			c.window[i].Message = *sent
			c.seen[sent.ID] = struct{}{}
		}
		c.window[i].Delivery = state
		c.window[i].queueID = ""
		return
	}
	// No parked entry (queued outside this controller): append the outcome.
	if sent != nil {
		c.appendLocked(Entry{Message: *sent, Delivery: state})
	}
}

func (c *Controller) notify() {
	if c.cfg.OnChange != nil {
		c.cfg.OnChange()
	}
}

// Close tears down both realtime channels and local timers. Idempotent and
// safe even when Open partially failed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	timer := c.typingTimer
	c.typingTimer = nil
	c.peerTyping = false
	c.state = StateDisconnected
	c.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	c.rt.Unsubscribe(c.matchID)

	logrus.WithFields(logrus.Fields{
		"function": "Close",
		"match_id": c.matchID,
	}).Info("Conversation closed")
}
