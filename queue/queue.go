package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// outboxKey is the single pebble key holding the serialized entry array.
const outboxKey = "kindred/outbox"

// DefaultMaxRetries is the per-entry retry budget unless configured otherwise.
const DefaultMaxRetries = 3

// ErrExhausted indicates an entry was dropped after its retry budget ran out.
var ErrExhausted = errors.New("message dropped after exhausting retries")

// Entry is one queued outbound message.
type Entry struct {
	ID         string    `json:"id"`
	MatchID    string    `json:"matchId"`
	Plaintext  string    `json:"plaintext"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	RetryCount int       `json:"retryCount"`
	MaxRetries int       `json:"maxRetries"`
}

// SendFunc attempts delivery of one queued message.
type SendFunc func(ctx context.Context, matchID, plaintext string) error

// DrainReport summarizes one Drain pass. Dropped holds the entries removed
// because their retry budget was exhausted; callers surface these as failed
// deliveries instead of losing them invisibly.
type DrainReport struct {
	Sent      []Entry
	Dropped   []Entry
	Remaining int
}

// Outbox is a durable FIFO of unsent messages backed by a local pebble store.
type Outbox struct {
	mu         sync.Mutex
	db         *pebble.DB
	maxRetries int
}

// NewOutbox wraps an open pebble store. maxRetries <= 0 selects
// DefaultMaxRetries.
func NewOutbox(db *pebble.DB, maxRetries int) *Outbox {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Outbox{db: db, maxRetries: maxRetries}
}

// Open opens (or creates) the pebble store at path and wraps it in an Outbox.
func Open(path string, maxRetries int) (*Outbox, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open outbox store: %w", err)
	}
	return NewOutbox(db, maxRetries), nil
}

// Close closes the underlying store.
func (o *Outbox) Close() error {
	return o.db.Close()
}

// Enqueue persists a new entry and returns its ID.
func (o *Outbox) Enqueue(matchID, plaintext string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entries, err := o.load()
	if err != nil {
		return "", err
	}

	entry := Entry{
		ID:         uuid.NewString(),
		MatchID:    matchID,
		Plaintext:  plaintext,
		EnqueuedAt: time.Now().UTC(),
		RetryCount: 0,
		MaxRetries: o.maxRetries,
	}
	entries = append(entries, entry)

	if err := o.save(entries); err != nil {
		return "", err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Enqueue",
		"match_id": matchID,
		"queue_id": entry.ID,
		"pending":  len(entries),
	}).Info("Message queued for offline delivery")
	return entry.ID, nil
}

// Dequeue removes the entry with the given ID. Removing an ID that is no
// longer present is not an error; the optimistic send path races with Drain.
func (o *Outbox) Dequeue(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	entries, err := o.load()
	if err != nil {
		return err
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	return o.save(kept)
}

// Clear removes every queued entry.
func (o *Outbox) Clear() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.save(nil)
}

// Len reports the number of queued entries.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	entries, err := o.load()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Len",
			"error":    err.Error(),
		}).Error("Failed to read outbox")
		return 0
	}
	return len(entries)
}

// Drain attempts delivery of every queued entry. Successful sends are
// removed; failures increment the entry's retry count and the entry stays
// queued until the count reaches its budget, at which point it is removed
// and reported in DrainReport.Dropped.
func (o *Outbox) Drain(ctx context.Context, send SendFunc) DrainReport {
	o.mu.Lock()
	defer o.mu.Unlock()

	var report DrainReport
	entries, err := o.load()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Drain",
			"error":    err.Error(),
		}).Error("Failed to read outbox, skipping drain")
		return report
	}
	if len(entries) == 0 {
		return report
	}

	logrus.WithFields(logrus.Fields{
		"function": "Drain",
		"pending":  len(entries),
	}).Info("Draining offline outbox")

	var kept []Entry
	for _, entry := range entries {
		if ctx.Err() != nil {
			kept = append(kept, entry)
			continue
		}

		err := send(ctx, entry.MatchID, entry.Plaintext)
		if err == nil {
			report.Sent = append(report.Sent, entry)
			continue
		}

		entry.RetryCount++
		if entry.RetryCount >= entry.MaxRetries {
			logrus.WithFields(logrus.Fields{
				"function":    "Drain",
				"queue_id":    entry.ID,
				"match_id":    entry.MatchID,
				"retry_count": entry.RetryCount,
				"error":       err.Error(),
			}).Error("Dropping message after exhausting retries")
			report.Dropped = append(report.Dropped, entry)
			continue
		}
		logrus.WithFields(logrus.Fields{
			"function":    "Drain",
			"queue_id":    entry.ID,
			"retry_count": entry.RetryCount,
			"max_retries": entry.MaxRetries,
		}).Warn("Send failed, keeping message queued")
		kept = append(kept, entry)
	}

	report.Remaining = len(kept)
	if err := o.save(kept); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Drain",
			"error":    err.Error(),
		}).Error("Failed to persist outbox after drain")
	}
	return report
}

func (o *Outbox) load() ([]Entry, error) {
	raw, closer, err := o.db.Get([]byte(outboxKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read outbox: %w", err)
	}
	defer closer.Close()

	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode outbox: %w", err)
	}
	return entries, nil
}

func (o *Outbox) save(entries []Entry) error {
	if len(entries) == 0 {
		if err := o.db.Delete([]byte(outboxKey), pebble.Sync); err != nil {
			return fmt.Errorf("clear outbox: %w", err)
		}
		return nil
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode outbox: %w", err)
	}
	if err := o.db.Set([]byte(outboxKey), raw, pebble.Sync); err != nil {
		return fmt.Errorf("write outbox: %w", err)
	}
	return nil
}
