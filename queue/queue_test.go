package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOutbox(t *testing.T, maxRetries int) *Outbox {
	t.Helper()
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewOutbox(db, maxRetries)
}

func TestEnqueueDequeue(t *testing.T) {
	o := newTestOutbox(t, 3)

	id, err := o.Enqueue("match-1", "hello")
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, o.Len())

	require.NoError(t, o.Dequeue(id))
	assert.Equal(t, 0, o.Len())

	// Dequeue of a missing ID is not an error.
	require.NoError(t, o.Dequeue(id))
}

func TestClear(t *testing.T) {
	o := newTestOutbox(t, 3)

	_, err := o.Enqueue("match-1", "one")
	require.NoError(t, err)
	_, err = o.Enqueue("match-2", "two")
	require.NoError(t, err)
	require.Equal(t, 2, o.Len())

	require.NoError(t, o.Clear())
	assert.Equal(t, 0, o.Len())
}

func TestDrainAllSucceed(t *testing.T) {
	o := newTestOutbox(t, 3)
	for _, text := range []string{"one", "two", "three"} {
		_, err := o.Enqueue("match-1", text)
		require.NoError(t, err)
	}

	var sent []string
	report := o.Drain(context.Background(), func(_ context.Context, matchID, plaintext string) error {
		sent = append(sent, plaintext)
		return nil
	})

	assert.Equal(t, []string{"one", "two", "three"}, sent)
	assert.Len(t, report.Sent, 3)
	assert.Empty(t, report.Dropped)
	assert.Equal(t, 0, report.Remaining)
	assert.Equal(t, 0, o.Len())
}

func TestDrainRetryBudget(t *testing.T) {
	o := newTestOutbox(t, 3)
	_, err := o.Enqueue("match-1", "doomed")
	require.NoError(t, err)

	fail := func(context.Context, string, string) error {
		return errors.New("backend down")
	}

	// First two drains keep the entry with an incremented retry count.
	for i := 0; i < 2; i++ {
		report := o.Drain(context.Background(), fail)
		assert.Empty(t, report.Dropped, "drain %d", i)
		assert.Equal(t, 1, report.Remaining, "drain %d", i)
	}
	require.Equal(t, 1, o.Len())

	// Third failure exhausts the budget: removed and reported.
	report := o.Drain(context.Background(), fail)
	require.Len(t, report.Dropped, 1)
	assert.Equal(t, "doomed", report.Dropped[0].Plaintext)
	assert.Equal(t, 3, report.Dropped[0].RetryCount)
	assert.Equal(t, 0, o.Len())
}

func TestDrainMixedOutcomes(t *testing.T) {
	o := newTestOutbox(t, 3)
	_, err := o.Enqueue("match-ok", "deliverable")
	require.NoError(t, err)
	_, err = o.Enqueue("match-bad", "stuck")
	require.NoError(t, err)

	report := o.Drain(context.Background(), func(_ context.Context, matchID, _ string) error {
		if matchID == "match-bad" {
			return errors.New("no route")
		}
		return nil
	})

	assert.Len(t, report.Sent, 1)
	assert.Equal(t, 1, report.Remaining)
	assert.Equal(t, 1, o.Len())
}

func TestDrainRespectsContextCancellation(t *testing.T) {
	o := newTestOutbox(t, 3)
	_, err := o.Enqueue("match-1", "held")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	report := o.Drain(ctx, func(context.Context, string, string) error {
		calls++
		return nil
	})

	assert.Zero(t, calls)
	assert.Equal(t, 1, report.Remaining)
	assert.Equal(t, 1, o.Len())
}

func TestEntriesSurviveReopen(t *testing.T) {
	fs := vfs.NewMem()
	db, err := pebble.Open("outbox", &pebble.Options{FS: fs})
	require.NoError(t, err)

	o := NewOutbox(db, 3)
	_, err = o.Enqueue("match-1", "persisted")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = pebble.Open("outbox", &pebble.Options{FS: fs})
	require.NoError(t, err)
	defer db.Close()

	reopened := NewOutbox(db, 3)
	assert.Equal(t, 1, reopened.Len())
}

func TestDefaultMaxRetries(t *testing.T) {
	o := newTestOutbox(t, 0)
	id, err := o.Enqueue("match-1", "hello")
	require.NoError(t, err)

	entries, err := o.load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, DefaultMaxRetries, entries[0].MaxRetries)
}
