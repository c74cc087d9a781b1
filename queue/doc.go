// Package queue implements the durable offline outbox for messages that
// could not be sent immediately.
//
// Entries are persisted to a local pebble store as a JSON array under one
// well-known key, so a crash or restart never loses a pending message. Each
// entry carries a bounded retry budget; Drain walks the outbox, retries
// every entry through the caller-supplied send function, and reports the
// entries it had to drop after the budget was exhausted rather than
// discarding them silently.
package queue
