// Package realtime manages the pub/sub side of a conversation: one message
// channel and one typing channel per open match.
//
// The message subscription decrypts inbound rows through the codec's
// fallback chain and delivers them in transport order. A dropped channel is
// retried with a fixed delay up to a bounded attempt count; when the budget
// is exhausted the subscriber gets exactly one terminal error. While
// subscribed, a periodic heartbeat publish probes for silent connection
// death; heartbeat failures are logged but the receive loop stays
// authoritative for channel health.
//
// Typing broadcasts are debounced: the first keystroke publishes "typing"
// immediately and arms a timer, later keystrokes reset it, and "stopped"
// goes out when the timer fires or the caller says so explicitly. At most
// one timer exists per conversation; all per-conversation runtime state
// lives in a ConnectionRegistry torn down by Unsubscribe.
package realtime
