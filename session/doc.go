// Package session implements the per-conversation controller the UI layer
// drives.
//
// A Controller composes the store gateway, the realtime manager and the
// optional offline outbox into send/receive/typing/read operations over a
// bounded, deduplicated in-memory message window. Optimistic local appends
// and realtime deliveries of the same message are collapsed by message ID;
// the window slides, evicting the oldest entries past its cap.
//
// Connection state follows the realtime subscription: connected,
// disconnected or reconnecting. Each transition back to connected drains
// the outbox; entries that exhaust their retry budget during a drain are
// surfaced in the window as failed deliveries instead of vanishing.
package session
