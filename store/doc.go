// Package store is the gateway between the messaging pipeline and the
// hosted backend's row storage.
//
// All message bodies cross this boundary encrypted: writes encrypt through
// the codec before the insert, reads decrypt through the codec's fallback
// chain before returning, and a row that cannot be decrypted comes back as
// the placeholder string instead of failing the whole list. Read failures
// degrade to empty results so a conversation view always renders; write
// failures propagate so the caller can offer retry or queueing.
//
// The RowStore interface is the backend's row API; Postgres satisfies it in
// production and an in-memory fake in tests.
package store
