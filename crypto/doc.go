// Package crypto implements the message encryption codec for Kindred
// conversations.
//
// Every message body is encrypted under a symmetric conversation key derived
// from the unordered pair of participant identifiers plus a process-wide
// secret. The derivation canonicalizes the pair before hashing, so both
// participants compute the same key regardless of argument order.
//
// Two scheme versions coexist on the wire:
//
//   - v2-aead (current): argon2id key stretching with a fresh salt per
//     message, then ChaCha20-Poly1305 with the version tag and salt bound
//     as associated data. Tampering with any envelope field fails closed.
//   - v1-xor (legacy, decrypt-only): a rolling-hash keystream XOR with no
//     integrity tag, kept so rows written by old clients stay readable.
//
// Decryption for display walks the fallback chain current -> legacy ->
// placeholder text, so one undecryptable row never breaks a conversation
// view.
//
// Example:
//
//	codec, err := crypto.NewCodec(secret)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	envelope, err := codec.Encrypt("hello", "user-a", "user-b")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	plaintext, err := codec.Decrypt(envelope, "user-b", "user-a")
package crypto
