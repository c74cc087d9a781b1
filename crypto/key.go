package crypto

import (
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"
)

// KeySize is the conversation key length in bytes.
const KeySize = 32

// argon2id parameters for conversation key stretching.
const (
	kdfTime    = 2
	kdfMemory  = 19 * 1024 // KiB
	kdfThreads = 1
)

// pairSeparator keeps "ab"+"c" and "a"+"bc" from canonicalizing to the
// same key material.
const pairSeparator = "\x1f"

// canonicalPair returns the order-independent string form of a participant
// pair. Both sides of a conversation must derive identical key material, so
// the pair is sorted lexicographically before joining.
func canonicalPair(idA, idB string) string {
	if strings.Compare(idA, idB) > 0 {
		idA, idB = idB, idA
	}
	return idA + pairSeparator + idB
}

// deriveConversationKey stretches the canonicalized pair plus the process
// secret into a 256-bit key using argon2id under the given salt.
func deriveConversationKey(idA, idB string, secret, salt []byte) [KeySize]byte {
	logrus.WithFields(logrus.Fields{
		"function": "deriveConversationKey",
	}).Debug("Deriving conversation key")

	material := make([]byte, 0, len(idA)+len(idB)+len(secret)+2)
	material = append(material, canonicalPair(idA, idB)...)
	material = append(material, pairSeparator...)
	material = append(material, secret...)

	derived := argon2.IDKey(material, salt, kdfTime, kdfMemory, kdfThreads, KeySize)

	var key [KeySize]byte
	copy(key[:], derived)
	ZeroBytes(material)
	ZeroBytes(derived)
	return key
}

// ZeroBytes overwrites a sensitive byte slice in place.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
