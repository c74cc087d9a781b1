package crypto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Placeholder is shown in place of a message body that could not be
// decrypted by any known scheme.
const Placeholder = "[Encrypted Message]"

// Codec encrypts and decrypts message bodies for two-party conversations.
// It holds the process-wide secret that feeds conversation key derivation;
// the per-conversation keys themselves are recomputed on demand and never
// stored.
type Codec struct {
	secret []byte
}

// NewCodec creates a codec from the process secret.
func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty process secret", ErrInvalidInput)
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &Codec{secret: s}, nil
}

// Encrypt encrypts plaintext for the conversation between idA and idB using
// the current scheme and returns the serialized envelope.
func (c *Codec) Encrypt(plaintext, idA, idB string) (string, error) {
	if plaintext == "" || idA == "" || idB == "" {
		return "", fmt.Errorf("%w: empty plaintext or participant ID", ErrInvalidInput)
	}

	env, err := schemes[0].seal(c, plaintext, idA, idB)
	if err != nil {
		return "", err
	}
	return env.serialize()
}

// EncryptLegacy produces a legacy-scheme envelope. New writes never select
// the legacy scheme; this exists for migration tooling and fixtures.
func (c *Codec) EncryptLegacy(plaintext, idA, idB string) (string, error) {
	if plaintext == "" || idA == "" || idB == "" {
		return "", fmt.Errorf("%w: empty plaintext or participant ID", ErrInvalidInput)
	}
	env, err := xorScheme{}.seal(c, plaintext, idA, idB)
	if err != nil {
		return "", err
	}
	return env.serialize()
}

// Decrypt decrypts a serialized envelope for the conversation between idA
// and idB. The envelope's version tag selects the scheme; unknown versions
// are rejected before any ciphertext is touched.
func (c *Codec) Decrypt(serialized, idA, idB string) (string, error) {
	if serialized == "" || idA == "" || idB == "" {
		return "", fmt.Errorf("%w: empty envelope or participant ID", ErrInvalidInput)
	}

	env, err := parseEnvelope(serialized)
	if err != nil {
		return "", err
	}
	s, ok := schemeFor(env.Version)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedVersion, env.Version)
	}
	return s.open(c, env, idA, idB)
}

// IsCurrentScheme reports whether serialized is a structurally complete
// envelope produced by the current scheme. It never returns an error; it is
// the cheap check used to pick a decryption path.
func (c *Codec) IsCurrentScheme(serialized string) bool {
	env, err := parseEnvelope(serialized)
	if err != nil {
		return false
	}
	return env.Version == VersionAEAD && env.IV != "" && env.Salt != "" && env.Tag != ""
}

// DecryptForDisplay decrypts ciphertext for rendering, walking the fallback
// chain: current scheme, then the legacy scheme (both its enveloped and its
// bare base64 form), then the placeholder string. It never fails; callers
// that need hard errors use Decrypt.
func (c *Codec) DecryptForDisplay(serialized, idA, idB string) string {
	if strings.TrimSpace(serialized) == "" {
		return ""
	}

	plaintext, err := c.Decrypt(serialized, idA, idB)
	if err == nil {
		return plaintext
	}

	// Old rows are bare base64 with no JSON wrapper at all.
	if errors.Is(err, ErrMalformedEnvelope) {
		if body, decErr := portableB64Decode(serialized); decErr == nil && len(body) > 0 {
			xorKeystream(body, legacySeed(idA, idB, c.secret))
			return string(body)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "DecryptForDisplay",
		"error":    err.Error(),
	}).Warn("Message body undecryptable by any scheme, returning placeholder")
	return Placeholder
}
