package crypto

import (
	"encoding/json"
	"fmt"
)

// Scheme version tags as they appear on the wire.
const (
	// VersionAEAD is the current scheme: argon2id + ChaCha20-Poly1305.
	VersionAEAD = "v2-aead"
	// VersionXOR is the legacy scheme: rolling-hash XOR keystream, no tag.
	VersionXOR = "v1-xor"
)

// Envelope is the wire and at-rest representation of one encrypted message
// body. IV, Salt, Ciphertext and Tag are base64-encoded. CreatedAtMs is the
// encryption timestamp in Unix milliseconds.
type Envelope struct {
	Version     string `json:"version"`
	IV          string `json:"iv"`
	Salt        string `json:"salt,omitempty"`
	Ciphertext  string `json:"ciphertext"`
	Tag         string `json:"tag,omitempty"`
	CreatedAtMs int64  `json:"timestamp"`
}

// scheme is one member of the closed set of codec versions. Decryption
// dispatches on the envelope's version tag; there is no open registration.
type scheme interface {
	version() string
	seal(c *Codec, plaintext, idA, idB string) (*Envelope, error)
	open(c *Codec, env *Envelope, idA, idB string) (string, error)
}

// schemes holds every known version in fallback order, current first.
var schemes = []scheme{aeadScheme{}, xorScheme{}}

func schemeFor(version string) (scheme, bool) {
	for _, s := range schemes {
		if s.version() == version {
			return s, true
		}
	}
	return nil, false
}

// parseEnvelope unmarshals a serialized envelope and checks the fields every
// scheme requires. Per-scheme fields (salt, tag) are checked by the scheme.
func parseEnvelope(serialized string) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(serialized), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Version == "" || env.Ciphertext == "" {
		return nil, fmt.Errorf("%w: missing version or ciphertext", ErrMalformedEnvelope)
	}
	return &env, nil
}

func (e *Envelope) serialize() (string, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return string(raw), nil
}
