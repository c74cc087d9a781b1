package crypto

import (
	"fmt"
	"time"
)

// xorScheme is the legacy codec version kept for rows written by old
// clients: a rolling-hash keystream XOR over the plaintext, base64-encoded,
// with no integrity tag. It is decrypt-only; seal exists so tests can
// produce legacy fixtures but Encrypt never selects it.
type xorScheme struct{}

func (xorScheme) version() string { return VersionXOR }

func (xorScheme) seal(c *Codec, plaintext, idA, idB string) (*Envelope, error) {
	body := []byte(plaintext)
	xorKeystream(body, legacySeed(idA, idB, c.secret))
	return &Envelope{
		Version:     VersionXOR,
		Ciphertext:  portableB64Encode(body),
		CreatedAtMs: time.Now().UnixMilli(),
	}, nil
}

func (xorScheme) open(c *Codec, env *Envelope, idA, idB string) (string, error) {
	body, err := portableB64Decode(env.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	xorKeystream(body, legacySeed(idA, idB, c.secret))
	return string(body), nil
}

// legacySeed reproduces the old clients' key derivation: a djb2-style
// rolling hash over the canonicalized pair plus the process secret. The
// constants are part of the wire format and cannot change.
func legacySeed(idA, idB string, secret []byte) uint32 {
	material := canonicalPair(idA, idB)
	seed := uint32(5381)
	for i := 0; i < len(material); i++ {
		seed = seed*33 + uint32(material[i])
	}
	for _, b := range secret {
		seed = seed*33 + uint32(b)
	}
	return seed
}

// xorKeystream XORs buf in place with an xorshift32 stream seeded from the
// rolling hash. Symmetric: applying it twice restores the input.
func xorKeystream(buf []byte, seed uint32) {
	s := seed
	if s == 0 {
		s = 1
	}
	for i := range buf {
		s ^= s << 13
		s ^= s >> 17
		s ^= s << 5
		buf[i] ^= byte(s)
	}
}
