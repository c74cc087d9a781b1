package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

const saltSize = 16

// aeadScheme is the current codec version. The conversation key is stretched
// with a fresh salt per message and the body sealed with ChaCha20-Poly1305.
// The version tag and salt ride in the associated data, so changing either
// one, the nonce, the ciphertext or the tag fails authentication.
type aeadScheme struct{}

func (aeadScheme) version() string { return VersionAEAD }

func (aeadScheme) seal(c *Codec, plaintext, idA, idB string) (*Envelope, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	key := deriveConversationKey(idA, idB, c.secret, salt)
	defer ZeroBytes(key[:])

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), aeadAAD(salt))
	split := len(sealed) - aead.Overhead()

	return &Envelope{
		Version:     VersionAEAD,
		IV:          base64.StdEncoding.EncodeToString(nonce),
		Salt:        base64.StdEncoding.EncodeToString(salt),
		Ciphertext:  base64.StdEncoding.EncodeToString(sealed[:split]),
		Tag:         base64.StdEncoding.EncodeToString(sealed[split:]),
		CreatedAtMs: time.Now().UnixMilli(),
	}, nil
}

func (aeadScheme) open(c *Codec, env *Envelope, idA, idB string) (string, error) {
	if env.IV == "" || env.Salt == "" || env.Tag == "" {
		return "", fmt.Errorf("%w: missing iv, salt or tag", ErrMalformedEnvelope)
	}

	nonce, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil || len(nonce) != chacha20poly1305.NonceSize {
		return "", fmt.Errorf("%w: bad iv", ErrMalformedEnvelope)
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return "", fmt.Errorf("%w: bad salt", ErrMalformedEnvelope)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext", ErrMalformedEnvelope)
	}
	tag, err := base64.StdEncoding.DecodeString(env.Tag)
	if err != nil {
		return "", fmt.Errorf("%w: bad tag", ErrMalformedEnvelope)
	}

	key := deriveConversationKey(idA, idB, c.secret, salt)
	defer ZeroBytes(key[:])

	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}

	// Open authenticates before returning any plaintext: verify-then-decrypt.
	sealed := append(ciphertext, tag...)
	plaintext, err := aead.Open(nil, nonce, sealed, aeadAAD(salt))
	if err != nil {
		return "", ErrIntegrityFailure
	}
	return string(plaintext), nil
}

// aeadAAD binds the version tag and the key-stretching salt to the
// ciphertext. The salt fixes the conversation key, so the AAD also ties the
// envelope to the conversation identity it was produced for.
func aeadAAD(salt []byte) []byte {
	aad := make([]byte, 0, len(VersionAEAD)+len(salt))
	aad = append(aad, VersionAEAD...)
	return append(aad, salt...)
}
