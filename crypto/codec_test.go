package crypto

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec() error: %v", err)
	}
	return c
}

func TestNewCodecEmptySecret(t *testing.T) {
	if _, err := NewCodec(nil); err == nil {
		t.Fatal("NewCodec(nil) expected error but got nil")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	cases := []struct {
		name      string
		plaintext string
	}{
		{"Short message", "hello"},
		{"Unicode", "héllo wörld 👋"},
		{"Long message", strings.Repeat("lorem ipsum ", 200)},
		{"Single byte", "x"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env, err := c.Encrypt(tc.plaintext, "u1", "u2")
			if err != nil {
				t.Fatalf("Encrypt() error: %v", err)
			}

			got, err := c.Decrypt(env, "u1", "u2")
			if err != nil {
				t.Fatalf("Decrypt() error: %v", err)
			}
			if got != tc.plaintext {
				t.Errorf("round trip mismatch: got %q want %q", got, tc.plaintext)
			}
		})
	}
}

func TestDecryptOrderIndependence(t *testing.T) {
	c := newTestCodec(t)

	env, err := c.Encrypt("hello", "u1", "u2")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	got, err := c.Decrypt(env, "u2", "u1")
	if err != nil {
		t.Fatalf("Decrypt() with swapped IDs error: %v", err)
	}
	if got != "hello" {
		t.Errorf("Decrypt() with swapped IDs = %q, want %q", got, "hello")
	}
}

func TestEncryptInvalidInput(t *testing.T) {
	c := newTestCodec(t)

	cases := []struct {
		name             string
		plaintext, a, b  string
	}{
		{"Empty plaintext", "", "u1", "u2"},
		{"Empty first ID", "hi", "", "u2"},
		{"Empty second ID", "hi", "u1", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Encrypt(tc.plaintext, tc.a, tc.b)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Encrypt() error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestDecryptTamperDetection(t *testing.T) {
	c := newTestCodec(t)

	serialized, err := c.Encrypt("tamper me", "u1", "u2")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	fields := []string{"iv", "salt", "ciphertext", "tag"}
	for _, field := range fields {
		t.Run("Flip "+field, func(t *testing.T) {
			var env map[string]interface{}
			if err := json.Unmarshal([]byte(serialized), &env); err != nil {
				t.Fatalf("unmarshal envelope: %v", err)
			}

			raw, err := base64.StdEncoding.DecodeString(env[field].(string))
			if err != nil {
				t.Fatalf("decode %s: %v", field, err)
			}
			raw[0] ^= 0x01
			env[field] = base64.StdEncoding.EncodeToString(raw)

			mutated, _ := json.Marshal(env)
			_, err = c.Decrypt(string(mutated), "u1", "u2")
			if !errors.Is(err, ErrIntegrityFailure) {
				t.Errorf("Decrypt() after flipping %s = %v, want ErrIntegrityFailure", field, err)
			}
		})
	}
}

func TestDecryptWrongConversation(t *testing.T) {
	c := newTestCodec(t)

	env, err := c.Encrypt("secret", "u1", "u2")
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	if _, err := c.Decrypt(env, "u1", "u3"); !errors.Is(err, ErrIntegrityFailure) {
		t.Errorf("Decrypt() under wrong pair = %v, want ErrIntegrityFailure", err)
	}
}

func TestDecryptUnsupportedVersion(t *testing.T) {
	c := newTestCodec(t)

	serialized, _ := c.Encrypt("hi", "u1", "u2")
	var env Envelope
	if err := json.Unmarshal([]byte(serialized), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	env.Version = "v9-future"
	mutated, _ := json.Marshal(env)

	_, err := c.Decrypt(string(mutated), "u1", "u2")
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("Decrypt() = %v, want ErrUnsupportedVersion", err)
	}
}

func TestDecryptMalformedEnvelope(t *testing.T) {
	c := newTestCodec(t)

	cases := []struct {
		name       string
		serialized string
	}{
		{"Not JSON", "definitely not json"},
		{"Missing ciphertext", `{"version":"v2-aead","iv":"aaaa"}`},
		{"Missing version", `{"ciphertext":"aaaa"}`},
		{"Current scheme without tag", `{"version":"v2-aead","iv":"aaaa","salt":"aaaa","ciphertext":"aaaa"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Decrypt(tc.serialized, "u1", "u2")
			if !errors.Is(err, ErrMalformedEnvelope) {
				t.Errorf("Decrypt(%q) = %v, want ErrMalformedEnvelope", tc.serialized, err)
			}
		})
	}
}

func TestIsCurrentScheme(t *testing.T) {
	c := newTestCodec(t)

	current, _ := c.Encrypt("hi", "u1", "u2")
	legacyEnv, _ := xorScheme{}.seal(c, "hi", "u1", "u2")
	legacy, _ := legacyEnv.serialize()

	cases := []struct {
		name       string
		serialized string
		want       bool
	}{
		{"Current envelope", current, true},
		{"Legacy envelope", legacy, false},
		{"Bare base64", portableB64Encode([]byte("hi")), false},
		{"Garbage", "{{{", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.IsCurrentScheme(tc.serialized); got != tc.want {
				t.Errorf("IsCurrentScheme() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDecryptForDisplayFallbackChain(t *testing.T) {
	c := newTestCodec(t)

	current, _ := c.Encrypt("current scheme", "u1", "u2")

	legacyEnv, err := xorScheme{}.seal(c, "legacy scheme", "u1", "u2")
	if err != nil {
		t.Fatalf("legacy seal: %v", err)
	}
	legacy, _ := legacyEnv.serialize()

	// Bare legacy body: base64 of the XOR keystream output, no JSON wrapper.
	bare := []byte("bare legacy")
	xorKeystream(bare, legacySeed("u1", "u2", testSecret))
	bareSerialized := portableB64Encode(bare)

	cases := []struct {
		name       string
		serialized string
		want       string
	}{
		{"Current scheme", current, "current scheme"},
		{"Legacy envelope", legacy, "legacy scheme"},
		{"Bare legacy base64", bareSerialized, "bare legacy"},
		{"Undecryptable", "!!! not anything !!!", Placeholder},
		{"Empty content", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.DecryptForDisplay(tc.serialized, "u1", "u2"); got != tc.want {
				t.Errorf("DecryptForDisplay() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLegacyRoundTripOrderIndependence(t *testing.T) {
	c := newTestCodec(t)

	env, err := xorScheme{}.seal(c, "hello", "u2", "u1")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	got, err := xorScheme{}.open(c, env, "u1", "u2")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got != "hello" {
		t.Errorf("legacy round trip = %q, want %q", got, "hello")
	}
}

func TestEnvelopeTimestampSet(t *testing.T) {
	c := newTestCodec(t)

	serialized, _ := c.Encrypt("hi", "u1", "u2")
	var env Envelope
	if err := json.Unmarshal([]byte(serialized), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.CreatedAtMs <= 0 {
		t.Errorf("CreatedAtMs = %d, want positive timestamp", env.CreatedAtMs)
	}
}
