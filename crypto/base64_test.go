package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func TestPortableB64MatchesStdlib(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("a"),
		[]byte("ab"),
		[]byte("abc"),
		[]byte("abcd"),
		[]byte{0x00, 0xff, 0x10, 0x80, 0x7f},
		bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 100),
	}

	for _, src := range cases {
		got := portableB64Encode(src)
		want := base64.StdEncoding.EncodeToString(src)
		if got != want {
			t.Errorf("portableB64Encode(%x) = %q, want %q", src, got, want)
		}

		back, err := portableB64Decode(got)
		if err != nil {
			t.Fatalf("portableB64Decode(%q) error: %v", got, err)
		}
		if !bytes.Equal(back, src) {
			t.Errorf("decode round trip mismatch for %x: got %x", src, back)
		}
	}
}

func TestPortableB64DecodeRejectsGarbage(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"Bad length", "abc"},
		{"Invalid character", "ab!d"},
		{"Padding in the middle", "a==a"},
		{"Too much padding", "===="},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := portableB64Decode(tc.in); err == nil {
				t.Errorf("portableB64Decode(%q) expected error, got nil", tc.in)
			}
		})
	}
}

func TestCanonicalPairSymmetric(t *testing.T) {
	if canonicalPair("u1", "u2") != canonicalPair("u2", "u1") {
		t.Error("canonicalPair() is not order independent")
	}
	if canonicalPair("ab", "c") == canonicalPair("a", "bc") {
		t.Error("canonicalPair() collides across different pairs")
	}
}

func TestDeriveConversationKeyDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")

	k1 := deriveConversationKey("u1", "u2", testSecret, salt)
	k2 := deriveConversationKey("u2", "u1", testSecret, salt)
	if k1 != k2 {
		t.Error("deriveConversationKey() differs across argument order")
	}

	k3 := deriveConversationKey("u1", "u3", testSecret, salt)
	if k1 == k3 {
		t.Error("deriveConversationKey() identical for different pairs")
	}

	k4 := deriveConversationKey("u1", "u2", testSecret, []byte("fedcba9876543210"))
	if k1 == k4 {
		t.Error("deriveConversationKey() identical under different salts")
	}
}
