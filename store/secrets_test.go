package store

import (
	"bytes"
	"strings"
	"testing"
)

func TestSecretCodecRoundTrip(t *testing.T) {
	codec, err := newSecretCodec("test-key", "/tmp/state.db")
	if err != nil {
		t.Fatalf("newSecretCodec() error = %v", err)
	}

	sealed, err := codec.encrypt("refresh-token")
	if err != nil {
		t.Fatalf("encrypt() error = %v", err)
	}
	if !strings.HasPrefix(sealed, encryptedValuePrefix) || strings.Contains(sealed, "refresh-token") {
		t.Fatalf("sealed = %q", sealed)
	}
	again, _ := codec.encrypt("refresh-token")
	if again == sealed {
		t.Fatal("encrypt() reused a nonce")
	}

	plain, err := codec.decrypt(sealed)
	if err != nil || plain != "refresh-token" {
		t.Fatalf("decrypt() = %q, %v", plain, err)
	}
	if plain, err := codec.decrypt("legacy"); err != nil || plain != "legacy" {
		t.Fatalf("decrypt(unprefixed) = %q, %v", plain, err)
	}
	if empty, _ := codec.encrypt(""); empty != "" {
		t.Fatalf("encrypt(\"\") = %q, want empty", empty)
	}

	other, err := newSecretCodec("other-key", "/tmp/state.db")
	if err != nil {
		t.Fatalf("newSecretCodec() error = %v", err)
	}
	if _, err := other.decrypt(sealed); err == nil {
		t.Fatal("decrypt() with another key succeeded")
	}
}

func TestDeriveSecretKey(t *testing.T) {
	a, err := deriveSecretKey("c2VjcmV0", "")
	if err != nil {
		t.Fatalf("deriveSecretKey() error = %v", err)
	}
	b, _ := deriveSecretKey("secret", "")
	if !bytes.Equal(a, b) {
		t.Fatal("base64 and raw forms of the same key derived different keys")
	}
	if len(a) != 32 {
		t.Fatalf("key length = %d, want 32", len(a))
	}

	scoped1, _ := deriveSecretKey("", "/a/state.db")
	scoped2, _ := deriveSecretKey("", "/b/state.db")
	if bytes.Equal(scoped1, scoped2) {
		t.Fatal("local keys for different stores are equal")
	}
}
