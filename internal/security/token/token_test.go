package token

import (
	"errors"
	"testing"
)

func TestHashCredentialHex_SHAFallback(t *testing.T) {
	t.Setenv(HMACEnvKey, "")

	got := HashCredentialHex("some-credential")
	if got != HashSHA256Hex("some-credential") {
		t.Fatalf("expected SHA-256 fallback")
	}
	if len(got) != 64 {
		t.Fatalf("digest length: %d", len(got))
	}
}

func TestHashCredentialHex_HMACMode(t *testing.T) {
	t.Setenv(HMACEnvKey, "0123456789abcdef0123456789abcdef")

	got := HashCredentialHex("some-credential")
	if got == HashSHA256Hex("some-credential") {
		t.Fatalf("expected HMAC digest, got plain SHA-256")
	}
	if len(got) != 64 {
		t.Fatalf("digest length: %d", len(got))
	}
}

func TestHMACKeyFromEnv_Policy(t *testing.T) {
	t.Setenv(HMACEnvKey, "")
	if _, err := HMACKeyFromEnv(32); !errors.Is(err, ErrHMACKeyMissing) {
		t.Fatalf("expected ErrHMACKeyMissing, got %v", err)
	}

	t.Setenv(HMACEnvKey, "short")
	if _, err := HMACKeyFromEnv(32); !errors.Is(err, ErrHMACKeyTooShort) {
		t.Fatalf("expected ErrHMACKeyTooShort, got %v", err)
	}

	t.Setenv(HMACEnvKey, "0123456789abcdef0123456789abcdef")
	key, err := HMACKeyFromEnv(32)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("key length: %d", len(key))
	}
}

func TestDigestEqual(t *testing.T) {
	t.Parallel()

	a := HashSHA256Hex("a")
	b := HashSHA256Hex("b")

	if !DigestEqual(a, a) {
		t.Fatalf("expected equal digests to match")
	}
	if DigestEqual(a, b) {
		t.Fatalf("expected different digests to mismatch")
	}
	if DigestEqual("", "") {
		t.Fatalf("empty digests must never match")
	}
}
