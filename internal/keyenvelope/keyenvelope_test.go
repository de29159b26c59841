package keyenvelope

import (
	"crypto/rand"
	"testing"
)

func testEnvelope(t *testing.T) *Envelope {
	t.Helper()
	var key [KeySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	env, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return env
}

func TestRoundTrip(t *testing.T) {
	env := testEnvelope(t)

	var plaintext [32]byte
	if _, err := rand.Read(plaintext[:]); err != nil {
		t.Fatalf("generate plaintext: %v", err)
	}

	ciphertext, nonce, err := env.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	got, err := env.Decrypt(ciphertext, nonce)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != plaintext {
		t.Fatalf("round trip mismatch: got %x, want %x", got, plaintext)
	}
}

func TestDecryptRejectsMutatedCiphertext(t *testing.T) {
	env := testEnvelope(t)
	var plaintext [32]byte
	ciphertext, nonce, err := env.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	ciphertext[0] ^= 0xFF
	if _, err := env.Decrypt(ciphertext, nonce); err == nil {
		t.Fatal("expected error decrypting mutated ciphertext")
	}
}

func TestDecryptRejectsMutatedNonce(t *testing.T) {
	env := testEnvelope(t)
	var plaintext [32]byte
	ciphertext, nonce, err := env.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	nonce[0] ^= 0xFF
	if _, err := env.Decrypt(ciphertext, nonce); err == nil {
		t.Fatal("expected error decrypting with mutated nonce")
	}
}

func TestDecryptRejectsWrongNonceLength(t *testing.T) {
	env := testEnvelope(t)
	var plaintext [32]byte
	ciphertext, _, err := env.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := env.Decrypt(ciphertext, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short nonce")
	}
}

func TestParseHexKey(t *testing.T) {
	const valid = "0000000000000000000000000000000000000000000000000000000000000000000000000000"
	if _, err := ParseHexKey(valid); err == nil {
		t.Fatal("expected error for oversized hex key")
	}

	const good = "6368616e676520746869732070617373776f726420746f206120736563726574"
	if _, err := ParseHexKey(good); err != nil {
		t.Fatalf("unexpected error for valid-length hex key: %v", err)
	}

	if _, err := ParseHexKey("not-hex-at-all-zz"); err == nil {
		t.Fatal("expected error for invalid hex")
	}
}
