package utils

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/muraselchat/murasel-backend/pkg/apperr"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestParseKey(t *testing.T) {
	key := testKey(t)
	parsed, err := ParseKey(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("ParseKey: %v", err)
	}
	if string(parsed) != string(key) {
		t.Fatal("parsed key does not match original")
	}

	if _, err := ParseKey("not-base64!!!"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
	if _, err := ParseKey(base64.StdEncoding.EncodeToString(key[:16])); err == nil {
		t.Fatal("expected error for a 16-byte key")
	}
	if _, err := ParseKey(""); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey(t))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	for _, plaintext := range []string{
		"hello",
		"مرحبا بالعالم",
		strings.Repeat("long message ", 500),
	} {
		ct, err := c.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", plaintext, err)
		}
		if ct == plaintext {
			t.Fatal("ciphertext equals plaintext")
		}
		got, err := c.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != plaintext {
			t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
		}
	}
}

func TestEncryptEmptyPassesThrough(t *testing.T) {
	c, _ := NewCipher(testKey(t))

	ct, err := c.Encrypt("")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if ct != "" {
		t.Fatalf("expected empty ciphertext, got %q", ct)
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	c, _ := NewCipher(testKey(t))

	a, _ := c.Encrypt("same content")
	b, _ := c.Encrypt("same content")
	if a == b {
		t.Fatal("two encryptions of the same plaintext produced the same ciphertext")
	}
}

func TestDecryptRejectsCorruptedCiphertext(t *testing.T) {
	c, _ := NewCipher(testKey(t))

	ct, err := c.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	raw, _ := base64.StdEncoding.DecodeString(ct)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := c.Decrypt(tampered); !apperr.Is(err, apperr.Decryption) {
		t.Fatalf("expected decryption error, got %v", err)
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	c, _ := NewCipher(testKey(t))

	for _, input := range []string{
		"not base64 at all!!!",
		base64.StdEncoding.EncodeToString([]byte("short")),
	} {
		if _, err := c.Decrypt(input); !apperr.Is(err, apperr.Decryption) {
			t.Fatalf("Decrypt(%q): expected decryption error, got %v", input, err)
		}
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	c1, _ := NewCipher(testKey(t))
	c2, _ := NewCipher(testKey(t))

	ct, err := c1.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := c2.Decrypt(ct); !apperr.Is(err, apperr.Decryption) {
		t.Fatalf("expected decryption error with wrong key, got %v", err)
	}
}
