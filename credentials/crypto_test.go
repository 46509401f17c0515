package credentials

import (
	"bytes"
	"testing"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	ct, err := Encrypt("test-secret", "shpat_abc123")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(ct, []byte("shpat_abc123")) {
		t.Fatal("ciphertext contains the plaintext")
	}
	pt, err := Decrypt("test-secret", ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if pt != "shpat_abc123" {
		t.Fatalf("plaintext = %q", pt)
	}
}

func TestEncrypt_NonceVaries(t *testing.T) {
	a, err := Encrypt("test-secret", "token")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encrypt("test-secret", "token")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("two encryptions of the same plaintext must differ")
	}
}

func TestDecrypt_WrongSecret(t *testing.T) {
	ct, err := Encrypt("secret-a", "token")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt("secret-b", ct); err == nil {
		t.Fatal("expected decryption failure with the wrong secret")
	}
}

func TestDecrypt_Truncated(t *testing.T) {
	if _, err := Decrypt("secret", []byte("short")); err == nil {
		t.Fatal("expected an error for a truncated ciphertext")
	}
}

func TestEncrypt_EmptySecret(t *testing.T) {
	if _, err := Encrypt("  ", "token"); err == nil {
		t.Fatal("expected an error for an empty secret")
	}
}
