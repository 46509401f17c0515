package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	gcmNonceSize = 12
	gcmTagSize   = 16
)

// deriveKey expands the configured secret into a 32-byte AES key via
// HKDF-SHA256. The info string pins the key to this usage so the same
// secret can safely derive keys for other purposes later.
func deriveKey(secret string) ([]byte, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("missing token encryption secret")
	}
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("replyloop/shop-token/v1"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt seals plaintext with AES-256-GCM. The 12-byte nonce is prepended
// to the ciphertext; the 16-byte tag is appended by GCM.
func Encrypt(secret, plaintext string) ([]byte, error) {
	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt opens a nonce-prefixed AES-256-GCM ciphertext.
func Decrypt(secret string, ciphertext []byte) (string, error) {
	key, err := deriveKey(secret)
	if err != nil {
		return "", err
	}
	if len(ciphertext) < gcmNonceSize+gcmTagSize {
		return "", fmt.Errorf("ciphertext too short (%d bytes)", len(ciphertext))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	plain, err := gcm.Open(nil, ciphertext[:gcmNonceSize], ciphertext[gcmNonceSize:], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
