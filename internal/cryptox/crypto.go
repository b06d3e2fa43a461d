// Package cryptox holds the primitives behind encrypted local storage:
// argon2id key derivation and XChaCha20-Poly1305 sealing.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const SaltSize = 16

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// MakeVerifier returns a value that can be stored next to encrypted data to
// check a derived key without decrypting anything.
func MakeVerifier(masterKey []byte) []byte {
	hash := sha256.Sum256(masterKey)
	return hash[:]
}

// DeriveMasterKey turns a passphrase into a 32-byte key (argon2id,
// 1 pass, 64 MiB, 4 lanes).
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// Seal encrypts plaintext with XChaCha20-Poly1305 under a fresh random
// nonce. The result is nonce || ciphertext. additional is authenticated but
// not encrypted; callers pass the storage key so blobs cannot be swapped.
func Seal(key, plaintext, additional []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, plaintext, additional), nil
}

// Open reverses Seal.
func Open(key, sealed, additional []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, additional)
}

// Wipe zeroes b, for passphrases and keys that are no longer needed.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
