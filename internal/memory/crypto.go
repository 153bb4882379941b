package memory

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"

	"github.com/jarvis-hq/jarvis/internal/jerr"
)

const (
	saltSize      = 32
	pbkdf2Iters   = 200_000
	envelopeMagic = "JVMEMv1\x00"
)

// deriveKey turns a passphrase and salt into a chacha20poly1305 key, per
// SPEC_FULL.md §4.1's whole-file envelope encryption design.
func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iters, chacha20poly1305.KeySize, sha256.New)
}

// loadOrCreateSalt reads the 32-byte salt next to the data file, generating
// and persisting one on first open (§4.1: "a 32-byte salt is generated,
// persisted next to the data, and used for key derivation").
func loadOrCreateSalt(saltPath string) ([]byte, bool, error) {
	b, err := os.ReadFile(saltPath)
	if err == nil {
		if len(b) != saltSize {
			return nil, false, jerr.New(jerr.BadKey, "memory", "loadOrCreateSalt", "corrupt salt file")
		}
		return b, false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, false, jerr.Wrap(jerr.Backend, "memory", "loadOrCreateSalt", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, false, jerr.Wrap(jerr.Backend, "memory", "loadOrCreateSalt", err)
	}
	if err := os.WriteFile(saltPath, salt, 0o600); err != nil {
		return nil, false, jerr.Wrap(jerr.Backend, "memory", "loadOrCreateSalt", err)
	}
	return salt, true, nil
}

// encryptFile encrypts plaintext bytes into the envelope format:
// magic || nonce || ciphertext.
func encryptFile(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, jerr.Wrap(jerr.Backend, "memory", "encryptFile", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, jerr.Wrap(jerr.Backend, "memory", "encryptFile", err)
	}
	out := make([]byte, 0, len(envelopeMagic)+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, []byte(envelopeMagic)...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, nil)
	return out, nil
}

// decryptFile reverses encryptFile. A wrong passphrase or corrupt blob
// surfaces as BadKey (§4.1: "mixing modes on the same file fails with BadKey").
func decryptFile(key, blob []byte) ([]byte, error) {
	if len(blob) < len(envelopeMagic) || string(blob[:len(envelopeMagic)]) != envelopeMagic {
		return nil, jerr.New(jerr.BadKey, "memory", "decryptFile", "not a jarvis memory envelope")
	}
	blob = blob[len(envelopeMagic):]

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, jerr.Wrap(jerr.Backend, "memory", "decryptFile", err)
	}
	ns := aead.NonceSize()
	if len(blob) < ns {
		return nil, jerr.New(jerr.BadKey, "memory", "decryptFile", "truncated envelope")
	}
	nonce, ciphertext := blob[:ns], blob[ns:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, jerr.New(jerr.BadKey, "memory", "decryptFile", fmt.Sprintf("decrypt failed: %v", err))
	}
	return plaintext, nil
}
