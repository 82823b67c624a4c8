package securestore

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var errShortCiphertext = errors.New("sealed value too short")

// sealer encrypts values of a single session.  The key is derived from the
// root secret with the session id as salt, and the storage key is bound as
// associated data so a value cannot be replayed under another key.
type sealer struct {
	aead cipher.AEAD
}

func newSealer(secret []byte, sid string) (*sealer, error) {
	r := hkdf.New(sha256.New, secret, []byte(sid), []byte("securestore/v1"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	return &sealer{aead: aead}, nil
}

func (s *sealer) seal(key string, plain []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plain, []byte(key)), nil
}

func (s *sealer) open(key string, sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n+s.aead.Overhead() {
		return nil, errShortCiphertext
	}
	return s.aead.Open(nil, sealed[:n], sealed[n:], []byte(key))
}
