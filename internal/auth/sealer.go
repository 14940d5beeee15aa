// Package auth protects the persisted access token at rest. The key is
// derived from a user passphrase with argon2id and the token is sealed with
// XChaCha20-Poly1305.
package auth

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	versionPlain  byte = 0
	versionSealed byte = 1

	headerLen = 1 + 4 + 4 + 1
)

var (
	ErrPassphraseRequired = errors.New("credential is sealed; passphrase required")
	ErrUnseal             = errors.New("credential cannot be unsealed")
)

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	saltLen     uint32
	keyLen      uint32
}

var defaultArgon2idParams = argon2Params{
	memory:      64 * 1024,
	iterations:  3,
	parallelism: 2,
	saltLen:     16,
	keyLen:      chacha20poly1305.KeySize,
}

// Sealer turns a token into an opaque blob and back. With an empty
// passphrase blobs are stored in the clear, tagged so a later passphrase
// can still read them.
type Sealer struct {
	passphrase []byte
	params     argon2Params
}

func NewSealer(passphrase string) Sealer {
	return Sealer{passphrase: []byte(passphrase), params: defaultArgon2idParams}
}

func (s Sealer) Seal(plaintext []byte) ([]byte, error) {
	if len(s.passphrase) == 0 {
		return append([]byte{versionPlain}, plaintext...), nil
	}
	p := s.params

	salt := make([]byte, p.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("read salt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(s.key(salt, p))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}

	out := make([]byte, headerLen, headerLen+len(salt)+len(nonce)+len(plaintext)+aead.Overhead())
	out[0] = versionSealed
	binary.BigEndian.PutUint32(out[1:5], p.memory)
	binary.BigEndian.PutUint32(out[5:9], p.iterations)
	out[9] = p.parallelism
	header := append([]byte(nil), out...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, header), nil
}

func (s Sealer) Open(blob []byte) ([]byte, error) {
	if len(blob) == 0 {
		return nil, ErrUnseal
	}
	switch blob[0] {
	case versionPlain:
		return append([]byte(nil), blob[1:]...), nil
	case versionSealed:
	default:
		return nil, fmt.Errorf("%w: unknown version %d", ErrUnseal, blob[0])
	}
	if len(s.passphrase) == 0 {
		return nil, ErrPassphraseRequired
	}
	if len(blob) < headerLen {
		return nil, ErrUnseal
	}

	p := s.params
	p.memory = binary.BigEndian.Uint32(blob[1:5])
	p.iterations = binary.BigEndian.Uint32(blob[5:9])
	p.parallelism = blob[9]
	if p.memory == 0 || p.iterations == 0 || p.parallelism == 0 {
		return nil, fmt.Errorf("%w: invalid argon2 params", ErrUnseal)
	}

	rest := blob[headerLen:]
	nonceLen := chacha20poly1305.NonceSizeX
	if len(rest) < int(p.saltLen)+nonceLen {
		return nil, ErrUnseal
	}
	salt := rest[:p.saltLen]
	nonce := rest[p.saltLen : int(p.saltLen)+nonceLen]
	ciphertext := rest[int(p.saltLen)+nonceLen:]

	aead, err := chacha20poly1305.NewX(s.key(salt, p))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, blob[:headerLen])
	if err != nil {
		return nil, ErrUnseal
	}
	return plaintext, nil
}

func (s Sealer) key(salt []byte, p argon2Params) []byte {
	return argon2.IDKey(s.passphrase, salt, p.iterations, p.memory, p.parallelism, p.keyLen)
}
