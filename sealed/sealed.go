// Package sealed provides a field codec that seals byte fields with an AEAD.
//
// A sealed field is written as nonce || ciphertext || tag. Its decode context is
// the plaintext length as a bitform.Len, exactly as for a raw byte field, so a
// schema can swap Bytes for a Sealer without touching its length fields.
package sealed

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/zoobzio/bitform"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Sealing errors.
var (
	ErrInvalidKeySize  = errors.New("invalid key size")
	ErrCiphertextShort = errors.New("ciphertext too short")
	ErrOpenFailed      = errors.New("open failed")
	ErrSaltShort       = errors.New("salt too short")
)

// MinSaltSize is the shortest salt PasswordKey accepts.
const MinSaltSize = 16

// KeySize is the key length XChaCha and DeriveKey work with.
const KeySize = chacha20poly1305.KeySize

// Sealer seals and opens byte strings with a fresh random nonce per seal.
type Sealer struct {
	aead cipher.AEAD
}

// XChaCha returns a sealer using XChaCha20-Poly1305. Key must be 32 bytes.
func XChaCha(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidKeySize, chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// AES returns a sealer using AES-GCM.
// Key must be 16, 24, or 32 bytes for AES-128, AES-192, or AES-256.
func AES(key []byte) (*Sealer, error) {
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, fmt.Errorf("%w: must be 16, 24, or 32 bytes, got %d", ErrInvalidKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: gcm}, nil
}

// DeriveKey stretches secret into a KeySize key with HKDF-SHA256.
func DeriveKey(secret, salt []byte, info string) ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, []byte(info)), key); err != nil {
		return nil, err
	}
	return key, nil
}

// KeyParams configures Argon2id key derivation.
type KeyParams struct {
	Time    uint32 // Number of iterations
	Memory  uint32 // Memory usage in KiB
	Threads uint8  // Parallelism factor
}

// DefaultKeyParams returns recommended Argon2id parameters.
// Based on OWASP recommendations for password hashing.
func DefaultKeyParams() KeyParams {
	return KeyParams{
		Time:    1,
		Memory:  64 * 1024, // 64 MiB
		Threads: 4,
	}
}

// NewSalt returns a random MinSaltSize salt for PasswordKey.
func NewSalt() ([]byte, error) {
	salt := make([]byte, MinSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// PasswordKey derives a KeySize key from a password with Argon2id.
// Unlike DeriveKey it is deliberately slow, for low-entropy secrets.
// The salt must be stored next to the sealed data.
func PasswordKey(password, salt []byte, p KeyParams) ([]byte, error) {
	if len(salt) < MinSaltSize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrSaltShort, MinSaltSize, len(salt))
	}
	return argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, KeySize), nil
}

// Overhead is the number of bytes sealing adds.
func (s *Sealer) Overhead() int {
	return s.aead.NonceSize() + s.aead.Overhead()
}

// Seal encrypts plaintext under a random nonce and prepends the nonce.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize+s.aead.Overhead() {
		return nil, ErrCiphertextShort
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenFailed, err)
	}
	return plaintext, nil
}

// Bytes returns a codec sealing a []byte field.
func (s *Sealer) Bytes() bitform.Codec[[]byte] {
	return sealedBytes{s: s}
}

// sealedBytes implements bitform.Codec for sealed byte fields.
type sealedBytes struct {
	s *Sealer
}

// Encode seals v. A Len context must match the plaintext length.
func (c sealedBytes) Encode(ctx any, v *[]byte, w io.Writer) error {
	if n, _, ok := bitform.LenOf(ctx); ok && int(n) != len(*v) {
		return &bitform.LengthError{Expected: int(n), Received: len(*v)}
	}
	data, err := c.s.Seal(*v)
	if err != nil {
		return bitform.WithContext("seal", err)
	}
	return bitform.WriteAll(w, data)
}

// Decode opens a sealed run whose plaintext length is the Len context.
func (c sealedBytes) Decode(ctx any, r io.Reader) ([]byte, error) {
	n, _, ok := bitform.LenOf(ctx)
	if !ok {
		return nil, bitform.Errorf(bitform.ErrContext, "sealed field needs a bitform.Len context, got %T", ctx)
	}
	if n < 0 {
		return nil, bitform.Errorf(bitform.ErrInvalidValue, "negative length %d", int(n))
	}
	data, err := bitform.ReadExact(r, int(n)+c.s.Overhead())
	if err != nil {
		return nil, err
	}
	plaintext, err := c.s.Open(data)
	if err != nil {
		return nil, bitform.WithContext("open", err)
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// EncodedSize is the plaintext length plus the overhead.
func (c sealedBytes) EncodedSize(_ any, v *[]byte) int {
	return len(*v) + c.s.Overhead()
}
