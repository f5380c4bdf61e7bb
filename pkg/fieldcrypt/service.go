package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/doorpasses/trustcore/pkg/config"
	"github.com/doorpasses/trustcore/pkg/errors"
)

const (
	// KeySize is the size of the AES-256 key in bytes
	KeySize = 32

	// NonceSize is the size of the per-encryption random nonce in bytes
	NonceSize = 16

	// TagSize is the size of the GCM authentication tag in bytes
	TagSize = 16

	// envelopeDelimiter joins the hex segments; ':' is not in the hex alphabet
	envelopeDelimiter = ":"

	// envelopeSegments is the fixed segment count: nonce, tag, ciphertext
	envelopeSegments = 3
)

// Service provides authenticated encryption for sensitive field values.
//
// Values are encrypted with AES-256-GCM under a single process-wide key and
// stored as a self-describing envelope string of three hex segments joined by
// ':' in the fixed order nonce:tag:ciphertext. The key is resolved once at
// construction and never changes; a Service is safe for unlimited concurrent
// use.
type Service struct {
	aead cipher.AEAD
}

// NewService creates a field encryption service from a 256-bit key expressed
// as a 64-character hexadecimal string
func NewService(hexKey string) (*Service, error) {
	if hexKey == "" {
		return nil, errors.New(errors.ErrCodeConfiguration, "encryption key is not set")
	}
	if len(hexKey) != KeySize*2 {
		return nil, errors.Newf(errors.ErrCodeConfiguration,
			"encryption key must be %d hex characters, got %d", KeySize*2, len(hexKey))
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "encryption key is not valid hex")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "failed to create cipher")
	}

	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "failed to create GCM")
	}

	return &Service{aead: aead}, nil
}

// NewServiceFromConfig creates a field encryption service from configuration.
// A raw hex key takes precedence; a passphrase is accepted as a fallback and
// run through PBKDF2 to derive the key.
func NewServiceFromConfig(cfg config.FieldEncryptionConfig) (*Service, error) {
	if cfg.Key != "" {
		return NewService(cfg.Key)
	}
	if cfg.Passphrase != "" {
		return NewService(DeriveKey(cfg.Passphrase))
	}
	return nil, errors.New(errors.ErrCodeConfiguration,
		"neither encryption key nor passphrase is configured")
}

// DeriveKey derives a 256-bit hex-encoded key from a passphrase using
// PBKDF2-SHA256. Intended for deployments that configure a passphrase
// instead of a raw key; the salt is static so the derivation is stable
// across restarts.
func DeriveKey(passphrase string) string {
	salt := []byte("trustcore-field-encryption")
	key := pbkdf2.Key([]byte(passphrase), salt, 10000, KeySize, sha256.New)
	return hex.EncodeToString(key)
}

// Encrypt encrypts a plaintext field value into an envelope string.
// Empty values are not considered secret and pass through unchanged.
// Any failure is returned as an error; plaintext is never returned as a
// fallback on failure.
func (s *Service) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	if s == nil || s.aead == nil {
		return "", errors.New(errors.ErrCodeEncryptionFailed, "encryption key is not initialized")
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeEncryptionFailed, "failed to generate nonce")
	}

	// Seal appends the tag to the ciphertext; split it back out so the
	// envelope carries nonce, tag, and ciphertext as separate segments.
	sealed := s.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-TagSize]
	tag := sealed[len(sealed)-TagSize:]

	return strings.Join([]string{
		hex.EncodeToString(nonce),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	}, envelopeDelimiter), nil
}

// Decrypt reverses Encrypt. The returned legacy flag is true when the input
// carried no envelope delimiter and was passed through as pre-encryption
// plaintext; callers may use it to re-encrypt the value on the next write.
//
// Decryption fails closed: a malformed envelope or a failed integrity check
// returns an error and never a partial value.
func (s *Service) Decrypt(envelope string) (string, bool, error) {
	if envelope == "" {
		return "", false, nil
	}
	if !strings.Contains(envelope, envelopeDelimiter) {
		// Value predates field encryption and is stored as plaintext.
		return envelope, true, nil
	}
	if s == nil || s.aead == nil {
		return "", false, errors.New(errors.ErrCodeDecryptionFailed, "encryption key is not initialized")
	}

	segments := strings.Split(envelope, envelopeDelimiter)
	if len(segments) != envelopeSegments {
		return "", false, errors.Newf(errors.ErrCodeDecryptionFailed,
			"envelope must have %d segments, got %d", envelopeSegments, len(segments))
	}
	for _, segment := range segments {
		if segment == "" {
			return "", false, errors.New(errors.ErrCodeDecryptionFailed, "envelope segment is empty")
		}
	}

	nonce, err := hex.DecodeString(segments[0])
	if err != nil {
		return "", false, errors.Wrap(err, errors.ErrCodeDecryptionFailed, "nonce is not valid hex")
	}
	if len(nonce) != NonceSize {
		return "", false, errors.Newf(errors.ErrCodeDecryptionFailed,
			"nonce must be %d bytes, got %d", NonceSize, len(nonce))
	}

	tag, err := hex.DecodeString(segments[1])
	if err != nil {
		return "", false, errors.Wrap(err, errors.ErrCodeDecryptionFailed, "auth tag is not valid hex")
	}
	if len(tag) != TagSize {
		return "", false, errors.Newf(errors.ErrCodeDecryptionFailed,
			"auth tag must be %d bytes, got %d", TagSize, len(tag))
	}

	ciphertext, err := hex.DecodeString(segments[2])
	if err != nil {
		return "", false, errors.Wrap(err, errors.ErrCodeDecryptionFailed, "ciphertext is not valid hex")
	}

	// GCM expects the tag appended to the ciphertext
	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", false, errors.Wrap(err, errors.ErrCodeDecryptionFailed, "integrity check failed")
	}

	return string(plaintext), false, nil
}

// IsEncrypted reports whether a stored value looks like an envelope produced
// by Encrypt, as opposed to legacy plaintext
func IsEncrypted(value string) bool {
	if value == "" {
		return false
	}
	segments := strings.Split(value, envelopeDelimiter)
	if len(segments) != envelopeSegments {
		return false
	}
	if len(segments[0]) != NonceSize*2 || len(segments[1]) != TagSize*2 || segments[2] == "" {
		return false
	}
	for _, segment := range segments {
		if _, err := hex.DecodeString(segment); err != nil {
			return false
		}
	}
	return true
}

// Equal compares a plaintext candidate against a stored envelope in constant
// time with respect to the decrypted value
func (s *Service) Equal(envelope, candidate string) (bool, error) {
	value, _, err := s.Decrypt(envelope)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(value), []byte(candidate)) == 1, nil
}
