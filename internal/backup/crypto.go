package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation and cipher parameters of the backup envelope.
const (
	EnvelopeVersion = 1
	Iterations      = 150000
	saltLen         = 16
	ivLen           = 12
	keyLen          = 32
)

var (
	// ErrDecrypt is returned when the passphrase is wrong or the backup was altered.
	ErrDecrypt = errors.New("backup: wrong passphrase or corrupted backup")
	// ErrPassphraseRequired is returned when an encrypted backup is opened without a passphrase.
	ErrPassphraseRequired = errors.New("backup: passphrase required")
)

// Envelope is the JSON form of an encrypted backup. Binary fields are standard base64.
type Envelope struct {
	V    int    `json:"v"`
	Salt string `json:"salt"`
	IV   string `json:"iv"`
	Data string `json:"data"`
}

func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, Iterations, keyLen, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plain with AES-256-GCM under a key derived from passphrase with a fresh
// random salt and IV, and returns the JSON envelope.
func Encrypt(plain []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}
	salt := make([]byte, saltLen)
	iv := make([]byte, ivLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}
	gcm, err := newGCM(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	sealed := gcm.Seal(nil, iv, plain, nil)
	return json.Marshal(Envelope{
		V:    EnvelopeVersion,
		Salt: base64.StdEncoding.EncodeToString(salt),
		IV:   base64.StdEncoding.EncodeToString(iv),
		Data: base64.StdEncoding.EncodeToString(sealed),
	})
}

// Decrypt opens an envelope produced by Encrypt.
func Decrypt(envelope []byte, passphrase string) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(envelope, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	if env.V != EnvelopeVersion {
		return nil, fmt.Errorf("unsupported backup envelope version %d", env.V)
	}
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, fmt.Errorf("decode iv: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	gcm, err := newGCM(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	if len(iv) != gcm.NonceSize() {
		return nil, fmt.Errorf("invalid iv length %d", len(iv))
	}
	plain, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}

// IsEncrypted reports whether data looks like an encrypted envelope rather than a plain snapshot.
func IsEncrypted(data []byte) bool {
	var probe struct {
		V    *int    `json:"v"`
		Data *string `json:"data"`
	}
	return json.Unmarshal(data, &probe) == nil && probe.V != nil && probe.Data != nil
}
