package misc

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"github.com/pkg/errors"
	"io"
)

type (
	// Encryptor handles encryption and decryption of stored credentials
	Encryptor interface {
		Encrypt(data string) (string, error)
		Decrypt(data string) (string, error)
	}

	// DecryptionError is returned when a ciphertext is malformed or was produced with another key
	DecryptionError struct {
		Err error
	}

	encryptor struct {
		gcm cipher.AEAD
	}
)

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("failed to decrypt credential: %v", e.Err)
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}

// NewEncryptor derives a 256 bit AES key from secret. The same secret always yields
// the same key, so ciphertexts survive restarts and redeploys.
func NewEncryptor(secret string) (Encryptor, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cipher")
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gcm")
	}
	return &encryptor{gcm: aesGCM}, nil
}

func (e *encryptor) Encrypt(data string) (string, error) {
	if data == "" {
		return "", nil
	}

	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Wrap(err, "failed to generate nonce")
	}

	ciphertext := e.gcm.Seal(nonce, nonce, []byte(data), nil)
	return hex.EncodeToString(ciphertext), nil
}

func (e *encryptor) Decrypt(data string) (string, error) {
	if data == "" {
		return "", nil
	}

	ciphertext, err := hex.DecodeString(data)
	if err != nil {
		return "", &DecryptionError{Err: err}
	}

	nonceSize := e.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", &DecryptionError{Err: errors.New("ciphertext too short")}
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", &DecryptionError{Err: err}
	}

	return string(plaintext), nil
}
