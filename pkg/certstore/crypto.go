package certstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 16
	nonceSize  = 12
	keySize    = 32
	kdfRounds  = 100_000
	minPayload = saltSize + nonceSize + 1
)

// DecryptError is returned when a certificate payload cannot be opened,
// usually because the stored password is wrong.
type DecryptError struct {
	Reason string
}

func (e DecryptError) Error() string {
	return fmt.Sprintf("failed to decrypt certificate payload: %s", e.Reason)
}

// Decrypt opens the encrypted payload with the certificate's password and
// returns the raw credential material. The payload layout is
// salt || nonce || ciphertext; the key is derived with PBKDF2-SHA256.
func (c *DigitalCertificate) Decrypt() ([]byte, error) {
	if len(c.EncodedPayload) < minPayload {
		return nil, DecryptError{Reason: "payload too short"}
	}

	salt := c.EncodedPayload[:saltSize]
	nonce := c.EncodedPayload[saltSize : saltSize+nonceSize]
	ciphertext := c.EncodedPayload[saltSize+nonceSize:]

	key := pbkdf2.Key([]byte(c.Password), salt, kdfRounds, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, DecryptError{Reason: err.Error()}
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, DecryptError{Reason: err.Error()}
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		// GCM authentication failure: wrong password or corrupted payload.
		return nil, DecryptError{Reason: "authentication failed"}
	}
	return plaintext, nil
}

// EncryptPayload produces an encrypted payload in the layout Decrypt expects.
// Used when certificates are uploaded, and by tests and the demo wiring.
func EncryptPayload(material []byte, password string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, kdfRounds, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}

	payload := make([]byte, 0, saltSize+nonceSize+len(material)+gcm.Overhead())
	payload = append(payload, salt...)
	payload = append(payload, nonce...)
	payload = gcm.Seal(payload, nonce, material, nil)
	return payload, nil
}
