// Package vault шифрует голоса общим секретом процесса (AES-256-GCM).
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/cwrk-planet/poker-service/internal/domain"
)

type Vault struct {
	aead cipher.AEAD
}

// New выводит ключ из секрета через SHA-256. Секрет живёт весь процесс,
// ротации нет.
func New(secret string) (*Vault, error) {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt возвращает base64(nonce||ciphertext).
func (v *Vault) Encrypt(plain string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("vault: nonce: %w", err)
	}
	out := v.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt принимает вывод Encrypt. Любая порча шифртекста или чужой
// секрет дают domain.ErrDecrypt, мусор наружу не отдаём.
func (v *Vault) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDecrypt, err)
	}
	ns := v.aead.NonceSize()
	if len(raw) < ns {
		return "", fmt.Errorf("%w: ciphertext too short", domain.ErrDecrypt)
	}
	plain, err := v.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDecrypt, err)
	}
	return string(plain), nil
}
