package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/pbkdf2"
)

// Encryption formats, identified by an 8-byte magic prefix.
const (
	FormatGCM = "GCM3NCR0"
	FormatCBC = "3NCR0PTD"
)

const (
	saltLen   = 16
	nonceLen  = 12
	kdfRounds = 100000
)

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, kdfRounds, 32, sha256.New)
}

// Encrypt seals data with AES-GCM under a PBKDF2 key.
// Format: magic(8) + salt(16) + nonce(12) + ciphertext + tag(16).
func Encrypt(data []byte, password string) ([]byte, error) {
	salt := make([]byte, saltLen)
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	out := make([]byte, 0, len(FormatGCM)+saltLen+nonceLen+len(data)+gcm.Overhead())
	out = append(out, FormatGCM...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// Decrypt opens data written by Encrypt or by the legacy CBC writer and
// reports which format it found.
func Decrypt(data []byte, password string) ([]byte, string, error) {
	if len(data) < 8 {
		return nil, "", fmt.Errorf("encrypted data too short: %d bytes", len(data))
	}
	switch string(data[:8]) {
	case FormatGCM:
		out, err := decryptGCM(data, password)
		return out, FormatGCM, err
	case FormatCBC:
		out, err := decryptCBC(data, password)
		return out, FormatCBC, err
	}
	return nil, "", fmt.Errorf("unknown encryption format %q", data[:8])
}

func decryptGCM(data []byte, password string) ([]byte, error) {
	if len(data) < 8+saltLen+nonceLen+16 {
		return nil, fmt.Errorf("GCM data too short: %d bytes", len(data))
	}
	salt := data[8 : 8+saltLen]
	nonce := data[8+saltLen : 8+saltLen+nonceLen]
	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, data[8+saltLen+nonceLen:], nil)
	if err != nil {
		return nil, fmt.Errorf("GCM decryption failed: %w", err)
	}
	return plaintext, nil
}

// encryptCBC writes the legacy format: magic(8) + sha256(32) + length(8) +
// salt(16) + iv(16) + PKCS7-padded ciphertext. Kept so objects written by
// older deployments stay readable; new writes use GCM.
func encryptCBC(data []byte, password string) ([]byte, error) {
	salt := make([]byte, saltLen)
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}
	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	padded := applyPKCS7Padding(data, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	body := make([]byte, 0, saltLen+aes.BlockSize+len(ciphertext))
	body = append(body, salt...)
	body = append(body, iv...)
	body = append(body, ciphertext...)
	hash := sha256.Sum256(body)

	out := make([]byte, 0, 8+32+8+len(body))
	out = append(out, FormatCBC...)
	out = append(out, hash[:]...)
	out = binary.BigEndian.AppendUint64(out, uint64(len(body)))
	return append(out, body...), nil
}

func decryptCBC(data []byte, password string) ([]byte, error) {
	if len(data) < 8+32+8+saltLen+aes.BlockSize {
		return nil, fmt.Errorf("legacy CBC data too short: %d bytes", len(data))
	}
	storedHash := data[8:40]
	length := binary.BigEndian.Uint64(data[40:48])
	body := data[48:]
	if uint64(len(body)) != length {
		return nil, fmt.Errorf("length mismatch: expected %d, got %d", length, len(body))
	}
	if sum := sha256.Sum256(body); !bytes.Equal(storedHash, sum[:]) {
		return nil, fmt.Errorf("hash verification failed - data corrupted")
	}

	salt := body[:saltLen]
	iv := body[saltLen : saltLen+aes.BlockSize]
	ciphertext := body[saltLen+aes.BlockSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext is not a multiple of block size")
	}
	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := removePKCS7Padding(plaintext)
	if err != nil {
		log.Warn().Err(err).Msg("PKCS7 unpadding failed, using raw data")
		return plaintext, nil
	}
	return unpadded, nil
}

func applyPKCS7Padding(data []byte, blockSize int) []byte {
	padding := blockSize - (len(data) % blockSize)
	out := make([]byte, len(data), len(data)+padding)
	copy(out, data)
	return append(out, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func removePKCS7Padding(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding length: %d", n)
	}
	for i := len(data) - n; i < len(data); i++ {
		if data[i] != byte(n) {
			return nil, fmt.Errorf("invalid padding at position %d", i)
		}
	}
	return data[:len(data)-n], nil
}
