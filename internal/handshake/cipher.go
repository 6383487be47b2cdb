package handshake

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
)

// encryptPassword returns hex(iv) + hex(ciphertext) of the PKCS#7 padded
// password under key.
func encryptPassword(key []byte, password string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errors.Wrap(err, "create cipher failed")
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", errors.Wrap(err, "generate iv failed")
	}
	plain := pad([]byte(password), aes.BlockSize)
	sealed := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(sealed, plain)
	return hex.EncodeToString(iv) + hex.EncodeToString(sealed), nil
}

func decryptPassword(key []byte, payload string) (string, error) {
	raw, err := hex.DecodeString(payload)
	if err != nil {
		return "", errors.Wrap(ErrMalformed, "password payload is not hex")
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return "", errors.Wrapf(ErrMalformed, "password payload of %d bytes", len(raw))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errors.Wrap(err, "create cipher failed")
	}
	iv, sealed := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plain := make([]byte, len(sealed))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, sealed)
	out, err := unpad(plain, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append([]byte(nil), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.Wrap(ErrMalformed, "empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, errors.Wrap(ErrMalformed, "bad padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.Wrap(ErrMalformed, "bad padding")
		}
	}
	return b[:len(b)-n], nil
}
