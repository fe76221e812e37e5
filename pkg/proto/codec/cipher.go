package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"io"

	cfb8 "github.com/Tnze/go-mc/net/CFB8"
)

// NewDecryptReader wraps the reader to decrypt all bytes read with
// AES/CFB8. The same secret serves as key and IV, per Mojang convention.
func NewDecryptReader(r io.Reader, secret []byte) (io.Reader, error) {
	cfb, err := newCFB8FromSecret(secret, true)
	if err != nil {
		return nil, err
	}
	return &cipher.StreamReader{S: cfb, R: r}, nil
}

// NewEncryptWriter wraps the writer to encrypt all bytes written with AES/CFB8.
func NewEncryptWriter(w io.Writer, secret []byte) (io.Writer, error) {
	cfb, err := newCFB8FromSecret(secret, false)
	if err != nil {
		return nil, err
	}
	return &cipher.StreamWriter{S: cfb, W: w}, nil
}

func newCFB8FromSecret(secret []byte, decrypt bool) (cipher.Stream, error) {
	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, err
	}
	if decrypt {
		return cfb8.NewCFB8Decrypt(block, secret), nil
	}
	return cfb8.NewCFB8Encrypt(block, secret), nil
}
