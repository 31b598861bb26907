package kdf

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDF runs HKDF-SHA256 extract-and-expand and fills buffer.
func HKDF(secret, salt, info, buffer []byte) (int, error) {
	h := hkdf.New(sha256.New, secret, salt, info)
	return io.ReadFull(h, buffer)
}
