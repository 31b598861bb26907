package kdf

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RFC 5869 appendix A.1.
func TestHKDF_RFC5869(t *testing.T) {
	ikm := bytes.Repeat([]byte{0x0b}, 22)
	salt, _ := hex.DecodeString("000102030405060708090a0b0c")
	info, _ := hex.DecodeString("f0f1f2f3f4f5f6f7f8f9")

	out := make([]byte, 42)
	n, err := HKDF(ikm, salt, info, out)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
	assert.Equal(t, "3cb25f25faacd57a90434f64d0362f2a2d2d0a90cf1a5a4c5db02d56ecc4c5bf34007208d5b887185865", hex.EncodeToString(out))
}

func TestHKDF_InfoSeparates(t *testing.T) {
	a := make([]byte, 32)
	b := make([]byte, 32)
	_, err := HKDF([]byte("secret"), []byte("salt"), []byte("one"), a)
	require.NoError(t, err)
	_, err = HKDF([]byte("secret"), []byte("salt"), []byte("two"), b)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
