package derive

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"sneakernet/internal/cryptographic/kdf"
)

const (
	SecretKeySize = 32

	// Info is the HKDF context string. Changing it changes every derived identity.
	Info = "sneakernet-iroh-v1"
)

var (
	ErrInvalidSecretKeyLength = errors.New("invalid secret key length")
	ErrInvalidPublicKey       = errors.New("invalid public key format")
	ErrHKDFExpansion          = errors.New("hkdf expansion failed")
)

// Keypair derives the transport keypair for the relationship between
// myPubHex and theirPubHex. Both orderings of the pair give the same salt.
func Keypair(secret []byte, myPubHex, theirPubHex string) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	if len(secret) != SecretKeySize {
		return nil, nil, ErrInvalidSecretKeyLength
	}

	mine, err := hex.DecodeString(myPubHex)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	theirs, err := hex.DecodeString(theirPubHex)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	seed := make([]byte, ed25519.SeedSize)
	if _, err := kdf.HKDF(secret, Salt(mine, theirs), []byte(Info), seed); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrHKDFExpansion, err)
	}

	priv := ed25519.NewKeyFromSeed(seed)
	return priv, priv.Public().(ed25519.PublicKey), nil
}

// Salt hashes the byte-ordered pair of public keys.
func Salt(a, b []byte) []byte {
	first, second := a, b
	if bytes.Compare(b, a) < 0 {
		first, second = b, a
	}

	h := sha256.New()
	h.Write(first)
	h.Write(second)
	return h.Sum(nil)
}
