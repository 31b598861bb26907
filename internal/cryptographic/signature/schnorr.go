package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"sneakernet/internal/model"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

const SecretKeySize = 32

var (
	ErrGeneration = errors.New("failed to generate keys")
	ErrParse      = errors.New("failed to parse key")
)

// Keys is a long-term secp256k1 identity. The public key is the 32-byte
// x-only form used by BIP340.
type Keys struct {
	secret *btcec.PrivateKey
	pubHex string
}

func GenerateKeys() (*Keys, error) {
	sk := nostr.GeneratePrivateKey()
	if sk == "" {
		return nil, fmt.Errorf("%w: system randomness unavailable", ErrGeneration)
	}
	return RestoreKeys(sk)
}

func RestoreKeys(secretHex string) (*Keys, error) {
	raw, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(raw) != SecretKeySize {
		return nil, fmt.Errorf("%w: secret key must be %d bytes, got %d", ErrParse, SecretKeySize, len(raw))
	}

	priv, _ := btcec.PrivKeyFromBytes(raw)
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("%w: secret key is zero", ErrParse)
	}

	pubHex, err := nostr.GetPublicKey(hex.EncodeToString(priv.Serialize()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	return &Keys{secret: priv, pubHex: pubHex}, nil
}

func RestoreStored(stored model.StoredKeys) (*Keys, error) {
	return RestoreKeys(stored.SecretKeyHex)
}

func (k *Keys) PublicKeyHex() string { return k.pubHex }

func (k *Keys) PublicKeyBech32() (string, error) {
	npub, err := nip19.EncodePublicKey(k.pubHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}
	return npub, nil
}

func (k *Keys) SecretKeyHex() string { return hex.EncodeToString(k.secret.Serialize()) }

// SecretBytes returns a copy of the 32-byte secret scalar.
func (k *Keys) SecretBytes() []byte { return k.secret.Serialize() }

func (k *Keys) Stored() model.StoredKeys {
	return model.StoredKeys{
		SecretKeyHex: k.SecretKeyHex(),
		PublicKeyHex: k.pubHex,
	}
}

func (k *Keys) Info() (model.KeysInfo, error) {
	npub, err := k.PublicKeyBech32()
	if err != nil {
		return model.KeysInfo{}, err
	}
	return model.KeysInfo{PublicKey: k.pubHex, PublicKeyBech32: npub}, nil
}

// Sign produces a BIP340 signature over sha256(content).
func (k *Keys) Sign(content []byte) ([]byte, error) {
	digest := sha256.Sum256(content)
	sig, err := schnorr.Sign(k.secret, digest[:])
	if err != nil {
		return nil, err
	}
	return sig.Serialize(), nil
}

// ParsePublicKey decodes a hex x-only public key.
func ParsePublicKey(pubHex string) (*btcec.PublicKey, error) {
	raw, err := hex.DecodeString(pubHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	pub, err := schnorr.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return pub, nil
}

// Verify reports whether sig is a valid signature over sha256(content) by pubHex.
func Verify(pubHex string, content, sig []byte) bool {
	pub, err := ParsePublicKey(pubHex)
	if err != nil {
		return false
	}
	return VerifyKey(pub, content, sig)
}

func VerifyKey(pub *btcec.PublicKey, content, sig []byte) bool {
	parsed, err := schnorr.ParseSignature(sig)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(content)
	return parsed.Verify(digest[:], pub)
}
