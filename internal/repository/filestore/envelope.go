package filestore

import (
	"crypto/rand"
	"errors"
	"fmt"

	"sneakernet/internal/cryptographic/encryption"

	"golang.org/x/crypto/scrypt"
)

const (
	envelopeVersion = 1
	keySize         = 32
	saltSize        = 16
)

var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted identity")

// sealed holds the secret key encrypted under a passphrase-derived key.
type sealed struct {
	V      int    `json:"v"`
	Salt   []byte `json:"salt"`
	N      int    `json:"scrypt_N"`
	R      int    `json:"scrypt_r"`
	P      int    `json:"scrypt_p"`
	Cipher []byte `json:"cipher"`
}

// scrypt cost parameters; tests lower them.
var scryptN, scryptR, scryptP = 1 << 15, 8, 1

func seal(passphrase string, raw []byte) (*sealed, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, err
	}

	ct, err := encryption.AEADEncrypt(key, raw, salt)
	if err != nil {
		return nil, err
	}

	return &sealed{
		V:      envelopeVersion,
		Salt:   salt,
		N:      scryptN,
		R:      scryptR,
		P:      scryptP,
		Cipher: ct,
	}, nil
}

func open(passphrase string, s *sealed) ([]byte, error) {
	if s.V > envelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", s.V)
	}

	key, err := scrypt.Key([]byte(passphrase), s.Salt, s.N, s.R, s.P, keySize)
	if err != nil {
		return nil, err
	}

	raw, err := encryption.AEADDecrypt(key, s.Cipher, s.Salt)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return raw, nil
}
