package exchange

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sneakernet/internal/cryptographic/signature"
	"sneakernet/internal/model"

	"github.com/google/uuid"
)

const (
	ProtocolVersion uint32 = 1
	MessageType            = "sneakernet-exchange"

	// NDEFMimeType is the record type the payload is written under on NFC tags.
	NDEFMimeType = "application/x-sneakernet"

	DomainTag = "sneakernet"
	NonceSize = 16
	MaxAge    = 300 * time.Second
)

// NewInitial builds a broadcast advertisement that names no counterpart.
func NewInitial(keys *signature.Keys) (*model.ExchangeMessage, error) {
	return newMessage(keys, nil)
}

// NewResponse builds a reply bound to theirPubkey.
func NewResponse(keys *signature.Keys, theirPubkey string) (*model.ExchangeMessage, error) {
	return newMessage(keys, &theirPubkey)
}

func newMessage(keys *signature.Keys, theirPubkey *string) (*model.ExchangeMessage, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	msg := &model.ExchangeMessage{
		Version:     ProtocolVersion,
		Type:        MessageType,
		Pubkey:      keys.PublicKeyHex(),
		TheirPubkey: theirPubkey,
		Timestamp:   uint64(time.Now().Unix()),
		Nonce:       hex.EncodeToString(nonce),
	}

	sig, err := keys.Sign([]byte(SigningContent(msg)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	msg.Signature = hex.EncodeToString(sig)
	return msg, nil
}

// SigningContent is the canonical string covered by the signature.
func SigningContent(msg *model.ExchangeMessage) string {
	their := ""
	if msg.TheirPubkey != nil {
		their = *msg.TheirPubkey
	}
	return fmt.Sprintf("%s:%s:%s:%d:%s", DomainTag, msg.Pubkey, their, msg.Timestamp, msg.Nonce)
}

func Marshal(msg *model.ExchangeMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return data, nil
}

// wireMessage mirrors model.ExchangeMessage with every required field
// nullable so that a missing field is distinguishable from a zero value.
type wireMessage struct {
	Version     *uint32 `json:"version"`
	Type        *string `json:"type"`
	Pubkey      *string `json:"pubkey"`
	TheirPubkey *string `json:"theirPubkey"`
	Timestamp   *uint64 `json:"timestamp"`
	Nonce       *string `json:"nonce"`
	Signature   *string `json:"signature"`
}

var wireFields = []string{"version", "type", "pubkey", "theirPubkey", "timestamp", "nonce", "signature"}

// checkFieldNames rejects keys that only match a known field ignoring case.
// encoding/json folds case when decoding into a struct.
func checkFieldNames(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		for _, field := range wireFields {
			if key != field && strings.EqualFold(key, field) {
				return fmt.Errorf("unknown field `%s`, expected `%s`", key, field)
			}
		}
	}
	return nil
}

func Unmarshal(data []byte) (*model.ExchangeMessage, error) {
	if err := checkFieldNames(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	missing := ""
	switch {
	case w.Version == nil:
		missing = "version"
	case w.Type == nil:
		missing = "type"
	case w.Pubkey == nil:
		missing = "pubkey"
	case w.Timestamp == nil:
		missing = "timestamp"
	case w.Nonce == nil:
		missing = "nonce"
	case w.Signature == nil:
		missing = "signature"
	}
	if missing != "" {
		return nil, fmt.Errorf("%w: missing field `%s`", ErrInvalidFormat, missing)
	}

	return &model.ExchangeMessage{
		Version:     *w.Version,
		Type:        *w.Type,
		Pubkey:      *w.Pubkey,
		TheirPubkey: w.TheirPubkey,
		Timestamp:   *w.Timestamp,
		Nonce:       *w.Nonce,
		Signature:   *w.Signature,
	}, nil
}

// Verify checks msg against the current time. See VerifyAt.
func Verify(msg *model.ExchangeMessage, expectedOurPubkey *string) error {
	return VerifyAt(msg, expectedOurPubkey, time.Now())
}

// VerifyAt runs the checks in order and returns the first failure: version,
// type, sender pubkey, signature, counterpart binding, freshness.
// Messages dated in the future are accepted.
func VerifyAt(msg *model.ExchangeMessage, expectedOurPubkey *string, now time.Time) error {
	if msg.Version != ProtocolVersion {
		return &VersionMismatchError{Expected: ProtocolVersion, Got: msg.Version}
	}

	if msg.Type != MessageType {
		return fmt.Errorf("%w: invalid message type", ErrInvalidFormat)
	}

	sender, err := signature.ParsePublicKey(msg.Pubkey)
	if err != nil {
		return ErrInvalidPubkey
	}

	sig, err := hex.DecodeString(msg.Signature)
	if err != nil {
		return ErrSignatureVerification
	}
	if !signature.VerifyKey(sender, []byte(SigningContent(msg)), sig) {
		return ErrSignatureVerification
	}

	if expectedOurPubkey != nil && msg.TheirPubkey != nil && *msg.TheirPubkey != *expectedOurPubkey {
		return ErrPubkeyMismatch
	}

	ts := uint64(now.Unix())
	if ts > msg.Timestamp && ts-msg.Timestamp > uint64(MaxAge/time.Second) {
		return ErrMessageExpired
	}

	return nil
}

// NewContact records a completed exchange with theirPubkey.
func NewContact(theirPubkey, endpointID string) model.Contact {
	return model.Contact{
		ID:          uuid.NewString(),
		NostrPubkey: theirPubkey,
		EndpointID:  endpointID,
		ExchangedAt: uint64(time.Now().Unix()),
	}
}
