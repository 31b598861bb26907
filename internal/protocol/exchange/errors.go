package exchange

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFormat         = errors.New("invalid message format")
	ErrSignatureVerification = errors.New("signature verification failed")
	ErrVersionMismatch       = errors.New("protocol version mismatch")
	ErrInvalidPubkey         = errors.New("invalid pubkey in message")
	ErrPubkeyMismatch        = errors.New("their pubkey doesn't match expected")
	ErrMessageExpired        = errors.New("message too old (timestamp check failed)")
	ErrSerialization         = errors.New("serialization error")
	ErrSigning               = errors.New("signing error")
)

// VersionMismatchError carries both sides of a version check failure.
type VersionMismatchError struct {
	Expected uint32
	Got      uint32
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", ErrVersionMismatch, e.Expected, e.Got)
}

func (e *VersionMismatchError) Unwrap() error { return ErrVersionMismatch }
