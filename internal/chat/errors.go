package chat

import "errors"

var (
	ErrNotConnected    = errors.New("not connected to contact")
	ErrMessageTooLarge = errors.New("message too large")
	ErrSendFailed      = errors.New("failed to send message")
	ErrReceiveFailed   = errors.New("failed to receive message")
	ErrInvalidFormat   = errors.New("invalid message format")
)
