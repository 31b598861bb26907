package server

import (
	"errors"
	"net/http"

	"sneakernet/internal/chat"
	"sneakernet/internal/node"
	"sneakernet/internal/protocol/derive"
	"sneakernet/internal/protocol/exchange"
	"sneakernet/internal/service/core"
)

var errBadRequest = errors.New("bad request")

func badRequest(detail string) error {
	return errors.Join(errBadRequest, errors.New(detail))
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, exchange.ErrVersionMismatch),
		errors.Is(err, exchange.ErrInvalidFormat),
		errors.Is(err, exchange.ErrSignatureVerification),
		errors.Is(err, exchange.ErrInvalidPubkey),
		errors.Is(err, exchange.ErrPubkeyMismatch),
		errors.Is(err, exchange.ErrMessageExpired),
		errors.Is(err, core.ErrReplayed),
		errors.Is(err, derive.ErrInvalidPublicKey),
		errors.Is(err, node.ErrInvalidNodeID),
		errors.Is(err, node.ErrKeyDerivation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNoKeys),
		errors.Is(err, core.ErrContactNotFound):
		return http.StatusNotFound
	case errors.Is(err, node.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, chat.ErrNotConnected),
		errors.Is(err, node.ErrNotStarted),
		errors.Is(err, node.ErrNotConnected):
		return http.StatusPreconditionFailed
	case errors.Is(err, chat.ErrMessageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, node.ErrConnectionFailed),
		errors.Is(err, node.ErrEndpointCreation),
		errors.Is(err, chat.ErrSendFailed),
		errors.Is(err, chat.ErrReceiveFailed),
		errors.Is(err, chat.ErrInvalidFormat):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
