package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"sneakernet/internal/chat"
	"sneakernet/internal/node"
	"sneakernet/internal/protocol/exchange"
	"sneakernet/internal/service/core"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&exchange.VersionMismatchError{Expected: 1, Got: 2}, http.StatusBadRequest},
		{fmt.Errorf("%w: detail", exchange.ErrInvalidFormat), http.StatusBadRequest},
		{exchange.ErrMessageExpired, http.StatusBadRequest},
		{core.ErrReplayed, http.StatusBadRequest},
		{badRequest("nope"), http.StatusBadRequest},
		{core.ErrNoKeys, http.StatusNotFound},
		{node.ErrAlreadyRunning, http.StatusConflict},
		{fmt.Errorf("%w: %w", chat.ErrNotConnected, node.ErrNotStarted), http.StatusPreconditionFailed},
		{chat.ErrMessageTooLarge, http.StatusRequestEntityTooLarge},
		{fmt.Errorf("%w: timeout", node.ErrConnectionFailed), http.StatusBadGateway},
		{chat.ErrInvalidFormat, http.StatusBadGateway},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, statusOf(tc.err), tc.err.Error())
	}
}
