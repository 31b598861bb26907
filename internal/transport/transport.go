package transport

import (
	"context"
	"crypto/ed25519"
	"errors"
	"io"
)

// ChatProtocol is the protocol identifier chat streams are negotiated under.
const ChatProtocol = "/sneakernet-chat/1"

var (
	ErrInvalidNodeID = errors.New("invalid node ID")
	ErrClosed        = errors.New("transport closed")
)

type (
	// Binder creates endpoints announced under the identity of a derived key.
	Binder interface {
		Bind(ctx context.Context, key ed25519.PrivateKey) (Endpoint, error)
		// EndpointID computes the identity Bind would announce for the key
		// behind pub, without binding.
		EndpointID(pub ed25519.PublicKey) (string, error)
	}

	Endpoint interface {
		// ID is the transport identity other peers dial.
		ID() string
		Addrs() []string
		// RelayAddr reports the relay the endpoint is reachable through, if any.
		RelayAddr() string
		Connect(ctx context.Context, remoteID string) (Conn, error)
		// Accept waits for the next peer that connects to this endpoint.
		Accept(ctx context.Context) (Conn, error)
		Close() error
	}

	Conn interface {
		RemoteID() string
		OpenUni(ctx context.Context) (SendStream, error)
		AcceptUni(ctx context.Context) (RecvStream, error)
		Close() error
	}

	SendStream interface {
		io.Writer
		// Finish signals the end of the stream to the reader.
		Finish() error
		Reset() error
	}

	RecvStream interface {
		io.Reader
		Close() error
		Reset() error
	}
)
