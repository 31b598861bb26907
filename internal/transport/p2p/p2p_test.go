package p2p_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"testing"
	"time"

	"sneakernet/internal/transport"
	"sneakernet/internal/transport/p2p"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBinder() *p2p.Binder {
	return p2p.NewBinder(p2p.Options{
		ListenAddrs: []string{"/ip4/127.0.0.1/tcp/0"},
	})
}

func newKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return priv
}

func TestEndpointIDMatchesBind(t *testing.T) {
	if testing.Short() {
		t.Skip("binds a libp2p host")
	}

	b := newBinder()
	key := newKey(t)

	want, err := b.EndpointID(key.Public().(ed25519.PublicKey))
	require.NoError(t, err)

	ep, err := b.Bind(context.Background(), key)
	require.NoError(t, err)
	defer ep.Close()

	assert.Equal(t, want, ep.ID())
	assert.NotEmpty(t, ep.Addrs())
	assert.Empty(t, ep.RelayAddr())
}

func TestConnect_InvalidNodeID(t *testing.T) {
	if testing.Short() {
		t.Skip("binds a libp2p host")
	}

	ep, err := newBinder().Bind(context.Background(), newKey(t))
	require.NoError(t, err)
	defer ep.Close()

	for _, id := range []string{"not-a-peer-id", "/ip4/127.0.0.1/tcp/1", ep.ID()} {
		_, err := ep.Connect(context.Background(), id)
		assert.ErrorIs(t, err, transport.ErrInvalidNodeID, id)
	}
}

func TestLoopbackStream(t *testing.T) {
	if testing.Short() {
		t.Skip("binds two libp2p hosts")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	b := newBinder()
	alice, err := b.Bind(ctx, newKey(t))
	require.NoError(t, err)
	defer alice.Close()

	bob, err := b.Bind(ctx, newKey(t))
	require.NoError(t, err)
	defer bob.Close()

	toBob, err := alice.Connect(ctx, bob.Addrs()[0])
	require.NoError(t, err)
	assert.Equal(t, bob.ID(), toBob.RemoteID())

	fromAlice, err := bob.Accept(ctx)
	require.NoError(t, err)
	assert.Equal(t, alice.ID(), fromAlice.RemoteID())

	send, err := toBob.OpenUni(ctx)
	require.NoError(t, err)
	_, err = send.Write([]byte("over the wire"))
	require.NoError(t, err)
	require.NoError(t, send.Finish())

	recv, err := fromAlice.AcceptUni(ctx)
	require.NoError(t, err)
	data, err := io.ReadAll(recv)
	require.NoError(t, err)
	require.NoError(t, recv.Close())
	assert.Equal(t, "over the wire", string(data))

	require.NoError(t, alice.Close())
	_, err = alice.Connect(ctx, bob.ID())
	assert.ErrorIs(t, err, transport.ErrClosed)
}
