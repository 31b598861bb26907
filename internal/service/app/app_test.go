package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sneakernet/internal/node"
	"sneakernet/internal/repository/filestore"
	"sneakernet/internal/service/core"
	"sneakernet/internal/service/server"
	"sneakernet/internal/transport/transporttest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type daemon struct {
	svc    *core.Service
	app    *App
	pubkey string
}

func newDaemon(t *testing.T, network *transporttest.Network) *daemon {
	t.Helper()
	store := filestore.New(filepath.Join(t.TempDir(), filestore.FileName), "")
	svc := core.NewService(store, core.NewMemoryReplayGuard(), node.New(network))
	ts := httptest.NewServer(server.NewHttpServer(svc, "").Router())
	t.Cleanup(func() {
		ts.Close()
		_ = svc.Close(context.Background())
	})

	info, err := svc.GenerateKeys(context.Background())
	require.NoError(t, err)
	return &daemon{
		svc:    svc,
		app:    NewApp(strings.TrimPrefix(ts.URL, "http://")),
		pubkey: info.PublicKey,
	}
}

func pair(t *testing.T, a, b *daemon) {
	t.Helper()
	ctx := context.Background()
	_, err := a.svc.CompleteExchange(ctx, b.pubkey, nil)
	require.NoError(t, err)
	_, err = b.svc.CompleteExchange(ctx, a.pubkey, nil)
	require.NoError(t, err)
}

func TestGetContact(t *testing.T) {
	network := transporttest.NewNetwork()
	alice, bob := newDaemon(t, network), newDaemon(t, network)
	ctx := context.Background()

	_, err := alice.app.getContact(ctx, bob.pubkey)
	assert.ErrorContains(t, err, "not a contact")

	pair(t, alice, bob)
	contact, err := alice.app.getContact(ctx, bob.pubkey)
	require.NoError(t, err)
	assert.Equal(t, bob.pubkey, contact.NostrPubkey)
	assert.Equal(t, bob.pubkey[:8], displayName(contact))
}

func TestStartNode_AlreadyRunning(t *testing.T) {
	network := transporttest.NewNetwork()
	alice, bob := newDaemon(t, network), newDaemon(t, network)
	ctx := context.Background()

	first, err := alice.app.startNode(ctx, bob.pubkey)
	require.NoError(t, err)
	second, err := alice.app.startNode(ctx, bob.pubkey)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCallError(t *testing.T) {
	network := transporttest.NewNetwork()
	alice := newDaemon(t, network)

	err := alice.app.connect(context.Background(), "nobody", "")
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.NotEmpty(t, apiErr.Message)
}

func TestConnectAndChat(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	network := transporttest.NewNetwork()
	alice, bob := newDaemon(t, network), newDaemon(t, network)
	pair(t, alice, bob)

	var err error
	alice.app.contact, err = alice.app.getContact(ctx, bob.pubkey)
	require.NoError(t, err)
	bob.app.contact, err = bob.app.getContact(ctx, alice.pubkey)
	require.NoError(t, err)

	bobNode, err := bob.app.startNode(ctx, alice.pubkey)
	require.NoError(t, err)

	accepted := make(chan error, 1)
	go func() { accepted <- bob.app.ensureConnected(ctx, "") }()

	require.NoError(t, alice.app.ensureConnected(ctx, bobNode))
	require.NoError(t, <-accepted)

	// already connected is a no-op
	require.NoError(t, alice.app.ensureConnected(ctx, bobNode))

	conn, err := alice.app.initWebsocket(ctx, bob.pubkey)
	require.NoError(t, err)
	defer conn.Close()
	alice.app.conn = conn

	require.NoError(t, alice.app.SendMessage("Hello!"))

	var ev wsEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "sent", ev.Type)
	require.NotNil(t, ev.Message)
	assert.Equal(t, "Hello!", ev.Message.Content)

	got, err := bob.svc.ReceiveMessage(ctx, alice.pubkey)
	require.NoError(t, err)
	assert.Equal(t, "Hello!", got.Content)
	assert.Equal(t, alice.pubkey, got.SenderPubkey)
}
