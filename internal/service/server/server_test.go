package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sneakernet/internal/model"
	"sneakernet/internal/node"
	"sneakernet/internal/protocol/exchange"
	"sneakernet/internal/repository/filestore"
	"sneakernet/internal/service/core"
	"sneakernet/internal/transport/transporttest"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	svc *core.Service
}

func newTestServer(t *testing.T, network *transporttest.Network) *testServer {
	t.Helper()
	store := filestore.New(filepath.Join(t.TempDir(), filestore.FileName), "")
	svc := core.NewService(store, core.NewMemoryReplayGuard(), node.New(network))
	ts := httptest.NewServer(NewHttpServer(svc, "").Router())
	t.Cleanup(func() {
		ts.Close()
		_ = svc.Close(context.Background())
	})
	return &testServer{Server: ts, svc: svc}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestKeysEndpoints(t *testing.T) {
	ts := newTestServer(t, transporttest.NewNetwork())

	resp := ts.do(t, http.MethodGet, "/api/keys", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, decode[errorResponse](t, resp).Error)

	resp = ts.do(t, http.MethodPost, "/api/keys", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[model.KeysInfo](t, resp)
	assert.Len(t, created.PublicKey, 64)

	resp = ts.do(t, http.MethodGet, "/api/keys", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created, decode[model.KeysInfo](t, resp))
}

func TestExchangeEndpoints(t *testing.T) {
	network := transporttest.NewNetwork()
	alice := newTestServer(t, network)
	bob := newTestServer(t, network)

	alicePub := decode[model.KeysInfo](t, alice.do(t, http.MethodPost, "/api/keys", nil)).PublicKey
	bobPub := decode[model.KeysInfo](t, bob.do(t, http.MethodPost, "/api/keys", nil)).PublicKey

	resp := alice.do(t, http.MethodGet, "/api/exchange/initial", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	initial := decode[model.ExchangeMessage](t, resp)
	assert.Nil(t, initial.TheirPubkey)

	payload, err := exchange.Marshal(&initial)
	require.NoError(t, err)
	resp = bob.do(t, http.MethodPost, "/api/exchange/verify", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = bob.do(t, http.MethodPost, "/api/exchange/verify", payload)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "replayed payload")

	resp = bob.do(t, http.MethodPost, "/api/exchange/response", theirPubkeyRequest{TheirPubkey: alicePub})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	response := decode[model.ExchangeMessage](t, resp)

	payload, err = exchange.Marshal(&response)
	require.NoError(t, err)
	resp = alice.do(t, http.MethodPost, "/api/exchange/verify?expectOurs=true", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = alice.do(t, http.MethodPost, "/api/exchange/verify?expectOurs=maybe", payload)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = alice.do(t, http.MethodPost, "/api/exchange/verify", []byte("garbage"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	nick := "Bob"
	resp = alice.do(t, http.MethodPost, "/api/exchange/complete", theirPubkeyRequest{TheirPubkey: bobPub, Nickname: &nick})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	contact := decode[model.Contact](t, resp)
	assert.Equal(t, bobPub, contact.NostrPubkey)

	resp = alice.do(t, http.MethodGet, "/api/contacts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.Contact](t, resp), 1)

	rename := "Robert"
	resp = alice.do(t, http.MethodPatch, "/api/contacts/"+contact.ID, nicknameRequest{Nickname: &rename})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Robert", *decode[model.Contact](t, resp).Nickname)

	resp = alice.do(t, http.MethodDelete, "/api/contacts/"+contact.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = alice.do(t, http.MethodDelete, "/api/contacts/"+contact.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBadRequestBody(t *testing.T) {
	ts := newTestServer(t, transporttest.NewNetwork())
	ts.do(t, http.MethodPost, "/api/keys", nil)

	resp := ts.do(t, http.MethodPost, "/api/exchange/response", []byte(`{"unknown":1}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/exchange/response", theirPubkeyRequest{TheirPubkey: "zz"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/node/connect", contactRequest{ContactPubkey: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNodeAndChatEndpoints(t *testing.T) {
	network := transporttest.NewNetwork()
	alice := newTestServer(t, network)
	bob := newTestServer(t, network)

	alicePub := decode[model.KeysInfo](t, alice.do(t, http.MethodPost, "/api/keys", nil)).PublicKey
	bobPub := decode[model.KeysInfo](t, bob.do(t, http.MethodPost, "/api/keys", nil)).PublicKey

	resp := alice.do(t, http.MethodPost, "/api/chat/"+bobPub+"/messages", contentRequest{Content: "hi"})
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)

	status := decode[model.NodeStatus](t, alice.do(t, http.MethodGet, "/api/node/status", nil))
	assert.False(t, status.Running)

	resp = alice.do(t, http.MethodPost, "/api/node/start", contactRequest{ContactPubkey: bobPub})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = alice.do(t, http.MethodPost, "/api/node/start", contactRequest{ContactPubkey: bobPub})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = bob.do(t, http.MethodPost, "/api/node/start", contactRequest{ContactPubkey: alicePub})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bobNode := decode[nodeIDResponse](t, resp).NodeID

	resp = alice.do(t, http.MethodPost, "/api/node/connect", contactRequest{ContactPubkey: bobPub, NodeID: "bad"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = alice.do(t, http.MethodPost, "/api/node/connect", contactRequest{ContactPubkey: bobPub, NodeID: bobNode})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = bob.do(t, http.MethodPost, "/api/node/accept", contactRequest{ContactPubkey: alicePub})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	status = decode[model.NodeStatus](t, alice.do(t, http.MethodGet, "/api/node/status", nil))
	assert.True(t, status.Running)
	assert.Equal(t, []string{bobPub}, status.ConnectedContacts)

	resp = alice.do(t, http.MethodPost, "/api/chat/"+bobPub+"/messages", contentRequest{Content: strings.Repeat("a", 70000)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	resp = alice.do(t, http.MethodPost, "/api/chat/"+bobPub+"/messages", contentRequest{Content: "Hello!"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = bob.do(t, http.MethodPost, "/api/chat/"+alicePub+"/receive", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Hello!", decode[model.ChatMessage](t, resp).Content)

	resp = bob.do(t, http.MethodGet, "/api/chat/"+alicePub+"/messages", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.ChatMessage](t, resp), 1)

	resp = bob.do(t, http.MethodDelete, "/api/chat/"+alicePub+"/messages", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = bob.do(t, http.MethodGet, "/api/chat/"+alicePub+"/messages", nil)
	assert.Empty(t, decode[[]model.ChatMessage](t, resp))

	resp = alice.do(t, http.MethodPost, "/api/node/stop", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestChatWebSocket(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	network := transporttest.NewNetwork()
	alice := newTestServer(t, network)
	bob := newTestServer(t, network)

	aliceInfo, err := alice.svc.GenerateKeys(ctx)
	require.NoError(t, err)
	bobInfo, err := bob.svc.GenerateKeys(ctx)
	require.NoError(t, err)

	_, err = alice.svc.StartNode(ctx, bobInfo.PublicKey)
	require.NoError(t, err)
	bobNode, err := bob.svc.StartNode(ctx, aliceInfo.PublicKey)
	require.NoError(t, err)
	require.NoError(t, alice.svc.ConnectContact(ctx, bobInfo.PublicKey, bobNode))
	_, err = bob.svc.AcceptContact(ctx, aliceInfo.PublicKey, "")
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(alice.URL, "http") + "/api/chat/" + bobInfo.PublicKey + "/ws"
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("Hello!")))

	var ev struct {
		Type    string            `json:"type"`
		Message model.ChatMessage `json:"message"`
	}
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, "sent", ev.Type)
	assert.Equal(t, "Hello!", ev.Message.Content)

	got, err := bob.svc.ReceiveMessage(ctx, aliceInfo.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, "Hello!", got.Content)

	_, err = bob.svc.SendMessage(ctx, aliceInfo.PublicKey, "World")
	require.NoError(t, err)

	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, "received", ev.Type)
	assert.Equal(t, "World", ev.Message.Content)
	assert.False(t, ev.Message.IsOutgoing)
}
