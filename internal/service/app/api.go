package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"

	"sneakernet/internal/model"

	"github.com/gorilla/websocket"
)

type (
	// apiError is a non-2xx answer from the daemon.
	apiError struct {
		Status  int
		Message string `json:"error"`
	}

	contactRequest struct {
		ContactPubkey string `json:"contactPubkey"`
		NodeID        string `json:"nodeId,omitempty"`
	}

	nodeIDResponse struct {
		NodeID string `json:"nodeId"`
	}

	wsEvent struct {
		Type    string             `json:"type"`
		Message *model.ChatMessage `json:"message,omitempty"`
		Error   string             `json:"error,omitempty"`
	}
)

func (e *apiError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

func (c *App) call(ctx context.Context, method, path string, in, out any) error {
	u := url.URL{Scheme: "http", Host: c.host, Path: path}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *App) getContact(ctx context.Context, pubkey string) (*model.Contact, error) {
	var contacts []model.Contact
	if err := c.call(ctx, http.MethodGet, "/api/contacts", nil, &contacts); err != nil {
		return nil, err
	}
	i := slices.IndexFunc(contacts, func(ct model.Contact) bool { return ct.NostrPubkey == pubkey })
	if i < 0 {
		return nil, fmt.Errorf("%s is not a contact, complete an exchange first", pubkey)
	}
	return &contacts[i], nil
}

func (c *App) nodeStatus(ctx context.Context) (*model.NodeStatus, error) {
	var status model.NodeStatus
	if err := c.call(ctx, http.MethodGet, "/api/node/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// startNode binds the endpoint for pubkey. A node that is already running is
// left as it is.
func (c *App) startNode(ctx context.Context, pubkey string) (string, error) {
	var resp nodeIDResponse
	err := c.call(ctx, http.MethodPost, "/api/node/start", contactRequest{ContactPubkey: pubkey}, &resp)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
		status, err := c.nodeStatus(ctx)
		if err != nil {
			return "", err
		}
		if status.NodeID == nil {
			return "", apiErr
		}
		return *status.NodeID, nil
	}
	return resp.NodeID, err
}

func (c *App) connect(ctx context.Context, pubkey, nodeID string) error {
	return c.call(ctx, http.MethodPost, "/api/node/connect", contactRequest{ContactPubkey: pubkey, NodeID: nodeID}, nil)
}

func (c *App) accept(ctx context.Context, pubkey string) (string, error) {
	var resp nodeIDResponse
	err := c.call(ctx, http.MethodPost, "/api/node/accept", contactRequest{ContactPubkey: pubkey}, &resp)
	return resp.NodeID, err
}

func (c *App) initWebsocket(ctx context.Context, pubkey string) (*websocket.Conn, error) {
	u := url.URL{
		Scheme: "ws",
		Host:   c.host,
		Path:   fmt.Sprintf("/api/chat/%s/ws", pubkey),
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
