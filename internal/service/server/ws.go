package server

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"sneakernet/internal/utils/log"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type (
	// wsEvent is pushed to the client for every message sent or received.
	wsEvent struct {
		Type    string `json:"type"`
		Message any    `json:"message,omitempty"`
		Error   string `json:"error,omitempty"`
	}

	wsConn struct {
		mu   sync.Mutex
		conn *websocket.Conn
	}
)

func (c *wsConn) write(ev wsEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(ev)
}

// HandleChatWS bridges one contact's chat to a websocket. Text frames from
// the client are sent as messages; received messages are pushed back.
func (s *HttpServer) HandleChatWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pubkey := mux.Vars(r)["pubkey"]

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("websocket upgrade failed", zap.Error(err))
			return
		}
		ws := &wsConn{conn: conn}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go s.receiveLoop(ctx, ws, pubkey)
		s.processWSMessage(ctx, ws, pubkey)
		conn.Close()
	}
}

func (s *HttpServer) receiveLoop(ctx context.Context, ws *wsConn, pubkey string) {
	for {
		msg, err := s.svc.ReceiveMessage(ctx, pubkey)
		if errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			log.Debug("chat receive stopped", zap.String("contact", pubkey), zap.Error(err))
			_ = ws.write(wsEvent{Type: "error", Error: err.Error()})
			return
		}
		if err := ws.write(wsEvent{Type: "received", Message: msg}); err != nil {
			return
		}
	}
}

func (s *HttpServer) processWSMessage(ctx context.Context, ws *wsConn, pubkey string) {
	for {
		_, data, err := ws.conn.ReadMessage()
		if err != nil {
			log.Debug("chat web socket closed", zap.Error(err))
			return
		}

		msg, err := s.svc.SendMessage(ctx, pubkey, string(data))
		if err != nil {
			log.Error("send from web socket failed", zap.String("contact", pubkey), zap.Error(err))
			if err := ws.write(wsEvent{Type: "error", Error: err.Error()}); err != nil {
				return
			}
			continue
		}
		if err := ws.write(wsEvent{Type: "sent", Message: msg}); err != nil {
			return
		}
	}
}
