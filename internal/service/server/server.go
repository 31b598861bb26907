package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"sneakernet/internal/service/core"
	"sneakernet/internal/utils/log"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const maxBodySize = 1 << 20

type (
	HttpServer struct {
		svc      *core.Service
		addr     string
		upgrader websocket.Upgrader
	}

	errorResponse struct {
		Error string `json:"error"`
	}
)

func NewHttpServer(svc *core.Service, addr string) *HttpServer {
	return &HttpServer{
		svc:  svc,
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local command surface
			},
		},
	}
}

func (s *HttpServer) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/keys", s.GetKeys()).Methods(http.MethodGet)
	api.HandleFunc("/keys", s.GenerateKeys()).Methods(http.MethodPost)

	api.HandleFunc("/exchange/initial", s.CreateInitial()).Methods(http.MethodGet)
	api.HandleFunc("/exchange/response", s.CreateResponse()).Methods(http.MethodPost)
	api.HandleFunc("/exchange/verify", s.VerifyPayload()).Methods(http.MethodPost)
	api.HandleFunc("/exchange/complete", s.CompleteExchange()).Methods(http.MethodPost)

	api.HandleFunc("/contacts", s.GetContacts()).Methods(http.MethodGet)
	api.HandleFunc("/contacts/{id}", s.DeleteContact()).Methods(http.MethodDelete)
	api.HandleFunc("/contacts/{id}", s.RenameContact()).Methods(http.MethodPatch)

	api.HandleFunc("/node/start", s.StartNode()).Methods(http.MethodPost)
	api.HandleFunc("/node/stop", s.StopNode()).Methods(http.MethodPost)
	api.HandleFunc("/node/status", s.NodeStatus()).Methods(http.MethodGet)
	api.HandleFunc("/node/connect", s.ConnectContact()).Methods(http.MethodPost)
	api.HandleFunc("/node/accept", s.AcceptContact()).Methods(http.MethodPost)

	api.HandleFunc("/chat/{pubkey}/messages", s.SendMessage()).Methods(http.MethodPost)
	api.HandleFunc("/chat/{pubkey}/messages", s.GetMessages()).Methods(http.MethodGet)
	api.HandleFunc("/chat/{pubkey}/messages", s.ClearMessages()).Methods(http.MethodDelete)
	api.HandleFunc("/chat/{pubkey}/receive", s.ReceiveMessage()).Methods(http.MethodPost)
	api.HandleFunc("/chat/{pubkey}/ws", s.HandleChatWS()).Methods(http.MethodGet)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HttpServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		log.Debug("request rejected", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest(err.Error())
	}
	return nil
}
