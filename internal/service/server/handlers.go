package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

type (
	theirPubkeyRequest struct {
		TheirPubkey string  `json:"theirPubkey"`
		Nickname    *string `json:"nickname,omitempty"`
	}

	nicknameRequest struct {
		Nickname *string `json:"nickname"`
	}

	contactRequest struct {
		ContactPubkey string `json:"contactPubkey"`
		NodeID        string `json:"nodeId,omitempty"`
	}

	nodeIDResponse struct {
		NodeID string `json:"nodeId"`
	}

	contentRequest struct {
		Content string `json:"content"`
	}
)

func (s *HttpServer) GetKeys() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := s.svc.PublicKey(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

func (s *HttpServer) GenerateKeys() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := s.svc.GenerateKeys(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, info)
	}
}

func (s *HttpServer) CreateInitial() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg, err := s.svc.CreateInitial(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

func (s *HttpServer) CreateResponse() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req theirPubkeyRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		msg, err := s.svc.CreateResponse(r.Context(), req.TheirPubkey)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

// VerifyPayload takes the scanned payload as the raw request body.
// ?expectOurs=true requires a response addressed to us.
func (s *HttpServer) VerifyPayload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expectOurs := false
		if v := r.URL.Query().Get("expectOurs"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeError(w, r, badRequest("expectOurs must be a boolean"))
				return
			}
			expectOurs = b
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			writeError(w, r, badRequest(err.Error()))
			return
		}

		msg, err := s.svc.VerifyPayload(r.Context(), payload, expectOurs)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

func (s *HttpServer) CompleteExchange() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req theirPubkeyRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		contact, err := s.svc.CompleteExchange(r.Context(), req.TheirPubkey, req.Nickname)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, contact)
	}
}

func (s *HttpServer) GetContacts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contacts, err := s.svc.Contacts(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, contacts)
	}
}

func (s *HttpServer) DeleteContact() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.svc.DeleteContact(r.Context(), mux.Vars(r)["id"]); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *HttpServer) RenameContact() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req nicknameRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		contact, err := s.svc.RenameContact(r.Context(), mux.Vars(r)["id"], req.Nickname)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, contact)
	}
}

func (s *HttpServer) StartNode() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contactRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		id, err := s.svc.StartNode(r.Context(), req.ContactPubkey)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, nodeIDResponse{NodeID: id})
	}
}

func (s *HttpServer) StopNode() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.svc.StopNode(); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *HttpServer) NodeStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.svc.NodeStatus())
	}
}

func (s *HttpServer) ConnectContact() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contactRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if req.NodeID == "" {
			writeError(w, r, badRequest("nodeId is required"))
			return
		}

		if err := s.svc.ConnectContact(r.Context(), req.ContactPubkey, req.NodeID); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *HttpServer) AcceptContact() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contactRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		remote, err := s.svc.AcceptContact(r.Context(), req.ContactPubkey, req.NodeID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, nodeIDResponse{NodeID: remote})
	}
}

func (s *HttpServer) SendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req contentRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		msg, err := s.svc.SendMessage(r.Context(), mux.Vars(r)["pubkey"], req.Content)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

func (s *HttpServer) ReceiveMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg, err := s.svc.ReceiveMessage(r.Context(), mux.Vars(r)["pubkey"])
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

func (s *HttpServer) GetMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messages, err := s.svc.Messages(r.Context(), mux.Vars(r)["pubkey"])
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, messages)
	}
}

func (s *HttpServer) ClearMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.svc.ClearMessages(r.Context(), mux.Vars(r)["pubkey"]); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
