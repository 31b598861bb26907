package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"sneakernet/internal/model"
	"sneakernet/internal/transport"
	"sneakernet/internal/utils/log"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type (
	// Manager keeps the in-memory message history per contact.
	Manager struct {
		mu        sync.RWMutex
		ourPubkey string
		sessions  map[string]*session
	}

	session struct {
		messages []model.ChatMessage
	}

	// wireFields detects missing fields in a received frame.
	wireFields struct {
		ID        *string `json:"id"`
		Content   *string `json:"content"`
		Timestamp *uint64 `json:"timestamp"`
	}
)

func NewManager(ourPubkey string) *Manager {
	return &Manager{
		ourPubkey: ourPubkey,
		sessions:  make(map[string]*session),
	}
}

// Send writes content to a fresh one-directional stream on conn and records
// it as outgoing. Nothing is recorded unless the stream was finished.
func (m *Manager) Send(ctx context.Context, conn transport.Conn, contactKey, content string) (model.ChatMessage, error) {
	if conn == nil {
		return model.ChatMessage{}, ErrNotConnected
	}

	msg := model.ChatMessage{
		ID:           uuid.NewString(),
		Content:      content,
		SenderPubkey: m.ourPubkey,
		Timestamp:    uint64(time.Now().Unix()),
		IsOutgoing:   true,
	}

	data, err := json.Marshal(model.WireMessage{ID: msg.ID, Content: msg.Content, Timestamp: msg.Timestamp})
	if err != nil {
		return model.ChatMessage{}, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if len(data) > MaxMessageSize {
		return model.ChatMessage{}, ErrMessageTooLarge
	}

	stream, err := conn.OpenUni(ctx)
	if err != nil {
		return model.ChatMessage{}, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = stream.Reset() })
	if err := WriteFrame(stream, data); err != nil {
		stop()
		_ = stream.Reset()
		return model.ChatMessage{}, fmt.Errorf("%w: %w", ErrSendFailed, cause(ctx, err))
	}
	if err := stream.Finish(); err != nil {
		stop()
		return model.ChatMessage{}, fmt.Errorf("%w: %w", ErrSendFailed, cause(ctx, err))
	}
	if !stop() {
		return model.ChatMessage{}, fmt.Errorf("%w: %w", ErrSendFailed, ctx.Err())
	}

	m.append(contactKey, msg)
	log.Debug("message sent", zap.String("contact", contactKey), zap.String("id", msg.ID))
	return msg, nil
}

// Receive reads the next one-directional stream on conn and records its
// message as incoming from contactKey.
func (m *Manager) Receive(ctx context.Context, conn transport.Conn, contactKey string) (model.ChatMessage, error) {
	if conn == nil {
		return model.ChatMessage{}, ErrNotConnected
	}

	stream, err := conn.AcceptUni(ctx)
	if err != nil {
		return model.ChatMessage{}, fmt.Errorf("%w: %w", ErrReceiveFailed, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = stream.Reset() })
	data, err := ReadFrame(stream)
	cancelled := !stop()
	if err != nil {
		_ = stream.Reset()
		if errors.Is(err, ErrMessageTooLarge) {
			log.Warn("oversized frame rejected", zap.String("contact", contactKey))
			return model.ChatMessage{}, err
		}
		return model.ChatMessage{}, fmt.Errorf("%w: %w", ErrReceiveFailed, cause(ctx, err))
	}
	_ = stream.Close()
	if cancelled {
		return model.ChatMessage{}, fmt.Errorf("%w: %w", ErrReceiveFailed, ctx.Err())
	}

	msg, err := decode(data, contactKey)
	if err != nil {
		return model.ChatMessage{}, err
	}

	m.append(contactKey, msg)
	log.Debug("message received", zap.String("contact", contactKey), zap.String("id", msg.ID))
	return msg, nil
}

func decode(data []byte, sender string) (model.ChatMessage, error) {
	var w wireFields
	if err := json.Unmarshal(data, &w); err != nil {
		return model.ChatMessage{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if w.ID == nil || w.Content == nil || w.Timestamp == nil {
		return model.ChatMessage{}, fmt.Errorf("%w: missing field", ErrInvalidFormat)
	}

	return model.ChatMessage{
		ID:           *w.ID,
		Content:      *w.Content,
		SenderPubkey: sender,
		Timestamp:    *w.Timestamp,
		IsOutgoing:   false,
	}, nil
}

// cause prefers the context error when the stream was reset by cancellation.
func cause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (m *Manager) append(contactKey string, msg model.ChatMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session(contactKey)
	s.messages = append(s.messages, msg)
}

// session must be called with mu held for writing.
func (m *Manager) session(contactKey string) *session {
	s, ok := m.sessions[contactKey]
	if !ok {
		s = &session{}
		m.sessions[contactKey] = s
	}
	return s
}

// Open creates the session for contactKey if it does not exist yet.
func (m *Manager) Open(contactKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session(contactKey)
}

// Sessions lists the contacts that have a session slot, sorted.
func (m *Manager) Sessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Messages returns a copy of the history with contactKey.
func (m *Manager) Messages(contactKey string) []model.ChatMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[contactKey]
	if !ok {
		return []model.ChatMessage{}
	}
	return append([]model.ChatMessage{}, s.messages...)
}

// Clear empties the history with contactKey but keeps its session.
func (m *Manager) Clear(contactKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[contactKey]; ok {
		s.messages = nil
	}
}

func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.messages = nil
	}
}
