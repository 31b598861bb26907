package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"sneakernet/internal/chat"
	"sneakernet/internal/cryptographic/signature"
	"sneakernet/internal/model"
	"sneakernet/internal/node"
	"sneakernet/internal/protocol/derive"
	"sneakernet/internal/protocol/exchange"
	"sneakernet/internal/repository"
	"sneakernet/internal/utils/log"

	"go.uber.org/zap"
)

var (
	ErrNoKeys          = errors.New("no keys found")
	ErrReplayed        = errors.New("exchange message already used")
	ErrContactNotFound = errors.New("contact not found")
)

type (
	// Service is the command surface shared by the CLI, the HTTP server and
	// the terminal UI.
	Service struct {
		store  repository.Store
		replay ReplayGuard
		node   *node.Node

		mu   sync.Mutex
		keys *signature.Keys
		chat *chat.Manager
	}
)

func NewService(store repository.Store, replay ReplayGuard, n *node.Node) *Service {
	return &Service{
		store:  store,
		replay: replay,
		node:   n,
	}
}

// loadKeys returns the cached identity, reading it from the store once.
// It must be called with mu held.
func (s *Service) loadKeys(ctx context.Context) (*signature.Keys, error) {
	if s.keys != nil {
		return s.keys, nil
	}

	stored, err := s.store.LoadKeys(ctx)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrNoKeys
	}

	keys, err := signature.RestoreStored(*stored)
	if err != nil {
		return nil, err
	}
	s.setKeys(keys)
	return keys, nil
}

func (s *Service) setKeys(keys *signature.Keys) {
	s.keys = keys
	s.chat = chat.NewManager(keys.PublicKeyHex())
}

func (s *Service) identity(ctx context.Context) (*signature.Keys, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadKeys(ctx)
}

func (s *Service) HasKeys(ctx context.Context) (bool, error) {
	_, err := s.identity(ctx)
	if errors.Is(err, ErrNoKeys) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GenerateKeys creates and persists a new identity, replacing any cached one.
func (s *Service) GenerateKeys(ctx context.Context) (model.KeysInfo, error) {
	keys, err := signature.GenerateKeys()
	if err != nil {
		return model.KeysInfo{}, err
	}

	if err := s.store.SaveKeys(ctx, keys.Stored()); err != nil {
		return model.KeysInfo{}, err
	}

	s.mu.Lock()
	s.setKeys(keys)
	s.mu.Unlock()

	log.Info("identity generated", zap.String("pubkey", keys.PublicKeyHex()))
	return keys.Info()
}

func (s *Service) PublicKey(ctx context.Context) (model.KeysInfo, error) {
	keys, err := s.identity(ctx)
	if err != nil {
		return model.KeysInfo{}, err
	}
	return keys.Info()
}

func (s *Service) CreateInitial(ctx context.Context) (*model.ExchangeMessage, error) {
	keys, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	return exchange.NewInitial(keys)
}

func (s *Service) CreateResponse(ctx context.Context, theirPubkey string) (*model.ExchangeMessage, error) {
	if _, err := signature.ParsePublicKey(theirPubkey); err != nil {
		return nil, exchange.ErrInvalidPubkey
	}

	keys, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	return exchange.NewResponse(keys, theirPubkey)
}

// VerifyPayload decodes and verifies a scanned payload. With expectOurs the
// message must not be bound to anyone but us. A nonce is accepted once.
func (s *Service) VerifyPayload(ctx context.Context, payload []byte, expectOurs bool) (*model.ExchangeMessage, error) {
	msg, err := exchange.Unmarshal(payload)
	if err != nil {
		return nil, err
	}

	var expected *string
	if expectOurs {
		keys, err := s.identity(ctx)
		if err != nil {
			return nil, err
		}
		ours := keys.PublicKeyHex()
		expected = &ours
	}

	if err := exchange.Verify(msg, expected); err != nil {
		log.Warn("exchange message rejected", zap.String("pubkey", msg.Pubkey), zap.Error(err))
		return nil, err
	}

	if s.replay != nil {
		seen, err := s.replay.Seen(ctx, msg.Pubkey, msg.Nonce, replayTTL(msg.Timestamp))
		if err != nil {
			return nil, err
		}
		if seen {
			return nil, ErrReplayed
		}
	}

	return msg, nil
}

// maxReplayTTL bounds how long a nonce is remembered. Future-dated messages
// stay fresh, so their entries would otherwise never expire.
const maxReplayTTL = 2 * exchange.MaxAge

// replayTTL is how much longer a message stamped at ts passes the freshness
// check, clamped to [1s, maxReplayTTL].
func replayTTL(ts uint64) time.Duration {
	if ts > uint64(time.Now().Unix())+uint64(maxReplayTTL/time.Second) {
		return maxReplayTTL
	}
	ttl := time.Until(time.Unix(int64(ts), 0).Add(exchange.MaxAge))
	return min(max(ttl, time.Second), maxReplayTTL)
}

// CompleteExchange records theirPubkey as a contact. A pubkey that is
// already known returns the stored contact unchanged.
func (s *Service) CompleteExchange(ctx context.Context, theirPubkey string, nickname *string) (model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.loadKeys(ctx)
	if err != nil {
		return model.Contact{}, err
	}

	if _, err := signature.ParsePublicKey(theirPubkey); err != nil {
		return model.Contact{}, exchange.ErrInvalidPubkey
	}
	if theirPubkey == keys.PublicKeyHex() {
		return model.Contact{}, fmt.Errorf("%w: cannot pair with our own key", exchange.ErrInvalidPubkey)
	}

	_, pub, err := derive.Keypair(keys.SecretBytes(), keys.PublicKeyHex(), theirPubkey)
	if err != nil {
		return model.Contact{}, err
	}
	endpointID, err := s.node.Binder().EndpointID(pub)
	if err != nil {
		return model.Contact{}, err
	}

	contacts, err := s.store.LoadContacts(ctx)
	if err != nil {
		return model.Contact{}, err
	}

	if i := slices.IndexFunc(contacts, func(c model.Contact) bool { return c.NostrPubkey == theirPubkey }); i >= 0 {
		return contacts[i], nil
	}

	contact := exchange.NewContact(theirPubkey, endpointID)
	contact.Nickname = nickname

	if err := s.store.SaveContacts(ctx, slices.Insert(contacts, 0, contact)); err != nil {
		return model.Contact{}, err
	}

	log.Info("exchange completed", zap.String("contact", theirPubkey), zap.String("endpoint_id", endpointID))
	return contact, nil
}

func (s *Service) Contacts(ctx context.Context) ([]model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.LoadContacts(ctx)
}

func (s *Service) Contact(ctx context.Context, pubkey string) (model.Contact, error) {
	contacts, err := s.Contacts(ctx)
	if err != nil {
		return model.Contact{}, err
	}
	i := slices.IndexFunc(contacts, func(c model.Contact) bool { return c.NostrPubkey == pubkey })
	if i < 0 {
		return model.Contact{}, ErrContactNotFound
	}
	return contacts[i], nil
}

func (s *Service) DeleteContact(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contacts, err := s.store.LoadContacts(ctx)
	if err != nil {
		return err
	}

	kept := slices.DeleteFunc(contacts, func(c model.Contact) bool { return c.ID == id })
	if len(kept) == len(contacts) {
		return ErrContactNotFound
	}
	return s.store.SaveContacts(ctx, kept)
}

func (s *Service) RenameContact(ctx context.Context, id string, nickname *string) (model.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contacts, err := s.store.LoadContacts(ctx)
	if err != nil {
		return model.Contact{}, err
	}

	i := slices.IndexFunc(contacts, func(c model.Contact) bool { return c.ID == id })
	if i < 0 {
		return model.Contact{}, ErrContactNotFound
	}
	contacts[i].Nickname = nickname

	if err := s.store.SaveContacts(ctx, contacts); err != nil {
		return model.Contact{}, err
	}
	return contacts[i], nil
}

// StartNode binds the endpoint derived for the relationship with contactPubkey.
func (s *Service) StartNode(ctx context.Context, contactPubkey string) (string, error) {
	keys, err := s.identity(ctx)
	if err != nil {
		return "", err
	}
	return s.node.StartForContact(ctx, keys.SecretBytes(), keys.PublicKeyHex(), contactPubkey)
}

func (s *Service) StopNode() error {
	return s.node.Stop()
}

func (s *Service) NodeStatus() model.NodeStatus {
	return s.node.Status()
}

func (s *Service) NodeAddrs() ([]string, error) {
	return s.node.Addrs()
}

func (s *Service) ConnectContact(ctx context.Context, contactPubkey, remoteNodeID string) error {
	return s.node.Connect(ctx, remoteNodeID, contactPubkey)
}

// AcceptContact waits for contactPubkey to dial in. A non-empty remoteNodeID
// rejects connections from any other identity.
func (s *Service) AcceptContact(ctx context.Context, contactPubkey, remoteNodeID string) (string, error) {
	return s.node.Accept(ctx, contactPubkey, remoteNodeID)
}

func (s *Service) manager(ctx context.Context) (*chat.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.loadKeys(ctx); err != nil {
		return nil, err
	}
	return s.chat, nil
}

func (s *Service) SendMessage(ctx context.Context, contactPubkey, content string) (model.ChatMessage, error) {
	m, err := s.manager(ctx)
	if err != nil {
		return model.ChatMessage{}, err
	}

	// The borrow keeps Stop from closing the connection mid-send.
	conn, _, release, err := s.node.Borrow(ctx, contactPubkey)
	if err != nil {
		return model.ChatMessage{}, fmt.Errorf("%w: %w", chat.ErrNotConnected, err)
	}
	defer release()
	return m.Send(ctx, conn, contactPubkey, content)
}

func (s *Service) ReceiveMessage(ctx context.Context, contactPubkey string) (model.ChatMessage, error) {
	m, err := s.manager(ctx)
	if err != nil {
		return model.ChatMessage{}, err
	}

	// Waiting for a message is cut short when the node stops.
	conn, rctx, release, err := s.node.Borrow(ctx, contactPubkey)
	if err != nil {
		return model.ChatMessage{}, fmt.Errorf("%w: %w", chat.ErrNotConnected, err)
	}
	defer release()
	return m.Receive(rctx, conn, contactPubkey)
}

func (s *Service) Messages(ctx context.Context, contactPubkey string) ([]model.ChatMessage, error) {
	m, err := s.manager(ctx)
	if err != nil {
		return nil, err
	}
	return m.Messages(contactPubkey), nil
}

func (s *Service) ClearMessages(ctx context.Context, contactPubkey string) error {
	m, err := s.manager(ctx)
	if err != nil {
		return err
	}
	m.Clear(contactPubkey)
	return nil
}

func (s *Service) Close(ctx context.Context) error {
	return errors.Join(s.node.Stop(), s.store.Close(ctx))
}
