package node

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"sneakernet/internal/model"
	"sneakernet/internal/protocol/derive"
	"sneakernet/internal/transport"
	"sneakernet/internal/transport/p2p"
	"sneakernet/internal/utils/log"

	"go.uber.org/zap"
)

var (
	ErrNotStarted       = errors.New("endpoint not started")
	ErrAlreadyRunning   = errors.New("endpoint already running")
	ErrEndpointCreation = errors.New("failed to create endpoint")
	ErrConnectionFailed = errors.New("failed to connect")
	ErrKeyDerivation    = errors.New("key derivation failed")
	ErrNotConnected     = errors.New("not connected to contact")
	ErrInvalidNodeID    = transport.ErrInvalidNodeID
)

type (
	Config struct {
		UseRelays   bool
		RelayAddrs  []string
		ListenAddrs []string
		MDNS        bool
	}

	// Node owns at most one bound endpoint and the live connections made
	// through it, keyed by the contact's long-term public key.
	Node struct {
		mu       sync.RWMutex
		binder   transport.Binder
		endpoint transport.Endpoint
		contact  string
		conns    map[string]transport.Conn

		// running is cancelled when Stop begins; inflight counts borrowed
		// connections Stop has to wait for.
		running  context.Context
		halt     context.CancelFunc
		inflight sync.WaitGroup
	}
)

func DefaultConfig() Config {
	return Config{
		UseRelays:   true,
		ListenAddrs: []string{"/ip4/0.0.0.0/udp/0/quic-v1", "/ip4/0.0.0.0/tcp/0"},
		MDNS:        true,
	}
}

// Binder returns the libp2p binder described by c.
func (c Config) Binder() transport.Binder {
	return p2p.NewBinder(p2p.Options{
		ListenAddrs: c.ListenAddrs,
		UseRelays:   c.UseRelays,
		RelayAddrs:  c.RelayAddrs,
		MDNS:        c.MDNS,
	})
}

func New(binder transport.Binder) *Node {
	return &Node{
		binder: binder,
		conns:  make(map[string]transport.Conn),
	}
}

// Binder exposes the binder so callers can compute endpoint IDs without binding.
func (n *Node) Binder() transport.Binder { return n.binder }

// Start binds an endpoint to key and returns its transport identity.
func (n *Node) Start(ctx context.Context, key ed25519.PrivateKey) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.start(ctx, key)
}

func (n *Node) start(ctx context.Context, key ed25519.PrivateKey) (string, error) {
	if n.endpoint != nil {
		return "", ErrAlreadyRunning
	}

	ep, err := n.binder.Bind(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEndpointCreation, err)
	}

	n.endpoint = ep
	n.running, n.halt = context.WithCancel(context.Background())
	log.Info("node started", zap.String("node_id", ep.ID()))
	return ep.ID(), nil
}

// StartForContact derives the relationship key for theirPub and binds to it.
func (n *Node) StartForContact(ctx context.Context, secret []byte, myPub, theirPub string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.endpoint != nil {
		return "", ErrAlreadyRunning
	}

	key, _, err := derive.Keypair(secret, myPub, theirPub)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrKeyDerivation, err)
	}

	id, err := n.start(ctx, key)
	if err != nil {
		return "", err
	}
	n.contact = theirPub
	return id, nil
}

// Stop cancels operations waiting on borrowed connections, waits for every
// borrow to be released, then closes every connection and the endpoint.
// Stopping an unbound node is a no-op.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.endpoint == nil {
		return nil
	}

	n.halt()
	n.inflight.Wait()

	for key, conn := range n.conns {
		if err := conn.Close(); err != nil {
			log.Warn("failed to close connection", zap.String("contact", key), zap.Error(err))
		}
		delete(n.conns, key)
	}

	err := n.endpoint.Close()
	log.Info("node stopped", zap.String("node_id", n.endpoint.ID()))
	n.endpoint = nil
	n.contact = ""
	n.running, n.halt = nil, nil
	return err
}

// Status returns a snapshot that shares no state with the node.
func (n *Node) Status() model.NodeStatus {
	n.mu.RLock()
	defer n.mu.RUnlock()

	status := model.NodeStatus{
		Running:           n.endpoint != nil,
		ConnectedContacts: slices.Sorted(maps.Keys(n.conns)),
	}
	if n.endpoint != nil {
		id := n.endpoint.ID()
		status.NodeID = &id
		if relay := n.endpoint.RelayAddr(); relay != "" {
			status.RelayURL = &relay
		}
	}
	return status
}

// Contact returns the contact the node was started for, if any.
func (n *Node) Contact() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.contact
}

// Addrs lists the addresses the bound endpoint listens on.
func (n *Node) Addrs() ([]string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.endpoint == nil {
		return nil, ErrNotStarted
	}
	return n.endpoint.Addrs(), nil
}

// Connect dials remoteID and stores the connection under contactKey,
// replacing any previous one. The table is only touched once the dial
// has succeeded.
func (n *Node) Connect(ctx context.Context, remoteID, contactKey string) error {
	ep, err := n.current()
	if err != nil {
		return err
	}

	conn, err := ep.Connect(ctx, remoteID)
	if err != nil {
		if errors.Is(err, transport.ErrInvalidNodeID) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := n.store(ep, contactKey, conn); err != nil {
		return err
	}
	log.Info("connected to contact", zap.String("contact", contactKey), zap.String("remote", conn.RemoteID()))
	return nil
}

// Accept waits for an inbound connection and stores it under contactKey.
// When remoteID is set, connections from any other identity are closed and
// skipped. It returns the remote transport identity.
func (n *Node) Accept(ctx context.Context, contactKey, remoteID string) (string, error) {
	ep, err := n.current()
	if err != nil {
		return "", err
	}

	var conn transport.Conn
	for {
		conn, err = ep.Accept(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
		if remoteID == "" || conn.RemoteID() == remoteID {
			break
		}
		log.Warn("rejected unexpected peer",
			zap.String("contact", contactKey),
			zap.String("remote", conn.RemoteID()),
			zap.String("expected", remoteID))
		_ = conn.Close()
	}

	if err := n.store(ep, contactKey, conn); err != nil {
		return "", err
	}
	log.Info("accepted contact", zap.String("contact", contactKey), zap.String("remote", conn.RemoteID()))
	return conn.RemoteID(), nil
}

func (n *Node) current() (transport.Endpoint, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.endpoint == nil {
		return nil, ErrNotStarted
	}
	return n.endpoint, nil
}

func (n *Node) store(ep transport.Endpoint, contactKey string, conn transport.Conn) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	// The node was stopped or restarted while dialing.
	if n.endpoint != ep {
		_ = conn.Close()
		return ErrNotStarted
	}

	if prev, ok := n.conns[contactKey]; ok && prev != conn {
		_ = prev.Close()
	}
	n.conns[contactKey] = conn
	return nil
}

func (n *Node) Connection(contactKey string) (transport.Conn, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.endpoint == nil {
		return nil, ErrNotStarted
	}
	conn, ok := n.conns[contactKey]
	if !ok {
		return nil, ErrNotConnected
	}
	return conn, nil
}

// Borrow pins the connection to contactKey until release is called; Stop
// waits for every outstanding release. The returned context is derived from
// ctx and is also cancelled once Stop begins, for operations that would
// otherwise hold Stop up indefinitely.
func (n *Node) Borrow(ctx context.Context, contactKey string) (transport.Conn, context.Context, func(), error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.endpoint == nil {
		return nil, nil, nil, ErrNotStarted
	}
	conn, ok := n.conns[contactKey]
	if !ok {
		return nil, nil, nil, ErrNotConnected
	}

	n.inflight.Add(1)
	bctx, cancel := context.WithCancel(ctx)
	unwatch := context.AfterFunc(n.running, cancel)

	var once sync.Once
	release := func() {
		once.Do(func() {
			unwatch()
			cancel()
			n.inflight.Done()
		})
	}
	return conn, bctx, release, nil
}

func (n *Node) Disconnect(contactKey string) error {
	n.mu.Lock()
	conn, ok := n.conns[contactKey]
	delete(n.conns, contactKey)
	n.mu.Unlock()

	if !ok {
		return ErrNotConnected
	}
	return conn.Close()
}
