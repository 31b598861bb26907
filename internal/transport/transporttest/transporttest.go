// Package transporttest provides an in-memory transport for tests.
package transporttest

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"

	"sneakernet/internal/transport"
)

var (
	ErrStreamReset = errors.New("stream reset")
	ErrUnreachable = errors.New("peer unreachable")
)

type (
	// Network routes connections between endpoints bound on it.
	Network struct {
		mu        sync.Mutex
		endpoints map[string]*Endpoint

		// BindErr, when set, is returned by the next Bind calls.
		BindErr   error
		writeHook func()
	}

	Endpoint struct {
		net    *Network
		id     string
		accept chan *Conn
		done   chan struct{}
		once   sync.Once
	}

	Conn struct {
		net    *Network
		local  string
		remote string
		in     chan *pipe
		peer   *Conn
		done   chan struct{}
		once   *sync.Once
	}

	pipe struct {
		mu       sync.Mutex
		cond     *sync.Cond
		buf      bytes.Buffer
		finished bool
		reset    bool
	}

	sendStream struct {
		p    *pipe
		hook func()
	}
	recvStream struct{ p *pipe }
)

var (
	_ transport.Binder     = (*Network)(nil)
	_ transport.Endpoint   = (*Endpoint)(nil)
	_ transport.Conn       = (*Conn)(nil)
	_ transport.SendStream = sendStream{}
	_ transport.RecvStream = recvStream{}
)

func NewNetwork() *Network {
	return &Network{endpoints: make(map[string]*Endpoint)}
}

// ID returns the identity an endpoint bound with key is announced under.
func ID(key ed25519.PrivateKey) string {
	return hex.EncodeToString(key.Public().(ed25519.PublicKey))
}

func (n *Network) EndpointID(pub ed25519.PublicKey) (string, error) {
	if len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("invalid public key length %d", len(pub))
	}
	return hex.EncodeToString(pub), nil
}

func (n *Network) Bind(ctx context.Context, key ed25519.PrivateKey) (transport.Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid key length %d", len(key))
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.BindErr != nil {
		return nil, n.BindErr
	}

	id := ID(key)
	if _, ok := n.endpoints[id]; ok {
		return nil, fmt.Errorf("identity %s already bound", id)
	}

	ep := &Endpoint{
		net:    n,
		id:     id,
		accept: make(chan *Conn, 16),
		done:   make(chan struct{}),
	}
	n.endpoints[id] = ep
	return ep, nil
}

// SetWriteHook installs f to run before every write on streams opened from
// now on. Tests use it to hold a send mid-flight.
func (n *Network) SetWriteHook(f func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.writeHook = f
}

func (n *Network) lookup(id string) (*Endpoint, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ep, ok := n.endpoints[id]
	return ep, ok
}

func (e *Endpoint) ID() string { return e.id }

func (e *Endpoint) Addrs() []string { return []string{"mem://" + e.id} }

func (e *Endpoint) RelayAddr() string { return "" }

func (e *Endpoint) Connect(ctx context.Context, remoteID string) (transport.Conn, error) {
	if raw, err := hex.DecodeString(remoteID); err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: %q", transport.ErrInvalidNodeID, remoteID)
	}

	select {
	case <-e.done:
		return nil, transport.ErrClosed
	default:
	}

	if remoteID == e.id {
		return nil, fmt.Errorf("%w: cannot dial self", transport.ErrInvalidNodeID)
	}

	remote, ok := e.net.lookup(remoteID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnreachable, remoteID)
	}

	local, far := newConnPair(e.net, e.id, remoteID)
	select {
	case remote.accept <- far:
		return local, nil
	case <-remote.done:
		return nil, fmt.Errorf("%w: %s", ErrUnreachable, remoteID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Endpoint) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case c := <-e.accept:
		return c, nil
	case <-e.done:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Endpoint) Close() error {
	e.once.Do(func() {
		close(e.done)
		e.net.mu.Lock()
		delete(e.net.endpoints, e.id)
		e.net.mu.Unlock()
	})
	return nil
}

func newConnPair(n *Network, a, b string) (*Conn, *Conn) {
	done := make(chan struct{})
	once := &sync.Once{}
	ca := &Conn{net: n, local: a, remote: b, in: make(chan *pipe, 64), done: done, once: once}
	cb := &Conn{net: n, local: b, remote: a, in: make(chan *pipe, 64), done: done, once: once}
	ca.peer, cb.peer = cb, ca
	return ca, cb
}

func (c *Conn) RemoteID() string { return c.remote }

// Closed reports whether either side closed the connection.
func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Conn) OpenUni(ctx context.Context) (transport.SendStream, error) {
	if c.Closed() {
		return nil, transport.ErrClosed
	}

	c.net.mu.Lock()
	hook := c.net.writeHook
	c.net.mu.Unlock()

	p := newPipe()
	select {
	case c.peer.in <- p:
		return sendStream{p: p, hook: hook}, nil
	case <-c.done:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Conn) AcceptUni(ctx context.Context) (transport.RecvStream, error) {
	select {
	case p := <-c.in:
		return recvStream{p}, nil
	case <-c.done:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Conn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func newPipe() *pipe {
	p := &pipe{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (s sendStream) Write(b []byte) (int, error) {
	if s.hook != nil {
		s.hook()
	}
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	switch {
	case s.p.reset:
		return 0, ErrStreamReset
	case s.p.finished:
		return 0, io.ErrClosedPipe
	}
	n, _ := s.p.buf.Write(b)
	s.p.cond.Broadcast()
	return n, nil
}

func (s sendStream) Finish() error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.finished = true
	s.p.cond.Broadcast()
	return nil
}

func (s sendStream) Reset() error { s.p.abort(); return nil }

func (s recvStream) Read(b []byte) (int, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	for s.p.buf.Len() == 0 && !s.p.finished && !s.p.reset {
		s.p.cond.Wait()
	}
	if s.p.reset {
		return 0, ErrStreamReset
	}
	if s.p.buf.Len() == 0 {
		return 0, io.EOF
	}
	return s.p.buf.Read(b)
}

func (s recvStream) Close() error { s.p.abort(); return nil }

func (s recvStream) Reset() error { s.p.abort(); return nil }

func (p *pipe) abort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset = true
	p.cond.Broadcast()
}
