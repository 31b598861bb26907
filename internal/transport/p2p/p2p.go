package p2p

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"sneakernet/internal/transport"
	"sneakernet/internal/transport/discovery"
	"sneakernet/internal/utils/log"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"
)

const (
	chatProtocol = protocol.ID(transport.ChatProtocol)

	acceptBacklog = 16
	streamBacklog = 64
)

type (
	Options struct {
		ListenAddrs []string
		UseRelays   bool
		// RelayAddrs are full multiaddrs (including /p2p/<id>) of static relays.
		RelayAddrs []string
		MDNS       bool
		// LookupTimeout bounds the mDNS browse when dialing a peer with no known address.
		LookupTimeout time.Duration
	}

	// Binder binds libp2p hosts whose peer ID is derived from the given key.
	Binder struct {
		opts Options
	}

	endpoint struct {
		host  host.Host
		opts  Options
		adv   *discovery.Advertisement
		relay string

		mu     sync.Mutex
		conns  map[peer.ID]*conn
		accept chan *conn
		done   chan struct{}
		once   sync.Once
	}

	conn struct {
		ep     *endpoint
		remote peer.ID
		in     chan network.Stream
		done   chan struct{}
		once   sync.Once
	}

	sendStream struct {
		network.Stream
	}
)

var (
	_ transport.Binder     = (*Binder)(nil)
	_ transport.Endpoint   = (*endpoint)(nil)
	_ transport.Conn       = (*conn)(nil)
	_ transport.SendStream = sendStream{}
	_ transport.RecvStream = network.Stream(nil)
)

func NewBinder(opts Options) *Binder {
	if opts.LookupTimeout == 0 {
		opts.LookupTimeout = 5 * time.Second
	}
	return &Binder{opts: opts}
}

// EndpointID returns the peer ID a host bound to the key behind pub announces.
func (b *Binder) EndpointID(pub ed25519.PublicKey) (string, error) {
	pk, err := crypto.UnmarshalEd25519PublicKey(pub)
	if err != nil {
		return "", err
	}
	id, err := peer.IDFromPublicKey(pk)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (b *Binder) Bind(ctx context.Context, key ed25519.PrivateKey) (transport.Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sk, err := crypto.UnmarshalEd25519PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("invalid identity key: %w", err)
	}

	opts := []libp2p.Option{libp2p.Identity(sk)}
	if len(b.opts.ListenAddrs) > 0 {
		opts = append(opts, libp2p.ListenAddrStrings(b.opts.ListenAddrs...))
	}

	relay := ""
	if b.opts.UseRelays {
		relays, err := parseAddrInfos(b.opts.RelayAddrs)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.EnableRelay(), libp2p.EnableHolePunching(), libp2p.NATPortMap())
		if len(relays) > 0 {
			opts = append(opts, libp2p.EnableAutoRelayWithStaticRelays(relays))
			relay = b.opts.RelayAddrs[0]
		}
	} else {
		opts = append(opts, libp2p.DisableRelay())
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}

	ep := &endpoint{
		host:   h,
		opts:   b.opts,
		relay:  relay,
		conns:  make(map[peer.ID]*conn),
		accept: make(chan *conn, acceptBacklog),
		done:   make(chan struct{}),
	}
	h.SetStreamHandler(chatProtocol, ep.handleStream)
	h.Network().Notify(&network.NotifyBundle{ConnectedF: ep.connected})

	if b.opts.MDNS {
		ep.advertise()
	}

	log.Info("endpoint bound", zap.String("peer", h.ID().String()), zap.Strings("addrs", ep.Addrs()))
	return ep, nil
}

func parseAddrInfos(addrs []string) ([]peer.AddrInfo, error) {
	infos := make([]peer.AddrInfo, 0, len(addrs))
	for _, s := range addrs {
		info, err := peer.AddrInfoFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid relay address %q: %w", s, err)
		}
		infos = append(infos, *info)
	}
	return infos, nil
}

// advertise announces the host over mDNS. Failure only costs LAN discovery.
func (e *endpoint) advertise() {
	port := 0
	addrs := make([]string, 0, len(e.host.Addrs()))
	for _, addr := range e.host.Addrs() {
		addrs = append(addrs, addr.String())
		if port != 0 {
			continue
		}
		for _, code := range []int{ma.P_TCP, ma.P_UDP} {
			if v, err := addr.ValueForProtocol(code); err == nil {
				if p, err := strconv.Atoi(v); err == nil {
					port = p
					break
				}
			}
		}
	}

	adv, err := discovery.Advertise(e.host.ID().String(), port, addrs)
	if err != nil {
		log.Warn("mDNS advertisement failed", zap.Error(err))
		return
	}
	e.adv = adv
}

func (e *endpoint) ID() string { return e.host.ID().String() }

func (e *endpoint) Addrs() []string {
	full, err := peer.AddrInfoToP2pAddrs(&peer.AddrInfo{ID: e.host.ID(), Addrs: e.host.Addrs()})
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(full))
	for _, addr := range full {
		out = append(out, addr.String())
	}
	return out
}

func (e *endpoint) RelayAddr() string { return e.relay }

// Connect dials remoteID, which is either a bare peer ID or a full
// multiaddr ending in /p2p/<id>.
func (e *endpoint) Connect(ctx context.Context, remoteID string) (transport.Conn, error) {
	select {
	case <-e.done:
		return nil, transport.ErrClosed
	default:
	}

	info, err := e.resolve(ctx, remoteID)
	if err != nil {
		return nil, err
	}

	if err := e.host.Connect(ctx, info); err != nil {
		return nil, err
	}

	log.Debug("connected to peer", zap.String("peer", info.ID.String()))
	return e.conn(info.ID, false), nil
}

func (e *endpoint) resolve(ctx context.Context, remoteID string) (peer.AddrInfo, error) {
	var info peer.AddrInfo
	if strings.HasPrefix(remoteID, "/") {
		parsed, err := peer.AddrInfoFromString(remoteID)
		if err != nil {
			return info, fmt.Errorf("%w: %v", transport.ErrInvalidNodeID, err)
		}
		info = *parsed
	} else {
		id, err := peer.Decode(remoteID)
		if err != nil {
			return info, fmt.Errorf("%w: %v", transport.ErrInvalidNodeID, err)
		}
		info.ID = id
	}

	if info.ID == e.host.ID() {
		return info, fmt.Errorf("%w: cannot dial self", transport.ErrInvalidNodeID)
	}

	if len(info.Addrs) == 0 && len(e.host.Peerstore().Addrs(info.ID)) == 0 && e.opts.MDNS {
		lctx, cancel := context.WithTimeout(ctx, e.opts.LookupTimeout)
		defer cancel()

		found, err := discovery.Lookup(lctx, info.ID.String())
		if err != nil {
			log.Debug("mDNS lookup failed", zap.String("peer", info.ID.String()), zap.Error(err))
			return info, nil
		}
		for _, s := range found {
			addr, err := ma.NewMultiaddr(s)
			if err != nil {
				continue
			}
			info.Addrs = append(info.Addrs, addr)
		}
		e.host.Peerstore().AddAddrs(info.ID, info.Addrs, peerstore.TempAddrTTL)
	}

	return info, nil
}

func (e *endpoint) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case c := <-e.accept:
		return c, nil
	case <-e.done:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *endpoint) Close() error {
	var err error
	e.once.Do(func() {
		close(e.done)
		e.adv.Shutdown()

		e.mu.Lock()
		conns := make([]*conn, 0, len(e.conns))
		for _, c := range e.conns {
			conns = append(conns, c)
		}
		e.mu.Unlock()

		for _, c := range conns {
			_ = c.Close()
		}

		e.host.RemoveStreamHandler(chatProtocol)
		err = e.host.Close()
		log.Info("endpoint closed", zap.String("peer", e.host.ID().String()))
	})
	return err
}

// conn returns the tracked connection to id, creating it if needed. A newly
// created inbound connection is queued for Accept.
func (e *endpoint) conn(id peer.ID, inbound bool) *conn {
	e.mu.Lock()
	c, ok := e.conns[id]
	if !ok {
		c = &conn{
			ep:     e,
			remote: id,
			in:     make(chan network.Stream, streamBacklog),
			done:   make(chan struct{}),
		}
		e.conns[id] = c
	}
	e.mu.Unlock()

	if !ok && inbound {
		select {
		case e.accept <- c:
		default:
			log.Warn("accept backlog full, dropping peer", zap.String("peer", id.String()))
		}
	}
	return c
}

func (e *endpoint) remove(c *conn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conns[c.remote] == c {
		delete(e.conns, c.remote)
	}
}

func (e *endpoint) connected(_ network.Network, nc network.Conn) {
	if nc.Stat().Direction == network.DirInbound {
		e.conn(nc.RemotePeer(), true)
	}
}

func (e *endpoint) handleStream(s network.Stream) {
	c := e.conn(s.Conn().RemotePeer(), true)
	select {
	case c.in <- s:
	case <-c.done:
		_ = s.Reset()
	case <-e.done:
		_ = s.Reset()
	}
}

func (c *conn) RemoteID() string { return c.remote.String() }

func (c *conn) OpenUni(ctx context.Context) (transport.SendStream, error) {
	select {
	case <-c.done:
		return nil, transport.ErrClosed
	default:
	}

	s, err := c.ep.host.NewStream(ctx, c.remote, chatProtocol)
	if err != nil {
		return nil, err
	}
	return sendStream{s}, nil
}

func (c *conn) AcceptUni(ctx context.Context) (transport.RecvStream, error) {
	select {
	case s := <-c.in:
		return s, nil
	case <-c.done:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.ep.remove(c)
		err = c.ep.host.Network().ClosePeer(c.remote)
	})
	return err
}

func (s sendStream) Finish() error {
	if err := s.Stream.CloseWrite(); err != nil {
		return err
	}
	return s.Stream.CloseRead()
}
