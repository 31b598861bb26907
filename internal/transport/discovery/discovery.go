package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sneakernet/internal/utils/log"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

const (
	ServiceType = "_sneakernet._udp"
	Domain      = "local."

	txtPeer = "peer"
	txtAddr = "addr"

	// DNS labels are capped at 63 bytes.
	maxInstance = 63
)

var ErrNotFound = errors.New("peer not found on local network")

// Advertisement announces one endpoint on the local network until shut down.
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise registers id and its multiaddrs under ServiceType.
func Advertise(id string, port int, addrs []string) (*Advertisement, error) {
	txt := []string{txtPeer + "=" + id}
	for _, addr := range addrs {
		txt = append(txt, txtAddr+"="+addr)
	}

	server, err := zeroconf.Register(instanceName(id), ServiceType, Domain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register service: %w", err)
	}

	log.Debug("advertising endpoint", zap.String("peer", id), zap.Int("port", port))
	return &Advertisement{server: server}, nil
}

func (a *Advertisement) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
}

// Lookup browses the local network until id is announced and returns its
// addresses, or ErrNotFound once ctx is done.
func Lookup(ctx context.Context, id string) ([]string, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 16)
	if err := resolver.Browse(ctx, ServiceType, Domain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse: %w", err)
	}

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return nil, ErrNotFound
			}
			if addrs := match(entry, id); len(addrs) > 0 {
				return addrs, nil
			}
		case <-ctx.Done():
			return nil, ErrNotFound
		}
	}
}

func match(entry *zeroconf.ServiceEntry, id string) []string {
	if entry == nil {
		return nil
	}

	txt := parseTXT(entry.Text)
	if len(txt[txtPeer]) == 0 || txt[txtPeer][0] != id {
		return nil
	}
	return txt[txtAddr]
}

func instanceName(id string) string {
	name := "sneakernet-" + id
	if len(name) > maxInstance {
		name = name[:maxInstance]
	}
	return name
}

// parseTXT groups TXT records by key, keeping repeated keys in order.
func parseTXT(records []string) map[string][]string {
	values := make(map[string][]string, len(records))
	for _, record := range records {
		key, value, ok := strings.Cut(record, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		values[key] = append(values[key], strings.TrimSpace(value))
	}
	return values
}
