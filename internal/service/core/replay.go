package core

import (
	"context"
	"sync"
	"time"

	"sneakernet/internal/service/redis"
)

const replayPrefix = "sneakernet:nonce:"

type (
	// ReplayGuard remembers exchange nonces for as long as a message
	// carrying them could still pass the freshness check.
	ReplayGuard interface {
		// Seen records (pubkey, nonce) and reports whether it was already recorded.
		Seen(ctx context.Context, pubkey, nonce string, ttl time.Duration) (bool, error)
	}

	MemoryReplayGuard struct {
		mu   sync.Mutex
		seen map[string]time.Time
		now  func() time.Time
	}

	RedisReplayGuard struct {
		redisService *redis.RedisService
	}
)

var (
	_ ReplayGuard = (*MemoryReplayGuard)(nil)
	_ ReplayGuard = (*RedisReplayGuard)(nil)
)

func NewMemoryReplayGuard() *MemoryReplayGuard {
	return &MemoryReplayGuard{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (g *MemoryReplayGuard) Seen(_ context.Context, pubkey, nonce string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for k, expiry := range g.seen {
		if !now.Before(expiry) {
			delete(g.seen, k)
		}
	}

	key := pubkey + ":" + nonce
	if _, ok := g.seen[key]; ok {
		return true, nil
	}
	g.seen[key] = now.Add(ttl)
	return false, nil
}

func NewRedisReplayGuard(redisSvc *redis.RedisService) *RedisReplayGuard {
	return &RedisReplayGuard{redisService: redisSvc}
}

func (g *RedisReplayGuard) Seen(ctx context.Context, pubkey, nonce string, ttl time.Duration) (bool, error) {
	fresh, err := g.redisService.SetNX(ctx, replayPrefix+pubkey+":"+nonce, 1, ttl)
	if err != nil {
		return false, err
	}
	return !fresh, nil
}
