package redisstore_test

import (
	"context"
	"os"
	"testing"

	"sneakernet/internal/model"
	"sneakernet/internal/repository/redisstore"
	redisSvc "sneakernet/internal/service/redis"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against SNEAKERNET_TEST_REDIS (host:port). The selected DB is flushed.
func newStore(t *testing.T) *redisstore.Store {
	t.Helper()
	addr := os.Getenv("SNEAKERNET_TEST_REDIS")
	if addr == "" {
		t.Skip("SNEAKERNET_TEST_REDIS not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	require.NoError(t, rdb.FlushDB(context.Background()).Err())

	s := redisstore.New(redisSvc.NewRedis(rdb))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	keys, err := s.LoadKeys(ctx)
	require.NoError(t, err)
	assert.Nil(t, keys)

	stored := model.StoredKeys{SecretKeyHex: "aa", PublicKeyHex: "bb"}
	require.NoError(t, s.SaveKeys(ctx, stored))
	keys, err = s.LoadKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, &stored, keys)

	contacts, err := s.LoadContacts(ctx)
	require.NoError(t, err)
	assert.Empty(t, contacts)

	nick := "Bob"
	want := []model.Contact{
		{ID: "2", NostrPubkey: "p2", EndpointID: "e2", ExchangedAt: 20, Nickname: &nick},
		{ID: "1", NostrPubkey: "p1", EndpointID: "e1", ExchangedAt: 10},
	}
	require.NoError(t, s.SaveContacts(ctx, want))
	got, err := s.LoadContacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.SaveContacts(ctx, nil))
	got, err = s.LoadContacts(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}
