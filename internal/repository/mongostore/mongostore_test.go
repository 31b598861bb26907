package mongostore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"sneakernet/internal/model"
	"sneakernet/internal/repository/mongostore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Runs against SNEAKERNET_TEST_MONGO (a mongodb:// URI) in a throwaway database.
func newStore(t *testing.T) *mongostore.Store {
	t.Helper()
	uri := os.Getenv("SNEAKERNET_TEST_MONGO")
	if uri == "" {
		t.Skip("SNEAKERNET_TEST_MONGO not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database("sneakernet_test_" + uuid.NewString()[:8])
	s := mongostore.New(client, db)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = s.Close(context.Background())
	})
	return s
}

func TestMongoStore(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	keys, err := s.LoadKeys(ctx)
	require.NoError(t, err)
	assert.Nil(t, keys)

	stored := model.StoredKeys{SecretKeyHex: "aa", PublicKeyHex: "bb"}
	require.NoError(t, s.SaveKeys(ctx, stored))
	require.NoError(t, s.SaveKeys(ctx, stored))
	keys, err = s.LoadKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, &stored, keys)

	nick := "Bob"
	want := []model.Contact{
		{ID: "2", NostrPubkey: "p2", EndpointID: "e2", ExchangedAt: 20, Nickname: &nick},
		{ID: "1", NostrPubkey: "p1", EndpointID: "e1", ExchangedAt: 10},
	}
	require.NoError(t, s.SaveContacts(ctx, want))
	got, err := s.LoadContacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, s.SaveContacts(ctx, want[1:]))
	got, err = s.LoadContacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, want[1:], got)
}
