package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"sneakernet/internal/config"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.Flags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".sneakernet"), cfg.DataDir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, config.StoreFile, cfg.Store.Driver)
	assert.Equal(t, filepath.Join(home, ".sneakernet", "sneakernet.json"), cfg.StorePath())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "sneakernet", cfg.Mongo.Database)
	assert.Equal(t, "localhost:9090", cfg.Server.Addr)
	assert.Equal(t, config.ReplayMemory, cfg.Replay.Driver)

	nc := cfg.NodeConfig()
	assert.True(t, nc.UseRelays)
	assert.True(t, nc.MDNS)
	assert.Len(t, nc.ListenAddrs, 2)
}

func TestLoad_EnvAndFlags(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SNEAKERNET_STORE_DRIVER", "redis")
	t.Setenv("SNEAKERNET_REDIS_ADDR", "cache:6380")

	cfg, err := config.Load(newFlags(t))
	require.NoError(t, err)
	assert.Equal(t, config.StoreRedis, cfg.Store.Driver)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)

	cfg, err = config.Load(newFlags(t, "--store", "mongo", "--relays=false", "--addr", ":8080"))
	require.NoError(t, err)
	assert.Equal(t, config.StoreMongo, cfg.Store.Driver)
	assert.False(t, cfg.Node.UseRelays)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_ConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/sneakernet
store:
  file: /tmp/state.json
node:
  mdns: false
  relay_addrs:
    - /ip4/1.2.3.4/tcp/4001/p2p/12D3KooWExample
replay:
  driver: redis
`), 0o600))

	cfg, err := config.Load(newFlags(t, "--config", path))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/sneakernet", cfg.DataDir)
	assert.Equal(t, "/tmp/state.json", cfg.StorePath())
	assert.False(t, cfg.Node.MDNS)
	assert.Equal(t, []string{"/ip4/1.2.3.4/tcp/4001/p2p/12D3KooWExample"}, cfg.Node.RelayAddrs)
	assert.Equal(t, config.ReplayRedis, cfg.Replay.Driver)
}

func TestValidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := config.Load(newFlags(t, "--store", "sqlite"))
	assert.ErrorContains(t, err, "unknown store driver")

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	cfg.Replay.Driver = "disk"
	assert.ErrorContains(t, cfg.Validate(), "unknown replay driver")

	cfg.Replay.Driver = config.ReplayMemory
	cfg.Server.Addr = ""
	assert.Error(t, cfg.Validate())
}
