package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"sneakernet/internal/node"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StoreFile  = "file"
	StoreRedis = "redis"
	StoreMongo = "mongo"

	ReplayMemory = "memory"
	ReplayRedis  = "redis"
)

type (
	Config struct {
		DataDir string       `mapstructure:"data_dir"`
		Log     LogConfig    `mapstructure:"log"`
		Store   StoreConfig  `mapstructure:"store"`
		Redis   RedisConfig  `mapstructure:"redis"`
		Mongo   MongoConfig  `mapstructure:"mongo"`
		Node    NodeConfig   `mapstructure:"node"`
		Server  ServerConfig `mapstructure:"server"`
		Replay  ReplayConfig `mapstructure:"replay"`
	}

	LogConfig struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	}

	StoreConfig struct {
		Driver     string `mapstructure:"driver"`
		File       string `mapstructure:"file"`
		Passphrase string `mapstructure:"passphrase"`
	}

	RedisConfig struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	}

	MongoConfig struct {
		URI      string `mapstructure:"uri"`
		Database string `mapstructure:"database"`
	}

	NodeConfig struct {
		UseRelays   bool     `mapstructure:"use_relays"`
		RelayAddrs  []string `mapstructure:"relay_addrs"`
		ListenAddrs []string `mapstructure:"listen_addrs"`
		MDNS        bool     `mapstructure:"mdns"`
	}

	ServerConfig struct {
		Addr string `mapstructure:"addr"`
	}

	ReplayConfig struct {
		Driver string `mapstructure:"driver"`
	}
)

// Flags registers the command line flags Load understands.
func Flags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to config file")
	fs.String("data-dir", "", "Directory holding the local store")
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.String("store", StoreFile, "Store driver (file, redis, mongo)")
	fs.String("passphrase", "", "Passphrase sealing the secret key in the file store")
	fs.String("addr", "localhost:9090", "HTTP listen address")
	fs.Bool("relays", true, "Use relays for NAT traversal")
	fs.Bool("mdns", true, "Advertise and discover peers on the local network")
}

// Load reads defaults, the optional sneakernet.yaml, SNEAKERNET_* env vars and
// flags, in increasing priority. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetConfigName("sneakernet")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.sneakernet")

	v.AutomaticEnv()
	v.SetEnvPrefix("SNEAKERNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".sneakernet")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("store.driver", StoreFile)
	v.SetDefault("store.file", "sneakernet.json")
	v.SetDefault("store.passphrase", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "sneakernet")

	def := node.DefaultConfig()
	v.SetDefault("node.use_relays", def.UseRelays)
	v.SetDefault("node.relay_addrs", []string{})
	v.SetDefault("node.listen_addrs", def.ListenAddrs)
	v.SetDefault("node.mdns", def.MDNS)

	v.SetDefault("server.addr", "localhost:9090")

	v.SetDefault("replay.driver", ReplayMemory)
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	bindings := map[string]string{
		"data_dir":         "data-dir",
		"log.level":        "log-level",
		"store.driver":     "store",
		"store.passphrase": "passphrase",
		"server.addr":      "addr",
		"node.use_relays":  "relays",
		"node.mdns":        "mdns",
	}
	for key, name := range bindings {
		if f := fs.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
	}
	return nil
}

func (c *Config) Validate() error {
	if !slices.Contains([]string{StoreFile, StoreRedis, StoreMongo}, c.Store.Driver) {
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if !slices.Contains([]string{ReplayMemory, ReplayRedis}, c.Replay.Driver) {
		return fmt.Errorf("unknown replay driver %q", c.Replay.Driver)
	}
	if c.Server.Addr == "" {
		return errors.New("server address is required")
	}
	if c.Store.Driver == StoreFile && c.Store.File == "" {
		return errors.New("store file name is required")
	}
	return nil
}

func (c *Config) StorePath() string {
	if filepath.IsAbs(c.Store.File) {
		return c.Store.File
	}
	return filepath.Join(c.DataDir, c.Store.File)
}

func (c *Config) NodeConfig() node.Config {
	return node.Config{
		UseRelays:   c.Node.UseRelays,
		RelayAddrs:  c.Node.RelayAddrs,
		ListenAddrs: c.Node.ListenAddrs,
		MDNS:        c.Node.MDNS,
	}
}
