// Package bootstrap assembles a core.Service from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sneakernet/internal/config"
	"sneakernet/internal/node"
	"sneakernet/internal/repository"
	"sneakernet/internal/repository/filestore"
	"sneakernet/internal/repository/mongostore"
	"sneakernet/internal/repository/redisstore"
	"sneakernet/internal/service/core"
	redisSvc "sneakernet/internal/service/redis"
	"sneakernet/internal/utils/log"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

type Runtime struct {
	Config  *config.Config
	Service *core.Service

	// redis is set when the replay guard uses a client the store does not own.
	redis *redisSvc.RedisService
}

// Open connects the configured store and replay guard and builds the service
// around a libp2p node.
func Open(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	return OpenWithNode(ctx, cfg, node.New(cfg.NodeConfig().Binder()))
}

func OpenWithNode(ctx context.Context, cfg *config.Config, n *node.Node) (*Runtime, error) {
	var (
		rt     = &Runtime{Config: cfg}
		store  repository.Store
		shared *redisSvc.RedisService
		err    error
	)

	switch cfg.Store.Driver {
	case config.StoreFile:
		store = filestore.New(cfg.StorePath(), cfg.Store.Passphrase)
	case config.StoreRedis:
		shared, err = initRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		store = redisstore.New(shared)
	case config.StoreMongo:
		client, err := initMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		store = mongostore.New(client, client.Database(cfg.Mongo.Database))
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	var replay core.ReplayGuard
	switch cfg.Replay.Driver {
	case config.ReplayRedis:
		if shared == nil {
			if shared, err = initRedis(ctx, cfg.Redis); err != nil {
				_ = store.Close(ctx)
				return nil, err
			}
			rt.redis = shared
		}
		replay = core.NewRedisReplayGuard(shared)
	default:
		replay = core.NewMemoryReplayGuard()
	}

	rt.Service = core.NewService(store, replay, n)
	log.Debug("service ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("replay", cfg.Replay.Driver))
	return rt, nil
}

func (r *Runtime) Close(ctx context.Context) error {
	err := r.Service.Close(ctx)
	if r.redis != nil {
		err = errors.Join(err, r.redis.Close())
	}
	return err
}

func initRedis(ctx context.Context, cfg config.RedisConfig) (*redisSvc.RedisService, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	svc := redisSvc.NewRedis(rdb)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	return svc, nil
}

func initMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo %s: %w", uri, err)
	}
	return client, nil
}
