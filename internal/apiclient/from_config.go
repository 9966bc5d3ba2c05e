package apiclient

import (
	"context"
	"fmt"

	"github.com/fedtaxi/hojaruta/internal/config"
	"github.com/fedtaxi/hojaruta/internal/database"
	"github.com/fedtaxi/hojaruta/internal/storage"
	"github.com/fedtaxi/hojaruta/internal/tokenstore"
	"github.com/fedtaxi/hojaruta/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const credentialsCollection = "client_credentials"

// NewFromConfig builds the credential backend and PDF storage named by cfg and
// returns a client whose PDF cache has been warmed.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Client, error) {
	log := logger.New(cfg.Client.LogLevel, "apiclient")
	opts := Options{Logger: log}

	backend, closer, err := tokenBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		opts.Closers = append(opts.Closers, closer)
	}
	opts.Backend = backend

	if cfg.MinIO.Endpoint != "" {
		blobs, err := storage.NewMinIOStorage(cfg.MinIO)
		if err != nil {
			log.Warnw("minio unavailable; caching pdfs in memory", "endpoint", cfg.MinIO.Endpoint, "error", err)
		} else {
			opts.Blobs = blobs
		}
	}

	c, err := New(cfg.Client, opts)
	if err != nil {
		for _, fn := range opts.Closers {
			_ = fn()
		}
		return nil, err
	}
	if err := c.pdfs.Warm(ctx); err != nil {
		log.Warnw("pdf cache warm-up failed", "error", err)
	}
	return c, nil
}

// tokenBackend returns nil for the memory backend and for the web variant,
// which never persists credentials.
func tokenBackend(ctx context.Context, cfg *config.Config) (tokenstore.Backend, func() error, error) {
	cc := cfg.Client
	if cc.Variant == config.VariantWeb {
		if cc.TokenBackend != "" && cc.TokenBackend != "memory" {
			logger.Warnf("token backend %q ignored for the web variant", cc.TokenBackend)
		}
		return nil, nil, nil
	}
	switch cc.TokenBackend {
	case "", "memory":
		return nil, nil, nil
	case "redis":
		addr := cfg.Redis.Addr()
		if addr == "" {
			return nil, nil, fmt.Errorf("token backend redis needs REDIS_HOST")
		}
		rdb := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("redis ping %s: %w", addr, err)
		}
		return tokenstore.NewRedisBackend(rdb, cc.TokenKeyPrefix+cc.DeviceID+":"), rdb.Close, nil
	case "mongo":
		if cfg.MongoDB.URI == "" {
			return nil, nil, fmt.Errorf("token backend mongo needs MONGODB_URI")
		}
		mc, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err != nil {
			return nil, nil, err
		}
		col := mc.Database(cfg.MongoDB.Database).Collection(credentialsCollection)
		return tokenstore.NewMongoBackend(col, cc.DeviceID), func() error { return mc.Disconnect(context.Background()) }, nil
	}
	return nil, nil, fmt.Errorf("unknown token backend %q", cc.TokenBackend)
}
