package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"dlmm-notifier/internal/config"
	"dlmm-notifier/internal/dedup"
	"dlmm-notifier/internal/extraction"
	"dlmm-notifier/internal/metadata"
	"dlmm-notifier/internal/notify"
	"dlmm-notifier/internal/solana"
	"dlmm-notifier/internal/storage"
	chstore "dlmm-notifier/internal/storage/clickhouse"
	"dlmm-notifier/internal/storage/memory"
	"dlmm-notifier/internal/storage/migrations"
	pgstore "dlmm-notifier/internal/storage/postgres"
	"dlmm-notifier/internal/watcher"
)

func newRPCClient(cfg config.Config) *solana.HTTPClient {
	return solana.NewHTTPClient(cfg.HTTPEndpoint(),
		solana.WithTimeout(cfg.RPCTimeout),
		solana.WithMaxRetries(cfg.RPCMaxRetries),
		solana.WithCommitment(solana.CommitmentFinalized),
	)
}

func newResolver(source string, rpc *solana.HTTPClient) metadata.Resolver {
	var r metadata.Resolver
	switch source {
	case "metaplex":
		r = metadata.NewMetaplexResolver(rpc)
	case "chain":
		r = metadata.NewChainResolver(metadata.NewDASResolver(rpc), metadata.NewMetaplexResolver(rpc))
	default:
		r = metadata.NewDASResolver(rpc)
	}
	return metadata.NewCache(r)
}

func newExtractor(cfg config.Config, rpc *solana.HTTPClient, logger *zap.Logger) (*extraction.Extractor, error) {
	strategy, err := extraction.NewStrategy(cfg.Strategy, rpc, logger.Named("extraction"))
	if err != nil {
		return nil, err
	}
	return extraction.NewExtractor(rpc, strategy, newResolver(cfg.Metadata, rpc), logger.Named("extraction")), nil
}

// newNotifier returns Discord plus Kafka when brokers are configured.
func newNotifier(cfg config.Config) (notify.Notifier, func()) {
	notifiers := []notify.Notifier{notify.NewDiscordNotifier(cfg.DiscordWebhookURL)}
	closeFn := func() {}

	if len(cfg.KafkaBrokers) > 0 {
		k := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic)
		notifiers = append(notifiers, k)
		closeFn = func() { k.Close() }
	}
	return notify.NewMulti(notifiers...), closeFn
}

func newDeduper(cfg config.Config) (dedup.Deduper, error) {
	return dedup.New(dedup.Config{
		Backend:   cfg.DedupBackend,
		TTL:       cfg.DedupTTL,
		RedisAddr: cfg.RedisAddr,
		BoltPath:  cfg.BoltPath,
	})
}

// openStore returns nil when persistence is disabled.
func openStore(ctx context.Context, cfg config.Config) (storage.PoolCreationStore, func(), error) {
	switch cfg.StoreBackend {
	case "memory":
		return memory.NewPoolCreationStore(), func() {}, nil
	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if _, err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pgstore.NewPoolCreationStore(pool), pool.Close, nil
	case "clickhouse":
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return nil, nil, err
		}
		return chstore.NewPoolCreationStore(conn), func() { conn.Close() }, nil
	case "none", "":
		return nil, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func newDialer(cfg config.Config, logger *zap.Logger) watcher.Dialer {
	endpoint := cfg.WSEndpoint()
	return func(ctx context.Context) (solana.WSClient, error) {
		wsCfg := solana.DefaultWSConfig()
		wsCfg.Commitment = solana.CommitmentFinalized
		wsCfg.Logger = logger.Named("ws")

		client, err := solana.NewWSClient(ctx, endpoint, &wsCfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
