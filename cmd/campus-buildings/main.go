package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/campus-buildings/internal/cache"
	"github.com/mohammed-shakir/campus-buildings/internal/cache/filestore"
	"github.com/mohammed-shakir/campus-buildings/internal/cache/keys"
	"github.com/mohammed-shakir/campus-buildings/internal/cache/redisstore"
	"github.com/mohammed-shakir/campus-buildings/internal/core/config"
	"github.com/mohammed-shakir/campus-buildings/internal/core/httpclient"
	"github.com/mohammed-shakir/campus-buildings/internal/core/observability"
	"github.com/mohammed-shakir/campus-buildings/internal/core/server"
	"github.com/mohammed-shakir/campus-buildings/internal/directory"
	"github.com/mohammed-shakir/campus-buildings/internal/enrich"
	"github.com/mohammed-shakir/campus-buildings/internal/geocode"
	"github.com/mohammed-shakir/campus-buildings/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/campus-buildings/internal/logger"
	"github.com/mohammed-shakir/campus-buildings/internal/metrics"
	"github.com/mohammed-shakir/campus-buildings/internal/pipeline"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	started := time.Now()
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()
	_ = godotenv.Load(*envFile)

	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "campus-buildings",
		Component: "server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)
	slog.SetDefault(appLog)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting campus-buildings",
		"addr", cfg.Addr,
		"version", Version,
		"directory", cfg.Directory.BaseURL,
		"cache_backend", cfg.Cache.Backend)
	if cfg.Geocode.APIKey == "" {
		appLog.Warn("GEOCODE_API_KEY is empty; every geocode call will fail and buildings stay unenriched")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		appLog.Error("cache backend setup failed", "backend", cfg.Cache.Backend, "err", err)
		return 1
	}
	defer closeStore()

	httpClient := httpclient.NewOutbound(cfg.UpstreamTimeout)
	gw := cache.New(store, appLog, cfg.Cache.OpTimeout)
	fetcher := directory.New(appLog, httpClient, cfg.Directory.BaseURL, cfg.Directory.User, cfg.Directory.Key)
	geo := geocode.New(appLog, httpClient, cfg.Geocode.URL, cfg.Geocode.APIKey,
		geocode.WithMemoSize(cfg.Geocode.MemoSize))
	svc := pipeline.New(gw, fetcher, enrich.NewEngine(geo, appLog), appLog)

	if cfg.Metrics.Enabled {
		p := metrics.Init(metrics.Config{
			Addr: cfg.Metrics.Addr,
			Path: cfg.Metrics.Path,
			Build: metrics.BuildInfo{
				Version:   Version,
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
		})
		go func() {
			if err := p.Serve(ctx, appLog); err != nil {
				appLog.Error("metrics server exited", "err", err)
			}
		}()
	}

	if cfg.Invalidation.Enabled {
		kc := kafkaconsumer.New(
			kafkaconsumer.NewConfig(cfg.Invalidation.Brokers, cfg.Invalidation.Topic, cfg.Invalidation.GroupID),
			appLog, gw,
			func(ctx context.Context) int { return len(svc.Buildings(ctx).Buildings) },
		)
		go func() {
			if err := kc.Start(ctx); err != nil {
				appLog.Error("directory change consumer stopped", "err", err)
			}
		}()
	}

	if err := server.Run(ctx, cfg, appLog, server.Deps{Buildings: svc, Ready: gw, Version: Version, Started: started}); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func openStore(ctx context.Context, cfg config.Config) (cache.Store, func(), error) {
	switch cfg.Cache.Backend {
	case "", "file":
		return filestore.New(cfg.Cache.File), func() {}, nil
	case "redis":
		cli, err := redisstore.New(ctx, cfg.Cache.RedisAddr,
			redisstore.WithPassword(cfg.Cache.RedisPassword),
			redisstore.WithPoolSize(cfg.Cache.RedisPool),
			redisstore.WithDialTimeout(cfg.Cache.RedisDial),
			redisstore.WithReadTimeout(cfg.Cache.OpTimeout),
			redisstore.WithWriteTimeout(cfg.Cache.OpTimeout))
		if err != nil {
			return nil, nil, err
		}
		return redisstore.NewStore(cli, keys.Document(cfg.Directory.BaseURL)), func() { _ = cli.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown CACHE_BACKEND %q (want file or redis)", cfg.Cache.Backend)
	}
}
