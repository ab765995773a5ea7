// Command publish-change sends one directory change event so running
// instances purge or rebuild their cached building list.
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/campus-buildings/internal/core/config"
	"github.com/mohammed-shakir/campus-buildings/internal/invalidation"
	"github.com/mohammed-shakir/campus-buildings/internal/logger"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file")
	op := flag.String("op", invalidation.OpPurge, "purge|refresh")
	source := flag.String("source", "manual", "who changed the directory")
	buildings := flag.String("buildings", "", "comma separated building codes that changed")
	timeout := flag.Duration("timeout", 10*time.Second, "publish timeout")
	flag.Parse()
	_ = godotenv.Load(*envFile)

	cfg := config.FromEnv()
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   true,
		Service:   "campus-buildings",
		Component: "publish-change",
	}, os.Stderr)
	log := logger.NewSlog(&zl)

	ev := invalidation.Event{
		Version:   1,
		Op:        strings.ToLower(strings.TrimSpace(*op)),
		TS:        time.Now().UTC(),
		Source:    *source,
		Buildings: splitCodes(*buildings),
	}
	if err := ev.Validate(); err != nil {
		log.Error("invalid event", "err", err)
		os.Exit(2)
	}

	brokers := splitCodes(cfg.Invalidation.Brokers)
	pub, err := invalidation.DialPublisher(brokers, cfg.Invalidation.Topic)
	if err != nil {
		log.Error("kafka unavailable", "brokers", brokers, "err", err)
		os.Exit(1)
	}
	defer func() { _ = pub.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	part, off, err := pub.Publish(ctx, ev)
	if err != nil {
		log.Error("publish failed", "topic", cfg.Invalidation.Topic, "err", err)
		_ = pub.Close()
		os.Exit(1)
	}
	log.Info("change published",
		"topic", cfg.Invalidation.Topic, "partition", part, "offset", off,
		"op", ev.Op, "buildings", len(ev.Buildings))
}

func splitCodes(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
