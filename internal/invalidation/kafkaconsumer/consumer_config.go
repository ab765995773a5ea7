package kafkaconsumer

import (
	"strings"
	"time"
)

type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool
	RetryBackoff        time.Duration
	DedupeSize          int // recently applied events remembered for replay detection
}

// NewConfig fills group timings with defaults; brokers is comma separated.
// A fresh group starts at the newest offset since a restart already rebuilds
// from an empty or stale cache on first request.
func NewConfig(brokers, topic, groupID string) Config {
	if strings.TrimSpace(brokers) == "" {
		brokers = "localhost:9092"
	}
	if topic == "" {
		topic = "building-directory-changes"
	}
	if groupID == "" {
		groupID = "campus-buildings"
	}
	return Config{
		Brokers:             splitCSV(brokers),
		Topic:               topic,
		GroupID:             groupID,
		SessionTimeout:      30 * time.Second,
		Heartbeat:           3 * time.Second,
		RebalanceTimeout:    30 * time.Second,
		InitialOffsetOldest: false,
		RetryBackoff:        2 * time.Second,
		DedupeSize:          4096,
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
