package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultGeocodeURL = "https://geocode.googleapis.com/v4alpha/geocode/destinations"
	DefaultCacheFile  = "buildings_cache.json"
)

type DirectoryCfg struct {
	BaseURL string
	User    string
	Key     string
}

type GeocodeCfg struct {
	URL      string
	APIKey   string
	MemoSize int
}

type CacheCfg struct {
	Backend       string
	File          string
	RedisAddr     string
	RedisPassword string
	RedisPool     int
	RedisDial     time.Duration
	OpTimeout     time.Duration
}

type LocateCfg struct {
	H3Res   int
	RadiusM float64
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type Config struct {
	Addr            string
	LogLevel        string
	LogConsole      bool
	LogSampleN      int
	UpstreamTimeout time.Duration
	Directory       DirectoryCfg
	Geocode         GeocodeCfg
	Cache           CacheCfg
	Locate          LocateCfg
	Metrics         MetricsCfg
	Invalidation    InvalidationCfg
}

func FromEnv() Config {
	res := getint("LOCATE_H3_RES", 11)
	if res < 0 || res > 15 {
		res = 11
	}
	radius := getfloat("LOCATE_RADIUS_M", 100)
	if radius <= 0 {
		radius = 100
	}
	pool := getint("REDIS_POOL_SIZE", 8)
	if pool <= 0 {
		pool = 8
	}
	memo := getint("GEOCODE_MEMO_SIZE", 4096)
	if memo < 0 {
		memo = 0
	}

	return Config{
		Addr:            getenv("ADDR", ":9090"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogConsole:      getbool("LOG_CONSOLE", false),
		LogSampleN:      getint("LOG_SAMPLE_N", 0),
		UpstreamTimeout: getduration("UPSTREAM_TIMEOUT", 30*time.Second),
		Directory: DirectoryCfg{
			BaseURL: strings.TrimRight(getenv("DIRECTORY_BASE_URL", "https://opendata.concordia.ca/API/v1"), "/"),
			User:    os.Getenv("DIRECTORY_USER"),
			Key:     os.Getenv("DIRECTORY_KEY"),
		},
		Geocode: GeocodeCfg{
			URL:      getenv("GEOCODE_URL", DefaultGeocodeURL),
			APIKey:   os.Getenv("GEOCODE_API_KEY"),
			MemoSize: memo,
		},
		Cache: CacheCfg{
			Backend:       strings.ToLower(strings.TrimSpace(getenv("CACHE_BACKEND", "file"))),
			File:          getenv("CACHE_FILE", DefaultCacheFile),
			RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisPool:     pool,
			RedisDial:     getduration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			OpTimeout:     getduration("CACHE_OP_TIMEOUT", 2*time.Second),
		},
		Locate: LocateCfg{
			H3Res:   res,
			RadiusM: radius,
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9091"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "building-directory-changes"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "campus-buildings"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
