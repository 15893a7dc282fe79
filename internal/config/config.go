package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultSweepInterval  = time.Minute
	defaultStorePath      = "dnsfanout.db"
	defaultHTTPAddr       = ":9090"
	defaultLogLevel       = "info"
	defaultLogEnv         = "prod"
	defaultTTL            = 3600
	defaultRecordType     = "A"
	defaultGracePeriod    = 15 * time.Minute
	defaultMaxGracePeriod = 7 * 24 * time.Hour
	defaultConcurrency    = 4
	defaultTTLMin         = 60
	defaultTTLMax         = 86400
)

type Config struct {
	SweepInterval time.Duration `yaml:"sweepInterval"`
	StorePath     string        `yaml:"storePath"`
	HTTP          HTTP          `yaml:"http"`
	Log           Log           `yaml:"log"`
	Defaults      Defaults      `yaml:"defaults"`
	Cleanup       Cleanup       `yaml:"cleanup"`
	Fanout        Fanout        `yaml:"fanout"`
	Providers     []Provider    `yaml:"providers"`
}

type HTTP struct {
	Addr string `yaml:"addr"`
}

type Log struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
}

// Defaults are the global record defaults, the bottom layer of the
// override precedence chain.
type Defaults struct {
	TTL         int    `yaml:"ttl"`
	TTLOverride bool   `yaml:"ttlOverride"`
	RecordType  string `yaml:"recordType"`
	Content     string `yaml:"content"`
	Proxied     bool   `yaml:"proxied"`
}

type Cleanup struct {
	GracePeriod    time.Duration `yaml:"gracePeriod"`
	MaxGracePeriod time.Duration `yaml:"maxGracePeriod"`
}

type Fanout struct {
	Concurrency int `yaml:"concurrency"`
}

type Provider struct {
	ID           string       `yaml:"id"`
	Name         string       `yaml:"name"`
	Type         string       `yaml:"type"`
	Zone         string       `yaml:"zone"`
	Token        string       `yaml:"token"`
	Enabled      *bool        `yaml:"enabled"`
	Capabilities Capabilities `yaml:"capabilities"`
}

func (p Provider) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

type Capabilities struct {
	RecordTypes []string `yaml:"recordTypes"`
	TTLMin      int      `yaml:"ttlMin"`
	TTLMax      int      `yaml:"ttlMax"`
	TTLDefault  int      `yaml:"ttlDefault"`
	Proxied     bool     `yaml:"proxied"`
}

func Load(path string) (*Config, error) {
	configFile := true
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Default().Warn("fail find config file, proceeding", "path", path)
		configFile = false
	}

	var cfg Config
	if configFile {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, err
		}
		if err := f.Close(); err != nil {
			slog.Default().Warn("fail close config file", "path", path, "error", err)
		}
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.StorePath == "" {
		cfg.StorePath = defaultStorePath
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = defaultHTTPAddr
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Env == "" {
		cfg.Log.Env = defaultLogEnv
	}
	if cfg.Defaults.TTL == 0 {
		cfg.Defaults.TTL = defaultTTL
	}
	if cfg.Defaults.RecordType == "" {
		cfg.Defaults.RecordType = defaultRecordType
	}
	if cfg.Cleanup.GracePeriod == 0 {
		cfg.Cleanup.GracePeriod = defaultGracePeriod
	}
	if cfg.Cleanup.MaxGracePeriod == 0 {
		cfg.Cleanup.MaxGracePeriod = defaultMaxGracePeriod
	}
	if cfg.Fanout.Concurrency <= 0 {
		cfg.Fanout.Concurrency = defaultConcurrency
	}

	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.Name == "" {
			p.Name = p.ID
		}
		if len(p.Capabilities.RecordTypes) == 0 {
			p.Capabilities.RecordTypes = []string{"A", "AAAA", "CNAME", "TXT", "MX", "NS", "SRV"}
		}
		if p.Capabilities.TTLMin == 0 {
			p.Capabilities.TTLMin = defaultTTLMin
		}
		if p.Capabilities.TTLMax == 0 {
			p.Capabilities.TTLMax = defaultTTLMax
		}
		if p.Capabilities.TTLDefault == 0 {
			p.Capabilities.TTLDefault = defaultTTL
		}
	}
}

func (cfg *Config) applyEnv() {
	if storePath := os.Getenv("DNS_FANOUT_STORE_PATH"); storePath != "" {
		cfg.StorePath = storePath
	}
	if addr := os.Getenv("DNS_FANOUT_HTTP_ADDR"); addr != "" {
		cfg.HTTP.Addr = addr
	}
	if sweepInterval := os.Getenv("DNS_FANOUT_SWEEP_INTERVAL"); sweepInterval != "" {
		if interval, err := time.ParseDuration(sweepInterval); err == nil {
			cfg.SweepInterval = interval
		} else {
			slog.Default().Warn("fail parse sweep interval to duration from string", "interval", sweepInterval, "error", err)
		}
	}
	if gracePeriod := os.Getenv("DNS_FANOUT_GRACE_PERIOD"); gracePeriod != "" {
		if grace, err := time.ParseDuration(gracePeriod); err == nil {
			cfg.Cleanup.GracePeriod = grace
		} else {
			slog.Default().Warn("fail parse grace period to duration from string", "gracePeriod", gracePeriod, "error", err)
		}
	}
	if ttlStr := os.Getenv("DNS_FANOUT_DEFAULT_TTL"); ttlStr != "" {
		if ttl, err := strconv.Atoi(ttlStr); err == nil {
			cfg.Defaults.TTL = ttl
		} else {
			slog.Default().Warn("fail parse ttl to int from string", "ttl", ttlStr, "error", err)
		}
	}
	if concurrency := os.Getenv("DNS_FANOUT_CONCURRENCY"); concurrency != "" {
		if n, err := strconv.Atoi(concurrency); err == nil && n > 0 {
			cfg.Fanout.Concurrency = n
		} else {
			slog.Default().Warn("fail parse concurrency to int from string", "concurrency", concurrency, "error", err)
		}
	}
	if loglevel := os.Getenv("DNS_FANOUT_LOG_LEVEL"); loglevel != "" {
		cfg.Log.Level = loglevel
	}
	if logenv := os.Getenv("DNS_FANOUT_LOG_ENV"); logenv != "" {
		cfg.Log.Env = logenv
	}

	// A shared token env fills any cloudflare provider left without one.
	if token := os.Getenv("DNS_FANOUT_CLOUDFLARE_TOKEN"); token != "" {
		for i := range cfg.Providers {
			if cfg.Providers[i].Type == "cloudflare" && cfg.Providers[i].Token == "" {
				cfg.Providers[i].Token = token
			}
		}
	}
}
