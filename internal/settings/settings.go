// Package settings resolves global defaults from layered backends.
// Database-written values win over deployment env vars, which win over
// config-file defaults; every resolved value carries its source tag so
// operators can see where a setting came from.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mstrel/dns-fanout/internal/config"
	"github.com/mstrel/dns-fanout/internal/record"
	"github.com/mstrel/dns-fanout/internal/store"
)

const (
	KeyDefaultTTL         = "dns_default_ttl"
	KeyDefaultTTLOverride = "dns_default_ttl_override"
	KeyDefaultRecordType  = "dns_default_record_type"
	KeyDefaultContent     = "dns_default_content"
	KeyDefaultProxied     = "dns_default_proxied"
	KeyGracePeriod        = "cleanup_grace_period"
	KeyMaxGracePeriod     = "cleanup_max_grace_period"
)

const envPrefix = "DNS_FANOUT_SETTING_"

type Source string

const (
	SourceDatabase Source = "database"
	SourceEnv      Source = "env"
	SourceDefault  Source = "default"
)

type Value struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Source Source `json:"source"`
}

var ErrUnknownKey = errors.New("settings: unknown key")

type Service struct {
	store     *store.Store
	defaults  map[string]string
	lookupEnv func(string) (string, bool)
}

func New(st *store.Store, cfg *config.Config) *Service {
	return &Service{
		store: st,
		defaults: map[string]string{
			KeyDefaultTTL:         strconv.Itoa(cfg.Defaults.TTL),
			KeyDefaultTTLOverride: strconv.FormatBool(cfg.Defaults.TTLOverride),
			KeyDefaultRecordType:  cfg.Defaults.RecordType,
			KeyDefaultContent:     cfg.Defaults.Content,
			KeyDefaultProxied:     strconv.FormatBool(cfg.Defaults.Proxied),
			KeyGracePeriod:        strconv.Itoa(int(cfg.Cleanup.GracePeriod.Minutes())),
			KeyMaxGracePeriod:     strconv.Itoa(int(cfg.Cleanup.MaxGracePeriod.Minutes())),
		},
		lookupEnv: os.LookupEnv,
	}
}

// Resolve returns the effective value for key with its source tag.
func (s *Service) Resolve(ctx context.Context, key string) (Value, error) {
	fallback, known := s.defaults[key]
	if !known {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	if v, err := s.store.GetSetting(ctx, key); err == nil {
		return Value{Key: key, Value: v, Source: SourceDatabase}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return Value{}, err
	}

	if v, ok := s.lookupEnv(envPrefix + strings.ToUpper(key)); ok {
		return Value{Key: key, Value: v, Source: SourceEnv}, nil
	}

	return Value{Key: key, Value: fallback, Source: SourceDefault}, nil
}

// Set writes a database-sourced value for a known key.
func (s *Service) Set(ctx context.Context, key, value string) error {
	if _, known := s.defaults[key]; !known {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return s.store.PutSetting(ctx, key, value)
}

// Typed accessors. A malformed stored value falls back to the config
// default with a warning rather than failing the operation.

func (s *Service) DefaultTTL(ctx context.Context) int {
	return s.intValue(ctx, KeyDefaultTTL)
}

func (s *Service) TTLOverrideEnabled(ctx context.Context) bool {
	return s.boolValue(ctx, KeyDefaultTTLOverride)
}

func (s *Service) DefaultRecordType(ctx context.Context) record.Type {
	v, err := s.Resolve(ctx, KeyDefaultRecordType)
	if err != nil {
		return record.Type(s.defaults[KeyDefaultRecordType])
	}
	return record.Type(strings.ToUpper(v.Value))
}

func (s *Service) DefaultContent(ctx context.Context) string {
	v, err := s.Resolve(ctx, KeyDefaultContent)
	if err != nil {
		return s.defaults[KeyDefaultContent]
	}
	return v.Value
}

func (s *Service) DefaultProxied(ctx context.Context) bool {
	return s.boolValue(ctx, KeyDefaultProxied)
}

func (s *Service) GracePeriod(ctx context.Context) time.Duration {
	return time.Duration(s.intValue(ctx, KeyGracePeriod)) * time.Minute
}

func (s *Service) MaxGracePeriod(ctx context.Context) time.Duration {
	return time.Duration(s.intValue(ctx, KeyMaxGracePeriod)) * time.Minute
}

func (s *Service) intValue(ctx context.Context, key string) int {
	fallback, _ := strconv.Atoi(s.defaults[key])
	v, err := s.Resolve(ctx, key)
	if err != nil {
		return fallback
	}
	n, err := strconv.Atoi(v.Value)
	if err != nil {
		slog.Default().Warn("fail parse setting to int, using default", "key", key, "value", v.Value, "source", v.Source)
		return fallback
	}
	return n
}

func (s *Service) boolValue(ctx context.Context, key string) bool {
	fallback, _ := strconv.ParseBool(s.defaults[key])
	v, err := s.Resolve(ctx, key)
	if err != nil {
		return fallback
	}
	b, err := strconv.ParseBool(v.Value)
	if err != nil {
		slog.Default().Warn("fail parse setting to bool, using default", "key", key, "value", v.Value, "source", v.Source)
		return fallback
	}
	return b
}
