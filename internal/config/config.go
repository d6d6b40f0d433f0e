package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Store         StoreConfig
	ObjectStore   ObjectStoreConfig
	Generation    GenerationConfig
	Guard         GuardConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// StoreConfig selects where the ledger tables live. Driver is one of duckdb,
// postgres or parquet.
type StoreConfig struct {
	Driver   string
	Path     string
	DSN      string
	ReadOnly bool
	RowLimit int
	Dataset  string
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type GenerationConfig struct {
	Endpoint          string
	APIKey            string
	Model             string
	MaxOutputTokens   int
	Temperature       float64
	TopP              float64
	TopK              int
	RepetitionPenalty float64
	StopSequences     []string
	Timeout           time.Duration
}

type GuardConfig struct {
	Enabled bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("LEDGERASK_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid LEDGERASK_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	for _, b := range bindings(&cfg) {
		raw, ok := lookup(b.key)
		if !ok {
			continue
		}
		if err := b.apply(strings.TrimSpace(raw)); err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", b.key, err)
		}
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return fmt.Errorf("http address is required")
	}
	switch cfg.Store.Driver {
	case "duckdb":
	case "postgres":
		if cfg.Store.DSN == "" {
			return fmt.Errorf("LEDGERASK_STORE_DSN is required for the postgres driver")
		}
	case "parquet":
		if cfg.ObjectStore.Bucket == "" {
			return fmt.Errorf("LEDGERASK_OBJECTSTORE_BUCKET is required for the parquet driver")
		}
		if cfg.Store.Dataset == "" {
			return fmt.Errorf("LEDGERASK_STORE_DATASET is required for the parquet driver")
		}
	default:
		return fmt.Errorf("invalid LEDGERASK_STORE_DRIVER: %q", cfg.Store.Driver)
	}
	if cfg.Store.RowLimit < 0 {
		return fmt.Errorf("LEDGERASK_STORE_ROW_LIMIT must be >= 0")
	}
	if cfg.Generation.MaxOutputTokens <= 0 {
		return fmt.Errorf("LEDGERASK_GENERATION_MAX_OUTPUT_TOKENS must be > 0")
	}
	if cfg.Generation.Timeout <= 0 {
		return fmt.Errorf("LEDGERASK_GENERATION_TIMEOUT must be > 0")
	}
	if cfg.Generation.Temperature <= 0 {
		return fmt.Errorf("LEDGERASK_GENERATION_TEMPERATURE must be > 0")
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "ledgerask-api"},
		HTTP: HTTPConfig{
			Address:      ":8000",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Store: StoreConfig{
			Driver:   "duckdb",
			Path:     "ledger.duckdb",
			ReadOnly: true,
			RowLimit: 0,
			Dataset:  "ledger",
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "ledgerask",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Generation: GenerationConfig{
			Endpoint:          "https://api.together.xyz/inference",
			Model:             "mistralai/Mixtral-8x7B-Instruct-v0.1",
			MaxOutputTokens:   512,
			Temperature:       0.7,
			TopP:              0.7,
			TopK:              50,
			RepetitionPenalty: 1,
			StopSequences:     []string{"</s>", "[/INST]"},
			Timeout:           30 * time.Second,
		},
		Guard: GuardConfig{
			Enabled: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18000"
		cfg.Store.Path = ""
		cfg.Store.ReadOnly = false
		cfg.Generation.Timeout = 5 * time.Second
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Store.RowLimit = 10000
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

// binding maps one LEDGERASK_* variable onto a config field.
type binding struct {
	key   string
	apply func(raw string) error
}

func bind[T any](key string, dst *T, parse func(string) (T, error)) binding {
	return binding{key: key, apply: func(raw string) error {
		value, err := parse(raw)
		if err != nil {
			return err
		}
		*dst = value
		return nil
	}}
}

func bindings(cfg *Config) []binding {
	return []binding{
		bind("LEDGERASK_SERVICE_NAME", &cfg.Service.Name, parseString),
		bind("LEDGERASK_HTTP_ADDR", &cfg.HTTP.Address, parseString),
		bind("LEDGERASK_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout, time.ParseDuration),
		bind("LEDGERASK_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout, time.ParseDuration),
		bind("LEDGERASK_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout, time.ParseDuration),

		bind("LEDGERASK_STORE_DRIVER", &cfg.Store.Driver, parseString),
		bind("LEDGERASK_STORE_PATH", &cfg.Store.Path, parseString),
		bind("LEDGERASK_STORE_DSN", &cfg.Store.DSN, parseString),
		bind("LEDGERASK_STORE_READ_ONLY", &cfg.Store.ReadOnly, strconv.ParseBool),
		bind("LEDGERASK_STORE_ROW_LIMIT", &cfg.Store.RowLimit, strconv.Atoi),
		bind("LEDGERASK_STORE_DATASET", &cfg.Store.Dataset, parseString),

		bind("LEDGERASK_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint, parseString),
		bind("LEDGERASK_OBJECTSTORE_REGION", &cfg.ObjectStore.Region, parseString),
		bind("LEDGERASK_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket, parseString),
		bind("LEDGERASK_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID, parseString),
		bind("LEDGERASK_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey, parseString),
		bind("LEDGERASK_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL, strconv.ParseBool),
		bind("LEDGERASK_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix, parseString),
		bind("LEDGERASK_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket, strconv.ParseBool),

		bind("LEDGERASK_GENERATION_ENDPOINT", &cfg.Generation.Endpoint, parseString),
		bind("LEDGERASK_GENERATION_API_KEY", &cfg.Generation.APIKey, parseString),
		bind("LEDGERASK_GENERATION_MODEL", &cfg.Generation.Model, parseString),
		bind("LEDGERASK_GENERATION_MAX_OUTPUT_TOKENS", &cfg.Generation.MaxOutputTokens, strconv.Atoi),
		bind("LEDGERASK_GENERATION_TEMPERATURE", &cfg.Generation.Temperature, parseFloat),
		bind("LEDGERASK_GENERATION_TOP_P", &cfg.Generation.TopP, parseFloat),
		bind("LEDGERASK_GENERATION_TOP_K", &cfg.Generation.TopK, strconv.Atoi),
		bind("LEDGERASK_GENERATION_REPETITION_PENALTY", &cfg.Generation.RepetitionPenalty, parseFloat),
		bind("LEDGERASK_GENERATION_STOP_SEQUENCES", &cfg.Generation.StopSequences, parseList),
		bind("LEDGERASK_GENERATION_TIMEOUT", &cfg.Generation.Timeout, time.ParseDuration),

		bind("LEDGERASK_GUARD_ENABLED", &cfg.Guard.Enabled, strconv.ParseBool),
		bind("LEDGERASK_LOG_JSON", &cfg.Observability.LogJSON, strconv.ParseBool),
		bind("LEDGERASK_LOG_LEVEL", &cfg.Observability.LogLevel, parseLogLevel),
		bind("LEDGERASK_AUTH_REQUIRED", &cfg.Auth.Required, strconv.ParseBool),
		bind("LEDGERASK_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys, parseString),
	}
}

func parseString(raw string) (string, error) {
	return raw, nil
}

func parseFloat(raw string) (float64, error) {
	return strconv.ParseFloat(raw, 64)
}

// parseList splits a comma-separated value; blank entries are dropped.
func parseList(raw string) ([]string, error) {
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return nil, errors.New("at least one value is required")
	}
	return values, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", raw)
	}
}
