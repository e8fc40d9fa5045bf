package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendElastic  = "elastic"
)

// maxQueryLimit mirrors the hard cap enforced by the stores.
const maxQueryLimit = 400

// ServerConfig captures all tunable parameters for the HTTP API process.
// Precedence is environment, then the optional CONFIG_FILE, then defaults.
type ServerConfig struct {
	HTTPAddr        string        `koanf:"http_addr"`
	ReadTimeout     time.Duration `koanf:"http_read_timeout"`
	WriteTimeout    time.Duration `koanf:"http_write_timeout"`
	IdleTimeout     time.Duration `koanf:"http_idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"http_shutdown_timeout"`
	FrontendURL     string        `koanf:"frontend_url"`

	StoreBackend  string `koanf:"store_backend"`
	PGDSN         string `koanf:"pg_dsn"`
	RunMigrations bool   `koanf:"migrate"`
	SeedDonors    bool   `koanf:"seed_donors"`
	ElasticURL    string `koanf:"elastic_url"`
	ElasticIndex  string `koanf:"elastic_index"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisGeoKey   string `koanf:"redis_geo_key"`

	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic"`

	QueryLimit     int     `koanf:"donor_query_limit"`
	NearbyRadiusKm float64 `koanf:"nearby_radius_km"`

	LogLevel string `koanf:"log_level"`
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":5000",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		FrontendURL:     "http://localhost:8080",
		ElasticIndex:    "donors",
		RedisGeoKey:     "donors_geo",
		KafkaTopic:      "donor-registrations",
		QueryLimit:      100,
		NearbyRadiusKm:  25,
		LogLevel:        "info",
	}
}

// LoadServerConfig reads CONFIG_FILE (if set) and the environment.
func LoadServerConfig() (ServerConfig, error) {
	return LoadServerConfigFile(os.Getenv("CONFIG_FILE"))
}

func LoadServerConfigFile(path string) (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	seedSet := os.Getenv("SEED_DONORS") != ""
	if path != "" {
		k, err := loadFile(path, &cfg)
		if err != nil {
			return cfg, err
		}
		seedSet = seedSet || k.Exists("seed_donors")
	}

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" && os.Getenv("HTTP_ADDR") == "" {
		cfg.HTTPAddr = ":" + port
	}
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)
	setStringFromEnv(&cfg.FrontendURL, "FRONTEND_URL")

	setStringFromEnv(&cfg.StoreBackend, "STORE_BACKEND")
	setStringFromEnv(&cfg.PGDSN, "PG_DSN")
	setBoolFromEnv(&cfg.RunMigrations, "MIGRATE", &errs)
	setBoolFromEnv(&cfg.SeedDonors, "SEED_DONORS", &errs)
	setStringFromEnv(&cfg.ElasticURL, "ELASTIC_URL")
	setStringFromEnv(&cfg.ElasticIndex, "ELASTIC_INDEX")

	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	if v, ok := os.LookupEnv("REDIS_PASSWORD"); ok {
		cfg.RedisPassword = v
	}
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	setIntFromEnv(&cfg.QueryLimit, "DONOR_QUERY_LIMIT", &errs)
	setFloatFromEnv(&cfg.NearbyRadiusKm, "NEARBY_RADIUS_KM", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.StoreBackend = strings.ToLower(cfg.StoreBackend)
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = BackendMemory
		if cfg.PGDSN != "" {
			cfg.StoreBackend = BackendPostgres
		}
	}
	// an in-memory directory starts with the demo donors unless told otherwise
	if !seedSet && cfg.StoreBackend == BackendMemory {
		cfg.SeedDonors = true
	}

	errs = append(errs, cfg.Validate()...)
	return cfg, errors.Join(errs...)
}

// Validate reports every inconsistent setting.
func (c ServerConfig) Validate() []error {
	var errs []error
	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.PGDSN == "" {
			errs = append(errs, fmt.Errorf("PG_DSN is required for the postgres backend"))
		}
	case BackendElastic:
		if c.ElasticURL == "" {
			errs = append(errs, fmt.Errorf("ELASTIC_URL is required for the elastic backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be one of memory, postgres, elastic; got %q", c.StoreBackend))
	}
	if c.QueryLimit <= 0 || c.QueryLimit > maxQueryLimit {
		errs = append(errs, fmt.Errorf("DONOR_QUERY_LIMIT must be in 1..%d", maxQueryLimit))
	}
	if c.NearbyRadiusKm <= 0 {
		errs = append(errs, fmt.Errorf("NEARBY_RADIUS_KM must be > 0"))
	}
	if c.RedisGeoKey == "" {
		errs = append(errs, fmt.Errorf("REDIS_GEO_KEY must not be empty"))
	}
	return errs
}

// Summary is a loggable view of the config with credentials masked.
func (c ServerConfig) Summary() map[string]string {
	return map[string]string{
		"http_addr":     c.HTTPAddr,
		"frontend_url":  c.FrontendURL,
		"store_backend": c.StoreBackend,
		"pg_dsn":        MaskDSN(c.PGDSN),
		"elastic_url":   c.ElasticURL,
		"redis_addr":    c.RedisAddr,
		"kafka_brokers": strings.Join(c.KafkaBrokers, ","),
		"kafka_topic":   c.KafkaTopic,
		"query_limit":   strconv.Itoa(c.QueryLimit),
		"log_level":     c.LogLevel,
	}
}

// ConsumerConfig configures the registration stream consumer.
type ConsumerConfig struct {
	MetricsAddr   string
	KafkaBrokers  []string
	KafkaTopic    string
	KafkaGroup    string
	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string
	LogLevel      string
}

func LoadConsumerConfig() (ConsumerConfig, error) {
	cfg := ConsumerConfig{
		MetricsAddr:  ":2112",
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "donor-registrations",
		KafkaGroup:   "donor-index-consumer",
		RedisAddr:    "localhost:6379",
		RedisGeoKey:  "donors_geo",
		LogLevel:     "info",
	}
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		brokers = os.Getenv("KAFKA_BROKER")
	}
	if brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")
	setStringFromEnv(&cfg.RedisAddr, "REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if len(cfg.KafkaBrokers) == 0 {
		return cfg, fmt.Errorf("KAFKA_BROKERS must list at least one broker")
	}
	return cfg, nil
}

func loadFile(path string, cfg *ServerConfig) (*koanf.Koanf, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config file %s: %w", path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config file %s: %w", path, err)
	}
	return k, nil
}

var dsnPassword = regexp.MustCompile(`password=\S+`)

// MaskDSN hides the password in URL or key=value style connection strings.
func MaskDSN(dsn string) string {
	if dsn == "" {
		return "<not set>"
	}
	if !strings.Contains(dsn, "://") {
		return dsnPassword.ReplaceAllString(dsn, "password=****")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "****"
	}
	return u.Redacted()
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setBoolFromEnv(target *bool, key string, errs *[]error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = b
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
