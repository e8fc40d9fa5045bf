package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var serverEnvKeys = []string{
	"CONFIG_FILE", "HTTP_ADDR", "PORT", "HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT", "HTTP_IDLE_TIMEOUT",
	"HTTP_SHUTDOWN_TIMEOUT", "FRONTEND_URL", "STORE_BACKEND", "PG_DSN", "MIGRATE", "SEED_DONORS",
	"ELASTIC_URL", "ELASTIC_INDEX", "REDIS_ADDR", "REDIS_GEO_KEY", "KAFKA_BROKERS", "KAFKA_TOPIC",
	"DONOR_QUERY_LIMIT", "NEARBY_RADIUS_KM", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range serverEnvKeys {
		t.Setenv(k, "")
	}
}

func TestLoadServerConfigDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.HTTPAddr)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 100, cfg.QueryLimit)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "donor-registrations", cfg.KafkaTopic)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestSeedDonorsDefaultsByBackend(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.True(t, cfg.SeedDonors, "memory backend seeds by default")

	t.Setenv("SEED_DONORS", "false")
	cfg, err = LoadServerConfig()
	require.NoError(t, err)
	assert.False(t, cfg.SeedDonors, "explicit false wins")

	t.Setenv("SEED_DONORS", "")
	t.Setenv("PG_DSN", "postgres://u:p@db/donors")
	cfg, err = LoadServerConfig()
	require.NoError(t, err)
	assert.False(t, cfg.SeedDonors, "persistent backends do not seed unless asked")
}

func TestSeedDonorsFalseInFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "donors.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed_donors: false\n"), 0o600))
	cfg, err := LoadServerConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.False(t, cfg.SeedDonors)
}

func TestLoadServerConfigFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")
	t.Setenv("PG_DSN", "postgres://u:p@db/donors")
	t.Setenv("MIGRATE", "true")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("HTTP_READ_TIMEOUT", "750ms")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTPAddr)
	assert.Equal(t, BackendPostgres, cfg.StoreBackend, "a DSN selects postgres")
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 750*time.Millisecond, cfg.ReadTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadServerConfigCollectsErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_WRITE_TIMEOUT", "soon")
	t.Setenv("DONOR_QUERY_LIMIT", "1000")
	t.Setenv("STORE_BACKEND", "elastic")
	t.Setenv("SEED_DONORS", "maybe")

	_, err := LoadServerConfig()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "invalid HTTP_WRITE_TIMEOUT")
	assert.Contains(t, msg, "DONOR_QUERY_LIMIT must be in 1..400")
	assert.Contains(t, msg, "ELASTIC_URL is required")
	assert.Contains(t, msg, "invalid SEED_DONORS")
}

func TestLoadServerConfigUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_BACKEND", "sqlite")
	_, err := LoadServerConfig()
	assert.ErrorContains(t, err, "STORE_BACKEND must be one of")
}

func TestLoadServerConfigFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "donors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":9000"
http_read_timeout: 3s
store_backend: elastic
elastic_url: http://es:9200
kafka_brokers:
  - a:9092
  - b:9092
donor_query_limit: 250
nearby_radius_km: 12.5
seed_donors: true
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ELASTIC_INDEX", "donors-v2")
	t.Setenv("HTTP_ADDR", ":9100")

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.HTTPAddr, "env wins over file")
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.Equal(t, BackendElastic, cfg.StoreBackend)
	assert.Equal(t, "http://es:9200", cfg.ElasticURL)
	assert.Equal(t, "donors-v2", cfg.ElasticIndex)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 250, cfg.QueryLimit)
	assert.Equal(t, 12.5, cfg.NearbyRadiusKm)
	assert.True(t, cfg.SeedDonors)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout, "unset keys keep defaults")
}

func TestLoadServerConfigMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := LoadServerConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "load config file")
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "<not set>", MaskDSN(""))
	assert.Equal(t, "postgres://donors:xxxxx@db:5432/donors?sslmode=disable", MaskDSN("postgres://donors:s3cret@db:5432/donors?sslmode=disable"))
	assert.NotContains(t, MaskDSN("postgres://donors:p%40ss@db/donors"), "p%40ss")
	assert.Equal(t, "postgres://donors@db/donors", MaskDSN("postgres://donors@db/donors"))
	assert.Equal(t, "host=db user=donors password=**** dbname=donors", MaskDSN("host=db user=donors password=s3cret dbname=donors"))
}

func TestSummaryMasksSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("PG_DSN", "postgres://u:hunter2@db/donors")
	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.NotContains(t, cfg.Summary()["pg_dsn"], "hunter2")
}

func TestLoadConsumerConfig(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_BROKER", "legacy:9092")
	t.Setenv("KAFKA_GROUP", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_GEO_KEY", "")
	cfg, err := LoadConsumerConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "donor-index-consumer", cfg.KafkaGroup)
	assert.Equal(t, "donors_geo", cfg.RedisGeoKey)
}
