package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfigFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: "db"
  port: 5432
  user: "u"
  password: "p"
  dbname: "social"
  sslmode: "disable"
`)

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessExpireTime)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshExpireTime)
	assert.Equal(t, "mail-jobs", cfg.Kafka.Topics.MailJobs)
	assert.Equal(t, uint64(5), cfg.Mail.MaxRetries)
	assert.Equal(t, time.Hour, cfg.Mail.MaxInterval)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=social sslmode=disable", cfg.Database.DSN())
}

func TestLoadConfigFile_OverridesFromFile(t *testing.T) {
	path := writeConfig(t, `
redis:
  host: "cache"
  port: 6380
feed:
  default_page_size: 5
storage:
  type: "s3"
  s3:
    bucket: "images"
`)

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "cache:6380", cfg.Redis.Addr())
	assert.Equal(t, 5, cfg.Feed.DefaultPageSize)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "images", cfg.Storage.S3.Bucket)
}

func TestLoadConfigFile_MissingFile(t *testing.T) {
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefaultYAML_Loads(t *testing.T) {
	cfg, err := LoadConfigFile(writeConfig(t, DefaultYAML))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, 100, cfg.Feed.MaxPageSize)
	assert.Equal(t, "http://localhost:8080", cfg.Server.PublicURL)
	assert.Equal(t, 20, cfg.Elasticsearch.SearchLimit)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}
