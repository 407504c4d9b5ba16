package providers

import (
	"testing"

	"listentier/internal/structures"

	"github.com/stretchr/testify/assert"
)

func validConfig() *structures.Config {
	return &structures.Config{
		WebServer: structures.Server{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Persistence: structures.Persistence{
			Backend: "file",
			Path:    "/tmp/listentier",
		},
		Logger: structures.LoggerConfig{
			Level: "info",
			Mode:  0644,
			Dir:   "/tmp/logs",
		},
		Aggregation: structures.AggregationConfig{MinPlayMs: 5000},
		Tier:        structures.DefaultTierConfig(),
	}
}

func TestConfigValidator_ValidConfig(t *testing.T) {
	v := NewCnfValidator(validConfig())
	assert.NoError(t, v.Validate())
}

func TestConfigValidator_EmptyHost(t *testing.T) {
	c := validConfig()
	c.WebServer.Host = ""
	assert.Error(t, NewCnfValidator(c).Validate())
}

func TestConfigValidator_ZeroPort(t *testing.T) {
	c := validConfig()
	c.WebServer.Port = 0
	assert.Error(t, NewCnfValidator(c).Validate())
}

func TestConfigValidator_EmptyLogLevel(t *testing.T) {
	c := validConfig()
	c.Logger.Level = ""
	assert.Error(t, NewCnfValidator(c).Validate())
}

func TestConfigValidator_InvalidLogLevel(t *testing.T) {
	c := validConfig()
	c.Logger.Level = "verbose"
	assert.Error(t, NewCnfValidator(c).Validate())
}

func TestConfigValidator_UnknownBackend(t *testing.T) {
	c := validConfig()
	c.Persistence.Backend = "postgres"
	assert.Error(t, NewCnfValidator(c).Validate())
}

func TestConfigValidator_BackendNeedsPath(t *testing.T) {
	c := validConfig()
	c.Persistence.Backend = "badger"
	c.Persistence.Path = ""
	assert.Error(t, NewCnfValidator(c).Validate())

	c.Persistence.Backend = "memory"
	assert.NoError(t, NewCnfValidator(c).Validate())
}

func TestConfigValidator_MintNeedsNats(t *testing.T) {
	c := validConfig()
	c.Mint.Enabled = true
	assert.Error(t, NewCnfValidator(c).Validate())

	c.Mint.NatsURL = "nats://127.0.0.1:4222"
	c.Mint.Subject = "listentier.mint"
	assert.NoError(t, NewCnfValidator(c).Validate())
}

func TestConfigValidator_SyncNeedsCredentials(t *testing.T) {
	c := validConfig()
	c.Sync.Enabled = true
	assert.Error(t, NewCnfValidator(c).Validate())

	c.Sync.RefreshToken = "refresh"
	c.Sync.ClientID = "client"
	assert.NoError(t, NewCnfValidator(c).Validate())
}

func TestConfigValidator_RelativeLogDir(t *testing.T) {
	c := validConfig()
	c.Logger.Dir = "logs"
	assert.NoError(t, NewCnfValidator(c).Validate())
}

func TestConfigValidator_CacheSizeInMegabytes(t *testing.T) {
	c := validConfig()
	c.Cache = structures.CacheConfig{Enabled: true, Size: 10}
	assert.NoError(t, NewCnfValidator(c).Validate())

	c.Cache.Size = 10 << 20
	assert.Error(t, NewCnfValidator(c).Validate())

	c.Cache.Size = -1
	assert.Error(t, NewCnfValidator(c).Validate())
}
