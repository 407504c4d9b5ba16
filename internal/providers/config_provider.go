package providers

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"listentier/internal/structures"
)

const appName = "ListenTier"

var envBindings = map[string]string{
	"logger.level":          "LT_LOG_LEVEL",
	"logger.dir":            "LT_LOG_DIR",
	"persistence.backend":   "LT_PERSISTENCE_BACKEND",
	"persistence.path":      "LT_PERSISTENCE_PATH",
	"aggregation.minPlayMs": "LT_MIN_PLAY_MS",
	"sync.enabled":          "LT_SYNC_ENABLED",
	"sync.baseURL":          "LT_SYNC_BASE_URL",
	"sync.clientID":         "LT_SPOTIFY_CLIENT_ID",
	"sync.clientSecret":     "LT_SPOTIFY_CLIENT_SECRET",
	"sync.refreshToken":     "LT_SPOTIFY_REFRESH_TOKEN",
	"sync.accessToken":      "LT_SPOTIFY_ACCESS_TOKEN",
	"sync.tokenURL":         "LT_SPOTIFY_TOKEN_URL",
	"sync.interval":         "LT_SYNC_INTERVAL",
	"mint.enabled":          "LT_MINT_ENABLED",
	"mint.natsURL":          "LT_NATS_URL",
	"cache.enabled":         "LT_CACHE_ENABLED",
	"cache.size":            "LT_CACHE_SIZE",
	"metrics.enabled":       "LT_METRICS_ENABLED",
}

func setDefaults(v *viper.Viper) {
	tier := structures.DefaultTierConfig()

	v.SetDefault("webServer.host", "0.0.0.0")
	v.SetDefault("webServer.port", 8080)
	v.SetDefault("webServer.maxImportBytes", 256<<20)
	v.SetDefault("persistence.backend", "file")
	v.SetDefault("persistence.path", "data")
	v.SetDefault("persistence.retryInterval", 30*time.Second)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.mode", 0o644)
	v.SetDefault("logger.dir", "logs")
	v.SetDefault("aggregation.minPlayMs", 5000)
	v.SetDefault("tier.veteranHours", tier.VeteranHours)
	v.SetDefault("tier.ogHours", tier.OGHours)
	v.SetDefault("tier.veteranPopularity", tier.VeteranPopularity)
	v.SetDefault("tier.ogPopularity", tier.OGPopularity)
	v.SetDefault("tier.hourRate", tier.HourRate)
	v.SetDefault("tier.artistRate", tier.ArtistRate)
	v.SetDefault("tier.maxReward", tier.MaxReward)
	v.SetDefault("tier.rewardPrecision", tier.RewardPrecision)
	v.SetDefault("sync.timeout", 10*time.Second)
	v.SetDefault("sync.maxRetries", 3)
	v.SetDefault("sync.retryBackoff", 500*time.Millisecond)
	v.SetDefault("sync.ratePerSec", 2)
	v.SetDefault("sync.pageLimit", 50)
	v.SetDefault("sync.maxPages", 20)
	v.SetDefault("mint.subject", "listentier.mint")
	v.SetDefault("mint.timeout", 5*time.Second)
	v.SetDefault("cache.ttl", time.Minute)
}

// NewConfigProvider reads the YAML config named by the CLI flags. A .env file next to the working
// directory is loaded first so LT_* overrides can live there.
func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unable to load .env: %w", err)
	}

	v := viper.New()
	filename := filepath.Base(flags.ConfigPath)
	v.AddConfigPath(filepath.Dir(flags.ConfigPath))
	v.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	v.SetConfigType("yaml")

	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	err := v.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = v.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.AppName = appName
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
