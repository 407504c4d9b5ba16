package structures

import "time"

type Server struct {
	Host           string `yaml:"host" mapstructure:"host" validate:"required"`
	Port           int    `yaml:"port" mapstructure:"port" validate:"required|uint|min:1"`
	MaxImportBytes int64  `yaml:"maxImportBytes" mapstructure:"maxImportBytes"`
}

type Persistence struct {
	Backend string `yaml:"backend" mapstructure:"backend" validate:"required|in:file,badger,sqlite,memory"`
	// Path is a directory for the file and badger backends and a database file for sqlite.
	Path string `yaml:"path" mapstructure:"path"`
	// RetryInterval is how often a pending write is retried after a storage failure.
	RetryInterval time.Duration `yaml:"retryInterval" mapstructure:"retryInterval"`
}

type LoggerConfig struct {
	Level string `yaml:"level" mapstructure:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" mapstructure:"mode" validate:"required|uint"`
	// Dir may be relative to the working directory. It is created on startup.
	Dir string `yaml:"dir" mapstructure:"dir" validate:"required"`
}

type AggregationConfig struct {
	// MinPlayMs excludes shorter plays from listening time. They still count as plays.
	MinPlayMs int64 `yaml:"minPlayMs" mapstructure:"minPlayMs" validate:"min:0"`
}

// TierConfig carries the policy thresholds of the tier and reward calculator.
type TierConfig struct {
	VeteranHours      float64 `yaml:"veteranHours" mapstructure:"veteranHours"`
	OGHours           float64 `yaml:"ogHours" mapstructure:"ogHours"`
	VeteranPopularity float64 `yaml:"veteranPopularity" mapstructure:"veteranPopularity"`
	OGPopularity      float64 `yaml:"ogPopularity" mapstructure:"ogPopularity"`
	HourRate          float64 `yaml:"hourRate" mapstructure:"hourRate"`
	ArtistRate        float64 `yaml:"artistRate" mapstructure:"artistRate"`
	MaxReward         float64 `yaml:"maxReward" mapstructure:"maxReward"`
	RewardPrecision   int     `yaml:"rewardPrecision" mapstructure:"rewardPrecision"`
}

// DefaultTierConfig returns the product thresholds.
func DefaultTierConfig() TierConfig {
	return TierConfig{
		VeteranHours:      50,
		OGHours:           200,
		VeteranPopularity: 50,
		OGPopularity:      80,
		HourRate:          1,
		ArtistRate:        0.5,
		MaxReward:         1000,
		RewardPrecision:   2,
	}
}

type SyncConfig struct {
	Enabled      bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL      string `yaml:"baseURL" mapstructure:"baseURL"`
	ClientID     string `yaml:"clientID" mapstructure:"clientID"`
	ClientSecret string `yaml:"clientSecret" mapstructure:"clientSecret"`
	RefreshToken string `yaml:"refreshToken" mapstructure:"refreshToken"`
	AccessToken  string `yaml:"accessToken" mapstructure:"accessToken"`
	// TokenURL overrides the provider's OAuth token endpoint.
	TokenURL     string        `yaml:"tokenURL" mapstructure:"tokenURL"`
	Interval     time.Duration `yaml:"interval" mapstructure:"interval"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries   int           `yaml:"maxRetries" mapstructure:"maxRetries"`
	RetryBackoff time.Duration `yaml:"retryBackoff" mapstructure:"retryBackoff"`
	RatePerSec   float64       `yaml:"ratePerSec" mapstructure:"ratePerSec"`
	PageLimit    int           `yaml:"pageLimit" mapstructure:"pageLimit"`
	MaxPages     int           `yaml:"maxPages" mapstructure:"maxPages"`
}

type MintConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	NatsURL string        `yaml:"natsURL" mapstructure:"natsURL"`
	Subject string        `yaml:"subject" mapstructure:"subject"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Size is in megabytes.
	Size int           `yaml:"size" mapstructure:"size" validate:"min:0|max:4096"`
	TTL  time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	WebServer   Server            `yaml:"webServer" mapstructure:"webServer"`
	Persistence Persistence       `yaml:"persistence" mapstructure:"persistence"`
	Logger      LoggerConfig      `yaml:"logger" mapstructure:"logger"`
	Aggregation AggregationConfig `yaml:"aggregation" mapstructure:"aggregation"`
	Tier        TierConfig        `yaml:"tier" mapstructure:"tier"`
	Sync        SyncConfig        `yaml:"sync" mapstructure:"sync"`
	Mint        MintConfig        `yaml:"mint" mapstructure:"mint"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Metrics     MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
}
