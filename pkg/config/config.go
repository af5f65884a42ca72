package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	LogFormat  string `mapstructure:"LOG_FORMAT"`

	// Storage is optional: empty values disable the adapter.
	PostgresURL   string `mapstructure:"POSTGRES_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	BrowserHeadless    bool   `mapstructure:"BROWSER_HEADLESS"`
	BrowserProfileDir  string `mapstructure:"BROWSER_PROFILE_DIR"`
	BrowserProxies     string `mapstructure:"BROWSER_PROXIES"`     // comma separated
	BrowserUserAgents  string `mapstructure:"BROWSER_USER_AGENTS"` // comma separated
	BrowserBlockImages bool   `mapstructure:"BROWSER_BLOCK_IMAGES"`
	PageLoadTimeout    int    `mapstructure:"PAGE_LOAD_TIMEOUT"` // in seconds

	NavMaxAttempts      int     `mapstructure:"NAV_MAX_ATTEMPTS"`
	NavBaseDelayMS      int     `mapstructure:"NAV_BASE_DELAY_MS"`
	NavRatePerSec       float64 `mapstructure:"NAV_RATE_PER_SEC"`
	VerificationTimeout int     `mapstructure:"VERIFICATION_TIMEOUT"` // in seconds
	PacingMinMS         int     `mapstructure:"PACING_MIN_MS"`
	PacingMaxMS         int     `mapstructure:"PACING_MAX_MS"`

	SearchPageSize      int    `mapstructure:"SEARCH_PAGE_SIZE"`
	MaxEmptyPages       int    `mapstructure:"MAX_EMPTY_PAGES"`
	MaxConsecutiveSkips int    `mapstructure:"MAX_CONSECUTIVE_SKIPS"`
	MaxPages            int    `mapstructure:"MAX_PAGES"`
	JobViewURL          string `mapstructure:"JOB_VIEW_URL"`

	LogTailSize   int    `mapstructure:"LOG_TAIL_SIZE"`
	RunHistory    int    `mapstructure:"RUN_HISTORY"`
	SeenTTLHours  int    `mapstructure:"SEEN_TTL_HOURS"`
	ProvidersFile string `mapstructure:"PROVIDERS_FILE"`
}

// Load reads configuration from file or environment variables.
func Load() (*Config, error) {
	return load(viper.New(), ".env")
}

func load(v *viper.Viper, file string) (*Config, error) {
	v.SetConfigFile(file)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// A missing .env is fine; the environment alone can configure the service.
	_ = v.ReadInConfig()

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("POSTGRES_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("BROWSER_HEADLESS", false) // verification walls need a visible window
	v.SetDefault("BROWSER_PROFILE_DIR", "")
	v.SetDefault("BROWSER_PROXIES", "")
	v.SetDefault("BROWSER_USER_AGENTS", "")
	v.SetDefault("BROWSER_BLOCK_IMAGES", true)
	v.SetDefault("PAGE_LOAD_TIMEOUT", 30)

	v.SetDefault("NAV_MAX_ATTEMPTS", 3)
	v.SetDefault("NAV_BASE_DELAY_MS", 1500)
	v.SetDefault("NAV_RATE_PER_SEC", 0.5)
	v.SetDefault("VERIFICATION_TIMEOUT", 300)
	v.SetDefault("PACING_MIN_MS", 2000)
	v.SetDefault("PACING_MAX_MS", 3000)

	v.SetDefault("SEARCH_PAGE_SIZE", 25)
	v.SetDefault("MAX_EMPTY_PAGES", 2)
	v.SetDefault("MAX_CONSECUTIVE_SKIPS", 3)
	v.SetDefault("MAX_PAGES", 80)
	v.SetDefault("JOB_VIEW_URL", "https://www.linkedin.com/jobs/view/%s/")

	v.SetDefault("LOG_TAIL_SIZE", 50)
	v.SetDefault("RUN_HISTORY", 20)
	v.SetDefault("SEEN_TTL_HOURS", 48)
	v.SetDefault("PROVIDERS_FILE", "")
}

func (c *Config) PageLoadTimeoutDuration() time.Duration {
	return time.Duration(c.PageLoadTimeout) * time.Second
}

func (c *Config) NavBaseDelay() time.Duration {
	return time.Duration(c.NavBaseDelayMS) * time.Millisecond
}

func (c *Config) VerificationTimeoutDuration() time.Duration {
	return time.Duration(c.VerificationTimeout) * time.Second
}

func (c *Config) PacingRange() (time.Duration, time.Duration) {
	return time.Duration(c.PacingMinMS) * time.Millisecond, time.Duration(c.PacingMaxMS) * time.Millisecond
}

func (c *Config) SeenTTL() time.Duration {
	return time.Duration(c.SeenTTLHours) * time.Hour
}

// Proxies returns the configured proxy list.
func (c *Config) Proxies() []string {
	return splitList(c.BrowserProxies)
}

// UserAgents returns the configured user agent list.
func (c *Config) UserAgents() []string {
	return splitList(c.BrowserUserAgents)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
