package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/weather-display/internal/models"
	"github.com/kjstillabower/weather-display/internal/parser"
	"github.com/kjstillabower/weather-display/internal/render"
	"github.com/kjstillabower/weather-display/internal/validation"
)

// Config holds display configuration loaded from YAML, .env and the environment.
type Config struct {
	Env string

	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration

	PollInterval time.Duration
	DecodeMode   parser.Mode

	Units              render.Units
	USADate            bool
	Timezone           *time.Location
	AssetsDir          string
	SeasonalBackground bool
	// Splash is the bitmap shown in the icon region before the first cycle. Empty disables it.
	Splash string

	// Locations holds one entry for the single layout or two for the comparison layout.
	Locations []models.Location

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	CircuitBreakerEnabled bool
	CBFailureThreshold    int
	CBSuccessThreshold    int
	CBTimeout             time.Duration

	DegradedWindow       time.Duration
	DegradedErrorPct     float64
	DegradedMinSamples   int
	DegradedRetryInitial time.Duration
	DegradedRetryMax     time.Duration

	PreviewEnabled bool
	PreviewPort    string
	RateLimitRPS   int
	RateLimitBurst int

	ZipkinURL string

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Poll struct {
		Interval   string `yaml:"interval"`
		DecodeMode string `yaml:"decode_mode"`
	} `yaml:"poll"`

	Display struct {
		Units              string `yaml:"units"`
		USADate            bool   `yaml:"usa_date"`
		Timezone           string `yaml:"timezone"`
		AssetsDir          string `yaml:"assets_dir"`
		SeasonalBackground *bool   `yaml:"seasonal_background"`
		Splash             *string `yaml:"splash"`
	} `yaml:"display"`

	Locations []models.Location `yaml:"locations"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
	} `yaml:"reliability"`

	CircuitBreaker struct {
		Enabled          *bool  `yaml:"enabled"`
		FailureThreshold int    `yaml:"failure_threshold"`
		SuccessThreshold int    `yaml:"success_threshold"`
		Timeout          string `yaml:"timeout"`
	} `yaml:"circuit_breaker"`

	Health struct {
		DegradedWindow       string  `yaml:"degraded_window"`
		DegradedErrorPct     float64 `yaml:"degraded_error_pct"`
		DegradedMinSamples   int     `yaml:"degraded_min_samples"`
		DegradedRetryInitial string  `yaml:"degraded_retry_initial"`
		DegradedRetryMax     string  `yaml:"degraded_retry_max"`
	} `yaml:"health"`

	Preview struct {
		Enabled        bool   `yaml:"enabled"`
		Port           string `yaml:"port"`
		RateLimitRPS   int    `yaml:"rate_limit_rps"`
		RateLimitBurst int    `yaml:"rate_limit_burst"`
	} `yaml:"preview"`

	Tracing struct {
		ZipkinURL string `yaml:"zipkin_url"`
	} `yaml:"tracing"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

// Load reads configuration relative to the working directory. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom reads config/{ENV_NAME}.yaml (default dev) under root. The API key
// comes from WEATHER_API_KEY, then root/.env, then config/secrets.yaml.
func LoadFrom(root string) (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(root, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{Env: env}

	cfg.WeatherAPIKey, err = loadAPIKey(root)
	if err != nil {
		return nil, err
	}
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env, .env or config/secrets.yaml weather_api_key)")
	}

	cfg.WeatherAPIURL = fc.WeatherAPI.URL
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = "https://api.openweathermap.org/data/2.5/weather"
	}
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 5*time.Second)

	cfg.PollInterval = parseDuration(fc.Poll.Interval, 5*time.Minute)
	cfg.DecodeMode, err = parser.ParseMode(fc.Poll.DecodeMode)
	if err != nil {
		return nil, fmt.Errorf("poll.decode_mode: %w", err)
	}

	cfg.Units, err = render.ParseUnits(fc.Display.Units)
	if err != nil {
		return nil, fmt.Errorf("display.units: %w", err)
	}
	cfg.USADate = fc.Display.USADate
	cfg.Timezone = time.Local
	if tz := strings.TrimSpace(fc.Display.Timezone); tz != "" {
		cfg.Timezone, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("display.timezone: %w", err)
		}
	}
	cfg.AssetsDir = fc.Display.AssetsDir
	if cfg.AssetsDir == "" {
		cfg.AssetsDir = "assets"
	}
	if !filepath.IsAbs(cfg.AssetsDir) {
		cfg.AssetsDir = filepath.Join(root, cfg.AssetsDir)
	}
	cfg.SeasonalBackground = true
	if fc.Display.SeasonalBackground != nil {
		cfg.SeasonalBackground = *fc.Display.SeasonalBackground
	}
	cfg.Splash = render.DefaultSplashPath
	if fc.Display.Splash != nil {
		cfg.Splash = strings.TrimSpace(*fc.Display.Splash)
	}

	cfg.Locations, err = validation.ValidateLocations(fc.Locations)
	if err != nil {
		return nil, fmt.Errorf("locations: %w", err)
	}

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 500*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 5*time.Second)

	cfg.CircuitBreakerEnabled = true
	if fc.CircuitBreaker.Enabled != nil {
		cfg.CircuitBreakerEnabled = *fc.CircuitBreaker.Enabled
	}
	cfg.CBFailureThreshold = fc.CircuitBreaker.FailureThreshold
	if cfg.CBFailureThreshold <= 0 {
		cfg.CBFailureThreshold = 5
	}
	cfg.CBSuccessThreshold = fc.CircuitBreaker.SuccessThreshold
	if cfg.CBSuccessThreshold <= 0 {
		cfg.CBSuccessThreshold = 1
	}
	cfg.CBTimeout = parseDuration(fc.CircuitBreaker.Timeout, 2*time.Minute)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 30*time.Minute)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}
	cfg.DegradedMinSamples = fc.Health.DegradedMinSamples
	if cfg.DegradedMinSamples <= 0 {
		cfg.DegradedMinSamples = 2
	}
	cfg.DegradedRetryInitial = parseDuration(fc.Health.DegradedRetryInitial, 30*time.Second)
	cfg.DegradedRetryMax = parseDuration(fc.Health.DegradedRetryMax, 10*time.Minute)

	cfg.PreviewEnabled = fc.Preview.Enabled
	cfg.PreviewPort = fc.Preview.Port
	if cfg.PreviewPort == "" {
		cfg.PreviewPort = "8080"
	}
	cfg.RateLimitRPS = fc.Preview.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 5
	}
	cfg.RateLimitBurst = fc.Preview.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 10
	}

	cfg.ZipkinURL = strings.TrimSpace(os.Getenv("ZIPKIN_URL"))
	if cfg.ZipkinURL == "" {
		cfg.ZipkinURL = strings.TrimSpace(fc.Tracing.ZipkinURL)
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 10*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAPIKey resolves the key from the environment, then .env, then secrets.yaml.
// .env is read without mutating the process environment.
func loadAPIKey(root string) (string, error) {
	if key := strings.TrimSpace(os.Getenv("WEATHER_API_KEY")); key != "" {
		return key, nil
	}

	dotenv, err := godotenv.Read(filepath.Join(root, ".env"))
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("read .env file: %w", err)
	}
	if key := strings.TrimSpace(dotenv["WEATHER_API_KEY"]); key != "" {
		return key, nil
	}

	secretsData, err := os.ReadFile(filepath.Join(root, "config", "secrets.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(secretsData, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return strings.TrimSpace(sec.WeatherAPIKey), nil
}

// TrackedLocations returns the location labels used as metric label values.
func (c *Config) TrackedLocations() []string {
	out := make([]string, 0, len(c.Locations))
	for _, loc := range c.Locations {
		out = append(out, loc.Label())
	}
	return out
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero or negative durations are returned as-is for validate to reject.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs cross-field checks after defaults are applied.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.PollInterval < cfg.WeatherAPITimeout {
		return fmt.Errorf("poll.interval (%v) must not be shorter than weather_api.timeout (%v)", cfg.PollInterval, cfg.WeatherAPITimeout)
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		cfg.RetryMaxDelay = cfg.RetryBaseDelay
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("health.degraded_error_pct must be at most 100, got %v", cfg.DegradedErrorPct)
	}
	if cfg.DegradedRetryMax < cfg.DegradedRetryInitial {
		return fmt.Errorf("health.degraded_retry_max must be >= degraded_retry_initial")
	}
	return nil
}
