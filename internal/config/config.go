// Package config loads and validates docwatcher configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/cat-wiki/docwatcher/internal/extract"
	"github.com/cat-wiki/docwatcher/internal/render"
	"github.com/cat-wiki/docwatcher/internal/scrape"
)

// EnvPrefix prefixes every environment override, e.g. DOCWATCHER_OUTPUT_DIR.
const EnvPrefix = "DOCWATCHER"

// Manifest sources.
const (
	SourceGitHub = "github"
	SourceGCS    = "gcs"
	SourceFile   = "file"
)

// Renderer engines.
const (
	EngineChrome = "chrome"
	EngineStatic = "static"
)

// Output backends.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Ledger drivers.
const (
	LedgerNone     = "none"
	LedgerPostgres = "postgres"
)

// Config captures every knob of a docwatcher run.
type Config struct {
	Manifest ManifestConfig `mapstructure:"manifest"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	Renderer RendererConfig `mapstructure:"renderer"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Output   OutputConfig   `mapstructure:"output"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ManifestConfig locates the URL manifest.
type ManifestConfig struct {
	Source string `mapstructure:"source"`
	Format string `mapstructure:"format"`

	Owner   string `mapstructure:"owner"`
	Repo    string `mapstructure:"repo"`
	Path    string `mapstructure:"path"`
	Branch  string `mapstructure:"branch"`
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`

	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSObject string `mapstructure:"gcs_object"`

	File string `mapstructure:"file"`
}

// ScrapeConfig is the retry and pacing policy.
type ScrapeConfig struct {
	RetryAttempts          int           `mapstructure:"retry_attempts"`
	RetryDelay             time.Duration `mapstructure:"retry_delay"`
	MinWaitBetweenRequests time.Duration `mapstructure:"min_wait_between_requests"`
	MaxWaitBetweenRequests time.Duration `mapstructure:"max_wait_between_requests"`
}

// RendererConfig selects and tunes the page renderer.
type RendererConfig struct {
	Engine            string        `mapstructure:"engine"`
	Headless          bool          `mapstructure:"headless"`
	UserAgent         string        `mapstructure:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	ReadyTimeout      time.Duration `mapstructure:"ready_timeout"`
	SettleMin         time.Duration `mapstructure:"settle_min"`
	SettleMax         time.Duration `mapstructure:"settle_max"`
	ScrollDistance    int           `mapstructure:"scroll_distance"`
	ScrollInterval    time.Duration `mapstructure:"scroll_interval"`
	ScrollPause       time.Duration `mapstructure:"scroll_pause"`
	ScrollMaxSteps    int           `mapstructure:"scroll_max_steps"`
	HostQPS           float64       `mapstructure:"host_qps"`
}

// ExtractConfig overrides the content region selectors.
type ExtractConfig struct {
	Regions  []string `mapstructure:"regions"`
	Excluded []string `mapstructure:"excluded"`
}

// OutputConfig selects where text and metadata files land.
type OutputConfig struct {
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// LedgerConfig configures the run outcome ledger.
type LedgerConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// MetricsConfig controls metrics exposition.
type MetricsConfig struct {
	// ListenAddr serves /metrics and status endpoints while a run is active.
	ListenAddr string `mapstructure:"listen_addr"`
	// Textfile receives a node_exporter textfile snapshot after each run.
	Textfile string `mapstructure:"textfile"`
}

// LoggingConfig controls zap logger setup.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load reads configuration from defaults, an optional .env file, the
// optional file at path, and DOCWATCHER_* environment variables.
func Load(path string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("manifest.token", EnvPrefix+"_MANIFEST_TOKEN", "GITHUB_TOKEN"); err != nil {
		return Config{}, fmt.Errorf("bind token env: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func setDefaults(v *viper.Viper) {
	sc := scrape.DefaultConfig()
	ro := render.DefaultOptions()

	v.SetDefault("manifest.source", SourceGitHub)
	v.SetDefault("manifest.format", "")
	v.SetDefault("manifest.owner", "cat-wiki")
	v.SetDefault("manifest.repo", "DocWatcher")
	v.SetDefault("manifest.path", "urls/doc-urls.txt")
	v.SetDefault("manifest.branch", "main")
	v.SetDefault("manifest.token", "")
	v.SetDefault("manifest.base_url", "")
	v.SetDefault("manifest.gcs_bucket", "")
	v.SetDefault("manifest.gcs_object", "")
	v.SetDefault("manifest.file", "")

	v.SetDefault("scrape.retry_attempts", sc.RetryAttempts)
	v.SetDefault("scrape.retry_delay", sc.RetryDelay)
	v.SetDefault("scrape.min_wait_between_requests", sc.MinWait)
	v.SetDefault("scrape.max_wait_between_requests", sc.MaxWait)

	v.SetDefault("renderer.engine", EngineChrome)
	v.SetDefault("renderer.headless", ro.Headless)
	v.SetDefault("renderer.user_agent", ro.UserAgent)
	v.SetDefault("renderer.navigation_timeout", ro.NavigationTimeout)
	v.SetDefault("renderer.ready_timeout", ro.ReadyTimeout)
	v.SetDefault("renderer.settle_min", ro.SettleMin)
	v.SetDefault("renderer.settle_max", ro.SettleMax)
	v.SetDefault("renderer.scroll_distance", ro.ScrollDistance)
	v.SetDefault("renderer.scroll_interval", ro.ScrollInterval)
	v.SetDefault("renderer.scroll_pause", ro.ScrollPause)
	v.SetDefault("renderer.scroll_max_steps", ro.ScrollMaxSteps)
	v.SetDefault("renderer.host_qps", ro.HostQPS)

	v.SetDefault("extract.regions", extract.DefaultRegionSelectors)
	v.SetDefault("extract.excluded", extract.DefaultExcludedSelectors)

	v.SetDefault("output.backend", BackendLocal)
	v.SetDefault("output.dir", "./data")
	v.SetDefault("output.gcs_bucket", "")
	v.SetDefault("output.gcs_prefix", "")

	v.SetDefault("ledger.driver", LedgerNone)
	v.SetDefault("ledger.dsn", "")
	v.SetDefault("ledger.table", "scrape_outcomes")
	v.SetDefault("ledger.max_conns", 4)
	v.SetDefault("ledger.max_conn_lifetime", 30*time.Minute)

	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("metrics.textfile", "")

	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate performs sanity checks on the loaded configuration. Manifest
// credentials are checked here so a run fails before any page is loaded.
func (c Config) Validate() error {
	switch c.Manifest.Source {
	case SourceGitHub:
		if c.Manifest.Token == "" {
			return fmt.Errorf("manifest.token (or GITHUB_TOKEN) must be set for the github source")
		}
		if c.Manifest.Owner == "" || c.Manifest.Repo == "" || c.Manifest.Path == "" {
			return fmt.Errorf("manifest.owner, manifest.repo and manifest.path must be set")
		}
	case SourceGCS:
		if c.Manifest.GCSBucket == "" || c.Manifest.GCSObject == "" {
			return fmt.Errorf("manifest.gcs_bucket and manifest.gcs_object must be set for the gcs source")
		}
	case SourceFile:
		if c.Manifest.File == "" {
			return fmt.Errorf("manifest.file must be set for the file source")
		}
	default:
		return fmt.Errorf("manifest.source %q is not supported", c.Manifest.Source)
	}

	if err := c.ScrapePolicy().Validate(); err != nil {
		return fmt.Errorf("scrape: %w", err)
	}

	switch c.Renderer.Engine {
	case EngineChrome, EngineStatic:
	default:
		return fmt.Errorf("renderer.engine %q is not supported", c.Renderer.Engine)
	}
	if c.Renderer.HostQPS < 0 {
		return fmt.Errorf("renderer.host_qps must be >= 0")
	}

	switch c.Output.Backend {
	case BackendLocal:
		if c.Output.Dir == "" {
			return fmt.Errorf("output.dir must be set for the local backend")
		}
	case BackendGCS:
		if c.Output.GCSBucket == "" {
			return fmt.Errorf("output.gcs_bucket must be set for the gcs backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("output.backend %q is not supported", c.Output.Backend)
	}

	switch c.Ledger.Driver {
	case LedgerNone:
	case LedgerPostgres:
		if c.Ledger.DSN == "" {
			return fmt.Errorf("ledger.dsn must be set for the postgres driver")
		}
	default:
		return fmt.Errorf("ledger.driver %q is not supported", c.Ledger.Driver)
	}
	return nil
}

// ScrapePolicy converts the scrape section for the orchestrator.
func (c Config) ScrapePolicy() scrape.Config {
	return scrape.Config{
		RetryAttempts: c.Scrape.RetryAttempts,
		RetryDelay:    c.Scrape.RetryDelay,
		MinWait:       c.Scrape.MinWaitBetweenRequests,
		MaxWait:       c.Scrape.MaxWaitBetweenRequests,
	}
}

// RenderOptions converts the renderer section. Headers always use the stock
// desktop browser set.
func (c Config) RenderOptions() render.Options {
	return render.Options{
		UserAgent:         c.Renderer.UserAgent,
		Headers:           render.DefaultHeaders(),
		Headless:          c.Renderer.Headless,
		NavigationTimeout: c.Renderer.NavigationTimeout,
		ReadyTimeout:      c.Renderer.ReadyTimeout,
		SettleMin:         c.Renderer.SettleMin,
		SettleMax:         c.Renderer.SettleMax,
		ScrollDistance:    c.Renderer.ScrollDistance,
		ScrollInterval:    c.Renderer.ScrollInterval,
		ScrollPause:       c.Renderer.ScrollPause,
		ScrollMaxSteps:    c.Renderer.ScrollMaxSteps,
		HostQPS:           c.Renderer.HostQPS,
	}.WithDefaults()
}
