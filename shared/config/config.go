package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	YouTube    YouTubeConfig    `yaml:"youtube"`
	AI         AIConfig         `yaml:"ai"`
	Email      EmailConfig      `yaml:"email"`
	Schedule   string           `yaml:"schedule"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	State      StateConfig      `yaml:"state"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Pivot      PivotConfig      `yaml:"pivot"`
	Sources    SourcesConfig    `yaml:"sources"`
	Snapshot   SnapshotConfig   `yaml:"snapshot"`
}

type YouTubeConfig struct {
	ClientID     string `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	TokenFile    string `yaml:"token_file"`
}

type AIConfig struct {
	GeminiAPIKey string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	Model        string `yaml:"model"`
	// Items requested from the planner when a pivot fires.
	PlanSize int `yaml:"plan_size"`
}

type EmailConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SMTPServer string `yaml:"smtp_server"`
	SMTPPort   int    `yaml:"smtp_port"`
	Username   string `yaml:"username" env:"EMAIL_USERNAME"`
	Password   string `yaml:"password" env:"EMAIL_PASSWORD"`
	FromEmail  string `yaml:"from_email"`
	ToEmail    string `yaml:"to_email"`
}

type MonitoringConfig struct {
	HealthPort int `yaml:"health_port"`
}

type StateConfig struct {
	// Directory holding the fallback store and the primary snapshot store.
	Dir          string   `yaml:"dir"`
	HistoryLimit int      `yaml:"history_limit"`
	PriorityKeys []string `yaml:"priority_keys"`
}

// MetricValues is one value per scored metric. Zero means "use the default".
type MetricValues struct {
	APV        float64 `yaml:"apv"`
	CTR        float64 `yaml:"ctr"`
	Engagement float64 `yaml:"engagement"`
	ShortsFeed float64 `yaml:"shorts_feed"`
}

type ScoringConfig struct {
	Targets      MetricValues `yaml:"targets"`
	Weights      MetricValues `yaml:"weights"`
	Caps         MetricValues `yaml:"caps"`
	WarningRatio float64      `yaml:"warning_ratio"`
	ViralScore   int          `yaml:"viral_score"`
	ViralViews   int          `yaml:"viral_views"`
	RisingScore  int          `yaml:"rising_score"`
	SeedingScore int          `yaml:"seeding_score"`
}

// PivotConfig describes the analytics rows fed to the pivot agent. A zero
// ctr_column selects the default column 2.
type PivotConfig struct {
	CTRThreshold float64 `yaml:"ctr_threshold"`
	CTRColumn    int     `yaml:"ctr_column"`
	TitleColumn  int     `yaml:"title_column"`
	Niche        string  `yaml:"niche"`
	Style        string  `yaml:"style"`
}

type SourcesConfig struct {
	// Directory watched for exported Studio reports (report.txt, report.html, rows.json).
	ReportDir string `yaml:"report_dir"`
	// Pull channel totals from the YouTube APIs as well.
	UseAPI bool `yaml:"use_api"`
	// Days of history requested from the Analytics API.
	LookbackDays int `yaml:"lookback_days"`
}

type SnapshotConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// Load reads CONFIG_FILE (default config.yaml) after loading any .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}
	return LoadFile(configFile)
}

func LoadFile(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configFile, err)
	}
	return cfg, nil
}

// Parse decodes YAML, applies environment fallbacks and defaults, and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Defaults returns a config built from the environment and defaults only. It
// is not validated; tools that never reach the APIs use it when no config
// file is present.
func Defaults() *Config {
	var cfg Config
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyEnv() {
	if c.YouTube.ClientID == "" {
		c.YouTube.ClientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if c.YouTube.ClientSecret == "" {
		c.YouTube.ClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	if c.AI.GeminiAPIKey == "" {
		c.AI.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Email.Username == "" {
		c.Email.Username = os.Getenv("EMAIL_USERNAME")
	}
	if c.Email.Password == "" {
		c.Email.Password = os.Getenv("EMAIL_PASSWORD")
	}
}

func (c *Config) applyDefaults() {
	if c.YouTube.TokenFile == "" {
		c.YouTube.TokenFile = "youtube_token.json"
	}
	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.5-flash"
	}
	if c.AI.PlanSize == 0 {
		c.AI.PlanSize = 7
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Schedule == "" {
		c.Schedule = "0 0 9 * * *" // Daily at 9 AM
	}
	if c.Monitoring.HealthPort == 0 {
		c.Monitoring.HealthPort = 8080
	}
	if c.State.Dir == "" {
		c.State.Dir = "state"
	}
	if c.State.HistoryLimit == 0 {
		c.State.HistoryLimit = 10
	}
	if len(c.State.PriorityKeys) == 0 {
		c.State.PriorityKeys = []string{"yppPlan", "yppQueue", "dfl_status"}
	}
	if c.Pivot.CTRThreshold == 0 {
		c.Pivot.CTRThreshold = 10.0
	}
	if c.Pivot.CTRColumn == 0 {
		c.Pivot.CTRColumn = 2
	}
	if c.Sources.ReportDir == "" {
		c.Sources.ReportDir = "reports"
	}
	if c.Sources.LookbackDays == 0 {
		c.Sources.LookbackDays = 28
	}
	if c.Snapshot.Dir == "" {
		c.Snapshot.Dir = "."
	}
}

func (c *Config) validate() error {
	if c.Sources.UseAPI {
		if c.YouTube.ClientID == "" {
			return fmt.Errorf("YouTube client ID is required when sources.use_api is set (set GOOGLE_CLIENT_ID or youtube.client_id)")
		}
		if c.YouTube.ClientSecret == "" {
			return fmt.Errorf("YouTube client secret is required when sources.use_api is set (set GOOGLE_CLIENT_SECRET or youtube.client_secret)")
		}
	}
	if c.AI.GeminiAPIKey == "" {
		return fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY or ai.gemini_api_key)")
	}
	if c.Email.Enabled {
		if c.Email.Username == "" {
			return fmt.Errorf("Email username is required (set EMAIL_USERNAME or email.username)")
		}
		if c.Email.Password == "" {
			return fmt.Errorf("Email password is required (set EMAIL_PASSWORD or email.password)")
		}
		if c.Email.SMTPServer == "" || c.Email.ToEmail == "" {
			return fmt.Errorf("email.smtp_server and email.to_email are required when email is enabled")
		}
	}
	if c.Pivot.CTRColumn < 0 || c.Pivot.TitleColumn < 0 {
		return fmt.Errorf("pivot columns must not be negative")
	}
	if c.Scoring.WarningRatio < 0 || c.Scoring.WarningRatio > 1 {
		return fmt.Errorf("scoring.warning_ratio must be between 0 and 1")
	}
	return nil
}
