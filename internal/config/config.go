package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the top-level wildtale configuration.
type Config struct {
	Game       GameConfig      `json:"game"`
	Provider   ProviderConfig  `json:"provider"`
	Dex        DexConfig       `json:"dex"`
	Archive    ArchiveConfig   `json:"archive"`
	Connectors ConnectorConfig `json:"connectors"`
	Scheduler  SchedulerConfig `json:"scheduler"`
	API        APIConfig       `json:"api"`
}

// GameConfig holds session-level settings.
type GameConfig struct {
	StylesDir     string `json:"styles_dir,omitempty"`
	VoteTimeout   int    `json:"vote_timeout,omitempty"`  // seconds, default 5
	AccordRounds  int    `json:"accord_rounds,omitempty"` // negotiation rounds, default 3
	TraceCapacity int    `json:"trace_capacity,omitempty"`
}

// ProviderConfig holds LLM provider settings.
type ProviderConfig struct {
	Type    string `json:"type,omitempty"` // "openai" (default) or "anthropic"
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model"`
}

// DexConfig holds species provider settings.
type DexConfig struct {
	BaseURL   string   `json:"base_url"`
	CacheSize int      `json:"cache_size,omitempty"`
	CacheTTL  int      `json:"cache_ttl,omitempty"` // seconds
	LoreURLs  []string `json:"lore_urls,omitempty"` // articles feeding prompt lore hints
}

// ArchiveConfig holds replay archive settings.
type ArchiveConfig struct {
	Path          string `json:"path,omitempty"` // empty disables the archive
	RetentionDays int    `json:"retention_days,omitempty"`
}

// Enabled reports whether the archive should be opened.
func (a ArchiveConfig) Enabled() bool { return a.Path != "" }

// ConnectorConfig holds settings for external platform connectors.
type ConnectorConfig struct {
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Slack    *SlackConfig    `json:"slack,omitempty"`
	Webhook  *WebhookConfig  `json:"webhook,omitempty"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token     string  `json:"token"`
	AllowFrom []int64 `json:"allow_from,omitempty"`
}

// SlackConfig holds Slack Socket Mode settings.
type SlackConfig struct {
	BotToken string   `json:"bot_token"`
	AppToken string   `json:"app_token"`
	Channels []string `json:"channels,omitempty"`
}

// WebhookConfig holds inbound webhook settings keyed by endpoint name.
type WebhookConfig struct {
	Endpoints map[string]WebhookEndpoint `json:"endpoints"`
}

// WebhookEndpoint holds per-endpoint webhook auth.
type WebhookEndpoint struct {
	Secret      string `json:"secret,omitempty"`
	BearerToken string `json:"bearer_token,omitempty"`
}

// SchedulerConfig holds cron specs for maintenance jobs.
type SchedulerConfig struct {
	PruneSpec string `json:"prune_spec,omitempty"` // default "0 4 * * *"
	SweepSpec string `json:"sweep_spec,omitempty"` // default "*/30 * * * *"
}

// APIConfig holds REST API server settings.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Key  string `json:"api_key"`
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a minimal config from environment variables with
// the WILDTALE_ prefix.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Game: GameConfig{
			StylesDir: os.Getenv("WILDTALE_STYLES_DIR"),
		},
		Dex: DexConfig{
			BaseURL:  getenv("WILDTALE_DEX_URL", "https://pokeapi.co"),
			LoreURLs: parseStringList(os.Getenv("WILDTALE_LORE_URLS")),
		},
		Archive: ArchiveConfig{
			Path:          os.Getenv("WILDTALE_ARCHIVE_PATH"),
			RetentionDays: getenvInt("WILDTALE_ARCHIVE_RETENTION_DAYS", 0),
		},
		API: APIConfig{
			Host: getenv("WILDTALE_API_HOST", "0.0.0.0"),
			Port: getenvInt("WILDTALE_API_PORT", 8080),
			Key:  os.Getenv("WILDTALE_API_KEY"),
		},
	}

	// Provider from env, Anthropic preferred.
	if apiKey := os.Getenv("WILDTALE_ANTHROPIC_API_KEY"); apiKey != "" {
		cfg.Provider = ProviderConfig{
			Type:   "anthropic",
			APIKey: apiKey,
			Model:  getenv("WILDTALE_MODEL", "claude-sonnet-4-20250514"),
		}
	} else if apiKey := os.Getenv("WILDTALE_OPENAI_API_KEY"); apiKey != "" {
		cfg.Provider = ProviderConfig{
			Type:    "openai",
			APIKey:  apiKey,
			BaseURL: os.Getenv("WILDTALE_OPENAI_BASE_URL"),
			Model:   getenv("WILDTALE_MODEL", "gpt-4o"),
		}
	}

	// Telegram connector from env
	if token := os.Getenv("WILDTALE_TELEGRAM_TOKEN"); token != "" {
		cfg.Connectors.Telegram = &TelegramConfig{Token: token}
		if ids := os.Getenv("WILDTALE_TELEGRAM_ALLOW_FROM"); ids != "" {
			parsed, err := parseInt64List(ids)
			if err != nil {
				return nil, fmt.Errorf("config: WILDTALE_TELEGRAM_ALLOW_FROM: %w", err)
			}
			cfg.Connectors.Telegram.AllowFrom = parsed
		}
	}

	// Slack connector from env
	if bot := os.Getenv("WILDTALE_SLACK_BOT_TOKEN"); bot != "" {
		cfg.Connectors.Slack = &SlackConfig{
			BotToken: bot,
			AppToken: os.Getenv("WILDTALE_SLACK_APP_TOKEN"),
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Game.VoteTimeout <= 0 {
		c.Game.VoteTimeout = 5
	}
	if c.Game.AccordRounds <= 0 {
		c.Game.AccordRounds = 3
	}
	if c.Game.TraceCapacity <= 0 {
		c.Game.TraceCapacity = 512
	}
	if c.Dex.CacheSize <= 0 {
		c.Dex.CacheSize = 128
	}
	if c.Dex.CacheTTL <= 0 {
		c.Dex.CacheTTL = 3600
	}
	if c.Archive.Enabled() && c.Archive.RetentionDays <= 0 {
		c.Archive.RetentionDays = 30
	}
	if c.Scheduler.PruneSpec == "" {
		c.Scheduler.PruneSpec = "0 4 * * *"
	}
	if c.Scheduler.SweepSpec == "" {
		c.Scheduler.SweepSpec = "*/30 * * * *"
	}
}

// Validate checks for required fields, collecting every problem.
func (c *Config) Validate() error {
	var errs []string

	if c.Provider.APIKey == "" {
		errs = append(errs, "provider.api_key is required")
	}
	if c.Provider.Model == "" {
		errs = append(errs, "provider.model is required")
	}
	switch c.Provider.Type {
	case "", "openai", "anthropic":
	default:
		errs = append(errs, fmt.Sprintf("provider.type %q is not supported", c.Provider.Type))
	}

	if c.Dex.BaseURL == "" {
		errs = append(errs, "dex.base_url is required")
	}

	if c.Connectors.Telegram != nil && c.Connectors.Telegram.Token == "" {
		errs = append(errs, "connectors.telegram.token is required")
	}
	if s := c.Connectors.Slack; s != nil {
		if s.BotToken == "" {
			errs = append(errs, "connectors.slack.bot_token is required")
		}
		if s.AppToken == "" {
			errs = append(errs, "connectors.slack.app_token is required")
		}
	}
	if w := c.Connectors.Webhook; w != nil && len(w.Endpoints) == 0 {
		errs = append(errs, "connectors.webhook.endpoints must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseStringList(s string) []string {
	var result []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

func parseInt64List(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		result = append(result, n)
	}
	return result, nil
}
