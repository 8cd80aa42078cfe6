package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validJSON = `{
  "game": {
    "styles_dir": "/tmp/wildtale-test/styles",
    "vote_timeout": 10,
    "accord_rounds": 2
  },
  "provider": {
    "api_key": "sk-test-key",
    "model": "gpt-4o"
  },
  "dex": {
    "base_url": "https://pokeapi.co",
    "cache_size": 64
  },
  "archive": {
    "path": "/tmp/wildtale-test/archive.db",
    "retention_days": 14
  },
  "connectors": {
    "telegram": {
      "token": "123456:ABC",
      "allow_from": [100, 200]
    }
  },
  "api": {
    "host": "0.0.0.0",
    "port": 8080,
    "api_key": "dashboard-key"
  }
}`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(validJSON), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Game.StylesDir != "/tmp/wildtale-test/styles" {
		t.Errorf("game.styles_dir = %q", cfg.Game.StylesDir)
	}
	if cfg.Game.VoteTimeout != 10 {
		t.Errorf("vote_timeout = %d", cfg.Game.VoteTimeout)
	}
	if cfg.Game.AccordRounds != 2 {
		t.Errorf("accord_rounds = %d", cfg.Game.AccordRounds)
	}
	if cfg.Provider.APIKey != "sk-test-key" {
		t.Errorf("provider api_key = %q", cfg.Provider.APIKey)
	}
	if cfg.Dex.CacheSize != 64 {
		t.Errorf("dex.cache_size = %d", cfg.Dex.CacheSize)
	}
	if !cfg.Archive.Enabled() {
		t.Error("archive should be enabled")
	}
	if cfg.Archive.RetentionDays != 14 {
		t.Errorf("retention_days = %d", cfg.Archive.RetentionDays)
	}
	if cfg.Connectors.Telegram == nil {
		t.Fatal("telegram connector is nil")
	}
	if cfg.Connectors.Telegram.Token != "123456:ABC" {
		t.Errorf("telegram.token = %q", cfg.Connectors.Telegram.Token)
	}
	if len(cfg.Connectors.Telegram.AllowFrom) != 2 {
		t.Errorf("telegram.allow_from = %v", cfg.Connectors.Telegram.AllowFrom)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("api.port = %d", cfg.API.Port)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	minimal := `{"provider": {"api_key": "k", "model": "m"}, "dex": {"base_url": "https://pokeapi.co"}}`
	os.WriteFile(path, []byte(minimal), 0o644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Game.VoteTimeout != 5 {
		t.Errorf("default vote_timeout = %d", cfg.Game.VoteTimeout)
	}
	if cfg.Game.AccordRounds != 3 {
		t.Errorf("default accord_rounds = %d", cfg.Game.AccordRounds)
	}
	if cfg.Game.TraceCapacity != 512 {
		t.Errorf("default trace_capacity = %d", cfg.Game.TraceCapacity)
	}
	if cfg.Dex.CacheSize != 128 || cfg.Dex.CacheTTL != 3600 {
		t.Errorf("dex defaults = %d/%d", cfg.Dex.CacheSize, cfg.Dex.CacheTTL)
	}
	if cfg.Archive.Enabled() {
		t.Error("archive should be disabled without a path")
	}
	if cfg.Scheduler.PruneSpec != "0 4 * * *" {
		t.Errorf("prune_spec = %q", cfg.Scheduler.PruneSpec)
	}
	if cfg.Scheduler.SweepSpec != "*/30 * * * *" {
		t.Errorf("sweep_spec = %q", cfg.Scheduler.SweepSpec)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.json")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	os.WriteFile(path, []byte("not json"), 0o644)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestValidate_MissingProvider(t *testing.T) {
	cfg := &Config{Dex: DexConfig{BaseURL: "https://pokeapi.co"}}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "provider.api_key") {
		t.Errorf("expected api_key error, got %v", err)
	}
	if !strings.Contains(err.Error(), "provider.model") {
		t.Errorf("expected model error too, got %v", err)
	}
}

func TestValidate_UnknownProviderType(t *testing.T) {
	cfg := &Config{
		Provider: ProviderConfig{Type: "bard", APIKey: "k", Model: "m"},
		Dex:      DexConfig{BaseURL: "https://pokeapi.co"},
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Errorf("expected type error, got %v", err)
	}
}

func TestValidate_MissingDexURL(t *testing.T) {
	cfg := &Config{Provider: ProviderConfig{APIKey: "k", Model: "m"}}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "dex.base_url") {
		t.Errorf("expected dex error, got %v", err)
	}
}

func TestValidate_TelegramNoToken(t *testing.T) {
	cfg := &Config{
		Provider:   ProviderConfig{APIKey: "k", Model: "m"},
		Dex:        DexConfig{BaseURL: "https://pokeapi.co"},
		Connectors: ConnectorConfig{Telegram: &TelegramConfig{}},
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "telegram.token") {
		t.Errorf("expected telegram token error, got %v", err)
	}
}

func TestValidate_SlackTokens(t *testing.T) {
	cfg := &Config{
		Provider:   ProviderConfig{APIKey: "k", Model: "m"},
		Dex:        DexConfig{BaseURL: "https://pokeapi.co"},
		Connectors: ConnectorConfig{Slack: &SlackConfig{BotToken: "xoxb-1"}},
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "slack.app_token") {
		t.Errorf("expected slack app_token error, got %v", err)
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := &Config{
		Provider: ProviderConfig{APIKey: "k", Model: "m"},
		Dex:      DexConfig{BaseURL: "https://pokeapi.co"},
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WILDTALE_OPENAI_API_KEY", "sk-env")
	t.Setenv("WILDTALE_MODEL", "gpt-4o-mini")
	t.Setenv("WILDTALE_API_PORT", "9090")
	t.Setenv("WILDTALE_STYLES_DIR", "/env/styles")
	t.Setenv("WILDTALE_TELEGRAM_TOKEN", "tg-token")
	t.Setenv("WILDTALE_TELEGRAM_ALLOW_FROM", "100,200,300")
	t.Setenv("WILDTALE_LORE_URLS", "https://lore.test/a, https://lore.test/b")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Provider.Type != "openai" {
		t.Errorf("provider.type = %q", cfg.Provider.Type)
	}
	if cfg.Provider.APIKey != "sk-env" {
		t.Errorf("provider api_key = %q", cfg.Provider.APIKey)
	}
	if cfg.Provider.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", cfg.Provider.Model)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("api.port = %d", cfg.API.Port)
	}
	if cfg.Game.StylesDir != "/env/styles" {
		t.Errorf("styles_dir = %q", cfg.Game.StylesDir)
	}
	if cfg.Connectors.Telegram == nil {
		t.Fatal("telegram is nil")
	}
	if len(cfg.Connectors.Telegram.AllowFrom) != 3 {
		t.Errorf("allow_from = %v", cfg.Connectors.Telegram.AllowFrom)
	}
	if len(cfg.Dex.LoreURLs) != 2 || cfg.Dex.LoreURLs[1] != "https://lore.test/b" {
		t.Errorf("dex.lore_urls = %v", cfg.Dex.LoreURLs)
	}
}

func TestLoadFromEnv_AnthropicPreferred(t *testing.T) {
	t.Setenv("WILDTALE_ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("WILDTALE_OPENAI_API_KEY", "sk-oai")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Provider.Type != "anthropic" {
		t.Errorf("provider.type = %q", cfg.Provider.Type)
	}
	if cfg.Provider.APIKey != "sk-ant" {
		t.Errorf("provider api_key = %q", cfg.Provider.APIKey)
	}
}
