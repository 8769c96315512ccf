package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DefaultLLM string                `toml:"default_llm"`
	LLMs       map[string]*LLMConfig `toml:"llm"`
	Gateway    GatewayConfig         `toml:"gateway"`
	Elicit     ElicitConfig          `toml:"elicit"`
	Journal    JournalConfig         `toml:"journal"`
	Trace      TraceConfig           `toml:"trace"`
	Tools      ToolsConfig           `toml:"tools"`
}

type LLMConfig struct {
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

type GatewayConfig struct {
	Addr         string `toml:"addr"`
	StreamBuffer int    `toml:"stream_buffer"`
}

type ElicitConfig struct {
	// TimeoutSeconds bounds how long a tool waits for a human answer
	// before the elicitation expires. Zero disables expiry.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

type JournalConfig struct {
	Path string `toml:"path"`
}

type TraceConfig struct {
	Endpoint string `toml:"endpoint"`
	URLPath  string `toml:"url_path"`
	APIKey   string `toml:"api_key"`
}

type ToolsConfig struct {
	BraveAPIKey string `toml:"brave_api_key"`
}

func Load() (*Config, error) {
	cfg := &Config{
		DefaultLLM: "openai",
		LLMs: map[string]*LLMConfig{
			"openai": {
				Model: "gpt-4o-mini",
			},
		},
		Gateway: GatewayConfig{
			Addr:         ":8080",
			StreamBuffer: 256,
		},
		Elicit: ElicitConfig{
			TimeoutSeconds: 300,
		},
		Journal: JournalConfig{
			Path: defaultJournalPath(),
		},
	}

	path := configPath()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if llm := cfg.LLMs[cfg.DefaultLLM]; llm != nil && llm.APIKey == "" {
			llm.APIKey = key
		}
	}

	return cfg, nil
}

func configPath() string {
	dir, _ := os.UserConfigDir()
	return filepath.Join(dir, "parley", "config.toml")
}

func defaultJournalPath() string {
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, ".local", "share", "parley", "journal.db")
}
