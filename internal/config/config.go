// Package config loads DevMind settings and service credentials.
//
// Settings come from ~/.devmind/config.yaml, then ./.devmind/config.yaml
// (project overrides global), then DEVMIND_* environment variables.
// Credentials live in a separate INI file with [jira] and [svn] sections.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DirName is the per-user and per-project settings directory.
const DirName = ".devmind"

// ─── Types ───────────────────────────────────────────────────────────────────

// Config is the full DevMind configuration.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	API      APIConfig      `mapstructure:"api"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Models   ModelsConfig   `mapstructure:"models"`
	Launcher LauncherConfig `mapstructure:"launcher"`
}

// LogConfig selects level and handler format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig locates the SQLite files and tunes the retry executor.
type DatabaseConfig struct {
	Path          string        `mapstructure:"path"`
	StandardsPath string        `mapstructure:"standards_path"`
	MaxRetries    int           `mapstructure:"max_retries"`
	BaseDelay     time.Duration `mapstructure:"base_delay"`
	BusyTimeout   time.Duration `mapstructure:"busy_timeout"`
	CacheSize     int           `mapstructure:"cache_size"`
}

// BridgeConfig points at the editor extension's WebSocket.
type BridgeConfig struct {
	URL         string        `mapstructure:"url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
}

// APIConfig is the backend HTTP listener.
type APIConfig struct {
	Addr string `mapstructure:"addr"`
}

// MonitorConfig is the monitoring service listener and its timers.
type MonitorConfig struct {
	Addr         string        `mapstructure:"addr"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	KeepAlive    time.Duration `mapstructure:"keep_alive"`
}

// ModelsConfig holds provider keys for the model router.
type ModelsConfig struct {
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	GoogleAPIKey    string `mapstructure:"google_api_key"`
	GeminiBaseURL   string `mapstructure:"gemini_base_url"`
	OllamaBaseURL   string `mapstructure:"ollama_base_url"`
}

// LauncherConfig lists the services started by `devmind launch`.
type LauncherConfig struct {
	StartupTimeout time.Duration   `mapstructure:"startup_timeout"`
	Services       []ServiceConfig `mapstructure:"services"`
}

// ServiceConfig describes one supervised child process.
type ServiceConfig struct {
	Name    string   `mapstructure:"name"`
	Dir     string   `mapstructure:"dir"`
	Command []string          `mapstructure:"command"`
	Port    int               `mapstructure:"port"`
	Env     map[string]string `mapstructure:"env"`
}

// ─── Defaults ────────────────────────────────────────────────────────────────

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{
			Path:          "jira_dashboard.db",
			StandardsPath: "oracle_standards.db",
			MaxRetries:    3,
			BaseDelay:     100 * time.Millisecond,
			BusyTimeout:   30 * time.Second,
			CacheSize:     10000,
		},
		Bridge: BridgeConfig{
			URL:         "ws://127.0.0.1:8765",
			Timeout:     60 * time.Second,
			Temperature: 0.7,
			MaxTokens:   2000,
		},
		API:     APIConfig{Addr: ":8001"},
		Monitor: MonitorConfig{Addr: ":5002", PollInterval: 5 * time.Second, KeepAlive: 30 * time.Second},
		Models: ModelsConfig{
			GeminiBaseURL: "https://generativelanguage.googleapis.com/v1beta",
			OllamaBaseURL: "http://localhost:11434",
		},
		Launcher: LauncherConfig{
			StartupTimeout: 30 * time.Second,
			Services: []ServiceConfig{
				{Name: "Monitoring Service", Command: []string{"devmind", "monitor"}, Port: 5002},
				{Name: "Backend API", Command: []string{"devmind", "serve"}, Port: 8001},
				{
					Name:    "Dashboard",
					Dir:     "dashboard",
					Command: []string{"npm", "start"},
					Port:    3000,
					Env:     map[string]string{"NODE_OPTIONS": "--openssl-legacy-provider"},
				},
			},
		},
	}
}

// ─── Loading ─────────────────────────────────────────────────────────────────

// Load merges the global and project config files over the defaults and
// applies environment overrides. Missing files are not an error.
func Load() (*Config, error) {
	return LoadFiles(GlobalPath(), ProjectPath())
}

// LoadFiles is Load with explicit file paths, later files overriding earlier ones.
func LoadFiles(paths ...string) (*Config, error) {
	v := newViper()
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		v.SetConfigFile(p)
		v.SetConfigType("yaml")
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", p, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	return cfg, nil
}

// newViper registers every default so AutomaticEnv can override nested keys.
func newViper() *viper.Viper {
	d := Default()
	v := viper.New()
	v.SetEnvPrefix("DEVMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.standards_path", d.Database.StandardsPath)
	v.SetDefault("database.max_retries", d.Database.MaxRetries)
	v.SetDefault("database.base_delay", d.Database.BaseDelay)
	v.SetDefault("database.busy_timeout", d.Database.BusyTimeout)
	v.SetDefault("database.cache_size", d.Database.CacheSize)
	v.SetDefault("bridge.url", d.Bridge.URL)
	v.SetDefault("bridge.timeout", d.Bridge.Timeout)
	v.SetDefault("bridge.temperature", d.Bridge.Temperature)
	v.SetDefault("bridge.max_tokens", d.Bridge.MaxTokens)
	v.SetDefault("api.addr", d.API.Addr)
	v.SetDefault("monitor.addr", d.Monitor.Addr)
	v.SetDefault("monitor.poll_interval", d.Monitor.PollInterval)
	v.SetDefault("monitor.keep_alive", d.Monitor.KeepAlive)
	v.SetDefault("models.openai_api_key", "")
	v.SetDefault("models.anthropic_api_key", "")
	v.SetDefault("models.google_api_key", "")
	v.SetDefault("models.gemini_base_url", d.Models.GeminiBaseURL)
	v.SetDefault("models.ollama_base_url", d.Models.OllamaBaseURL)
	v.SetDefault("launcher.startup_timeout", d.Launcher.StartupTimeout)
	v.SetDefault("launcher.services", d.Launcher.Services)

	// Provider keys also honour the names every SDK documents.
	_ = v.BindEnv("models.openai_api_key", "DEVMIND_MODELS_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("models.anthropic_api_key", "DEVMIND_MODELS_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("models.google_api_key", "DEVMIND_MODELS_GOOGLE_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("models.ollama_base_url", "DEVMIND_MODELS_OLLAMA_BASE_URL", "OLLAMA_BASE_URL")
	return v
}

// GlobalPath returns ~/.devmind/config.yaml, or "" without a home directory.
func GlobalPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DirName, "config.yaml")
}

// ProjectPath returns ./.devmind/config.yaml, or "" without a working directory.
func ProjectPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, DirName, "config.yaml")
}
