// Package config loads service configuration from the platform-native
// backend, environment variables, and the platform secret store.
package config

import (
	"strings"
)

type Config struct {
	Server  ServerConfig
	Gemini  GeminiConfig
	Storage StorageConfig
	Session SessionConfig
	Search  SearchConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port    int
	Origins []string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type StorageConfig struct {
	Backend string // "memory" or "sqlite"
	DataDir string
}

type SessionConfig struct {
	TTLHours int
}

type SearchConfig struct {
	Enabled bool
}

type LogConfig struct {
	Level string
}

// defaultOrigins matches what the reference frontend is served from.
var defaultOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
	"https://fluffy-waddle-5g99rp4w79346xq-3000.app.github.dev",
	"https://fluffy-waddle-5g99rp4w79346xq-8000.app.github.dev",
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    8000,
			Origins: defaultOrigins,
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash-lite",
		},
		Storage: StorageConfig{
			Backend: "memory",
			DataDir: defaultDataDir(),
		},
		Session: SessionConfig{
			TTLHours: 24,
		},
		Search: SearchConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.bussola.app) and the
// Gemini key falls back to macOS Keychain. On Linux the backend is a JSON
// file at $XDG_CONFIG_HOME/bussola/config.json and the key falls back to a
// local secrets file.
//
// Environment variables (BUSSOLA_*) override backend values on all
// platforms. A missing API key is not an error: the service starts in
// degraded mode without a generation backend.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret-store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Gemini.APIKey == "" {
		if key, err := kc.Get("bussola", "gemini_api_key"); err == nil && key != "" {
			cfg.Gemini.APIKey = key
		}
	}

	return cfg, nil
}

// splitOrigins parses the comma-separated form origins take in the
// backend and in BUSSOLA_SERVER_ORIGINS.
func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
