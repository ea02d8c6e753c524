package config

import (
	"errors"
	"fmt"
	"strconv"
	"testing"
)

// mapBackend is an in-memory ConfigBackend for tests.
type mapBackend struct {
	data map[string]string
}

func (b *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return i, true, nil
}

func (b *mapBackend) SetString(key, val string) error { b.data[key] = val; return nil }
func (b *mapBackend) SetInt(key string, val int) error {
	b.data[key] = strconv.Itoa(val)
	return nil
}
func (b *mapBackend) Delete(key string) error { delete(b.data, key); return nil }

// mockKeychain is a test double for the keychain interface.
type mockKeychain struct {
	value string
	err   error
}

func (m mockKeychain) Get(service, account string) (string, error) {
	return m.value, m.err
}

func emptyEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		if s.env != "" {
			t.Setenv(s.env, "")
		}
	}
}

func TestDefaults(t *testing.T) {
	emptyEnv(t)

	cfg, err := loadWith(&mapBackend{data: map[string]string{}}, mockKeychain{err: errors.New("none")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if len(cfg.Server.Origins) != 4 || cfg.Server.Origins[0] != "http://localhost:3000" {
		t.Errorf("Server.Origins = %v", cfg.Server.Origins)
	}
	if cfg.Gemini.Model != "gemini-2.5-flash-lite" {
		t.Errorf("Gemini.Model = %q", cfg.Gemini.Model)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Storage.Backend = %q, want memory", cfg.Storage.Backend)
	}
	if cfg.Session.TTLHours != 24 {
		t.Errorf("Session.TTLHours = %d, want 24", cfg.Session.TTLHours)
	}
	if !cfg.Search.Enabled {
		t.Error("Search.Enabled = false, want true")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestMissingAPIKeyIsNotFatal(t *testing.T) {
	emptyEnv(t)

	cfg, err := loadWith(&mapBackend{data: map[string]string{}}, mockKeychain{err: errors.New("none")})
	if err != nil {
		t.Fatalf("missing key must not fail the load: %v", err)
	}
	if cfg.Gemini.APIKey != "" {
		t.Errorf("Gemini.APIKey = %q, want empty", cfg.Gemini.APIKey)
	}
}

func TestBackendValuesApplied(t *testing.T) {
	emptyEnv(t)

	b := &mapBackend{data: map[string]string{
		"server.port":       "9001",
		"server.origins":    "https://a.example, https://b.example",
		"gemini.model":      "custom-model",
		"storage.backend":   "sqlite",
		"storage.data_dir":  "/tmp/bussola-test",
		"session.ttl_hours": "48",
		"search.enabled":    "false",
		"log.level":         "debug",
	}}

	cfg, err := loadWith(b, mockKeychain{err: errors.New("none")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9001 {
		t.Errorf("Server.Port = %d, want 9001", cfg.Server.Port)
	}
	if len(cfg.Server.Origins) != 2 || cfg.Server.Origins[1] != "https://b.example" {
		t.Errorf("Server.Origins = %v", cfg.Server.Origins)
	}
	if cfg.Gemini.Model != "custom-model" {
		t.Errorf("Gemini.Model = %q", cfg.Gemini.Model)
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.DataDir != "/tmp/bussola-test" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Session.TTLHours != 48 {
		t.Errorf("Session.TTLHours = %d, want 48", cfg.Session.TTLHours)
	}
	if cfg.Search.Enabled {
		t.Error("Search.Enabled = true, want false")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	emptyEnv(t)
	t.Setenv("BUSSOLA_SERVER_PORT", "7777")
	t.Setenv("BUSSOLA_GEMINI_API_KEY", "env-key")
	t.Setenv("BUSSOLA_SEARCH_ENABLED", "false")

	b := &mapBackend{data: map[string]string{"server.port": "9001"}}
	cfg, err := loadWith(b, mockKeychain{err: errors.New("none")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want env override 7777", cfg.Server.Port)
	}
	if cfg.Gemini.APIKey != "env-key" {
		t.Errorf("Gemini.APIKey = %q, want env-key", cfg.Gemini.APIKey)
	}
	if cfg.Search.Enabled {
		t.Error("Search.Enabled = true, want env override false")
	}
}

func TestKeychainFallback(t *testing.T) {
	emptyEnv(t)

	cfg, err := loadWith(&mapBackend{data: map[string]string{}}, mockKeychain{value: "keychain-secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Gemini.APIKey != "keychain-secret" {
		t.Errorf("Gemini.APIKey = %q, want keychain-secret", cfg.Gemini.APIKey)
	}
}

func TestInvalidEnvIntegerKeepsDefault(t *testing.T) {
	emptyEnv(t)
	t.Setenv("BUSSOLA_SESSION_TTL_HOURS", "not-a-number")

	cfg, err := loadWith(&mapBackend{data: map[string]string{}}, mockKeychain{err: errors.New("none")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Session.TTLHours != 24 {
		t.Errorf("Session.TTLHours = %d, want default 24", cfg.Session.TTLHours)
	}
}

func TestSetKeyRejectsSecrets(t *testing.T) {
	if err := SetKey("gemini.api_key", "x"); err == nil {
		t.Error("expected an error when setting a secret key")
	}
}

func TestValidKeysExcludeSecrets(t *testing.T) {
	for _, k := range ValidKeys() {
		if k == "gemini.api_key" {
			t.Errorf("secret key %q listed as settable", k)
		}
	}
}
