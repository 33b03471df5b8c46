package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv глушит переменные окружения, которые могли остаться в shell. Пустое значение viper считает незаданным.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"EXPO_PUBLIC_API_BASE_URL", "EXPO_PUBLIC_API_KEY", "EXPO_PUBLIC_API_TIMEOUT",
		"API_BASE_URL", "API_KEY", "API_TIMEOUT_MS", "API_RETRY_ATTEMPTS",
		"POLLING_DASHBOARD", "POLLING_MONITOR", "SERVER_HOST", "SERVER_PORT",
		"DATABASE_URL", "REDIS_ADDR",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if cfg.API.BaseURL != "http://localhost:8080/api/v1" {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout() != 10*time.Second {
		t.Errorf("timeout = %v", cfg.API.Timeout())
	}
	if cfg.API.RetryAttempts != 1 {
		t.Errorf("retry attempts = %d, retries must be opt-in", cfg.API.RetryAttempts)
	}
	if cfg.Polling.Dashboard != 5*time.Second || cfg.Polling.Monitor != 3*time.Second {
		t.Errorf("polling = %+v", cfg.Polling)
	}
	if cfg.Server.Addr() != "127.0.0.1:8090" {
		t.Errorf("addr = %q", cfg.Server.Addr())
	}
	if cfg.Redis.Addr != "" || cfg.Database.URL != "" {
		t.Error("optional backends must be disabled by default")
	}
}

func TestLoadConfig_ExpoEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("EXPO_PUBLIC_API_BASE_URL", "https://siem.example.com/api/v1/")
	t.Setenv("EXPO_PUBLIC_API_KEY", "secret")
	t.Setenv("EXPO_PUBLIC_API_TIMEOUT", "2500")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.BaseURL != "https://siem.example.com/api/v1" {
		t.Errorf("trailing slash not trimmed: %q", cfg.API.BaseURL)
	}
	if cfg.API.Key != "secret" {
		t.Errorf("key = %q", cfg.API.Key)
	}
	if cfg.API.Timeout() != 2500*time.Millisecond {
		t.Errorf("timeout = %v", cfg.API.Timeout())
	}
}

func TestLoadConfig_GenericAPINamesIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("EXPO_PUBLIC_API_KEY", "pocketsiem-key")
	t.Setenv("EXPO_PUBLIC_API_TIMEOUT", "2500")
	t.Setenv("EXPO_PUBLIC_API_BASE_URL", "https://siem.example.com/api/v1")
	t.Setenv("API_KEY", "some-other-service-key")
	t.Setenv("API_TIMEOUT_MS", "900000")
	t.Setenv("API_BASE_URL", "https://other.example.com")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.Key != "pocketsiem-key" {
		t.Errorf("key = %q", cfg.API.Key)
	}
	if cfg.API.Timeout() != 2500*time.Millisecond {
		t.Errorf("timeout = %v", cfg.API.Timeout())
	}
	if cfg.API.BaseURL != "https://siem.example.com/api/v1" {
		t.Errorf("base url = %q", cfg.API.BaseURL)
	}

	// Без EXPO_PUBLIC_* общие имена тоже не подхватываются
	clearEnv(t)
	t.Setenv("API_KEY", "some-other-service-key")
	cfg, err = LoadConfig(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.Key != "" {
		t.Errorf("generic API_KEY leaked into config: %q", cfg.API.Key)
	}
}

func TestLoadConfig_PlainEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "9200")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9200 || cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("server = %+v, redis = %+v", cfg.Server, cfg.Redis)
	}
}

func TestLoadConfig_File(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	yaml := []byte("polling:\n  dashboard: 10s\nserver:\n  port: 9100\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Polling.Dashboard != 10*time.Second {
		t.Errorf("dashboard = %v", cfg.Polling.Dashboard)
	}
	if cfg.Polling.Monitor != 3*time.Second {
		t.Errorf("monitor default lost: %v", cfg.Polling.Monitor)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		API:     APIConfig{BaseURL: "http://localhost:8080/api/v1", TimeoutMs: 1000},
		Polling: PollingConfig{Dashboard: time.Second, Monitor: time.Second},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := map[string]func(c *Config){
		"no scheme":        func(c *Config) { c.API.BaseURL = "localhost:8080" },
		"empty url":        func(c *Config) { c.API.BaseURL = "" },
		"zero timeout":     func(c *Config) { c.API.TimeoutMs = 0 },
		"zero dashboard":   func(c *Config) { c.Polling.Dashboard = 0 },
		"negative monitor": func(c *Config) { c.Polling.Monitor = -time.Second },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		if _, err := NewLogger(LoggerConfig{Level: "debug", Format: format}); err != nil {
			t.Errorf("format %q: %v", format, err)
		}
	}
	if _, err := NewLogger(LoggerConfig{Level: "loud"}); err == nil {
		t.Error("unknown level accepted")
	}
	if _, err := NewLogger(LoggerConfig{Level: "info", Format: "xml"}); err == nil {
		t.Error("unknown format accepted")
	}
}
