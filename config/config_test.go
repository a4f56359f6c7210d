package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func envLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envLookup(map[string]string{
		"PORT":                        "9090",
		"GEMINI_API_KEY":              " key-123 ",
		"GEMINI_MODEL":                "gemini-test",
		"VISION_TIMEOUT_SECONDS":      "15",
		"TRANSLATION_API_BASE_URL":    "https://translate.example.com",
		"TRANSLATION_OCR_FULL_IMAGE":  "true",
		"MAX_UPLOAD_BYTES":            "2048",
		"CORS_ALLOWED_ORIGINS":        "https://a.example.com, https://b.example.com",
		"RATE_LIMIT_MAX":              "0",
		"TRANSLATION_TIMEOUT_SECONDS": "",
	}))
	if err != nil {
		t.Fatalf("applyEnv() unexpected error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.VisionAPIKey != "key-123" {
		t.Errorf("VisionAPIKey = %q, want trimmed key", cfg.VisionAPIKey)
	}
	if cfg.VisionModel != "gemini-test" {
		t.Errorf("VisionModel = %q", cfg.VisionModel)
	}
	if cfg.VisionTimeout() != 15*time.Second {
		t.Errorf("VisionTimeout() = %v, want 15s", cfg.VisionTimeout())
	}
	if cfg.TranslationTimeout() != 30*time.Second {
		t.Errorf("TranslationTimeout() = %v, want default 30s", cfg.TranslationTimeout())
	}
	if !cfg.TranslationOCRFullImage {
		t.Error("TranslationOCRFullImage should be true")
	}
	if cfg.MaxUploadBytes != 2048 {
		t.Errorf("MaxUploadBytes = %d, want 2048", cfg.MaxUploadBytes)
	}
	if cfg.RateLimitMax != 0 {
		t.Errorf("RateLimitMax = %d, want 0", cfg.RateLimitMax)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if got := cfg.OriginList(); !reflect.DeepEqual(got, want) {
		t.Errorf("OriginList() = %v, want %v", got, want)
	}
}

func TestApplyEnvRejectsBadNumbers(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envLookup(map[string]string{
		"REDIS_DB":                   "one",
		"TRANSLATION_OCR_FULL_IMAGE": "maybe",
	}))
	if err == nil {
		t.Fatal("applyEnv() should fail on malformed values")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{
			name:        "jwt without secret",
			mutate:      func(c *Config) {},
			expectError: true,
		},
		{
			name:        "jwt with secret",
			mutate:      func(c *Config) { c.JWTSecret = "s3cret" },
			expectError: false,
		},
		{
			name:        "jwt with public key file",
			mutate:      func(c *Config) { c.JWTPublicKeyFile = "/etc/keys/pub.pem" },
			expectError: false,
		},
		{
			name:        "presence mode",
			mutate:      func(c *Config) { c.AuthMode = AuthModePresence },
			expectError: false,
		},
		{
			name:        "unknown mode",
			mutate:      func(c *Config) { c.AuthMode = "basic" },
			expectError: true,
		},
		{
			name: "origin without scheme",
			mutate: func(c *Config) {
				c.AuthMode = AuthModePresence
				c.AllowedOrigins = "cameramenu.example.com"
			},
			expectError: true,
		},
		{
			name: "zero upload limit",
			mutate: func(c *Config) {
				c.AuthMode = AuthModePresence
				c.MaxUploadBytes = 0
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectError && err == nil {
				t.Error("Validate() should have returned error")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"auth_mode":"presence","vision_model":"file-model","translation_base_url":"https://file.example.com"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GEMINI_MODEL", "env-model")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.VisionModel != "env-model" {
		t.Errorf("VisionModel = %q, env should win over file", cfg.VisionModel)
	}
	if cfg.TranslationBaseURL != "https://file.example.com" {
		t.Errorf("TranslationBaseURL = %q", cfg.TranslationBaseURL)
	}
	if cfg.VisionBaseURL == "" {
		t.Error("VisionBaseURL default should survive file load")
	}
}

func TestLoadConfigMissingDefaultFile(t *testing.T) {
	t.Setenv("AUTH_MODE", AuthModePresence)
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if cfg.Port != "8081" {
		t.Errorf("Port = %q, want default", cfg.Port)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	t.Setenv("AUTH_MODE", AuthModePresence)
	path := filepath.Join(t.TempDir(), "absent.json")
	_, err := LoadConfig(path)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("LoadConfig(%q) error = %v, want not-exist", path, err)
	}
}
