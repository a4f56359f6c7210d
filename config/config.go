package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"menu_translator/auth_system/settings"

	"github.com/joho/godotenv"
)

const (
	AuthModeJWT      = "jwt"
	AuthModePresence = "presence"

	DefaultConfigPath = "config/config.json"
)

// Config 进程级只读配置，启动时加载一次后显式注入各 handler。
type Config struct {
	Port           string `json:"port"`
	GinMode        string `json:"gin_mode"`
	MaxUploadBytes int64  `json:"max_upload_bytes"`
	AllowedOrigins string `json:"allowed_origins"`

	AuthMode         string `json:"auth_mode"`
	JWTSecret        string `json:"jwt_secret"`
	JWTPublicKeyFile string `json:"jwt_public_key_file"`
	JWTIssuer        string `json:"jwt_issuer"`

	VisionAPIKey         string `json:"vision_api_key"`
	VisionBaseURL        string `json:"vision_base_url"`
	VisionModel          string `json:"vision_model"`
	VisionTimeoutSeconds int    `json:"vision_timeout_seconds"`

	LabelerAPIKey  string `json:"labeler_api_key"`
	LabelerBaseURL string `json:"labeler_base_url"`
	LabelerModel   string `json:"labeler_model"`

	TranslationBaseURL        string `json:"translation_base_url"`
	TranslationAPIKey         string `json:"translation_api_key"`
	TranslationTimeoutSeconds int    `json:"translation_timeout_seconds"`
	TranslationOCRFullImage   bool   `json:"translation_ocr_full_image"`

	RedisAddr              string `json:"redis_addr"`
	RedisPassword          string `json:"redis_password"`
	RedisDB                int    `json:"redis_db"`
	RateLimitWindowSeconds int    `json:"rate_limit_window_seconds"`
	RateLimitMax           int    `json:"rate_limit_max"`
}

// Default 返回未读取任何文件和环境变量时的配置。
func Default() *Config {
	return &Config{
		Port:                      "8081",
		GinMode:                   "release",
		MaxUploadBytes:            10 << 20,
		AllowedOrigins:            "*",
		AuthMode:                  AuthModeJWT,
		VisionBaseURL:             "https://generativelanguage.googleapis.com",
		VisionModel:               "gemini-3-pro-image-preview",
		VisionTimeoutSeconds:      120,
		TranslationTimeoutSeconds: 30,
		RateLimitWindowSeconds:    int(settings.RateLimitWindow / time.Second),
		RateLimitMax:              settings.RateLimitMaxRequests,
	}
}

// LoadConfig 依次合并默认值、JSON 配置文件、.env 与进程环境变量（后者优先）。
// path 为空时读取默认路径，该文件不存在不报错；显式指定的文件必须存在。
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	explicit := strings.TrimSpace(path) != ""
	resolvedPath := resolveConfigPath(path)
	file, err := os.Open(resolvedPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file (%s): %w", resolvedPath, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to open config file (%s): %w", resolvedPath, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	var parseErr error
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			parseErr = errors.Join(parseErr, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}

	str("PORT", &c.Port)
	str("GIN_MODE", &c.GinMode)
	str("CORS_ALLOWED_ORIGINS", &c.AllowedOrigins)
	str("AUTH_MODE", &c.AuthMode)
	str("JWT_SECRET", &c.JWTSecret)
	str("JWT_PUBLIC_KEY_FILE", &c.JWTPublicKeyFile)
	str("JWT_ISSUER", &c.JWTIssuer)
	str("GEMINI_API_KEY", &c.VisionAPIKey)
	str("GEMINI_BASE_URL", &c.VisionBaseURL)
	str("GEMINI_MODEL", &c.VisionModel)
	num("VISION_TIMEOUT_SECONDS", &c.VisionTimeoutSeconds)
	str("LABELER_API_KEY", &c.LabelerAPIKey)
	str("LABELER_BASE_URL", &c.LabelerBaseURL)
	str("LABELER_MODEL", &c.LabelerModel)
	str("TRANSLATION_API_BASE_URL", &c.TranslationBaseURL)
	str("TRANSLATION_API_KEY", &c.TranslationAPIKey)
	num("TRANSLATION_TIMEOUT_SECONDS", &c.TranslationTimeoutSeconds)
	str("REDIS_ADDR", &c.RedisAddr)
	str("REDIS_PASSWORD", &c.RedisPassword)
	num("REDIS_DB", &c.RedisDB)
	num("RATE_LIMIT_WINDOW_SECONDS", &c.RateLimitWindowSeconds)
	num("RATE_LIMIT_MAX", &c.RateLimitMax)

	if v, ok := lookup("TRANSLATION_OCR_FULL_IMAGE"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			parseErr = errors.Join(parseErr, fmt.Errorf("TRANSLATION_OCR_FULL_IMAGE: %w", err))
		} else {
			c.TranslationOCRFullImage = b
		}
	}
	if v, ok := lookup("MAX_UPLOAD_BYTES"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			parseErr = errors.Join(parseErr, fmt.Errorf("MAX_UPLOAD_BYTES: %w", err))
		} else {
			c.MaxUploadBytes = n
		}
	}

	if parseErr != nil {
		return fmt.Errorf("invalid environment config: %w", parseErr)
	}
	return nil
}

// Validate 校验启动必需项。视觉 API Key 缺失不在此拦截，由 handler 返回 500。
func (c *Config) Validate() error {
	switch c.AuthMode {
	case AuthModeJWT:
		if c.JWTSecret == "" && c.JWTPublicKeyFile == "" {
			return errors.New("auth_mode jwt requires jwt_secret or jwt_public_key_file")
		}
	case AuthModePresence:
	default:
		return fmt.Errorf("unknown auth_mode %q", c.AuthMode)
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("max_upload_bytes must be positive")
	}
	if c.RateLimitMax < 0 || c.RateLimitWindowSeconds < 0 {
		return errors.New("rate limit settings must not be negative")
	}
	for _, origin := range c.OriginList() {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("allowed origin %q must be \"*\" or start with http:// or https://", origin)
		}
	}
	return nil
}

func (c *Config) VisionTimeout() time.Duration {
	return time.Duration(c.VisionTimeoutSeconds) * time.Second
}

func (c *Config) TranslationTimeout() time.Duration {
	return time.Duration(c.TranslationTimeoutSeconds) * time.Second
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

// OriginList 拆分逗号分隔的来源列表；"*" 表示放开所有来源。
func (c *Config) OriginList() []string {
	var origins []string
	for _, item := range strings.Split(c.AllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func resolveConfigPath(path string) string {
	if strings.TrimSpace(path) == "" {
		path = DefaultConfigPath
	}
	if filepath.IsAbs(path) {
		return path
	}

	if _, err := os.Stat(path); err == nil {
		return path
	}

	_, currentFile, _, ok := runtime.Caller(0)
	if ok {
		projectRoot := filepath.Clean(filepath.Join(filepath.Dir(currentFile), ".."))
		candidate := filepath.Join(projectRoot, path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return path
}
