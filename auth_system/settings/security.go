package settings

import "time"

const (
	// DevTokenTTL: cmd/devtoken 签发开发令牌的默认有效期。
	DevTokenTTL = 24 * time.Hour
	// JWTLeeway: 校验 exp/nbf 时允许的时钟偏差。
	JWTLeeway = 30 * time.Second

	// RateLimitWindow: 限流统计时间窗口。
	RateLimitWindow = 1 * time.Second
	// RateLimitMaxRequests: 单个调用方在窗口期内允许的最大请求数。
	RateLimitMaxRequests = 5
	// RateLimitKeyPrefix: Redis 计数器键前缀。
	RateLimitKeyPrefix = "menu_translator:ratelimit:"
)
