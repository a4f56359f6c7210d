package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsHeaders = []string{"Content-Type", "Authorization"}
)

// CORSMiddleware 按配置放开来源；"*" 或空列表表示允许任意来源。
// 预检请求统一返回 200。不带 Origin 的请求同样写入允许来源；来源不在列表中时返回 403。
func CORSMiddleware(origins []string) gin.HandlerFunc {
	handler := corsHandler(origins)
	allowOrigin := fallbackOrigin(origins)
	return func(c *gin.Context) {
		if c.GetHeader("Origin") == "" {
			c.Header("Access-Control-Allow-Origin", allowOrigin)
		}
		handler(c)
	}
}

func corsHandler(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:              corsMethods,
		AllowHeaders:              corsHeaders,
		ExposeHeaders:             []string{"X-Request-ID"},
		OptionsResponseStatusCode: http.StatusOK,
	}
	if allowsAnyOrigin(origins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// PreflightHandle 兜底处理不带 Origin 的 OPTIONS 请求（gin-contrib/cors 只处理跨域请求）。
func PreflightHandle(origins []string) gin.HandlerFunc {
	allowOrigin := fallbackOrigin(origins)
	methods := strings.Join(corsMethods, ", ")
	headers := strings.Join(corsHeaders, ", ")

	return func(c *gin.Context) {
		if c.Writer.Header().Get("Access-Control-Allow-Origin") == "" {
			c.Header("Access-Control-Allow-Origin", allowOrigin)
		}
		c.Header("Access-Control-Allow-Methods", methods)
		c.Header("Access-Control-Allow-Headers", headers)
		c.Status(http.StatusOK)
	}
}

func fallbackOrigin(origins []string) string {
	if allowsAnyOrigin(origins) {
		return "*"
	}
	return origins[0]
}

func allowsAnyOrigin(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
