package middleware

import (
	"log"
	"net/http"
	"strings"

	"menu_translator/auth_system/token"

	"github.com/gin-gonic/gin"
)

// ContextUserIDKey gin 上下文中保存调用方标识的键。
const ContextUserIDKey = "userID"

// TokenVerifier 由 token.Verifier 实现；为 nil 时仅校验 Bearer 头是否存在。
type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// AuthMiddleware 校验 Authorization Bearer token，并将用户标识写入上下文。
// 失败时直接返回 401，不会触达任何上游调用。
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Missing authorization header")
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		tokenString = strings.TrimSpace(tokenString)
		if !ok || tokenString == "" {
			abortUnauthorized(c, "Invalid authorization header format")
			return
		}

		if verifier == nil {
			c.Next()
			return
		}

		claims, err := verifier.Verify(tokenString)
		if err != nil {
			log.Printf("[auth] token rejected: %v", err)
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(ContextUserIDKey, claims.Identity())
		c.Next()
	}
}

// CurrentUserID 返回已校验的调用方标识；presence 模式下为空串。
func CurrentUserID(c *gin.Context) string {
	value, exists := c.Get(ContextUserIDKey)
	if !exists {
		return ""
	}
	id, _ := value.(string)
	return id
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": message})
}
