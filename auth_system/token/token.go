// Package token verifies bearer tokens issued by the identity provider and mints
// HS256 tokens for local development.
package token

import (
	"crypto"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"menu_translator/auth_system/settings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoVerificationKey = errors.New("no jwt secret or public key configured")
	ErrMissingSubject    = errors.New("token carries no subject")
)

// Claims 兼容身份提供方签发的 sub 与本地签发的 user_id。
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity 返回调用方标识，优先 user_id，其次 sub。
func (c *Claims) Identity() string {
	if id := strings.TrimSpace(c.UserID); id != "" {
		return id
	}
	return strings.TrimSpace(c.Subject)
}

// Verifier 校验签名、过期时间与可选的签发方。
type Verifier struct {
	secret    []byte
	publicKey crypto.PublicKey
	parser    *jwt.Parser
}

// NewVerifier 构建校验器。publicKeyPEM 非空时使用非对称算法，否则使用 HS256 secret。
func NewVerifier(secret string, publicKeyPEM []byte, issuer string) (*Verifier, error) {
	v := &Verifier{}
	methods := []string{}

	if len(publicKeyPEM) > 0 {
		key, algs, err := parsePublicKey(publicKeyPEM)
		if err != nil {
			return nil, err
		}
		v.publicKey = key
		methods = append(methods, algs...)
	} else if secret != "" {
		v.secret = []byte(secret)
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	} else {
		return nil, ErrNoVerificationKey
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithLeeway(settings.JWTLeeway),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	v.parser = jwt.NewParser(opts...)
	return v, nil
}

// NewVerifierFromFile 读取 PEM 公钥文件后构建校验器。
func NewVerifierFromFile(secret, publicKeyFile, issuer string) (*Verifier, error) {
	if publicKeyFile == "" {
		return NewVerifier(secret, nil, issuer)
	}
	pem, err := os.ReadFile(publicKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read jwt public key: %w", err)
	}
	return NewVerifier(secret, pem, issuer)
}

// Verify 解析并校验 token，返回 claims。
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if v.publicKey != nil {
			return v.publicKey, nil
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("token is not valid")
	}
	if claims.Identity() == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

// IssueToken 签发 HS256 开发令牌。
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrNoVerificationKey
	}
	if ttl <= 0 {
		ttl = settings.DevTokenTTL
	}
	now := time.Now()
	claims := &Claims{
		UserID: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

func parsePublicKey(pem []byte) (crypto.PublicKey, []string, error) {
	if key, err := jwt.ParseRSAPublicKeyFromPEM(pem); err == nil {
		return key, []string{"RS256", "RS384", "RS512"}, nil
	}
	if key, err := jwt.ParseECPublicKeyFromPEM(pem); err == nil {
		return key, []string{"ES256", "ES384", "ES512"}, nil
	}
	if key, err := jwt.ParseEdPublicKeyFromPEM(pem); err == nil {
		return key, []string{"EdDSA"}, nil
	}
	return nil, nil, errors.New("unsupported jwt public key format")
}
