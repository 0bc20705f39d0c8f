package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/BigDataMasons-AI/Crown-Auctions-New-sub000/core"
)

const principalKey = "principal"

// Claims 是access token的內容，Subject 為使用者ID。
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// ParseAndValidateJWT 解析並驗證access token，簽章演算法固定為HS256。
func ParseAndValidateJWT(tokenString, secret, issuer string) (*Claims, error) {
	const op = "ParseAndValidateJWT"
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (any, error) {
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to parse token, err=%w", op, err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("[%s] Invalid subject, err=%w", op, err)
	}
	return claims, nil
}

// extractToken 依序嘗試 Authorization header 和 access_token cookie。
func extractToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return token, true
		}
	}
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token, true
	}
	return "", false
}

// RequireAuth 驗證請求的access token並把主體放進請求context。
// 角色資訊不進token，特權操作由引擎重新向資料庫查證。
func (impl *ServerImpl) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := extractToken(c)
		if !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		claims, err := ParseAndValidateJWT(tokenString, impl.config.Auth.Secret, impl.config.Auth.Issuer)
		if err != nil {
			slog.Debug("Reject invalid access token", slog.Any("error", err))
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(principalKey, core.Principal{
			UserID:   uuid.MustParse(claims.Subject),
			Username: claims.Username,
		})
		c.Next()
	}
}

func mustPrincipal(c *gin.Context) (core.Principal, error) {
	value, ok := c.Get(principalKey)
	if !ok {
		return core.Principal{}, errors.New("principal missing from context")
	}
	principal, ok := value.(core.Principal)
	if !ok {
		return core.Principal{}, errors.New("principal has unexpected type")
	}
	return principal, nil
}
