// Package jwtmw はJWTベアラートークンからアカウントIDを取り出すgin用ミドルウェアを提供します。
package jwtmw

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"options_backend/internal/api"
)

const (
	// EnvKeyJWTSecret は署名鍵を保持する環境変数名です。
	EnvKeyJWTSecret = "JWT_SECRET"
	// ContextAccountID はginコンテキストにアカウントIDを格納するキーです。
	ContextAccountID = "accountID"
)

// AuthRequired returns a Gin middleware function that validates JWT tokens
// and restricts access to authenticated accounts only.
// secretが空の場合はリクエストごとに環境変数JWT_SECRETを参照します。
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Get Authorization header
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "missing bearer token"})
			return
		}
		tokenStr := strings.TrimPrefix(auth, "Bearer ")

		// 2. Resolve the signing secret
		key := secret
		if key == "" {
			key = os.Getenv(EnvKeyJWTSecret)
		}
		if key == "" {
			c.AbortWithStatusJSON(http.StatusInternalServerError, api.ErrorResponse{Error: "server misconfigured"})
			return
		}

		// 3. Parse and verify JWT signature (only HMAC allowed)
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(key), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "invalid token"})
			return
		}

		// 4. sub claim is the account id
		claims, _ := token.Claims.(jwt.MapClaims)
		accountID := subject(claims)
		if accountID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "token has no subject"})
			return
		}
		c.Set(ContextAccountID, accountID)
		c.Next()
	}
}

// AccountID はミドルウェアが設定したアカウントIDを返します。
func AccountID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextAccountID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// subject はsubクレームを文字列で返します。数値のsubも受け付けます（JWTの数値はfloat64にデコードされる）。
func subject(claims jwt.MapClaims) string {
	switch sub := claims["sub"].(type) {
	case string:
		return strings.TrimSpace(sub)
	case float64:
		return strconv.FormatFloat(sub, 'f', -1, 64)
	default:
		return ""
	}
}
