package jwtmw

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewGenerator は各種設定でGeneratorが正しく生成されることを検証します。
func TestNewGenerator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		secret     string
		expiration time.Duration
	}{
		{"standard config", "my-secret-key", time.Hour},
		{"long expiration", "secret", 24 * time.Hour * 30},
		{"short expiration", "s", time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen := NewGenerator(tt.secret, tt.expiration)

			require.NotNil(t, gen)
			assert.Equal(t, tt.secret, string(gen.secret))
			assert.Equal(t, tt.expiration, gen.expiration)
		})
	}
}

// TestGenerator_GenerateToken は生成されたJWTトークンが有効で正しいクレームを含むことを検証します。
func TestGenerator_GenerateToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		accountID string
	}{
		{"uuid account", "3f1c2a8e-0b4e-4c55-9d61-1f2e3a4b5c6d"},
		{"short account", "acc-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen := NewGenerator("test-secret", time.Hour)
			tokenStr, err := gen.GenerateToken(tt.accountID)
			require.NoError(t, err)
			require.NotEmpty(t, tokenStr)

			token, err := jwt.Parse(tokenStr, func(tok *jwt.Token) (any, error) {
				_, ok := tok.Method.(*jwt.SigningMethodHMAC)
				assert.True(t, ok, "unexpected signing method: %v", tok.Header["alg"])
				return []byte("test-secret"), nil
			})
			require.NoError(t, err)
			require.True(t, token.Valid)

			claims := token.Claims.(jwt.MapClaims)
			assert.Equal(t, tt.accountID, claims["sub"])
			assert.Contains(t, claims, "exp")
			assert.Contains(t, claims, "iat")
		})
	}
}

// TestGenerator_GenerateToken_Expiration はトークンのexp・iatクレームが正しい時刻範囲内であることを検証します。
func TestGenerator_GenerateToken_Expiration(t *testing.T) {
	t.Parallel()

	expiration := 2 * time.Hour
	gen := NewGenerator("test-secret", expiration)

	before := time.Now().Truncate(time.Second)
	tokenStr, err := gen.GenerateToken("acc-1")
	after := time.Now().Truncate(time.Second).Add(time.Second)
	require.NoError(t, err)

	token, _ := jwt.Parse(tokenStr, func(*jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	})
	claims := token.Claims.(jwt.MapClaims)

	expUnix := int64(claims["exp"].(float64))
	assert.GreaterOrEqual(t, expUnix, before.Add(expiration).Unix())
	assert.LessOrEqual(t, expUnix, after.Add(expiration).Unix())

	iatUnix := int64(claims["iat"].(float64))
	assert.GreaterOrEqual(t, iatUnix, before.Unix())
	assert.LessOrEqual(t, iatUnix, after.Unix())
}

func TestGenerator_GenerateToken_RequiresAccountID(t *testing.T) {
	t.Parallel()

	_, err := NewGenerator("test-secret", time.Hour).GenerateToken("")
	assert.Error(t, err)
}
