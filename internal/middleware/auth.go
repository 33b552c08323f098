package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	userIDKey = "user_id"

	TokenAccess  = "access"
	TokenRefresh = "refresh"
	TokenReset   = "reset"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

type JWTConfig struct {
	Secret        string
	AccessExpire  time.Duration
	RefreshExpire time.Duration
	ResetExpire   time.Duration
}

// Claims carries the user id in Subject; reset tokens carry the email instead.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"type"`
}

// TokenManager signs and verifies every token the API hands out.
type TokenManager struct {
	config *JWTConfig
}

func NewTokenManager(config *JWTConfig) *TokenManager {
	return &TokenManager{config: config}
}

func (m *TokenManager) sign(subject, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: tokenType,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.Secret))
}

func (m *TokenManager) parse(tokenString, tokenType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Type != tokenType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *TokenManager) NewAccessToken(userID uint) (string, error) {
	return m.sign(strconv.FormatUint(uint64(userID), 10), TokenAccess, m.config.AccessExpire)
}

func (m *TokenManager) NewRefreshToken(userID uint) (string, error) {
	return m.sign(strconv.FormatUint(uint64(userID), 10), TokenRefresh, m.config.RefreshExpire)
}

func (m *TokenManager) ParseAccessToken(tokenString string) (uint, error) {
	return m.parseUserToken(tokenString, TokenAccess)
}

func (m *TokenManager) ParseRefreshToken(tokenString string) (uint, error) {
	return m.parseUserToken(tokenString, TokenRefresh)
}

func (m *TokenManager) parseUserToken(tokenString, tokenType string) (uint, error) {
	claims, err := m.parse(tokenString, tokenType)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

func (m *TokenManager) NewResetToken(email string) (string, error) {
	return m.sign(email, TokenReset, m.config.ResetExpire)
}

func (m *TokenManager) ParseResetToken(tokenString string) (string, error) {
	claims, err := m.parse(tokenString, TokenReset)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (m *TokenManager) ResetTTL() time.Duration {
	return m.config.ResetExpire
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"detail": []gin.H{{
			"loc":  []string{"header", "Authorization"},
			"msg":  msg,
			"type": "unauthorized",
		}},
	})
}

// UserLookup reports whether a token subject still has an account.
type UserLookup interface {
	Exists(ctx context.Context, userID uint) (bool, error)
}

// NewJWTAuth rejects requests without a valid Bearer access token for an
// existing account and stores the caller's id for GetUserID.
func NewJWTAuth(config *JWTConfig, users UserLookup) gin.HandlerFunc {
	tokens := NewTokenManager(config)
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "Not authenticated")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(c, "Invalid authorization header format")
			return
		}

		userID, err := tokens.ParseAccessToken(strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				unauthorized(c, "Token has expired")
				return
			}
			unauthorized(c, "Could not validate credentials")
			return
		}

		// 令牌有效但账号可能已删除
		exists, err := users.Exists(c.Request.Context(), userID)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"detail": []gin.H{{"loc": []string{}, "msg": "Internal server error", "type": "internal"}},
			})
			return
		}
		if !exists {
			unauthorized(c, "Could not validate credentials")
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// GetUserID returns the authenticated caller, or 0 outside NewJWTAuth.
func GetUserID(c *gin.Context) uint {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
