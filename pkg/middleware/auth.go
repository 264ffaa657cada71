package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/pagforte/payment-gateway/pkg/response"
)

const (
	// ContextKeyMerchantID is the gin context key for the authenticated merchant
	ContextKeyMerchantID = "merchant_id"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// AuthConfig holds merchant API authentication settings
type AuthConfig struct {
	Secret string
	Issuer string
}

// MerchantAuth validates the Bearer token and puts the merchant ID into the
// gin context for downstream handlers
func MerchantAuth(cfg *AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorBody("UNAUTHORIZED", "Authorization header with Bearer token is required"))
			return
		}

		merchantID, err := ValidateMerchantToken(strings.TrimPrefix(header, "Bearer "), cfg.Secret)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorBody("TOKEN_EXPIRED", "Access token has expired"))
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorBody("INVALID_TOKEN", "Access token is invalid"))
			return
		}

		c.Set(ContextKeyMerchantID, merchantID)
		c.Next()
	}
}

// ValidateMerchantToken parses an HS256 token and returns the merchant_id claim
func ValidateMerchantToken(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	merchantID, ok := claims["merchant_id"].(string)
	if !ok || merchantID == "" {
		return "", ErrInvalidToken
	}
	return merchantID, nil
}

// GenerateMerchantToken issues a signed access token for a merchant
func GenerateMerchantToken(merchantID, secret, issuer string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":         merchantID,
		"merchant_id": merchantID,
		"iss":         issuer,
		"exp":         time.Now().Add(ttl).Unix(),
		"iat":         time.Now().Unix(),
	})
	return token.SignedString([]byte(secret))
}

// GetMerchantID extracts the authenticated merchant ID from the gin context
func GetMerchantID(c *gin.Context) (string, bool) {
	id, exists := c.Get(ContextKeyMerchantID)
	if !exists {
		return "", false
	}
	s, ok := id.(string)
	return s, ok
}
