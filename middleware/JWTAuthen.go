package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/auth"
	"github.com/gin-gonic/gin"

	"smartplanr/services"
)

const (
	userIDKey       = "userId"
	refreshTokenKey = "refreshToken"
)

// IDTokenVerifier verifies Firebase ID tokens; *auth.Client implements it.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AccessTokenMiddleware authenticates the request with a bearer access token
// and stores the caller's id under "userId". When idTokens is not nil a
// Firebase ID token is accepted as well.
func AccessTokenMiddleware(tokens *services.TokenService, idTokens IDTokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is missing"})
			return
		}

		claims, err := tokens.ParseAccessToken(tokenString)
		if err == nil {
			if claims.UserID == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid userId in token claims"})
				return
			}
			c.Set(userIDKey, claims.UserID)
			c.Next()
			return
		}

		if idTokens != nil {
			if idToken, idErr := idTokens.VerifyIDToken(c.Request.Context(), tokenString); idErr == nil {
				c.Set(userIDKey, idToken.UID)
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Token is expired or invalid: " + err.Error()})
	}
}

// RefreshTokenMiddleware authenticates the request with a bearer refresh
// token and stores the caller's id and the raw token.
func RefreshTokenMiddleware(tokens *services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Refresh token is missing"})
			return
		}

		claims, err := tokens.ParseRefreshToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid refresh token: " + err.Error()})
			return
		}
		if claims.UserID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims: userId not found"})
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(refreshTokenKey, tokenString)
		c.Next()
	}
}

// CurrentUserID returns the id stored by one of the token middlewares.
func CurrentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// RefreshToken returns the raw token stored by RefreshTokenMiddleware.
func RefreshToken(c *gin.Context) string {
	return c.GetString(refreshTokenKey)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	if !found || token == "" {
		return "", false
	}
	return token, true
}
