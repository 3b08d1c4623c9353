package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"smartplanr/controller"
	"smartplanr/dto"
	"smartplanr/middleware"
	"smartplanr/services"
)

func SignInController(router *gin.Engine, d *controller.Deps) {
	routes := router.Group("/auth")
	{
		routes.POST("/signin", func(c *gin.Context) {
			Signin(c, d)
		})
		routes.POST("/refresh", middleware.RefreshTokenMiddleware(d.Tokens), func(c *gin.Context) {
			Refresh(c, d)
		})
		routes.POST("/signout", d.Authenticated(), func(c *gin.Context) {
			Signout(c, d)
		})
	}
}

func Signin(c *gin.Context, d *controller.Deps) {
	var request dto.SigninRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request.Email = normalizeEmail(request.Email)

	ctx := c.Request.Context()
	user, err := d.Accounts.UserByEmail(ctx, request.Email)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		d.Logger.Error("looking up user", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up user"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(request.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid password"})
		return
	}

	accessToken, refreshToken, err := d.Tokens.IssueTokens(ctx, d.Accounts, user)
	if err != nil {
		d.Logger.Error("issuing tokens", "user", user.UserID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create tokens"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login Successfully",
		"token": gin.H{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
		},
	})
}

func Refresh(c *gin.Context, d *controller.Deps) {
	userID := middleware.CurrentUserID(c)
	ctx := c.Request.Context()

	if err := d.Tokens.CheckRefreshToken(ctx, d.Accounts, userID, middleware.RefreshToken(c)); err != nil {
		if errors.Is(err, services.ErrTokenRevoked) || errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Refresh token is no longer valid"})
			return
		}
		d.Logger.Error("checking refresh token", "user", userID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check refresh token"})
		return
	}

	user, err := d.Accounts.UserByID(ctx, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	accessToken, err := d.Tokens.CreateAccessToken(user.UserID, user.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accessToken": accessToken})
}

func Signout(c *gin.Context, d *controller.Deps) {
	userID := middleware.CurrentUserID(c)
	if err := d.Accounts.RevokeRefreshToken(c.Request.Context(), userID); err != nil && !errors.Is(err, services.ErrNotFound) {
		d.Logger.Error("revoking refresh token", "user", userID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign out"})
		return
	}
	d.Sessions.Drop(userID)
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}
