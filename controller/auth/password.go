package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"smartplanr/controller"
	"smartplanr/dto"
	"smartplanr/model"
	"smartplanr/services"
)

const (
	otpLength    = 6
	refLength    = 10
	resetCodeTTL = 15 * time.Minute
	resetSubject = "SmartPlanr password reset"

	// An email with this many live codes is blocked for resetBlockTime.
	maxLiveResetCodes = 3
	resetBlockTime    = 10 * time.Minute
)

func PasswordController(router *gin.Engine, d *controller.Deps) {
	routes := router.Group("/auth/resetpassword")
	{
		routes.POST("/request", func(c *gin.Context) {
			RequestPasswordReset(c, d)
		})
		routes.POST("", func(c *gin.Context) {
			ResetPassword(c, d)
		})
	}
}

func RequestPasswordReset(c *gin.Context, d *controller.Deps) {
	var req dto.ResetPasswordOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	req.Email = normalizeEmail(req.Email)

	ctx := c.Request.Context()
	if _, err := d.Accounts.UserByEmail(ctx, req.Email); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Email is not registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check existing email"})
		return
	}

	now := time.Now()
	blocked, err := d.Accounts.IsEmailBlocked(ctx, req.Email, now)
	if err != nil {
		d.Logger.Error("checking email block", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check email block status"})
		return
	}
	if blocked {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many OTP requests. Please try again later"})
		return
	}
	live, err := d.Accounts.CountLiveResetCodes(ctx, req.Email, now)
	if err != nil {
		d.Logger.Error("counting reset codes", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check OTP requests"})
		return
	}
	if live >= maxLiveResetCodes {
		err := d.Accounts.BlockEmail(ctx, model.EmailBlock{
			Email:     req.Email,
			CreatedAt: now,
			ExpiresAt: now.Add(resetBlockTime),
		})
		if err != nil {
			d.Logger.Error("blocking email", "err", err)
		}
		d.Logger.Warn("password reset requests blocked", "email", req.Email, "until", now.Add(resetBlockTime))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many OTP requests. Please try again later"})
		return
	}

	otp, err := services.GenerateOTP(otpLength)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate OTP"})
		return
	}
	ref := services.GenerateREF(refLength)

	err = d.Accounts.SaveResetCode(ctx, model.ResetCode{
		Email:     req.Email,
		OTP:       otp,
		Reference: ref,
		CreatedAt: now,
		ExpiresAt: now.Add(resetCodeTTL),
	})
	if err != nil {
		d.Logger.Error("saving reset code", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save OTP"})
		return
	}

	if err := d.Mailer.Send(req.Email, resetSubject, services.ResetEmailContent(otp, ref)); err != nil {
		d.Logger.Error("sending reset email", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "OTP has been sent to your email",
		"ref":     ref,
	})
}

func ResetPassword(c *gin.Context, d *controller.Deps) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	req.Email = normalizeEmail(req.Email)
	if len(req.Password) < minPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 6 characters"})
		return
	}

	ctx := c.Request.Context()
	code, err := d.Accounts.ResetCode(ctx, req.Email, req.Reference)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reference"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read OTP"})
		return
	}
	if !code.Valid(time.Now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "OTP has expired or was already used"})
		return
	}
	if subtle.ConstantTimeCompare([]byte(code.OTP), []byte(req.OTP)) != 1 {
		attempts, err := d.Accounts.FailResetAttempt(ctx, req.Email, req.Reference)
		if err != nil {
			d.Logger.Error("recording wrong OTP", "err", err)
		}
		if attempts >= model.MaxResetAttempts {
			d.Logger.Warn("reset code locked after wrong OTPs", "email", req.Email, "ref", req.Reference)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Too many wrong OTPs. Please request a new code"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid OTP"})
		return
	}

	user, err := d.Accounts.UserByEmail(ctx, req.Email)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}
	if err := d.Accounts.SetPassword(ctx, user.UserID, string(hashedPassword)); err != nil {
		d.Logger.Error("updating password", "user", user.UserID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
		return
	}
	if err := d.Accounts.UseResetCode(ctx, req.Email, req.Reference); err != nil {
		d.Logger.Warn("marking reset code used", "err", err)
	}
	if err := d.Accounts.RevokeRefreshToken(ctx, user.UserID); err != nil && !errors.Is(err, services.ErrNotFound) {
		d.Logger.Warn("revoking refresh token after reset", "user", user.UserID, "err", err)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password reset successfully"})
}
