package auth

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"smartplanr/controller"
	"smartplanr/dto"
	"smartplanr/model"
	"smartplanr/services"
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// normalizeEmail makes lookups independent of case and surrounding blanks.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func SignUpController(router *gin.Engine, d *controller.Deps) {
	router.POST("/auth/signup", func(c *gin.Context) {
		Signup(c, d)
	})
}

func Signup(c *gin.Context, d *controller.Deps) {
	var request dto.SignupRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request.Name = strings.TrimSpace(request.Name)
	request.Email = normalizeEmail(request.Email)
	if request.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if !emailPattern.MatchString(request.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email format"})
		return
	}
	if len(request.Password) < minPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 6 characters"})
		return
	}

	if d.Captcha != nil {
		if request.CaptchaToken == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "captchaToken is required"})
			return
		}
		if _, err := d.Captcha.Verify(c.Request.Context(), request.CaptchaToken, services.SignupAction, c.ClientIP(), c.Request.UserAgent()); err != nil {
			if errors.Is(err, services.ErrCaptchaRejected) {
				c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
				return
			}
			d.Logger.Error("captcha verification", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify captcha"})
			return
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(request.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	newUser := model.User{
		UserID:   uuid.New().String(),
		Name:     request.Name,
		Email:    request.Email,
		Joined:   model.Epoch(time.Now()),
		Password: string(hashedPassword),
	}
	if err := d.Accounts.CreateUser(c.Request.Context(), newUser); err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Email is already registered"})
			return
		}
		d.Logger.Error("creating user", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	d.Logger.Info("user registered", "user", newUser.UserID)
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"userId":  newUser.UserID,
	})
}
