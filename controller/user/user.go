package user

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"smartplanr/controller"
	"smartplanr/dto"
	"smartplanr/middleware"
	"smartplanr/model"
	"smartplanr/services"
)

func UserController(router *gin.Engine, d *controller.Deps) {
	routes := router.Group("/user", d.Authenticated())
	{
		routes.GET("/profile", func(c *gin.Context) {
			Profile(c, d)
		})
	}
}

func Profile(c *gin.Context, d *controller.Deps) {
	userID := middleware.CurrentUserID(c)
	user, err := d.Accounts.UserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		d.Logger.Error("loading profile", "user", userID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}

	c.JSON(http.StatusOK, dto.UserResponse{
		UserID: user.UserID,
		Name:   user.Name,
		Email:  user.Email,
		Joined: model.FromEpoch(user.Joined).UTC().Format(time.RFC3339),
	})
}
