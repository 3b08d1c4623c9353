package category

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartplanr/controller"
	"smartplanr/dto"
	"smartplanr/middleware"
	"smartplanr/services"
)

func CategoryController(router *gin.Engine, d *controller.Deps) {
	routes := router.Group("/categories", d.Authenticated())
	{
		routes.GET("", func(c *gin.Context) {
			ListCategories(c, d)
		})
		routes.PUT("/order", func(c *gin.Context) {
			MoveCategories(c, d)
		})
	}
}

// ListCategories returns the user's tasks grouped by category, in the
// session's display order.
func ListCategories(c *gin.Context, d *controller.Deps) {
	userID := middleware.CurrentUserID(c)
	tasks, err := d.Tasks.List(c.Request.Context(), userID)
	if err != nil {
		d.Logger.Error("listing tasks", "user", userID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list categories"})
		return
	}

	order := d.Sessions.Get(userID).SyncOrder(tasks)
	tints := make(map[string]string, len(order))
	for _, name := range order {
		tints[name] = services.CategoryTint(name)
	}

	c.JSON(http.StatusOK, gin.H{
		"order":    order,
		"groups":   services.GroupByCategory(tasks),
		"tints":    tints,
		"defaults": services.DefaultCategories,
	})
}

// MoveCategories applies a drag reorder to the category order.
func MoveCategories(c *gin.Context, d *controller.Deps) {
	userID := middleware.CurrentUserID(c)
	var req dto.MoveCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	tasks, err := d.Tasks.List(c.Request.Context(), userID)
	if err != nil {
		d.Logger.Error("listing tasks", "user", userID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list categories"})
		return
	}

	session := d.Sessions.Get(userID)
	session.SyncOrder(tasks)
	order, err := session.Move(req.From, *req.To)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to move categories"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}
