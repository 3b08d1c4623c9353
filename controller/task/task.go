package task

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartplanr/controller"
	"smartplanr/dto"
	"smartplanr/middleware"
	"smartplanr/model"
	"smartplanr/services"
)

func TaskController(router *gin.Engine, d *controller.Deps) {
	routes := router.Group("/tasks", d.Authenticated())
	{
		routes.GET("", func(c *gin.Context) {
			ListTasks(c, d)
		})
		routes.POST("", func(c *gin.Context) {
			CreateTask(c, d)
		})
		routes.GET("/stream", func(c *gin.Context) {
			StreamTasks(c, d)
		})
		routes.PUT("/:id/done", func(c *gin.Context) {
			SetDone(c, d)
		})
		routes.DELETE("/:id", func(c *gin.Context) {
			DeleteTask(c, d)
		})
	}
}

func ListTasks(c *gin.Context, d *controller.Deps) {
	userID := middleware.CurrentUserID(c)
	tasks, err := d.Tasks.List(c.Request.Context(), userID)
	if err != nil {
		d.Logger.Error("listing tasks", "user", userID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tasks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func CreateTask(c *gin.Context, d *controller.Deps) {
	userID := middleware.CurrentUserID(c)
	var req dto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	task, err := d.Tasks.Create(c.Request.Context(), userID, req.Title, model.FromEpoch(req.DueDate), req.Category)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		d.Logger.Error("creating task", "user", userID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Task created successfully",
		"task":    task,
	})
}

func SetDone(c *gin.Context, d *controller.Deps) {
	userID := middleware.CurrentUserID(c)
	taskID := c.Param("id")
	var req dto.SetDoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	if err := d.Tasks.SetDone(c.Request.Context(), userID, taskID, *req.IsDone); err != nil {
		respondMutationError(c, d, "updating task", userID, taskID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task updated", "id": taskID, "isDone": *req.IsDone})
}

func DeleteTask(c *gin.Context, d *controller.Deps) {
	userID := middleware.CurrentUserID(c)
	taskID := c.Param("id")
	if err := d.Tasks.Delete(c.Request.Context(), userID, taskID); err != nil {
		respondMutationError(c, d, "deleting task", userID, taskID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted", "id": taskID})
}

// StreamTasks pushes the full task set and the reconciled category order
// as a "tasks" server-sent event after every change.
func StreamTasks(c *gin.Context, d *controller.Deps) {
	userID := middleware.CurrentUserID(c)
	ctx := c.Request.Context()
	updates, err := d.Tasks.Subscribe(ctx, userID)
	if err != nil {
		d.Logger.Error("subscribing to tasks", "user", userID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to subscribe"})
		return
	}
	session := d.Sessions.Get(userID)

	c.Stream(func(w io.Writer) bool {
		select {
		case tasks, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("tasks", gin.H{
				"tasks": tasks,
				"order": session.SyncOrder(tasks),
			})
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// respondMutationError maps a failed update or delete. A vanished task is
// not fatal: it is logged and reported as 404.
func respondMutationError(c *gin.Context, d *controller.Deps, action, userID, taskID string, err error) {
	if errors.Is(err, services.ErrNotFound) {
		d.Logger.Warn(action+": task not found", "user", userID, "task", taskID)
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	d.Logger.Error(action, "user", userID, "task", taskID, "err", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
}
