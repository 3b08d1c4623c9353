package planner

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"smartplanr/controller"
	"smartplanr/dto"
	"smartplanr/middleware"
	"smartplanr/model"
	"smartplanr/services"
)

const reselectHint = "Choose categories that still have incomplete tasks."

func PlannerController(router *gin.Engine, d *controller.Deps) {
	routes := router.Group("/plan", d.Authenticated())
	{
		routes.POST("", func(c *gin.Context) {
			MakePlan(c, d)
		})
		routes.GET("", func(c *gin.Context) {
			GetPlan(c, d)
		})
		routes.DELETE("", func(c *gin.Context) {
			ResetPlan(c, d)
		})
	}
}

// MakePlan starts a plan request over the caller's current tasks. The
// response is 202 with the loading state, or 200 with the final state when
// the request carries ?wait=true.
func MakePlan(c *gin.Context, d *controller.Deps) {
	userID := middleware.CurrentUserID(c)
	var req dto.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Choose at least one category"})
		return
	}
	var chosen []string
	for _, cat := range req.Categories {
		if strings.TrimSpace(cat) != "" {
			chosen = append(chosen, cat)
		}
	}
	if len(chosen) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Choose at least one category"})
		return
	}

	tasks, err := d.Tasks.List(c.Request.Context(), userID)
	if err != nil {
		d.Logger.Error("listing tasks", "user", userID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load tasks"})
		return
	}

	session := d.Sessions.Get(userID).Plan
	done, err := session.Start(d.PlanContext, d.Planner, chosen, tasks)
	if err != nil {
		if errors.Is(err, services.ErrNoEligibleTasks) {
			body := StateJSON(session.State())
			body["hint"] = reselectHint
			c.JSON(http.StatusUnprocessableEntity, body)
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	d.Logger.Info("plan requested", "user", userID, "categories", chosen)

	if c.Query("wait") == "true" {
		select {
		case <-done:
		case <-c.Request.Context().Done():
			return
		}
		c.JSON(http.StatusOK, StateJSON(session.State()))
		return
	}
	c.JSON(http.StatusAccepted, StateJSON(session.State()))
}

func GetPlan(c *gin.Context, d *controller.Deps) {
	state := d.Sessions.Get(middleware.CurrentUserID(c)).Plan.State()
	c.JSON(http.StatusOK, StateJSON(state))
}

func ResetPlan(c *gin.Context, d *controller.Deps) {
	session := d.Sessions.Get(middleware.CurrentUserID(c)).Plan
	session.Reset()
	c.JSON(http.StatusOK, StateJSON(session.State()))
}

// StateJSON renders a plan state with a "status" discriminator.
func StateJSON(state model.PlanState) gin.H {
	body := gin.H{"status": state.Status()}
	switch s := state.(type) {
	case model.PlanLoading:
		body["startedAt"] = s.StartedAt.Format(time.RFC3339)
		body["categories"] = s.Categories
	case model.PlanSuccess:
		body["markdown"] = s.Markdown
		body["model"] = s.Model
		body["finishedAt"] = s.FinishedAt.Format(time.RFC3339)
	case model.PlanFailure:
		body["error"] = s.Message
		body["finishedAt"] = s.FinishedAt.Format(time.RFC3339)
	}
	return body
}
