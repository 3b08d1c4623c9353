package controller

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"smartplanr/middleware"
	"smartplanr/services"
)

// Deps carries everything the HTTP handlers need.
type Deps struct {
	Tasks    services.TaskStore
	Accounts services.AccountStore
	Tokens   *services.TokenService
	IDTokens middleware.IDTokenVerifier // nil unless Firebase Auth is enabled
	Sessions *services.SessionRegistry
	Planner  *services.Planner
	Mailer   services.Mailer
	Captcha  services.CaptchaVerifier // nil disables the signup check
	Logger   *log.Logger

	// PlanContext bounds background plan generation; it outlives requests.
	PlanContext context.Context
}

// Authenticated returns the access token middleware.
func (d *Deps) Authenticated() gin.HandlerFunc {
	return middleware.AccessTokenMiddleware(d.Tokens, d.IDTokens)
}
