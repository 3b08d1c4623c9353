package connection

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"smartplanr/config"
	"smartplanr/controller"
	"smartplanr/controller/auth"
	"smartplanr/controller/category"
	"smartplanr/controller/planner"
	"smartplanr/controller/task"
	"smartplanr/controller/user"
	"smartplanr/logging"
	"smartplanr/middleware"
)

const shutdownTimeout = 10 * time.Second

// NewRouter registers every route on a fresh engine.
func NewRouter(d *controller.Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(d.Logger))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
	}))

	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "Api is running!"})
	})

	auth.SignUpController(router, d)
	auth.SignInController(router, d)
	auth.PasswordController(router, d)
	user.UserController(router, d)
	task.TaskController(router, d)
	category.CategoryController(router, d)
	planner.PlannerController(router, d)

	return router
}

func StartServer() {
	cfg, err := config.Load()
	if err != nil {
		logging.Logger.Fatal("loading config", "err", err)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel)
	logging.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, cleanup, err := BuildDeps(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("initializing services", "err", err)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     NewRouter(d),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", "err", err)
		}
	}()

	logger.Info("listening", "port", cfg.Port, "store", cfg.Store)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "err", err)
		return
	}
	<-stopped
	logger.Info("server stopped")
}
