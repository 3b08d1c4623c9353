package connection

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"github.com/charmbracelet/log"
	"google.golang.org/api/option"

	"smartplanr/config"
	"smartplanr/controller"
	"smartplanr/services"
)

// FBConnection initializes the Firebase app and its Firestore client.
// Without a credentials file Application Default Credentials are used.
func FBConnection(ctx context.Context, cfg *config.Config) (*firebase.App, *firestore.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("getting Firestore client: %w", err)
	}
	return app, client, nil
}

// BuildDeps wires the stores and services selected by cfg. The returned
// function releases them.
func BuildDeps(ctx context.Context, cfg *config.Config, logger *log.Logger) (*controller.Deps, func(), error) {
	d := &controller.Deps{
		Sessions:    services.NewSessionRegistry(),
		Logger:      logger,
		PlanContext: ctx,
	}
	cleanup := func() {}

	if cfg.SMTP.Enabled() {
		d.Mailer = services.NewSMTPMailer(cfg.SMTP, logger)
	} else {
		logger.Warn("SMTP is not configured; reset codes are only logged")
		d.Mailer = services.NewLogMailer(logger)
	}

	switch cfg.Store {
	case "memory":
		logger.Warn("using in-memory stores; data is lost on restart")
		d.Tasks = services.NewMemoryTaskStore()
		d.Accounts = services.NewMemoryAccountStore()
	default:
		app, client, err := FBConnection(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Firestore connection successful")
		d.Tasks = services.NewFirestoreTaskStore(client, logger)
		d.Accounts = services.NewFirestoreAccountStore(client)
		cleanup = func() {
			if err := client.Close(); err != nil {
				logger.Warn("closing Firestore client", "err", err)
			}
		}
		if cfg.FirebaseAuth {
			authClient, err := app.Auth(ctx)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("getting Firebase Auth client: %w", err)
			}
			d.IDTokens = authClient
		}
	}

	accessSecret, refreshSecret := cfg.JWTSecret, cfg.JWTRefreshSecret
	if accessSecret == "" || refreshSecret == "" {
		if cfg.Store != "memory" {
			cleanup()
			return nil, nil, fmt.Errorf("JWT_SECRET_KEY and JWT_REFRESH_SECRET_KEY must be set")
		}
		logger.Warn("JWT secrets not set; using random secrets for this process")
		accessSecret, refreshSecret = randomSecret(), randomSecret()
	}
	d.Tokens = services.NewTokenService(accessSecret, refreshSecret)

	if cfg.Gemini.APIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set; plan requests will fail")
	}
	gemini := services.NewGeminiClient(cfg.Gemini, logger)
	d.Planner = services.NewPlanner(gemini, cfg.Gemini.PrimaryModel, cfg.Gemini.FallbackModel, cfg.Planner.Location(), logger)

	if cfg.Captcha.Enabled() {
		d.Captcha = services.NewRecaptchaVerifier(cfg.Captcha, logger)
	}
	return d, cleanup, nil
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
