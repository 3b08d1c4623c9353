package services

import (
	"context"
	"errors"
	"fmt"

	recaptcha "cloud.google.com/go/recaptchaenterprise/v2/apiv1"
	"cloud.google.com/go/recaptchaenterprise/v2/apiv1/recaptchaenterprisepb"
	"github.com/charmbracelet/log"
	"google.golang.org/api/option"

	"smartplanr/config"
)

// ErrCaptchaRejected reports a reCAPTCHA token that is invalid or was
// issued for another action.
var ErrCaptchaRejected = errors.New("reCAPTCHA verification failed")

// SignupAction is the reCAPTCHA action clients attach to signup tokens.
const SignupAction = "signup"

type CaptchaResult struct {
	Score   float32
	Action  string
	Reasons []string
}

// CaptchaVerifier checks a client-side bot-protection token.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, action, userIP, userAgent string) (*CaptchaResult, error)
}

// RecaptchaVerifier creates reCAPTCHA Enterprise assessments.
type RecaptchaVerifier struct {
	cfg    config.CaptchaConfig
	logger *log.Logger
}

func NewRecaptchaVerifier(cfg config.CaptchaConfig, logger *log.Logger) *RecaptchaVerifier {
	return &RecaptchaVerifier{cfg: cfg, logger: logger}
}

func (v *RecaptchaVerifier) Verify(ctx context.Context, token, action, userIP, userAgent string) (*CaptchaResult, error) {
	var opts []option.ClientOption
	if v.cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(v.cfg.CredentialsFile))
	}
	client, err := recaptcha.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating reCAPTCHA client: %w", err)
	}
	defer client.Close()

	resp, err := client.CreateAssessment(ctx, &recaptchaenterprisepb.CreateAssessmentRequest{
		Parent: fmt.Sprintf("projects/%s", v.cfg.ProjectID),
		Assessment: &recaptchaenterprisepb.Assessment{
			Event: &recaptchaenterprisepb.Event{
				Token:         token,
				SiteKey:       v.cfg.SiteKey,
				UserIpAddress: userIP,
				UserAgent:     userAgent,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating assessment: %w", err)
	}

	props := resp.TokenProperties
	if props == nil || !props.Valid {
		if props != nil {
			v.logger.Warn("reCAPTCHA token invalid", "reason", props.InvalidReason)
		}
		return nil, ErrCaptchaRejected
	}
	if action != "" && props.Action != action {
		v.logger.Warn("reCAPTCHA action mismatch", "want", action, "got", props.Action)
		return nil, ErrCaptchaRejected
	}

	result := &CaptchaResult{Action: props.Action}
	if resp.RiskAnalysis != nil {
		result.Score = resp.RiskAnalysis.Score
		for _, reason := range resp.RiskAnalysis.Reasons {
			result.Reasons = append(result.Reasons, reason.String())
		}
	}
	return result, nil
}
