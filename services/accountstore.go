package services

import (
	"context"
	"time"

	"smartplanr/model"
)

// AccountStore persists users and their credentials.
type AccountStore interface {
	// CreateUser stores a new user, failing with ErrEmailTaken when the
	// email is already registered.
	CreateUser(ctx context.Context, user model.User) error
	UserByEmail(ctx context.Context, email string) (model.User, error)
	UserByID(ctx context.Context, userID string) (model.User, error)
	SetPassword(ctx context.Context, userID, hash string) error

	SaveRefreshToken(ctx context.Context, token model.RefreshToken) error
	RefreshToken(ctx context.Context, userID string) (model.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, userID string) error

	SaveResetCode(ctx context.Context, code model.ResetCode) error
	ResetCode(ctx context.Context, email, reference string) (model.ResetCode, error)
	UseResetCode(ctx context.Context, email, reference string) error
	// FailResetAttempt records a wrong OTP for the code and returns the
	// number of wrong attempts so far.
	FailResetAttempt(ctx context.Context, email, reference string) (int, error)
	// CountLiveResetCodes counts the codes for email that expire after now.
	CountLiveResetCodes(ctx context.Context, email string, now time.Time) (int, error)

	BlockEmail(ctx context.Context, block model.EmailBlock) error
	// IsEmailBlocked reports whether a block for email is still in force at now.
	IsEmailBlocked(ctx context.Context, email string, now time.Time) (bool, error)
}
