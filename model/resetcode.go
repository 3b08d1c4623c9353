package model

import "time"

// MaxResetAttempts is how many wrong OTPs a reset code tolerates.
const MaxResetAttempts = 5

// ResetCode is a one-time password issued for a password reset,
// kept in passwordResets/{email}/codes/{reference}.
type ResetCode struct {
	Email     string    `firestore:"email"`
	OTP       string    `firestore:"otp"`
	Reference string    `firestore:"reference"`
	Used      bool      `firestore:"used"`
	Attempts  int       `firestore:"attempts"` // wrong OTP submissions
	CreatedAt time.Time `firestore:"createdAt"`
	ExpiresAt time.Time `firestore:"expiresAt"`
}

// Valid reports whether the code can still be redeemed at now.
func (r ResetCode) Valid(now time.Time) bool {
	return !r.Used && r.Attempts < MaxResetAttempts && now.Before(r.ExpiresAt)
}

// EmailBlock stops reset requests for an email until ExpiresAt,
// kept in emailBlocks/{email}.
type EmailBlock struct {
	Email     string    `firestore:"email"`
	CreatedAt time.Time `firestore:"createdAt"`
	ExpiresAt time.Time `firestore:"expiresAt"`
}
