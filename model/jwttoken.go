package model

import "github.com/golang-jwt/jwt/v5"

// RefreshToken is the stored half of a refresh token, kept in refreshTokens/{userId}.
type RefreshToken struct {
	UserID       string `firestore:"userId" json:"userId"`
	RefreshToken string `firestore:"refreshToken" json:"refreshToken"` // bcrypt(sha256(token))
	CreatedAt    int64  `firestore:"createdAt" json:"createdAt"`       // creation time in seconds
	Revoked      bool   `firestore:"revoked" json:"revoked"`
	ExpiresIn    int64  `firestore:"expiresIn" json:"expiresIn"` // lifetime in seconds
}

type AccessClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}
