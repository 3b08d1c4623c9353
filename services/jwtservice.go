package services

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"smartplanr/model"
)

const (
	tokenIssuer     = "smartplanr"
	AccessTokenTTL  = 60 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// ErrTokenRevoked reports a refresh token that was signed out or replaced.
var ErrTokenRevoked = errors.New("refresh token revoked")

// TokenService signs and verifies HS256 access and refresh tokens.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

func NewTokenService(accessSecret, refreshSecret string) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		now:           time.Now,
	}
}

func (s *TokenService) CreateAccessToken(userID, email string) (string, error) {
	now := s.now()
	claims := &model.AccessClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
}

func (s *TokenService) CreateRefreshToken(userID string) (string, error) {
	now := s.now()
	claims := &model.RefreshClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(RefreshTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
}

func (s *TokenService) ParseAccessToken(token string) (*model.AccessClaims, error) {
	claims := &model.AccessClaims{}
	if err := s.parse(token, claims, s.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *TokenService) ParseRefreshToken(token string) (*model.RefreshClaims, error) {
	claims := &model.RefreshClaims{}
	if err := s.parse(token, claims, s.refreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *TokenService) parse(token string, claims jwt.Claims, secret []byte) error {
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	return err
}

// IssueTokens signs a new token pair for user and stores the hashed
// refresh token, replacing any previous one.
func (s *TokenService) IssueTokens(ctx context.Context, accounts AccountStore, user model.User) (string, string, error) {
	access, err := s.CreateAccessToken(user.UserID, user.Email)
	if err != nil {
		return "", "", fmt.Errorf("creating access token: %w", err)
	}
	refresh, err := s.CreateRefreshToken(user.UserID)
	if err != nil {
		return "", "", fmt.Errorf("creating refresh token: %w", err)
	}
	hashed, err := HashRefreshToken(refresh)
	if err != nil {
		return "", "", fmt.Errorf("hashing refresh token: %w", err)
	}
	now := s.now()
	err = accounts.SaveRefreshToken(ctx, model.RefreshToken{
		UserID:       user.UserID,
		RefreshToken: hashed,
		CreatedAt:    now.Unix(),
		Revoked:      false,
		ExpiresIn:    int64(RefreshTokenTTL / time.Second),
	})
	if err != nil {
		return "", "", fmt.Errorf("storing refresh token: %w", err)
	}
	return access, refresh, nil
}

// CheckRefreshToken verifies that token is the live refresh token stored for userID.
func (s *TokenService) CheckRefreshToken(ctx context.Context, accounts AccountStore, userID, token string) error {
	stored, err := accounts.RefreshToken(ctx, userID)
	if err != nil {
		return err
	}
	if stored.Revoked {
		return ErrTokenRevoked
	}
	sum := sha256.Sum256([]byte(token))
	if err := bcrypt.CompareHashAndPassword([]byte(stored.RefreshToken), sum[:]); err != nil {
		return ErrTokenRevoked
	}
	return nil
}

// HashRefreshToken hashes a token for storage. Tokens are reduced with
// SHA-256 first because bcrypt only reads 72 bytes.
func HashRefreshToken(token string) (string, error) {
	sum := sha256.Sum256([]byte(token))
	hashed, err := bcrypt.GenerateFromPassword(sum[:], bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
