package services

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"smartplanr/model"
)

const (
	refreshTokensCollection  = "refreshTokens"
	passwordResetsCollection = "passwordResets"
	resetCodesCollection     = "codes"
	emailBlocksCollection    = "emailBlocks"
)

// FirestoreAccountStore keeps users in users/{userId}, refresh tokens in
// refreshTokens/{userId}, reset codes in passwordResets/{email}/codes/{ref}
// and reset request blocks in emailBlocks/{email}.
type FirestoreAccountStore struct {
	client *firestore.Client
}

func NewFirestoreAccountStore(client *firestore.Client) *FirestoreAccountStore {
	return &FirestoreAccountStore{client: client}
}

func (s *FirestoreAccountStore) CreateUser(ctx context.Context, user model.User) error {
	users := s.client.Collection(usersCollection)
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.Documents(users.Where("email", "==", user.Email).Limit(1)).GetAll()
		if err != nil {
			return fmt.Errorf("checking email: %w", err)
		}
		if len(docs) > 0 {
			return ErrEmailTaken
		}
		return tx.Create(users.Doc(user.UserID), user)
	})
}

func (s *FirestoreAccountStore) UserByEmail(ctx context.Context, email string) (model.User, error) {
	docs, err := s.client.Collection(usersCollection).Where("email", "==", email).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return model.User{}, fmt.Errorf("looking up user: %w", err)
	}
	if len(docs) == 0 {
		return model.User{}, ErrNotFound
	}
	var u model.User
	if err := docs[0].DataTo(&u); err != nil {
		return model.User{}, fmt.Errorf("decoding user: %w", err)
	}
	if u.UserID == "" {
		u.UserID = docs[0].Ref.ID
	}
	return u, nil
}

func (s *FirestoreAccountStore) UserByID(ctx context.Context, userID string) (model.User, error) {
	doc, err := s.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		return model.User{}, notFoundOr(err, "user")
	}
	var u model.User
	if err := doc.DataTo(&u); err != nil {
		return model.User{}, fmt.Errorf("decoding user: %w", err)
	}
	if u.UserID == "" {
		u.UserID = doc.Ref.ID
	}
	return u, nil
}

func (s *FirestoreAccountStore) SetPassword(ctx context.Context, userID, hash string) error {
	_, err := s.client.Collection(usersCollection).Doc(userID).Update(ctx, []firestore.Update{
		{Path: "password", Value: hash},
	})
	return notFoundOr(err, "user")
}

func (s *FirestoreAccountStore) SaveRefreshToken(ctx context.Context, token model.RefreshToken) error {
	_, err := s.client.Collection(refreshTokensCollection).Doc(token.UserID).Set(ctx, token)
	return err
}

func (s *FirestoreAccountStore) RefreshToken(ctx context.Context, userID string) (model.RefreshToken, error) {
	doc, err := s.client.Collection(refreshTokensCollection).Doc(userID).Get(ctx)
	if err != nil {
		return model.RefreshToken{}, notFoundOr(err, "refresh token")
	}
	var t model.RefreshToken
	if err := doc.DataTo(&t); err != nil {
		return model.RefreshToken{}, fmt.Errorf("decoding refresh token: %w", err)
	}
	return t, nil
}

func (s *FirestoreAccountStore) RevokeRefreshToken(ctx context.Context, userID string) error {
	_, err := s.client.Collection(refreshTokensCollection).Doc(userID).Update(ctx, []firestore.Update{
		{Path: "revoked", Value: true},
	})
	return notFoundOr(err, "refresh token")
}

func (s *FirestoreAccountStore) resetCodes(email string) *firestore.CollectionRef {
	return s.client.Collection(passwordResetsCollection).Doc(email).Collection(resetCodesCollection)
}

func (s *FirestoreAccountStore) SaveResetCode(ctx context.Context, code model.ResetCode) error {
	_, err := s.resetCodes(code.Email).Doc(code.Reference).Set(ctx, code)
	return err
}

func (s *FirestoreAccountStore) ResetCode(ctx context.Context, email, reference string) (model.ResetCode, error) {
	doc, err := s.resetCodes(email).Doc(reference).Get(ctx)
	if err != nil {
		return model.ResetCode{}, notFoundOr(err, "reset code")
	}
	var c model.ResetCode
	if err := doc.DataTo(&c); err != nil {
		return model.ResetCode{}, fmt.Errorf("decoding reset code: %w", err)
	}
	return c, nil
}

func (s *FirestoreAccountStore) UseResetCode(ctx context.Context, email, reference string) error {
	_, err := s.resetCodes(email).Doc(reference).Update(ctx, []firestore.Update{
		{Path: "used", Value: true},
	})
	return notFoundOr(err, "reset code")
}

func (s *FirestoreAccountStore) FailResetAttempt(ctx context.Context, email, reference string) (int, error) {
	ref := s.resetCodes(email).Doc(reference)
	var attempts int
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var c model.ResetCode
		if err := doc.DataTo(&c); err != nil {
			return fmt.Errorf("decoding reset code: %w", err)
		}
		attempts = c.Attempts + 1
		return tx.Update(ref, []firestore.Update{{Path: "attempts", Value: attempts}})
	})
	if err != nil {
		return 0, notFoundOr(err, "reset code")
	}
	return attempts, nil
}

func (s *FirestoreAccountStore) CountLiveResetCodes(ctx context.Context, email string, now time.Time) (int, error) {
	iter := s.resetCodes(email).Where("expiresAt", ">", now).Documents(ctx)
	defer iter.Stop()

	count := 0
	for {
		_, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("counting reset codes: %w", err)
		}
		count++
	}
	return count, nil
}

func (s *FirestoreAccountStore) BlockEmail(ctx context.Context, block model.EmailBlock) error {
	_, err := s.client.Collection(emailBlocksCollection).Doc(block.Email).Set(ctx, block)
	return err
}

func (s *FirestoreAccountStore) IsEmailBlocked(ctx context.Context, email string, now time.Time) (bool, error) {
	ref := s.client.Collection(emailBlocksCollection).Doc(email)
	doc, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("reading email block: %w", err)
	}
	var b model.EmailBlock
	if err := doc.DataTo(&b); err != nil {
		return false, fmt.Errorf("decoding email block: %w", err)
	}
	if now.Before(b.ExpiresAt) {
		return true, nil
	}
	// Expired blocks are removed on read.
	if _, err := ref.Delete(ctx); err != nil {
		return false, fmt.Errorf("removing expired email block: %w", err)
	}
	return false, nil
}

func notFoundOr(err error, what string) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return fmt.Errorf("%s: %w", what, err)
}
