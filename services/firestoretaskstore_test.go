package services

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartplanr/logging"
	"smartplanr/model"
)

// newEmulatorClient connects to the Firestore emulator, skipping the test
// when FIRESTORE_EMULATOR_HOST is not set.
func newEmulatorClient(t *testing.T) *firestore.Client {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "smartplanr-test")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestFirestoreTaskStore(t *testing.T) {
	client := newEmulatorClient(t)
	store := NewFirestoreTaskStore(client, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	userID := "user-" + uuid.NewString()

	ch, err := store.Subscribe(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, receive(t, ch))

	task, err := store.Create(ctx, userID, "Essay", time.Now().Add(time.Hour), "")
	require.NoError(t, err)

	got := receive(t, ch)
	require.Len(t, got, 1)
	assert.Equal(t, task.ID, got[0].ID)
	assert.Equal(t, "Uncategorized", got[0].Category)

	require.NoError(t, store.SetDone(ctx, userID, task.ID, true))
	tasks, err := store.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].IsDone)

	assert.ErrorIs(t, store.SetDone(ctx, userID, "missing", true), ErrNotFound)
	require.NoError(t, store.Delete(ctx, userID, task.ID))
	assert.ErrorIs(t, store.Delete(ctx, userID, task.ID), ErrNotFound)
}

func TestFirestoreAccountStore_EmailUnique(t *testing.T) {
	client := newEmulatorClient(t)
	store := NewFirestoreAccountStore(client)
	ctx := context.Background()
	email := uuid.NewString() + "@example.com"

	require.NoError(t, store.CreateUser(ctx, testUser("u-"+uuid.NewString(), email)))
	assert.ErrorIs(t, store.CreateUser(ctx, testUser("u-"+uuid.NewString(), email)), ErrEmailTaken)

	_, err := store.UserByEmail(ctx, "nobody-"+email)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFirestoreAccountStore_ResetThrottle(t *testing.T) {
	client := newEmulatorClient(t)
	store := NewFirestoreAccountStore(client)
	ctx := context.Background()
	email := uuid.NewString() + "@example.com"
	now := time.Now()

	require.NoError(t, store.SaveResetCode(ctx, model.ResetCode{Email: email, OTP: "123456", Reference: "R1", ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, store.SaveResetCode(ctx, model.ResetCode{Email: email, OTP: "123456", Reference: "R0", ExpiresAt: now.Add(-time.Minute)}))
	n, err := store.CountLiveResetCodes(ctx, email, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	attempts, err := store.FailResetAttempt(ctx, email, "R1")
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	_, err = store.FailResetAttempt(ctx, email, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.BlockEmail(ctx, model.EmailBlock{Email: email, CreatedAt: now, ExpiresAt: now.Add(time.Minute)}))
	blocked, err := store.IsEmailBlocked(ctx, email, now)
	require.NoError(t, err)
	assert.True(t, blocked)
	blocked, err = store.IsEmailBlocked(ctx, email, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, blocked)
}
