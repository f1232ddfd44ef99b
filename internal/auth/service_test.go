package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contractiq/backend/internal/models"
	"github.com/contractiq/backend/internal/store"
)

func newAuthService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory(4, nil)
	return NewService(mem, "test-secret", time.Hour, nil), mem
}

func TestSignupAndLogin(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	sess, err := svc.Signup(ctx, "Acme", "ops@acme.test", "correct horse battery")
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token)
	require.NotNil(t, sess.Tenant)
	assert.NotEqual(t, uuid.Nil, sess.Tenant.ID)
	// The stored credential is a hash, never the password.
	assert.NotContains(t, sess.Tenant.PasswordHash, "correct horse")

	login, err := svc.Login(ctx, "ops@acme.test", "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, sess.Tenant.ID, login.Tenant.ID)
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "", "a@b.test", "longenough")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.Signup(ctx, "Acme", "", "longenough")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.Signup(ctx, "Acme", "a@b.test", "short")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "Acme", "ops@acme.test", "longenough")
	require.NoError(t, err)

	_, err = svc.Signup(ctx, "Imposter", "OPS@ACME.TEST", "longenough")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "Acme", "ops@acme.test", "longenough")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ops@acme.test", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown account reads the same as a wrong password.
	_, err = svc.Login(ctx, "nobody@acme.test", "longenough")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRejectsDeactivatedTenant(t *testing.T) {
	svc, mem := newAuthService(t)
	ctx := context.Background()

	sess, err := svc.Signup(ctx, "Acme", "ops@acme.test", "longenough")
	require.NoError(t, err)

	require.NoError(t, mem.Deactivate(ctx, sess.Tenant.ID, time.Now()))

	_, err = svc.Login(ctx, "ops@acme.test", "longenough")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyTokenRoundTrip(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	sess, err := svc.Signup(ctx, "Acme", "ops@acme.test", "longenough")
	require.NoError(t, err)

	id, err := svc.VerifyToken(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.Tenant.ID, id)
}

func TestVerifyTokenRejectsForgeries(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	sess, err := svc.Signup(ctx, "Acme", "ops@acme.test", "longenough")
	require.NoError(t, err)

	_, err = svc.VerifyToken("not-a-token")
	assert.Error(t, err)

	// Token signed under a different secret fails verification.
	other := NewService(store.NewMemory(4, nil), "other-secret", time.Hour, nil)
	_, err = other.VerifyToken(sess.Token)
	assert.Error(t, err)
}

func TestVerifyTokenExpiry(t *testing.T) {
	mem := store.NewMemory(4, nil)
	svc := NewService(mem, "test-secret", time.Millisecond, nil)
	ctx := context.Background()

	sess, err := svc.Signup(ctx, "Acme", "ops@acme.test", "longenough")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	_, err = svc.VerifyToken(sess.Token)
	assert.Error(t, err)
}

func TestRotatePassword(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := context.Background()

	sess, err := svc.Signup(ctx, "Acme", "ops@acme.test", "longenough")
	require.NoError(t, err)

	err = svc.RotatePassword(ctx, sess.Tenant.ID, "wrong", "newpassword")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = svc.RotatePassword(ctx, sess.Tenant.ID, "longenough", "short")
	assert.ErrorIs(t, err, models.ErrValidation)

	require.NoError(t, svc.RotatePassword(ctx, sess.Tenant.ID, "longenough", "newpassword"))

	_, err = svc.Login(ctx, "ops@acme.test", "longenough")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "ops@acme.test", "newpassword")
	assert.NoError(t, err)
}
