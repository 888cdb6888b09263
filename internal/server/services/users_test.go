package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/cryptox"
	"github.com/dmitrijs2005/casevault/internal/logging"
	"github.com/dmitrijs2005/casevault/internal/server/auth"
	"github.com/dmitrijs2005/casevault/internal/server/config"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newUserService(t *testing.T) (*UserService, *fakeUsers) {
	t.Helper()
	hasher, err := cryptox.NewHasher(1000, 500)
	require.NoError(t, err)

	rm := &fakeRepoManager{users: newFakeUsers()}
	cfg := &config.Config{SecretKey: "k", AccessTokenValidityDuration: time.Hour}
	s, err := NewUserService(newTxDB(t), rm, hasher, cfg, logging.Nop{})
	require.NoError(t, err)
	return s, rm.users
}

func TestRegisterAndLogin(t *testing.T) {
	s, repo := newUserService(t)
	ctx := context.Background()

	u, err := s.Register(ctx, " Alice@Example.com ", "Alice", "", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, models.RoleClient, u.Role)
	assert.NotContains(t, repo.byEmail["alice@example.com"].PasswordHash, "correct horse")

	token, got, err := s.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	uid, err := auth.GetUserIDFromToken(token, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, u.ID, uid)
}

func TestRegister_Validation(t *testing.T) {
	s, _ := newUserService(t)

	cases := []struct{ email, name, password string }{
		{"not-an-email", "A", "longenough"},
		{"a@example.com", "", "longenough"},
		{"a@example.com", "A", "short"},
	}
	for _, c := range cases {
		_, err := s.Register(context.Background(), c.email, c.name, "", c.password)
		assert.ErrorIs(t, err, common.ErrValidation)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	s, _ := newUserService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "bob@example.com", "Bob", "", "password1")
	require.NoError(t, err)
	_, err = s.Register(ctx, "bob@example.com", "Bob", "", "password2")
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func TestRegister_StorageFailure(t *testing.T) {
	s, repo := newUserService(t)
	repo.createErr = errors.New("db down")

	_, err := s.Register(context.Background(), "c@example.com", "C", "", "password1")
	assert.ErrorIs(t, err, common.ErrPersistence)
}

func TestLogin_Failures(t *testing.T) {
	s, repo := newUserService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, "dana@example.com", "Dana", "", "password1")
	require.NoError(t, err)

	_, _, err = s.Login(ctx, "dana@example.com", "wrong-password")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, _, err = s.Login(ctx, "nobody@example.com", "password1")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	repo.getErr = errors.New("db down")
	_, _, err = s.Login(ctx, "dana@example.com", "password1")
	assert.ErrorIs(t, err, common.ErrPersistence)
}

func TestLogin_LegacyCredentials(t *testing.T) {
	s, repo := newUserService(t)

	legacy, err := (&cryptox.Hasher{Iterations: 500}).Hash("old-password")
	require.NoError(t, err)
	bc, err := bcrypt.GenerateFromPassword([]byte("bcrypt-password"), bcrypt.MinCost)
	require.NoError(t, err)

	repo.byEmail["old@example.com"] = &models.User{ID: "u-old", Email: "old@example.com", PasswordHash: legacy}
	repo.byEmail["bc@example.com"] = &models.User{ID: "u-bc", Email: "bc@example.com", PasswordHash: string(bc)}

	_, u, err := s.Login(context.Background(), "old@example.com", "old-password")
	require.NoError(t, err)
	assert.Equal(t, "u-old", u.ID)

	_, u, err = s.Login(context.Background(), "bc@example.com", "bcrypt-password")
	require.NoError(t, err)
	assert.Equal(t, "u-bc", u.ID)
}
