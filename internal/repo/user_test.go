package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/streamhub/internal/db"
	"github.com/Skotchmaster/streamhub/internal/domain"
	"github.com/Skotchmaster/streamhub/internal/hash"
	"github.com/Skotchmaster/streamhub/internal/models"
)

func newTestRepo(t *testing.T) *GormRepo {
	t.Helper()
	ctx := context.Background()
	gdb, err := db.Open(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })
	return New(gdb)
}

func seedUser(t *testing.T, r *GormRepo, username, email, password string) *models.User {
	t.Helper()
	pw, err := hash.HashPassword(password)
	require.NoError(t, err)
	u := &models.User{
		Username:     username,
		Email:        email,
		FullName:     "Test " + username,
		Avatar:       "https://cdn.example/" + username + ".png",
		PasswordHash: pw,
	}
	require.NoError(t, r.Create(context.Background(), u))
	return u
}

func TestGormRepo_CreateAndFind(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "alice", "a@x.io", "pw1")
	require.NotEqual(t, uuid.Nil, u.ID)

	tests := []struct {
		name     string
		username string
		email    string
	}{
		{name: "by username", username: "alice"},
		{name: "by email", email: "a@x.io"},
		{name: "both match", username: "alice", email: "a@x.io"},
		{name: "email matches only", username: "nobody", email: "a@x.io"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.FindByUsernameOrEmail(ctx, tt.username, tt.email)
			require.NoError(t, err)
			assert.Equal(t, u.ID, got.ID)
		})
	}

	got, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Nil(t, got.RefreshToken)
}

func TestGormRepo_Find_Errors(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	_, err := r.FindByUsernameOrEmail(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = r.FindByUsernameOrEmail(ctx, "ghost", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGormRepo_Create_Conflict(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedUser(t, r, "alice", "a@x.io", "pw1")

	dupName := &models.User{Username: "alice", Email: "other@x.io", FullName: "A", Avatar: "a", PasswordHash: "h"}
	assert.ErrorIs(t, r.Create(ctx, dupName), domain.ErrConflict)

	dupEmail := &models.User{Username: "other", Email: "a@x.io", FullName: "A", Avatar: "a", PasswordHash: "h"}
	assert.ErrorIs(t, r.Create(ctx, dupEmail), domain.ErrConflict)
}

func TestGormRepo_Create_Validation(t *testing.T) {
	r := newTestRepo(t)
	err := r.Create(context.Background(), &models.User{Username: "x"})
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "email")
	assert.Contains(t, err.Error(), "avatar")
}

func TestGormRepo_VerifyPassword(t *testing.T) {
	r := newTestRepo(t)
	u := seedUser(t, r, "alice", "a@x.io", "pw1")

	assert.True(t, r.VerifyPassword(u, "pw1"))
	assert.False(t, r.VerifyPassword(u, "pw2"))
	assert.False(t, r.VerifyPassword(nil, "pw1"))
}

func TestGormRepo_Save(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "alice", "a@x.io", "pw1")

	u.FullName = ""
	err := r.Save(ctx, u, SaveOptions{ValidateAll: true})
	assert.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, r.Save(ctx, u, SaveOptions{}))
	got, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.FullName)
}

func TestGormRepo_RefreshTokenSlot(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "alice", "a@x.io", "pw1")

	require.NoError(t, r.SetRefreshToken(ctx, u.ID, "r1"))
	got, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "r1", got.CurrentRefreshToken())
	assert.Equal(t, u.PasswordHash, got.PasswordHash)

	ok, err := r.SwapRefreshToken(ctx, u.ID, "stale", "r2")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.SwapRefreshToken(ctx, u.ID, "r1", "r2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.SwapRefreshToken(ctx, u.ID, "r1", "r3")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "r2", got.CurrentRefreshToken())

	require.NoError(t, r.ClearRefreshToken(ctx, u.ID))
	require.NoError(t, r.ClearRefreshToken(ctx, u.ID))
	got, err = r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RefreshToken)

	assert.ErrorIs(t, r.SetRefreshToken(ctx, uuid.New(), "r9"), domain.ErrNotFound)
}

func TestGormRepo_UpdatePasswordHash(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "alice", "a@x.io", "pw1")
	require.NoError(t, r.SetRefreshToken(ctx, u.ID, "r1"))

	newHash, err := hash.HashPassword("pw2")
	require.NoError(t, err)
	require.NoError(t, r.UpdatePasswordHash(ctx, u.ID, newHash))

	got, err := r.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, r.VerifyPassword(got, "pw2"))
	assert.Equal(t, "r1", got.CurrentRefreshToken())

	assert.ErrorIs(t, r.UpdatePasswordHash(ctx, uuid.New(), newHash), domain.ErrNotFound)
}

func TestGormRepo_ClosedDB_Persistence(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := seedUser(t, r, "alice", "a@x.io", "pw1")
	require.NoError(t, db.Close(r.DB))

	assert.ErrorIs(t, r.SetRefreshToken(ctx, u.ID, "r1"), domain.ErrPersistence)
	assert.ErrorIs(t, r.ClearRefreshToken(ctx, u.ID), domain.ErrPersistence)
	_, err := r.FindByID(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestIsUniqueConstraintError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{msg: "UNIQUE constraint failed: users.username", want: true},
		{msg: `ERROR: duplicate key value violates unique constraint "idx_users_email" (SQLSTATE 23505)`, want: true},
		{msg: "connection refused", want: false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isUniqueConstraintError(errString(tt.msg)), tt.msg)
	}
}

type errString string

func (e errString) Error() string { return string(e) }
