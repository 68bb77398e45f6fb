package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/streamhub/internal/models"
)

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.Error(t, err)
}

func TestOpen_MemoryAndMigrate(t *testing.T) {
	ctx := context.Background()
	gdb, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(gdb) })

	require.NoError(t, Migrate(ctx, gdb))
	assert.True(t, gdb.Migrator().HasTable(&models.User{}))
	assert.True(t, gdb.Migrator().HasColumn(&models.User{}, "refresh_token"))
	require.NoError(t, Ping(ctx, gdb))
}

func TestOpen_SQLiteFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "streamhub.db")

	gdb, err := Open(ctx, "sqlite://"+path)
	require.NoError(t, err)
	require.NoError(t, Migrate(ctx, gdb))

	u := &models.User{Username: "bob", Email: "bob@x.io", FullName: "Bob", Avatar: "a", PasswordHash: "h"}
	require.NoError(t, gdb.Create(u).Error)
	require.NoError(t, Close(gdb))

	reopened, err := Open(ctx, "sqlite://"+path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(reopened) })

	var got models.User
	require.NoError(t, reopened.First(&got, "username = ?", "bob").Error)
	assert.Equal(t, u.ID, got.ID)
}

func TestPing_Closed(t *testing.T) {
	ctx := context.Background()
	gdb, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, Close(gdb))

	assert.Error(t, Ping(ctx, gdb))
}

func TestDialector(t *testing.T) {
	tests := []struct {
		dsn        string
		wantSQLite bool
	}{
		{dsn: ":memory:", wantSQLite: true},
		{dsn: "sqlite:///tmp/x.db", wantSQLite: true},
		{dsn: "postgres://u:p@localhost:5432/db", wantSQLite: false},
		{dsn: "host=localhost user=u dbname=db", wantSQLite: false},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			d, isSQLite := dialector(tt.dsn)
			require.NotNil(t, d)
			assert.Equal(t, tt.wantSQLite, isSQLite)
		})
	}
}
