package logstore

import (
	"testing"

	"github.com/eagraf/kitsune-hub/internal/installer"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newSQLStore(t *testing.T) *SQLStore {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	store, err := NewSQLStore(db)
	require.NoError(t, err)
	return store
}

func TestSQLStore(t *testing.T) {
	store := newSQLStore(t)

	require.Empty(t, store.Logs("git"))

	require.NoError(t, store.Log("git", installer.ActionInstall, StatusStarted, "starting", ""))
	require.NoError(t, store.Log("node", installer.ActionInstall, StatusStarted, "starting", ""))
	require.NoError(t, store.Log("git", installer.ActionInstall, StatusSuccess, "install completed: ok", "ok"))
	require.NoError(t, store.Log("git", installer.ActionUninstall, StatusFailed, "uninstall failed", "err"))

	entries := store.Logs("git")
	require.Len(t, entries, 3)
	require.Equal(t, "starting", entries[0].Message)
	require.Equal(t, StatusSuccess, entries[1].Status)
	require.Equal(t, installer.ActionUninstall, entries[2].Action)
	require.Equal(t, "err", entries[2].Output)

	all := store.All()
	require.Len(t, all, 2)
	require.Len(t, all["git"], 3)
	require.Len(t, all["node"], 1)

	require.ErrorIs(t, store.Log("", installer.ActionInstall, StatusStarted, "", ""), ErrInvalidID)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(BackendFile, dir, "")
	require.NoError(t, err)
	require.IsType(t, &FileStore{}, store)

	store, err = Open(BackendSQLite, dir, "")
	require.NoError(t, err)
	require.IsType(t, &SQLStore{}, store)
	require.FileExists(t, dir+"/"+SQLiteFile)

	_, err = Open(BackendPostgres, dir, "")
	require.Error(t, err)

	_, err = Open("cassandra", dir, "")
	require.Error(t, err)
}
