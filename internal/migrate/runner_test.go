package migrate

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/glebarez/go-sqlite"
	"github.com/stretchr/testify/require"
)

func openMemDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUpAppliesMigrationsInOrderOnce(t *testing.T) {
	db := openMemDB(t)
	runner := Runner{Dir: "testdata/migrations"}

	require.NoError(t, runner.Up(context.Background(), db))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM widgets`).Scan(&count))
	require.Equal(t, 0, count)

	applied, err := AppliedVersions(context.Background(), db)
	require.NoError(t, err)
	require.True(t, applied[1])
	require.True(t, applied[2])

	// Running again must not re-apply (duplicate CREATE TABLE would error).
	require.NoError(t, runner.Up(context.Background(), db))
}

func TestUpRejectsEmptyDir(t *testing.T) {
	db := openMemDB(t)
	err := Runner{}.Up(context.Background(), db)
	require.Error(t, err)
}

func TestDiscoverUpMigrationsSortsByNumericPrefix(t *testing.T) {
	runner := Runner{Dir: "testdata/migrations"}
	files, err := runner.discoverUpMigrations(os.DirFS("testdata/migrations"))
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.Equal(t, int64(1), files[0].Version)
	require.Equal(t, int64(2), files[1].Version)
}
