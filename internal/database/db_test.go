package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()

	db, err := New(Config{
		Path:    filepath.Join(dir, "market.db"),
		Profile: ProfileMarket,
		Name:    "market",
	})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "market", db.Name())
	assert.NoError(t, db.Conn().Ping())
}

func TestNew_DefaultsProfile(t *testing.T) {
	dir := t.TempDir()

	db, err := New(Config{Path: filepath.Join(dir, "x.db"), Name: "x"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, ProfileMarket, db.profile)
}

func TestMigrate_Idempotent(t *testing.T) {
	dir := t.TempDir()

	db, err := New(Config{
		Path:    filepath.Join(dir, "reports.db"),
		Profile: ProfileReports,
		Name:    "reports",
	})
	require.NoError(t, err)
	defer db.Close()

	schema := `CREATE TABLE IF NOT EXISTS t (id INTEGER PRIMARY KEY, v TEXT);`
	require.NoError(t, db.Migrate(schema))
	require.NoError(t, db.Migrate(schema))

	_, err = db.Conn().Exec(`INSERT INTO t (v) VALUES ('a')`)
	assert.NoError(t, err)
}
