package sqliteutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE IF NOT EXISTS things (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL
);
`

func TestOpenDBMemory(t *testing.T) {
	db, err := OpenDB(testSchema, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT INTO things (name) VALUES ('a')`)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM things`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestOpenDBCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	db, err := OpenDB(testSchema, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// reopening against an existing schema must not fail
	db, err = OpenDB(testSchema, path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestStructOpenDB(t *testing.T) {
	c := Struct{File: filepath.Join(t.TempDir(), "cfg.db")}
	db, err := c.OpenDB(testSchema)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestStructOpenDBNoPath(t *testing.T) {
	_, err := Struct{}.OpenDB(testSchema)
	require.Error(t, err)
}
