package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", User: "clover", Password: "p@ss", Name: "clover", SSLMode: "disable"}
	assert.Equal(t, "postgres://clover:p%40ss@db:5432/clover?sslmode=disable", cfg.DSN())
}

func TestJSONB(t *testing.T) {
	t.Run("round trips through the driver value", func(t *testing.T) {
		in := NewJSONB(map[string]any{"email": "a@b.com"})
		v, err := in.Value()
		require.NoError(t, err)

		var out JSONB[map[string]any]
		require.NoError(t, out.Scan([]byte(v.(string))))
		assert.Equal(t, "a@b.com", out.GetValue()["email"])
	})

	t.Run("null scans to the zero value", func(t *testing.T) {
		var out JSONB[[]string]
		require.NoError(t, out.Scan(nil))
		assert.Nil(t, out.Data)
	})

	t.Run("rejects unexpected types", func(t *testing.T) {
		var out JSONB[[]string]
		assert.Error(t, out.Scan(42))
	})
}

func TestOnConflictUpdate(t *testing.T) {
	ib := NewInsertBuilder()
	ib.InsertInto("records").Cols("id", "data").Values("r-1", "{}")
	OnConflictUpdate(ib, []string{"id"}, "data")

	sql, args := ib.Build()
	assert.Equal(t, "INSERT INTO records (id, data) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data", sql)
	assert.Equal(t, []any{"r-1", "{}"}, args)
}

func TestLatestMigrationVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000001_init.up.sql", "000001_init.down.sql", "000003_runs.up.sql", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}

	latest, err := LatestMigrationVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, latest)

	_, err = LatestMigrationVersion(t.TempDir())
	assert.Error(t, err)
}
