package database

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingMigrationsOrderAndFilter(t *testing.T) {
	source := fstest.MapFS{
		"002_jobs.sql":      {Data: []byte("SELECT 2;")},
		"001_core.sql":      {Data: []byte("SELECT 1;")},
		"003_extra.sql":     {Data: []byte("SELECT 3;")},
		"900_reset_all.sql": {Data: []byte("DROP SCHEMA public;")},
		"README.md":         {Data: []byte("notes")},
	}

	pending, err := PendingMigrations(source, map[string]bool{"002_jobs.sql": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"001_core.sql", "003_extra.sql"}, pending)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	require.NoError(t, err)

	pending, err := PendingMigrations(sub, nil)
	require.NoError(t, err)
	require.NotEmpty(t, pending)
	assert.Equal(t, "001_core_schema.sql", pending[0])
}
