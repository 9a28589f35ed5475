package migrations

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations(t *testing.T) {
	m := NewManager(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))

	migrations, err := m.LoadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "telemetry", migrations[0].Description)
	assert.Contains(t, migrations[0].Up, "CREATE TABLE IF NOT EXISTS analytics_sessions")

	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
}

func TestSplitStatements(t *testing.T) {
	sql := `
		CREATE TABLE a (id INT);
		CREATE OR REPLACE FUNCTION touch() RETURNS trigger AS $$
		BEGIN
			NEW.updated_at = NOW();
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql;
		CREATE INDEX idx_a ON a(id);
	`

	statements := SplitStatements(sql)
	require.Len(t, statements, 3)
	assert.Equal(t, "CREATE TABLE a (id INT)", statements[0])
	assert.Contains(t, statements[1], "RETURN NEW;")
	assert.Contains(t, statements[1], "LANGUAGE plpgsql")
	assert.Equal(t, "CREATE INDEX idx_a ON a(id)", statements[2])
}
