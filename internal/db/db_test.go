package db

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_IsIdempotent(t *testing.T) {
	x, err := sqlx.Open(DriverSQLite, ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	x.SetMaxOpenConns(1)
	defer x.Close()

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, x))
	require.NoError(t, Migrate(ctx, x))

	var applied int
	require.NoError(t, x.Get(&applied, `SELECT COUNT(*) FROM schema_migrations`))
	assert.Equal(t, 1, applied)

	var tables int
	require.NoError(t, x.Get(&tables, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('users', 'mistakes', 'questions', 'drill_attempts', 'conversation_states', 'message_log', 'nudge_log', 'outbox')`))
	assert.Equal(t, 8, tables)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "postgres://***@db:5432/drill", redact("postgres://drill:secret@db:5432/drill"))
	assert.Equal(t, "file:drillbot.db", redact("file:drillbot.db"))
}
