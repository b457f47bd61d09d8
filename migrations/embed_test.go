package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedFSContainsRunsSchema(t *testing.T) {

	content, err := FS.ReadFile("001_runs.sql")
	require.NoError(t, err)

	sql := string(content)
	assert.True(t, strings.Contains(sql, "-- +goose Up"))
	assert.True(t, strings.Contains(sql, "-- +goose Down"))
	assert.Contains(t, sql, "CREATE TABLE runs")
}
