package admin

import (
	"testing"

	"github.com/cloo-solutions/lessonindex/internal/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchScope(t *testing.T) {
	assert.Nil(t, searchScope("", nil))

	scope := searchScope("mod-1", []string{"r1"})
	require.NotNil(t, scope)
	assert.Equal(t, "mod-1", scope.Equals.ModuleID)
	assert.Equal(t, "r1", scope.Equals.ResourceID)
	assert.Empty(t, scope.ResourceIDs)

	scope = searchScope("", []string{"r1", "r2"})
	require.NotNil(t, scope)
	assert.Empty(t, scope.Equals.ResourceID)
	assert.Equal(t, []string{"r1", "r2"}, scope.ResourceIDs)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short text", truncate("short\n  text", 50))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
}

func TestCommandSchemas(t *testing.T) {
	schema := cli.GenerateSchema(ProcessCmd())
	assert.Equal(t, "process", schema.Name)

	names := map[string]bool{}
	for _, f := range schema.Flags {
		names[f.Name] = true
	}
	assert.True(t, names["sync"])
	assert.True(t, names["reindex"])

	serve := cli.GenerateSchema(ServeCmd())
	flags := map[string]string{}
	for _, f := range serve.Flags {
		flags[f.Name] = f.Default
	}
	assert.Equal(t, "8080", flags["port"])
	assert.Equal(t, "false", flags["no-worker"])
	assert.Equal(t, defaultMigrationsURL, flags["migrations"])
}
