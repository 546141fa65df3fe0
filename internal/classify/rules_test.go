package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()
	assert.GreaterOrEqual(t, len(rules.LearningKeywords), 16)
	assert.Equal(t, 2, rules.LearningThreshold)
	assert.Equal(t, CategoryResearch, rules.AgentRoutes["researcher"])
	assert.Contains(t, rules.SearchTools, "WebSearch")
}

func TestLoadRules_MissingFileUsesDefaults(t *testing.T) {
	rules, err := LoadRules(filepath.Join(t.TempDir(), "rules.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultRules().LearningThreshold, rules.LearningThreshold)
}

func TestLoadRules_EmptyPathUsesDefaults(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.NotEmpty(t, rules.LearningKeywords)
}

func TestLoadRules_Overrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `
learning_threshold: 3
agent_routes:
  scout: research
search_tools:
  - CodeSearch
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, 3, rules.LearningThreshold)
	assert.Equal(t, CategoryResearch, rules.AgentRoutes["scout"])
	assert.Equal(t, []string{"CodeSearch"}, rules.SearchTools)
	// Unset fields keep their defaults
	assert.Equal(t, DefaultRules().LearningKeywords, rules.LearningKeywords)
}

func TestLoadRules_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{nope"), 0600))

	_, err := LoadRules(path)
	assert.Error(t, err)
}
