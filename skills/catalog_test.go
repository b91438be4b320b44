package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, root, dirName, frontmatterName, description string) {
	t.Helper()
	dir := filepath.Join(root, dirName)
	require.NoError(t, os.MkdirAll(dir, 0755))
	content := "---\n"
	if frontmatterName != "" {
		content += "name: " + frontmatterName + "\n"
	}
	content += "description: " + description + "\n---\nbody\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0644))
}

func TestDiscoverFindsSkillsByDirectoryName(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "commit-helper", "commit-helper", "helps write commits")

	c, err := Discover([]string{root}, nil)
	require.NoError(t, err)

	info, ok := c.Lookup("commit-helper")
	require.True(t, ok)
	assert.Equal(t, ScopeGlobal, info.Scope)
	assert.Equal(t, "helps write commits", info.Description)
}

func TestDiscoverRejectsNameDirectoryMismatch(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "commit-helper", "totally-different-name", "x")

	c, err := Discover([]string{root}, nil)
	require.NoError(t, err)

	_, ok := c.Lookup("commit-helper")
	assert.False(t, ok)
}

func TestDiscoverProjectWinsOverGlobalOnDuplicate(t *testing.T) {
	globalRoot := t.TempDir()
	projectRoot := t.TempDir()
	writeSkill(t, globalRoot, "deploy", "deploy", "global deploy skill")
	writeSkill(t, projectRoot, "deploy", "deploy", "project deploy skill")

	c, err := Discover([]string{globalRoot}, []string{projectRoot})
	require.NoError(t, err)

	info, ok := c.Lookup("deploy")
	require.True(t, ok)
	assert.Equal(t, ScopeProject, info.Scope)
	assert.Equal(t, "project deploy skill", info.Description)
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "deploy", "deploy", "x")

	c, err := Discover([]string{root}, nil)
	require.NoError(t, err)

	_, ok := c.Lookup("DEPLOY")
	assert.True(t, ok)
}

func TestMissingRootIsNotAnError(t *testing.T) {
	_, err := Discover([]string{filepath.Join(t.TempDir(), "does-not-exist")}, nil)
	require.NoError(t, err)
}
