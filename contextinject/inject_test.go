package contextinject

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zolt-run/zolt/skills"
)

func TestScanPromptFindsPlainAndQuotedPaths(t *testing.T) {
	refs := ScanPrompt(`look at @src/main.go and @"path with spaces/file.txt" then $commit-helper`)
	assert.Equal(t, []string{"@src/main.go", "@path with spaces/file.txt", "$commit-helper"}, refs)
}

func TestScanPromptDeduplicates(t *testing.T) {
	refs := ScanPrompt(`@a.go and again @a.go`)
	assert.Equal(t, []string{"@a.go"}, refs)
}

func TestFindAgentsFileWalksParents(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "AGENTS.md"), []byte("root rules"), 0644))
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0755))

	path, content, err := FindAgentsFile(sub)
	require.NoError(t, err)
	assert.Equal(t, "root rules", content)
	assert.Equal(t, filepath.Join(root, "AGENTS.md"), path)
}

func TestFindAgentsFileReturnsEmptyWhenAbsent(t *testing.T) {
	path, content, err := FindAgentsFile(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Empty(t, content)
}

func TestEnrichIncludesTextFileAndSkill(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"), []byte("hello"), 0644))

	skillRoot := t.TempDir()
	skillDir := filepath.Join(skillRoot, "commit-helper")
	require.NoError(t, os.MkdirAll(skillDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte("---\nname: commit-helper\n---\nbody"), 0644))
	catalog, err := skills.Discover([]string{skillRoot}, nil)
	require.NoError(t, err)

	results := Enrich(`read @note.txt and use $commit-helper`, dir, catalog)
	require.Len(t, results, 2)
	var sawFile, sawSkill bool
	for _, r := range results {
		if r.Included == 1 {
			if containsTag(r.Message, FileInjectTag) {
				sawFile = true
				assert.Contains(t, r.Message, "hello")
			}
			if containsTag(r.Message, SkillInjectTag) {
				sawSkill = true
				assert.Contains(t, r.Message, "body")
			}
		}
	}
	assert.True(t, sawFile)
	assert.True(t, sawSkill)
}

func TestEnrichSkipsBinaryFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.bin"), []byte{0, 1, 2, 3}, 0644))
	results := Enrich(`@f.bin`, dir, nil)
	assert.Nil(t, results)
}

func TestEnrichReturnsNilWithoutReferences(t *testing.T) {
	assert.Nil(t, Enrich("no references here", t.TempDir(), nil))
}

func containsTag(s, tag string) bool {
	return len(s) >= len(tag) && s[:len(tag)] == tag
}
