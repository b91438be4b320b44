package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zolt-run/zolt/shellsession"
	"github.com/zolt-run/zolt/skills"
)

func TestListDirEmptyPayloadListsWorkDirChildren(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "a-dir"), 0755))

	r := NewRegistry(dir, nil, nil, nil)
	out := r.listDir("")
	assert.Contains(t, out, "[list-dir-result]")
	assert.Contains(t, out, "a-dir")
	assert.Contains(t, out, "b.txt")
	assert.Contains(t, out, "count: 2")
}

func TestReadFileReturnsBodyWithByteRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))

	r := NewRegistry(dir, nil, nil, nil)
	out := r.readFile("f.txt")
	assert.Contains(t, out, "[read-file-result]")
	assert.Contains(t, out, "bytes: 0-11 of 11")
	assert.Contains(t, out, "hello world")
}

func TestReadFileRejectsBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.bin")
	require.NoError(t, os.WriteFile(path, []byte{0, 1, 2, 3, 0, 0, 0}, 0644))

	r := NewRegistry(dir, nil, nil, nil)
	out := r.readFile("f.bin")
	assert.Contains(t, out, "error: binary file")
}

func TestApplyPatchRoutesToPatchPackage(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir, nil, nil, nil)

	payload := "*** Begin Patch\n*** Add File: new.txt\n+hello\n*** End Patch\n"
	out := r.applyPatch(payload)
	assert.Contains(t, out, "[apply-patch-result]")
	assert.Contains(t, out, "status: applied")

	data, err := os.ReadFile(filepath.Join(dir, "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestSkillToolReturnsContentAndMetadata(t *testing.T) {
	root := t.TempDir()
	skillDir := filepath.Join(root, "commit-helper")
	require.NoError(t, os.MkdirAll(skillDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte("---\nname: commit-helper\ndescription: d\n---\nbody text"), 0644))

	catalog, err := skills.Discover([]string{root}, nil)
	require.NoError(t, err)

	r := NewRegistry(t.TempDir(), nil, catalog, nil)
	out := r.skillTool("commit-helper")
	assert.Contains(t, out, "[skill-result]")
	assert.Contains(t, out, "name: commit-helper")
	assert.Contains(t, out, "body text")
}

func TestExecCommandAndWriteStdinRoundTrip(t *testing.T) {
	mgr := shellsession.NewManager()
	r := NewRegistry(t.TempDir(), mgr, nil, nil)

	out := r.execCommand(`{"cmd":"cat","yield_ms":200}`)
	assert.Contains(t, out, "[exec-command-result]")
	assert.Contains(t, out, "session_id: 1")

	out = r.writeStdin(`{"session_id":1,"chars":"ping\n","yield_ms":300}`)
	assert.Contains(t, out, "[write-stdin-result]")
	assert.Contains(t, out, "ping")
	mgr.Destroy(1)
}

func TestDispatchUnknownToolReturnsErrorEnvelope(t *testing.T) {
	r := NewRegistry(t.TempDir(), nil, nil, nil)
	out := r.Execute(Name("not-a-tool"), "")
	assert.Contains(t, out, "error: unknown tool")
}
