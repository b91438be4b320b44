package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnvSetsUnsetVars(t *testing.T) {
	dir := t.TempDir()
	content := "# comment\nOPENAI_API_KEY=sk-test123\nQUOTED=\"quoted value\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0644))

	os.Unsetenv("OPENAI_API_KEY")
	os.Unsetenv("QUOTED")
	defer os.Unsetenv("OPENAI_API_KEY")
	defer os.Unsetenv("QUOTED")

	LoadDotEnv(dir)

	assert.Equal(t, "sk-test123", os.Getenv("OPENAI_API_KEY"))
	assert.Equal(t, "quoted value", os.Getenv("QUOTED"))
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MY_VAR=from_file\n"), 0644))
	os.Setenv("MY_VAR", "from_env")
	defer os.Unsetenv("MY_VAR")

	LoadDotEnv(dir)

	assert.Equal(t, "from_env", os.Getenv("MY_VAR"))
}

func TestLoadDotEnvMissingFileIsNoop(t *testing.T) {
	LoadDotEnv(t.TempDir())
}

func TestConfigDirUsesXDGWhenSet(t *testing.T) {
	original := os.Getenv("XDG_CONFIG_HOME")
	defer os.Setenv("XDG_CONFIG_HOME", original)

	dir := t.TempDir()
	os.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "zolt"), got)
}

func TestConfigDirDefaultsToHome(t *testing.T) {
	original := os.Getenv("XDG_CONFIG_HOME")
	os.Unsetenv("XDG_CONFIG_HOME")
	defer os.Setenv("XDG_CONFIG_HOME", original)

	got, err := ConfigDir()
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".config", "zolt"), got)
}

func TestDataDirUsesXDGWhenSet(t *testing.T) {
	original := os.Getenv("XDG_DATA_HOME")
	defer os.Setenv("XDG_DATA_HOME", original)

	dir := t.TempDir()
	os.Setenv("XDG_DATA_HOME", dir)

	got, err := DataDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "zolt"), got)
}

func TestDefaultCatalogHasSixProviders(t *testing.T) {
	c := defaultCatalog()
	assert.Len(t, c.Providers, 6)
	assert.NotNil(t, c.ByID("openai"))
	assert.NotNil(t, c.ByID("anthropic"))
	assert.NotNil(t, c.ByID("openrouter"))
	assert.NotNil(t, c.ByID("opencode"))
	assert.NotNil(t, c.ByID("google"))
	assert.NotNil(t, c.ByID("zenmux"))
}

func TestLoadCatalogFallsBackWhenCacheMissing(t *testing.T) {
	c := LoadCatalog(t.TempDir())
	assert.Len(t, c.Providers, 6)
}

func TestSaveThenLoadCatalogRoundTrips(t *testing.T) {
	dir := t.TempDir()
	original := defaultCatalog()
	require.NoError(t, SaveCatalog(dir, original))

	loaded := LoadCatalog(dir)
	require.Len(t, loaded.Providers, len(original.Providers))
	assert.Equal(t, original.Providers[0].ID, loaded.Providers[0].ID)
}

func TestDefaultModelIDReturnsFirstModel(t *testing.T) {
	c := defaultCatalog()
	assert.Equal(t, "gpt-4o-mini", c.DefaultModelID("openai"))
	assert.Equal(t, "", c.DefaultModelID("unknown-provider"))
}

func TestResolveAuthModeDefaultsToAuto(t *testing.T) {
	original := os.Getenv("OPENAI_AUTH")
	os.Unsetenv("OPENAI_AUTH")
	defer os.Setenv("OPENAI_AUTH", original)

	assert.Equal(t, "auto", ResolveAuthMode())
}

func TestBuildClientResolvesCredentialsAndContextWindow(t *testing.T) {
	os.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	defer os.Unsetenv("ANTHROPIC_API_KEY")

	c := defaultCatalog()
	client, err := BuildClient(c, "anthropic", "claude-sonnet-4-5-20250929")
	require.NoError(t, err)
	assert.Equal(t, 200000, client.ContextWindow())
}

func TestBuildClientUnknownProviderErrors(t *testing.T) {
	c := defaultCatalog()
	_, err := BuildClient(c, "nope", "nope")
	assert.Error(t, err)
}
