package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv clears every variable Load reads and moves into an empty dir so
// a developer's .env cannot leak into the test.
func isolateEnv(t *testing.T) string {
	t.Helper()
	for name := range envKeys {
		t.Setenv(name, "")
	}
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, DefaultAppName, cfg.AppName)
	assert.Equal(t, DefaultLocation, cfg.Location)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultRAGCorpus, cfg.RAG.Corpus)
	assert.Equal(t, int32(3), cfg.RAG.TopK)
	assert.Equal(t, 0.5, cfg.RAG.VectorDistanceThreshold)
	assert.Equal(t, []string{"250601"}, cfg.Diagnosis.OutagePostCodes)
	assert.Equal(t, DefaultUserID, cfg.Harness.UserID)
	assert.Equal(t, []string{"google-cloud-aiplatform[adk,agent_engines]"}, cfg.Deploy.Requirements)
	assert.Empty(t, cfg.StagingBucket)
}

func TestLoadPrecedence(t *testing.T) {
	dir := isolateEnv(t)

	path := writeFile(t, dir, "telcoagent.yaml", `
project: file-project
app_name: From File
model: gemini-file
rag:
  top_k: 5
  corpus: file-corpus
diagnosis:
  outage_post_codes: ["111", "222"]
`)
	t.Setenv("APP_NAME", "From Env")
	t.Setenv("OUTAGE_POST_CODES", "333, 444")
	t.Setenv("DEPLOY_REQUIREMENTS", "google-cloud-aiplatform[adk], requests")

	cfg, err := Load(LoadOptions{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, "file-project", cfg.Project)
	assert.Equal(t, "From Env", cfg.AppName)
	assert.Equal(t, "gemini-file", cfg.Model)
	assert.Equal(t, int32(5), cfg.RAG.TopK)
	assert.Equal(t, "file-corpus", cfg.RAG.Corpus)
	assert.Equal(t, []string{"333", "444"}, cfg.Diagnosis.OutagePostCodes)
	assert.Equal(t, []string{"google-cloud-aiplatform[adk]", "requests"}, cfg.Deploy.Requirements)
	assert.Equal(t, "gs://file-project-bucket", cfg.StagingBucket)
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolateEnv(t)
	writeFile(t, dir, ".env", "GOOGLE_CLOUD_PROJECT=dotenv-project\nGOOGLE_CLOUD_LOCATION=europe-north1\n")

	// Unset rather than empty so godotenv is allowed to fill them.
	require.NoError(t, os.Unsetenv("GOOGLE_CLOUD_PROJECT"))
	require.NoError(t, os.Unsetenv("GOOGLE_CLOUD_LOCATION"))
	t.Cleanup(func() {
		_ = os.Unsetenv("GOOGLE_CLOUD_PROJECT")
		_ = os.Unsetenv("GOOGLE_CLOUD_LOCATION")
	})

	cfg, err := Load(LoadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "dotenv-project", cfg.Project)
	assert.Equal(t, "europe-north1", cfg.Location)
	assert.Equal(t, "gs://dotenv-project-bucket", cfg.StagingBucket)
}

func TestLoadExplicitEnvFileMustExist(t *testing.T) {
	isolateEnv(t)

	_, err := Load(LoadOptions{EnvFile: "missing.env"})
	assert.Error(t, err)
}

func TestLoadMissingConfigFile(t *testing.T) {
	isolateEnv(t)

	_, err := Load(LoadOptions{ConfigFile: "nope.yaml"})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty app name", func(c *Config) { c.AppName = " " }},
		{"empty model", func(c *Config) { c.Model = "" }},
		{"top_k zero", func(c *Config) { c.RAG.TopK = 0 }},
		{"negative distance", func(c *Config) { c.RAG.VectorDistanceThreshold = -1 }},
		{"negative cache", func(c *Config) { c.RAG.CacheSize = -1 }},
		{"bucket without scheme", func(c *Config) { c.StagingBucket = "my-bucket" }},
		{"tracing without endpoint", func(c *Config) { c.Tracing.Enabled = true }},
		{"cloud logging without project", func(c *Config) { c.CloudLogging.Enabled = true }},
	}

	assert.NoError(t, Default().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var cfgErr *ConfigError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestRequireCloud(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.RequireCloud())

	cfg.Project = "p"
	assert.NoError(t, cfg.RequireCloud())

	cfg.Location = ""
	assert.Error(t, cfg.RequireCloud())
}

func TestMapEnv(t *testing.T) {
	key, value := mapEnv("RAG_CORPUS", "kb")
	assert.Equal(t, "rag.corpus", key)
	assert.Equal(t, "kb", value)

	key, value = mapEnv("DEPLOY_REQUIREMENTS", "a,b")
	assert.Equal(t, "deploy.requirements", key)
	assert.Equal(t, []string{"a", "b"}, value)

	key, _ = mapEnv("HOME", "/root")
	assert.Empty(t, key)

	key, _ = mapEnv("MODEL", "")
	assert.Empty(t, key)
}
