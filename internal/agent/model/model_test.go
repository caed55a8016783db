package model

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestFactoryScriptedModelIsCached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(outageScenario), 0o600))

	f := NewFactory(Options{})
	name := ScenarioPrefix + path

	m1, err := f.Model(context.Background(), name)
	require.NoError(t, err)
	m2, err := f.Model(context.Background(), name)
	require.NoError(t, err)

	assert.Same(t, m1, m2)
	assert.Equal(t, "mock:outage", m1.Name())
	assert.True(t, IsScripted(name))
}

func TestFactoryRegister(t *testing.T) {
	f := NewFactory(Options{})
	scripted := NewScriptedLLMFromScenario(&Scenario{Name: "x", Steps: []ScenarioStep{{Text: "hi"}}})
	f.Register("gemini-2.0-flash-001", scripted)

	m, err := f.Model(context.Background(), "gemini-2.0-flash-001")
	require.NoError(t, err)
	assert.Same(t, scripted, m)
}

func TestFactoryErrors(t *testing.T) {
	f := NewFactory(Options{})

	_, err := f.Model(context.Background(), "")
	assert.Error(t, err)

	_, err = f.Model(context.Background(), "gemini-2.0-flash-001")
	assert.ErrorContains(t, err, "no model backend configured")

	_, err = f.Model(context.Background(), ScenarioPrefix+"/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestFactoryClaude(t *testing.T) {
	f := NewFactory(Options{})
	m, err := f.Model(context.Background(), "claude-sonnet-4")
	require.NoError(t, err)
	assert.IsType(t, &ClaudeLLM{}, m)
}

func TestClientConfig(t *testing.T) {
	cfg, err := NewFactory(Options{Project: "p", Location: "l", APIKey: "k"}).ClientConfig()
	require.NoError(t, err)
	assert.Equal(t, genai.BackendVertexAI, cfg.Backend)
	assert.Equal(t, "p", cfg.Project)

	cfg, err = NewFactory(Options{APIKey: "k"}).ClientConfig()
	require.NoError(t, err)
	assert.Equal(t, genai.BackendGeminiAPI, cfg.Backend)

	_, err = NewFactory(Options{Project: "p"}).ClientConfig()
	assert.Error(t, err)
}
