package tree

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type toolSet map[string]bool

func (s toolSet) Has(name string) bool { return s[name] }

var knownTools = toolSet{
	"append_to_state": true,
	"fixed_diagnos":   true,
	"query_rag_tool":  true,
	"google_search":   true,
}

func TestDefaultTree(t *testing.T) {
	spec, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"greeter", "diagnostic_agent", "troubleshooting_rag_agent"}, spec.Names())
	assert.Equal(t, []string{"append_to_state"}, spec.Tools)
	assert.NoError(t, spec.Validate(knownTools))

	diag := spec.Find("diagnostic_agent")
	require.NotNil(t, diag)
	assert.Equal(t, []string{"append_to_state", "fixed_diagnos"}, diag.Tools)
	assert.Contains(t, diag.Instruction, "{post_code?}")

	rag := spec.Find("troubleshooting_rag_agent")
	require.NotNil(t, rag)
	assert.Equal(t, []string{"append_to_state", "query_rag_tool", "google_search"}, rag.Tools)
	assert.Contains(t, rag.Instruction, "{diag_result?}")
	assert.Contains(t, rag.Instruction, "{issue_type?}")
	assert.Contains(t, rag.Instruction, "{device?}")
	assert.Empty(t, rag.SubAgents)
	assert.Nil(t, spec.Find("nobody"))
}

func TestValidate(t *testing.T) {
	valid := func() *AgentSpec {
		return &AgentSpec{
			Name:        "root",
			Instruction: "help",
			Tools:       []string{"fixed_diagnos"},
			SubAgents:   []AgentSpec{{Name: "child", Instruction: "help more"}},
		}
	}
	require.NoError(t, valid().Validate(knownTools))

	hot := float32(3)
	tests := []struct {
		name   string
		mutate func(*AgentSpec)
		reason string
	}{
		{"empty name", func(s *AgentSpec) { s.Name = "" }, "must not be empty"},
		{"bad identifier", func(s *AgentSpec) { s.Name = "my-agent" }, "letters, digits"},
		{"leading digit", func(s *AgentSpec) { s.Name = "1agent" }, "letters, digits"},
		{"reserved", func(s *AgentSpec) { s.Name = "user" }, "reserved"},
		{"duplicate", func(s *AgentSpec) { s.SubAgents[0].Name = "root" }, "duplicate"},
		{"empty instruction", func(s *AgentSpec) { s.SubAgents[0].Instruction = "  " }, "instruction"},
		{"unknown tool", func(s *AgentSpec) { s.Tools = []string{"reboot_router"} }, "unknown tool"},
		{"tool twice", func(s *AgentSpec) { s.Tools = []string{"fixed_diagnos", "fixed_diagnos"} }, "listed twice"},
		{"temperature", func(s *AgentSpec) { s.Temperature = &hot }, "temperature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := valid()
			tt.mutate(spec)
			err := spec.Validate(knownTools)
			require.Error(t, err)
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Contains(t, vErr.Reason, tt.reason)
		})
	}
}

func TestValidateWithoutToolCheckerAcceptsAnyTool(t *testing.T) {
	spec := &AgentSpec{Name: "a", Instruction: "x", Tools: []string{"anything"}}
	assert.NoError(t, spec.Validate(nil))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tree.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: solo
model: mock:scenario.yaml
instruction: Answer in one sentence.
temperature: 0.3
tools: [fixed_diagnos]
`), 0o600))

	spec, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "solo", spec.Name)
	assert.Equal(t, "mock:scenario.yaml", spec.Model)
	require.NotNil(t, spec.Temperature)
	assert.InDelta(t, 0.3, *spec.Temperature, 0.0001)
	assert.Equal(t, []string{"fixed_diagnos"}, spec.Tools)
}

func TestLoadEmptyPathIsDefault(t *testing.T) {
	spec, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "greeter", spec.Name)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Parse([]byte("name: [unclosed"))
	assert.Error(t, err)

	_, err = Parse([]byte("name: no_instruction\n"))
	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestParseNestedTree(t *testing.T) {
	spec, err := Parse([]byte(`
name: root
instruction: route
sub_agents:
  - name: child
    instruction: answer
`))
	require.NoError(t, err)
	require.Len(t, spec.SubAgents, 1)
	assert.Equal(t, "child", spec.SubAgents[0].Name)
	assert.Equal(t, "answer", spec.SubAgents[0].Instruction)
}

func TestMarshalRoundTrip(t *testing.T) {
	spec, err := Default()
	require.NoError(t, err)

	data, err := Marshal(spec)
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, spec, again)
}

func TestDefaultYAMLIsCopy(t *testing.T) {
	data := DefaultYAML()
	data[0] = '#'
	_, err := Default()
	assert.NoError(t, err)
}
