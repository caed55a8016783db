package tree

import (
	_ "embed"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

//go:embed default_tree.yaml
var defaultTreeYAML []byte

// DefaultYAML returns the built-in tree definition.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultTreeYAML...)
}

// Default returns the built-in telco agent tree.
func Default() (*AgentSpec, error) {
	return Parse(defaultTreeYAML)
}

// Load reads a tree from a YAML file. An empty path selects the built-in tree.
func Load(path string) (*AgentSpec, error) {
	if path == "" {
		return Default()
	}
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load agent tree from %q: %w", path, err)
	}
	return unmarshal(k, path)
}

// Parse decodes a tree from YAML bytes.
func Parse(data []byte) (*AgentSpec, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse agent tree: %w", err)
	}
	return unmarshal(k, "inline")
}

func unmarshal(k *koanf.Koanf, source string) (*AgentSpec, error) {
	var spec AgentSpec
	if err := k.UnmarshalWithConf("", &spec, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to decode agent tree from %s: %w", source, err)
	}
	if err := spec.Validate(nil); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Marshal renders the tree as YAML.
func Marshal(spec *AgentSpec) ([]byte, error) {
	return yamlv3.Marshal(spec)
}
