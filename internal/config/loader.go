package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvFile is loaded when present and no other env file is named.
const DefaultEnvFile = ".env"

// envKeys maps environment variables to config keys.
var envKeys = map[string]string{
	"GOOGLE_CLOUD_PROJECT":  "project",
	"GOOGLE_CLOUD_LOCATION": "location",
	"STAGING_BUCKET":        "staging_bucket",
	"APP_NAME":              "app_name",
	"MODEL":                 "model",
	"GOOGLE_API_KEY":        "api_key",
	"AGENT_TREE":            "agent_tree",
	"LOG_LEVEL":             "log_level",
	"RAG_CORPUS":            "rag.corpus",
	"RAG_MODEL":             "rag.model",
	"RAG_CACHE_SIZE":        "rag.cache_size",
	"OUTAGE_POST_CODES":     "diagnosis.outage_post_codes",
	"SESSION_DB":            "session.db_path",
	"AUDIT_LOG":             "audit.path",
	"METRICS_ADDR":          "metrics.addr",
	"TRACING_ENABLED":       "tracing.enabled",
	"TRACING_ENDPOINT":      "tracing.endpoint",
	"CLOUD_LOGGING":         "cloud_logging.enabled",
	"DEPLOY_REQUIREMENTS":   "deploy.requirements",
}

// listKeys are split on commas when read from the environment.
var listKeys = map[string]bool{
	"diagnosis.outage_post_codes": true,
	"deploy.requirements":         true,
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// ConfigFile is an optional YAML file.
	ConfigFile string
	// EnvFile is a dotenv file. When empty, DefaultEnvFile is read if it exists.
	EnvFile string
}

// Load builds the configuration from, in increasing priority: built-in
// defaults, the YAML file, the dotenv file and the process environment.
// Variables already present in the environment are not overridden by the
// dotenv file.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if opts.ConfigFile != "" {
		if err := k.Load(file.Provider(opts.ConfigFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config from %q: %w", opts.ConfigFile, err)
		}
	}

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	if err := k.Load(env.ProviderWithValue("", ".", mapEnv), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load env file %q: %w", path, err)
}

// mapEnv translates a known variable to its config key. Unknown variables and
// empty values map to "" and are skipped.
func mapEnv(name, value string) (string, interface{}) {
	key, ok := envKeys[name]
	if !ok || value == "" {
		return "", nil
	}
	if listKeys[key] {
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return key, items
	}
	return key, value
}
