package config

import (
	"fmt"
	"strings"

	"github.com/moolen/telcoagent/internal/tracing"
)

const (
	DefaultAppName   = "Agent App"
	DefaultLocation  = "us-central1"
	DefaultModel     = "gemini-2.0-flash-001"
	DefaultRAGCorpus = "northern_lights_corpus"
	DefaultUserID    = "u_123"
)

// Config holds all configuration for telcoagent.
type Config struct {
	// Project and Location select the Vertex AI project and region.
	Project  string `koanf:"project"`
	Location string `koanf:"location"`

	// StagingBucket receives deployment artifacts. Defaults to gs://<project>-bucket.
	StagingBucket string `koanf:"staging_bucket"`

	// AppName is the display name of the hosted agent.
	AppName string `koanf:"app_name"`

	// Model is the default model for agents that do not name one.
	Model string `koanf:"model"`

	// APIKey selects the Gemini API instead of Vertex AI when set.
	APIKey string `koanf:"api_key"`

	// AgentTree is an optional YAML file with the agent tree. The built-in
	// telco tree is used when empty.
	AgentTree string `koanf:"agent_tree"`

	LogLevel string `koanf:"log_level"`

	RAG          RAGConfig          `koanf:"rag"`
	Diagnosis    DiagnosisConfig    `koanf:"diagnosis"`
	Session      SessionConfig      `koanf:"session"`
	Audit        AuditConfig        `koanf:"audit"`
	Harness      HarnessConfig      `koanf:"harness"`
	Deploy       DeployConfig       `koanf:"deploy"`
	Tracing      tracing.Config     `koanf:"tracing"`
	Metrics      MetricsConfig      `koanf:"metrics"`
	CloudLogging CloudLoggingConfig `koanf:"cloud_logging"`
}

// RAGConfig configures query_rag_tool.
type RAGConfig struct {
	// Corpus is a corpus id or a full projects/.../ragCorpora/... name.
	Corpus                  string  `koanf:"corpus"`
	Model                   string  `koanf:"model"`
	TopK                    int32   `koanf:"top_k"`
	VectorDistanceThreshold float64 `koanf:"vector_distance_threshold"`
	// CacheSize enables an in-process answer cache when positive.
	CacheSize int `koanf:"cache_size"`
}

// DiagnosisConfig configures fixed_diagnos.
type DiagnosisConfig struct {
	OutagePostCodes []string `koanf:"outage_post_codes"`
}

// SessionConfig selects session storage. Sessions are kept in memory unless
// DBPath names a SQLite file.
type SessionConfig struct {
	DBPath string `koanf:"db_path"`
}

// AuditConfig enables the JSONL run transcript.
type AuditConfig struct {
	Path string `koanf:"path"`
}

// HarnessConfig configures the local test harness.
type HarnessConfig struct {
	UserID string `koanf:"user_id"`
}

// DeployConfig configures packaging for the hosted agent engine.
type DeployConfig struct {
	Description   string   `koanf:"description"`
	Requirements  []string `koanf:"requirements"`
	PythonVersion string   `koanf:"python_version"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// CloudLoggingConfig mirrors logs to Google Cloud Logging.
type CloudLoggingConfig struct {
	Enabled bool   `koanf:"enabled"`
	LogID   string `koanf:"log_id"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Location: DefaultLocation,
		AppName:  DefaultAppName,
		Model:    DefaultModel,
		LogLevel: "info",
		RAG: RAGConfig{
			Corpus:                  DefaultRAGCorpus,
			Model:                   DefaultModel,
			TopK:                    3,
			VectorDistanceThreshold: 0.5,
		},
		Diagnosis: DiagnosisConfig{
			OutagePostCodes: []string{"250601"},
		},
		Harness: HarnessConfig{
			UserID: DefaultUserID,
		},
		Deploy: DeployConfig{
			Requirements:  []string{"google-cloud-aiplatform[adk,agent_engines]"},
			PythonVersion: "3.12",
		},
		CloudLogging: CloudLoggingConfig{
			LogID: "telcoagent",
		},
	}
}

// applyDerived fills values computed from other settings.
func (c *Config) applyDerived() {
	if c.StagingBucket == "" && c.Project != "" {
		c.StagingBucket = "gs://" + c.Project + "-bucket"
	}
	if c.RAG.Model == "" {
		c.RAG.Model = c.Model
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AppName) == "" {
		return NewConfigError("app_name must not be empty")
	}
	if c.Model == "" {
		return NewConfigError("model must not be empty")
	}
	if c.RAG.TopK < 1 {
		return NewConfigError("rag.top_k must be at least 1")
	}
	if c.RAG.VectorDistanceThreshold < 0 {
		return NewConfigError("rag.vector_distance_threshold must not be negative")
	}
	if c.RAG.CacheSize < 0 {
		return NewConfigError("rag.cache_size must not be negative")
	}
	if c.StagingBucket != "" && !strings.HasPrefix(c.StagingBucket, "gs://") {
		return NewConfigError(fmt.Sprintf("staging_bucket must be a gs:// URI, got %q", c.StagingBucket))
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return NewConfigError("tracing.endpoint must be set when tracing is enabled")
	}
	if c.CloudLogging.Enabled && c.Project == "" {
		return NewConfigError("cloud_logging requires project to be set")
	}
	return nil
}

// RequireCloud checks the settings needed to talk to Vertex AI.
func (c *Config) RequireCloud() error {
	if c.Project == "" {
		return NewConfigError("project is required (set GOOGLE_CLOUD_PROJECT)")
	}
	if c.Location == "" {
		return NewConfigError("location is required (set GOOGLE_CLOUD_LOCATION)")
	}
	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	return e.message
}
