package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/session"

	"github.com/moolen/telcoagent/internal/agent/audit"
	"github.com/moolen/telcoagent/internal/agent/diagnosis"
	"github.com/moolen/telcoagent/internal/agent/harness"
	"github.com/moolen/telcoagent/internal/agent/model"
	"github.com/moolen/telcoagent/internal/agent/rag"
	"github.com/moolen/telcoagent/internal/agent/tools"
	"github.com/moolen/telcoagent/internal/agent/tree"
	"github.com/moolen/telcoagent/internal/config"
	"github.com/moolen/telcoagent/internal/lifecycle"
	"github.com/moolen/telcoagent/internal/logging"
	"github.com/moolen/telcoagent/internal/metrics"
	"github.com/moolen/telcoagent/internal/tracing"
)

// app holds what every command shares: configuration, the lifecycle manager
// for background components and the metrics registry.
type app struct {
	cfg      *config.Config
	manager  *lifecycle.Manager
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	models   *model.Factory
	logger   *logging.Logger
}

// newApp loads configuration, sets up logging and registers the ambient
// components. Commands register their own components, then call start and
// defer shutdown.
func newApp() (*app, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: configFile, EnvFile: envFile})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if treeFlag != "" {
		cfg.AgentTree = treeFlag
	}
	if err := setupLog(logLevelFlags, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}

	a := &app{
		cfg:      cfg,
		manager:  lifecycle.NewManager(),
		registry: prometheus.NewRegistry(),
		logger:   logging.GetLogger("telcoagent"),
	}
	a.manager.SetShutdownTimeout(10 * time.Second)
	a.metrics = metrics.NewMetrics(a.registry)
	a.models = model.NewFactory(model.Options{
		Project:  cfg.Project,
		Location: cfg.Location,
		APIKey:   cfg.APIKey,
	})

	tracingCfg := cfg.Tracing
	tracingCfg.ServiceName = "telcoagent"
	tracingCfg.ServiceVersion = Version
	provider, err := tracing.NewProvider(tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracing provider: %w", err)
	}
	if err := a.manager.Register(provider); err != nil {
		return nil, err
	}

	if cfg.CloudLogging.Enabled {
		if err := a.manager.Register(logging.NewCloudSink(cfg.Project, cfg.CloudLogging.LogID)); err != nil {
			return nil, err
		}
	}

	return a, nil
}

func (a *app) start(ctx context.Context) error {
	if err := a.manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start components: %w", err)
	}
	return nil
}

func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.manager.Stop(ctx); err != nil {
		a.logger.Warn("Shutdown incomplete: %v", err)
	}
}

// toolRegistry wires the tools to their backends. A scripted default model
// gets a scripted RAG answer and serves google_search itself so the whole
// tree runs offline.
func (a *app) toolRegistry(ctx context.Context) (*tools.Registry, error) {
	deps := tools.Dependencies{
		Detector: diagnosis.NewFixedDetector(a.cfg.Diagnosis.OutagePostCodes...),
		Metrics:  a.metrics,
	}

	root, err := a.models.Model(ctx, a.cfg.Model)
	if err != nil {
		return nil, err
	}
	if scripted, ok := root.(*model.ScriptedLLM); ok {
		deps.RAG = model.ScriptedQuerier{Answer: scripted.Scenario().RAGAnswer}
		deps.SearchModel = root
		return tools.NewRegistry(deps), nil
	}

	client, err := a.models.NewGenAIClient(ctx)
	if err != nil {
		return nil, err
	}
	ragClient, err := rag.NewClient(client.Models, rag.Config{
		Project:                 a.cfg.Project,
		Location:                a.cfg.Location,
		Corpus:                  a.cfg.RAG.Corpus,
		Model:                   a.cfg.RAG.Model,
		TopK:                    a.cfg.RAG.TopK,
		VectorDistanceThreshold: a.cfg.RAG.VectorDistanceThreshold,
		CacheSize:               a.cfg.RAG.CacheSize,
	}, a.metrics)
	if err != nil {
		return nil, err
	}
	deps.RAG = ragClient

	if deps.SearchModel, err = a.models.Model(ctx, a.cfg.RAG.Model); err != nil {
		return nil, err
	}
	return tools.NewRegistry(deps), nil
}

// loadTree reads the configured tree, or the built-in one.
func (a *app) loadTree() (*tree.AgentSpec, error) {
	spec, err := tree.Load(a.cfg.AgentTree)
	if err != nil {
		return nil, err
	}
	if a.cfg.AgentTree != "" {
		a.logger.Info("Loaded agent tree from %s", a.cfg.AgentTree)
	}
	return spec, nil
}

// buildAgent loads and builds the root agent together with its tool registry.
func (a *app) buildAgent(ctx context.Context) (agent.Agent, *tools.Registry, error) {
	registry, err := a.toolRegistry(ctx)
	if err != nil {
		return nil, nil, err
	}
	spec, err := a.loadTree()
	if err != nil {
		return nil, nil, err
	}
	root, err := tree.NewBuilder(a.models, registry, a.cfg.Model).Build(ctx, spec)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Info("Built agent tree %v with default model %s", spec.Names(), a.cfg.Model)
	return root, registry, nil
}

// newSessionService opens the configured session store.
func (a *app) newSessionService() (session.Service, error) {
	return harness.NewSessionService(a.cfg.Session.DBPath)
}

// newAudit opens the transcript log when one is configured. The returned
// logger is nil otherwise, which disables auditing.
func (a *app) newAudit(sessionID string) (*audit.Logger, error) {
	if a.cfg.Audit.Path == "" {
		return nil, nil
	}
	l, err := audit.NewLogger(a.cfg.Audit.Path, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return l, nil
}

// newHarness builds the agent tree and wraps it in a harness.
func (a *app) newHarness(ctx context.Context, sessions session.Service, auditLog *audit.Logger) (*harness.Harness, error) {
	root, _, err := a.buildAgent(ctx)
	if err != nil {
		return nil, err
	}
	return a.harnessFor(root, sessions, auditLog)
}

func (a *app) harnessFor(root agent.Agent, sessions session.Service, auditLog *audit.Logger) (*harness.Harness, error) {
	return harness.New(harness.Config{
		AppName:        a.cfg.AppName,
		UserID:         a.cfg.Harness.UserID,
		Agent:          root,
		Model:          a.cfg.Model,
		SessionService: sessions,
		Audit:          auditLog,
		Metrics:        a.metrics,
	})
}

// registerMetricsServer serves the registry when metrics.addr is set.
func (a *app) registerMetricsServer() error {
	if a.cfg.Metrics.Addr == "" {
		return nil
	}
	return a.manager.Register(metrics.NewServer(a.cfg.Metrics.Addr, a.registry))
}
