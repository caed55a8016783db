// Package agentengine manages agents hosted on Vertex AI Agent Engine
// (reasoning engines): listing, deleting and deploying them.
package agentengine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/moolen/telcoagent/internal/logging"
	"github.com/moolen/telcoagent/internal/metrics"
	"github.com/moolen/telcoagent/internal/tracing"
)

// AgentFramework is the framework the hosted runtime loads the agent with.
const AgentFramework = "google-adk"

// Engine is a hosted agent.
type Engine struct {
	ResourceName string
	DisplayName  string
	Description  string
	CreateTime   time.Time
	UpdateTime   time.Time
}

func engineFromProto(pb *aiplatformpb.ReasoningEngine) Engine {
	e := Engine{
		ResourceName: pb.GetName(),
		DisplayName:  pb.GetDisplayName(),
		Description:  pb.GetDescription(),
	}
	if pb.GetCreateTime() != nil {
		e.CreateTime = pb.GetCreateTime().AsTime()
	}
	if pb.GetUpdateTime() != nil {
		e.UpdateTime = pb.GetUpdateTime().AsTime()
	}
	return e
}

// API is the subset of the reasoning engine service the client needs.
type API interface {
	List(ctx context.Context, parent string) ([]*aiplatformpb.ReasoningEngine, error)
	Delete(ctx context.Context, name string, force bool) error
	Create(ctx context.Context, parent string, engine *aiplatformpb.ReasoningEngine) (*aiplatformpb.ReasoningEngine, error)
}

// Stager uploads deployment artifacts.
type Stager interface {
	Upload(ctx context.Context, bucket, object string, data []byte, contentType string) error
}

// Config identifies the project, region and staging bucket.
type Config struct {
	Project  string
	Location string
	// StagingBucket is a gs:// URI.
	StagingBucket string
}

// Parent returns projects/<project>/locations/<location>.
func (c Config) Parent() string {
	return fmt.Sprintf("projects/%s/locations/%s", c.Project, c.Location)
}

// Client lists, deletes and deploys hosted agents.
type Client struct {
	config  Config
	api     API
	stager  Stager
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *logging.Logger
	now     func() time.Time
}

// NewClient creates a client. stager may be nil when Deploy is not used.
func NewClient(cfg Config, api API, stager Stager, m *metrics.Metrics) (*Client, error) {
	if cfg.Project == "" || cfg.Location == "" {
		return nil, errors.New("project and location are required")
	}
	if api == nil {
		return nil, errors.New("reasoning engine API must not be nil")
	}
	return &Client{
		config:  cfg,
		api:     api,
		stager:  stager,
		metrics: m,
		tracer:  tracing.Tracer("telcoagent/agentengine"),
		logger:  logging.GetLogger("agentengine"),
		now:     time.Now,
	}, nil
}

// ListOptions filters List.
type ListOptions struct {
	// Since keeps only engines created at or after this time when non-zero.
	Since time.Time
}

// List returns the hosted agents of the project, oldest first.
func (c *Client) List(ctx context.Context, opts ListOptions) ([]Engine, error) {
	var engines []Engine
	err := c.observe(ctx, "list", func(ctx context.Context) error {
		pbs, err := c.api.List(ctx, c.config.Parent())
		if err != nil {
			return fmt.Errorf("failed to list agent engines: %w", err)
		}
		for _, pb := range pbs {
			e := engineFromProto(pb)
			if !opts.Since.IsZero() && e.CreateTime.Before(opts.Since) {
				continue
			}
			engines = append(engines, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(engines, func(i, j int) bool {
		return engines[i].CreateTime.Before(engines[j].CreateTime)
	})
	return engines, nil
}

// Delete removes a hosted agent together with its sessions.
func (c *Client) Delete(ctx context.Context, resourceName string) error {
	if err := c.validateResourceName(resourceName); err != nil {
		return err
	}
	resourceName = c.ResolveName(resourceName)
	return c.observe(ctx, "delete", func(ctx context.Context) error {
		if err := c.api.Delete(ctx, resourceName, true); err != nil {
			return fmt.Errorf("failed to delete agent engine %s: %w", resourceName, err)
		}
		c.logger.Info("Deleted agent engine %s", resourceName)
		return nil
	}, attribute.String("engine.resource_name", resourceName))
}

// validateResourceName accepts a full resource name or a bare engine id. A
// full name must belong to the configured project and location.
func (c *Client) validateResourceName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("resource name must not be empty")
	}
	if !strings.Contains(name, "/") {
		return nil
	}
	prefix := c.config.Parent() + "/reasoningEngines/"
	if !strings.HasPrefix(name, prefix) || len(name) == len(prefix) {
		return fmt.Errorf("resource name %q is not a reasoning engine in %s", name, c.config.Parent())
	}
	return nil
}

// ResolveName expands a bare engine id to a full resource name.
func (c *Client) ResolveName(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return c.config.Parent() + "/reasoningEngines/" + name
}

func (c *Client) observe(ctx context.Context, op string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := c.tracer.Start(ctx, "agentengine."+op, trace.WithAttributes(
		append([]attribute.KeyValue{attribute.String("engine.parent", c.config.Parent())}, attrs...)...,
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	c.metrics.ObserveEngineOp(op, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
