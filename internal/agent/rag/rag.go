// Package rag answers free-text questions with a single Vertex AI generate
// call grounded on a RAG corpus. Retrieval itself runs in the hosted service.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/moolen/telcoagent/internal/logging"
	"github.com/moolen/telcoagent/internal/metrics"
	"github.com/moolen/telcoagent/internal/tracing"
)

// Generator is the subset of *genai.Models used by Client.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config selects the corpus and retrieval parameters.
type Config struct {
	Project  string
	Location string
	// Corpus is a corpus id or a full projects/.../ragCorpora/... resource name.
	Corpus                  string
	Model                   string
	TopK                    int32
	VectorDistanceThreshold float64
	// CacheSize enables an answer cache keyed on the exact query when positive.
	CacheSize int
}

// Client issues RAG-grounded generate calls.
type Client struct {
	gen     Generator
	model   string
	tool    *genai.Tool
	cache   *lru.Cache[string, string]
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *logging.Logger
}

// NewClient creates a client for cfg. m may be nil.
func NewClient(gen Generator, cfg Config, m *metrics.Metrics) (*Client, error) {
	if gen == nil {
		return nil, errors.New("rag: generator is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("rag: model is required")
	}
	corpus, err := CorpusName(cfg.Project, cfg.Location, cfg.Corpus)
	if err != nil {
		return nil, err
	}

	c := &Client{
		gen:     gen,
		model:   cfg.Model,
		tool:    retrievalTool(corpus, cfg.TopK, cfg.VectorDistanceThreshold),
		metrics: m,
		tracer:  tracing.Tracer("telcoagent/rag"),
		logger:  logging.GetLogger("rag").WithField("corpus", corpus),
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, string](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("rag: failed to create cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// CorpusName expands a bare corpus id to its full resource name. Names that
// already start with "projects/" are returned unchanged.
func CorpusName(project, location, corpus string) (string, error) {
	corpus = strings.TrimSpace(corpus)
	if corpus == "" {
		return "", errors.New("rag: corpus is required")
	}
	if strings.HasPrefix(corpus, "projects/") {
		return corpus, nil
	}
	if project == "" || location == "" {
		return "", fmt.Errorf("rag: project and location are required to resolve corpus %q", corpus)
	}
	return fmt.Sprintf("projects/%s/locations/%s/ragCorpora/%s", project, location, corpus), nil
}

func retrievalTool(corpus string, topK int32, threshold float64) *genai.Tool {
	return &genai.Tool{
		Retrieval: &genai.Retrieval{
			VertexRAGStore: &genai.VertexRAGStore{
				RAGResources: []*genai.VertexRAGStoreRAGResource{
					{RAGCorpus: corpus},
				},
				RAGRetrievalConfig: &genai.RAGRetrievalConfig{
					TopK: genai.Ptr(topK),
					Filter: &genai.RAGRetrievalConfigFilter{
						VectorDistanceThreshold: genai.Ptr(threshold),
					},
				},
			},
		},
	}
}

// Query sends query unchanged as a single user turn and returns the generated
// text exactly as produced.
func (c *Client) Query(ctx context.Context, query string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "rag.Query",
		trace.WithAttributes(
			attribute.String("rag.model", c.model),
			attribute.Int("rag.query_length", len(query)),
		),
	)
	defer span.End()

	if c.cache != nil {
		if answer, ok := c.cache.Get(query); ok {
			span.SetAttributes(attribute.Bool("rag.cache_hit", true))
			c.metrics.ObserveRAGCacheHit()
			return answer, nil
		}
	}

	start := time.Now()
	resp, err := c.gen.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromText(query, genai.RoleUser)},
		&genai.GenerateContentConfig{Tools: []*genai.Tool{c.tool}},
	)
	c.metrics.ObserveRAG(time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		c.logger.WithContext(ctx).Error("RAG query failed: %v", err)
		return "", fmt.Errorf("rag query failed: %w", err)
	}

	var answer string
	if resp != nil {
		answer = resp.Text()
	}
	c.logger.WithContext(ctx).Debug("RAG query answered (%d chars)", len(answer))
	if c.cache != nil {
		c.cache.Add(query, answer)
	}
	return answer, nil
}
