// Package tools implements the function tools available to the telco agents.
package tools

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/adk/model"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"github.com/moolen/telcoagent/internal/agent/diagnosis"
	"github.com/moolen/telcoagent/internal/agent/state"
	"github.com/moolen/telcoagent/internal/logging"
	"github.com/moolen/telcoagent/internal/metrics"
	"github.com/moolen/telcoagent/internal/tracing"
)

// Tool names as seen by the model.
const (
	NameAppendToState = "append_to_state"
	NameFixedDiagnos  = "fixed_diagnos"
	NameQueryRAG      = "query_rag_tool"
	NameGoogleSearch  = "google_search"
)

const statusSuccess = "success"

// Querier answers a free-text question from the knowledge corpus.
type Querier interface {
	Query(ctx context.Context, query string) (string, error)
}

// Dependencies contains the external dependencies needed by tools. Any field
// may be nil; tools that need a missing dependency fail to build.
type Dependencies struct {
	Detector diagnosis.Detector
	RAG      Querier
	// SearchModel backs the google_search sub-agent. It must be a Gemini model.
	SearchModel model.LLM
	Metrics     *metrics.Metrics
}

// Toolset builds and runs the tools for one set of dependencies.
type Toolset struct {
	deps    Dependencies
	appends *state.Accumulator
	tracer  trace.Tracer
	logger *logging.Logger
}

// NewToolset creates a toolset. A nil detector is replaced with the fixed
// single-postcode detector.
func NewToolset(deps Dependencies) *Toolset {
	if deps.Detector == nil {
		deps.Detector = diagnosis.NewFixedDetector()
	}
	return &Toolset{
		deps:    deps,
		appends: state.NewAccumulator(0),
		tracer:  tracing.Tracer("telcoagent/tools"),
		logger: logging.GetLogger("tools"),
	}
}

// AppendToStateArgs is the input schema for append_to_state.
type AppendToStateArgs struct {
	Field    string `json:"field" jsonschema:"Name of the state field to append to, e.g. post_code or issue_type"`
	Response string `json:"response" jsonschema:"The value to append"`
}

// AppendToStateResult is the output of append_to_state.
type AppendToStateResult struct {
	Status string `json:"status"`
}

// FixedDiagnosArgs is the input schema for fixed_diagnos.
type FixedDiagnosArgs struct {
	PostCode string `json:"post_code" jsonschema:"The customer's postcode"`
}

// FixedDiagnosResult is the output of fixed_diagnos.
type FixedDiagnosResult struct {
	DiagResult string `json:"diag_result"`
}

// QueryRAGArgs is the input schema for query_rag_tool.
type QueryRAGArgs struct {
	Query string `json:"query" jsonschema:"The question to answer from the troubleshooting knowledge base"`
}

// QueryRAGResult is the output of query_rag_tool.
type QueryRAGResult struct {
	Response string `json:"response"`
}

// NewAppendToStateTool creates the append_to_state tool.
func (t *Toolset) NewAppendToStateTool() (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name:        NameAppendToState,
		Description: "Append new output to an existing state key.",
	}, func(ctx tool.Context, args AppendToStateArgs) (AppendToStateResult, error) {
		return t.appendToState(ctx, ctx.InvocationID(), ctx.State(), args)
	})
}

// NewFixedDiagnosTool creates the fixed_diagnos tool.
func (t *Toolset) NewFixedDiagnosTool() (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name: NameFixedDiagnos,
		Description: `Diagnose the customer's issue from their postcode.
Returns "outage" when there is a known network outage in that area, otherwise "device_issue".`,
	}, func(ctx tool.Context, args FixedDiagnosArgs) (FixedDiagnosResult, error) {
		return t.fixedDiagnos(ctx, args)
	})
}

// NewQueryRAGTool creates the query_rag_tool tool.
func (t *Toolset) NewQueryRAGTool() (tool.Tool, error) {
	if t.deps.RAG == nil {
		return nil, errors.New("query_rag_tool requires a RAG client")
	}
	return functiontool.New(functiontool.Config{
		Name:        NameQueryRAG,
		Description: "Answer a troubleshooting question from the device manual knowledge base.",
	}, func(ctx tool.Context, args QueryRAGArgs) (QueryRAGResult, error) {
		return t.queryRAG(ctx, args)
	})
}

// appendToState appends within invocationID so that several calls in one
// model response accumulate instead of overwriting each other.
func (t *Toolset) appendToState(ctx context.Context, invocationID string, st session.State, args AppendToStateArgs) (AppendToStateResult, error) {
	err := t.observe(ctx, NameAppendToState, func(context.Context) error {
		if _, err := t.appends.Append(st, invocationID, args.Field, args.Response); err != nil {
			return err
		}
		t.deps.Metrics.ObserveAppend(state.MetricLabel(args.Field))
		t.logger.WithContext(ctx).Info("[Added to %s] %s", args.Field, args.Response)
		return nil
	}, attribute.String("state.field", args.Field))
	if err != nil {
		return AppendToStateResult{}, err
	}
	return AppendToStateResult{Status: statusSuccess}, nil
}

func (t *Toolset) fixedDiagnos(ctx context.Context, args FixedDiagnosArgs) (FixedDiagnosResult, error) {
	var result string
	err := t.observe(ctx, NameFixedDiagnos, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		result = t.deps.Detector.Diagnose(ctx, args.PostCode)
		return nil
	})
	if err != nil {
		return FixedDiagnosResult{}, err
	}
	t.deps.Metrics.ObserveDiagnosis(result)
	t.logger.WithContext(ctx).Info("diagnosis result: %s", result)
	return FixedDiagnosResult{DiagResult: result}, nil
}

func (t *Toolset) queryRAG(ctx context.Context, args QueryRAGArgs) (QueryRAGResult, error) {
	var answer string
	err := t.observe(ctx, NameQueryRAG, func(ctx context.Context) error {
		var err error
		answer, err = t.deps.RAG.Query(ctx, args.Query)
		return err
	})
	if err != nil {
		return QueryRAGResult{}, err
	}
	return QueryRAGResult{Response: answer}, nil
}

// observe runs fn inside a span and counts the call.
func (t *Toolset) observe(ctx context.Context, name string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := t.tracer.Start(ctx, "tool."+name, trace.WithAttributes(attrs...))
	defer span.End()

	err := fn(ctx)
	t.deps.Metrics.ObserveTool(name, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool failed")
		t.logger.WithContext(ctx).Error("Tool %s failed: %v", name, err)
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
