package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryNames(t *testing.T) {
	r := NewRegistry(Dependencies{})
	assert.Equal(t, []string{NameAppendToState, NameFixedDiagnos, NameGoogleSearch, NameQueryRAG}, r.Names())
	assert.True(t, r.Has(NameFixedDiagnos))
	assert.False(t, r.Has("teams_handoff"))
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry(Dependencies{RAG: &fakeQuerier{}})

	got, err := r.Resolve([]string{NameAppendToState, NameFixedDiagnos, NameQueryRAG})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, NameAppendToState, got[0].Name())
	assert.Equal(t, NameFixedDiagnos, got[1].Name())
	assert.Equal(t, NameQueryRAG, got[2].Name())
}

func TestRegistryResolveUnknown(t *testing.T) {
	r := NewRegistry(Dependencies{})

	_, err := r.Resolve([]string{NameAppendToState, "calendar"})
	var unknown *UnknownToolError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "calendar", unknown.Name)
}

func TestRegistryResolveMissingDependencies(t *testing.T) {
	r := NewRegistry(Dependencies{})

	_, err := r.Resolve([]string{NameQueryRAG})
	assert.ErrorContains(t, err, "RAG client")

	_, err = r.Resolve([]string{NameGoogleSearch})
	assert.ErrorContains(t, err, "search model")
}

func TestRegistryCallables(t *testing.T) {
	names := func(r *Registry) []string {
		var out []string
		for _, c := range r.Callables() {
			out = append(out, c.Name())
		}
		return out
	}

	assert.Equal(t, []string{NameFixedDiagnos}, names(NewRegistry(Dependencies{})))
	assert.Equal(t, []string{NameFixedDiagnos, NameQueryRAG}, names(NewRegistry(Dependencies{RAG: &fakeQuerier{}})))
}

func TestRegistryExecute(t *testing.T) {
	captureLogs(t)
	r := NewRegistry(Dependencies{RAG: &fakeQuerier{answer: "answer"}})
	ctx := context.Background()

	res := r.Execute(ctx, NameFixedDiagnos, json.RawMessage(`{"post_code":"250601"}`))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, FixedDiagnosResult{DiagResult: "outage"}, res.Data)

	res = r.Execute(ctx, NameQueryRAG, json.RawMessage(`{"query":"q"}`))
	require.True(t, res.Success, res.Error)
	assert.Equal(t, QueryRAGResult{Response: "answer"}, res.Data)

	res = r.Execute(ctx, NameFixedDiagnos, json.RawMessage(`{"post_code":`))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid input")

	res = r.Execute(ctx, NameAppendToState, nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not found")
}

func TestCallableInputSchema(t *testing.T) {
	r := NewRegistry(Dependencies{})
	schema := r.Callables()[0].InputSchema()

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"post_code"}, schema["required"])
}

func TestTruncateResult(t *testing.T) {
	assert.Nil(t, truncateResult(nil, MaxToolResponseBytes))

	noData := &Result{Success: true}
	assert.Same(t, noData, truncateResult(noData, MaxToolResponseBytes))

	small := &Result{Success: true, Data: map[string]string{"key": "value"}}
	assert.Same(t, small, truncateResult(small, MaxToolResponseBytes))

	large := &Result{
		Success:         true,
		Data:            QueryRAGResult{Response: strings.Repeat("x", 2000)},
		Error:           "kept",
		ExecutionTimeMs: 100,
	}
	got := truncateResult(large, 1024)
	require.NotSame(t, large, got)
	assert.True(t, got.Success)
	assert.Equal(t, "kept", got.Error)
	assert.Equal(t, int64(100), got.ExecutionTimeMs)

	data, ok := got.Data.(*truncatedData)
	require.True(t, ok)
	assert.True(t, data.Truncated)
	assert.Greater(t, data.OriginalBytes, 2000)
	assert.Equal(t, 1024, data.TruncatedBytes)
	assert.Len(t, data.PartialData, 1024*80/100)
}

func TestTruncateResultExactLimit(t *testing.T) {
	data := map[string]string{"k": "v"}
	b, err := json.Marshal(data)
	require.NoError(t, err)

	res := &Result{Success: true, Data: data}
	assert.Same(t, res, truncateResult(res, len(b)))
}
