package tools

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/session"

	"github.com/moolen/telcoagent/internal/agent/diagnosis"
	"github.com/moolen/telcoagent/internal/logging"
	"github.com/moolen/telcoagent/internal/metrics"
)

// mockState implements session.State for testing.
type mockState struct {
	data map[string]any
}

func newMockState() *mockState {
	return &mockState{data: make(map[string]any)}
}

func (m *mockState) Get(key string) (any, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, session.ErrStateKeyNotExist
}

func (m *mockState) Set(key string, value any) error {
	m.data[key] = value
	return nil
}

func (m *mockState) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for k, v := range m.data {
			if !yield(k, v) {
				return
			}
		}
	}
}

type fakeQuerier struct {
	got    string
	answer string
	err    error
}

func (f *fakeQuerier) Query(_ context.Context, query string) (string, error) {
	f.got = query
	return f.answer, f.err
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logging.SetOutput(&buf, &buf)
	t.Cleanup(func() { logging.SetOutput(os.Stdout, os.Stderr) })
	return &buf
}

func TestAppendToState(t *testing.T) {
	logs := captureLogs(t)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	ts := NewToolset(Dependencies{Metrics: m})
	st := newMockState()
	ctx := context.Background()

	res, err := ts.appendToState(ctx, "inv-1", st, AppendToStateArgs{Field: "issue_type", Response: "no internet"})
	require.NoError(t, err)
	assert.Equal(t, statusSuccess, res.Status)

	_, err = ts.appendToState(ctx, "inv-1", st, AppendToStateArgs{Field: "issue_type", Response: "slow"})
	require.NoError(t, err)

	assert.Equal(t, []string{"no internet", "slow"}, st.data["issue_type"])
	assert.Contains(t, logs.String(), "[Added to issue_type] no internet")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StateAppends.WithLabelValues("issue_type")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues(NameAppendToState, "success")))
}

func TestAppendToStateEmptyField(t *testing.T) {
	captureLogs(t)
	ts := NewToolset(Dependencies{})

	_, err := ts.appendToState(context.Background(), "inv-1", newMockState(), AppendToStateArgs{Response: "x"})
	assert.Error(t, err)
}

func TestAppendToStateSameInvocationAccumulates(t *testing.T) {
	captureLogs(t)
	ts := NewToolset(Dependencies{})
	ctx := context.Background()

	// Each call in a batch writes its own delta over the same base state.
	first, second := newMockState(), newMockState()
	_, err := ts.appendToState(ctx, "inv-1", first, AppendToStateArgs{Field: "issue_type", Response: "a"})
	require.NoError(t, err)
	_, err = ts.appendToState(ctx, "inv-1", second, AppendToStateArgs{Field: "issue_type", Response: "b"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, first.data["issue_type"])
	assert.Equal(t, []string{"a", "b"}, second.data["issue_type"])

	other := newMockState()
	_, err = ts.appendToState(ctx, "inv-2", other, AppendToStateArgs{Field: "issue_type", Response: "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, other.data["issue_type"])
}

func TestAppendToStateUnknownFieldMetricLabel(t *testing.T) {
	captureLogs(t)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	ts := NewToolset(Dependencies{Metrics: m})
	ctx := context.Background()
	st := newMockState()

	_, err := ts.appendToState(ctx, "inv-1", st, AppendToStateArgs{Field: "favourite_colour", Response: "blue"})
	require.NoError(t, err)
	_, err = ts.appendToState(ctx, "inv-1", st, AppendToStateArgs{Field: "router_led", Response: "red"})
	require.NoError(t, err)

	assert.Equal(t, []string{"blue"}, st.data["favourite_colour"])
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StateAppends.WithLabelValues("other")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StateAppends))
}

func TestFixedDiagnos(t *testing.T) {
	logs := captureLogs(t)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	ts := NewToolset(Dependencies{Metrics: m})
	ctx := context.Background()

	res, err := ts.fixedDiagnos(ctx, FixedDiagnosArgs{PostCode: "250601"})
	require.NoError(t, err)
	assert.Equal(t, diagnosis.Outage, res.DiagResult)

	res, err = ts.fixedDiagnos(ctx, FixedDiagnosArgs{PostCode: "999999"})
	require.NoError(t, err)
	assert.Equal(t, diagnosis.DeviceIssue, res.DiagResult)

	assert.Contains(t, logs.String(), "diagnosis result: outage")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Diagnoses.WithLabelValues(diagnosis.Outage)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Diagnoses.WithLabelValues(diagnosis.DeviceIssue)))
}

func TestFixedDiagnosReturnsError(t *testing.T) {
	captureLogs(t)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	ts := NewToolset(Dependencies{Metrics: m})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := ts.fixedDiagnos(ctx, FixedDiagnosArgs{PostCode: "250601"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.DiagResult)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues(NameFixedDiagnos, "error")))
	assert.Equal(t, 0, testutil.CollectAndCount(m.Diagnoses))
}

func TestFixedDiagnosCustomDetector(t *testing.T) {
	captureLogs(t)
	ts := NewToolset(Dependencies{Detector: diagnosis.NewFixedDetector("1000")})

	res, err := ts.fixedDiagnos(context.Background(), FixedDiagnosArgs{PostCode: "1000"})
	require.NoError(t, err)
	assert.Equal(t, diagnosis.Outage, res.DiagResult)
}

func TestQueryRAG(t *testing.T) {
	captureLogs(t)
	q := &fakeQuerier{answer: "Hold the reset button for 10 seconds."}
	ts := NewToolset(Dependencies{RAG: q})

	res, err := ts.queryRAG(context.Background(), QueryRAGArgs{Query: "How do I reset my router?"})
	require.NoError(t, err)
	assert.Equal(t, "How do I reset my router?", q.got)
	assert.Equal(t, "Hold the reset button for 10 seconds.", res.Response)
}

func TestQueryRAGError(t *testing.T) {
	captureLogs(t)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	ts := NewToolset(Dependencies{RAG: &fakeQuerier{err: errors.New("permission denied")}, Metrics: m})

	_, err := ts.queryRAG(context.Background(), QueryRAGArgs{Query: "q"})
	assert.ErrorContains(t, err, "permission denied")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCalls.WithLabelValues(NameQueryRAG, "error")))
}
