package agentengine

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/moolen/telcoagent/internal/metrics"
)

const parent = "projects/p/locations/us-central1"

type fakeAPI struct {
	engines []*aiplatformpb.ReasoningEngine
	listErr error

	deleted   string
	force     bool
	deleteErr error

	createParent string
	created      *aiplatformpb.ReasoningEngine
	createErr    error
}

func (f *fakeAPI) List(_ context.Context, p string) ([]*aiplatformpb.ReasoningEngine, error) {
	if p != parent {
		return nil, errors.New("unexpected parent " + p)
	}
	return f.engines, f.listErr
}

func (f *fakeAPI) Delete(_ context.Context, name string, force bool) error {
	f.deleted, f.force = name, force
	return f.deleteErr
}

func (f *fakeAPI) Create(_ context.Context, p string, e *aiplatformpb.ReasoningEngine) (*aiplatformpb.ReasoningEngine, error) {
	f.createParent, f.created = p, e
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &aiplatformpb.ReasoningEngine{
		Name:        p + "/reasoningEngines/42",
		DisplayName: e.DisplayName,
		Description: e.Description,
		CreateTime:  timestamppb.New(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
	}, nil
}

type fakeStager struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newFakeStager() *fakeStager {
	return &fakeStager{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (s *fakeStager) Upload(_ context.Context, bucket, object string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	key := "gs://" + bucket + "/" + object
	s.objects[key] = data
	s.types[key] = contentType
	return nil
}

func newTestClient(t *testing.T, api API, stager Stager, m *metrics.Metrics) *Client {
	t.Helper()
	c, err := NewClient(Config{Project: "p", Location: "us-central1", StagingBucket: "gs://p-bucket"}, api, stager, m)
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC) }
	return c
}

func engineAt(name, display string, created time.Time) *aiplatformpb.ReasoningEngine {
	return &aiplatformpb.ReasoningEngine{
		Name:        parent + "/reasoningEngines/" + name,
		DisplayName: display,
		CreateTime:  timestamppb.New(created),
		UpdateTime:  timestamppb.New(created.Add(time.Hour)),
	}
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{Location: "us-central1"}, &fakeAPI{}, nil, nil)
	assert.Error(t, err)
	_, err = NewClient(Config{Project: "p", Location: "us-central1"}, nil, nil, nil)
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	api := &fakeAPI{engines: []*aiplatformpb.ReasoningEngine{
		engineAt("2", "Newer", mar),
		engineAt("1", "Agent App", jan),
	}}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	c := newTestClient(t, api, nil, m)

	engines, err := c.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	require.Len(t, engines, 2)
	assert.Equal(t, "Agent App", engines[0].DisplayName)
	assert.Equal(t, parent+"/reasoningEngines/1", engines[0].ResourceName)
	assert.True(t, jan.Equal(engines[0].CreateTime))
	assert.True(t, jan.Add(time.Hour).Equal(engines[0].UpdateTime))

	engines, err = c.List(context.Background(), ListOptions{Since: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, engines, 1)
	assert.Equal(t, "Newer", engines[0].DisplayName)

	assert.Equal(t, 1, testutil.CollectAndCount(m.EngineOps))
}

func TestListError(t *testing.T) {
	c := newTestClient(t, &fakeAPI{listErr: errors.New("permission denied")}, nil, nil)
	_, err := c.List(context.Background(), ListOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestDeleteForces(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api, nil, nil)

	name := parent + "/reasoningEngines/42"
	require.NoError(t, c.Delete(context.Background(), name))
	assert.Equal(t, name, api.deleted)
	assert.True(t, api.force)
}

func TestDeleteValidation(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api, nil, nil)

	assert.Error(t, c.Delete(context.Background(), ""))
	assert.Error(t, c.Delete(context.Background(), "projects/other/locations/us-central1/reasoningEngines/1"))
	assert.Error(t, c.Delete(context.Background(), parent+"/reasoningEngines/"))
	assert.Empty(t, api.deleted)

	api.deleteErr = errors.New("not found")
	err := c.Delete(context.Background(), "42")
	require.Error(t, err)
	assert.Equal(t, parent+"/reasoningEngines/42", api.deleted)
}

func TestResolveName(t *testing.T) {
	c := newTestClient(t, &fakeAPI{}, nil, nil)
	assert.Equal(t, parent+"/reasoningEngines/42", c.ResolveName("42"))
	assert.Equal(t, "projects/x/locations/y/reasoningEngines/1", c.ResolveName("projects/x/locations/y/reasoningEngines/1"))
}

func validRequest() DeployRequest {
	return DeployRequest{
		DisplayName:   "Agent App",
		Description:   "telco support",
		Tree:          []byte("name: greeter\ninstruction: hi\n"),
		Requirements:  []string{"google-cloud-aiplatform[adk,agent_engines]"},
		PythonVersion: "3.12",
		Env:           map[string]string{"RAG_CORPUS": "northern_lights_corpus", "MODEL": "gemini-2.0-flash-001", "EMPTY": ""},
	}
}

func TestDeployStagesAndCreates(t *testing.T) {
	api := &fakeAPI{}
	stager := newFakeStager()
	c := newTestClient(t, api, stager, nil)

	engine, err := c.Deploy(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, parent+"/reasoningEngines/42", engine.ResourceName)
	assert.Equal(t, "Agent App", engine.DisplayName)

	prefix := "gs://p-bucket/agent-app/20261016-093000/"
	require.Len(t, stager.objects, 3)
	assert.Equal(t, "name: greeter\ninstruction: hi\n", string(stager.objects[prefix+TreeObject]))
	assert.Equal(t, "google-cloud-aiplatform[adk,agent_engines]\n", string(stager.objects[prefix+RequirementsObject]))
	assert.Equal(t, "application/gzip", stager.types[prefix+DependenciesObject])

	files := untar(t, stager.objects[prefix+DependenciesObject])
	assert.Equal(t, "name: greeter\ninstruction: hi\n", files[TreeObject])
	assert.Contains(t, files, RequirementsObject)

	assert.Equal(t, parent, api.createParent)
	spec := api.created.GetSpec()
	assert.Equal(t, AgentFramework, spec.GetAgentFramework())
	assert.Equal(t, prefix+TreeObject, spec.GetPackageSpec().GetPickleObjectGcsUri())
	assert.Equal(t, prefix+RequirementsObject, spec.GetPackageSpec().GetRequirementsGcsUri())
	assert.Equal(t, prefix+DependenciesObject, spec.GetPackageSpec().GetDependencyFilesGcsUri())
	assert.Equal(t, "3.12", spec.GetPackageSpec().GetPythonVersion())

	env := spec.GetDeploymentSpec().GetEnv()
	require.Len(t, env, 2)
	assert.Equal(t, "MODEL", env[0].GetName())
	assert.Equal(t, "RAG_CORPUS", env[1].GetName())
	assert.Equal(t, "northern_lights_corpus", env[1].GetValue())
}

func TestDeployErrors(t *testing.T) {
	t.Run("no stager", func(t *testing.T) {
		c := newTestClient(t, &fakeAPI{}, nil, nil)
		_, err := c.Deploy(context.Background(), validRequest())
		assert.Error(t, err)
	})

	t.Run("upload fails before create", func(t *testing.T) {
		api := &fakeAPI{}
		stager := newFakeStager()
		stager.err = errors.New("bucket not found")
		c := newTestClient(t, api, stager, nil)
		_, err := c.Deploy(context.Background(), validRequest())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket not found")
		assert.Nil(t, api.created)
	})

	t.Run("create fails", func(t *testing.T) {
		api := &fakeAPI{createErr: errors.New("quota")}
		c := newTestClient(t, api, newFakeStager(), nil)
		_, err := c.Deploy(context.Background(), validRequest())
		assert.ErrorContains(t, err, "quota")
	})

	t.Run("bad bucket", func(t *testing.T) {
		c, err := NewClient(Config{Project: "p", Location: "l", StagingBucket: "p-bucket"}, &fakeAPI{}, newFakeStager(), nil)
		require.NoError(t, err)
		_, err = c.Deploy(context.Background(), validRequest())
		assert.Error(t, err)
	})
}

func TestDeployRequestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*DeployRequest)
	}{
		{"no name", func(r *DeployRequest) { r.DisplayName = "" }},
		{"no tree", func(r *DeployRequest) { r.Tree = []byte("  ") }},
		{"no requirements", func(r *DeployRequest) { r.Requirements = nil }},
		{"bad python", func(r *DeployRequest) { r.PythonVersion = "three" }},
		{"old python", func(r *DeployRequest) { r.PythonVersion = "3.8" }},
		{"future python", func(r *DeployRequest) { r.PythonVersion = "3.14" }},
	}
	ok := validRequest()
	require.NoError(t, ok.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRequest()
			tt.mutate(&r)
			assert.Error(t, r.Validate())
		})
	}
}

func TestParseBucketURI(t *testing.T) {
	bucket, prefix, err := parseBucketURI("gs://b/staging/")
	require.NoError(t, err)
	assert.Equal(t, "b", bucket)
	assert.Equal(t, "staging", prefix)

	_, _, err = parseBucketURI("gs://")
	assert.Error(t, err)
	_, _, err = parseBucketURI("s3://b")
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "agent-app", Slug("Agent App"))
	assert.Equal(t, "telco-support-v2", Slug("  Telco Support (v2) "))
	assert.Equal(t, "agent", Slug("!!!"))
}

func untar(t *testing.T, data []byte) map[string]string {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)
	files := make(map[string]string)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[hdr.Name] = string(body)
	}
	return files
}
