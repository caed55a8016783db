package agentengine

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"github.com/hashicorp/go-version"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Object names written under the staging prefix.
const (
	TreeObject         = "agent_tree.yaml"
	RequirementsObject = "requirements.txt"
	DependenciesObject = "dependencies.tar.gz"
)

// supportedPython is the range of runtimes the hosted service accepts.
var supportedPython = version.MustConstraints(version.NewConstraint(">= 3.9, < 3.14"))

// DeployRequest describes a hosted agent to create.
type DeployRequest struct {
	DisplayName string
	Description string
	// Tree is the YAML agent tree.
	Tree          []byte
	Requirements  []string
	PythonVersion string
	// Env is passed to the hosted runtime.
	Env map[string]string
}

// Validate checks the request before anything is uploaded.
func (r *DeployRequest) Validate() error {
	if strings.TrimSpace(r.DisplayName) == "" {
		return errors.New("display name must not be empty")
	}
	if len(bytes.TrimSpace(r.Tree)) == 0 {
		return errors.New("agent tree must not be empty")
	}
	if len(r.Requirements) == 0 {
		return errors.New("at least one requirement is needed")
	}
	if r.PythonVersion != "" {
		v, err := version.NewVersion(r.PythonVersion)
		if err != nil {
			return fmt.Errorf("invalid python version %q: %w", r.PythonVersion, err)
		}
		if !supportedPython.Check(v) {
			return fmt.Errorf("python version %s is not supported (need %s)", r.PythonVersion, supportedPython)
		}
	}
	return nil
}

// StagedPackage holds the gs:// URIs of an uploaded deployment.
type StagedPackage struct {
	TreeURI         string
	RequirementsURI string
	DependenciesURI string
}

// Deploy uploads the tree and its manifest to the staging bucket, then
// creates the hosted agent and waits for it to become available.
func (c *Client) Deploy(ctx context.Context, req DeployRequest) (*Engine, error) {
	if c.stager == nil {
		return nil, errors.New("deploy requires a staging bucket client")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	bucket, prefix, err := parseBucketURI(c.config.StagingBucket)
	if err != nil {
		return nil, err
	}

	var engine *Engine
	err = c.observe(ctx, "deploy", func(ctx context.Context) error {
		prefix = joinObject(prefix, Slug(req.DisplayName), c.now().UTC().Format("20060102-150405"))
		staged, err := c.stage(ctx, bucket, prefix, req)
		if err != nil {
			return err
		}

		created, err := c.api.Create(ctx, c.config.Parent(), buildEngine(req, staged))
		if err != nil {
			return fmt.Errorf("failed to create agent engine: %w", err)
		}
		e := engineFromProto(created)
		engine = &e
		c.logger.Info("Created agent engine %s (%s)", e.ResourceName, e.DisplayName)
		return nil
	}, attribute.String("engine.display_name", req.DisplayName))
	if err != nil {
		return nil, err
	}
	return engine, nil
}

func (c *Client) stage(ctx context.Context, bucket, prefix string, req DeployRequest) (*StagedPackage, error) {
	requirements := []byte(strings.Join(req.Requirements, "\n") + "\n")
	deps, err := buildDependencies(req.Tree, requirements)
	if err != nil {
		return nil, err
	}

	objects := []struct {
		name        string
		data        []byte
		contentType string
	}{
		{TreeObject, req.Tree, "application/yaml"},
		{RequirementsObject, requirements, "text/plain"},
		{DependenciesObject, deps, "application/gzip"},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, obj := range objects {
		obj := obj
		object := joinObject(prefix, obj.name)
		g.Go(func() error {
			if err := c.stager.Upload(gctx, bucket, object, obj.data, obj.contentType); err != nil {
				return fmt.Errorf("failed to upload gs://%s/%s: %w", bucket, object, err)
			}
			c.logger.Debug("Staged gs://%s/%s (%d bytes)", bucket, object, len(obj.data))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	uri := func(name string) string { return "gs://" + bucket + "/" + joinObject(prefix, name) }
	return &StagedPackage{
		TreeURI:         uri(TreeObject),
		RequirementsURI: uri(RequirementsObject),
		DependenciesURI: uri(DependenciesObject),
	}, nil
}

func buildEngine(req DeployRequest, staged *StagedPackage) *aiplatformpb.ReasoningEngine {
	envNames := make([]string, 0, len(req.Env))
	for name, value := range req.Env {
		if value != "" {
			envNames = append(envNames, name)
		}
	}
	sort.Strings(envNames)
	env := make([]*aiplatformpb.EnvVar, 0, len(envNames))
	for _, name := range envNames {
		env = append(env, &aiplatformpb.EnvVar{Name: name, Value: req.Env[name]})
	}

	spec := &aiplatformpb.ReasoningEngineSpec{
		AgentFramework: AgentFramework,
		// The hosted google-adk runtime expects a pickle here and cannot load the
		// YAML tree; only the Go runtime consumes it.
		PackageSpec: &aiplatformpb.ReasoningEngineSpec_PackageSpec{
			PickleObjectGcsUri:    staged.TreeURI,
			RequirementsGcsUri:    staged.RequirementsURI,
			DependencyFilesGcsUri: staged.DependenciesURI,
			PythonVersion:         req.PythonVersion,
		},
	}
	if len(env) > 0 {
		spec.DeploymentSpec = &aiplatformpb.ReasoningEngineSpec_DeploymentSpec{Env: env}
	}

	return &aiplatformpb.ReasoningEngine{
		DisplayName: req.DisplayName,
		Description: req.Description,
		Spec:        spec,
	}
}

// buildDependencies packs the tree and requirements into a gzipped tarball.
func buildDependencies(tree, requirements []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	files := []struct {
		name string
		data []byte
	}{
		{TreeObject, tree},
		{RequirementsObject, requirements},
	}
	for _, f := range files {
		hdr := &tar.Header{
			Name:    f.name,
			Mode:    0o644,
			Size:    int64(len(f.data)),
			ModTime: time.Unix(0, 0),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("failed to write %s header: %w", f.name, err)
		}
		if _, err := tw.Write(f.data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", f.name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close tarball: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip stream: %w", err)
	}
	return buf.Bytes(), nil
}

// parseBucketURI splits gs://bucket/optional/prefix.
func parseBucketURI(uri string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("staging bucket must be a gs:// URI, got %q", uri)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("staging bucket %q has no bucket name", uri)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

func joinObject(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases name and replaces runs of other characters with '-'.
func Slug(name string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if s == "" {
		return "agent"
	}
	return s
}
