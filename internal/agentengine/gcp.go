package agentengine

import (
	"context"
	"errors"
	"fmt"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// ReasoningEngines implements API on the Vertex AI reasoning engine service.
type ReasoningEngines struct {
	client *aiplatform.ReasoningEngineClient
}

// NewReasoningEngines dials the regional reasoning engine endpoint.
func NewReasoningEngines(ctx context.Context, location string, opts ...option.ClientOption) (*ReasoningEngines, error) {
	opts = append([]option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", location)),
	}, opts...)
	client, err := aiplatform.NewReasoningEngineClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create reasoning engine client: %w", err)
	}
	return &ReasoningEngines{client: client}, nil
}

// List implements API.
func (r *ReasoningEngines) List(ctx context.Context, parent string) ([]*aiplatformpb.ReasoningEngine, error) {
	it := r.client.ListReasoningEngines(ctx, &aiplatformpb.ListReasoningEnginesRequest{Parent: parent})
	var out []*aiplatformpb.ReasoningEngine
	for {
		e, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
}

// Delete implements API and waits for the long-running operation.
func (r *ReasoningEngines) Delete(ctx context.Context, name string, force bool) error {
	op, err := r.client.DeleteReasoningEngine(ctx, &aiplatformpb.DeleteReasoningEngineRequest{
		Name:  name,
		Force: force,
	})
	if err != nil {
		return err
	}
	return op.Wait(ctx)
}

// Create implements API and waits for the long-running operation.
func (r *ReasoningEngines) Create(ctx context.Context, parent string, engine *aiplatformpb.ReasoningEngine) (*aiplatformpb.ReasoningEngine, error) {
	op, err := r.client.CreateReasoningEngine(ctx, &aiplatformpb.CreateReasoningEngineRequest{
		Parent:          parent,
		ReasoningEngine: engine,
	})
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

// Start implements lifecycle.Component. The client is dialled in the constructor.
func (r *ReasoningEngines) Start(context.Context) error { return nil }

// Stop closes the connection.
func (r *ReasoningEngines) Stop(context.Context) error {
	return r.client.Close()
}

// Name implements lifecycle.Component.
func (r *ReasoningEngines) Name() string { return "Reasoning Engine Client" }

// BucketStager implements Stager on Cloud Storage.
type BucketStager struct {
	client *storage.Client
}

// NewBucketStager creates a Cloud Storage client.
func NewBucketStager(ctx context.Context, opts ...option.ClientOption) (*BucketStager, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &BucketStager{client: client}, nil
}

// Upload implements Stager.
func (s *BucketStager) Upload(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Start implements lifecycle.Component.
func (s *BucketStager) Start(context.Context) error { return nil }

// Stop closes the storage client.
func (s *BucketStager) Stop(context.Context) error {
	return s.client.Close()
}

// Name implements lifecycle.Component.
func (s *BucketStager) Name() string { return "Staging Bucket Client" }
