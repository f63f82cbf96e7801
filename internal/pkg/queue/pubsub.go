package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

type PubSubOptions struct {
	ProjectID       string
	TopicID         string
	CredentialsJSON string
}

// PubSubDispatcher publishes jobs to a topic. A push subscription delivers
// them back to the compute endpoint, which answers 5xx for retryable
// failures.
type PubSubDispatcher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func NewPubSubDispatcher(ctx context.Context, opts PubSubOptions) (*PubSubDispatcher, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsJSON != "" {
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	}

	client, err := pubsub.NewClient(ctx, opts.ProjectID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(opts.TopicID)
	ok, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("check topic %q: %w", opts.TopicID, err)
	}
	if !ok {
		client.Close()
		return nil, fmt.Errorf("topic %q does not exist", opts.TopicID)
	}

	slog.Info("Pub/Sub dispatcher ready", "project_id", opts.ProjectID, "topic", opts.TopicID)
	return &PubSubDispatcher{client: client, topic: topic}, nil
}

func (d *PubSubDispatcher) Dispatch(ctx context.Context, job Job) error {
	if !job.Valid() {
		return ErrInvalidJob
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	res := d.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"tenant_id": job.TenantID, "job_id": job.ID},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publish job %s: %w", job.ID, err)
	}
	return nil
}

func (d *PubSubDispatcher) Close() error {
	d.topic.Stop()
	return d.client.Close()
}

// PushEnvelope is the body Pub/Sub POSTs to a push endpoint.
type PushEnvelope struct {
	Message struct {
		Data       []byte            `json:"data"`
		ID         string            `json:"messageId"`
		Attributes map[string]string `json:"attributes,omitempty"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// DecodePush reads a push request body into a Job. The Pub/Sub message id
// stands in when the publisher did not set one.
func DecodePush(r io.Reader) (Job, error) {
	var envelope PushEnvelope
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		return Job{}, fmt.Errorf("decode push envelope: %w", err)
	}

	var job Job
	if err := json.Unmarshal(envelope.Message.Data, &job); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	if job.ID == "" {
		job.ID = envelope.Message.ID
	}
	if !job.Valid() {
		return Job{}, ErrInvalidJob
	}
	return job, nil
}
