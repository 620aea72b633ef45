package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/autotrack/autotrack/internal/vehicle"
)

// PubSub publishes listings to a Google Cloud Pub/Sub topic.
type PubSub struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSub connects to the project and targets the given topic.
func NewPubSub(ctx context.Context, projectID, topicID string) (*PubSub, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	return &PubSub{client: client, topic: client.Topic(topicID)}, nil
}

// Publish marshals the listing to JSON and publishes it, returning the
// server-assigned message ID.
func (p *PubSub) Publish(ctx context.Context, l vehicle.Listing) (string, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return "", fmt.Errorf("marshal listing: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"listing_id": l.ID},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish listing %s: %w", l.ID, err)
	}
	return id, nil
}

// Close flushes pending messages and releases the client.
func (p *PubSub) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
