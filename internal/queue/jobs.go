package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// CleanupObjectTask is scheduled when a storage object outlives its
	// database row, e.g. a delete whose RemoveObject call failed.
	CleanupObjectTask = "storage:cleanup"
)

// CleanupPayload tells the worker which object to remove from the bucket.
type CleanupPayload struct {
	ObjectKey string `json:"object_key"`
}

// Client wraps the asynq client so callers depend on a narrow enqueue API.
type Client struct {
	inner *asynq.Client
}

// NewClient constructs a Client.
func NewClient(inner *asynq.Client) *Client {
	return &Client{inner: inner}
}

// EnqueueCleanup schedules an orphaned-object removal with retries.
func (c *Client) EnqueueCleanup(ctx context.Context, objectKey string) error {
	data, err := json.Marshal(CleanupPayload{ObjectKey: objectKey})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(CleanupObjectTask, data)
	if _, err := c.inner.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue cleanup task: %w", err)
	}
	return nil
}

// Close releases the underlying asynq client.
func (c *Client) Close() error {
	return c.inner.Close()
}
