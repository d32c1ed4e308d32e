package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/sakhistudio/gallery-service/internal/queue"
)

// ObjectRemover is the slice of the object store the worker needs.
type ObjectRemover interface {
	Remove(ctx context.Context, objectKey string) error
}

// Processor consumes cleanup tasks from the asynq loop.
type Processor struct {
	store ObjectRemover
	log   *zap.SugaredLogger
}

// NewProcessor constructs a worker processor.
func NewProcessor(store ObjectRemover, log *zap.SugaredLogger) *Processor {
	return &Processor{store: store, log: log}
}

// Handler registers the cleanup job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.CleanupObjectTask, p.handleCleanup)
	return mux
}

func (p *Processor) handleCleanup(ctx context.Context, task *asynq.Task) error {
	var payload queue.CleanupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if err := p.store.Remove(ctx, payload.ObjectKey); err != nil {
		p.log.Warnf("cleanup of %s failed, will retry: %v", payload.ObjectKey, err)
		return err
	}
	p.log.Infof("removed orphaned object %s", payload.ObjectKey)
	return nil
}
