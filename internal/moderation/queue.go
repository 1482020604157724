package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"mediavault/internal/model"
	"mediavault/internal/registry"
)

// Package moderation classifies newly uploaded media out-of-band and
// transitions registry records from pending to a terminal status. Enqueue
// is synchronous and non-blocking at upload time; classification runs on a
// worker pool consuming a FIFO queue.

// ErrQueueFull is returned by Enqueue when the queue is saturated. The
// media object stays pending; a sweeper or re-enqueue can pick it up later.
var ErrQueueFull = errors.New("moderation queue full")

// Classifier decides the review outcome for one media object. The
// production heuristic lives outside this core; AutoApproveClassifier is
// the default stand-in.
type Classifier interface {
	Classify(ctx context.Context, obj *model.MediaObject) (model.ModerationStatus, error)
}

// AutoApproveClassifier approves everything it sees.
type AutoApproveClassifier struct{}

func (AutoApproveClassifier) Classify(context.Context, *model.MediaObject) (model.ModerationStatus, error) {
	return model.ModerationApproved, nil
}

// Enqueuer is the narrow interface the upload pipeline depends on.
type Enqueuer interface {
	Enqueue(id string) error
}

// Queue is a FIFO moderation queue consumed by a fixed worker pool.
type Queue struct {
	reg        registry.MediaRegistry
	classifier Classifier
	ch         chan string
	workers    int

	wg       sync.WaitGroup
	stopOnce sync.Once

	logw io.Writer
	loc  *time.Location
}

// NewQueue creates a moderation queue. Non-positive workers/capacity fall
// back to 2 workers and a 256-slot buffer.
func NewQueue(reg registry.MediaRegistry, classifier Classifier, workers, capacity int) *Queue {
	if workers <= 0 {
		workers = 2
	}
	if capacity <= 0 {
		capacity = 256
	}
	return &Queue{
		reg:        reg,
		classifier: classifier,
		ch:         make(chan string, capacity),
		workers:    workers,
		logw:       os.Stdout,
		loc:        time.UTC,
	}
}

var _ Enqueuer = (*Queue)(nil)

// Start launches the worker pool. Workers exit when the context is
// cancelled or the queue is stopped.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id, ok := <-q.ch:
					if !ok {
						return
					}
					q.process(ctx, id)
				}
			}
		}()
	}
}

// Enqueue submits a media id for classification without blocking.
func (q *Queue) Enqueue(id string) error {
	select {
	case q.ch <- id:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight classifications to finish.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.ch) })
	q.wg.Wait()
}

func (q *Queue) process(ctx context.Context, id string) {
	obj, err := q.reg.FindByID(ctx, id)
	if err != nil {
		// Deleted before classification; nothing to do.
		if errors.Is(err, registry.ErrNotFound) {
			return
		}
		q.logEvent("moderation_lookup_failed", id, "", err)
		return
	}
	if obj.ModerationStatus.Terminal() {
		return
	}

	status, err := q.classifier.Classify(ctx, obj)
	if err != nil {
		q.logEvent("moderation_classify_failed", id, "", err)
		return
	}
	if !status.Terminal() {
		q.logEvent("moderation_non_terminal_outcome", id, string(status), nil)
		return
	}

	verified := status == model.ModerationApproved
	if err := q.reg.UpdateModeration(ctx, id, status, verified); err != nil {
		// A concurrent worker already settled this record.
		if errors.Is(err, registry.ErrAlreadyModerated) || errors.Is(err, registry.ErrNotFound) {
			return
		}
		q.logEvent("moderation_update_failed", id, string(status), err)
		return
	}
	q.logEvent("moderation_settled", id, string(status), nil)
}

func (q *Queue) logEvent(event, mediaID, status string, err error) {
	entry := map[string]any{
		"ts":        time.Now().In(q.loc).Format(time.RFC3339Nano),
		"component": "moderation",
		"event":     event,
		"media_id":  mediaID,
	}
	if status != "" {
		entry["status"] = status
	}
	if err != nil {
		entry["level"] = "error"
		entry["error"] = err.Error()
	} else {
		entry["level"] = "info"
	}
	if b, marshalErr := json.Marshal(entry); marshalErr == nil {
		_, _ = q.logw.Write(append(b, '\n'))
	}
}
