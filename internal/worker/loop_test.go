package worker_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"comfy-worker/internal/entity"
	"comfy-worker/internal/queue"
	"comfy-worker/internal/service"
	"comfy-worker/internal/worker"
)

type claimItem struct {
	jobID   string
	payload []byte
}

// drainQueue hands out its items one per claim, then cancels the loop's
// context so Run terminates.
type drainQueue struct {
	mu      sync.Mutex
	items   []claimItem
	acked   []string
	results map[string][]byte
	cancel  context.CancelFunc
}

func newDrainQueue(cancel context.CancelFunc, items ...claimItem) *drainQueue {
	return &drainQueue{items: items, results: map[string][]byte{}, cancel: cancel}
}

func (q *drainQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, []byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		q.cancel()
		return "", nil, queue.ErrEmpty
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item.jobID, item.payload, nil
}

func (q *drainQueue) Ack(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, jobID)
	return nil
}

func (q *drainQueue) StoreResult(ctx context.Context, jobID string, result []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.results[jobID] = result
	return nil
}

func (q *drainQueue) RequeueStale(ctx context.Context, max int64) (int64, error) {
	return 0, nil
}

type recordingRunner struct {
	mu   sync.Mutex
	reqs []*entity.JobRequest
}

func (r *recordingRunner) Run(ctx context.Context, req *entity.JobRequest) *entity.JobResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return &entity.JobResult{JobID: req.ID, Status: entity.StatusSuccess}
}

func TestLoop_ProcessesClaimedJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := newDrainQueue(cancel, claimItem{
		jobID:   "job-1",
		payload: []byte(`{"workflow":{"3":{"class_type":"KSampler"}}}`),
	})
	runner := &recordingRunner{}

	worker.NewLoop(q, runner, zerolog.Nop()).Run(ctx)

	if len(runner.reqs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runner.reqs))
	}
	if runner.reqs[0].ID != "job-1" {
		t.Fatalf("queue job id not adopted by the request: %q", runner.reqs[0].ID)
	}
	if len(q.acked) != 1 || q.acked[0] != "job-1" {
		t.Fatalf("job not acked: %v", q.acked)
	}

	var res entity.JobResult
	if err := json.Unmarshal(q.results["job-1"], &res); err != nil {
		t.Fatalf("stored result is not JSON: %v", err)
	}
	if !res.Succeeded() {
		t.Fatalf("unexpected stored result: %+v", res)
	}
}

func TestLoop_MalformedPayloadStillAcked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := newDrainQueue(cancel, claimItem{jobID: "job-2", payload: []byte(`{broken`)})
	runner := &recordingRunner{}

	worker.NewLoop(q, runner, zerolog.Nop()).Run(ctx)

	if len(runner.reqs) != 0 {
		t.Fatal("runner called with a malformed payload")
	}
	if len(q.acked) != 1 {
		t.Fatalf("malformed job not acked: %v", q.acked)
	}

	var res entity.JobResult
	if err := json.Unmarshal(q.results["job-2"], &res); err != nil {
		t.Fatalf("stored result is not JSON: %v", err)
	}
	if res.ErrorKind != string(service.KindInvalidJobRequest) {
		t.Fatalf("expected InvalidJobRequest, got %q", res.ErrorKind)
	}
	if res.JobID != "job-2" {
		t.Fatalf("result lost the queue job id: %q", res.JobID)
	}
}

func TestLoop_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := newDrainQueue(cancel)

	done := make(chan struct{})
	go func() {
		worker.NewLoop(q, &recordingRunner{}, zerolog.Nop()).Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after context cancellation")
	}
}
