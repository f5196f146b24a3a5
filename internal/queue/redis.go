package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrEmpty is returned by ClaimBlocking when no job arrived within the
// wait window.
var ErrEmpty = errors.New("queue empty")

// Source is a reliable Redis-backed job source for deployments without
// a serverless dispatcher. A single list holds pending job ids (one
// lane only: with one GPU and one job in flight, priorities are
// meaningless); claiming moves an id atomically into a processing list
// until the worker acks it, and payloads and results live in hashes
// keyed by job id.
//
// Claim: BRPOPLPUSH queue -> processing
// Ack:   LREM from processing + HDEL payload
type Source struct {
	rdb *redis.Client

	queueKey      string
	processingKey string
	payloadKey    string
	resultsKey    string

	log zerolog.Logger
}

func New(rdb *redis.Client, queueKey, processingKey, resultsKey string, log zerolog.Logger) *Source {
	return &Source{
		rdb:           rdb,
		queueKey:      queueKey,
		processingKey: processingKey,
		payloadKey:    queueKey + ":payload",
		resultsKey:    resultsKey,
		log:           log.With().Str("component", "queue").Logger(),
	}
}

// Enqueue stores the payload and pushes the job id onto the queue. The
// worker itself never enqueues; this is the producer half of the
// protocol, kept next to the consumer half so out-of-tree dispatchers
// share one definition of the key layout.
func (s *Source) Enqueue(ctx context.Context, jobID string, payload []byte) error {
	if err := s.rdb.HSet(ctx, s.payloadKey, jobID, payload).Err(); err != nil {
		return err
	}
	return s.rdb.LPush(ctx, s.queueKey, jobID).Err()
}

// ClaimBlocking waits up to timeout for a job, moving its id into the
// processing list and returning the stored payload.
func (s *Source) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, []byte, error) {
	jobID, err := s.rdb.BRPopLPush(ctx, s.queueKey, s.processingKey, timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil, ErrEmpty
		}
		return "", nil, err
	}

	payload, err := s.rdb.HGet(ctx, s.payloadKey, jobID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Payload vanished (manual intervention or expiry): drop
			// the claim so the id does not sit in processing forever.
			_ = s.rdb.LRem(ctx, s.processingKey, 1, jobID).Err()
			return "", nil, ErrEmpty
		}
		return "", nil, err
	}

	return jobID, payload, nil
}

// Ack removes a processed job from the processing list and drops its
// payload. The job is already terminal in the results hash (or failed
// early enough that the reaper should requeue it).
func (s *Source) Ack(ctx context.Context, jobID string) error {
	if err := s.rdb.LRem(ctx, s.processingKey, 1, jobID).Err(); err != nil {
		return err
	}
	return s.rdb.HDel(ctx, s.payloadKey, jobID).Err()
}

// StoreResult records the terminal result payload for a job id.
func (s *Source) StoreResult(ctx context.Context, jobID string, result []byte) error {
	return s.rdb.HSet(ctx, s.resultsKey, jobID, result).Err()
}

// RequeueStale moves claimed-but-unacked ids back onto the queue. A
// simple reaper for at-least-once delivery after a worker crash.
func (s *Source) RequeueStale(ctx context.Context, max int64) (int64, error) {
	var moved int64
	for i := int64(0); i < max; i++ {
		jobID, err := s.rdb.RPopLPush(ctx, s.processingKey, s.queueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return moved, err
		}
		if jobID != "" {
			moved++
		}
	}
	return moved, nil
}
