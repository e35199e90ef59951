package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cal-poly-dxhub/duck-hunt/pkg/queue"
)

const (
	setupRequestsKey = "setup-requests"
	resultTTL        = 24 * time.Hour
)

func resultKey(requestID string) string { return "setup-result:" + requestID }

// SetupQueue is the FIFO of game setup requests and their results
type SetupQueue struct {
	client *Client
}

func NewSetupQueue(client *Client) *SetupQueue {
	return &SetupQueue{client: client}
}

// Enqueue adds a request to the end of the queue
func (q *SetupQueue) Enqueue(ctx context.Context, req *queue.SetupRequest) error {
	data, err := req.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize request: %w", err)
	}
	if err := q.client.rdb.RPush(ctx, setupRequestsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue setup request: %w", err)
	}
	q.client.logger.Debug("Setup request enqueued", "request_id", req.RequestID)
	return nil
}

// Dequeue removes and returns the next request. Returns nil if the queue is empty.
func (q *SetupQueue) Dequeue(ctx context.Context) (*queue.SetupRequest, error) {
	result, err := q.client.rdb.LPop(ctx, setupRequestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue setup request: %w", err)
	}
	return parseRequest(result)
}

// BlockingDequeue waits up to timeout for a request. Returns nil on timeout.
func (q *SetupQueue) BlockingDequeue(ctx context.Context, timeout time.Duration) (*queue.SetupRequest, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, setupRequestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue setup request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}
	return parseRequest(result[1])
}

func parseRequest(data string) (*queue.SetupRequest, error) {
	req, err := queue.FromJSON([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse setup request: %w", err)
	}
	return req, nil
}

// Depth returns the number of queued requests
func (q *SetupQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, setupRequestsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return int(count), nil
}

// SaveResult records the outcome of a request for later lookup
func (q *SetupQueue) SaveResult(ctx context.Context, res *queue.SetupResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to serialize setup result: %w", err)
	}
	if err := q.client.rdb.Set(ctx, resultKey(res.RequestID), data, resultTTL).Err(); err != nil {
		return fmt.Errorf("failed to save setup result: %w", err)
	}
	return nil
}

// Result returns the recorded outcome of a request, or nil if none exists yet
func (q *SetupQueue) Result(ctx context.Context, requestID string) (*queue.SetupResult, error) {
	data, err := q.client.rdb.Get(ctx, resultKey(requestID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load setup result: %w", err)
	}
	var res queue.SetupResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to parse setup result: %w", err)
	}
	return &res, nil
}
