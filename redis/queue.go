package redis

import (
	"context"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flowrun/flowengine/internal/queue"
)

// Queue is a queue.FlowQueue backed by Redis: a list holds pending ids,
// and a sorted set holds in-progress ids scored by their last heartbeat
// (unix nanoseconds), so expired entries are a cheap ZRANGEBYSCORE away.
type Queue struct {
	client *goredis.Client
	prefix string
}

var _ queue.FlowQueue = (*Queue)(nil)

// NewQueue builds a Redis-backed Queue. prefix is optional (defaults to
// "flowengine:").
func NewQueue(client *goredis.Client, prefix string) *Queue {
	if prefix == "" {
		prefix = "flowengine:"
	}
	return &Queue{client: client, prefix: prefix}
}

func (q *Queue) keyPending() string    { return q.prefix + "pending" }
func (q *Queue) keyInProgress() string { return q.prefix + "inprogress" }

// popPendingScript atomically pops the head of pending and scores it into
// in-progress with the current time, so no external observer ever sees the
// id in neither or both collections.
var popPendingScript = goredis.NewScript(`
local id = redis.call('LPOP', KEYS[1])
if not id then
	return false
end
redis.call('ZADD', KEYS[2], ARGV[1], id)
return id
`)

func (q *Queue) PushPending(id string) {
	_ = q.client.RPush(context.Background(), q.keyPending(), id).Err()
}

func (q *Queue) PopPending() (string, bool) {
	ctx := context.Background()
	res, err := popPendingScript.Run(ctx, q.client, []string{q.keyPending(), q.keyInProgress()}, time.Now().UnixNano()).Result()
	if err != nil || res == nil {
		return "", false
	}
	id, ok := res.(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func (q *Queue) PushInProgress(id string) {
	ctx := context.Background()
	_ = q.client.ZAdd(ctx, q.keyInProgress(), goredis.Z{Score: float64(time.Now().UnixNano()), Member: id}).Err()
}

func (q *Queue) PopInProgress(id string) {
	_ = q.client.ZRem(context.Background(), q.keyInProgress(), id).Err()
}

// resetHeartbeatScript only rescopes id's score if it is still a member,
// matching the in-memory queue's no-op-if-absent semantics.
var resetHeartbeatScript = goredis.NewScript(`
local score = redis.call('ZSCORE', KEYS[1], ARGV[2])
if not score then
	return false
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[2])
return true
`)

func (q *Queue) ResetHeartbeat(id string) {
	ctx := context.Background()
	_, _ = resetHeartbeatScript.Run(ctx, q.client, []string{q.keyInProgress()}, time.Now().UnixNano(), id).Result()
}

func (q *Queue) RequeueExpired(visibilityTimeout time.Duration) {
	ctx := context.Background()
	cutoff := time.Now().Add(-visibilityTimeout).UnixNano()

	ids, err := q.client.ZRangeByScore(ctx, q.keyInProgress(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil || len(ids) == 0 {
		return
	}

	pipe := q.client.Pipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, q.keyInProgress(), id)
		pipe.RPush(ctx, q.keyPending(), id)
	}
	_, _ = pipe.Exec(ctx)
}
