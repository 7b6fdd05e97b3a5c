package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flowrun/flowengine/internal/queue"
)

// Queue is a queue.FlowQueue backed by MongoDB. Pending and in-progress
// ids live in the same collection, distinguished by a status field, so
// PopPending can claim an entry with a single atomic FindOneAndUpdate.
type Queue struct {
	coll *mongo.Collection
}

var _ queue.FlowQueue = (*Queue)(nil)

const (
	queueStatusPending    = "pending"
	queueStatusInProgress = "in_progress"
)

type queueDoc struct {
	ID            string `bson:"_id"`
	Status        string `bson:"status"`
	EnqueuedAt    int64  `bson:"enqueued_at"`
	LastHeartbeat int64  `bson:"last_heartbeat"`
}

// NewQueue builds a Queue over client. dbName defaults to "flowengine".
func NewQueue(client *mongo.Client, dbName string) *Queue {
	if dbName == "" {
		dbName = "flowengine"
	}
	return &Queue{coll: client.Database(dbName).Collection("flow_queue")}
}

func ctxQ() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (q *Queue) PushPending(id string) {
	c, cancel := ctxQ()
	defer cancel()

	now := time.Now().UnixNano()
	_, _ = q.coll.UpdateOne(c, bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": queueStatusPending, "enqueued_at": now}},
		options.Update().SetUpsert(true),
	)
}

func (q *Queue) PopPending() (string, bool) {
	c, cancel := ctxQ()
	defer cancel()

	var doc queueDoc
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "enqueued_at", Value: 1}}).
		SetReturnDocument(options.After)

	err := q.coll.FindOneAndUpdate(c,
		bson.M{"status": queueStatusPending},
		bson.M{"$set": bson.M{"status": queueStatusInProgress, "last_heartbeat": time.Now().UnixNano()}},
		opts,
	).Decode(&doc)
	if err != nil {
		return "", false
	}
	return doc.ID, true
}

func (q *Queue) PushInProgress(id string) {
	c, cancel := ctxQ()
	defer cancel()

	now := time.Now().UnixNano()
	_, _ = q.coll.UpdateOne(c, bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": queueStatusInProgress, "last_heartbeat": now}},
		options.Update().SetUpsert(true),
	)
}

func (q *Queue) PopInProgress(id string) {
	c, cancel := ctxQ()
	defer cancel()
	_, _ = q.coll.DeleteOne(c, bson.M{"_id": id, "status": queueStatusInProgress})
}

func (q *Queue) ResetHeartbeat(id string) {
	c, cancel := ctxQ()
	defer cancel()
	_, _ = q.coll.UpdateOne(c,
		bson.M{"_id": id, "status": queueStatusInProgress},
		bson.M{"$set": bson.M{"last_heartbeat": time.Now().UnixNano()}},
	)
}

func (q *Queue) RequeueExpired(visibilityTimeout time.Duration) {
	c, cancel := ctxQ()
	defer cancel()

	cutoff := time.Now().Add(-visibilityTimeout).UnixNano()
	_, _ = q.coll.UpdateMany(c,
		bson.M{"status": queueStatusInProgress, "last_heartbeat": bson.M{"$lt": cutoff}},
		bson.M{"$set": bson.M{"status": queueStatusPending, "enqueued_at": time.Now().UnixNano()}},
	)
}
