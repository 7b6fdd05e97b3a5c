// Package mongo provides a MongoDB-backed FlowStore and FlowQueue for
// flowengine.
package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/flowrun/flowengine/internal/store"
	"github.com/flowrun/flowengine/pkg/flow"
)

// Store is a store.FlowStore backed by a MongoDB collection.
type Store struct {
	runs     *mongo.Collection
	elements *mongo.Collection
}

var _ store.FlowStore = (*Store)(nil)

// NewStore builds a Store over client. dbName defaults to "flowengine".
func NewStore(client *mongo.Client, dbName string) *Store {
	if dbName == "" {
		dbName = "flowengine"
	}
	db := client.Database(dbName)
	return &Store{
		runs:     db.Collection("flow_runs"),
		elements: db.Collection("flow_elements"),
	}
}

type runDoc struct {
	ID           string `bson:"_id"`
	FlowName     string `bson:"flow_name"`
	UserID       string `bson:"user_id"`
	Status       string `bson:"status"`
	CreatedAt    int64  `bson:"created_at"`
	CompletedAt  int64  `bson:"completed_at,omitempty"`
	Input        []byte `bson:"input,omitempty"`
	Result       []byte `bson:"result,omitempty"`
	HasResult    bool   `bson:"has_result"`
	ErrorMessage string `bson:"error_message,omitempty"`
}

type elementDoc struct {
	ID        string `bson:"_id"`
	RunID     string `bson:"run_id"`
	CreatedAt int64  `bson:"created_at"`
	Seq       int64  `bson:"seq"`
	Content   []byte `bson:"content,omitempty"`
}

func ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (s *Store) SaveRun(run *flow.Run) (string, error) {
	c, cancel := ctx()
	defer cancel()

	input, err := store.EncodeValue(run.Input)
	if err != nil {
		return "", err
	}

	doc := runDoc{
		ID:        run.ID,
		FlowName:  run.FlowName,
		UserID:    run.UserID,
		Status:    string(run.Status),
		CreatedAt: run.CreatedAt.UnixNano(),
		Input:     input,
	}

	if _, err := s.runs.InsertOne(c, doc); err != nil {
		return "", err
	}
	return run.ID, nil
}

func (s *Store) GetRun(id string) (*flow.Run, error) {
	c, cancel := ctx()
	defer cancel()

	var doc runDoc
	if err := s.runs.FindOne(c, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrRunNotFound
		}
		return nil, err
	}
	return docToRun(&doc)
}

func (s *Store) ListRunsForUser(userID string, limit int) ([]*flow.Run, error) {
	c, cancel := ctx()
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.runs.Find(c, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(c)

	var out []*flow.Run
	for cur.Next(c) {
		var doc runDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		run, err := docToRun(&doc)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, cur.Err()
}

func (s *Store) UpdateRunStatus(id string, status flow.Status, now time.Time) error {
	c, cancel := ctx()
	defer cancel()

	set := bson.M{"status": string(status)}
	if status.IsTerminal() {
		set["completed_at"] = now.UnixNano()
	}

	terminalStatuses := []string{string(flow.StatusCompleted), string(flow.StatusFailed), string(flow.StatusCanceled)}
	_, err := s.runs.UpdateOne(c,
		bson.M{"_id": id, "status": bson.M{"$nin": terminalStatuses}},
		bson.M{"$set": set},
	)
	return err
}

func (s *Store) UpdateRunCompletionTime(id string, t time.Time) error {
	c, cancel := ctx()
	defer cancel()
	_, err := s.runs.UpdateOne(c, bson.M{"_id": id}, bson.M{"$set": bson.M{"completed_at": t.UnixNano()}})
	return err
}

func (s *Store) UpdateRunErrorMessage(id string, msg string) error {
	c, cancel := ctx()
	defer cancel()
	_, err := s.runs.UpdateOne(c, bson.M{"_id": id}, bson.M{"$set": bson.M{"error_message": msg}})
	return err
}

func (s *Store) SaveElement(el *flow.Element) (string, error) {
	c, cancel := ctx()
	defer cancel()

	content, err := store.EncodeValue(el.Content)
	if err != nil {
		return "", err
	}

	seq, err := s.elements.CountDocuments(c, bson.M{"run_id": el.RunID})
	if err != nil {
		return "", err
	}

	doc := elementDoc{
		ID:        el.ID,
		RunID:     el.RunID,
		CreatedAt: el.CreatedAt.UnixNano(),
		Seq:       seq,
		Content:   content,
	}
	if _, err := s.elements.InsertOne(c, doc); err != nil {
		return "", err
	}
	return el.ID, nil
}

func (s *Store) GetElements(runID string) ([]*flow.Element, error) {
	c, cancel := ctx()
	defer cancel()

	cur, err := s.elements.Find(c, bson.M{"run_id": runID}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(c)

	out := make([]*flow.Element, 0)
	for cur.Next(c) {
		var doc elementDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		content, err := store.DecodeValue[any](doc.Content)
		if err != nil {
			return nil, err
		}
		out = append(out, &flow.Element{
			ID:        doc.ID,
			RunID:     doc.RunID,
			CreatedAt: time.Unix(0, doc.CreatedAt),
			Content:   content,
		})
	}
	return out, cur.Err()
}

func (s *Store) SaveResult(runID string, result any) error {
	c, cancel := ctx()
	defer cancel()

	data, err := store.EncodeValue(result)
	if err != nil {
		return err
	}
	_, err = s.runs.UpdateOne(c, bson.M{"_id": runID}, bson.M{"$set": bson.M{"result": data, "has_result": true}})
	return err
}

func (s *Store) GetResult(runID string) (any, error) {
	c, cancel := ctx()
	defer cancel()

	var doc runDoc
	if err := s.runs.FindOne(c, bson.M{"_id": runID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrResultNotFound
		}
		return nil, err
	}
	if !doc.HasResult {
		return nil, store.ErrResultNotFound
	}
	return store.DecodeValue[any](doc.Result)
}

func docToRun(doc *runDoc) (*flow.Run, error) {
	input, err := store.DecodeValue[any](doc.Input)
	if err != nil {
		return nil, err
	}

	run := &flow.Run{
		ID:           doc.ID,
		FlowName:     doc.FlowName,
		UserID:       doc.UserID,
		Status:       flow.Status(doc.Status),
		CreatedAt:    time.Unix(0, doc.CreatedAt),
		Input:        input,
		ErrorMessage: doc.ErrorMessage,
	}
	if doc.CompletedAt != 0 {
		run.CompletedAt = time.Unix(0, doc.CompletedAt)
	}
	if doc.HasResult {
		result, err := store.DecodeValue[any](doc.Result)
		if err != nil {
			return nil, err
		}
		run.Result = result
	}
	return run, nil
}
