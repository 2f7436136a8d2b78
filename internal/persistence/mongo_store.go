package persistence

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/petrijr/fluxotrace/pkg/api"
)

// MongoEventStore is an EventStore backed by MongoDB.
//
// Each event is one document holding its gob-encoded payload. A per-run
// counter in the <collName>_seq collection preserves append order.
type MongoEventStore struct {
	coll *mongo.Collection
	seq  *mongo.Collection
}

// Ensure it implements EventStore.
var _ EventStore = (*MongoEventStore)(nil)

type mongoEventDoc struct {
	RunID     string    `bson:"run_id"`
	EventKey  string    `bson:"event_key"`
	Seq       int64     `bson:"seq"`
	Kind      string    `bson:"kind"`
	CreatedAt time.Time `bson:"created_at"`
	Payload   []byte    `bson:"payload"`
}

// NewMongoEventStore creates a Mongo-backed event store and ensures its
// indexes exist. dbName defaults to "fluxotrace" if empty, collName
// defaults to "history_events".
func NewMongoEventStore(ctx context.Context, client *mongo.Client, dbName, collName string) (*MongoEventStore, error) {
	if dbName == "" {
		dbName = "fluxotrace"
	}
	if collName == "" {
		collName = "history_events"
	}

	db := client.Database(dbName)
	s := &MongoEventStore{
		coll: db.Collection(collName),
		seq:  db.Collection(collName + "_seq"),
	}

	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "run_id", Value: 1}, {Key: "event_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "seq", Value: 1}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create history indexes: %w", err)
	}
	return s, nil
}

func (s *MongoEventStore) nextSeq(ctx context.Context, runID string) (int64, error) {
	var counter struct {
		N int64 `bson:"n"`
	}
	err := s.seq.FindOneAndUpdate(ctx,
		bson.M{"_id": runID},
		bson.M{"$inc": bson.M{"n": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	return counter.N, err
}

func (s *MongoEventStore) AppendEvents(ctx context.Context, runID string, events ...api.RawEvent) error {
	for _, ev := range events {
		payload, err := EncodeEvent(ev)
		if err != nil {
			return err
		}
		n, err := s.nextSeq(ctx, runID)
		if err != nil {
			return fmt.Errorf("allocate sequence for run %s: %w", runID, err)
		}

		doc := mongoEventDoc{
			RunID:     runID,
			EventKey:  eventKey(ev),
			Seq:       n,
			Kind:      string(ev.Kind),
			CreatedAt: ev.CreatedAt,
			Payload:   payload,
		}
		if _, err := s.coll.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return fmt.Errorf("append event %s to run %s: %w", ev.ID, runID, err)
		}
	}
	return nil
}

func (s *MongoEventStore) ListEvents(ctx context.Context, runID string) ([]api.RawEvent, error) {
	cur, err := s.coll.Find(ctx,
		bson.M{"run_id": runID},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []api.RawEvent
	for cur.Next(ctx) {
		var doc mongoEventDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		ev, err := DecodeEvent(doc.Payload)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrRunNotFound
	}
	return out, nil
}

func (s *MongoEventStore) ListRuns(ctx context.Context) ([]string, error) {
	values, err := s.coll.Distinct(ctx, "run_id", bson.M{})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}
