package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"raffle/internal/constants"
	"raffle/pkg/metrics"
)

type mongoRecord struct {
	DrawID         string   `bson:"draw_id"`
	EventID        string   `bson:"event_id"`
	Seed           *int64   `bson:"seed"`
	DSL            bson.M   `bson:"dsl"`
	SQL            string   `bson:"sql"`
	SnapshotHash   string   `bson:"snapshot_hash"`
	Timestamp      int64    `bson:"ts"`
	CandidateCount int      `bson:"candidate_count"`
	WinnerIDs      []string `bson:"winner_ids"`
}

// MongoStore inserts one document per draw. It never issues updates.
type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database, collection string) *MongoStore {
	if collection == "" {
		collection = constants.DefaultAuditCollection
	}
	return &MongoStore{collection: db.Collection(collection)}
}

func (s *MongoStore) Name() string {
	return constants.AuditBackendMongoDB
}

func (s *MongoStore) Append(ctx context.Context, rec Record) (string, error) {
	if rec.DrawID == "" {
		rec.DrawID = uuid.New().String()
	}

	doc, err := toMongoRecord(rec)
	if err != nil {
		return "", persistenceError(s.Name(), err)
	}

	start := time.Now()
	_, err = s.collection.InsertOne(ctx, doc)
	s.observe("insert", start, err)
	if err != nil {
		return "", persistenceError(s.Name(), fmt.Errorf("failed to insert audit record: %w", err))
	}

	return fmt.Sprintf("mongodb:%s/%s", s.collection.Name(), rec.DrawID), nil
}

func (s *MongoStore) List(ctx context.Context, eventID string, limit int) ([]Record, error) {
	filter := bson.M{}
	if eventID != "" {
		filter["event_id"] = eventID
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "ts", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(listLimit(limit)))

	start := time.Now()
	cursor, err := s.collection.Find(ctx, filter, opts)
	s.observe("find", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]Record, 0)
	for cursor.Next(ctx) {
		var doc mongoRecord
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode audit record: %w", err)
		}
		rec, err := fromMongoRecord(doc)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return records, nil
}

func (s *MongoStore) observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncDatabaseQuery("audit", s.Name(), operation, status)
	metrics.ObserveDatabaseQueryDuration("audit", s.Name(), operation, time.Since(start))
}

// The dsl travels through JSON so the stored document has the same shape
// as the file artifact.
func toMongoRecord(rec Record) (mongoRecord, error) {
	dslJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return mongoRecord{}, fmt.Errorf("failed to encode dsl: %w", err)
	}
	var dsl bson.M
	if err := bson.UnmarshalExtJSON(dslJSON, false, &dsl); err != nil {
		return mongoRecord{}, fmt.Errorf("failed to convert dsl: %w", err)
	}

	return mongoRecord{
		DrawID:         rec.DrawID,
		EventID:        rec.EventID,
		Seed:           rec.Seed,
		DSL:            dsl,
		SQL:            rec.SQL,
		SnapshotHash:   rec.SnapshotHash,
		Timestamp:      rec.Timestamp,
		CandidateCount: rec.CandidateCount,
		WinnerIDs:      nonNil(rec.WinnerIDs),
	}, nil
}

func fromMongoRecord(doc mongoRecord) (Record, error) {
	rec := Record{
		DrawID:         doc.DrawID,
		EventID:        doc.EventID,
		Seed:           doc.Seed,
		SQL:            doc.SQL,
		SnapshotHash:   doc.SnapshotHash,
		Timestamp:      doc.Timestamp,
		CandidateCount: doc.CandidateCount,
		WinnerIDs:      doc.WinnerIDs,
	}

	dslJSON, err := bson.MarshalExtJSON(doc.DSL, false, false)
	if err != nil {
		return Record{}, fmt.Errorf("failed to convert dsl of draw %s: %w", doc.DrawID, err)
	}
	if err := json.Unmarshal(dslJSON, &rec.Config); err != nil {
		return Record{}, fmt.Errorf("failed to decode dsl of draw %s: %w", doc.DrawID, err)
	}
	return rec, nil
}
