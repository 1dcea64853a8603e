package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureAuditCollection creates the indexes the audit store queries by. The
// collection itself is created on first insert.
func EnsureAuditCollection(ctx context.Context, db *mongo.Database, name string) error {
	collection := db.Collection(name)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "draw_id", Value: 1}},
			Options: options.Index().SetName("idx_" + name + "_draw_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "ts", Value: -1}},
			Options: options.Index().SetName("idx_" + name + "_event_ts"),
		},
		{
			Keys:    bson.D{{Key: "ts", Value: -1}},
			Options: options.Index().SetName("idx_" + name + "_ts"),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
