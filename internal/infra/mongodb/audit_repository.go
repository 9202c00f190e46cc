package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// AuditLog is the document persisted for each transfer lifecycle
// event. The message ID doubles as _id so redelivered events upsert
// instead of duplicating.
type AuditLog struct {
	ID                  string         `bson:"_id"`
	EventType           string         `bson:"event_type"`
	TransferID          string         `bson:"transfer_id"`
	CorrelationID       string         `bson:"correlation_id"`
	SourceWalletID      string         `bson:"source_wallet_id"`
	DestinationWalletID string         `bson:"destination_wallet_id"`
	AmountMinorUnits    int64          `bson:"amount_minor_units"`
	Currency            string         `bson:"currency"`
	Reference           string         `bson:"reference"`
	FailureStage        string         `bson:"failure_stage,omitempty"`
	FailureReason       string         `bson:"failure_reason,omitempty"`
	Metadata            map[string]any `bson:"metadata,omitempty"`
	OccurredAt          time.Time      `bson:"occurred_at"`
	ProcessedAt         time.Time      `bson:"processed_at"`
}

type AuditRepository struct {
	collection *mongo.Collection
}

func NewAuditRepository(client *mongo.Client, dbName string) *AuditRepository {
	collection := client.Database(dbName).Collection("transfer_audit")
	return &AuditRepository{collection: collection}
}

func (r *AuditRepository) Save(ctx context.Context, log AuditLog) error {
	log.ProcessedAt = time.Now().UTC()

	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": log.ID}, log, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}
