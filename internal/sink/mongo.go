package sink

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/reloquent/tabledoc/internal/consistency"
)

// DefaultCollection receives check runs when none is configured.
const DefaultCollection = "consistency_runs"

// Mongo stores check runs as documents, one per run.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongo connects, verifies the connection and ensures the run indexes exist.
func NewMongo(ctx context.Context, connectionString, database, collection string) (*Mongo, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	client, err := mongo.Connect(options.Client().ApplyURI(connectionString))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	m := &Mongo{client: client, collection: client.Database(database).Collection(collection)}
	if err := m.ensureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "run_id", Value: 1}},
			Options: options.Index().SetName("run_id_unique").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "started_at", Value: -1}},
			Options: options.Index().SetName("started_at_desc"),
		},
		{
			Keys:    bson.D{{Key: "findings.table", Value: 1}},
			Options: options.Index().SetName("findings_table"),
		},
	}
	if _, err := m.collection.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("creating indexes on %s: %w", m.collection.Name(), err)
	}
	return nil
}

// Publish inserts the run.
func (m *Mongo) Publish(ctx context.Context, r *consistency.Result) error {
	if _, err := m.collection.InsertOne(ctx, r); err != nil {
		return fmt.Errorf("inserting run %s: %w", r.RunID, err)
	}
	return nil
}

// Recent returns up to n runs, newest first.
func (m *Mongo) Recent(ctx context.Context, n int) ([]*consistency.Result, error) {
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if n > 0 {
		opts.SetLimit(int64(n))
	}
	cur, err := m.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	var runs []*consistency.Result
	if err := cur.All(ctx, &runs); err != nil {
		return nil, fmt.Errorf("decoding runs: %w", err)
	}
	return runs, nil
}

// TableRun is one run's findings for a single table.
type TableRun struct {
	RunID     string
	StartedAt time.Time
	Findings  []consistency.Finding
}

// TableHistory returns the last n runs that reported findings for table, newest first.
func (m *Mongo) TableHistory(ctx context.Context, table string, n int) ([]TableRun, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetProjection(bson.D{{Key: "run_id", Value: 1}, {Key: "started_at", Value: 1}, {Key: "findings", Value: 1}})
	if n > 0 {
		opts.SetLimit(int64(n))
	}
	cur, err := m.collection.Find(ctx, bson.D{{Key: "findings.table", Value: table}}, opts)
	if err != nil {
		return nil, fmt.Errorf("querying history of %s: %w", table, err)
	}
	var runs []*consistency.Result
	if err := cur.All(ctx, &runs); err != nil {
		return nil, fmt.Errorf("decoding history of %s: %w", table, err)
	}

	out := make([]TableRun, 0, len(runs))
	for _, r := range runs {
		out = append(out, TableRun{RunID: r.RunID, StartedAt: r.StartedAt, Findings: r.ForTable(table)})
	}
	return out, nil
}

// Close disconnects from MongoDB.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
