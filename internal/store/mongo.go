package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	UsersCollection        = "users"
	DoctorsCollection      = "doctors"
	AppointmentsCollection = "appointments"
)

var ErrNotFound = errors.New("document not found")

// InvalidIDError is returned when a path value is not a valid ObjectID.
type InvalidIDError struct {
	Path  string
	Value string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Path, e.Value)
}

// ParseID converts a hex identifier, reporting the offending path on failure.
func ParseID(path, value string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		return primitive.NilObjectID, &InvalidIDError{Path: path, Value: value}
	}
	return id, nil
}

// Connect opens a client and checks the primary is reachable.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, client.Database(database), nil
}

// Purge removes every document of the application collections and reports
// how many were deleted per collection.
func Purge(ctx context.Context, db *mongo.Database) (map[string]int64, error) {
	deleted := make(map[string]int64, 3)
	for _, name := range []string{AppointmentsCollection, DoctorsCollection, UsersCollection} {
		res, err := db.Collection(name).DeleteMany(ctx, bson.M{})
		if err != nil {
			return deleted, fmt.Errorf("purge %s: %w", name, err)
		}
		deleted[name] = res.DeletedCount
	}
	return deleted, nil
}

// activeOnly hides soft-deleted documents from a lookup.
func activeOnly(filter bson.M) bson.M {
	out := bson.M{}
	for k, v := range filter {
		out[k] = v
	}
	out["active"] = bson.M{"$ne": false}
	return out
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
