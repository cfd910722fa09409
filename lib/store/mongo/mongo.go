// Package mongo implements the interface for MongoDB.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tarancss/faucet/lib/store"
)

// Database and collection holding the drips.
const (
	Database   = "faucet"
	Collection = "drips"
)

// Mongo implements a connection to a MongoDB database.
type Mongo struct {
	c *mgo.Client
}

// New returns a Mongo client connection to the specified MongoDB database uri.
func New(uri string) (*Mongo, error) {
	// get a client
	c, err := mgo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongo DB in %s: %w", uri, err)
	}
	// connect client
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:gomnd // 5 seconds timeout
	defer cancel()

	err = c.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongo DB: %w", err)
	}

	m := &Mongo{c: c}

	// drips are looked up by day and address or username
	_, err = m.col().Indexes().CreateMany(ctx, []mgo.IndexModel{
		{Keys: bson.D{{Key: "day", Value: 1}, {Key: "addr", Value: 1}}},
		{Keys: bson.D{{Key: "day", Value: 1}, {Key: "username", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("error creating mongo DB indexes: %w", err)
	}

	return m, nil
}

// CloseMongo will close a database connection. Must be called at termination time.
func (m *Mongo) CloseMongo() error {
	return m.c.Disconnect(context.Background())
}

func (m *Mongo) col() *mgo.Collection {
	return m.c.Database(Database).Collection(Collection)
}

// HasDrippedToday reports whether the address or the username got a drip today.
func (m *Mongo) HasDrippedToday(ctx context.Context, k store.DripKey) (bool, error) {
	if k.Addr == "" {
		return false, store.ErrNoAddr
	}

	or := bson.A{bson.M{"addr": k.Addr}}
	if k.Username != "" {
		or = append(or, bson.M{"username": k.Username})
	}

	filter := bson.M{"day": store.Day(time.Now()), "$or": or}

	n, err := m.col().CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("could not count drips in db: %w", err)
	}

	return n > 0, nil
}

// SaveDrip inserts a drip made today for the key.
func (m *Mongo) SaveDrip(ctx context.Context, k store.DripKey) error {
	if k.Addr == "" {
		return store.ErrNoAddr
	}

	now := time.Now()

	_, err := m.col().InsertOne(ctx, store.Drip{Addr: k.Addr, Username: k.Username, Day: store.Day(now), TS: now})
	if err != nil {
		return fmt.Errorf("could not insert drip in db: %w", err)
	}

	return nil
}

// PurgeDrips deletes the drips made before the given day and returns how many were deleted.
func (m *Mongo) PurgeDrips(ctx context.Context, before string) (int64, error) {
	res, err := m.col().DeleteMany(ctx, bson.M{"day": bson.M{"$lt": before}})
	if err != nil {
		return 0, fmt.Errorf("could not purge drips in db: %w", err)
	}

	return res.DeletedCount, nil
}
