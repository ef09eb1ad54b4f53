package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/transit-telemetry/pkg/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Instance struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func Connect(ctx context.Context, cfg config.MongoDBConfig) (*Instance, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Connection))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	instance := &Instance{
		Client:   client,
		Database: client.Database(cfg.Database),
	}

	instance.createIndexes(connectCtx)

	log.Info().Str("database", cfg.Database).Msg("Connected to MongoDB")

	return instance, nil
}

func (i *Instance) GetCollection(collectionName string) *mongo.Collection {
	return i.Database.Collection(collectionName)
}

func (i *Instance) Ping(ctx context.Context) error {
	return i.Client.Ping(ctx, nil)
}

func (i *Instance) Disconnect(ctx context.Context) error {
	return i.Client.Disconnect(ctx)
}

// WithTransaction runs fn inside a multi-document transaction. Requires MongoDB
// to be running as a replica set.
func (i *Instance) WithTransaction(ctx context.Context, fn func(ctx mongo.SessionContext) error) error {
	session, err := i.Client.StartSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessionContext mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessionContext)
	})

	return err
}
