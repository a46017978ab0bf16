package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"primetrade/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection = "users"
	tasksCollection = "tasks"

	// opTimeout bounds every single store round trip.
	opTimeout = 5 * time.Second
)

// ConnectMongoDB establishes a connection to MongoDB and returns the client.
func ConnectMongoDB(ctx context.Context, cfg config.MongoConfig, logger *slog.Logger) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(cfg.URI)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	// Ping the database to verify connection.
	ctxPing, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := client.Ping(ctxPing, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("connected to mongodb", slog.String("database", cfg.Database))
	return client, nil
}

// UserCollection returns the MongoDB collection for users.
func UserCollection(client *mongo.Client, dbName string) *mongo.Collection {
	return client.Database(dbName).Collection(usersCollection)
}

// TaskCollection returns the MongoDB collection for tasks.
func TaskCollection(client *mongo.Client, dbName string) *mongo.Collection {
	return client.Database(dbName).Collection(tasksCollection)
}

// EnsureIndexes creates the unique email index on users and the owner index on tasks.
func EnsureIndexes(ctx context.Context, users, tasks *mongo.Collection) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create users email index: %w", err)
	}
	_, err = tasks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create tasks email index: %w", err)
	}
	return nil
}
