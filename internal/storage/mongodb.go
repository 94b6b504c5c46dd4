package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruslanhut/ocpp-emu/internal/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBClient represents a MongoDB client with the collections this
// repository persists: stations and their ConfigurationKey stores.
type MongoDBClient struct {
	client   *mongo.Client
	database *mongo.Database
	cfg      *config.MongoDBConfig
	logger   *slog.Logger

	// Collections
	StationsCollection          *mongo.Collection
	ConfigurationKeysCollection *mongo.Collection
}

// NewMongoDBClient creates a new MongoDB client and establishes connection
func NewMongoDBClient(ctx context.Context, cfg *config.MongoDBConfig, logger *slog.Logger) (*MongoDBClient, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Connecting to MongoDB",
		"uri", cfg.URI,
		"database", cfg.Database,
	)

	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetServerSelectionTimeout(cfg.ConnectionTimeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ctxPing, cancel := context.WithTimeout(ctx, cfg.ConnectionTimeout)
	defer cancel()

	if err := client.Ping(ctxPing, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Successfully connected to MongoDB")

	database := client.Database(cfg.Database)

	mongoClient := &MongoDBClient{
		client:                      client,
		database:                    database,
		cfg:                         cfg,
		logger:                      logger,
		StationsCollection:          database.Collection(cfg.Collections.Stations),
		ConfigurationKeysCollection: database.Collection(cfg.Collections.ConfigurationKeys),
	}

	if err := mongoClient.initializeCollections(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize collections: %w", err)
	}

	return mongoClient, nil
}

// initializeCollections creates indexes
func (m *MongoDBClient) initializeCollections(ctx context.Context) error {
	m.logger.Info("Initializing MongoDB collections and indexes")

	if err := m.createIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	m.logger.Info("Successfully initialized MongoDB collections and indexes")
	return nil
}

// createIndexes creates all necessary indexes
func (m *MongoDBClient) createIndexes(ctx context.Context) error {
	stationsIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "station_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := m.StationsCollection.Indexes().CreateMany(ctx, stationsIndexes); err != nil {
		return fmt.Errorf("failed to create stations indexes: %w", err)
	}

	keysIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "station_id", Value: 1},
				{Key: "key_lower", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := m.ConfigurationKeysCollection.Indexes().CreateMany(ctx, keysIndexes); err != nil {
		return fmt.Errorf("failed to create configuration key indexes: %w", err)
	}

	m.logger.Info("Successfully created all indexes")
	return nil
}

// Ping checks if the MongoDB connection is alive
func (m *MongoDBClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return m.client.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (m *MongoDBClient) Close(ctx context.Context) error {
	m.logger.Info("Closing MongoDB connection")

	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}

	m.logger.Info("Successfully closed MongoDB connection")
	return nil
}

// HealthCheck performs a health check on the MongoDB connection
func (m *MongoDBClient) HealthCheck(ctx context.Context) error {
	if err := m.Ping(ctx); err != nil {
		return fmt.Errorf("MongoDB health check failed: %w", err)
	}

	collections := []string{
		m.cfg.Collections.Stations,
		m.cfg.Collections.ConfigurationKeys,
	}

	dbCollections, err := m.database.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	collectionMap := make(map[string]bool)
	for _, col := range dbCollections {
		collectionMap[col] = true
	}

	for _, col := range collections {
		if !collectionMap[col] {
			return fmt.Errorf("collection %s does not exist", col)
		}
	}

	return nil
}

// Stats returns MongoDB connection statistics
func (m *MongoDBClient) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var dbStats bson.M
	if err := m.database.RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&dbStats); err != nil {
		return nil, fmt.Errorf("failed to get database stats: %w", err)
	}

	stats["database"] = dbStats

	collectionCounts := make(map[string]int64)

	if count, err := m.StationsCollection.CountDocuments(ctx, bson.M{}); err == nil {
		collectionCounts["stations"] = count
	}

	if count, err := m.ConfigurationKeysCollection.CountDocuments(ctx, bson.M{}); err == nil {
		collectionCounts["configuration_keys"] = count
	}

	stats["collection_counts"] = collectionCounts

	return stats, nil
}
