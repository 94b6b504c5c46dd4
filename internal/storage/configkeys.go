package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ruslanhut/ocpp-emu/internal/ocpp/v201"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoKeyStore persists ConfigurationKey entries to MongoDB, one document
// per (station_id, key_lower) pair.
type MongoKeyStore struct {
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongoKeyStore builds a store backed by client's ConfigurationKeysCollection.
func NewMongoKeyStore(client *MongoDBClient) *MongoKeyStore {
	return &MongoKeyStore{collection: client.ConfigurationKeysCollection, timeout: 5 * time.Second}
}

func (s *MongoKeyStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Get looks up keyName case-insensitively for stationID.
func (s *MongoKeyStore) Get(stationID, keyName string) (*v201.ConfigurationKeyEntry, bool) {
	ctx, cancel := s.ctx()
	defer cancel()

	var doc ConfigurationKey
	err := s.collection.FindOne(ctx, bson.M{
		"station_id": stationID,
		"key_lower":  strings.ToLower(keyName),
	}).Decode(&doc)
	if err != nil {
		return nil, false
	}

	return &v201.ConfigurationKeyEntry{
		Key:      doc.Key,
		Value:    doc.Value,
		ReadOnly: doc.ReadOnly,
		Visible:  doc.Visible,
		Reboot:   doc.Reboot,
	}, true
}

// Add inserts a new entry, or does nothing if it already exists and
// overwrite is false.
func (s *MongoKeyStore) Add(stationID, keyName, value string, opts v201.ConfigurationKeyAddOptions, overwrite bool) error {
	ctx, cancel := s.ctx()
	defer cancel()

	lower := strings.ToLower(keyName)

	if !overwrite {
		var existing ConfigurationKey
		err := s.collection.FindOne(ctx, bson.M{"station_id": stationID, "key_lower": lower}).Decode(&existing)
		if err == nil {
			return nil
		}
		if err != mongo.ErrNoDocuments {
			return fmt.Errorf("failed to check existing configuration key: %w", err)
		}
	}

	doc := ConfigurationKey{
		StationID: stationID,
		Key:       keyName,
		KeyLower:  lower,
		Value:     value,
		ReadOnly:  opts.ReadOnly,
		Visible:   opts.Visible,
		Reboot:    opts.Reboot,
		UpdatedAt: time.Now(),
	}

	_, err := s.collection.ReplaceOne(ctx,
		bson.M{"station_id": stationID, "key_lower": lower},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to add configuration key: %w", err)
	}
	return nil
}

// SetValue updates the value of an existing entry, creating one with default
// visibility flags if it does not exist yet.
func (s *MongoKeyStore) SetValue(stationID, keyName, value string) error {
	ctx, cancel := s.ctx()
	defer cancel()

	lower := strings.ToLower(keyName)

	_, err := s.collection.UpdateOne(ctx,
		bson.M{"station_id": stationID, "key_lower": lower},
		bson.M{
			"$set": bson.M{"value": value, "updated_at": time.Now()},
			"$setOnInsert": bson.M{
				"station_id": stationID,
				"key":        keyName,
				"key_lower":  lower,
				"visible":    true,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to set configuration key value: %w", err)
	}
	return nil
}
