package tokenstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBackend keeps one document per device: {_id: deviceID, access_token, refresh_token, updatedAt}.
type MongoBackend struct {
	col      *mongo.Collection
	deviceID string
}

func NewMongoBackend(col *mongo.Collection, deviceID string) *MongoBackend {
	return &MongoBackend{col: col, deviceID: deviceID}
}

func (b *MongoBackend) Get(ctx context.Context, key string) (string, error) {
	var doc bson.M
	err := b.col.FindOne(ctx, bson.M{"_id": b.deviceID}, options.FindOne().SetProjection(bson.M{key: 1})).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	v, _ := doc[key].(string)
	return v, nil
}

func (b *MongoBackend) Set(ctx context.Context, key, value string) error {
	update := bson.M{"$set": bson.M{key: value, "updatedAt": time.Now().UTC()}}
	_, err := b.col.UpdateOne(ctx, bson.M{"_id": b.deviceID}, update, options.Update().SetUpsert(true))
	return err
}

func (b *MongoBackend) Delete(ctx context.Context, keys ...string) error {
	unset := bson.M{}
	for _, k := range keys {
		unset[k] = ""
	}
	if len(unset) == 0 {
		return nil
	}
	_, err := b.col.UpdateOne(ctx, bson.M{"_id": b.deviceID}, bson.M{"$unset": unset})
	return err
}
