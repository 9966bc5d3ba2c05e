package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fedtaxi/hojaruta/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo implements Repository on a MongoDB collection.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(ctx context.Context, col *mongo.Collection) *MongoRepo {
	idxModel := mongo.IndexModel{Keys: bson.D{{Key: "ownerId", Value: 1}, {Key: "createdAt", Value: -1}}}
	_, _ = col.Indexes().CreateOne(ctx, idxModel)
	return &MongoRepo{col: col}
}

func (m *MongoRepo) Create(ctx context.Context, rs *models.RouteSheet) (string, error) {
	now := time.Now().UTC()
	rs.CreatedAt = now
	rs.UpdatedAt = now
	rs.HasPDF = len(rs.PDF) > 0
	if rs.ID == "" {
		rs.ID = primitive.NewObjectID().Hex()
	}
	if _, err := m.col.InsertOne(ctx, rs); err != nil {
		return "", err
	}
	return rs.ID, nil
}

var withoutPDF = bson.M{"pdf": 0}

func (m *MongoRepo) Get(ctx context.Context, id string) (*models.RouteSheet, error) {
	var rs models.RouteSheet
	err := m.col.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(withoutPDF)).Decode(&rs)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rs, nil
}

func (m *MongoRepo) ListByOwner(ctx context.Context, ownerID string) ([]*models.RouteSheet, error) {
	opts := options.Find().SetProjection(withoutPDF).SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := m.col.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*models.RouteSheet{}
	for cur.Next(ctx) {
		var rs models.RouteSheet
		if err := cur.Decode(&rs); err != nil {
			return nil, err
		}
		out = append(out, &rs)
	}
	return out, cur.Err()
}

func (m *MongoRepo) PDF(ctx context.Context, id string) ([]byte, error) {
	var doc struct {
		PDF []byte `bson:"pdf"`
	}
	err := m.col.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"pdf": 1})).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(doc.PDF) == 0 {
		return nil, ErrNotFound
	}
	return doc.PDF, nil
}
