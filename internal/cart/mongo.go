package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *MongoRepository) GetCart(ctx context.Context, clientID string) (*Record, error) {
	var rec Record
	err := m.collection.FindOne(ctx, bson.M{"client_id": clientID}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if rec.Items == nil {
		rec.Items = domain.NewCart()
	}
	return &rec, nil
}

// AddItem upserts with a filter that excludes carts already at limit. At the
// limit the upsert collides with the unique client_id index and the cart is
// returned unchanged. A collision can also come from a concurrent first
// insert, so the update is tried twice.
func (m *MongoRepository) AddItem(ctx context.Context, clientID string, productID domain.ProductID, limit uint8) (*Record, error) {
	field, err := itemField(productID)
	if err != nil {
		return nil, err
	}
	filter := bson.M{
		"client_id": clientID,
		field:       bson.M{"$not": bson.M{"$gte": int32(limit)}},
	}
	for range 2 {
		now := time.Now()
		update := bson.M{
			"$inc":         bson.M{field: 1},
			"$set":         bson.M{"updated_at": now},
			"$setOnInsert": bson.M{"created_at": now},
		}
		rec, err := m.findOneAndUpdate(ctx, filter, update, true)
		if err == nil {
			return rec, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("failed to add cart item: %w", err)
		}
	}
	return m.GetCart(ctx, clientID)
}

// RemoveItem decrements with $inc when more than one unit is left and unsets
// the entry when exactly one is. A concurrent change between the two guarded
// updates makes both miss, in which case the cart is re-read and the remove
// retried.
func (m *MongoRepository) RemoveItem(ctx context.Context, clientID string, productID domain.ProductID) (*Record, error) {
	field, err := itemField(productID)
	if err != nil {
		return nil, err
	}
	for range 3 {
		rec, err := m.findOneAndUpdate(ctx,
			bson.M{"client_id": clientID, field: bson.M{"$gt": 1}},
			bson.M{"$inc": bson.M{field: -1}, "$set": bson.M{"updated_at": time.Now()}}, false)
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return rec, wrapUpdateErr("remove", err)
		}
		rec, err = m.findOneAndUpdate(ctx,
			bson.M{"client_id": clientID, field: 1},
			bson.M{"$unset": bson.M{field: ""}, "$set": bson.M{"updated_at": time.Now()}}, false)
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return rec, wrapUpdateErr("remove", err)
		}
		rec, err = m.GetCart(ctx, clientID)
		if err != nil || rec.Items[productID] == 0 {
			return rec, err
		}
	}
	return nil, fmt.Errorf("failed to remove cart item: %s changed concurrently", productID)
}

func (m *MongoRepository) DeleteItem(ctx context.Context, clientID string, productID domain.ProductID) (*Record, error) {
	field, err := itemField(productID)
	if err != nil {
		return nil, err
	}
	rec, err := m.findOneAndUpdate(ctx,
		bson.M{"client_id": clientID},
		bson.M{"$unset": bson.M{field: ""}, "$set": bson.M{"updated_at": time.Now()}}, false)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCartNotFound
	}
	return rec, wrapUpdateErr("delete", err)
}

func (m *MongoRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M, upsert bool) (*Record, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(upsert).
		SetReturnDocument(options.After)
	var rec Record
	if err := m.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&rec); err != nil {
		return nil, err
	}
	if rec.Items == nil {
		rec.Items = domain.NewCart()
	}
	return &rec, nil
}

func wrapUpdateErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s cart item: %w", op, err)
}

// itemField is the document path of productID's quantity. Ids that would
// split or escape the path are rejected.
func itemField(productID domain.ProductID) (string, error) {
	id := string(productID)
	if id == "" || strings.ContainsAny(id, ".\x00") || strings.HasPrefix(id, "$") {
		return "", fmt.Errorf("%w: %q", ErrInvalidProductID, id)
	}
	return "items." + id, nil
}

func (m *MongoRepository) SetCheckoutSession(ctx context.Context, clientID string, sessionID domain.SessionID) error {
	update := bson.M{
		"$set": bson.M{"checkout_session_id": sessionID, "updated_at": time.Now()},
	}
	result, err := m.collection.UpdateOne(ctx, bson.M{"client_id": clientID}, update)
	if err != nil {
		return fmt.Errorf("failed to set checkout session: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *MongoRepository) DeleteCart(ctx context.Context, clientID string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"client_id": clientID})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *MongoRepository) DeleteIfSession(ctx context.Context, clientID string, sessionID domain.SessionID) (bool, error) {
	filter := bson.M{"client_id": clientID, "checkout_session_id": sessionID}
	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("failed to delete completed cart: %w", err)
	}
	return result.DeletedCount > 0, nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "client_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
