package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the repositories rely on. The unique
// index on carts.user is what makes concurrent first adds converge on one
// cart per user.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if _, err := db.Collection(CartsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("carts_user_unique"),
	}); err != nil {
		return fmt.Errorf("create carts index: %w", err)
	}

	if _, err := db.Collection(ProductsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "category", Value: 1}},
		Options: options.Index().SetName("products_category"),
	}); err != nil {
		return fmt.Errorf("create products index: %w", err)
	}

	return nil
}
