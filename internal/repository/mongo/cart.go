package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// CartsCollection holds one document per user.
const CartsCollection = "carts"

// maxUpsertAttempts bounds retries of an upsert that lost the race to create
// the same user's cart.
const maxUpsertAttempts = 3

type cartDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	User      string             `bson:"user"`
	Products  []lineItemDoc      `bson:"products"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

type lineItemDoc struct {
	ProductID   string          `bson:"productId"`
	ProductName string          `bson:"productName"`
	ImgURL      string          `bson:"imgUrl"`
	Category    string          `bson:"category"`
	OnSale      bool            `bson:"onSale"`
	Price       float64         `bson:"price"`
	ShortDesc   string          `bson:"shortDesc"`
	Description string          `bson:"description"`
	AvgRating   *float64        `bson:"avgRating,omitempty"`
	Show        *bool           `bson:"show,omitempty"`
	Reviews     []domain.Review `bson:"reviews"`
	Quantity    int             `bson:"quantity"`
}

func newLineItemDoc(item domain.LineItem) lineItemDoc {
	reviews := item.Reviews
	if reviews == nil {
		reviews = []domain.Review{}
	}
	return lineItemDoc{
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		ImgURL:      item.ImgURL,
		Category:    item.Category,
		OnSale:      item.OnSale,
		Price:       item.Price,
		ShortDesc:   item.ShortDesc,
		Description: item.Description,
		AvgRating:   item.AvgRating,
		Show:        item.Show,
		Reviews:     reviews,
		Quantity:    item.Quantity,
	}
}

func (d cartDoc) toDomain() *domain.Cart {
	cart := &domain.Cart{
		ID:        d.ID.Hex(),
		User:      d.User,
		Products:  make([]domain.LineItem, 0, len(d.Products)),
		UpdatedAt: d.UpdatedAt,
	}
	for _, li := range d.Products {
		reviews := li.Reviews
		if reviews == nil {
			reviews = []domain.Review{}
		}
		cart.Products = append(cart.Products, domain.LineItem{
			ProductID:   li.ProductID,
			ProductName: li.ProductName,
			ImgURL:      li.ImgURL,
			Category:    li.Category,
			OnSale:      li.OnSale,
			Price:       li.Price,
			ShortDesc:   li.ShortDesc,
			Description: li.Description,
			AvgRating:   li.AvgRating,
			Show:        li.Show,
			Reviews:     reviews,
			Quantity:    li.Quantity,
		})
	}
	return cart
}

// CartRepository implements repository.CartRepository using MongoDB. Both
// mutations are single pipeline updates, so the merge happens on the server.
type CartRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ repository.CartRepository = (*CartRepository)(nil)

// NewCartRepository creates a new MongoDB-backed cart repository.
func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{
		coll: db.Collection(CartsCollection),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Get retrieves the cart owned by userID.
func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "carts.findOne", "")
	var doc cartDoc
	err := r.coll.FindOne(ctx, bson.M{"user": userID}).Decode(&doc)
	end(spanErr(err))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound(repository.ResourceCart, userID)
		}
		return nil, fmt.Errorf("find cart: %w", err)
	}
	return doc.toDomain(), nil
}

// AddItem merges item into the user's cart with one upserting findAndModify.
// The filter skips a cart whose line would pass domain.MaxQuantity, so such an
// add turns into an insert that the unique user index rejects. A duplicate key
// is therefore either a lost race on the first add, which is retried on the
// update path, or the quantity limit, which is reported without writing.
func (r *CartRepository) AddItem(ctx context.Context, userID string, item domain.LineItem) (*domain.Cart, error) {
	if !domain.CanAdd(0, item.Quantity) {
		return nil, repository.QuantityLimitError(item.ProductID)
	}

	filter := addItemFilter(userID, item)
	update := addItemPipeline(item, r.now())
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var err error
	for attempt := 1; attempt <= maxUpsertAttempts; attempt++ {
		var doc cartDoc
		doc, err = r.findOneAndUpdate(ctx, filter, update, opts)
		if err == nil {
			return doc.toDomain(), nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			break
		}
		if r.atLimit(ctx, userID, item) {
			return nil, repository.QuantityLimitError(item.ProductID)
		}
	}
	return nil, fmt.Errorf("add cart item: %w", err)
}

// atLimit reports whether the stored line for item cannot take item.Quantity
// more units. Read failures count as not at the limit so the caller retries.
func (r *CartRepository) atLimit(ctx context.Context, userID string, item domain.LineItem) bool {
	cart, err := r.Get(ctx, userID)
	if err != nil {
		return false
	}
	idx := cart.FindItemIndex(item.ProductID)
	return idx >= 0 && !domain.CanAdd(cart.Products[idx].Quantity, item.Quantity)
}

// RemoveItem subtracts quantity from the matching line in one pipeline
// update. When nothing matched, a follow-up read tells a missing cart apart
// from a missing line; neither case writes.
func (r *CartRepository) RemoveItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	filter := bson.M{"user": userID, "products.productId": productID}
	update := removeItemPipeline(productID, quantity, r.now())
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	doc, err := r.findOneAndUpdate(ctx, filter, update, opts)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("remove cart item: %w", err)
	}

	if _, err := r.Get(ctx, userID); err != nil {
		return nil, err
	}
	return nil, apperrors.NotFound(repository.ResourceCartItem, productID)
}

// Delete removes the user's cart if present.
func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "carts.deleteOne", "")
	_, err := r.coll.DeleteOne(ctx, bson.M{"user": userID})
	end(err)
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

func (r *CartRepository) findOneAndUpdate(ctx context.Context, filter, update any, opts *options.FindOneAndUpdateOptions) (cartDoc, error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "carts.findOneAndUpdate", "")
	var doc cartDoc
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	end(spanErr(err))
	return doc, err
}

// addItemFilter matches the user's cart unless its line for item.ProductID
// already holds too many units to take item.Quantity more.
func addItemFilter(userID string, item domain.LineItem) bson.M {
	return bson.M{
		"user": userID,
		"products": bson.M{"$not": bson.M{"$elemMatch": bson.M{
			"productId": item.ProductID,
			"quantity":  bson.M{"$gt": domain.MaxQuantity - item.Quantity},
		}}},
	}
}

// addItemPipeline increments the quantity of the line for item.ProductID when
// one exists and appends item otherwise. Caller-supplied values are wrapped in
// $literal so strings starting with "$" are never read as field paths.
func addItemPipeline(item domain.LineItem, now time.Time) mongo.Pipeline {
	pid := bson.M{"$literal": item.ProductID}
	existing := bson.M{"$ifNull": bson.A{"$products", bson.A{}}}

	increment := bson.M{"$map": bson.M{
		"input": "$products",
		"as":    "p",
		"in": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{"$$p.productId", pid}},
			bson.M{"$mergeObjects": bson.A{
				"$$p",
				bson.M{"quantity": bson.M{"$add": bson.A{"$$p.quantity", item.Quantity}}},
			}},
			"$$p",
		}},
	}}

	appendItem := bson.M{"$concatArrays": bson.A{
		existing,
		bson.A{bson.M{"$literal": newLineItemDoc(item)}},
	}}

	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "updatedAt", Value: now},
			{Key: "products", Value: bson.M{"$cond": bson.A{
				bson.M{"$in": bson.A{pid, bson.M{"$ifNull": bson.A{"$products.productId", bson.A{}}}}},
				increment,
				appendItem,
			}}},
		}}},
	}
}

// removeItemPipeline subtracts quantity from the line for productID and keeps
// only lines whose quantity stays positive.
func removeItemPipeline(productID string, quantity int, now time.Time) mongo.Pipeline {
	pid := bson.M{"$literal": productID}

	decremented := bson.M{"$map": bson.M{
		"input": "$products",
		"as":    "p",
		"in": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{"$$p.productId", pid}},
			bson.M{"$mergeObjects": bson.A{
				"$$p",
				bson.M{"quantity": bson.M{"$subtract": bson.A{"$$p.quantity", quantity}}},
			}},
			"$$p",
		}},
	}}

	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "updatedAt", Value: now},
			{Key: "products", Value: bson.M{"$filter": bson.M{
				"input": decremented,
				"as":    "p",
				"cond":  bson.M{"$gt": bson.A{"$$p.quantity", 0}},
			}}},
		}}},
	}
}
