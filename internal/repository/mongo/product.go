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

// ProductsCollection is the collection that holds catalog documents.
const ProductsCollection = "products"

// editableDoc is the bson form of domain.ProductFields. Inserts and the
// replace $set both write it, so the two paths cannot drift apart.
type editableDoc struct {
	ProductName string  `bson:"productName"`
	ImgURL      string  `bson:"imgUrl"`
	Category    string  `bson:"category"`
	OnSale      bool    `bson:"onSale"`
	Price       float64 `bson:"price"`
	ShortDesc   string  `bson:"shortDesc"`
	Description string  `bson:"description"`
}

func newEditableDoc(f domain.ProductFields) editableDoc {
	return editableDoc{
		ProductName: f.ProductName,
		ImgURL:      f.ImgURL,
		Category:    f.Category,
		OnSale:      f.OnSale,
		Price:       f.Price,
		ShortDesc:   f.ShortDesc,
		Description: f.Description,
	}
}

func (e editableDoc) fields() domain.ProductFields {
	return domain.ProductFields{
		ProductName: e.ProductName,
		ImgURL:      e.ImgURL,
		Category:    e.Category,
		OnSale:      e.OnSale,
		Price:       e.Price,
		ShortDesc:   e.ShortDesc,
		Description: e.Description,
	}
}

type productDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Editable  editableDoc        `bson:",inline"`
	AvgRating *float64           `bson:"avgRating,omitempty"`
	Show      *bool              `bson:"show,omitempty"`
	Reviews   []domain.Review    `bson:"reviews"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

// replaceSet is the $set document of Replace.
type replaceSet struct {
	Editable  editableDoc `bson:",inline"`
	UpdatedAt time.Time   `bson:"updatedAt"`
}

func newProductDoc(p *domain.Product) productDoc {
	reviews := p.Reviews
	if reviews == nil {
		reviews = []domain.Review{}
	}
	return productDoc{
		Editable:  newEditableDoc(p.Fields()),
		AvgRating: p.AvgRating,
		Show:      p.Show,
		Reviews:   reviews,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (d productDoc) toDomain() domain.Product {
	reviews := d.Reviews
	if reviews == nil {
		reviews = []domain.Review{}
	}
	p := domain.Product{
		ID:        d.ID.Hex(),
		AvgRating: d.AvgRating,
		Show:      d.Show,
		Reviews:   reviews,
		CreatedAt: d.CreatedAt,
	}
	p.Apply(d.Editable.fields(), d.UpdatedAt)
	return p
}

// ProductRepository implements repository.ProductRepository using MongoDB.
type ProductRepository struct {
	coll *mongo.Collection
}

var _ repository.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository creates a new MongoDB-backed product repository.
func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{coll: db.Collection(ProductsCollection)}
}

// Create inserts a new product and assigns its ObjectID.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "products.insertOne", "")
	defer func() { end(err) }()

	res, err := r.coll.InsertOne(ctx, newProductDoc(p))
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return fmt.Errorf("insert product: unexpected id type %T", res.InsertedID)
	}
	p.ID = id.Hex()
	return nil
}

// GetByID retrieves a product by its hex ObjectID. Malformed IDs are reported
// as not found.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.NotFound(repository.ResourceProduct, id)
	}

	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "products.findOne", "")
	var doc productDoc
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	end(spanErr(err))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound(repository.ResourceProduct, id)
		}
		return nil, fmt.Errorf("find product: %w", err)
	}

	p := doc.toDomain()
	return &p, nil
}

// List returns products matching the filter ordered by insertion.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) (_ []domain.Product, err error) {
	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "products.find", "")
	defer func() { end(err) }()

	query := bson.M{}
	if filter.Category != nil {
		query["category"] = *filter.Category
	}

	cur, err := r.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer cur.Close(ctx)

	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}

	products := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		products = append(products, d.toDomain())
	}
	return products, nil
}

// Replace sets every editable field in a single findAndModify and returns the
// updated document.
func (r *ProductRepository) Replace(ctx context.Context, id string, f domain.ProductFields, updatedAt time.Time) (*domain.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.NotFound(repository.ResourceProduct, id)
	}

	update := bson.M{"$set": replaceSet{Editable: newEditableDoc(f), UpdatedAt: updatedAt}}

	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "products.findOneAndUpdate", "")
	var doc productDoc
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	end(spanErr(err))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound(repository.ResourceProduct, id)
		}
		return nil, fmt.Errorf("replace product: %w", err)
	}

	p := doc.toDomain()
	return &p, nil
}

// Delete removes a product by its hex ObjectID.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperrors.NotFound(repository.ResourceProduct, id)
	}

	ctx, end := database.TraceQuery(ctx, database.SystemMongo, "products.deleteOne", "")
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	end(err)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	if res.DeletedCount == 0 {
		return apperrors.NotFound(repository.ResourceProduct, id)
	}
	return nil
}

// spanErr keeps not-found lookups from being recorded as failed spans.
func spanErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return err
}
