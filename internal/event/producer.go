package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/storefront/internal/domain"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/logger"
)

// Topics for storefront domain events.
var (
	TopicProductCreated = pkgkafka.Topic("product", "created")
	TopicProductUpdated = pkgkafka.Topic("product", "updated")
	TopicProductDeleted = pkgkafka.Topic("product", "deleted")
	TopicCartUpdated    = pkgkafka.Topic("cart", "updated")
	TopicCartCleared    = pkgkafka.Topic("cart", "cleared")
)

// Aggregate types.
const (
	AggregateTypeProduct = "product"
	AggregateTypeCart    = "cart"
)

// Source identifies events written by this service.
const Source = "storefront"

// MetadataActor carries the X-User-ID of the request that caused the event.
const MetadataActor = "actor"

// ProductData is the payload for product.created and product.updated.
type ProductData struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Category    string  `json:"category"`
	OnSale      bool    `json:"on_sale"`
	Price       float64 `json:"price"`
}

// ProductDeletedData is the payload for product.deleted.
type ProductDeletedData struct {
	ProductID string `json:"product_id"`
}

// CartUpdatedData is the payload for cart.updated.
type CartUpdatedData struct {
	UserID      string         `json:"user_id"`
	Items       []CartItemData `json:"items"`
	ItemCount   int            `json:"item_count"`
	TotalAmount float64        `json:"total_amount"`
}

// CartItemData is one line within CartUpdatedData.
type CartItemData struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

// CartClearedData is the payload for cart.cleared.
type CartClearedData struct {
	UserID string `json:"user_id"`
}

// Producer publishes storefront domain events.
type Producer struct {
	publisher pkgkafka.Publisher
	logger    *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(publisher pkgkafka.Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		logger:    logger,
	}
}

// PublishProductCreated publishes a product.created event.
func (p *Producer) PublishProductCreated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductCreated, product.ID, AggregateTypeProduct, productData(product))
}

// PublishProductUpdated publishes a product.updated event.
func (p *Producer) PublishProductUpdated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductUpdated, product.ID, AggregateTypeProduct, productData(product))
}

// PublishProductDeleted publishes a product.deleted event.
func (p *Producer) PublishProductDeleted(ctx context.Context, productID string) error {
	return p.publish(ctx, TopicProductDeleted, productID, AggregateTypeProduct, ProductDeletedData{ProductID: productID})
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	items := make([]CartItemData, len(cart.Products))
	for i, item := range cart.Products {
		items[i] = CartItemData{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.Price,
			Quantity:    item.Quantity,
		}
	}

	data := CartUpdatedData{
		UserID:      cart.User,
		Items:       items,
		ItemCount:   cart.ItemCount(),
		TotalAmount: cart.TotalAmount(),
	}
	return p.publish(ctx, TopicCartUpdated, cart.User, AggregateTypeCart, data)
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, userID string) error {
	return p.publish(ctx, TopicCartCleared, userID, AggregateTypeCart, CartClearedData{UserID: userID})
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, Source, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}
	if actor := logger.UserIDFromContext(ctx); actor != "" {
		event.WithMetadata(MetadataActor, actor)
	}

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

func productData(p *domain.Product) ProductData {
	return ProductData{
		ProductID:   p.ID,
		ProductName: p.ProductName,
		Category:    p.Category,
		OnSale:      p.OnSale,
		Price:       p.Price,
	}
}
