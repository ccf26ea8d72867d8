package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
)

// --- Mock Product Repository ---

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) Create(ctx context.Context, p *domain.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *mockProductRepository) Replace(ctx context.Context, id string, fields domain.ProductFields, updatedAt time.Time) (*domain.Product, error) {
	args := m.Called(ctx, id, fields, updatedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock Cart Repository ---

type mockCartRepository struct {
	mock.Mock
}

func (m *mockCartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepository) AddItem(ctx context.Context, userID string, item domain.LineItem) (*domain.Cart, error) {
	args := m.Called(ctx, userID, item)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepository) RemoveItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	args := m.Called(ctx, userID, productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepository) Delete(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// --- Mock Publisher ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, e *pkgkafka.Event) error {
	args := m.Called(ctx, topic, e)
	return args.Error(0)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProducer(pub pkgkafka.Publisher) *event.Producer {
	return event.NewProducer(pub, newTestLogger())
}

var fixedNow = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

func sampleFields() domain.ProductFields {
	return domain.ProductFields{
		ProductName: "Desk Lamp",
		ImgURL:      "https://cdn.example.com/lamp.png",
		Category:    "lighting",
		OnSale:      true,
		Price:       24.5,
		ShortDesc:   "LED lamp",
		Description: "Adjustable LED desk lamp",
	}
}

func sampleProduct(id string) *domain.Product {
	p := domain.NewProduct(sampleFields(), fixedNow)
	p.ID = id
	return p
}
