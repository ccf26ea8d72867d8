package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/event"
	"github.com/utafrali/storefront/internal/repository"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httputil"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
)

// =============================================================================
// Mock repositories
// =============================================================================

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) Create(ctx context.Context, p *domain.Product) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) List(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Product), args.Error(1)
}

func (m *mockProductRepo) Replace(ctx context.Context, id string, fields domain.ProductFields, updatedAt time.Time) (*domain.Product, error) {
	args := m.Called(ctx, id, fields, updatedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockCartRepo struct {
	mock.Mock
}

func (m *mockCartRepo) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepo) AddItem(ctx context.Context, userID string, item domain.LineItem) (*domain.Cart, error) {
	args := m.Called(ctx, userID, item)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepo) RemoveItem(ctx context.Context, userID, productID string, quantity int) (*domain.Cart, error) {
	args := m.Called(ctx, userID, productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepo) Delete(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// =============================================================================
// Test helpers
// =============================================================================

type testEnv struct {
	products *mockProductRepo
	carts    *mockCartRepo
	registry *prometheus.Registry
	router   http.Handler
}

func newTestEnv(t *testing.T, opts ...func(*RouterConfig)) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	producer := event.NewProducer(pkgkafka.NoopPublisher{}, logger)

	env := &testEnv{
		products: new(mockProductRepo),
		carts:    new(mockCartRepo),
		registry: prometheus.NewRegistry(),
	}

	cfg := RouterConfig{
		Products: service.NewProductService(env.products, producer, logger),
		Carts:    service.NewCartService(env.carts, env.products, producer, logger),
		Health:   health.NewHandler(),
		Metrics:  middleware.NewHTTPMetrics("storefront", env.registry),
		Gatherer: env.registry,
		Logger:   logger,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	env.router = NewRouter(cfg)
	return env
}

func (e *testEnv) do(method, target string, body any) *httptest.ResponseRecorder {
	var raw string
	switch b := body.(type) {
	case nil:
	case string:
		raw = b
	default:
		encoded, _ := json.Marshal(b)
		raw = string(encoded)
	}

	req := newRequest(method, target, raw)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return serve(e, req)
}

func newRequest(method, target, body string) *http.Request {
	if body == "" {
		return httptest.NewRequest(method, target, nil)
	}
	return httptest.NewRequest(method, target, strings.NewReader(body))
}

func serve(e *testEnv, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *httputil.ErrorResponse {
	t.Helper()
	var body httputil.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotNil(t, body.Error)
	return body.Error
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func sampleProduct(id string) *domain.Product {
	p := domain.NewProduct(domain.ProductFields{
		ProductName: "Desk Lamp",
		ImgURL:      "https://cdn.example.com/lamp.png",
		Category:    "lighting",
		OnSale:      false,
		Price:       24.5,
		ShortDesc:   "LED lamp",
		Description: "Adjustable LED desk lamp",
	}, time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC))
	p.ID = id
	return p
}

func validProductBody() map[string]any {
	return map[string]any{
		"productName": "Desk Lamp",
		"imgUrl":      "https://cdn.example.com/lamp.png",
		"category":    "lighting",
		"onSale":      false,
		"price":       24.5,
		"shortDesc":   "LED lamp",
		"description": "Adjustable LED desk lamp",
	}
}
