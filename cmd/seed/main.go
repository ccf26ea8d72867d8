// Command seed populates a running storefront with generated catalog data
// through its public HTTP API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/utafrali/storefront/pkg/logger"
)

// --------------------------------------------------------------------------
// Catalog data
// --------------------------------------------------------------------------

type categoryDef struct {
	name  string
	nouns []string
}

var categories = []categoryDef{
	{name: "electronics", nouns: []string{"Headphones", "Speaker", "Charger", "Keyboard", "Webcam"}},
	{name: "clothing", nouns: []string{"T-Shirt", "Hoodie", "Jacket", "Sneakers", "Scarf"}},
	{name: "home", nouns: []string{"Lamp", "Mug", "Blanket", "Vase", "Cutting Board"}},
	{name: "sports", nouns: []string{"Yoga Mat", "Water Bottle", "Jump Rope", "Backpack"}},
	{name: "books", nouns: []string{"Novel", "Cookbook", "Field Guide", "Atlas"}},
}

var adjectives = []string{"Classic", "Compact", "Deluxe", "Eco", "Pro", "Vintage", "Wireless", "Everyday"}

// productPayload mirrors the POST /products body.
type productPayload struct {
	ProductName string  `json:"productName"`
	ImgURL      string  `json:"imgUrl"`
	Category    string  `json:"category"`
	OnSale      bool    `json:"onSale"`
	Price       float64 `json:"price"`
	ShortDesc   string  `json:"shortDesc"`
	Description string  `json:"description"`
}

func generateProducts(rng *rand.Rand, n int) []productPayload {
	out := make([]productPayload, 0, n)
	for i := range n {
		cat := categories[rng.IntN(len(categories))]
		noun := cat.nouns[rng.IntN(len(cat.nouns))]
		name := fmt.Sprintf("%s %s", adjectives[rng.IntN(len(adjectives))], noun)
		// Two decimal places.
		price := float64(499+rng.IntN(49500)) / 100

		out = append(out, productPayload{
			ProductName: name,
			ImgURL:      fmt.Sprintf("https://picsum.photos/seed/storefront-%d/600/600", i),
			Category:    cat.name,
			OnSale:      rng.IntN(4) == 0,
			Price:       price,
			ShortDesc:   fmt.Sprintf("%s for every day", noun),
			Description: fmt.Sprintf("The %s is part of our %s range.", name, cat.name),
		})
	}
	return out
}

// --------------------------------------------------------------------------
// HTTP
// --------------------------------------------------------------------------

func postProduct(ctx context.Context, client *http.Client, baseURL string, p productPayload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/products", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}
	return nil
}

// seed posts every product with at most concurrency requests in flight and
// returns how many were created. The first failure cancels the rest.
func seed(ctx context.Context, client *http.Client, baseURL string, products []productPayload, concurrency int) (int, error) {
	var created atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, p := range products {
		g.Go(func() error {
			if err := postProduct(ctx, client, baseURL, p); err != nil {
				return fmt.Errorf("create %q: %w", p.ProductName, err)
			}
			created.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(created.Load()), err
}

// checkFlags rejects counts that would make generateProducts panic or leave
// seed with no workers.
func checkFlags(count, concurrency int) error {
	if count < 1 {
		return fmt.Errorf("-count must be at least 1, got %d", count)
	}
	if concurrency < 1 {
		return fmt.Errorf("-concurrency must be at least 1, got %d", concurrency)
	}
	return nil
}

func main() {
	baseURL := flag.String("url", "http://localhost:3000", "storefront base URL")
	count := flag.Int("count", 100, "number of products to create")
	concurrency := flag.Int("concurrency", 8, "parallel requests")
	randSeed := flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
	flag.Parse()

	log := logger.New("storefront-seed", os.Getenv("LOG_LEVEL"))
	if err := checkFlags(*count, *concurrency); err != nil {
		log.Error("invalid flags", slog.String("error", err.Error()))
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	products := generateProducts(rand.New(rand.NewPCG(*randSeed, *randSeed)), *count)
	client := &http.Client{Timeout: 10 * time.Second}

	start := time.Now()
	created, err := seed(ctx, client, *baseURL, products, *concurrency)
	if err != nil {
		log.Error("seeding failed",
			slog.Int("created", created),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	log.Info("seeding complete",
		slog.Int("created", created),
		slog.Duration("elapsed", time.Since(start)),
	)
}
