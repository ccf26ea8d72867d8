package domain

import (
	"time"
)

// Review is an opaque review record attached to a product. Its shape is
// owned by whoever writes it; the catalog stores and returns it unchanged.
type Review map[string]any

// Product represents a product in the catalog.
type Product struct {
	ID          string    `json:"_id"`
	ProductName string    `json:"productName"`
	ImgURL      string    `json:"imgUrl"`
	Category    string    `json:"category"`
	OnSale      bool      `json:"onSale"`
	Price       float64   `json:"price"`
	ShortDesc   string    `json:"shortDesc"`
	Description string    `json:"description"`
	AvgRating   *float64  `json:"avgRating,omitempty"`
	Show        *bool     `json:"show,omitempty"`
	Reviews     []Review  `json:"reviews"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProductFields holds the caller-editable subset of a product. Create and
// replace both take the full set; there is no partial update.
type ProductFields struct {
	ProductName string
	ImgURL      string
	Category    string
	OnSale      bool
	Price       float64
	ShortDesc   string
	Description string
}

// NewProduct builds an unsaved product from the editable fields.
func NewProduct(f ProductFields, now time.Time) *Product {
	p := &Product{
		Reviews:   []Review{},
		CreatedAt: now,
	}
	p.Apply(f, now)
	return p
}

// Apply overwrites every editable field. Rating, visibility and reviews are
// left as they are.
func (p *Product) Apply(f ProductFields, now time.Time) {
	p.ProductName = f.ProductName
	p.ImgURL = f.ImgURL
	p.Category = f.Category
	p.OnSale = f.OnSale
	p.Price = f.Price
	p.ShortDesc = f.ShortDesc
	p.Description = f.Description
	p.UpdatedAt = now
}

// Fields returns the editable subset of p.
func (p *Product) Fields() ProductFields {
	return ProductFields{
		ProductName: p.ProductName,
		ImgURL:      p.ImgURL,
		Category:    p.Category,
		OnSale:      p.OnSale,
		Price:       p.Price,
		ShortDesc:   p.ShortDesc,
		Description: p.Description,
	}
}
