package domain

import (
	"errors"
	"math"
	"time"
)

// DefaultQuantity is used when an add or remove request omits the quantity.
const DefaultQuantity = 1

// MaxQuantity caps the units one line item may hold.
const MaxQuantity = math.MaxInt32

// ErrQuantityLimit is returned when a merge would push a line past MaxQuantity.
var ErrQuantityLimit = errors.New("line item quantity limit exceeded")

// Cart is the single per-user document aggregating line items.
type Cart struct {
	ID        string     `json:"_id,omitempty"`
	User      string     `json:"user"`
	Products  []LineItem `json:"products"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// LineItem is one product's snapshot plus the quantity held in a cart. The
// snapshot is taken when the product is first added and is not refreshed by
// later catalog edits.
type LineItem struct {
	ProductID   string   `json:"productId"`
	ProductName string   `json:"productName"`
	ImgURL      string   `json:"imgUrl"`
	Category    string   `json:"category"`
	OnSale      bool     `json:"onSale"`
	Price       float64  `json:"price"`
	ShortDesc   string   `json:"shortDesc"`
	Description string   `json:"description"`
	AvgRating   *float64 `json:"avgRating,omitempty"`
	Show        *bool    `json:"show,omitempty"`
	Reviews     []Review `json:"reviews"`
	Quantity    int      `json:"quantity"`
}

// NewCart returns an empty cart for the user.
func NewCart(userID string) *Cart {
	return &Cart{User: userID, Products: []LineItem{}}
}

// NewLineItem snapshots the display fields of p.
func NewLineItem(p *Product, quantity int) LineItem {
	reviews := p.Reviews
	if reviews == nil {
		reviews = []Review{}
	}
	return LineItem{
		ProductID:   p.ID,
		ProductName: p.ProductName,
		ImgURL:      p.ImgURL,
		Category:    p.Category,
		OnSale:      p.OnSale,
		Price:       p.Price,
		ShortDesc:   p.ShortDesc,
		Description: p.Description,
		AvgRating:   p.AvgRating,
		Show:        p.Show,
		Reviews:     reviews,
		Quantity:    quantity,
	}
}

// FindItemIndex returns the index of the line item for productID, or -1.
func (c *Cart) FindItemIndex(productID string) int {
	for i := range c.Products {
		if c.Products[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// AddItem merges item into the cart. An existing line for the same product
// has its quantity incremented and keeps its original snapshot; otherwise the
// item is appended. The cart is left untouched and ErrQuantityLimit returned
// when the resulting quantity would exceed MaxQuantity.
func (c *Cart) AddItem(item LineItem) error {
	idx := c.FindItemIndex(item.ProductID)
	var have int
	if idx >= 0 {
		have = c.Products[idx].Quantity
	}
	if !CanAdd(have, item.Quantity) {
		return ErrQuantityLimit
	}
	if idx >= 0 {
		c.Products[idx].Quantity += item.Quantity
		return nil
	}
	c.Products = append(c.Products, item)
	return nil
}

// CanAdd reports whether adding quantity units to a line holding have units
// stays within MaxQuantity.
func CanAdd(have, quantity int) bool {
	return quantity <= MaxQuantity-have
}

// RemoveQuantity subtracts quantity from the line for productID and drops the
// line once it reaches zero or below. It reports false when the cart holds no
// such line.
func (c *Cart) RemoveQuantity(productID string, quantity int) bool {
	idx := c.FindItemIndex(productID)
	if idx < 0 {
		return false
	}
	remaining := c.Products[idx].Quantity - quantity
	if remaining <= 0 {
		c.Products = append(c.Products[:idx], c.Products[idx+1:]...)
		return true
	}
	c.Products[idx].Quantity = remaining
	return true
}

// ItemCount returns the total number of units in the cart.
func (c *Cart) ItemCount() int {
	var count int
	for _, item := range c.Products {
		count += item.Quantity
	}
	return count
}

// TotalAmount sums snapshot price times quantity over every line.
func (c *Cart) TotalAmount() float64 {
	var total float64
	for _, item := range c.Products {
		total += item.Price * float64(item.Quantity)
	}
	return total
}
