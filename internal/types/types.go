// Package types defines the shared domain types for the scooply marketplace.
// Persistence lives in internal/store; services and handlers exchange these.
package types

import "time"

// Category values match the vocabulary the image analyzer is prompted with.
const (
	CategoryIceCream      = "ice cream"
	CategorySorbet        = "sorbet"
	CategoryFrozenDessert = "frozen dessert"
	CategoryGelato        = "gelato"
	CategoryPopsicle      = "popsicle"
	CategoryOther         = "other"
)

// Categories lists every valid product category.
var Categories = []string{
	CategoryIceCream,
	CategorySorbet,
	CategoryFrozenDessert,
	CategoryGelato,
	CategoryPopsicle,
	CategoryOther,
}

// ValidCategory reports whether c is a known product category.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Product is a sellable item owned by a merchant.
// Prices are integer rupees; the marketplace does not deal in paise.
type Product struct {
	ID            string    `json:"id"`
	MerchantID    string    `json:"merchant_id"`
	Title         string    `json:"title"`
	Category      string    `json:"category"`
	PriceINR      int64     `json:"price_inr"`
	Description   string    `json:"description"`
	AIDescription string    `json:"ai_description,omitempty"`
	StockQty      int64     `json:"stock_qty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProductImage holds the image URLs for a product plus any AI analysis
// persisted against the row (mirrors the product_images table).
type ProductImage struct {
	ID              string    `json:"id"`
	ProductID       string    `json:"product_id"`
	ThumbnailURL    string    `json:"thumbnail_url,omitempty"`
	PrimaryImageURL string    `json:"primary_image_url,omitempty"`
	ImageURLs       []string  `json:"image_urls,omitempty"`
	AIMetadata      string    `json:"ai_metadata,omitempty"` // raw JSON from the analyzer
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Cart owner kinds. A guest cart is keyed by a client-held token; a user
// cart is keyed by the authenticated user ID.
const (
	OwnerGuest = "guest"
	OwnerUser  = "user"
)

// Cart is a shopping cart in either guest or user mode.
type Cart struct {
	ID        string     `json:"id"`
	OwnerKey  string     `json:"owner_key"`
	OwnerKind string     `json:"owner_kind"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TotalINR sums the line totals of the cart.
func (c *Cart) TotalINR() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.UnitPriceINR * it.Quantity
	}
	return total
}

// CartItem is a single product line in a cart. UnitPriceINR is snapshotted
// when the item is added so a later price change does not silently reprice
// someone's cart.
type CartItem struct {
	ProductID    string `json:"product_id"`
	Title        string `json:"title"`
	Quantity     int64  `json:"quantity"`
	UnitPriceINR int64  `json:"unit_price_inr"`
}

// Order statuses. Transitions: placed -> confirmed -> fulfilled, and
// cancelled is reachable from placed or confirmed only.
const (
	OrderPlaced    = "placed"
	OrderConfirmed = "confirmed"
	OrderFulfilled = "fulfilled"
	OrderCancelled = "cancelled"
)

// Order is a placed checkout, snapshotted from a user cart.
type Order struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Status    string      `json:"status"`
	TotalINR  int64       `json:"total_inr"`
	Lines     []OrderLine `json:"lines"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// OrderLine snapshots title and unit price at placement time.
type OrderLine struct {
	ProductID    string `json:"product_id"`
	MerchantID   string `json:"merchant_id"`
	Title        string `json:"title"`
	Quantity     int64  `json:"quantity"`
	UnitPriceINR int64  `json:"unit_price_inr"`
	LineTotalINR int64  `json:"line_total_inr"`
}

// Profile is a customer's delivery profile.
type Profile struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Phone       string    `json:"phone"`
	AddressLine string    `json:"address_line"`
	City        string    `json:"city"`
	Pincode     string    `json:"pincode"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Merchant is a seller profile, keyed by the platform user ID.
type Merchant struct {
	UserID      string    `json:"user_id"`
	ShopName    string    `json:"shop_name"`
	Description string    `json:"description"`
	City        string    `json:"city"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Identity roles resolved by the auth verifier.
const (
	RoleCustomer = "customer"
	RoleMerchant = "merchant"
	RoleService  = "service"
)

// Identity is the resolved caller of an authenticated request.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// Analysis is the structured payload the image analyzer extracts from a
// product photo.
type Analysis struct {
	Title       string `json:"title"`
	Category    string `json:"category"`
	PriceINR    int64  `json:"price_inr"`
	Description string `json:"description"`
}

// DashboardStats aggregates a merchant's storefront health.
type DashboardStats struct {
	ProductCount    int64 `json:"product_count"`
	ActiveCount     int64 `json:"active_count"`
	LowStockCount   int64 `json:"low_stock_count"`
	OrderCount      int64 `json:"order_count"`
	GrossRevenueINR int64 `json:"gross_revenue_inr"`
}
