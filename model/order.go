package model

import "time"

type OrderStatus string

const (
	OrderPending           OrderStatus = "PENDING"
	OrderPartiallyReturned OrderStatus = "PARTIALLY_RETURNED"
	OrderReturned          OrderStatus = "RETURNED"
)

// ValidOrderStatus reports whether s is one of the known statuses.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderPending, OrderPartiallyReturned, OrderReturned:
		return true
	}
	return false
}

// Order is a rental order. Subtotal/Tax/Total hold the creation-time
// estimate until the first return, after which Total is recomputed from
// the return records (gross returned amount minus advance used).
type Order struct {
	ID                int64       `json:"id"`
	ClientID          int64       `json:"client_id"`
	Status            OrderStatus `json:"status"`
	StartAt           time.Time   `json:"start_at"`
	TaxPercent        float64     `json:"tax_percent"`
	Subtotal          int64       `json:"subtotal"`
	Tax               int64       `json:"tax"`
	Total             int64       `json:"total"`
	AdvancePayment    int64       `json:"advance_payment"`
	AdvanceUsed       int64       `json:"advance_used"`
	RentalDays        int64       `json:"rental_days"`
	RentalHours       int64       `json:"rental_hours"`
	BillingMultiplier float64     `json:"billing_multiplier"`
	ReturnedAt        *time.Time  `json:"returned_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// OrderItem is one rented line. Returned only ever grows, bounded by
// Quantity.
type OrderItem struct {
	ID        int64 `json:"id"`
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
	Returned  int64 `json:"returned"`

	ProductName  string `json:"product_name,omitempty"`
	ProductSize  string `json:"product_size,omitempty"`
	ProductPrice int64  `json:"product_price,omitempty"`
}

// ReturnRecord is one immutable audit row per (order item, return
// event). Order totals are recomputed from these rows, never mutated
// incrementally.
type ReturnRecord struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"order_id"`
	OrderItemID int64     `json:"order_item_id"`
	Quantity    int64     `json:"quantity"`
	RentalDays  int64     `json:"rental_days"`
	RentalHours int64     `json:"rental_hours"`
	Multiplier  float64   `json:"multiplier"`
	Amount      int64     `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

// OrderDetail is an order with its client and line items attached.
type OrderDetail struct {
	Order
	Client *Client     `json:"client,omitempty"`
	Items  []OrderItem `json:"items"`
}
