package order

type CreateItemReq struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
}

type CreateOrderReq struct {
	ClientID       int64           `json:"client_id" validate:"required,gt=0"`
	Items          []CreateItemReq `json:"items" validate:"required,min=1,dive"`
	StartAt        string          `json:"start_at" validate:"required"`
	TaxPercent     float64         `json:"tax_percent" validate:"gte=0"`
	AdvancePayment int64           `json:"advance_payment" validate:"gte=0"`
}

type CustomerReq struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
}

type CreateWithCustomerReq struct {
	Customer       CustomerReq     `json:"customer" validate:"required"`
	Items          []CreateItemReq `json:"items" validate:"required,min=1,dive"`
	StartAt        string          `json:"start_at" validate:"required"`
	TaxPercent     float64         `json:"tax_percent" validate:"gte=0"`
	AdvancePayment int64           `json:"advance_payment" validate:"gte=0"`
}

type ReturnItemReq struct {
	OrderItemID    int64    `json:"order_item_id" validate:"required,gt=0"`
	ReturnQuantity int64    `json:"return_quantity" validate:"required,gt=0"`
	Multiplier     *float64 `json:"multiplier" validate:"omitempty,gt=0"`
}

type ReturnItemsReq struct {
	Items []ReturnItemReq `json:"items" validate:"required,min=1,dive"`
}

type UpdateStatusReq struct {
	Status string `json:"status" validate:"required,oneof=PENDING PARTIALLY_RETURNED RETURNED"`
}

type AdjustStartAtReq struct {
	StartAt string `json:"start_at" validate:"required"`
}
