package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mrbekdev/OPPBackend/model"
	orderrepo "github.com/mrbekdev/OPPBackend/repository/order"
	"github.com/mrbekdev/OPPBackend/service/billing"
)

// dto

type CreateItem struct {
	ProductID int64
	Quantity  int64
}

type Customer struct {
	FirstName string
	LastName  string
	Phone     string
}

// ReturnLine is one entry of a return batch. Multiplier, when set,
// overrides the elapsed-time multiplier (back-dated corrections).
type ReturnLine struct {
	OrderItemID int64
	Quantity    int64
	Multiplier  *float64
}

type ReturnedLine struct {
	OrderItemID int64   `json:"order_item_id"`
	ProductID   int64   `json:"product_id"`
	Quantity    int64   `json:"quantity"`
	Multiplier  float64 `json:"multiplier"`
	Amount      int64   `json:"amount"`
}

type ReturnResult struct {
	OrderID        int64             `json:"order_id"`
	Status         model.OrderStatus `json:"status"`
	Total          int64             `json:"total"`
	AdvanceUsed    int64             `json:"advance_used"`
	AdvanceApplied int64             `json:"advance_applied"`
	RentalDays     int64             `json:"rental_days"`
	RentalHours    int64             `json:"rental_hours"`
	Multiplier     float64           `json:"multiplier"`
	Items          []ReturnedLine    `json:"items"`
	ReturnedAt     *time.Time        `json:"returned_at,omitempty"`
}

// ClientStanding reports whether a phone belongs to a known client and
// surfaces the rating tag so the desk can warn before renting out.
type ClientStanding struct {
	Exists bool          `json:"exists"`
	Rated  bool          `json:"rated"`
	Rating string        `json:"rating,omitempty"`
	Client *model.Client `json:"client,omitempty"`
}

// stores (implemented by the repository packages)

type ClientStore interface {
	ByPhone(ctx context.Context, phone string) (*model.Client, error)
	ByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*model.Client, error)
	ByPhoneTx(ctx context.Context, tx *sql.Tx, phone string) (*model.Client, error)
	CreateTx(ctx context.Context, tx *sql.Tx, c *model.Client) error
	UpdateNameTx(ctx context.Context, tx *sql.Tx, id int64, firstName, lastName string) error
}

type ProductStore interface {
	ByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Product, error)
	DecrementCount(ctx context.Context, tx *sql.Tx, id, qty int64) (bool, error)
	IncrementCount(ctx context.Context, tx *sql.Tx, id, qty int64) error
}

type OrderStore interface {
	Get(ctx context.Context, id int64) (*model.OrderDetail, error)
	List(ctx context.Context) ([]model.OrderDetail, error)
	ListByClient(ctx context.Context, clientID int64) ([]model.OrderDetail, error)
	ListReturnRecords(ctx context.Context, orderID int64) ([]model.ReturnRecord, error)
	UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error

	InsertOrder(ctx context.Context, tx *sql.Tx, o *model.Order) error
	InsertItem(ctx context.Context, tx *sql.Tx, it *model.OrderItem) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Order, error)
	ItemsForUpdate(ctx context.Context, tx *sql.Tx, orderID int64) ([]model.OrderItem, error)
	AddReturned(ctx context.Context, tx *sql.Tx, itemID, qty int64) (bool, error)
	InsertReturnRecord(ctx context.Context, tx *sql.Tx, rec *model.ReturnRecord) error
	ItemTotals(ctx context.Context, tx *sql.Tx, orderID int64) (rented, returned int64, err error)
	SumReturnAmounts(ctx context.Context, tx *sql.Tx, orderID int64) (int64, error)
	UpdateTotals(ctx context.Context, tx *sql.Tx, u orderrepo.TotalsUpdate) error
	UpdateStartAt(ctx context.Context, tx *sql.Tx, id int64, startAt time.Time) error
	Delete(ctx context.Context, tx *sql.Tx, id int64) error
}

type Service interface {
	// Create: reserve stock for an existing client and persist the order
	// in PENDING with the creation-time estimate.
	Create(ctx context.Context, clientID int64, items []CreateItem, startAt time.Time, taxPercent float64, advance int64) (*model.OrderDetail, error)

	// CreateWithCustomer: same, resolving or creating the client by phone
	// inside the same transaction.
	CreateWithCustomer(ctx context.Context, cust Customer, items []CreateItem, startAt time.Time, taxPercent float64, advance int64) (*model.OrderDetail, error)

	// ReturnItems: all-or-nothing return batch; releases stock, appends
	// return records, recomputes totals and status.
	ReturnItems(ctx context.Context, orderID int64, lines []ReturnLine, now time.Time) (*ReturnResult, error)

	// Remove: release outstanding units and delete the order.
	Remove(ctx context.Context, orderID int64) error

	Get(ctx context.Context, id int64) (*model.OrderDetail, error)
	List(ctx context.Context) ([]model.OrderDetail, error)
	ListByClient(ctx context.Context, clientID int64) ([]model.OrderDetail, error)
	ListReturnRecords(ctx context.Context, orderID int64) ([]model.ReturnRecord, error)
	UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error
	AdjustStartAt(ctx context.Context, id int64, startAt time.Time) error
	CheckClientStanding(ctx context.Context, phone string) (*ClientStanding, error)
}

// ----- Service implementation -----

type service struct {
	db     *sql.DB
	os     OrderStore
	ps     ProductStore
	cs     ClientStore
	policy billing.Policy
}

func New(db *sql.DB, os OrderStore, ps ProductStore, cs ClientStore, policy billing.Policy) Service {
	return &service{db: db, os: os, ps: ps, cs: cs, policy: policy}
}

func validateCreate(items []CreateItem, startAt time.Time, taxPercent float64, advance int64) error {
	if len(items) == 0 {
		return makeErr(ErrInvalidInput, "items must not be empty")
	}
	for i, it := range items {
		if it.ProductID <= 0 {
			return makeErr(ErrInvalidInput, fmt.Sprintf("items[%d].product_id must be positive", i))
		}
		if it.Quantity <= 0 {
			return makeErr(ErrInvalidInput, fmt.Sprintf("items[%d].quantity must be positive", i))
		}
	}
	if startAt.IsZero() {
		return makeErr(ErrInvalidInput, "start_at is required")
	}
	if taxPercent < 0 {
		return makeErr(ErrInvalidInput, "tax_percent must not be negative")
	}
	if advance < 0 {
		return makeErr(ErrInvalidInput, "advance_payment must not be negative")
	}
	return nil
}

func (s *service) Create(ctx context.Context, clientID int64, items []CreateItem, startAt time.Time, taxPercent float64, advance int64) (*model.OrderDetail, error) {
	if err := validateCreate(items, startAt, taxPercent, advance); err != nil {
		return nil, err
	}
	if clientID <= 0 {
		return nil, makeErr(ErrInvalidInput, "client_id must be positive")
	}

	var orderID int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		client, err := s.cs.ByIDTx(ctx, tx, clientID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return makeErr(ErrNotFound, fmt.Sprintf("client %d not found", clientID))
			}
			return err
		}
		orderID, err = s.createLocked(ctx, tx, client.ID, items, startAt, taxPercent, advance)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.os.Get(ctx, orderID)
}

func (s *service) CreateWithCustomer(ctx context.Context, cust Customer, items []CreateItem, startAt time.Time, taxPercent float64, advance int64) (*model.OrderDetail, error) {
	if err := validateCreate(items, startAt, taxPercent, advance); err != nil {
		return nil, err
	}
	if cust.Phone == "" {
		return nil, makeErr(ErrInvalidInput, "customer.phone is required")
	}

	var orderID int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		client, _, err := s.resolveOrCreateClient(ctx, tx, cust)
		if err != nil {
			return err
		}
		orderID, err = s.createLocked(ctx, tx, client.ID, items, startAt, taxPercent, advance)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.os.Get(ctx, orderID)
}

// resolveOrCreateClient looks the client up by phone; a hit updates the
// name fields (last writer wins), a miss creates the client. Runs within
// the order's transaction so the upsert commits or rolls back with it.
func (s *service) resolveOrCreateClient(ctx context.Context, tx *sql.Tx, cust Customer) (*model.Client, bool, error) {
	existing, err := s.cs.ByPhoneTx(ctx, tx, cust.Phone)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if cust.FirstName != existing.FirstName || cust.LastName != existing.LastName {
			if err := s.cs.UpdateNameTx(ctx, tx, existing.ID, cust.FirstName, cust.LastName); err != nil {
				return nil, false, err
			}
			existing.FirstName = cust.FirstName
			existing.LastName = cust.LastName
		}
		return existing, false, nil
	}

	created := &model.Client{
		FirstName: cust.FirstName,
		LastName:  cust.LastName,
		Phone:     cust.Phone,
	}
	if err := s.cs.CreateTx(ctx, tx, created); err != nil {
		if isUniqueViolation(err) {
			return nil, false, makeErr(ErrConflict, "client phone already registered")
		}
		return nil, false, err
	}
	return created, true, nil
}

// createLocked reserves stock and writes the order rows. Caller holds
// the transaction; any error unwinds every reservation with it.
func (s *service) createLocked(ctx context.Context, tx *sql.Tx, clientID int64, items []CreateItem, startAt time.Time, taxPercent float64, advance int64) (int64, error) {
	lines := make([]billing.Line, 0, len(items))
	for _, it := range items {
		p, err := s.ps.ByIDForUpdate(ctx, tx, it.ProductID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, makeErr(ErrNotFound, fmt.Sprintf("product %d not found", it.ProductID))
			}
			return 0, err
		}
		ok, err := s.ps.DecrementCount(ctx, tx, it.ProductID, it.Quantity)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, makeErr(ErrNoStock, fmt.Sprintf("product %q has %d units, %d requested", p.Name, p.Count, it.Quantity))
		}
		lines = append(lines, billing.Line{Quantity: it.Quantity, UnitPrice: p.Price})
	}

	subtotal, tax, total := billing.InitialCharge(lines, taxPercent)
	o := &model.Order{
		ClientID:       clientID,
		Status:         model.OrderPending,
		StartAt:        startAt,
		TaxPercent:     taxPercent,
		Subtotal:       subtotal,
		Tax:            tax,
		Total:          total,
		AdvancePayment: advance,
	}
	if err := s.os.InsertOrder(ctx, tx, o); err != nil {
		return 0, err
	}
	for _, it := range items {
		item := &model.OrderItem{OrderID: o.ID, ProductID: it.ProductID, Quantity: it.Quantity}
		if err := s.os.InsertItem(ctx, tx, item); err != nil {
			return 0, err
		}
	}
	return o.ID, nil
}

func (s *service) ReturnItems(ctx context.Context, orderID int64, lines []ReturnLine, now time.Time) (*ReturnResult, error) {
	if len(lines) == 0 {
		return nil, makeErr(ErrInvalidInput, "items must not be empty")
	}
	for i, l := range lines {
		if l.OrderItemID <= 0 {
			return nil, makeErr(ErrInvalidInput, fmt.Sprintf("items[%d].order_item_id must be positive", i))
		}
		if l.Quantity <= 0 {
			return nil, makeErr(ErrInvalidInput, fmt.Sprintf("items[%d].return_quantity must be positive", i))
		}
		if l.Multiplier != nil && *l.Multiplier <= 0 {
			return nil, makeErr(ErrInvalidInput, fmt.Sprintf("items[%d].multiplier must be positive", i))
		}
	}

	var res *ReturnResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		o, err := s.os.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return makeErr(ErrNotFound, fmt.Sprintf("order %d not found", orderID))
			}
			return err
		}

		items, err := s.os.ItemsForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		byID := make(map[int64]*model.OrderItem, len(items))
		for i := range items {
			byID[items[i].ID] = &items[i]
		}

		// Validate the whole batch before touching anything.
		for _, l := range lines {
			it, ok := byID[l.OrderItemID]
			if !ok {
				return makeErr(ErrNotFound, fmt.Sprintf("order item %d not found in order %d", l.OrderItemID, orderID))
			}
			if remaining := it.Quantity - it.Returned; l.Quantity > remaining {
				return makeErr(ErrOverReturn, fmt.Sprintf("order item %d has %d units left to return, %d requested", l.OrderItemID, remaining, l.Quantity))
			}
		}

		dur := billing.ElapsedMultiplier(o.StartAt, now, s.policy)

		returned := make([]ReturnedLine, 0, len(lines))
		for _, l := range lines {
			it := byID[l.OrderItemID]
			mult := dur.Multiplier
			if l.Multiplier != nil {
				mult = *l.Multiplier
			}
			amount := billing.ReturnAmount(it.ProductPrice, l.Quantity, mult)

			ok, err := s.os.AddReturned(ctx, tx, it.ID, l.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return makeErr(ErrOverReturn, fmt.Sprintf("order item %d no longer has %d units to return", it.ID, l.Quantity))
			}
			if err := s.ps.IncrementCount(ctx, tx, it.ProductID, l.Quantity); err != nil {
				return err
			}
			if err := s.os.InsertReturnRecord(ctx, tx, &model.ReturnRecord{
				OrderID:     orderID,
				OrderItemID: it.ID,
				Quantity:    l.Quantity,
				RentalDays:  dur.Days,
				RentalHours: dur.Hours,
				Multiplier:  mult,
				Amount:      amount,
			}); err != nil {
				return err
			}
			returned = append(returned, ReturnedLine{
				OrderItemID: it.ID,
				ProductID:   it.ProductID,
				Quantity:    l.Quantity,
				Multiplier:  mult,
				Amount:      amount,
			})
		}

		// Totals come back from the store, not from in-memory math, so
		// the stored order is always reconstructible from its records.
		rented, returnedTotal, err := s.os.ItemTotals(ctx, tx, orderID)
		if err != nil {
			return err
		}
		gross, err := s.os.SumReturnAmounts(ctx, tx, orderID)
		if err != nil {
			return err
		}

		applied := billing.ApplyAdvance(o.AdvancePayment, o.AdvanceUsed, gross-o.AdvanceUsed)
		used := o.AdvanceUsed + applied

		status := statusFor(rented, returnedTotal)
		var returnedAt *time.Time
		if status == model.OrderReturned && o.ReturnedAt == nil {
			t := now
			returnedAt = &t
		} else {
			returnedAt = o.ReturnedAt
		}

		if err := s.os.UpdateTotals(ctx, tx, orderrepo.TotalsUpdate{
			OrderID:           orderID,
			Status:            status,
			Total:             gross - used,
			AdvanceUsed:       used,
			RentalDays:        dur.Days,
			RentalHours:       dur.Hours,
			BillingMultiplier: dur.Multiplier,
			ReturnedAt:        returnedAt,
		}); err != nil {
			return err
		}

		res = &ReturnResult{
			OrderID:        orderID,
			Status:         status,
			Total:          gross - used,
			AdvanceUsed:    used,
			AdvanceApplied: applied,
			RentalDays:     dur.Days,
			RentalHours:    dur.Hours,
			Multiplier:     dur.Multiplier,
			Items:          returned,
			ReturnedAt:     returnedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) Remove(ctx context.Context, orderID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.os.GetForUpdate(ctx, tx, orderID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return makeErr(ErrNotFound, fmt.Sprintf("order %d not found", orderID))
			}
			return err
		}
		items, err := s.os.ItemsForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		for _, it := range items {
			if outstanding := it.Quantity - it.Returned; outstanding > 0 {
				if err := s.ps.IncrementCount(ctx, tx, it.ProductID, outstanding); err != nil {
					return err
				}
			}
		}
		return s.os.Delete(ctx, tx, orderID)
	})
}

func (s *service) Get(ctx context.Context, id int64) (*model.OrderDetail, error) {
	d, err := s.os.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, makeErr(ErrNotFound, fmt.Sprintf("order %d not found", id))
	}
	return d, err
}

func (s *service) List(ctx context.Context) ([]model.OrderDetail, error) {
	return s.os.List(ctx)
}

func (s *service) ListByClient(ctx context.Context, clientID int64) ([]model.OrderDetail, error) {
	return s.os.ListByClient(ctx, clientID)
}

func (s *service) ListReturnRecords(ctx context.Context, orderID int64) ([]model.ReturnRecord, error) {
	if _, err := s.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.os.ListReturnRecords(ctx, orderID)
}

func (s *service) UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	if !model.ValidOrderStatus(status) {
		return makeErr(ErrInvalidInput, "unknown status "+string(status))
	}
	err := s.os.UpdateStatus(ctx, id, status)
	if errors.Is(err, sql.ErrNoRows) {
		return makeErr(ErrNotFound, fmt.Sprintf("order %d not found", id))
	}
	return err
}

func (s *service) AdjustStartAt(ctx context.Context, id int64, startAt time.Time) error {
	if startAt.IsZero() {
		return makeErr(ErrInvalidInput, "start_at is required")
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		o, err := s.os.GetForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return makeErr(ErrNotFound, fmt.Sprintf("order %d not found", id))
			}
			return err
		}
		if o.Status == model.OrderReturned {
			return makeErr(ErrConflict, "order already fully returned")
		}
		return s.os.UpdateStartAt(ctx, tx, id, startAt)
	})
}

func (s *service) CheckClientStanding(ctx context.Context, phone string) (*ClientStanding, error) {
	if phone == "" {
		return nil, makeErr(ErrInvalidInput, "phone is required")
	}
	c, err := s.cs.ByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return &ClientStanding{Exists: false}, nil
	}
	return &ClientStanding{
		Exists: true,
		Rated:  c.Rating != "",
		Rating: c.Rating,
		Client: c,
	}, nil
}

// helpers

func (s *service) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func statusFor(rented, returned int64) model.OrderStatus {
	switch {
	case returned == 0:
		return model.OrderPending
	case returned < rented:
		return model.OrderPartiallyReturned
	default:
		return model.OrderReturned
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
