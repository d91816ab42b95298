package order

import (
	"context"
	"database/sql"
	"time"

	"github.com/mrbekdev/OPPBackend/model"
)

type Repo interface {
	// Reads.
	Get(ctx context.Context, id int64) (*model.OrderDetail, error)
	List(ctx context.Context) ([]model.OrderDetail, error)
	ListByClient(ctx context.Context, clientID int64) ([]model.OrderDetail, error)
	ListReturnRecords(ctx context.Context, orderID int64) ([]model.ReturnRecord, error)
	UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error

	// Tx-scoped mutations driven by the order service.
	InsertOrder(ctx context.Context, tx *sql.Tx, o *model.Order) error
	InsertItem(ctx context.Context, tx *sql.Tx, it *model.OrderItem) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Order, error)
	ItemsForUpdate(ctx context.Context, tx *sql.Tx, orderID int64) ([]model.OrderItem, error)
	AddReturned(ctx context.Context, tx *sql.Tx, itemID, qty int64) (bool, error)
	InsertReturnRecord(ctx context.Context, tx *sql.Tx, rec *model.ReturnRecord) error
	ItemTotals(ctx context.Context, tx *sql.Tx, orderID int64) (rented, returned int64, err error)
	SumReturnAmounts(ctx context.Context, tx *sql.Tx, orderID int64) (int64, error)
	UpdateTotals(ctx context.Context, tx *sql.Tx, u TotalsUpdate) error
	UpdateStartAt(ctx context.Context, tx *sql.Tx, id int64, startAt time.Time) error
	Delete(ctx context.Context, tx *sql.Tx, id int64) error
}

// TotalsUpdate carries the recomputed order-level fields written after
// every return batch.
type TotalsUpdate struct {
	OrderID           int64
	Status            model.OrderStatus
	Total             int64
	AdvanceUsed       int64
	RentalDays        int64
	RentalHours       int64
	BillingMultiplier float64
	ReturnedAt        *time.Time
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

const orderCols = `
	o.id, o.client_id, o.status, o.start_at, o.tax_percent,
	o.subtotal, o.tax, o.total,
	o.advance_payment, o.advance_used,
	o.rental_days, o.rental_hours, o.billing_multiplier,
	o.returned_at, o.created_at, o.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner, o *model.Order) error {
	return row.Scan(
		&o.ID, &o.ClientID, &o.Status, &o.StartAt, &o.TaxPercent,
		&o.Subtotal, &o.Tax, &o.Total,
		&o.AdvancePayment, &o.AdvanceUsed,
		&o.RentalDays, &o.RentalHours, &o.BillingMultiplier,
		&o.ReturnedAt, &o.CreatedAt, &o.UpdatedAt,
	)
}

// Reads

func (r *repo) Get(ctx context.Context, id int64) (*model.OrderDetail, error) {
	const q = `
		SELECT ` + orderCols + `,
			c.id, c.first_name, c.last_name, c.phone, COALESCE(c.rating, ''), c.created_at
		FROM orders o
		JOIN clients c ON c.id = o.client_id
		WHERE o.id = $1`
	d := &model.OrderDetail{Client: &model.Client{}}
	row := r.db.QueryRowContext(ctx, q, id)
	err := row.Scan(
		&d.ID, &d.ClientID, &d.Status, &d.StartAt, &d.TaxPercent,
		&d.Subtotal, &d.Tax, &d.Total,
		&d.AdvancePayment, &d.AdvanceUsed,
		&d.RentalDays, &d.RentalHours, &d.BillingMultiplier,
		&d.ReturnedAt, &d.CreatedAt, &d.UpdatedAt,
		&d.Client.ID, &d.Client.FirstName, &d.Client.LastName,
		&d.Client.Phone, &d.Client.Rating, &d.Client.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	items, err := r.itemsFor(ctx, []int64{d.ID})
	if err != nil {
		return nil, err
	}
	d.Items = items[d.ID]
	if d.Items == nil {
		d.Items = []model.OrderItem{}
	}
	return d, nil
}

func (r *repo) List(ctx context.Context) ([]model.OrderDetail, error) {
	const q = `
		SELECT ` + orderCols + `,
			c.id, c.first_name, c.last_name, c.phone, COALESCE(c.rating, ''), c.created_at
		FROM orders o
		JOIN clients c ON c.id = o.client_id
		ORDER BY o.created_at DESC, o.id DESC`
	return r.queryDetails(ctx, q)
}

func (r *repo) ListByClient(ctx context.Context, clientID int64) ([]model.OrderDetail, error) {
	const q = `
		SELECT ` + orderCols + `,
			c.id, c.first_name, c.last_name, c.phone, COALESCE(c.rating, ''), c.created_at
		FROM orders o
		JOIN clients c ON c.id = o.client_id
		WHERE o.client_id = $1
		ORDER BY o.created_at DESC, o.id DESC`
	return r.queryDetails(ctx, q, clientID)
}

func (r *repo) queryDetails(ctx context.Context, q string, args ...any) ([]model.OrderDetail, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OrderDetail
	var ids []int64
	for rows.Next() {
		d := model.OrderDetail{Client: &model.Client{}, Items: []model.OrderItem{}}
		if err := rows.Scan(
			&d.ID, &d.ClientID, &d.Status, &d.StartAt, &d.TaxPercent,
			&d.Subtotal, &d.Tax, &d.Total,
			&d.AdvancePayment, &d.AdvanceUsed,
			&d.RentalDays, &d.RentalHours, &d.BillingMultiplier,
			&d.ReturnedAt, &d.CreatedAt, &d.UpdatedAt,
			&d.Client.ID, &d.Client.FirstName, &d.Client.LastName,
			&d.Client.Phone, &d.Client.Rating, &d.Client.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
		ids = append(ids, d.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if its := items[out[i].ID]; its != nil {
			out[i].Items = its
		}
	}
	return out, nil
}

func (r *repo) itemsFor(ctx context.Context, orderIDs []int64) (map[int64][]model.OrderItem, error) {
	const q = `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.returned,
			p.name, p.size, p.price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id`
	rows, err := r.db.QueryContext(ctx, q, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]model.OrderItem)
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Returned,
			&it.ProductName, &it.ProductSize, &it.ProductPrice,
		); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

func (r *repo) ListReturnRecords(ctx context.Context, orderID int64) ([]model.ReturnRecord, error) {
	const q = `
		SELECT id, order_id, order_item_id, quantity,
			rental_days, rental_hours, multiplier, amount, created_at
		FROM return_records
		WHERE order_id = $1
		ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ReturnRecord
	for rows.Next() {
		var rec model.ReturnRecord
		if err := rows.Scan(
			&rec.ID, &rec.OrderID, &rec.OrderItemID, &rec.Quantity,
			&rec.RentalDays, &rec.RentalHours, &rec.Multiplier, &rec.Amount, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repo) UpdateStatus(ctx context.Context, id int64, status model.OrderStatus) error {
	const q = `
		UPDATE orders
		SET status = $2,
			updated_at = NOW()
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Tx-scoped mutations

func (r *repo) InsertOrder(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	const q = `
		INSERT INTO orders
			(client_id, status, start_at, tax_percent, subtotal, tax, total,
			advance_payment, advance_used)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0)
		RETURNING id, created_at, updated_at`
	return tx.QueryRowContext(ctx, q,
		o.ClientID, o.Status, o.StartAt, o.TaxPercent,
		o.Subtotal, o.Tax, o.Total, o.AdvancePayment,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (r *repo) InsertItem(ctx context.Context, tx *sql.Tx, it *model.OrderItem) error {
	const q = `
		INSERT INTO order_items (order_id, product_id, quantity, returned)
		VALUES ($1,$2,$3,0)
		RETURNING id`
	return tx.QueryRowContext(ctx, q, it.OrderID, it.ProductID, it.Quantity).Scan(&it.ID)
}

func (r *repo) GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Order, error) {
	const q = `
		SELECT ` + orderCols + `
		FROM orders o
		WHERE o.id = $1
		FOR UPDATE`
	o := &model.Order{}
	if err := scanOrder(tx.QueryRowContext(ctx, q, id), o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repo) ItemsForUpdate(ctx context.Context, tx *sql.Tx, orderID int64) ([]model.OrderItem, error) {
	const q = `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.returned,
			p.name, p.size, p.price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id
		FOR UPDATE OF oi`
	rows, err := tx.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Returned,
			&it.ProductName, &it.ProductSize, &it.ProductPrice,
		); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// AddReturned bumps an item's returned count. The guard keeps returned
// within quantity even if two returns race past validation.
func (r *repo) AddReturned(ctx context.Context, tx *sql.Tx, itemID, qty int64) (bool, error) {
	const q = `
		UPDATE order_items
		SET returned = returned + $2
		WHERE id = $1
		AND returned + $2 <= quantity`
	res, err := tx.ExecContext(ctx, q, itemID, qty)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

func (r *repo) InsertReturnRecord(ctx context.Context, tx *sql.Tx, rec *model.ReturnRecord) error {
	const q = `
		INSERT INTO return_records
			(order_id, order_item_id, quantity, rental_days, rental_hours, multiplier, amount)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at`
	return tx.QueryRowContext(ctx, q,
		rec.OrderID, rec.OrderItemID, rec.Quantity,
		rec.RentalDays, rec.RentalHours, rec.Multiplier, rec.Amount,
	).Scan(&rec.ID, &rec.CreatedAt)
}

func (r *repo) ItemTotals(ctx context.Context, tx *sql.Tx, orderID int64) (int64, int64, error) {
	const q = `
		SELECT COALESCE(SUM(quantity), 0), COALESCE(SUM(returned), 0)
		FROM order_items
		WHERE order_id = $1`
	var rented, returned int64
	err := tx.QueryRowContext(ctx, q, orderID).Scan(&rented, &returned)
	return rented, returned, err
}

func (r *repo) SumReturnAmounts(ctx context.Context, tx *sql.Tx, orderID int64) (int64, error) {
	const q = `
		SELECT COALESCE(SUM(amount), 0)
		FROM return_records
		WHERE order_id = $1`
	var sum int64
	err := tx.QueryRowContext(ctx, q, orderID).Scan(&sum)
	return sum, err
}

func (r *repo) UpdateTotals(ctx context.Context, tx *sql.Tx, u TotalsUpdate) error {
	const q = `
		UPDATE orders
		SET status = $2,
			total = $3,
			advance_used = $4,
			rental_days = $5,
			rental_hours = $6,
			billing_multiplier = $7,
			returned_at = COALESCE(returned_at, $8),
			updated_at = NOW()
		WHERE id = $1`
	_, err := tx.ExecContext(ctx, q,
		u.OrderID, u.Status, u.Total, u.AdvanceUsed,
		u.RentalDays, u.RentalHours, u.BillingMultiplier, u.ReturnedAt,
	)
	return err
}

func (r *repo) UpdateStartAt(ctx context.Context, tx *sql.Tx, id int64, startAt time.Time) error {
	const q = `
		UPDATE orders
		SET start_at = $2,
			updated_at = NOW()
		WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, id, startAt)
	return err
}

func (r *repo) Delete(ctx context.Context, tx *sql.Tx, id int64) error {
	// order_items and return_records cascade.
	_, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	return err
}
