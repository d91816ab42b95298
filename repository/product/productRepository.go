package product

import (
	"context"
	"database/sql"

	"github.com/mrbekdev/OPPBackend/model"
)

type Repo interface {
	Create(ctx context.Context, p *model.Product) error
	List(ctx context.Context) ([]model.Product, error)
	ByID(ctx context.Context, id int64) (*model.Product, error)
	Update(ctx context.Context, p *model.Product) error
	Delete(ctx context.Context, id int64) error

	// Inventory ledger. Only ever called inside an order transaction;
	// DecrementCount is a guarded compare-and-decrement so the count can
	// never go negative even under concurrent reservations.
	ByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Product, error)
	DecrementCount(ctx context.Context, tx *sql.Tx, id, qty int64) (bool, error)
	IncrementCount(ctx context.Context, tx *sql.Tx, id, qty int64) error
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

const productCols = `id, name, size, price, weight, count, created_at`

func (r *repo) Create(ctx context.Context, p *model.Product) error {
	const q = `
		INSERT INTO products (name, size, price, weight, count)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, q, p.Name, p.Size, p.Price, p.Weight, p.Count).
		Scan(&p.ID, &p.CreatedAt)
}

func (r *repo) List(ctx context.Context) ([]model.Product, error) {
	const q = `
		SELECT ` + productCols + `
		FROM products
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Size, &p.Price, &p.Weight, &p.Count, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.Product, error) {
	const q = `SELECT ` + productCols + ` FROM products WHERE id = $1`
	p := &model.Product{}
	err := r.db.QueryRowContext(ctx, q, id).
		Scan(&p.ID, &p.Name, &p.Size, &p.Price, &p.Weight, &p.Count, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repo) Update(ctx context.Context, p *model.Product) error {
	const q = `
		UPDATE products
		SET name   = $2,
			size   = $3,
			price  = $4,
			weight = $5,
			count  = $6
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, p.ID, p.Name, p.Size, p.Price, p.Weight, p.Count)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) ByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Product, error) {
	const q = `
		SELECT ` + productCols + `
		FROM products
		WHERE id = $1
		FOR UPDATE`
	p := &model.Product{}
	err := tx.QueryRowContext(ctx, q, id).
		Scan(&p.ID, &p.Name, &p.Size, &p.Price, &p.Weight, &p.Count, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DecrementCount reserves qty units. Returns false when the product has
// fewer than qty units left; the count row is untouched in that case.
func (r *repo) DecrementCount(ctx context.Context, tx *sql.Tx, id, qty int64) (bool, error) {
	const q = `
		UPDATE products
		SET count = count - $2
		WHERE id = $1
		AND count >= $2`
	res, err := tx.ExecContext(ctx, q, id, qty)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

func (r *repo) IncrementCount(ctx context.Context, tx *sql.Tx, id, qty int64) error {
	const q = `
		UPDATE products
		SET count = count + $2
		WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, id, qty)
	return err
}
