package client

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mrbekdev/OPPBackend/model"
)

type Repo interface {
	Create(ctx context.Context, c *model.Client) error
	List(ctx context.Context) ([]model.Client, error)
	ByID(ctx context.Context, id int64) (*model.Client, error)
	ByPhone(ctx context.Context, phone string) (*model.Client, error)
	Update(ctx context.Context, c *model.Client) error
	UpdateRating(ctx context.Context, id int64, rating string) error
	Delete(ctx context.Context, id int64) error

	// Tx-scoped variants used inside order transactions.
	ByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*model.Client, error)
	ByPhoneTx(ctx context.Context, tx *sql.Tx, phone string) (*model.Client, error)
	CreateTx(ctx context.Context, tx *sql.Tx, c *model.Client) error
	UpdateNameTx(ctx context.Context, tx *sql.Tx, id int64, firstName, lastName string) error
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

const clientCols = `id, first_name, last_name, phone, COALESCE(rating, ''), created_at`

func scanClient(row *sql.Row) (*model.Client, error) {
	c := &model.Client{}
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Phone, &c.Rating, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *repo) Create(ctx context.Context, c *model.Client) error {
	const q = `
		INSERT INTO clients (first_name, last_name, phone)
		VALUES ($1,$2,$3)
		RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, q, c.FirstName, c.LastName, c.Phone).
		Scan(&c.ID, &c.CreatedAt)
}

func (r *repo) List(ctx context.Context) ([]model.Client, error) {
	const q = `
		SELECT ` + clientCols + `
		FROM clients
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Client
	for rows.Next() {
		var c model.Client
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Phone, &c.Rating, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.Client, error) {
	const q = `SELECT ` + clientCols + ` FROM clients WHERE id = $1`
	return scanClient(r.db.QueryRowContext(ctx, q, id))
}

func (r *repo) ByPhone(ctx context.Context, phone string) (*model.Client, error) {
	const q = `SELECT ` + clientCols + ` FROM clients WHERE phone = $1`
	c, err := scanClient(r.db.QueryRowContext(ctx, q, phone))
	if errors.Is(err, sql.ErrNoRows) {
		// Absence is not an error here; callers treat nil as "unknown".
		return nil, nil
	}
	return c, err
}

func (r *repo) Update(ctx context.Context, c *model.Client) error {
	const q = `
		UPDATE clients
		SET first_name = $2,
			last_name  = $3,
			phone      = $4
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, c.ID, c.FirstName, c.LastName, c.Phone)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) UpdateRating(ctx context.Context, id int64, rating string) error {
	const q = `
		UPDATE clients
		SET rating = $2
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, rating)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) ByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*model.Client, error) {
	const q = `SELECT ` + clientCols + ` FROM clients WHERE id = $1`
	return scanClient(tx.QueryRowContext(ctx, q, id))
}

func (r *repo) ByPhoneTx(ctx context.Context, tx *sql.Tx, phone string) (*model.Client, error) {
	const q = `SELECT ` + clientCols + ` FROM clients WHERE phone = $1 FOR UPDATE`
	c, err := scanClient(tx.QueryRowContext(ctx, q, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *repo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.Client) error {
	const q = `
		INSERT INTO clients (first_name, last_name, phone)
		VALUES ($1,$2,$3)
		RETURNING id, created_at`
	return tx.QueryRowContext(ctx, q, c.FirstName, c.LastName, c.Phone).
		Scan(&c.ID, &c.CreatedAt)
}

func (r *repo) UpdateNameTx(ctx context.Context, tx *sql.Tx, id int64, firstName, lastName string) error {
	const q = `
		UPDATE clients
		SET first_name = $2,
			last_name  = $3
		WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, id, firstName, lastName)
	return err
}
