package client

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mrbekdev/OPPBackend/model"
	clientrepo "github.com/mrbekdev/OPPBackend/repository/client"
)

var (
	ErrNotFound   = errors.New("client not found")
	ErrPhoneTaken = errors.New("phone already registered")
	ErrBadInput   = errors.New("bad input")
)

type Service interface {
	Create(ctx context.Context, firstName, lastName, phone string) (*model.Client, error)
	List(ctx context.Context) ([]model.Client, error)
	Get(ctx context.Context, id int64) (*model.Client, error)
	Update(ctx context.Context, id int64, firstName, lastName, phone string) (*model.Client, error)
	UpdateRating(ctx context.Context, id int64, rating string) error
	Delete(ctx context.Context, id int64) error
}

type service struct{ cr clientrepo.Repo }

func New(cr clientrepo.Repo) Service { return &service{cr: cr} }

func (s *service) Create(ctx context.Context, firstName, lastName, phone string) (*model.Client, error) {
	firstName, lastName, phone = strings.TrimSpace(firstName), strings.TrimSpace(lastName), strings.TrimSpace(phone)
	if firstName == "" || lastName == "" || phone == "" {
		return nil, ErrBadInput
	}
	c := &model.Client{FirstName: firstName, LastName: lastName, Phone: phone}
	if err := s.cr.Create(ctx, c); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrPhoneTaken
		}
		return nil, err
	}
	return c, nil
}

func (s *service) List(ctx context.Context) ([]model.Client, error) {
	return s.cr.List(ctx)
}

func (s *service) Get(ctx context.Context, id int64) (*model.Client, error) {
	c, err := s.cr.ByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

func (s *service) Update(ctx context.Context, id int64, firstName, lastName, phone string) (*model.Client, error) {
	firstName, lastName, phone = strings.TrimSpace(firstName), strings.TrimSpace(lastName), strings.TrimSpace(phone)
	if firstName == "" || lastName == "" || phone == "" {
		return nil, ErrBadInput
	}
	c := &model.Client{ID: id, FirstName: firstName, LastName: lastName, Phone: phone}
	if err := s.cr.Update(ctx, c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrPhoneTaken
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *service) UpdateRating(ctx context.Context, id int64, rating string) error {
	err := s.cr.UpdateRating(ctx, id, strings.TrimSpace(rating))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *service) Delete(ctx context.Context, id int64) error {
	err := s.cr.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
