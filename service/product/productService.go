package product

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/mrbekdev/OPPBackend/model"
	productrepo "github.com/mrbekdev/OPPBackend/repository/product"
)

var (
	ErrNotFound = errors.New("product not found")
	ErrBadInput = errors.New("bad input")
)

type Service interface {
	Create(ctx context.Context, p *model.Product) (*model.Product, error)
	List(ctx context.Context) ([]model.Product, error)
	Get(ctx context.Context, id int64) (*model.Product, error)
	Update(ctx context.Context, p *model.Product) (*model.Product, error)
	Delete(ctx context.Context, id int64) error
}

type service struct{ pr productrepo.Repo }

func New(pr productrepo.Repo) Service { return &service{pr: pr} }

func validate(p *model.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrBadInput
	}
	if p.Price < 0 || p.Weight < 0 || p.Count < 0 {
		return ErrBadInput
	}
	return nil
}

func (s *service) Create(ctx context.Context, p *model.Product) (*model.Product, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	if err := s.pr.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) List(ctx context.Context) ([]model.Product, error) {
	return s.pr.List(ctx)
}

func (s *service) Get(ctx context.Context, id int64) (*model.Product, error) {
	p, err := s.pr.ByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *service) Update(ctx context.Context, p *model.Product) (*model.Product, error) {
	if err := validate(p); err != nil {
		return nil, err
	}
	if err := s.pr.Update(ctx, p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.Get(ctx, p.ID)
}

func (s *service) Delete(ctx context.Context, id int64) error {
	err := s.pr.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
