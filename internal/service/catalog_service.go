package service

import (
	"context"
	"errors"

	"installpro/internal/model"
	"installpro/internal/repository"
	"installpro/pkg/apperror"
	"installpro/pkg/pagination"

	"github.com/shopspring/decimal"
)

type CreateProductRequest struct {
	SKU   string          `json:"sku" binding:"required"`
	Name  string          `json:"name" binding:"required"`
	Price decimal.Decimal `json:"price" swaggertype:"number"`
}

// CatalogService exposes the product lookups used when quoting projects.
type CatalogService interface {
	CreateProduct(ctx context.Context, req CreateProductRequest) (*model.Product, error)
	ListProducts(ctx context.Context, search string, p pagination.Params) (pagination.Page[model.Product], error)
}

type catalogService struct {
	repo repository.ProductRepository
}

func NewCatalogService(repo repository.ProductRepository) CatalogService {
	return &catalogService{repo: repo}
}

func (s *catalogService) CreateProduct(ctx context.Context, req CreateProductRequest) (*model.Product, error) {
	if req.Price.IsNegative() {
		return nil, apperror.Invalid("El precio no puede ser negativo")
	}
	product := &model.Product{SKU: req.SKU, Name: req.Name, Price: req.Price}
	if err := s.repo.Create(ctx, product); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.Conflict("Ya existe un producto con ese SKU")
		}
		return nil, apperror.Internal(err, "No se pudo crear el producto")
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, search string, p pagination.Params) (pagination.Page[model.Product], error) {
	products, total, err := s.repo.List(ctx, search, p)
	if err != nil {
		return pagination.Page[model.Product]{}, apperror.Internal(err, "No se pudo consultar el catálogo")
	}
	return pagination.Wrap(products, total, p), nil
}
