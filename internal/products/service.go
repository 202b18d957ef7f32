package products

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockroomhq/stockroom/pkg/db"
	"github.com/stockroomhq/stockroom/pkg/db/models"
	pkgerrors "github.com/stockroomhq/stockroom/pkg/errors"
	"github.com/stockroomhq/stockroom/pkg/logger"
	"github.com/stockroomhq/stockroom/pkg/pagination"
)

// Service defines the product catalog operations.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, params ListProductsParams) (*ProductsPage, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
}

// CreateProductInput carries a new catalog entry.
type CreateProductInput struct {
	Name              string          `json:"name" validate:"required,min=1,max=200"`
	Description       string          `json:"description" validate:"max=2000"`
	SKU               string          `json:"sku" validate:"required,min=1,max=64"`
	Category          string          `json:"category" validate:"max=100"`
	Price             decimal.Decimal `json:"price"`
	StockQuantity     int             `json:"stock_quantity" validate:"gte=0"`
	LowStockThreshold int             `json:"low_stock_threshold" validate:"gte=0"`
}

// ListProductsParams configures catalog filtering and pagination.
type ListProductsParams struct {
	Category    string
	Search      string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	InStockOnly bool
	Limit       int
	Cursor      string
}

// ProductsPage wraps returned products and the cursor for the next page.
type ProductsPage struct {
	Items  []models.Product `json:"items"`
	Cursor string           `json:"cursor"`
}

type service struct {
	repo Repository
	logg *logger.Logger
}

var validate = validator.New()

// NewService wires the catalog dependencies.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "products repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if err := validate.Struct(input); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			details := map[string]string{}
			for _, fieldErr := range errs {
				details[fieldErr.Field()] = fieldErr.Tag()
			}
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}

	product := &models.Product{
		ID:                uuid.New(),
		Name:              strings.TrimSpace(input.Name),
		Description:       strings.TrimSpace(input.Description),
		SKU:               strings.TrimSpace(input.SKU),
		Category:          strings.TrimSpace(input.Category),
		Price:             input.Price,
		StockQuantity:     input.StockQuantity,
		LowStockThreshold: input.LowStockThreshold,
	}

	if err := s.repo.Create(ctx, product); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "sku already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}

	ctx = s.logg.WithProductID(ctx, product.ID.String())
	s.logg.Info(ctx, "product created")
	return product, nil
}

func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	product, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) ListProducts(ctx context.Context, params ListProductsParams) (*ProductsPage, error) {
	if params.MinPrice != nil && params.MaxPrice != nil && params.MinPrice.GreaterThan(*params.MaxPrice) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min price exceeds max price")
	}

	query := listProductsParams{
		Category:    strings.TrimSpace(params.Category),
		Search:      strings.TrimSpace(params.Search),
		MinPrice:    params.MinPrice,
		MaxPrice:    params.MaxPrice,
		InStockOnly: params.InStockOnly,
		Limit:       params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ProductsPage{Items: rows, Cursor: cursor}, nil
}

func (s *service) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	deleted, err := s.repo.Delete(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	if deleted == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	ctx = s.logg.WithProductID(ctx, productID.String())
	s.logg.Info(ctx, "product deleted")
	return nil
}
