package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom/pkg/db/models"
	"github.com/stockroomhq/stockroom/pkg/pagination"
)

// Repository exposes persistence helpers for products and stock movements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	// CompareAndSetStock updates the product quantity only when the stored
	// value still equals expected. Returns false when another writer won.
	CompareAndSetStock(ctx context.Context, productID uuid.UUID, expected, next int, now time.Time) (bool, error)
	CreateMovement(ctx context.Context, movement *models.StockMovement) error
	ListMovements(ctx context.Context, params listMovementsParams) ([]models.StockMovement, *pagination.Cursor, error)
	LowStockProducts(ctx context.Context) ([]models.Product, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listMovementsParams struct {
	ProductID uuid.UUID
	Limit     int
	Cursor    *pagination.Cursor
	Type      string
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repositoryImpl) CompareAndSetStock(ctx context.Context, productID uuid.UUID, expected, next int, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock_quantity = ?", productID, expected).
		UpdateColumns(map[string]any{
			"stock_quantity": next,
			"updated_at":     now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) CreateMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repositoryImpl) ListMovements(ctx context.Context, params listMovementsParams) ([]models.StockMovement, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.StockMovement{})
	if params.ProductID != uuid.Nil {
		query = query.Where("product_id = ?", params.ProductID)
	}
	if params.Type != "" {
		query = query.Where("type = ?", params.Type)
	}
	if params.Cursor != nil {
		// cursor marks the first row of the requested page, so it is inclusive
		query = query.Where("(created_at, id) <= (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var movements []models.StockMovement
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&movements).Error; err != nil {
		return nil, nil, err
	}

	if len(movements) > normalized {
		next := movements[normalized]
		movements = movements[:normalized]
		return movements, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return movements, nil, nil
}

func (r *repositoryImpl) LowStockProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("stock_quantity <= low_stock_threshold").
		Order("stock_quantity ASC, id ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}
