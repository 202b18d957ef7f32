package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/stockroomhq/stockroom/internal/notifications"
	"github.com/stockroomhq/stockroom/pkg/config"
	"github.com/stockroomhq/stockroom/pkg/db"
	"github.com/stockroomhq/stockroom/pkg/db/models"
	"github.com/stockroomhq/stockroom/pkg/enums"
	pkgerrors "github.com/stockroomhq/stockroom/pkg/errors"
	"github.com/stockroomhq/stockroom/pkg/logger"
	"github.com/stockroomhq/stockroom/pkg/metrics"
	"github.com/stockroomhq/stockroom/pkg/pagination"
)

// Service defines the stock ledger operations.
type Service interface {
	UpdateStock(ctx context.Context, input UpdateStockInput) (*UpdateStockResult, error)
	GetLowStockProducts(ctx context.Context) ([]models.Product, error)
	ListMovements(ctx context.Context, params ListMovementsParams) (*MovementsPage, error)
}

// TxRunner executes a function inside a database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// UpdateStockInput carries a requested stock mutation.
type UpdateStockInput struct {
	ProductID uuid.UUID          `json:"product_id" validate:"required"`
	Quantity  int                `json:"quantity" validate:"required,gt=0"`
	Type      enums.MovementType `json:"type" validate:"required"`
	Reason    string             `json:"reason" validate:"omitempty,max=500"`
}

// UpdateStockResult reports the committed mutation. NotificationErr carries a
// post-commit alert delivery failure; the stock change itself is already
// durable when it is set.
type UpdateStockResult struct {
	Product         models.Product       `json:"product"`
	Movement        models.StockMovement `json:"movement"`
	NotificationErr error                `json:"-"`
}

// ListMovementsParams configures filtering and pagination for the movement log.
type ListMovementsParams struct {
	ProductID uuid.UUID
	Limit     int
	Cursor    string
	Type      string
}

// MovementsPage wraps returned movements and the cursor for the next page.
type MovementsPage struct {
	Items  []models.StockMovement `json:"items"`
	Cursor string                 `json:"cursor"`
}

type service struct {
	tx         TxRunner
	repo       Repository
	notifier   notifications.Notifier
	logg       *logger.Logger
	metrics    *metrics.InventoryMetrics
	maxRetries uint64
}

var validate = validator.New()

// NewService wires the stock ledger dependencies.
func NewService(
	tx TxRunner,
	repo Repository,
	notifier notifications.Notifier,
	logg *logger.Logger,
	m *metrics.InventoryMetrics,
	cfg config.InventoryConfig,
) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory repository required")
	}
	if notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "low stock notifier required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}

	maxRetries := cfg.MaxUpdateRetries
	if maxRetries == 0 {
		maxRetries = 10
	}

	return &service{
		tx:         tx,
		repo:       repo,
		notifier:   notifier,
		logg:       logg,
		metrics:    m,
		maxRetries: maxRetries,
	}, nil
}

func (s *service) UpdateStock(ctx context.Context, input UpdateStockInput) (*UpdateStockResult, error) {
	if err := validateUpdateStockInput(input); err != nil {
		s.metrics.IncRejection(string(pkgerrors.CodeValidation))
		return nil, err
	}
	reason := normalizeReason(input.Reason)

	ctx = s.logg.WithProductID(ctx, input.ProductID.String())
	ctx = s.logg.WithMovementType(ctx, input.Type.String())

	var result UpdateStockResult
	backoff := retry.WithMaxRetries(s.maxRetries, retry.NewFibonacci(2*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)

			product, err := repo.GetProduct(ctx, input.ProductID)
			if err != nil {
				if db.IsNotFound(err) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}

			next, err := nextQuantity(product, input)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			swapped, err := repo.CompareAndSetStock(ctx, product.ID, product.StockQuantity, next, now)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stock quantity")
			}
			if !swapped {
				// another writer committed first, reload and retry
				return retry.RetryableError(pkgerrors.New(pkgerrors.CodeConflict, "concurrent stock update"))
			}

			movement := &models.StockMovement{
				ID:               uuid.New(),
				ProductID:        product.ID,
				Quantity:         input.Quantity,
				Type:             input.Type,
				Reason:           reason,
				PreviousQuantity: product.StockQuantity,
				NewQuantity:      next,
				CreatedAt:        now,
			}
			if err := repo.CreateMovement(ctx, movement); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stock movement")
			}

			product.StockQuantity = next
			product.UpdatedAt = now
			result.Product = *product
			result.Movement = *movement
			return nil
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			if typed.Code() == pkgerrors.CodeDependency {
				s.logDependencyFailure(ctx, typed)
			}
			s.metrics.IncRejection(string(typed.Code()))
			return nil, typed
		}
		s.metrics.IncRejection(string(pkgerrors.CodeInternal))
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update stock")
	}

	s.metrics.IncMovement(input.Type.String())
	s.metrics.SetStockQuantity(result.Product.ID.String(), result.Product.StockQuantity)
	s.logg.Info(ctx, "stock updated")

	if result.Product.IsLowStock() {
		if err := s.notifier.NotifyLowStock(ctx, &result.Product); err != nil {
			s.metrics.IncAlertFailure()
			s.logg.Error(ctx, "low stock alert delivery failed", err)
			result.NotificationErr = pkgerrors.Wrap(pkgerrors.CodeNotification, err, "low stock alert")
		} else {
			s.metrics.IncAlertSuccess()
		}
	}

	return &result, nil
}

func (s *service) GetLowStockProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.LowStockProducts(ctx)
	if err != nil {
		wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock products")
		s.logDependencyFailure(ctx, wrapped)
		return nil, wrapped
	}
	return products, nil
}

// logDependencyFailure logs a persistence failure with the flattened error
// chain and any driver-level fields attached.
func (s *service) logDependencyFailure(ctx context.Context, err error) {
	ctx = s.logg.WithField(ctx, "db_error", pkgerrors.Dump(err))
	s.logg.Error(ctx, "persistence failure", err)
}

func (s *service) ListMovements(ctx context.Context, params ListMovementsParams) (*MovementsPage, error) {
	query := listMovementsParams{
		ProductID: params.ProductID,
		Limit:     params.Limit,
	}
	if params.Type != "" {
		movementType, err := enums.ParseMovementType(params.Type)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movement type filter")
		}
		query.Type = movementType.String()
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListMovements(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock movements")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}

	return &MovementsPage{Items: rows, Cursor: cursor}, nil
}

// nextQuantity applies the movement to the current quantity. stock_out is the
// only kind that can fail here.
func nextQuantity(product *models.Product, input UpdateStockInput) (int, error) {
	switch input.Type {
	case enums.MovementTypeStockIn:
		return product.StockQuantity + input.Quantity, nil
	case enums.MovementTypeStockOut:
		if product.StockQuantity < input.Quantity {
			return 0, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(map[string]int{
				"available": product.StockQuantity,
				"requested": input.Quantity,
			})
		}
		return product.StockQuantity - input.Quantity, nil
	case enums.MovementTypeAdjustment:
		return input.Quantity, nil
	default:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid movement type")
	}
}

func validateUpdateStockInput(input UpdateStockInput) error {
	if err := validate.Struct(input); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			details := map[string]string{}
			for _, fieldErr := range errs {
				details[fieldErr.Field()] = fieldErr.Tag()
			}
			return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid movement type").WithDetails(map[string]string{
			"type": string(input.Type),
		})
	}
	return nil
}

func normalizeReason(reason string) *string {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
