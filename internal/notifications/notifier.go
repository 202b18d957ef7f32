package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/stockroomhq/stockroom/pkg/db/models"
	"github.com/stockroomhq/stockroom/pkg/enums"
	pkgerrors "github.com/stockroomhq/stockroom/pkg/errors"
	"github.com/stockroomhq/stockroom/pkg/logger"
)

// Notifier receives low stock alerts after a stock change has been committed.
// Implementations must not assume they run inside the mutating transaction.
type Notifier interface {
	NotifyLowStock(ctx context.Context, product *models.Product) error
}

// Recorder persists low stock alerts to the notifications inbox.
type Recorder struct {
	repo Repository
	logg *logger.Logger
}

// NewRecorder builds a persisting notifier.
func NewRecorder(repo Repository, logg *logger.Logger) (*Recorder, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Recorder{repo: repo, logg: logg}, nil
}

func (r *Recorder) NotifyLowStock(ctx context.Context, product *models.Product) error {
	if product == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product required")
	}

	kind := enums.NotificationTypeLowStock
	title := fmt.Sprintf("Low stock: %s", product.Name)
	if product.StockQuantity == 0 {
		kind = enums.NotificationTypeOutOfStock
		title = fmt.Sprintf("Out of stock: %s", product.Name)
	}

	notification := &models.Notification{
		ID:        uuid.New(),
		ProductID: product.ID,
		Type:      kind,
		Title:     title,
		Message: fmt.Sprintf("%s (SKU %s) is at %d units, threshold %d",
			product.Name, product.SKU, product.StockQuantity, product.LowStockThreshold),
	}

	if err := r.repo.Create(ctx, notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNotification, err, "record low stock notification")
	}

	ctx = r.logg.WithProductID(ctx, product.ID.String())
	ctx = r.logg.WithField(ctx, "notification_id", notification.ID.String())
	r.logg.Info(ctx, "low stock notification recorded")
	return nil
}

// LogNotifier emits low stock alerts to the structured log only.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) (*LogNotifier, error) {
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &LogNotifier{logg: logg}, nil
}

func (n *LogNotifier) NotifyLowStock(ctx context.Context, product *models.Product) error {
	if product == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product required")
	}
	ctx = n.logg.WithProductID(ctx, product.ID.String())
	ctx = n.logg.WithFields(ctx, map[string]any{
		"sku":       product.SKU,
		"quantity":  product.StockQuantity,
		"threshold": product.LowStockThreshold,
	})
	n.logg.Warn(ctx, "product stock at or below threshold")
	return nil
}

// MultiNotifier fans an alert out to every sink and aggregates failures.
// Every sink is attempted even when earlier ones fail.
type MultiNotifier struct {
	sinks []Notifier
}

func NewMultiNotifier(sinks ...Notifier) *MultiNotifier {
	filtered := make([]Notifier, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			filtered = append(filtered, sink)
		}
	}
	return &MultiNotifier{sinks: filtered}
}

func (m *MultiNotifier) NotifyLowStock(ctx context.Context, product *models.Product) error {
	var errs error
	for _, sink := range m.sinks {
		errs = multierr.Append(errs, sink.NotifyLowStock(ctx, product))
	}
	if errs != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNotification, errs, "deliver low stock alert")
	}
	return nil
}
