package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/stockroomhq/stockroom/pkg/enums"
)

// StockMovement is the immutable audit record of one quantity-changing
// operation. Previous/new quantity are snapshots taken at creation; rows are
// never updated or deleted.
type StockMovement struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ProductID        uuid.UUID          `gorm:"column:product_id;type:uuid;not null;index"`
	Quantity         int                `gorm:"column:quantity;not null"`
	Type             enums.MovementType `gorm:"column:type;type:movement_type;not null"`
	Reason           *string            `gorm:"column:reason"`
	PreviousQuantity int                `gorm:"column:previous_quantity;not null"`
	NewQuantity      int                `gorm:"column:new_quantity;not null"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
}

// Effect returns the signed change this movement applied to the product.
func (m *StockMovement) Effect() int {
	return m.NewQuantity - m.PreviousQuantity
}
