package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a catalog entry whose stock quantity is owned by the
// stock ledger. Quantity is only ever mutated through a StockMovement.
type Product struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name              string          `gorm:"column:name;not null"`
	Description       string          `gorm:"column:description;not null;default:''"`
	SKU               string          `gorm:"column:sku;not null;uniqueIndex:products_sku_key"`
	Category          string          `gorm:"column:category;not null;default:''"`
	Price             decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	StockQuantity     int             `gorm:"column:stock_quantity;not null;default:0"`
	LowStockThreshold int             `gorm:"column:low_stock_threshold;not null;default:0"`
	Movements         []StockMovement `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// IsLowStock reports whether the product sits at or below its own threshold.
func (p *Product) IsLowStock() bool {
	return p.StockQuantity <= p.LowStockThreshold
}
