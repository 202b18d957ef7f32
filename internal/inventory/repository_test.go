package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stockroomhq/stockroom/pkg/db"
	"github.com/stockroomhq/stockroom/pkg/db/models"
	"github.com/stockroomhq/stockroom/pkg/enums"
)

func setupInventoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	// a single connection serializes sqlite writers, matching one pooled conn
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, conn.AutoMigrate(&models.Product{}, &models.StockMovement{}, &models.Notification{}))
	return conn
}

func seedProduct(t *testing.T, conn *gorm.DB, quantity, threshold int) models.Product {
	t.Helper()

	product := models.Product{
		ID:                uuid.New(),
		Name:              "widget",
		SKU:               "WID-" + uuid.NewString()[:8],
		StockQuantity:     quantity,
		LowStockThreshold: threshold,
	}
	require.NoError(t, conn.Create(&product).Error)
	return product
}

func seedMovement(t *testing.T, conn *gorm.DB, productID uuid.UUID, movementType enums.MovementType, createdAt time.Time) models.StockMovement {
	t.Helper()

	movement := models.StockMovement{
		ID:               uuid.New(),
		ProductID:        productID,
		Quantity:         1,
		Type:             movementType,
		PreviousQuantity: 1,
		NewQuantity:      2,
		CreatedAt:        createdAt,
	}
	require.NoError(t, conn.Create(&movement).Error)
	return movement
}

func TestRepositoryGetProduct(t *testing.T) {
	conn := setupInventoryTestDB(t)
	repo := NewRepository(conn)

	seeded := seedProduct(t, conn, 10, 3)

	product, err := repo.GetProduct(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.Equal(t, seeded.ID, product.ID)
	require.Equal(t, 10, product.StockQuantity)

	_, err = repo.GetProduct(context.Background(), uuid.New())
	require.Error(t, err)
	require.True(t, db.IsNotFound(err))
}

func TestRepositoryCompareAndSetStock(t *testing.T) {
	conn := setupInventoryTestDB(t)
	repo := NewRepository(conn)

	product := seedProduct(t, conn, 10, 3)
	now := time.Now().UTC()

	swapped, err := repo.CompareAndSetStock(context.Background(), product.ID, 10, 15, now)
	require.NoError(t, err)
	require.True(t, swapped)

	// stale expectation loses
	swapped, err = repo.CompareAndSetStock(context.Background(), product.ID, 10, 20, now)
	require.NoError(t, err)
	require.False(t, swapped)

	reloaded, err := repo.GetProduct(context.Background(), product.ID)
	require.NoError(t, err)
	require.Equal(t, 15, reloaded.StockQuantity)
}

func TestRepositoryListMovements(t *testing.T) {
	conn := setupInventoryTestDB(t)
	repo := NewRepository(conn)

	widget := seedProduct(t, conn, 10, 3)
	gadget := seedProduct(t, conn, 10, 3)
	base := time.Now().UTC().Truncate(time.Second)

	oldest := seedMovement(t, conn, widget.ID, enums.MovementTypeStockIn, base.Add(-2*time.Hour))
	middle := seedMovement(t, conn, widget.ID, enums.MovementTypeStockOut, base.Add(-time.Hour))
	newest := seedMovement(t, conn, widget.ID, enums.MovementTypeStockIn, base)
	seedMovement(t, conn, gadget.ID, enums.MovementTypeAdjustment, base)

	rows, cursor, err := repo.ListMovements(context.Background(), listMovementsParams{ProductID: widget.ID, Limit: 10})
	require.NoError(t, err)
	require.Nil(t, cursor)
	require.Len(t, rows, 3)
	require.Equal(t, newest.ID, rows[0].ID)
	require.Equal(t, middle.ID, rows[1].ID)
	require.Equal(t, oldest.ID, rows[2].ID)

	rows, _, err = repo.ListMovements(context.Background(), listMovementsParams{ProductID: widget.ID, Limit: 10, Type: "stock_in"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	firstPage, next, err := repo.ListMovements(context.Background(), listMovementsParams{ProductID: widget.ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, firstPage, 2)
	require.NotNil(t, next)

	secondPage, last, err := repo.ListMovements(context.Background(), listMovementsParams{ProductID: widget.ID, Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, secondPage, 1)
	require.Nil(t, last)
	require.Equal(t, oldest.ID, secondPage[0].ID)
}

func TestRepositoryLowStockProducts(t *testing.T) {
	conn := setupInventoryTestDB(t)
	repo := NewRepository(conn)

	empty := seedProduct(t, conn, 0, 5)
	atThreshold := seedProduct(t, conn, 5, 5)
	low := seedProduct(t, conn, 2, 5)
	seedProduct(t, conn, 50, 5) // healthy, excluded

	products, err := repo.LowStockProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 3)

	// ascending by quantity, most urgent first
	require.Equal(t, empty.ID, products[0].ID)
	require.Equal(t, low.ID, products[1].ID)
	require.Equal(t, atThreshold.ID, products[2].ID)
}
