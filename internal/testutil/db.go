package testutil

import (
	"fmt"
	"shop-service/internal/model"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a private in-memory sqlite database with the schema
// migrated. The pool holds a single connection, so transactions run one at
// a time the way row locks serialize them on postgres.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

// SeedProduct inserts a product with the given price and stock
func SeedProduct(t testing.TB, db *gorm.DB, name string, price int64, quantity int) *model.Product {
	t.Helper()

	p := &model.Product{
		Name:     name,
		Brand:    "iphone",
		Category: "hot",
		Price:    price,
		Quantity: quantity,
		Img:      name + ".png",
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
