package main

import (
	"context"
	"flag"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

// 開発・e2e用のseedツール。
// デモ商品を1件upsertして在庫を積み、採番されたproduct_idをログに出す。
// e2eはそのIDをE2E_PRODUCT_IDに入れて実行する。
func main() {
	sku := flag.String("sku", "SEED-001", "product SKU to upsert")
	name := flag.String("name", "デモ商品", "product name")
	price := flag.String("price", "1000", "unit price")
	qty := flag.Int64("qty", 100, "stock quantity to set")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	if err := gormDB.AutoMigrate(&model.Product{}, &model.Stock{}); err != nil {
		logger.Fatal("migrate failed", zap.Error(err))
	}

	unitPrice, err := decimal.NewFromString(*price)
	if err != nil {
		logger.Fatal("invalid price", zap.String("price", *price), zap.Error(err))
	}

	ctx := context.Background()

	// 商品はSKUをキーにupsert。カタログ編集APIは無いので投入はここから。
	product := model.Product{
		StoreID:    1,
		Name:       *name,
		SKU:        *sku,
		Price:      unitPrice,
		IsActive:   true,
		IsApproved: true,
	}
	err = gormDB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "price", "is_active", "is_approved"}),
		}).
		Create(&product).Error
	if err != nil {
		logger.Fatal("product upsert failed", zap.Error(err))
	}
	if product.ID == 0 {
		// upsertで既存行に当たるとIDが埋まらないことがあるので読み直す
		var existing model.Product
		if err := gormDB.WithContext(ctx).Where("sku = ?", *sku).First(&existing).Error; err != nil {
			logger.Fatal("product lookup failed", zap.Error(err))
		}
		product = existing
	}

	stocks := infraRepo.NewStockGormRepository(gormDB)
	if err := stocks.SetQuantity(ctx, product.ID, "", *qty); err != nil {
		logger.Fatal("stock set failed", zap.Error(err))
	}

	s, err := stocks.Find(ctx, product.ID, "")
	if err != nil {
		logger.Fatal("stock readback failed", zap.Error(err))
	}

	logger.Info("seeded",
		zap.Int64("product_id", product.ID),
		zap.String("sku", product.SKU),
		zap.Int64("quantity", s.Quantity),
	)
}
