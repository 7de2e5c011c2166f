package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StockGormRepository struct {
	db *gorm.DB
}

func NewStockGormRepository(db *gorm.DB) *StockGormRepository {
	return &StockGormRepository{db: db}
}

// 在庫が足りるときだけ減らす。
// 条件付きUPDATE1文なので、同じ行を狙う同時予約はDBの行ロックで直列化される。
// 2つの予約が同じ残量を見て両方成功する、は起きない。
// 成功時はRETURNINGで減算後の残量を返す。
func (r *StockGormRepository) Reserve(ctx context.Context, productID int64, variantID string, qty int64) (bool, int64, error) {
	var updated model.Stock
	res := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "quantity"}}}).
		Where("product_id = ? AND variant_id = ? AND quantity >= ?", productID, variantID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))

	if res.Error != nil {
		return false, 0, res.Error
	}
	if res.RowsAffected > 0 {
		return true, updated.Quantity, nil
	}

	// 0件更新は「行がない」か「在庫不足」。読み直して区別する。
	var s model.Stock
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND variant_id = ?", productID, variantID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, 0, repo.ErrNotFound
	}
	if err != nil {
		return false, 0, err
	}
	return false, s.Quantity, nil
}

// 在庫戻し（キャンセル）
func (r *StockGormRepository) Release(ctx context.Context, productID int64, variantID string, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Stock{}).
		Where("product_id = ? AND variant_id = ?", productID, variantID).
		Update("quantity", gorm.Expr("quantity + ?", qty))

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *StockGormRepository) AvailableForProduct(ctx context.Context, productID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Stock{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

// 在庫の投入・棚卸し。(product_id, variant_id) のユニーク制約に乗せたupsert。
func (r *StockGormRepository) SetQuantity(ctx context.Context, productID int64, variantID string, qty int64) error {
	s := model.Stock{ProductID: productID, VariantID: variantID, Quantity: qty}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}, {Name: "variant_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"quantity": qty}),
		}).
		Create(&s).Error
}

func (r *StockGormRepository) Find(ctx context.Context, productID int64, variantID string) (model.Stock, error) {
	var s model.Stock
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND variant_id = ?", productID, variantID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Stock{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Stock{}, err
	}
	return s, nil
}
