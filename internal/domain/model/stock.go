package model

import "time"

// 在庫行。(product_id, variant_id) が同時注文の競合点になる。
// バリアントなしの商品は variant_id='' の1行を持つ。
type Stock struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64     `gorm:"not null;uniqueIndex:idx_stocks_product_variant" json:"product_id"`
	VariantID string    `gorm:"type:varchar(64);not null;default:'';uniqueIndex:idx_stocks_product_variant" json:"variant_id"`
	Quantity  int64     `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
