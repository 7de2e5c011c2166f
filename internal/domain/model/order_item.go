package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文明細。商品名・SKU・単価は注文時点のスナップショット。
// カタログ側で値段を変えても過去の注文は動かない。
type OrderItem struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64           `gorm:"not null;index" json:"order_id"`
	ProductID           int64           `gorm:"not null;index" json:"product_id"`
	VariantID           string          `gorm:"type:varchar(64);not null;default:''" json:"variant_id,omitempty"`
	ProductNameSnapshot string          `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	ProductSKUSnapshot  string          `gorm:"type:varchar(64);not null" json:"product_sku_snapshot"`
	UnitPriceSnapshot   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price_snapshot"`
	Quantity            int64           `gorm:"not null" json:"quantity"`
	TotalPrice          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	CreatedAt           time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
