package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CouponKind string

const (
	// 小計に対する割引率（Value=10 なら10%）
	CouponKindPercent CouponKind = "PERCENT"
	// 固定額の値引き
	CouponKindFixed CouponKind = "FIXED"
)

type Coupon struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Code        string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"code"`
	Kind        CouponKind      `gorm:"type:varchar(20);not null" json:"kind"`
	Value       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"value"`
	MinSubtotal decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"min_subtotal"`
	IsActive    bool            `gorm:"not null;default:true" json:"is_active"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 指定時刻で使えるクーポンか
func (c Coupon) UsableAt(t time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(t) {
		return false
	}
	return true
}
