package pricing

import (
	"errors"

	"app/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 税率と送料は設定で渡す。勝手なデフォルトは持たない。
type Policy struct {
	TaxRate     decimal.Decimal // 例: 0.05
	ShippingFee decimal.Decimal // 定額
}

type LineItem struct {
	UnitPrice decimal.Decimal
	Quantity  int64
}

type Quote struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

var (
	// 合計がマイナスになるのは計算バグ。黙って0にしない。
	ErrNegativeTotal = errors.New("pricing: negative total")

	// クーポンの最低購入額に届いていない
	ErrCouponMinSubtotal = errors.New("pricing: subtotal below coupon minimum")
)

// Compute は純関数。DBも時計も触らない。
// total = subtotal + tax + shipping - discount
func Compute(items []LineItem, coupon *model.Coupon, pol Policy) (Quote, error) {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity)))
	}

	tax := subtotal.Mul(pol.TaxRate).Round(2)
	shipping := pol.ShippingFee

	discount := decimal.Zero
	if coupon != nil {
		if subtotal.LessThan(coupon.MinSubtotal) {
			return Quote{}, ErrCouponMinSubtotal
		}
		switch coupon.Kind {
		case model.CouponKindPercent:
			discount = subtotal.Mul(coupon.Value).Div(decimal.NewFromInt(100)).Round(2)
		case model.CouponKindFixed:
			discount = coupon.Value
		}
		// 値引きは小計まで。送料や税を食い潰す値引きは出さない。
		if discount.GreaterThan(subtotal) {
			discount = subtotal
		}
	}

	total := subtotal.Add(tax).Add(shipping).Sub(discount)
	if total.IsNegative() {
		return Quote{}, ErrNegativeTotal
	}

	return Quote{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: shipping,
		Discount: discount,
		Total:    total,
	}, nil
}
