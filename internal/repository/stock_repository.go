package repository

import (
	"app/internal/domain/model"
	"context"
)

// 在庫の確保・返却。Reserveは注文トランザクションの中からだけ呼ぶ。
type StockRepository interface {
	// 在庫が足りるときだけ qty を引く。
	// 行がなければ ErrNotFound。足りなければ ok=false と現在庫を返し、書き込みはしない。
	// 成功時の available は減算後の残量。
	Reserve(ctx context.Context, productID int64, variantID string, qty int64) (ok bool, available int64, err error)

	// 在庫戻し（キャンセル）
	Release(ctx context.Context, productID int64, variantID string, qty int64) error

	// 在庫の投入・棚卸し。行がなければ作る。
	SetQuantity(ctx context.Context, productID int64, variantID string, qty int64) error

	// 1商品の在庫合計（バリアント横断）。表示用の読み取り。
	AvailableForProduct(ctx context.Context, productID int64) (int64, error)

	Find(ctx context.Context, productID int64, variantID string) (model.Stock, error)
}
