package repository

import "context"

// トランザクション内で使う約束。
// ここ経由で触る書き込みは、WithinTxがcommitするまで外から見えない。
type TxRepos interface {
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	Stocks() StockRepository
	Products() ProductRepository
	Coupons() CouponRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
// fnがerrorを返したら全体をrollbackする。途中までの在庫減算も残らない。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
