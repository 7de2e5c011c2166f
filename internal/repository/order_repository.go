package repository

import (
	"context"

	"app/internal/domain/model"
)

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByCustomerID(ctx context.Context, customerID int64, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	// 状態遷移。注文は消さない、ステータスを進めるだけ。
	// fromの行だけを条件付きUPDATEで進める。同じ注文を取り合う同時遷移の
	// 勝者は1つで、負けた側は ok=false を受け取る（Reserveと同じ作法）。
	TransitionStatus(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus, payment model.PaymentStatus) (ok bool, err error)
}
