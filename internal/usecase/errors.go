package usecase

import (
	"errors"
	"fmt"
)

// 注文コアのエラー分類。呼び出し側は errors.As / errors.Is で分岐する。
// 「errorかnilか」だけでは区別できない失敗を型で分ける。

// リクエスト自体の不備。入力を直さない限りリトライしても同じ結果。
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// 商品が存在しない・非公開・未承認。どの商品が原因かを必ず返す。
type ProductUnavailableError struct {
	ProductID int64
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %d is not available", e.ProductID)
}

// 在庫行そのものがない
type StockNotFoundError struct {
	ProductID int64
	VariantID string
}

func (e *StockNotFoundError) Error() string {
	if e.VariantID != "" {
		return fmt.Sprintf("no stock record for product %d variant %s", e.ProductID, e.VariantID)
	}
	return fmt.Sprintf("no stock record for product %d", e.ProductID)
}

// 在庫不足。同時購入の正常な競合。数量を変えればリトライしてよい。
type InsufficientStockError struct {
	ProductID int64
	VariantID string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

// DB・トランザクションの失敗。注文は原子的なので全体リトライが安全。
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string { return "persistence failure: " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// 注文のcommitは済んでいるのに確定だけ失敗した。注文は消えていない。
// 作成エラーと混ぜずに別口で報告する。
type ConfirmationError struct {
	OrderID int64
	Err     error
}

func (e *ConfirmationError) Error() string {
	return fmt.Sprintf("order %d was created but confirmation failed: %v", e.OrderID, e.Err)
}
func (e *ConfirmationError) Unwrap() error { return e.Err }

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")

	// キャンセル済み注文への確定
	ErrOrderCanceled = errors.New("order is canceled")

	// PENDING以外はキャンセル不可
	ErrNotCancelable = errors.New("order cannot be canceled")
)
