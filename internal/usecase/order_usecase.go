package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"app/internal/domain/model"
	"app/internal/pricing"
	repo "app/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type OrderUsecase struct {
	tx     repo.TransactionManager
	policy pricing.Policy
	logger *zap.Logger
}

func NewOrderUsecase(tx repo.TransactionManager, policy pricing.Policy, logger *zap.Logger) *OrderUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderUsecase{tx: tx, policy: policy, logger: logger}
}

type PlaceOrderItemInput struct {
	ProductID int64
	VariantID string
	Quantity  int64
}

type PlaceOrderInput struct {
	Items           []PlaceOrderItemInput
	ShippingAddress *model.OrderAddress
	BillingAddress  *model.OrderAddress
	PaymentMethod   string
	Notes           string
	CouponCode      string
}

type OrderItemOutput struct {
	ProductID  int64           `json:"product_id"`
	VariantID  string          `json:"variant_id,omitempty"`
	Name       string          `json:"name"`
	SKU        string          `json:"sku"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int64           `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type OrderOutput struct {
	ID              int64              `json:"id"`
	OrderNumber     string             `json:"order_number"`
	CustomerID      int64              `json:"customer_id"`
	Status          string             `json:"status"`
	PaymentStatus   string             `json:"payment_status"`
	PaymentMethod   string             `json:"payment_method"`
	ShippingAddress model.OrderAddress `json:"shipping_address"`
	BillingAddress  model.OrderAddress `json:"billing_address"`
	Subtotal        decimal.Decimal    `json:"subtotal"`
	Tax             decimal.Decimal    `json:"tax"`
	ShippingFee     decimal.Decimal    `json:"shipping_fee"`
	Discount        decimal.Decimal    `json:"discount"`
	Total           decimal.Decimal    `json:"total"`
	CouponCode      string             `json:"coupon_code,omitempty"`
	Notes           string             `json:"notes,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
	Items           []OrderItemOutput  `json:"items"`

	// 注文は作成済みだが確定だけ失敗したときに入る
	ConfirmationError string `json:"confirmation_error,omitempty"`
}

// 検証済みの下書き。まだ何も書き込んでいない。
type orderDraft struct {
	Order model.Order
	Items []model.OrderItem
}

// PlaceOrder は注文作成の全体を1トランザクションで進める。
// 検証 → 在庫予約 → 保存 → commit。どの段階で失敗しても書き込みは一切残らない。
func (u *OrderUsecase) PlaceOrder(ctx context.Context, customerID int64, in PlaceOrderInput) (OrderOutput, error) {
	if customerID <= 0 {
		return OrderOutput{}, ErrUnauthorized
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		draft, err := u.assembleOrder(ctx, r, customerID, in)
		if err != nil {
			return err
		}

		// 在庫予約。リクエストの並び順で処理し、1件でも失敗したら全体を巻き戻す。
		// 予約の減算と注文の保存が同じトランザクションなので、
		// 「確認した在庫」と「引いた在庫」の間に隙間はない。
		for _, item := range draft.Items {
			ok, available, err := r.Stocks().Reserve(ctx, item.ProductID, item.VariantID, item.Quantity)
			if errors.Is(err, repo.ErrNotFound) {
				return &StockNotFoundError{ProductID: item.ProductID, VariantID: item.VariantID}
			}
			if err != nil {
				return &PersistenceError{Err: err}
			}
			if !ok {
				return &InsufficientStockError{
					ProductID: item.ProductID,
					VariantID: item.VariantID,
					Requested: item.Quantity,
					Available: available,
				}
			}
		}

		orderID, err := r.Orders().Create(ctx, draft.Order)
		if err != nil {
			return &PersistenceError{Err: err}
		}
		if err := r.OrderItems().CreateBulk(ctx, orderID, draft.Items); err != nil {
			return &PersistenceError{Err: err}
		}

		draft.Order.ID = orderID
		out = toOrderOutput(draft.Order, draft.Items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.logger.Info("order placed",
		zap.Int64("order_id", out.ID),
		zap.Int64("customer_id", customerID),
		zap.String("total", out.Total.String()),
	)

	// 同期決済は確定まで進める。ここは2本目のトランザクション。
	// 注文自体はもうcommit済みなので、確定失敗で注文は消えない。
	if model.PaymentMethod(out.PaymentMethod).SettlesImmediately() {
		confirmed, cErr := u.ConfirmOrder(ctx, out.ID)
		if cErr != nil {
			u.logger.Warn("order confirmation failed",
				zap.Int64("order_id", out.ID),
				zap.Error(cErr),
			)
			out.ConfirmationError = (&ConfirmationError{OrderID: out.ID, Err: cErr}).Error()
			return out, nil
		}
		out.Status = confirmed.Status
		out.PaymentStatus = confirmed.PaymentStatus
	}

	return out, nil
}

// assembleOrder は検証と下書き作成だけ。在庫は減らさない（減算は呼び出し側がReserveで行う）。
func (u *OrderUsecase) assembleOrder(ctx context.Context, r repo.TxRepos, customerID int64, in PlaceOrderInput) (orderDraft, error) {
	if len(in.Items) == 0 {
		return orderDraft{}, &ValidationError{Message: "order must contain at least one item"}
	}
	if in.ShippingAddress == nil {
		return orderDraft{}, &ValidationError{Message: "shipping address is required"}
	}

	pm := model.PaymentMethod(strings.TrimSpace(in.PaymentMethod))
	if !pm.Valid() {
		return orderDraft{}, &ValidationError{Message: fmt.Sprintf("unsupported payment method %q", in.PaymentMethod)}
	}

	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return orderDraft{}, &ValidationError{Message: fmt.Sprintf("quantity must be positive (product %d)", it.ProductID)}
		}
	}

	now := time.Now()

	// 商品を解決してスナップショットを切る
	items := make([]model.OrderItem, 0, len(in.Items))
	lines := make([]pricing.LineItem, 0, len(in.Items))
	for _, it := range in.Items {
		p, err := r.Products().FindByID(ctx, it.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return orderDraft{}, &ProductUnavailableError{ProductID: it.ProductID}
		}
		if err != nil {
			return orderDraft{}, &PersistenceError{Err: err}
		}
		if !p.Orderable() {
			return orderDraft{}, &ProductUnavailableError{ProductID: it.ProductID}
		}

		qty := decimal.NewFromInt(it.Quantity)
		items = append(items, model.OrderItem{
			ProductID:           p.ID,
			VariantID:           it.VariantID,
			ProductNameSnapshot: p.Name,
			ProductSKUSnapshot:  p.SKU,
			UnitPriceSnapshot:   p.Price,
			Quantity:            it.Quantity,
			TotalPrice:          p.Price.Mul(qty),
			CreatedAt:           now,
		})
		lines = append(lines, pricing.LineItem{UnitPrice: p.Price, Quantity: it.Quantity})
	}

	// クーポン解決。不明・失効コードは黙って0円引きにせず弾く。
	var coupon *model.Coupon
	couponCode := strings.TrimSpace(in.CouponCode)
	if couponCode != "" {
		c, err := r.Coupons().FindByCode(ctx, couponCode)
		if errors.Is(err, repo.ErrNotFound) {
			return orderDraft{}, &ValidationError{Message: "invalid coupon code"}
		}
		if err != nil {
			return orderDraft{}, &PersistenceError{Err: err}
		}
		if !c.UsableAt(now) {
			return orderDraft{}, &ValidationError{Message: "coupon is no longer valid"}
		}
		coupon = &c
	}

	quote, err := pricing.Compute(lines, coupon, u.policy)
	if errors.Is(err, pricing.ErrCouponMinSubtotal) {
		return orderDraft{}, &ValidationError{Message: "subtotal does not meet coupon minimum"}
	}
	if err != nil {
		return orderDraft{}, err
	}

	// 請求先がなければ配送先を使う
	billing := in.ShippingAddress
	if in.BillingAddress != nil {
		billing = in.BillingAddress
	}

	order := model.Order{
		OrderNumber:     uuid.NewString(),
		CustomerID:      customerID,
		ShippingAddress: *in.ShippingAddress,
		BillingAddress:  *billing,
		PaymentMethod:   pm,
		Subtotal:        quote.Subtotal,
		Tax:             quote.Tax,
		ShippingFee:     quote.Shipping,
		Discount:        quote.Discount,
		Total:           quote.Total,
		Status:          model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
		CouponCode:      couponCode,
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	return orderDraft{Order: order, Items: items}, nil
}

// ConfirmOrder は自前のトランザクションで注文を確定する。
func (u *OrderUsecase) ConfirmOrder(ctx context.Context, orderID int64) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, &ValidationError{Message: "invalid order id"}
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := u.confirmInTx(ctx, r, orderID)
		if err != nil {
			return err
		}

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return &PersistenceError{Err: err}
		}
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// confirmInTx は呼び出し側のトランザクションに乗る。commit/rollbackはしない。
// PENDING → CONFIRMED+PAID。確定済みは何もせず成功（冪等）、キャンセル済みはエラー。
func (u *OrderUsecase) confirmInTx(ctx context.Context, r repo.TxRepos, orderID int64) (model.Order, error) {
	o, err := r.Orders().FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return model.Order{}, &PersistenceError{Err: err}
	}

	switch o.Status {
	case model.OrderStatusConfirmed:
		return o, nil
	case model.OrderStatusCanceled:
		return model.Order{}, ErrOrderCanceled
	}

	ok, err := r.Orders().TransitionStatus(ctx, orderID, model.OrderStatusPending, model.OrderStatusConfirmed, model.PaymentStatusPaid)
	if err != nil {
		return model.Order{}, &PersistenceError{Err: err}
	}
	if !ok {
		// 読んだあとに別の遷移が勝った。今の状態を読み直して判定する。
		o, err = r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return model.Order{}, &PersistenceError{Err: err}
		}
		if o.Status == model.OrderStatusConfirmed {
			return o, nil
		}
		return model.Order{}, ErrOrderCanceled
	}

	o.Status = model.OrderStatusConfirmed
	o.PaymentStatus = model.PaymentStatusPaid
	return o, nil
}

// CancelMyOrder はPENDINGの自分の注文だけ取り消し、在庫を戻す。
func (u *OrderUsecase) CancelMyOrder(ctx context.Context, customerID int64, orderID int64) (OrderOutput, error) {
	if customerID <= 0 {
		return OrderOutput{}, ErrUnauthorized
	}
	if orderID <= 0 {
		return OrderOutput{}, &ValidationError{Message: "invalid order id"}
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return &PersistenceError{Err: err}
		}

		//他人の注文は「存在しない扱い」にする
		if o.CustomerID != customerID {
			return ErrOrderNotFound
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return &PersistenceError{Err: err}
		}

		switch o.Status {
		case model.OrderStatusCanceled:
			// 冪等
			out = toOrderOutput(o, items)
			return nil
		case model.OrderStatusPending:
		default:
			return ErrNotCancelable
		}

		// 先に遷移を取る。PENDINGから進められた呼び出しだけが在庫を戻すので、
		// 同じ注文への同時キャンセルでも在庫が二重に戻ることはない。
		won, err := r.Orders().TransitionStatus(ctx, orderID, model.OrderStatusPending, model.OrderStatusCanceled, o.PaymentStatus)
		if err != nil {
			return &PersistenceError{Err: err}
		}
		if !won {
			// 別の遷移に先を越された。読み直して判定する。
			o, err = r.Orders().FindByID(ctx, orderID)
			if err != nil {
				return &PersistenceError{Err: err}
			}
			if o.Status == model.OrderStatusCanceled {
				out = toOrderOutput(o, items)
				return nil
			}
			return ErrNotCancelable
		}

		// 在庫戻しとステータス変更は同じトランザクション
		for _, it := range items {
			if err := r.Stocks().Release(ctx, it.ProductID, it.VariantID, it.Quantity); err != nil {
				return &PersistenceError{Err: err}
			}
		}

		o.Status = model.OrderStatusCanceled
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.logger.Info("order canceled",
		zap.Int64("order_id", orderID),
		zap.Int64("customer_id", customerID),
	)
	return out, nil
}

// GET /ordersの入力DTO
type ListOrdersInput struct {
	Page  int
	Limit int
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// 新しい順、ページング付き。
func (u *OrderUsecase) ListMyOrders(ctx context.Context, customerID int64, in ListOrdersInput) (OrderListOutput, error) {
	if customerID <= 0 {
		return OrderListOutput{}, ErrUnauthorized
	}
	if in.Page < 1 {
		return OrderListOutput{}, &ValidationError{Message: "invalid page"}
	}
	if in.Limit < 1 || in.Limit > 100 {
		return OrderListOutput{}, &ValidationError{Message: "invalid limit"}
	}

	var out OrderListOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByCustomerID(ctx, customerID, in.Page, in.Limit)
		if err != nil {
			return &PersistenceError{Err: err}
		}

		outs := make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return &PersistenceError{Err: err}
			}
			outs = append(outs, toOrderOutput(o, items))
		}

		out = OrderListOutput{Items: outs, Total: total, Page: in.Page, Limit: in.Limit}
		return nil
	})
	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, customerID int64, orderID int64) (OrderOutput, error) {
	if customerID <= 0 {
		return OrderOutput{}, ErrUnauthorized
	}
	if orderID <= 0 {
		return OrderOutput{}, &ValidationError{Message: "invalid order id"}
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return &PersistenceError{Err: err}
		}

		//他人の注文は「存在しない扱い」にする
		if o.CustomerID != customerID {
			return ErrOrderNotFound
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return &PersistenceError{Err: err}
		}

		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID:  it.ProductID,
			VariantID:  it.VariantID,
			Name:       it.ProductNameSnapshot,
			SKU:        it.ProductSKUSnapshot,
			UnitPrice:  it.UnitPriceSnapshot,
			Quantity:   it.Quantity,
			TotalPrice: it.TotalPrice,
		})
	}

	return OrderOutput{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentMethod:   string(o.PaymentMethod),
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		Subtotal:        o.Subtotal,
		Tax:             o.Tax,
		ShippingFee:     o.ShippingFee,
		Discount:        o.Discount,
		Total:           o.Total,
		CouponCode:      o.CouponCode,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		Items:           outItems,
	}
}
