package unit

import (
	"context"
	"errors"
	"testing"

	"app/internal/domain/model"
	"app/internal/pricing"
	repo "app/internal/repository"
	"app/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testPolicy() pricing.Policy {
	return pricing.Policy{
		TaxRate:     dec("0.05"),
		ShippingFee: dec("80"),
	}
}

func testAddress() *model.OrderAddress {
	return &model.OrderAddress{
		Name:       "山田 太郎",
		PostalCode: "150-0001",
		Prefecture: "東京都",
		City:       "渋谷区",
		Line1:      "神宮前1-1-1",
	}
}

func orderableProduct(id int64, name, sku, price string) model.Product {
	return model.Product{
		ID:         id,
		StoreID:    1,
		Name:       name,
		SKU:        sku,
		Price:      dec(price),
		IsActive:   true,
		IsApproved: true,
	}
}

func newOrderUsecase(t *testing.T) (*usecase.OrderUsecase, *txReposStub) {
	t.Helper()
	stub := newTxReposStub()
	uc := usecase.NewOrderUsecase(&stubTxManager{repos: stub}, testPolicy(), nil)
	return uc, stub
}

func TestPlaceOrder_ValidationErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		in   usecase.PlaceOrderInput
	}{
		{
			name: "明細が空",
			in: usecase.PlaceOrderInput{
				Items:           []usecase.PlaceOrderItemInput{},
				ShippingAddress: testAddress(),
				PaymentMethod:   "card",
			},
		},
		{
			name: "配送先なし",
			in: usecase.PlaceOrderInput{
				Items:         []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 1}},
				PaymentMethod: "card",
			},
		},
		{
			name: "数量0",
			in: usecase.PlaceOrderInput{
				Items:           []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 0}},
				ShippingAddress: testAddress(),
				PaymentMethod:   "card",
			},
		},
		{
			name: "未対応の決済方法",
			in: usecase.PlaceOrderInput{
				Items:           []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 1}},
				ShippingAddress: testAddress(),
				PaymentMethod:   "paypal",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, stub := newOrderUsecase(t)

			_, err := uc.PlaceOrder(ctx, 1, tt.in)

			var vErr *usecase.ValidationError
			require.ErrorAs(t, err, &vErr)
			stub.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			stub.stocks.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestPlaceOrder_ProductUnavailable(t *testing.T) {
	ctx := context.Background()
	uc, stub := newOrderUsecase(t)

	// 存在するが非公開の商品
	p := orderableProduct(10, "旧商品", "SKU-OLD", "500")
	p.IsActive = false
	stub.products.On("FindByID", mock.Anything, int64(10)).Return(p, nil)

	_, err := uc.PlaceOrder(ctx, 1, usecase.PlaceOrderInput{
		Items:           []usecase.PlaceOrderItemInput{{ProductID: 10, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   "card",
	})

	var pErr *usecase.ProductUnavailableError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, int64(10), pErr.ProductID)
	stub.stocks.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPlaceOrder_MissingProduct(t *testing.T) {
	ctx := context.Background()
	uc, stub := newOrderUsecase(t)

	stub.products.On("FindByID", mock.Anything, int64(999)).Return(model.Product{}, repo.ErrNotFound)

	_, err := uc.PlaceOrder(ctx, 1, usecase.PlaceOrderInput{
		Items:           []usecase.PlaceOrderItemInput{{ProductID: 999, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   "card",
	})

	var pErr *usecase.ProductUnavailableError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, int64(999), pErr.ProductID)
}

func TestPlaceOrder_StockRecordMissing(t *testing.T) {
	ctx := context.Background()
	uc, stub := newOrderUsecase(t)

	stub.products.On("FindByID", mock.Anything, int64(1)).Return(orderableProduct(1, "Tシャツ", "SKU-001", "100"), nil)
	stub.stocks.On("Reserve", mock.Anything, int64(1), "", int64(2)).Return(false, int64(0), repo.ErrNotFound)

	_, err := uc.PlaceOrder(ctx, 1, usecase.PlaceOrderInput{
		Items:           []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 2}},
		ShippingAddress: testAddress(),
		PaymentMethod:   "card",
	})

	var sErr *usecase.StockNotFoundError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, int64(1), sErr.ProductID)
	stub.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	ctx := context.Background()
	uc, stub := newOrderUsecase(t)

	stub.products.On("FindByID", mock.Anything, int64(1)).Return(orderableProduct(1, "Tシャツ", "SKU-001", "100"), nil)
	stub.stocks.On("Reserve", mock.Anything, int64(1), "", int64(5)).Return(false, int64(2), nil)

	_, err := uc.PlaceOrder(ctx, 1, usecase.PlaceOrderInput{
		Items:           []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 5}},
		ShippingAddress: testAddress(),
		PaymentMethod:   "card",
	})

	var iErr *usecase.InsufficientStockError
	require.ErrorAs(t, err, &iErr)
	assert.Equal(t, int64(5), iErr.Requested)
	assert.Equal(t, int64(2), iErr.Available)
	stub.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	stub.orderItems.AssertNotCalled(t, "CreateBulk", mock.Anything, mock.Anything, mock.Anything)
}

func TestPlaceOrder_InvalidCoupon(t *testing.T) {
	ctx := context.Background()
	uc, stub := newOrderUsecase(t)

	stub.products.On("FindByID", mock.Anything, int64(1)).Return(orderableProduct(1, "Tシャツ", "SKU-001", "100"), nil)
	stub.coupons.On("FindByCode", mock.Anything, "NOPE").Return(model.Coupon{}, repo.ErrNotFound)

	_, err := uc.PlaceOrder(ctx, 1, usecase.PlaceOrderInput{
		Items:           []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   "card",
		CouponCode:      "NOPE",
	})

	// 不明なコードは0円引きで通さず弾く
	var vErr *usecase.ValidationError
	require.ErrorAs(t, err, &vErr)
	stub.stocks.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPlaceOrder_Success(t *testing.T) {
	ctx := context.Background()
	uc, stub := newOrderUsecase(t)

	stub.products.On("FindByID", mock.Anything, int64(1)).Return(orderableProduct(1, "Tシャツ", "SKU-001", "100"), nil)
	stub.stocks.On("Reserve", mock.Anything, int64(1), "", int64(2)).Return(true, int64(3), nil)
	stub.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.CustomerID == 7 &&
			o.Status == model.OrderStatusPending &&
			o.PaymentStatus == model.PaymentStatusPending &&
			o.Subtotal.Equal(dec("200")) &&
			o.Tax.Equal(dec("10")) &&
			o.ShippingFee.Equal(dec("80")) &&
			o.Discount.Equal(dec("0")) &&
			o.Total.Equal(dec("290"))
	})).Return(int64(42), nil)
	stub.orderItems.On("CreateBulk", mock.Anything, int64(42), mock.MatchedBy(func(items []model.OrderItem) bool {
		return len(items) == 1 &&
			items[0].ProductNameSnapshot == "Tシャツ" &&
			items[0].ProductSKUSnapshot == "SKU-001" &&
			items[0].UnitPriceSnapshot.Equal(dec("100")) &&
			items[0].TotalPrice.Equal(dec("200"))
	})).Return(nil)

	out, err := uc.PlaceOrder(ctx, 7, usecase.PlaceOrderInput{
		Items:           []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 2}},
		ShippingAddress: testAddress(),
		PaymentMethod:   "card",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(42), out.ID)
	assert.NotEmpty(t, out.OrderNumber)
	assert.Equal(t, string(model.OrderStatusPending), out.Status)
	assert.Equal(t, string(model.PaymentStatusPending), out.PaymentStatus)
	assert.True(t, out.Total.Equal(dec("290")), "total = %s", out.Total)
	// 請求先未指定なら配送先に合わせる
	assert.Equal(t, *testAddress(), out.BillingAddress)
	assert.Empty(t, out.ConfirmationError)

	stub.orders.AssertExpectations(t)
	stub.orderItems.AssertExpectations(t)
	stub.stocks.AssertExpectations(t)
}

func TestPlaceOrder_CODConfirmsImmediately(t *testing.T) {
	ctx := context.Background()
	uc, stub := newOrderUsecase(t)

	stub.products.On("FindByID", mock.Anything, int64(1)).Return(orderableProduct(1, "Tシャツ", "SKU-001", "100"), nil)
	stub.stocks.On("Reserve", mock.Anything, int64(1), "", int64(1)).Return(true, int64(4), nil)
	stub.orders.On("Create", mock.Anything, mock.Anything).Return(int64(42), nil)
	stub.orderItems.On("CreateBulk", mock.Anything, int64(42), mock.Anything).Return(nil)

	// 確定パス（2本目のトランザクション）
	stub.orders.On("FindByID", mock.Anything, int64(42)).Return(model.Order{
		ID:            42,
		CustomerID:    7,
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
		PaymentMethod: model.PaymentMethodCOD,
	}, nil)
	stub.orders.On("TransitionStatus", mock.Anything, int64(42), model.OrderStatusPending, model.OrderStatusConfirmed, model.PaymentStatusPaid).Return(true, nil)
	stub.orderItems.On("ListByOrderID", mock.Anything, int64(42)).Return([]model.OrderItem{}, nil)

	out, err := uc.PlaceOrder(ctx, 7, usecase.PlaceOrderInput{
		Items:           []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   "cod",
	})
	require.NoError(t, err)

	assert.Equal(t, string(model.OrderStatusConfirmed), out.Status)
	assert.Equal(t, string(model.PaymentStatusPaid), out.PaymentStatus)
	assert.Empty(t, out.ConfirmationError)
	stub.orders.AssertExpectations(t)
}

func TestPlaceOrder_ConfirmationFailureKeepsOrder(t *testing.T) {
	ctx := context.Background()
	uc, stub := newOrderUsecase(t)

	stub.products.On("FindByID", mock.Anything, int64(1)).Return(orderableProduct(1, "Tシャツ", "SKU-001", "100"), nil)
	stub.stocks.On("Reserve", mock.Anything, int64(1), "", int64(1)).Return(true, int64(4), nil)
	stub.orders.On("Create", mock.Anything, mock.Anything).Return(int64(42), nil)
	stub.orderItems.On("CreateBulk", mock.Anything, int64(42), mock.Anything).Return(nil)

	// 確定パスだけDB障害
	stub.orders.On("FindByID", mock.Anything, int64(42)).Return(model.Order{}, errors.New("connection reset"))

	out, err := uc.PlaceOrder(ctx, 7, usecase.PlaceOrderInput{
		Items:           []usecase.PlaceOrderItemInput{{ProductID: 1, Quantity: 1}},
		ShippingAddress: testAddress(),
		PaymentMethod:   "cod",
	})

	// 注文作成自体は成功として返る。確定失敗は別口で報告される。
	require.NoError(t, err)
	assert.Equal(t, int64(42), out.ID)
	assert.Equal(t, string(model.OrderStatusPending), out.Status)
	assert.Contains(t, out.ConfirmationError, "confirmation failed")
}

func TestConfirmOrder_StatusTransitions(t *testing.T) {
	ctx := context.Background()

	t.Run("確定済みは冪等", func(t *testing.T) {
		uc, stub := newOrderUsecase(t)
		stub.orders.On("FindByID", mock.Anything, int64(5)).Return(model.Order{
			ID:            5,
			Status:        model.OrderStatusConfirmed,
			PaymentStatus: model.PaymentStatusPaid,
		}, nil)
		stub.orderItems.On("ListByOrderID", mock.Anything, int64(5)).Return([]model.OrderItem{}, nil)

		out, err := uc.ConfirmOrder(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, string(model.OrderStatusConfirmed), out.Status)
		stub.orders.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("キャンセル済みはエラー", func(t *testing.T) {
		uc, stub := newOrderUsecase(t)
		stub.orders.On("FindByID", mock.Anything, int64(5)).Return(model.Order{
			ID:     5,
			Status: model.OrderStatusCanceled,
		}, nil)

		_, err := uc.ConfirmOrder(ctx, 5)
		require.ErrorIs(t, err, usecase.ErrOrderCanceled)
	})

	t.Run("存在しない注文", func(t *testing.T) {
		uc, stub := newOrderUsecase(t)
		stub.orders.On("FindByID", mock.Anything, int64(5)).Return(model.Order{}, repo.ErrNotFound)

		_, err := uc.ConfirmOrder(ctx, 5)
		require.ErrorIs(t, err, usecase.ErrOrderNotFound)
	})
}

// 同じPENDING注文を取り合ったときの負け側。古いPENDINGを読んだあと
// 条件付き遷移に負けた呼び出しは在庫を戻してはいけない（勝者が戻し済み）。
func TestCancelMyOrder_LostTransitionDoesNotReleaseStock(t *testing.T) {
	ctx := context.Background()
	uc, stub := newOrderUsecase(t)

	pending := model.Order{ID: 9, CustomerID: 1, Status: model.OrderStatusPending, PaymentStatus: model.PaymentStatusPending}
	canceled := pending
	canceled.Status = model.OrderStatusCanceled

	stub.orders.On("FindByID", mock.Anything, int64(9)).Return(pending, nil).Once()
	stub.orderItems.On("ListByOrderID", mock.Anything, int64(9)).Return([]model.OrderItem{
		{OrderID: 9, ProductID: 1, Quantity: 2},
	}, nil)
	stub.orders.On("TransitionStatus", mock.Anything, int64(9), model.OrderStatusPending, model.OrderStatusCanceled, model.PaymentStatusPending).Return(false, nil)
	// 読み直すと勝者のキャンセルが見える
	stub.orders.On("FindByID", mock.Anything, int64(9)).Return(canceled, nil).Once()

	out, err := uc.CancelMyOrder(ctx, 1, 9)
	require.NoError(t, err)
	assert.Equal(t, string(model.OrderStatusCanceled), out.Status)
	stub.stocks.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// キャンセルとの取り合いに負けた確定はキャンセル済みエラーになる。
func TestCancelMyOrder_LostToConfirm(t *testing.T) {
	ctx := context.Background()
	uc, stub := newOrderUsecase(t)

	pending := model.Order{ID: 9, CustomerID: 1, Status: model.OrderStatusPending, PaymentStatus: model.PaymentStatusPending}
	confirmed := pending
	confirmed.Status = model.OrderStatusConfirmed
	confirmed.PaymentStatus = model.PaymentStatusPaid

	stub.orders.On("FindByID", mock.Anything, int64(9)).Return(pending, nil).Once()
	stub.orderItems.On("ListByOrderID", mock.Anything, int64(9)).Return([]model.OrderItem{
		{OrderID: 9, ProductID: 1, Quantity: 2},
	}, nil)
	stub.orders.On("TransitionStatus", mock.Anything, int64(9), model.OrderStatusPending, model.OrderStatusCanceled, model.PaymentStatusPending).Return(false, nil)
	// 読み直すと先に確定されていた
	stub.orders.On("FindByID", mock.Anything, int64(9)).Return(confirmed, nil).Once()

	_, err := uc.CancelMyOrder(ctx, 1, 9)
	require.ErrorIs(t, err, usecase.ErrNotCancelable)
	// 確定済み注文の在庫を戻してはいけない
	stub.stocks.AssertNotCalled(t, "Release", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmOrder_LostTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("別の確定が勝った場合は成功扱い", func(t *testing.T) {
		uc, stub := newOrderUsecase(t)
		pending := model.Order{ID: 9, Status: model.OrderStatusPending}
		confirmed := pending
		confirmed.Status = model.OrderStatusConfirmed
		confirmed.PaymentStatus = model.PaymentStatusPaid

		stub.orders.On("FindByID", mock.Anything, int64(9)).Return(pending, nil).Once()
		stub.orders.On("TransitionStatus", mock.Anything, int64(9), model.OrderStatusPending, model.OrderStatusConfirmed, model.PaymentStatusPaid).Return(false, nil)
		stub.orders.On("FindByID", mock.Anything, int64(9)).Return(confirmed, nil).Once()
		stub.orderItems.On("ListByOrderID", mock.Anything, int64(9)).Return([]model.OrderItem{}, nil)

		out, err := uc.ConfirmOrder(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, string(model.OrderStatusConfirmed), out.Status)
	})

	t.Run("キャンセルが勝った場合はエラー", func(t *testing.T) {
		uc, stub := newOrderUsecase(t)
		pending := model.Order{ID: 9, Status: model.OrderStatusPending}
		canceled := pending
		canceled.Status = model.OrderStatusCanceled

		stub.orders.On("FindByID", mock.Anything, int64(9)).Return(pending, nil).Once()
		stub.orders.On("TransitionStatus", mock.Anything, int64(9), model.OrderStatusPending, model.OrderStatusConfirmed, model.PaymentStatusPaid).Return(false, nil)
		stub.orders.On("FindByID", mock.Anything, int64(9)).Return(canceled, nil).Once()

		_, err := uc.ConfirmOrder(ctx, 9)
		require.ErrorIs(t, err, usecase.ErrOrderCanceled)
	})
}

func TestGetMyOrderDetail_ScopedToCustomer(t *testing.T) {
	ctx := context.Background()
	uc, stub := newOrderUsecase(t)

	// 他人の注文
	stub.orders.On("FindByID", mock.Anything, int64(9)).Return(model.Order{
		ID:         9,
		CustomerID: 77,
		Status:     model.OrderStatusPending,
	}, nil)

	_, err := uc.GetMyOrderDetail(ctx, 1, 9)
	require.ErrorIs(t, err, usecase.ErrOrderNotFound)
}
