package usecase

import (
	"context"
	"errors"
	"strings"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type ProductUsecase struct {
	productRepo repo.ProductRepository
	stockRepo   repo.StockRepository
}

// DI
func NewProductUsecase(productRepo repo.ProductRepository, stockRepo repo.StockRepository) *ProductUsecase {
	return &ProductUsecase{
		productRepo: productRepo,
		stockRepo:   stockRepo,
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page  int
	Limit int
	Q     string
	Sort  string
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// 商品詳細は在庫の現在値も添える（表示用の読み取り。在庫は一切書かない）
type ProductDetailOutput struct {
	model.Product
	Available int64 `json:"available"`
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, &ValidationError{Message: "invalid page"}
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, &ValidationError{Message: "invalid limit"}
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, &ValidationError{Message: "q too long"}
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc":
	default:
		return ProductListOutput{}, &ValidationError{Message: "invalid sort"}
	}

	items, total, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:  in.Page,
		Limit: in.Limit,
		Q:     strings.TrimSpace(in.Q),
		Sort:  in.Sort,
	})
	if err != nil {
		return ProductListOutput{}, &PersistenceError{Err: err}
	}

	return ProductListOutput{
		Items: items,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID int64) (ProductDetailOutput, error) {
	if productID <= 0 {
		return ProductDetailOutput{}, &ValidationError{Message: "invalid product id"}
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return ProductDetailOutput{}, ErrProductNotFound
	}
	if err != nil {
		return ProductDetailOutput{}, &PersistenceError{Err: err}
	}
	//非公開・未承認は「存在しない扱い」にする
	if !p.Orderable() {
		return ProductDetailOutput{}, ErrProductNotFound
	}

	available, err := u.stockRepo.AvailableForProduct(ctx, productID)
	if err != nil {
		return ProductDetailOutput{}, &PersistenceError{Err: err}
	}

	return ProductDetailOutput{Product: p, Available: available}, nil
}
