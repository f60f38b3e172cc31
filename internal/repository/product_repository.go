package repository

import (
	"context"
	"errors"

	"phonemarket/internal/domain/model"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

// 一覧検索
type ProductListQuery struct {
	Page      int
	Limit     int
	Q         string
	Brand     string
	Condition model.Condition
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	Sort      string
}

// 出品者情報つきの商品
type ProductWithSeller struct {
	model.Product
	SellerName  string `json:"seller_name"`
	SellerEmail string `json:"seller_email"`
}

// 商品の永続化（保存・取得）だけを約束。
type ProductRepository interface {
	ListPublic(ctx context.Context, q ProductListQuery) ([]model.Product, int64, error)
	ListBySeller(ctx context.Context, sellerID int64) ([]model.Product, error)
	//管理者用（非公開も含む、新しい順）
	ListAll(ctx context.Context, limit int) ([]ProductWithSeller, error)
	FindByID(ctx context.Context, id int64) (model.Product, error)
	FindWithSeller(ctx context.Context, id int64) (ProductWithSeller, error)
	Count(ctx context.Context) (int64, error)

	Create(ctx context.Context, p model.Product) (model.Product, error)
	//sellerIDが一致する行だけ更新する
	UpdateBySeller(ctx context.Context, sellerID int64, p model.Product) error
	DeleteBySeller(ctx context.Context, sellerID int64, id int64) error
}
