package repository

import (
	"context"

	"phonemarket/internal/domain/model"
)

type CartItemRepository interface {
	ListByUserID(ctx context.Context, userID int64) ([]model.CartItem, error)
	//カート明細を商品と結合して返す（商品が無い行はProduct=nil）
	ListWithProductsByUserID(ctx context.Context, userID int64) ([]model.CartLine, error)
	// 同一商品はプラス
	UpsertByUserAndProduct(ctx context.Context, userID int64, productID int64, addQty int64) error
	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	DeleteByUserID(ctx context.Context, userID int64) error
	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)
}
