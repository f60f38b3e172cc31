package usecase

import (
	"context"
	"errors"
	"net/http"

	"phonemarket/internal/domain/model"
	repo "phonemarket/internal/repository"

	"github.com/shopspring/decimal"
)

// CartUsecase は /cart の業務ロジックです。
type CartUsecase struct {
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
}

func NewCartUsecase(
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
) *CartUsecase {
	return &CartUsecase{
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
	}
}

// 商品の現在値（消えた商品はnil）
type CartProductDTO struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Images   model.ImageURLs `json:"images"`
	Stock    int64           `json:"stock"`
	IsActive bool            `json:"is_active"`
}

type CartItemResponse struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	Product   *CartProductDTO `json:"product"`
}

type CartResponse struct {
	Items []CartItemResponse `json:"items"`
	//購入できる行だけの合計（表示用。確定時に再計算する）
	Total decimal.Decimal `json:"total"`
}

type AddCartInput struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gte=1"`
}

type UpdateCartItemInput struct {
	Quantity int64 `json:"quantity" validate:"required,gte=1"`
}

func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return u.buildCartResponse(ctx, userID)
}

// AddToCart はカートに追加（同一商品は数量加算）。
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	// 商品チェック（公開のみ）
	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		return CartResponse{}, dbError(err)
	}
	if !p.IsActive {
		return CartResponse{}, badRequest(&ProductUnavailableError{ProductName: p.Name})
	}

	items, err := u.cartItemRepo.ListByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, dbError(err)
	}

	var existingQty int64 = 0
	for _, it := range items {
		if it.ProductID == in.ProductID {
			existingQty = it.Quantity
			break
		}
	}

	newQty := existingQty + in.Quantity
	if newQty > p.Stock {
		return CartResponse{}, badRequest(&InsufficientStockError{ProductName: p.Name, Available: p.Stock, Requested: newQty})
	}

	if err := u.cartItemRepo.UpsertByUserAndProduct(ctx, userID, in.ProductID, in.Quantity); err != nil {
		return CartResponse{}, dbError(err)
	}

	return u.buildCartResponse(ctx, userID)
}

// 数量変更（所有チェック＋在庫チェック）。
func (u *CartUsecase) UpdateCartItem(ctx context.Context, userID int64, cartItemID int64, in UpdateCartItemInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	item, err := u.findOwnedItem(ctx, userID, cartItemID)
	if err != nil {
		return CartResponse{}, err
	}

	//商品の在庫チェック
	p, err := u.productRepo.FindByID(ctx, item.ProductID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{}, badRequest(&ProductUnavailableError{ProductName: "unknown"})
	}
	if err != nil {
		return CartResponse{}, dbError(err)
	}
	if !p.IsActive {
		return CartResponse{}, badRequest(&ProductUnavailableError{ProductName: p.Name})
	}
	if in.Quantity > p.Stock {
		return CartResponse{}, badRequest(&InsufficientStockError{ProductName: p.Name, Available: p.Stock, Requested: in.Quantity})
	}

	if err := u.cartItemRepo.UpdateQuantity(ctx, cartItemID, in.Quantity); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, NewHTTPError(http.StatusNotFound, "not found")
		}
		return CartResponse{}, dbError(err)
	}

	return u.buildCartResponse(ctx, userID)
}

// 明細削除
func (u *CartUsecase) DeleteCartItem(ctx context.Context, userID int64, cartItemID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if _, err := u.findOwnedItem(ctx, userID, cartItemID); err != nil {
		return CartResponse{}, err
	}

	if err := u.cartItemRepo.DeleteByID(ctx, cartItemID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, NewHTTPError(http.StatusNotFound, "not found")
		}
		return CartResponse{}, dbError(err)
	}

	return u.buildCartResponse(ctx, userID)
}

// 他人の明細は404
func (u *CartUsecase) findOwnedItem(ctx context.Context, userID, cartItemID int64) (model.CartItem, error) {
	item, err := u.cartItemRepo.FindByID(ctx, cartItemID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.CartItem{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return model.CartItem{}, dbError(err)
	}
	if item.UserID != userID {
		return model.CartItem{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	return item, nil
}

func (u *CartUsecase) buildCartResponse(ctx context.Context, userID int64) (CartResponse, error) {
	lines, err := u.cartItemRepo.ListWithProductsByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, dbError(err)
	}

	respItems := make([]CartItemResponse, 0, len(lines))
	total := decimal.Zero

	for _, l := range lines {
		item := CartItemResponse{
			ID:        l.Item.ID,
			ProductID: l.Item.ProductID,
			Quantity:  l.Item.Quantity,
		}
		if p := l.Product; p != nil {
			item.Product = &CartProductDTO{
				ID:       p.ID,
				Name:     p.Name,
				Price:    p.Price,
				Images:   p.Images,
				Stock:    p.Stock,
				IsActive: p.IsActive,
			}
			if p.IsActive {
				total = total.Add(p.Price.Mul(decimal.NewFromInt(l.Item.Quantity)))
			}
		}
		respItems = append(respItems, item)
	}

	return CartResponse{Items: respItems, Total: total}, nil
}
