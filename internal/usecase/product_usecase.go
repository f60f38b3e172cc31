package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"phonemarket/internal/domain/model"
	repo "phonemarket/internal/repository"

	"github.com/shopspring/decimal"
)

type ProductUsecase struct {
	productRepo repo.ProductRepository
}

// DI
func NewProductUsecase(productRepo repo.ProductRepository) *ProductUsecase {
	return &ProductUsecase{productRepo: productRepo}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page      int
	Limit     int
	Q         string
	Brand     string
	Condition string
	MinPrice  *decimal.Decimal
	MaxPrice  *decimal.Decimal
	Sort      string
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// 出品・更新の入力
type ProductInput struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Brand       string          `json:"brand" validate:"required,max=100"`
	Model       string          `json:"model" validate:"required,max=100"`
	Color       string          `json:"color" validate:"max=50"`
	Storage     string          `json:"storage" validate:"max=50"`
	Condition   string          `json:"condition" validate:"required,oneof=new like_new good fair"`
	Images      []string        `json:"images"`
	Stock       int64           `json:"stock" validate:"gte=0"`
	IsActive    *bool           `json:"is_active"`
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "q too long")
	}
	if in.MinPrice != nil && in.MinPrice.IsNegative() {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "min_price must be >= 0")
	}
	if in.MaxPrice != nil && in.MaxPrice.IsNegative() {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && in.MinPrice.GreaterThan(*in.MaxPrice) {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "min_price must be <= max_price")
	}
	cond := model.Condition(in.Condition)
	if cond != "" && !cond.Valid() {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid condition")
	}
	switch in.Sort {
	case "", "new", "price_asc", "price_desc":
	default:
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid sort")
	}

	items, total, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:      in.Page,
		Limit:     in.Limit,
		Q:         strings.TrimSpace(in.Q),
		Brand:     strings.TrimSpace(in.Brand),
		Condition: cond,
		MinPrice:  in.MinPrice,
		MaxPrice:  in.MaxPrice,
		Sort:      in.Sort,
	})
	if err != nil {
		return ProductListOutput{}, dbError(err)
	}

	return ProductListOutput{
		Items: items,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

// 公開中のみ。出品者名つき
func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID int64) (repo.ProductWithSeller, error) {
	if productID <= 0 {
		return repo.ProductWithSeller{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	p, err := u.productRepo.FindWithSeller(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return repo.ProductWithSeller{}, NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		return repo.ProductWithSeller{}, dbError(err)
	}
	if !p.IsActive {
		return repo.ProductWithSeller{}, NewHTTPError(http.StatusNotFound, "product not found")
	}
	return p, nil
}

func (u *ProductUsecase) ListSellerProducts(ctx context.Context, sellerID int64) ([]model.Product, error) {
	if sellerID <= 0 {
		return []model.Product{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	items, err := u.productRepo.ListBySeller(ctx, sellerID)
	if err != nil {
		return []model.Product{}, dbError(err)
	}
	return items, nil
}

func (u *ProductUsecase) CreateProduct(ctx context.Context, sellerID int64, in ProductInput) (model.Product, error) {
	if sellerID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	p, err := buildProduct(in)
	if err != nil {
		return model.Product{}, err
	}
	p.SellerID = sellerID

	created, err := u.productRepo.Create(ctx, p)
	if err != nil {
		return model.Product{}, dbError(err)
	}
	return created, nil
}

// 自分の商品だけ更新できる（他人の商品は404）
func (u *ProductUsecase) UpdateProduct(ctx context.Context, sellerID int64, productID int64, in ProductInput) (model.Product, error) {
	if sellerID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	current, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && current.SellerID != sellerID) {
		return model.Product{}, NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		return model.Product{}, dbError(err)
	}

	p, err := buildProduct(in)
	if err != nil {
		return model.Product{}, err
	}
	if in.IsActive == nil {
		p.IsActive = current.IsActive
	}
	p.ID = productID
	p.SellerID = sellerID
	p.CreatedAt = current.CreatedAt

	if err := u.productRepo.UpdateBySeller(ctx, sellerID, p); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Product{}, NewHTTPError(http.StatusNotFound, "product not found")
		}
		return model.Product{}, dbError(err)
	}
	return p, nil
}

func (u *ProductUsecase) DeleteProduct(ctx context.Context, sellerID int64, productID int64) error {
	if sellerID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if err := u.productRepo.DeleteBySeller(ctx, sellerID, productID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "product not found")
		}
		return dbError(err)
	}
	return nil
}

func buildProduct(in ProductInput) (model.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if !in.Price.IsPositive() {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "price must be > 0")
	}
	if in.Stock < 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	cond := model.Condition(in.Condition)
	if !cond.Valid() {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid condition")
	}
	images := model.ImageURLs(in.Images)
	if err := images.Validate(); err != nil {
		return model.Product{}, wrapHTTPError(http.StatusBadRequest, err.Error(), err)
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	return model.Product{
		Name:        name,
		Description: in.Description,
		Price:       in.Price.Round(2),
		Brand:       strings.TrimSpace(in.Brand),
		Model:       strings.TrimSpace(in.Model),
		Color:       in.Color,
		Storage:     in.Storage,
		Condition:   cond,
		Images:      images,
		Stock:       in.Stock,
		IsActive:    active,
	}, nil
}
