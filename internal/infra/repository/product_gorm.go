package repository

import (
	"context"
	"errors"
	"strings"

	"phonemarket/internal/domain/model"
	repo "phonemarket/internal/repository"

	"gorm.io/gorm"
)

type ProductGormRepository struct {
	db *gorm.DB
}

// DI
func NewProductGormRepository(db *gorm.DB) *ProductGormRepository {
	return &ProductGormRepository{db: db}
}

// 公開商品のみを、検索/ブランド/状態/価格帯/ソート/ページング付きで返す。
func (r *ProductGormRepository) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	var products []model.Product
	var total int64

	tx := r.db.WithContext(ctx).Model(&model.Product{})

	tx = tx.Where("is_active = ?", true)

	// q name/brand/modelを対象
	if s := strings.TrimSpace(q.Q); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		tx = tx.Where("LOWER(name) LIKE ? OR LOWER(brand) LIKE ? OR LOWER(model) LIKE ?", like, like, like)
	}
	if q.Brand != "" {
		tx = tx.Where("LOWER(brand) = ?", strings.ToLower(q.Brand))
	}
	if q.Condition != "" {
		tx = tx.Where("condition = ?", q.Condition)
	}

	//価格帯
	if q.MinPrice != nil {
		tx = tx.Where("price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		tx = tx.Where("price <= ?", *q.MaxPrice)
	}

	if err := tx.Count(&total).Error; err != nil {
		return []model.Product{}, 0, err
	}

	switch q.Sort {
	case "price_asc":
		tx = tx.Order("price asc").Order("id asc")
	case "price_desc":
		tx = tx.Order("price desc").Order("id desc")
	default:
		tx = tx.Order("created_at desc").Order("id desc")
	}

	offset := (q.Page - 1) * q.Limit
	if err := tx.Offset(offset).Limit(q.Limit).Find(&products).Error; err != nil {
		return []model.Product{}, 0, err
	}

	return products, total, nil
}

func (r *ProductGormRepository) ListBySeller(ctx context.Context, sellerID int64) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at desc").
		Order("id desc").
		Find(&products).Error
	if err != nil {
		return []model.Product{}, err
	}
	return products, nil
}

func (r *ProductGormRepository) ListAll(ctx context.Context, limit int) ([]repo.ProductWithSeller, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var items []repo.ProductWithSeller
	err := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Select("products.*, users.name AS seller_name, users.email AS seller_email").
		Joins("LEFT JOIN users ON users.id = products.seller_id").
		Order("products.created_at desc").
		Order("products.id desc").
		Limit(limit).
		Scan(&items).Error
	if err != nil {
		return []repo.ProductWithSeller{}, err
	}
	return items, nil
}

// IDで商品を取得
func (r *ProductGormRepository) FindByID(ctx context.Context, id int64) (model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Product{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Product{}, err
	}
	return p, nil
}

func (r *ProductGormRepository) FindWithSeller(ctx context.Context, id int64) (repo.ProductWithSeller, error) {
	var items []repo.ProductWithSeller
	err := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Select("products.*, users.name AS seller_name, users.email AS seller_email").
		Joins("LEFT JOIN users ON users.id = products.seller_id").
		Where("products.id = ?", id).
		Limit(1).
		Scan(&items).Error
	if err != nil {
		return repo.ProductWithSeller{}, err
	}
	if len(items) == 0 {
		return repo.ProductWithSeller{}, repo.ErrNotFound
	}
	return items[0], nil
}

func (r *ProductGormRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Product{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// 商品の作成
func (r *ProductGormRepository) Create(ctx context.Context, p model.Product) (model.Product, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// 商品の更新（自分の商品だけ）
func (r *ProductGormRepository) UpdateBySeller(ctx context.Context, sellerID int64, p model.Product) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND seller_id = ?", p.ID, sellerID).
		Updates(map[string]interface{}{
			"name":        p.Name,
			"description": p.Description,
			"price":       p.Price,
			"brand":       p.Brand,
			"model":       p.Model,
			"color":       p.Color,
			"storage":     p.Storage,
			"condition":   p.Condition,
			"images":      p.Images,
			"stock":       p.Stock,
			"is_active":   p.IsActive,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 商品削除（自分の商品だけ）
func (r *ProductGormRepository) DeleteBySeller(ctx context.Context, sellerID int64, id int64) error {
	res := r.db.WithContext(ctx).Where("seller_id = ?", sellerID).Delete(&model.Product{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}
