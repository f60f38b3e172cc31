package repository

import (
	"context"
	"errors"

	"phonemarket/internal/domain/model"
	repo "phonemarket/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) ListByBuyerID(ctx context.Context, buyerID int64) ([]model.Order, error) {
	var items []model.Order
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at desc").
		Order("id desc").
		Find(&items).Error
	if err != nil {
		return []model.Order{}, err
	}
	return items, nil
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		return 0, err
	}
	return order.ID, nil
}

func (r *OrderGormRepository) UpdateStatusFrom(ctx context.Context, orderID int64, from []model.OrderStatus, to model.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status IN ?", orderID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) MarkPaymentRequested(ctx context.Context, orderID int64, reference string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, model.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":            model.OrderStatusProcessing,
			"payment_status":    model.PaymentStatusPending,
			"payment_reference": reference,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) ReleasePaymentRequest(ctx context.Context, orderID int64, reference string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND payment_reference = ?", orderID, reference).
		Where("status = ? AND payment_status = ?", model.OrderStatusProcessing, model.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":            model.OrderStatusPending,
			"payment_status":    model.PaymentStatusNone,
			"payment_reference": "",
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) ApplyPaymentResult(ctx context.Context, orderID int64, payment model.PaymentStatus, to model.OrderStatus) (bool, error) {
	//終端→終端は上書きしない
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Where("payment_status NOT IN ?", []model.PaymentStatus{model.PaymentStatusSuccessful, model.PaymentStatusFailed}).
		Where("status IN ?", []model.OrderStatus{model.OrderStatusPending, model.OrderStatusProcessing}).
		Updates(map[string]interface{}{
			"status":         to,
			"payment_status": payment,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) FindByIdempotencyKey(ctx context.Context, buyerID int64, key string) (model.Order, bool, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? AND idempotency_key = ?", buyerID, key).
		First(&o).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, false, nil
	}
	if err != nil {
		return model.Order{}, false, err
	}
	return o, true, nil
}

func (r *OrderGormRepository) ListAdmin(ctx context.Context, limit int) ([]repo.OrderWithBuyer, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var items []repo.OrderWithBuyer
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Select("orders.*, users.name AS buyer_name, users.email AS buyer_email").
		Joins("LEFT JOIN users ON users.id = orders.buyer_id").
		Order("orders.created_at desc").
		Order("orders.id desc").
		Limit(limit).
		Scan(&items).Error
	if err != nil {
		return []repo.OrderWithBuyer{}, err
	}
	return items, nil
}

func (r *OrderGormRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *OrderGormRepository) DeliveredRevenue(ctx context.Context) (decimal.Decimal, error) {
	var row struct {
		Total decimal.NullDecimal
	}
	err := r.db.WithContext(ctx).
		Table("order_items").
		Select("SUM(order_items.price * order_items.quantity) AS total").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status = ?", model.OrderStatusDelivered).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !row.Total.Valid {
		return decimal.Zero, nil
	}
	return row.Total.Decimal, nil
}
