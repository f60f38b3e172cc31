package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// 決済プロバイダ側のステータス
type PaymentStatus string

const (
	PaymentStatusNone       PaymentStatus = ""
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusSuccessful PaymentStatus = "SUCCESSFUL"
	PaymentStatusFailed     PaymentStatus = "FAILED"
)

// SUCCESSFUL/FAILEDは終端
func (p PaymentStatus) Terminal() bool {
	return p == PaymentStatusSuccessful || p == PaymentStatusFailed
}

// OrderStatusForPayment はプロバイダのステータスを注文ステータスに変換する。
// SUCCESSFUL→processing, FAILED→cancelled, それ以外はcurrentのまま。
func OrderStatusForPayment(p PaymentStatus, current OrderStatus) OrderStatus {
	switch p {
	case PaymentStatusSuccessful:
		return OrderStatusProcessing
	case PaymentStatusFailed:
		return OrderStatusCancelled
	default:
		return current
	}
}

type Order struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	BuyerID          int64           `gorm:"not null;index;uniqueIndex:idx_orders_buyer_idem" json:"buyer_id"`
	Status           OrderStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	Total            decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	IdempotencyKey   *string         `gorm:"type:varchar(255);uniqueIndex:idx_orders_buyer_idem" json:"-"`
	PaymentReference string          `gorm:"type:varchar(64);index" json:"payment_reference,omitempty"`
	PaymentStatus    PaymentStatus   `gorm:"type:varchar(20);not null;default:''" json:"payment_status,omitempty"`
	CreatedAt        time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
