package usecase

import (
	"context"

	"phonemarket/internal/domain/model"
	"phonemarket/internal/infra/momo"
)

// echoのロガー（gommon/log）をそのまま渡せる
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// MoMo Collection API
type PaymentGateway interface {
	RequestToPay(ctx context.Context, referenceID string, req momo.RequestToPay) error
	GetRequestToPayStatus(ctx context.Context, referenceID string) (momo.RequestToPayResult, error)
}

// 通知（失敗してもログだけ）
type Notifier interface {
	OrderPlaced(ctx context.Context, buyer model.User, order model.Order, items []model.OrderItem) error
	PaymentResult(ctx context.Context, buyer model.User, order model.Order) error
}
