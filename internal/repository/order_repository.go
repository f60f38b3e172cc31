package repository

import (
	"context"

	"phonemarket/internal/domain/model"

	"github.com/shopspring/decimal"
)

// 管理者用の注文一覧（購入者情報つき）
type OrderWithBuyer struct {
	model.Order
	BuyerName  string `json:"buyer_name"`
	BuyerEmail string `json:"buyer_email"`
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByBuyerID(ctx context.Context, buyerID int64) ([]model.Order, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	//現在のステータスがfromに含まれるときだけ更新する。更新できたらtrue
	UpdateStatusFrom(ctx context.Context, orderID int64, from []model.OrderStatus, to model.OrderStatus) (bool, error)

	//決済依頼の記録（pendingのときだけprocessingにする）
	MarkPaymentRequested(ctx context.Context, orderID int64, reference string) (bool, error)

	//プロバイダへの依頼が失敗したとき、referenceの依頼がまだPENDINGならpendingに戻す
	ReleasePaymentRequest(ctx context.Context, orderID int64, reference string) (bool, error)

	//決済結果の反映。payment_statusが終端でなく、statusがpending/processingのときだけ更新する
	ApplyPaymentResult(ctx context.Context, orderID int64, payment model.PaymentStatus, to model.OrderStatus) (bool, error)

	//検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, buyerID int64, key string) (model.Order, bool, error)

	//管理者用
	ListAdmin(ctx context.Context, limit int) ([]OrderWithBuyer, error)
	Count(ctx context.Context) (int64, error)
	//delivered注文の売上合計
	DeliveredRevenue(ctx context.Context) (decimal.Decimal, error)
}
