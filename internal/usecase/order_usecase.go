package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"phonemarket/internal/domain/model"
	repo "phonemarket/internal/repository"

	"github.com/shopspring/decimal"
)

type OrderUsecase struct {
	tx       repo.TransactionManager
	users    repo.UserRepository
	notifier Notifier
	log      Logger
}

func NewOrderUsecase(tx repo.TransactionManager, users repo.UserRepository, notifier Notifier, log Logger) *OrderUsecase {
	return &OrderUsecase{tx: tx, users: users, notifier: notifier, log: log}
}

type PlaceOrderInput struct {
	//任意。同じキーなら同じ注文を返す
	IdempotencyKey string
}

type OrderItemOutput struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
}

type OrderOutput struct {
	ID               int64               `json:"id"`
	BuyerID          int64               `json:"buyer_id"`
	Status           model.OrderStatus   `json:"status"`
	Total            decimal.Decimal     `json:"total"`
	PaymentStatus    model.PaymentStatus `json:"payment_status,omitempty"`
	PaymentReference string              `json:"payment_reference,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	Items            []OrderItemOutput   `json:"items"`
}

// PlaceOrder はカートを注文に確定する。
// 検証、注文作成、明細作成、在庫減算、カート削除を1トランザクションで行う。
func (u *OrderUsecase) PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > 255 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid idempotency key")
	}

	var (
		out     OrderOutput
		created model.Order
		items   []model.OrderItem
		replay  bool
	)

	//注文処理はトランザクション
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		if key != "" {
			existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
			if err != nil {
				return dbError(err)
			}
			if found {
				its, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
				if err != nil {
					return dbError(err)
				}
				out = toOrderOutput(existing, its)
				replay = true
				return nil
			}
		}

		lines, err := r.CartItems().ListWithProductsByUserID(ctx, userID)
		if err != nil {
			return dbError(err)
		}
		if len(lines) == 0 {
			return badRequest(ErrEmptyCart)
		}

		//書き込みの前に全行を検証
		total := decimal.Zero
		items = make([]model.OrderItem, 0, len(lines))
		for _, l := range lines {
			p := l.Product
			if p == nil {
				return badRequest(&ProductUnavailableError{ProductName: fmt.Sprintf("#%d", l.Item.ProductID)})
			}
			if !p.IsActive {
				return badRequest(&ProductUnavailableError{ProductName: p.Name})
			}
			if l.Item.Quantity > p.Stock {
				return badRequest(&InsufficientStockError{ProductName: p.Name, Available: p.Stock, Requested: l.Item.Quantity})
			}

			//スナップショット
			items = append(items, model.OrderItem{
				ProductID:           p.ID,
				ProductNameSnapshot: p.Name,
				Quantity:            l.Item.Quantity,
				Price:               p.Price,
			})
			total = total.Add(p.Price.Mul(decimal.NewFromInt(l.Item.Quantity)))
		}

		// 注文作成
		order := model.Order{
			BuyerID: userID,
			Status:  model.OrderStatusPending,
			Total:   total,
		}
		if key != "" {
			order.IdempotencyKey = &key
		}
		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			return dbError(err)
		}
		order.ID = orderID

		//注文明細一括作成
		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return dbError(err)
		}

		//在庫減算（検証後に他の注文が先に減らしていたらロールバック）
		for _, it := range items {
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, it.ProductID, it.Quantity)
			if err != nil {
				return dbError(err)
			}
			if !ok {
				available := int64(0)
				if p, err := r.Products().FindByID(ctx, it.ProductID); err == nil {
					available = p.Stock
				}
				return badRequest(&InsufficientStockError{ProductName: it.ProductNameSnapshot, Available: available, Requested: it.Quantity})
			}
		}

		//カートを空にする
		if err := r.CartItems().DeleteByUserID(ctx, userID); err != nil {
			return dbError(err)
		}

		saved, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return dbError(err)
		}
		created = saved
		for i := range items {
			items[i].OrderID = orderID
		}
		out = toOrderOutput(created, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if !replay {
		u.notifyOrderPlaced(ctx, userID, created, items)
	}
	return out, nil
}

// 通知はベストエフォート
func (u *OrderUsecase) notifyOrderPlaced(ctx context.Context, userID int64, order model.Order, items []model.OrderItem) {
	buyer, err := u.users.FindByID(ctx, userID)
	if err != nil {
		u.log.Warnf("order %d: load buyer for notification: %v", order.ID, err)
		return
	}
	if err := u.notifier.OrderPlaced(ctx, *buyer, order, items); err != nil {
		u.log.Warnf("order %d: send confirmation: %v", order.ID, err)
	}
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListByBuyerID(ctx, userID)
		if err != nil {
			return dbError(err)
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return dbError(err)
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

// 本人か管理者だけ
func (u *OrderUsecase) GetOrderDetail(ctx context.Context, userID int64, role model.Role, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return wrapHTTPError(http.StatusNotFound, "order not found", ErrOrderNotFound)
		}
		if err != nil {
			return dbError(err)
		}
		if o.BuyerID != userID && role != model.RoleAdmin {
			return NewHTTPError(http.StatusForbidden, "forbidden")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return dbError(err)
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Price:     it.Price,
			Quantity:  it.Quantity,
		})
	}

	return OrderOutput{
		ID:               o.ID,
		BuyerID:          o.BuyerID,
		Status:           o.Status,
		Total:            o.Total,
		PaymentStatus:    o.PaymentStatus,
		PaymentReference: o.PaymentReference,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		Items:            outItems,
	}
}
