package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"phonemarket/internal/domain/model"
	repo "phonemarket/internal/repository"

	"github.com/shopspring/decimal"
)

const defaultAdminListLimit = 50

type AdminUsecase struct {
	tx        repo.TransactionManager
	users     repo.UserRepository
	products  repo.ProductRepository
	orders    repo.OrderRepository
	auditRepo repo.AuditLogRepository
}

func NewAdminUsecase(
	tx repo.TransactionManager,
	users repo.UserRepository,
	products repo.ProductRepository,
	orders repo.OrderRepository,
	auditRepo repo.AuditLogRepository,
) *AdminUsecase {
	return &AdminUsecase{tx: tx, users: users, products: products, orders: orders, auditRepo: auditRepo}
}

type AdminUpdateOrderStatusInput struct {
	Status string `json:"status" validate:"required"`
}

type AdminOrderOutput struct {
	OrderOutput
	BuyerName  string `json:"buyer_name"`
	BuyerEmail string `json:"buyer_email"`
}

type AdminStatsOutput struct {
	TotalUsers    int64           `json:"totalUsers"`
	TotalProducts int64           `json:"totalProducts"`
	TotalOrders   int64           `json:"totalOrders"`
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
}

func normalizeLimit(limit int) (int, error) {
	if limit == 0 {
		return defaultAdminListLimit, nil
	}
	if limit < 1 || limit > 200 {
		return 0, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	return limit, nil
}

// 注文一覧（新しい順、購入者つき）
func (u *AdminUsecase) ListOrders(ctx context.Context, limit int) ([]AdminOrderOutput, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return []AdminOrderOutput{}, err
	}

	var outs []AdminOrderOutput

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListAdmin(ctx, limit)
		if err != nil {
			return dbError(err)
		}

		outs = make([]AdminOrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return dbError(err)
			}
			outs = append(outs, AdminOrderOutput{
				OrderOutput: toOrderOutput(o.Order, items),
				BuyerName:   o.BuyerName,
				BuyerEmail:  o.BuyerEmail,
			})
		}
		return nil
	})

	if err != nil {
		return []AdminOrderOutput{}, err
	}
	return outs, nil
}

// ステータス更新（cancelledなら在庫戻し）
func (u *AdminUsecase) UpdateOrderStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) (OrderOutput, error) {
	if actorAdminUserID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	newStatus := model.OrderStatus(strings.ToLower(strings.TrimSpace(in.Status)))
	if !newStatus.Valid() {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 注文取得
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return wrapHTTPError(http.StatusNotFound, "order not found", ErrOrderNotFound)
		}
		if err != nil {
			return dbError(err)
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return dbError(err)
		}

		// すでに同じなら何もしない（200）
		if o.Status == newStatus {
			out = toOrderOutput(o, items)
			return nil
		}
		// 終端ガード
		if o.Status == model.OrderStatusCancelled {
			return NewHTTPError(http.StatusBadRequest, "cannot change cancelled order")
		}
		if o.Status == model.OrderStatusDelivered {
			return NewHTTPError(http.StatusBadRequest, "cannot change delivered order")
		}

		// 読んだ時点のステータスのときだけ更新
		ok, err := r.Orders().UpdateStatusFrom(ctx, orderID, []model.OrderStatus{o.Status}, newStatus)
		if err != nil {
			return dbError(err)
		}
		if !ok {
			return NewHTTPError(http.StatusConflict, "order status changed, please retry")
		}

		if newStatus == model.OrderStatusCancelled {
			for _, it := range items {
				if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
					return dbError(err)
				}
			}
		}

		//監査ログ（UPDATE_ORDER_STATUS）
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   statusJSON(o.Status, o.PaymentStatus),
			AfterJSON:    statusJSON(newStatus, o.PaymentStatus),
			CreatedAt:    time.Now(),
		}); err != nil {
			return dbError(err)
		}

		o.Status = newStatus
		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 全商品（非公開も含む）
func (u *AdminUsecase) ListProducts(ctx context.Context, limit int) ([]repo.ProductWithSeller, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return []repo.ProductWithSeller{}, err
	}
	items, err := u.products.ListAll(ctx, limit)
	if err != nil {
		return []repo.ProductWithSeller{}, dbError(err)
	}
	return items, nil
}

func (u *AdminUsecase) ListUsers(ctx context.Context, limit int) ([]UserDTO, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return []UserDTO{}, err
	}
	users, err := u.users.List(ctx, limit)
	if err != nil {
		return []UserDTO{}, dbError(err)
	}
	outs := make([]UserDTO, 0, len(users))
	for i := range users {
		outs = append(outs, toUserDTO(&users[i]))
	}
	return outs, nil
}

// 売上はdeliveredの注文のみ
func (u *AdminUsecase) Stats(ctx context.Context) (AdminStatsOutput, error) {
	users, err := u.users.Count(ctx)
	if err != nil {
		return AdminStatsOutput{}, dbError(err)
	}
	products, err := u.products.Count(ctx)
	if err != nil {
		return AdminStatsOutput{}, dbError(err)
	}
	orders, err := u.orders.Count(ctx)
	if err != nil {
		return AdminStatsOutput{}, dbError(err)
	}
	revenue, err := u.orders.DeliveredRevenue(ctx)
	if err != nil {
		return AdminStatsOutput{}, dbError(err)
	}
	return AdminStatsOutput{
		TotalUsers:    users,
		TotalProducts: products,
		TotalOrders:   orders,
		TotalRevenue:  revenue,
	}, nil
}

type AuditLogQuery struct {
	Action  string
	OrderID int64
	Limit   int
}

// 監査ログ（注文単位で絞れる）
func (u *AdminUsecase) ListAuditLogs(ctx context.Context, q AuditLogQuery) ([]model.AuditLog, error) {
	limit, err := normalizeLimit(q.Limit)
	if err != nil {
		return []model.AuditLog{}, err
	}
	f := repo.AuditLogFilter{Limit: limit}
	if q.Action != "" {
		a := model.AuditAction(strings.ToUpper(q.Action))
		f.Action = &a
	}
	if q.OrderID > 0 {
		rt := model.AuditResourceOrder
		f.ResourceType = &rt
		f.ResourceID = &q.OrderID
	}
	logs, err := u.auditRepo.List(ctx, f)
	if err != nil {
		return []model.AuditLog{}, dbError(err)
	}
	return logs, nil
}
