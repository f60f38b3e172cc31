package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"phonemarket/internal/domain/model"
	"phonemarket/internal/infra/momo"
	repo "phonemarket/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// 注文合計と依頼金額の許容差
var amountTolerance = decimal.RequireFromString("0.01")

type PaymentUsecase struct {
	tx       repo.TransactionManager
	users    repo.UserRepository
	gateway  PaymentGateway
	notifier Notifier
	log      Logger

	currency string
	newRef   func() string
}

func NewPaymentUsecase(
	tx repo.TransactionManager,
	users repo.UserRepository,
	gateway PaymentGateway,
	notifier Notifier,
	log Logger,
	currency string,
) *PaymentUsecase {
	if currency == "" {
		currency = "EUR"
	}
	return &PaymentUsecase{
		tx:       tx,
		users:    users,
		gateway:  gateway,
		notifier: notifier,
		log:      log,
		currency: currency,
		newRef:   uuid.NewString,
	}
}

type RequestPaymentInput struct {
	OrderID     int64            `json:"orderId"`
	Amount      *decimal.Decimal `json:"amount"`
	PhoneNumber string           `json:"phoneNumber"`
	Currency    string           `json:"currency"`
}

type RequestPaymentOutput struct {
	Success     bool   `json:"success"`
	ReferenceID string `json:"referenceId"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

type PaymentStatusOutput struct {
	OrderID       int64             `json:"orderId"`
	ReferenceID   string            `json:"referenceId"`
	PaymentStatus string            `json:"paymentStatus"`
	OrderStatus   model.OrderStatus `json:"orderStatus"`
	Amount        string            `json:"amount,omitempty"`
	Currency      string            `json:"currency,omitempty"`
	Reason        *string           `json:"reason"`
}

type WebhookOutput struct {
	Message string            `json:"message"`
	OrderID int64             `json:"orderId"`
	Status  model.OrderStatus `json:"status"`
}

// RequestPayment はMoMoへ支払い依頼を送り、注文をprocessingにする。
func (u *PaymentUsecase) RequestPayment(ctx context.Context, userID int64, in RequestPaymentInput) (RequestPaymentOutput, error) {
	if userID <= 0 {
		return RequestPaymentOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	phone := strings.TrimSpace(in.PhoneNumber)
	if in.OrderID <= 0 || in.Amount == nil || in.Amount.IsZero() || phone == "" {
		return RequestPaymentOutput{}, NewHTTPError(http.StatusBadRequest, "missing required fields: orderId, amount, phoneNumber")
	}
	currency := strings.TrimSpace(in.Currency)
	if currency == "" {
		currency = u.currency
	}

	var order model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, in.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return wrapHTTPError(http.StatusNotFound, "order not found", ErrOrderNotFound)
		}
		if err != nil {
			return dbError(err)
		}
		order = o
		return nil
	})
	if err != nil {
		return RequestPaymentOutput{}, err
	}

	if order.BuyerID != userID {
		return RequestPaymentOutput{}, NewHTTPError(http.StatusForbidden, "unauthorized access to order")
	}
	if order.Status != model.OrderStatusPending {
		return RequestPaymentOutput{}, NewHTTPError(http.StatusBadRequest, "order is not in pending status")
	}
	// 金額が合わなければプロバイダに送らない
	if order.Total.Sub(*in.Amount).Abs().GreaterThan(amountTolerance) {
		return RequestPaymentOutput{}, badRequest(ErrAmountMismatch)
	}

	// 先に注文を確保してからプロバイダに送る。確保できなければ依頼は出さない
	ref := u.newRef()
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().MarkPaymentRequested(ctx, order.ID, ref)
		if err != nil {
			return dbError(err)
		}
		if !ok {
			return NewHTTPError(http.StatusConflict, "order is no longer pending")
		}
		return nil
	})
	if err != nil {
		return RequestPaymentOutput{}, err
	}

	req := momo.NewRequestToPay(order.Total.StringFixed(2), currency, strconv.FormatInt(order.ID, 10), phone)
	if err := u.gateway.RequestToPay(ctx, ref, req); err != nil {
		u.log.Errorf("order %d: momo requesttopay: %v", order.ID, err)
		u.releasePaymentRequest(ctx, order.ID, ref)
		return RequestPaymentOutput{}, wrapHTTPError(http.StatusServiceUnavailable, "payment service temporarily unavailable", err)
	}

	//依頼は送信済みなので監査ログの失敗はログだけ残す
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  userID,
			Action:       model.AuditActionRequestPayment,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   order.ID,
			BeforeJSON:   statusJSON(order.Status, order.PaymentStatus),
			AfterJSON:    statusJSON(model.OrderStatusProcessing, model.PaymentStatusPending),
			CreatedAt:    time.Now(),
		})
	})
	if err != nil {
		u.log.Errorf("order %d: audit log for payment request %s: %v", order.ID, ref, err)
	}

	return RequestPaymentOutput{
		Success:     true,
		ReferenceID: ref,
		Status:      string(model.PaymentStatusPending),
		Message:     "Payment request sent. Please check your phone for MoMo prompt.",
	}, nil
}

// 確保した注文をpendingに戻す（再依頼できるようにする）
func (u *PaymentUsecase) releasePaymentRequest(ctx context.Context, orderID int64, ref string) {
	//リクエストが切断されていても戻す
	ctx = context.WithoutCancel(ctx)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().ReleasePaymentRequest(ctx, orderID, ref)
		if err != nil {
			return err
		}
		if !ok {
			u.log.Warnf("order %d: payment request %s already moved on, not released", orderID, ref)
		}
		return nil
	})
	if err != nil {
		u.log.Errorf("order %d: release payment request %s: %v", orderID, ref, err)
	}
}

// CheckStatus はMoMoに状態を照会して注文に反映する（本人か管理者のみ）。
func (u *PaymentUsecase) CheckStatus(ctx context.Context, userID int64, role model.Role, orderID int64, referenceID string) (PaymentStatusOutput, error) {
	if userID <= 0 {
		return PaymentStatusOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	referenceID = strings.TrimSpace(referenceID)
	if orderID <= 0 || referenceID == "" {
		return PaymentStatusOutput{}, NewHTTPError(http.StatusBadRequest, "order id and reference id are required")
	}

	var order model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return wrapHTTPError(http.StatusNotFound, "order not found", ErrOrderNotFound)
		}
		if err != nil {
			return dbError(err)
		}
		order = o
		return nil
	})
	if err != nil {
		return PaymentStatusOutput{}, err
	}

	if order.BuyerID != userID && role != model.RoleAdmin {
		return PaymentStatusOutput{}, NewHTTPError(http.StatusForbidden, "unauthorized access to order")
	}
	if order.PaymentReference != referenceID {
		return PaymentStatusOutput{}, NewHTTPError(http.StatusBadRequest, "reference id does not match order")
	}

	res, err := u.gateway.GetRequestToPayStatus(ctx, referenceID)
	if err != nil {
		u.log.Errorf("order %d: momo status %s: %v", orderID, referenceID, err)
		return PaymentStatusOutput{}, wrapHTTPError(http.StatusServiceUnavailable, "failed to check payment status", err)
	}

	updated, err := u.reconcile(ctx, orderID, model.PaymentStatus(res.Status))
	if err != nil {
		return PaymentStatusOutput{}, err
	}

	out := PaymentStatusOutput{
		OrderID:       orderID,
		ReferenceID:   referenceID,
		PaymentStatus: res.Status,
		OrderStatus:   updated.Status,
		Amount:        res.Amount.String(),
		Currency:      res.Currency,
	}
	if !res.Reason.IsZero() {
		s := res.Reason.String()
		out.Reason = &s
	}
	return out, nil
}

// HandleWebhook はMoMoのコールバックを注文に反映する。externalIdが注文ID。
func (u *PaymentUsecase) HandleWebhook(ctx context.Context, payload momo.RequestToPayResult) (WebhookOutput, error) {
	ext := strings.TrimSpace(payload.ExternalID.String())
	if ext == "" {
		return WebhookOutput{}, NewHTTPError(http.StatusBadRequest, "external id (order id) is required")
	}
	orderID, err := strconv.ParseInt(ext, 10, 64)
	if err != nil || orderID <= 0 {
		u.log.Warnf("momo webhook: unknown order %q", ext)
		return WebhookOutput{}, wrapHTTPError(http.StatusNotFound, "order not found", ErrOrderNotFound)
	}

	updated, err := u.reconcile(ctx, orderID, model.PaymentStatus(payload.Status))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			u.log.Warnf("momo webhook: unknown order %d", orderID)
		}
		return WebhookOutput{}, err
	}

	u.log.Infof("momo webhook: order %d payment=%s status=%s", orderID, payload.Status, updated.Status)
	return WebhookOutput{
		Message: "Webhook processed successfully",
		OrderID: orderID,
		Status:  updated.Status,
	}, nil
}

// reconcile はプロバイダのステータスを注文に反映する（ポーリングとwebhookの共通処理）。
// 終端ステータスのみ書き込み、既に終端が記録されていれば何もしない。
func (u *PaymentUsecase) reconcile(ctx context.Context, orderID int64, payment model.PaymentStatus) (model.Order, error) {
	var (
		out     model.Order
		changed bool
	)

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return wrapHTTPError(http.StatusNotFound, "order not found", ErrOrderNotFound)
		}
		if err != nil {
			return dbError(err)
		}
		out = o

		//PENDINGや未知の値は保留扱い
		if !payment.Terminal() {
			return nil
		}

		to := model.OrderStatusForPayment(payment, o.Status)
		ok, err := r.Orders().ApplyPaymentResult(ctx, orderID, payment, to)
		if err != nil {
			return dbError(err)
		}
		if !ok {
			//他の経路が先に確定させた
			latest, err := r.Orders().FindByID(ctx, orderID)
			if err != nil {
				return dbError(err)
			}
			out = latest
			return nil
		}

		if to == model.OrderStatusCancelled {
			items, err := r.OrderItems().ListByOrderID(ctx, orderID)
			if err != nil {
				return dbError(err)
			}
			for _, it := range items {
				if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
					return dbError(err)
				}
			}
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  model.AuditActorProvider,
			Action:       model.AuditActionReconcilePayment,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   statusJSON(o.Status, o.PaymentStatus),
			AfterJSON:    statusJSON(to, payment),
			CreatedAt:    time.Now(),
		}); err != nil {
			return dbError(err)
		}

		out.Status = to
		out.PaymentStatus = payment
		changed = true
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	if changed {
		u.notifyPaymentResult(ctx, out)
	}
	return out, nil
}

func (u *PaymentUsecase) notifyPaymentResult(ctx context.Context, order model.Order) {
	buyer, err := u.users.FindByID(ctx, order.BuyerID)
	if err != nil {
		u.log.Warnf("order %d: load buyer for notification: %v", order.ID, err)
		return
	}
	if err := u.notifier.PaymentResult(ctx, *buyer, order); err != nil {
		u.log.Warnf("order %d: send payment result: %v", order.ID, err)
	}
}

func statusJSON(status model.OrderStatus, payment model.PaymentStatus) string {
	b, _ := json.Marshal(struct {
		Status        model.OrderStatus   `json:"status"`
		PaymentStatus model.PaymentStatus `json:"payment_status"`
	}{status, payment})
	return string(b)
}
