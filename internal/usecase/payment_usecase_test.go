package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"phonemarket/internal/domain/model"
	"phonemarket/internal/infra/momo"
	repo "phonemarket/internal/repository"
	"phonemarket/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type paymentFixture struct {
	*orderFixture
	gateway *GatewayMock
}

func newPaymentFixture() *paymentFixture {
	return &paymentFixture{orderFixture: newOrderFixture(), gateway: new(GatewayMock)}
}

func (f *paymentFixture) usecase() *usecase.PaymentUsecase {
	return usecase.NewPaymentUsecase(f.tx, f.users, f.gateway, f.notifier, nopLogger{}, "EUR")
}

func amount(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func pendingOrder() model.Order {
	return model.Order{ID: 10, BuyerID: 7, Status: model.OrderStatusPending, Total: dec("25.00")}
}

func TestPaymentUsecase_RequestPayment_Success(t *testing.T) {
	f := newPaymentFixture()
	f.orders.On("FindByID", mock.Anything, int64(10)).Return(pendingOrder(), nil)
	f.gateway.On("RequestToPay", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(r momo.RequestToPay) bool {
		return r.ExternalID == "10" && r.Amount == "25.00" && r.Currency == "EUR" && r.Payer.PartyID == "46733123450"
	})).Return(nil)
	f.orders.On("MarkPaymentRequested", mock.Anything, int64(10), mock.AnythingOfType("string")).Return(true, nil)
	f.audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionRequestPayment && l.ActorUserID == 7 && l.ResourceID == 10
	})).Return(nil)

	out, err := f.usecase().RequestPayment(context.Background(), 7, usecase.RequestPaymentInput{
		OrderID: 10, Amount: amount("25.005"), PhoneNumber: "46733123450",
	})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.NotEmpty(t, out.ReferenceID)
	assert.Equal(t, "PENDING", out.Status)
	assert.Equal(t, "Payment request sent. Please check your phone for MoMo prompt.", out.Message)

	// 同じ参照IDで記録される
	f.gateway.AssertCalled(t, "RequestToPay", mock.Anything, out.ReferenceID, mock.Anything)
	f.orders.AssertCalled(t, "MarkPaymentRequested", mock.Anything, int64(10), out.ReferenceID)
	f.audit.AssertExpectations(t)
}

func TestPaymentUsecase_RequestPayment_MissingFields(t *testing.T) {
	f := newPaymentFixture()
	_, err := f.usecase().RequestPayment(context.Background(), 7, usecase.RequestPaymentInput{OrderID: 10})
	assertStatus(t, err, http.StatusBadRequest)
	f.tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestPaymentUsecase_RequestPayment_AmountMismatch(t *testing.T) {
	f := newPaymentFixture()
	f.orders.On("FindByID", mock.Anything, int64(10)).Return(pendingOrder(), nil)

	_, err := f.usecase().RequestPayment(context.Background(), 7, usecase.RequestPaymentInput{
		OrderID: 10, Amount: amount("25.02"), PhoneNumber: "46733123450",
	})
	assertStatus(t, err, http.StatusBadRequest)
	assert.ErrorIs(t, err, usecase.ErrAmountMismatch)
	f.gateway.AssertNotCalled(t, "RequestToPay", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentUsecase_RequestPayment_Guards(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		f := newPaymentFixture()
		f.orders.On("FindByID", mock.Anything, int64(10)).Return(model.Order{}, repo.ErrNotFound)
		_, err := f.usecase().RequestPayment(context.Background(), 7, usecase.RequestPaymentInput{
			OrderID: 10, Amount: amount("25.00"), PhoneNumber: "46733123450",
		})
		assertStatus(t, err, http.StatusNotFound)
	})

	t.Run("other buyer", func(t *testing.T) {
		f := newPaymentFixture()
		f.orders.On("FindByID", mock.Anything, int64(10)).Return(pendingOrder(), nil)
		_, err := f.usecase().RequestPayment(context.Background(), 8, usecase.RequestPaymentInput{
			OrderID: 10, Amount: amount("25.00"), PhoneNumber: "46733123450",
		})
		assertStatus(t, err, http.StatusForbidden)
		assertErrContains(t, err, "unauthorized access to order")
	})

	t.Run("not pending", func(t *testing.T) {
		f := newPaymentFixture()
		o := pendingOrder()
		o.Status = model.OrderStatusProcessing
		f.orders.On("FindByID", mock.Anything, int64(10)).Return(o, nil)
		_, err := f.usecase().RequestPayment(context.Background(), 7, usecase.RequestPaymentInput{
			OrderID: 10, Amount: amount("25.00"), PhoneNumber: "46733123450",
		})
		assertStatus(t, err, http.StatusBadRequest)
		assertErrContains(t, err, "order is not in pending status")
	})
}

func TestPaymentUsecase_RequestPayment_GatewayFailure(t *testing.T) {
	f := newPaymentFixture()
	f.orders.On("FindByID", mock.Anything, int64(10)).Return(pendingOrder(), nil)
	f.orders.On("MarkPaymentRequested", mock.Anything, int64(10), mock.AnythingOfType("string")).Return(true, nil)
	f.gateway.On("RequestToPay", mock.Anything, mock.Anything, mock.Anything).Return(&momo.APIError{Op: "requesttopay", StatusCode: 500})
	f.orders.On("ReleasePaymentRequest", mock.Anything, int64(10), mock.AnythingOfType("string")).Return(true, nil)

	_, err := f.usecase().RequestPayment(context.Background(), 7, usecase.RequestPaymentInput{
		OrderID: 10, Amount: amount("25.00"), PhoneNumber: "46733123450",
	})
	assertStatus(t, err, http.StatusServiceUnavailable)

	// 確保したのと同じ参照IDで戻す
	ref := f.orders.Calls[1].Arguments.String(2)
	f.orders.AssertCalled(t, "ReleasePaymentRequest", mock.Anything, int64(10), ref)
	f.audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPaymentUsecase_RequestPayment_NoLongerPending(t *testing.T) {
	f := newPaymentFixture()
	f.orders.On("FindByID", mock.Anything, int64(10)).Return(pendingOrder(), nil)
	f.orders.On("MarkPaymentRequested", mock.Anything, int64(10), mock.Anything).Return(false, nil)

	_, err := f.usecase().RequestPayment(context.Background(), 7, usecase.RequestPaymentInput{
		OrderID: 10, Amount: amount("25.00"), PhoneNumber: "46733123450",
	})
	assertStatus(t, err, http.StatusConflict)
	f.gateway.AssertNotCalled(t, "RequestToPay", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentUsecase_RequestPayment_ClaimsBeforeProviderCall(t *testing.T) {
	f := newPaymentFixture()
	f.orders.On("FindByID", mock.Anything, int64(10)).Return(pendingOrder(), nil)
	f.orders.On("MarkPaymentRequested", mock.Anything, int64(10), mock.Anything).Return(true, nil).Once()
	f.orders.On("MarkPaymentRequested", mock.Anything, int64(10), mock.Anything).Return(false, nil)
	f.audit.On("Create", mock.Anything, mock.Anything).Return(nil)

	uc := f.usecase()
	in := usecase.RequestPaymentInput{OrderID: 10, Amount: amount("25.00"), PhoneNumber: "46733123450"}

	// プロバイダ呼び出し中に同じ注文へ二重に依頼が来る
	var nestedErr error
	f.gateway.On("RequestToPay", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			_, nestedErr = uc.RequestPayment(context.Background(), 7, in)
		}).Return(nil).Once()

	_, err := uc.RequestPayment(context.Background(), 7, in)
	require.NoError(t, err)
	assertStatus(t, nestedErr, http.StatusConflict)
	f.gateway.AssertNumberOfCalls(t, "RequestToPay", 1)
}

func requestedOrder() model.Order {
	return model.Order{
		ID: 10, BuyerID: 7, Status: model.OrderStatusProcessing, Total: dec("25.00"),
		PaymentReference: "ref-1", PaymentStatus: model.PaymentStatusPending,
	}
}

func TestPaymentUsecase_CheckStatus_Successful(t *testing.T) {
	f := newPaymentFixture()
	f.orders.On("FindByID", mock.Anything, int64(10)).Return(requestedOrder(), nil)
	f.gateway.On("GetRequestToPayStatus", mock.Anything, "ref-1").Return(momo.RequestToPayResult{
		ExternalID: "10", Amount: "25.00", Currency: "EUR", Status: "SUCCESSFUL",
	}, nil)
	f.orders.On("ApplyPaymentResult", mock.Anything, int64(10), model.PaymentStatusSuccessful, model.OrderStatusProcessing).Return(true, nil)
	f.audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionReconcilePayment && l.ActorUserID == model.AuditActorProvider
	})).Return(nil)
	f.users.On("FindByID", mock.Anything, int64(7)).Return(&model.User{ID: 7}, nil)
	f.notifier.On("PaymentResult", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	out, err := f.usecase().CheckStatus(context.Background(), 7, model.RoleBuyer, 10, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "SUCCESSFUL", out.PaymentStatus)
	assert.Equal(t, model.OrderStatusProcessing, out.OrderStatus)
	assert.Nil(t, out.Reason)

	f.inventory.AssertNotCalled(t, "IncreaseStock", mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertExpectations(t)
}

func TestPaymentUsecase_CheckStatus_PendingDoesNotWrite(t *testing.T) {
	f := newPaymentFixture()
	f.orders.On("FindByID", mock.Anything, int64(10)).Return(requestedOrder(), nil)
	f.gateway.On("GetRequestToPayStatus", mock.Anything, "ref-1").Return(momo.RequestToPayResult{Status: "PENDING"}, nil)

	out, err := f.usecase().CheckStatus(context.Background(), 7, model.RoleBuyer, 10, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "PENDING", out.PaymentStatus)
	assert.Equal(t, model.OrderStatusProcessing, out.OrderStatus)
	f.orders.AssertNotCalled(t, "ApplyPaymentResult", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPaymentUsecase_CheckStatus_Guards(t *testing.T) {
	t.Run("not found before provider call", func(t *testing.T) {
		f := newPaymentFixture()
		f.orders.On("FindByID", mock.Anything, int64(10)).Return(model.Order{}, repo.ErrNotFound)
		_, err := f.usecase().CheckStatus(context.Background(), 7, model.RoleBuyer, 10, "ref-1")
		assertStatus(t, err, http.StatusNotFound)
		f.gateway.AssertNotCalled(t, "GetRequestToPayStatus", mock.Anything, mock.Anything)
	})

	t.Run("other buyer", func(t *testing.T) {
		f := newPaymentFixture()
		f.orders.On("FindByID", mock.Anything, int64(10)).Return(requestedOrder(), nil)
		_, err := f.usecase().CheckStatus(context.Background(), 8, model.RoleBuyer, 10, "ref-1")
		assertStatus(t, err, http.StatusForbidden)
	})

	t.Run("reference mismatch", func(t *testing.T) {
		f := newPaymentFixture()
		f.orders.On("FindByID", mock.Anything, int64(10)).Return(requestedOrder(), nil)
		_, err := f.usecase().CheckStatus(context.Background(), 7, model.RoleBuyer, 10, "ref-2")
		assertStatus(t, err, http.StatusBadRequest)
	})

	t.Run("provider down", func(t *testing.T) {
		f := newPaymentFixture()
		f.orders.On("FindByID", mock.Anything, int64(10)).Return(requestedOrder(), nil)
		f.gateway.On("GetRequestToPayStatus", mock.Anything, "ref-1").Return(momo.RequestToPayResult{}, errors.New("timeout"))
		_, err := f.usecase().CheckStatus(context.Background(), 7, model.RoleBuyer, 10, "ref-1")
		assertStatus(t, err, http.StatusServiceUnavailable)
		assertErrContains(t, err, "failed to check payment status")
	})
}

func TestPaymentUsecase_HandleWebhook_FailedRestocks(t *testing.T) {
	f := newPaymentFixture()
	f.orders.On("FindByID", mock.Anything, int64(10)).Return(requestedOrder(), nil)
	f.orders.On("ApplyPaymentResult", mock.Anything, int64(10), model.PaymentStatusFailed, model.OrderStatusCancelled).Return(true, nil)
	f.items.On("ListByOrderID", mock.Anything, int64(10)).Return([]model.OrderItem{
		{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1},
	}, nil)
	f.inventory.On("IncreaseStock", mock.Anything, int64(1), int64(2)).Return(nil)
	f.inventory.On("IncreaseStock", mock.Anything, int64(2), int64(1)).Return(nil)
	f.audit.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.users.On("FindByID", mock.Anything, int64(7)).Return(&model.User{ID: 7}, nil)
	f.notifier.On("PaymentResult", mock.Anything, mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.Status == model.OrderStatusCancelled && o.PaymentStatus == model.PaymentStatusFailed
	})).Return(nil)

	out, err := f.usecase().HandleWebhook(context.Background(), momo.RequestToPayResult{
		ExternalID: "10", Status: "FAILED", Reason: momo.Reason{Code: "APPROVAL_REJECTED"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Webhook processed successfully", out.Message)
	assert.Equal(t, model.OrderStatusCancelled, out.Status)
	f.inventory.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestPaymentUsecase_HandleWebhook_AlreadyTerminal(t *testing.T) {
	f := newPaymentFixture()
	settled := requestedOrder()
	settled.PaymentStatus = model.PaymentStatusSuccessful
	f.orders.On("FindByID", mock.Anything, int64(10)).Return(settled, nil)
	f.orders.On("ApplyPaymentResult", mock.Anything, int64(10), model.PaymentStatusFailed, model.OrderStatusCancelled).Return(false, nil)

	out, err := f.usecase().HandleWebhook(context.Background(), momo.RequestToPayResult{ExternalID: "10", Status: "FAILED"})
	require.NoError(t, err)
	// 先に確定した結果のまま
	assert.Equal(t, model.OrderStatusProcessing, out.Status)
	f.inventory.AssertNotCalled(t, "IncreaseStock", mock.Anything, mock.Anything, mock.Anything)
	f.audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "PaymentResult", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentUsecase_HandleWebhook_UnknownOrder(t *testing.T) {
	t.Run("missing external id", func(t *testing.T) {
		f := newPaymentFixture()
		_, err := f.usecase().HandleWebhook(context.Background(), momo.RequestToPayResult{Status: "SUCCESSFUL"})
		assertStatus(t, err, http.StatusBadRequest)
	})

	t.Run("non numeric", func(t *testing.T) {
		f := newPaymentFixture()
		_, err := f.usecase().HandleWebhook(context.Background(), momo.RequestToPayResult{ExternalID: "abc", Status: "SUCCESSFUL"})
		assertStatus(t, err, http.StatusNotFound)
	})

	t.Run("not in db", func(t *testing.T) {
		f := newPaymentFixture()
		f.orders.On("FindByID", mock.Anything, int64(999)).Return(model.Order{}, repo.ErrNotFound)
		_, err := f.usecase().HandleWebhook(context.Background(), momo.RequestToPayResult{ExternalID: "999", Status: "SUCCESSFUL"})
		assertStatus(t, err, http.StatusNotFound)
		assert.ErrorIs(t, err, usecase.ErrOrderNotFound)
	})
}
