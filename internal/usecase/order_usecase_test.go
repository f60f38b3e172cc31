package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"phonemarket/internal/domain/model"
	repo "phonemarket/internal/repository"
	"phonemarket/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type orderFixture struct {
	tx        *TxManagerMock
	orders    *OrderRepoMock
	items     *OrderItemRepoMock
	cart      *CartItemRepoMock
	inventory *InventoryRepoMock
	products  *ProductRepoMock
	audit     *AuditRepoMock
	users     *UserRepoMock
	notifier  *NotifierMock
}

func newOrderFixture() *orderFixture {
	f := &orderFixture{
		tx:        new(TxManagerMock),
		orders:    new(OrderRepoMock),
		items:     new(OrderItemRepoMock),
		cart:      new(CartItemRepoMock),
		inventory: new(InventoryRepoMock),
		products:  new(ProductRepoMock),
		audit:     new(AuditRepoMock),
		users:     new(UserRepoMock),
		notifier:  new(NotifierMock),
	}
	f.tx.Repos = &TxReposMock{
		orders:     f.orders,
		orderItems: f.items,
		cartItems:  f.cart,
		inventory:  f.inventory,
		products:   f.products,
		auditLogs:  f.audit,
	}
	f.tx.On("WithinTx", mock.Anything).Return(nil)
	return f
}

func (f *orderFixture) usecase() *usecase.OrderUsecase {
	return usecase.NewOrderUsecase(f.tx, f.users, f.notifier, nopLogger{})
}

func phone(id int64, name, price string, stock int64) *model.Product {
	return &model.Product{ID: id, Name: name, Price: dec(price), Stock: stock, IsActive: true}
}

func TestOrderUsecase_PlaceOrder_Success(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture()

	lines := []model.CartLine{
		{Item: model.CartItem{ID: 1, UserID: 7, ProductID: 1, Quantity: 2}, Product: phone(1, "Pixel 8", "10.00", 5)},
		{Item: model.CartItem{ID: 2, UserID: 7, ProductID: 2, Quantity: 1}, Product: phone(2, "iPhone 13", "5.00", 1)},
	}
	f.cart.On("ListWithProductsByUserID", mock.Anything, int64(7)).Return(lines, nil)
	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(o model.Order) bool {
		return o.BuyerID == 7 && o.Status == model.OrderStatusPending && o.Total.Equal(dec("25.00"))
	})).Return(int64(100), nil)
	f.items.On("CreateBulk", mock.Anything, int64(100), mock.Anything).Return(nil)
	f.inventory.On("DecreaseStockIfEnough", mock.Anything, int64(1), int64(2)).Return(true, nil)
	f.inventory.On("DecreaseStockIfEnough", mock.Anything, int64(2), int64(1)).Return(true, nil)
	f.cart.On("DeleteByUserID", mock.Anything, int64(7)).Return(nil)
	f.orders.On("FindByID", mock.Anything, int64(100)).Return(model.Order{
		ID: 100, BuyerID: 7, Status: model.OrderStatusPending, Total: dec("25.00"),
	}, nil)

	buyer := &model.User{ID: 7, Email: "buyer@example.com"}
	f.users.On("FindByID", mock.Anything, int64(7)).Return(buyer, nil)
	f.notifier.On("OrderPlaced", mock.Anything, *buyer, mock.Anything, mock.Anything).Return(nil)

	out, err := f.usecase().PlaceOrder(ctx, 7, usecase.PlaceOrderInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(100), out.ID)
	assert.Equal(t, model.OrderStatusPending, out.Status)
	assert.True(t, out.Total.Equal(dec("25.00")))
	require.Len(t, out.Items, 2)
	assert.Equal(t, "Pixel 8", out.Items[0].Name)
	assert.True(t, out.Items[0].Price.Equal(dec("10.00")))

	f.orders.AssertExpectations(t)
	f.items.AssertExpectations(t)
	f.inventory.AssertExpectations(t)
	f.cart.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestOrderUsecase_PlaceOrder_EmptyCart(t *testing.T) {
	f := newOrderFixture()
	f.cart.On("ListWithProductsByUserID", mock.Anything, int64(7)).Return([]model.CartLine{}, nil)

	_, err := f.usecase().PlaceOrder(context.Background(), 7, usecase.PlaceOrderInput{})
	assertStatus(t, err, http.StatusBadRequest)
	assert.ErrorIs(t, err, usecase.ErrEmptyCart)
	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestOrderUsecase_PlaceOrder_InsufficientStock(t *testing.T) {
	f := newOrderFixture()
	lines := []model.CartLine{
		{Item: model.CartItem{ProductID: 1, Quantity: 3}, Product: phone(1, "Galaxy S23", "499.99", 2)},
	}
	f.cart.On("ListWithProductsByUserID", mock.Anything, int64(7)).Return(lines, nil)

	_, err := f.usecase().PlaceOrder(context.Background(), 7, usecase.PlaceOrderInput{})
	assertStatus(t, err, http.StatusBadRequest)

	var stockErr *usecase.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "Galaxy S23", stockErr.ProductName)
	assert.Equal(t, int64(2), stockErr.Available)
	assert.Equal(t, int64(3), stockErr.Requested)
	assertErrContains(t, err, "insufficient stock for Galaxy S23. available: 2, requested: 3")

	f.orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.inventory.AssertNotCalled(t, "DecreaseStockIfEnough", mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderUsecase_PlaceOrder_InactiveProduct(t *testing.T) {
	f := newOrderFixture()
	p := phone(1, "Nokia 3310", "20.00", 4)
	p.IsActive = false
	f.cart.On("ListWithProductsByUserID", mock.Anything, int64(7)).Return([]model.CartLine{
		{Item: model.CartItem{ProductID: 1, Quantity: 1}, Product: p},
	}, nil)

	_, err := f.usecase().PlaceOrder(context.Background(), 7, usecase.PlaceOrderInput{})
	var unavailable *usecase.ProductUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "Nokia 3310", unavailable.ProductName)
}

func TestOrderUsecase_PlaceOrder_StockTakenConcurrently(t *testing.T) {
	f := newOrderFixture()
	f.cart.On("ListWithProductsByUserID", mock.Anything, int64(7)).Return([]model.CartLine{
		{Item: model.CartItem{ProductID: 1, Quantity: 1}, Product: phone(1, "Pixel 7", "300.00", 1)},
	}, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(5), nil)
	f.items.On("CreateBulk", mock.Anything, int64(5), mock.Anything).Return(nil)
	f.inventory.On("DecreaseStockIfEnough", mock.Anything, int64(1), int64(1)).Return(false, nil)
	f.products.On("FindByID", mock.Anything, int64(1)).Return(model.Product{ID: 1, Stock: 0}, nil)

	_, err := f.usecase().PlaceOrder(context.Background(), 7, usecase.PlaceOrderInput{})
	assertStatus(t, err, http.StatusBadRequest)
	var stockErr *usecase.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(0), stockErr.Available)

	// カートは残る
	f.cart.AssertNotCalled(t, "DeleteByUserID", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "OrderPlaced", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderUsecase_PlaceOrder_IdempotentReplay(t *testing.T) {
	f := newOrderFixture()
	existing := model.Order{ID: 42, BuyerID: 7, Status: model.OrderStatusPending, Total: dec("10.00")}
	f.orders.On("FindByIdempotencyKey", mock.Anything, int64(7), "key-1").Return(existing, true, nil)
	f.items.On("ListByOrderID", mock.Anything, int64(42)).Return([]model.OrderItem{
		{OrderID: 42, ProductID: 1, ProductNameSnapshot: "Pixel 8", Quantity: 1, Price: dec("10.00")},
	}, nil)

	out, err := f.usecase().PlaceOrder(context.Background(), 7, usecase.PlaceOrderInput{IdempotencyKey: " key-1 "})
	require.NoError(t, err)
	assert.Equal(t, int64(42), out.ID)
	assert.Len(t, out.Items, 1)

	f.cart.AssertNotCalled(t, "ListWithProductsByUserID", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "OrderPlaced", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrderUsecase_PlaceOrder_NotificationFailureIgnored(t *testing.T) {
	f := newOrderFixture()
	f.cart.On("ListWithProductsByUserID", mock.Anything, int64(7)).Return([]model.CartLine{
		{Item: model.CartItem{ProductID: 1, Quantity: 1}, Product: phone(1, "Pixel 8", "10.00", 1)},
	}, nil)
	f.orders.On("Create", mock.Anything, mock.Anything).Return(int64(9), nil)
	f.items.On("CreateBulk", mock.Anything, int64(9), mock.Anything).Return(nil)
	f.inventory.On("DecreaseStockIfEnough", mock.Anything, int64(1), int64(1)).Return(true, nil)
	f.cart.On("DeleteByUserID", mock.Anything, int64(7)).Return(nil)
	f.orders.On("FindByID", mock.Anything, int64(9)).Return(model.Order{ID: 9, BuyerID: 7, Status: model.OrderStatusPending, Total: dec("10.00")}, nil)
	f.users.On("FindByID", mock.Anything, int64(7)).Return(&model.User{ID: 7}, nil)
	f.notifier.On("OrderPlaced", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("ses down"))

	out, err := f.usecase().PlaceOrder(context.Background(), 7, usecase.PlaceOrderInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(9), out.ID)
}

func TestOrderUsecase_GetOrderDetail(t *testing.T) {
	order := model.Order{ID: 3, BuyerID: 7, Status: model.OrderStatusShipped, Total: dec("99.00")}

	t.Run("owner", func(t *testing.T) {
		f := newOrderFixture()
		f.orders.On("FindByID", mock.Anything, int64(3)).Return(order, nil)
		f.items.On("ListByOrderID", mock.Anything, int64(3)).Return([]model.OrderItem{}, nil)

		out, err := f.usecase().GetOrderDetail(context.Background(), 7, model.RoleBuyer, 3)
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusShipped, out.Status)
	})

	t.Run("other buyer", func(t *testing.T) {
		f := newOrderFixture()
		f.orders.On("FindByID", mock.Anything, int64(3)).Return(order, nil)

		_, err := f.usecase().GetOrderDetail(context.Background(), 8, model.RoleBuyer, 3)
		assertStatus(t, err, http.StatusForbidden)
	})

	t.Run("admin", func(t *testing.T) {
		f := newOrderFixture()
		f.orders.On("FindByID", mock.Anything, int64(3)).Return(order, nil)
		f.items.On("ListByOrderID", mock.Anything, int64(3)).Return([]model.OrderItem{}, nil)

		_, err := f.usecase().GetOrderDetail(context.Background(), 1, model.RoleAdmin, 3)
		assert.NoError(t, err)
	})

	t.Run("not found", func(t *testing.T) {
		f := newOrderFixture()
		f.orders.On("FindByID", mock.Anything, int64(3)).Return(model.Order{}, repo.ErrNotFound)

		_, err := f.usecase().GetOrderDetail(context.Background(), 7, model.RoleBuyer, 3)
		assertStatus(t, err, http.StatusNotFound)
		assert.ErrorIs(t, err, usecase.ErrOrderNotFound)
	})
}

func TestOrderUsecase_ListMyOrders(t *testing.T) {
	f := newOrderFixture()
	f.orders.On("ListByBuyerID", mock.Anything, int64(7)).Return([]model.Order{
		{ID: 2, BuyerID: 7}, {ID: 1, BuyerID: 7},
	}, nil)
	f.items.On("ListByOrderID", mock.Anything, int64(2)).Return([]model.OrderItem{}, nil)
	f.items.On("ListByOrderID", mock.Anything, int64(1)).Return([]model.OrderItem{}, nil)

	outs, err := f.usecase().ListMyOrders(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.Equal(t, int64(2), outs[0].ID)
}
