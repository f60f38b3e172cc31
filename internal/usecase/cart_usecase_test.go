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

func TestCartUsecase_AddToCart_Success(t *testing.T) {
	cart := new(CartItemRepoMock)
	products := new(ProductRepoMock)
	p := phone(1, "Pixel 8", "10.00", 5)

	products.On("FindByID", mock.Anything, int64(1)).Return(*p, nil)
	cart.On("ListByUserID", mock.Anything, int64(7)).Return([]model.CartItem{{ProductID: 1, Quantity: 2}}, nil)
	cart.On("UpsertByUserAndProduct", mock.Anything, int64(7), int64(1), int64(3)).Return(nil)
	cart.On("ListWithProductsByUserID", mock.Anything, int64(7)).Return([]model.CartLine{
		{Item: model.CartItem{ID: 1, ProductID: 1, Quantity: 5}, Product: p},
	}, nil)

	out, err := usecase.NewCartUsecase(cart, products).AddToCart(context.Background(), 7, usecase.AddCartInput{ProductID: 1, Quantity: 3})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.True(t, out.Total.Equal(dec("50.00")))
	cart.AssertExpectations(t)
}

func TestCartUsecase_AddToCart_ExceedsStock(t *testing.T) {
	cart := new(CartItemRepoMock)
	products := new(ProductRepoMock)
	products.On("FindByID", mock.Anything, int64(1)).Return(*phone(1, "Pixel 8", "10.00", 4), nil)
	cart.On("ListByUserID", mock.Anything, int64(7)).Return([]model.CartItem{{ProductID: 1, Quantity: 2}}, nil)

	_, err := usecase.NewCartUsecase(cart, products).AddToCart(context.Background(), 7, usecase.AddCartInput{ProductID: 1, Quantity: 3})
	var stockErr *usecase.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(5), stockErr.Requested)
	cart.AssertNotCalled(t, "UpsertByUserAndProduct", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCartUsecase_AddToCart_ProductNotFound(t *testing.T) {
	products := new(ProductRepoMock)
	products.On("FindByID", mock.Anything, int64(9)).Return(model.Product{}, repo.ErrNotFound)

	_, err := usecase.NewCartUsecase(new(CartItemRepoMock), products).AddToCart(context.Background(), 7, usecase.AddCartInput{ProductID: 9, Quantity: 1})
	assertStatus(t, err, http.StatusNotFound)
}

func TestCartUsecase_UpdateCartItem_OtherUsersItem(t *testing.T) {
	cart := new(CartItemRepoMock)
	cart.On("FindByID", mock.Anything, int64(3)).Return(model.CartItem{ID: 3, UserID: 8, ProductID: 1}, nil)

	_, err := usecase.NewCartUsecase(cart, new(ProductRepoMock)).UpdateCartItem(context.Background(), 7, 3, usecase.UpdateCartItemInput{Quantity: 1})
	assertStatus(t, err, http.StatusNotFound)
	cart.AssertNotCalled(t, "UpdateQuantity", mock.Anything, mock.Anything, mock.Anything)
}

func TestCartUsecase_DeleteCartItem(t *testing.T) {
	cart := new(CartItemRepoMock)
	cart.On("FindByID", mock.Anything, int64(3)).Return(model.CartItem{ID: 3, UserID: 7, ProductID: 1}, nil)
	cart.On("DeleteByID", mock.Anything, int64(3)).Return(nil)
	cart.On("ListWithProductsByUserID", mock.Anything, int64(7)).Return([]model.CartLine{}, nil)

	out, err := usecase.NewCartUsecase(cart, new(ProductRepoMock)).DeleteCartItem(context.Background(), 7, 3)
	require.NoError(t, err)
	assert.Empty(t, out.Items)
	assert.True(t, out.Total.IsZero())
}

func TestCartUsecase_GetCart_SkipsUnavailableInTotal(t *testing.T) {
	cart := new(CartItemRepoMock)
	inactive := phone(2, "Old phone", "99.00", 1)
	inactive.IsActive = false
	cart.On("ListWithProductsByUserID", mock.Anything, int64(7)).Return([]model.CartLine{
		{Item: model.CartItem{ID: 1, ProductID: 1, Quantity: 2}, Product: phone(1, "Pixel 8", "10.00", 5)},
		{Item: model.CartItem{ID: 2, ProductID: 2, Quantity: 1}, Product: inactive},
		{Item: model.CartItem{ID: 3, ProductID: 3, Quantity: 1}},
	}, nil)

	out, err := usecase.NewCartUsecase(cart, new(ProductRepoMock)).GetCart(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, out.Items, 3)
	assert.Nil(t, out.Items[2].Product)
	assert.True(t, out.Total.Equal(dec("20.00")))
}
