package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// handlerがそのままレスポンスにするエラー
type HTTPError struct {
	Status  int
	Message string
	//原因（errors.Asで取り出せる）
	Err error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.Err }

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

// 原因つき
func wrapHTTPError(status int, message string, cause error) error {
	return &HTTPError{
		Status:  status,
		Message: message,
		Err:     cause,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrOrderNotFound  = errors.New("order not found")
	ErrAmountMismatch = errors.New("amount mismatch")
)

// 商品が削除済み or 非公開
type ProductUnavailableError struct {
	ProductName string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is no longer available", e.ProductName)
}

// 在庫不足
type InsufficientStockError struct {
	ProductName string
	Available   int64
	Requested   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s. available: %d, requested: %d", e.ProductName, e.Available, e.Requested)
}

func badRequest(cause error) error {
	return wrapHTTPError(http.StatusBadRequest, cause.Error(), cause)
}

func dbError(cause error) error {
	return wrapHTTPError(http.StatusInternalServerError, "db error", cause)
}
