package handler

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"phonemarket/internal/config"
	"phonemarket/internal/infra/momo"
	"phonemarket/internal/middleware"
	"phonemarket/internal/repository"
	"phonemarket/internal/usecase"

	"github.com/labstack/echo/v4"
)

// MoMo決済
type PaymentHandler struct {
	uc            *usecase.PaymentUsecase
	callbackToken string
}

func NewPaymentHandler(uc *usecase.PaymentUsecase, callbackToken string) *PaymentHandler {
	return &PaymentHandler{uc: uc, callbackToken: callbackToken}
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/payments/momo")

	//webhookはプロバイダから呼ばれるのでJWTなし
	g.POST("/webhook", h.webhook)
	g.GET("/webhook", h.webhookActive)

	auth := []echo.MiddlewareFunc{middleware.AuthJWT(cfg.JWTSecret), middleware.UserGuard(userRepo)}
	g.POST("", h.request, auth...)
	g.GET("/status", h.status, auth...)
}

// POST /payments/momo
func (h *PaymentHandler) request(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req usecase.RequestPaymentInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.RequestPayment(c.Request().Context(), userID, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// GET /payments/momo/status?orderId=&referenceId=
func (h *PaymentHandler) status(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	rawID := c.QueryParam("orderId")
	refID := c.QueryParam("referenceId")
	if rawID == "" || refID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "order id and reference id are required"})
	}
	orderID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || orderID <= 0 {
		//数値でないIDの注文は存在しない
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "order not found"})
	}

	out, err := h.uc.CheckStatus(c.Request().Context(), userID, getRoleFromContext(c), orderID, refID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// POST /payments/momo/webhook
func (h *PaymentHandler) webhook(c echo.Context) error {
	if !h.callbackAuthorized(c) {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var payload momo.RequestToPayResult
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.HandleWebhook(c.Request().Context(), payload)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) webhookActive(c echo.Context) error {
	return c.JSON(http.StatusOK, SuccessResponse{Message: "MoMo webhook endpoint is active"})
}

// トークン未設定なら検証しない
func (h *PaymentHandler) callbackAuthorized(c echo.Context) bool {
	if h.callbackToken == "" {
		return true
	}
	got := c.Request().Header.Get("X-Callback-Token")
	if got == "" {
		got = c.QueryParam("token")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.callbackToken)) == 1
}
