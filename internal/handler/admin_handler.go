package handler

import (
	"net/http"
	"strconv"

	"phonemarket/internal/config"
	"phonemarket/internal/middleware"
	"phonemarket/internal/repository"
	"phonemarket/internal/usecase"

	"github.com/labstack/echo/v4"
)

type AdminHandler struct {
	uc *usecase.AdminUsecase
}

func NewAdminHandler(uc *usecase.AdminUsecase) *AdminHandler {
	return &AdminHandler{uc: uc}
}

func (h *AdminHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	admin := e.Group("/admin")
	admin.Use(middleware.AuthJWT(cfg.JWTSecret))
	admin.Use(middleware.UserGuard(userRepo))
	admin.Use(middleware.AdminRoleGuard())

	admin.GET("/orders", h.listOrders)
	admin.PATCH("/orders/:id/status", h.updateOrderStatus)
	admin.GET("/products", h.listProducts)
	admin.GET("/users", h.listUsers)
	admin.GET("/stats", h.stats)
	admin.GET("/audit-logs", h.listAuditLogs)
}

func (h *AdminHandler) listOrders(c echo.Context) error {
	limit, ok := queryLimit(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
	}

	out, err := h.uc.ListOrders(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"orders": out})
}

func (h *AdminHandler) updateOrderStatus(c echo.Context) error {
	orderID, ok := parseIDParam(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req usecase.AdminUpdateOrderStatusInput
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	//操作した管理者IDを取得（監査ログ用）
	adminID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.UpdateOrderStatus(c.Request().Context(), adminID, orderID, req)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"order": out})
}

func (h *AdminHandler) listProducts(c echo.Context) error {
	limit, ok := queryLimit(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
	}

	out, err := h.uc.ListProducts(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"products": out})
}

func (h *AdminHandler) listUsers(c echo.Context) error {
	limit, ok := queryLimit(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
	}

	out, err := h.uc.ListUsers(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"users": out})
}

func (h *AdminHandler) stats(c echo.Context) error {
	out, err := h.uc.Stats(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ?action=&order_id=&limit=
func (h *AdminHandler) listAuditLogs(c echo.Context) error {
	limit, ok := queryLimit(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
	}

	var orderID int64
	if v := c.QueryParam("order_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid order_id"})
		}
		orderID = id
	}

	out, err := h.uc.ListAuditLogs(c.Request().Context(), usecase.AuditLogQuery{
		Action:  c.QueryParam("action"),
		OrderID: orderID,
		Limit:   limit,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"audit_logs": out})
}
