package server

import (
	"phonemarket/internal/config"
	"phonemarket/internal/handler"
	"phonemarket/internal/repository"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Auth          *handler.AuthHandler
	Product       *handler.ProductHandler
	SellerProduct *handler.SellerProductHandler
	Cart          *handler.CartHandler
	Order         *handler.OrderHandler
	Payment       *handler.PaymentHandler
	Admin         *handler.AdminHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository, h Handlers) {
	h.Auth.RegisterRoutes(e, cfg, userRepo)
	h.Product.RegisterRoutes(e)
	h.SellerProduct.RegisterRoutes(e, cfg, userRepo)
	h.Cart.RegisterRoutes(e, cfg, userRepo)
	h.Order.RegisterRoutes(e, cfg, userRepo)
	h.Payment.RegisterRoutes(e, cfg, userRepo)
	h.Admin.RegisterRoutes(e, cfg, userRepo)
}
