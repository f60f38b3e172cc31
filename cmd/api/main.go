package main

import (
	"context"

	"phonemarket/internal/config"
	"phonemarket/internal/handler"
	"phonemarket/internal/infra/cache"
	"phonemarket/internal/infra/db"
	"phonemarket/internal/infra/momo"
	"phonemarket/internal/infra/notifier"
	infraRepo "phonemarket/internal/infra/repository"
	"phonemarket/internal/server"
	"phonemarket/internal/usecase"

	"github.com/labstack/gommon/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	e := server.New(cfg)
	logger := e.Logger

	//DB接続
	gormDB, err := db.Connect(cfg.DSN(), cfg.LogLevel == "debug")
	if err != nil {
		logger.Fatalf("db connect: %v", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Fatalf("db migrate: %v", err)
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	cartItemRepo := infraRepo.NewCartItemGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//MoMoトークンのキャッシュ
	var tokens momo.TokenCache = cache.NewMemory()
	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		rc := cache.NewRedis(client)
		defer rc.Close()
		tokens = rc
	}

	if !cfg.MoMo.Configured() {
		logger.Warnf("MoMo credentials are not set; payment requests will fail (run cmd/momo-setup)")
	}
	momoClient := momo.NewClient(momo.Config{
		BaseURL:         cfg.MoMo.BaseURL,
		SubscriptionKey: cfg.MoMo.SubscriptionKey,
		APIUserID:       cfg.MoMo.APIUserID,
		APIKey:          cfg.MoMo.APIKey,
		Environment:     cfg.MoMo.Environment,
		CallbackURL:     cfg.MoMo.CallbackURL,
		Timeout:         cfg.MoMo.HTTPTimeout,
	}, tokens)

	//メール通知（送信元未設定なら送らない）
	var notify usecase.Notifier = notifier.Noop{}
	if cfg.Mail.SenderAddress != "" {
		sesNotifier, err := notifier.NewSESFromEnv(context.Background(),
			cfg.Mail.AWSRegion, cfg.Mail.AWSAccessKeyID, cfg.Mail.AWSSecretAccessKey, cfg.Mail.SenderAddress)
		if err != nil {
			logger.Fatalf("ses: %v", err)
		}
		notify = sesNotifier
	}

	//Usecase生成
	authUC := usecase.NewAuthUsecase(cfg.JWTSecret, userRepo)
	productUC := usecase.NewProductUsecase(productRepo)
	cartUC := usecase.NewCartUsecase(cartItemRepo, productRepo)
	orderUC := usecase.NewOrderUsecase(txm, userRepo, notify, logger)
	paymentUC := usecase.NewPaymentUsecase(txm, userRepo, momoClient, notify, logger, cfg.MoMo.Currency)
	adminUC := usecase.NewAdminUsecase(txm, userRepo, productRepo, orderRepo, auditRepo)

	//Handler生成
	server.RegisterRoutes(e, cfg, userRepo, server.Handlers{
		Auth:          handler.NewAuthHandler(authUC),
		Product:       handler.NewProductHandler(productUC),
		SellerProduct: handler.NewSellerProductHandler(productUC),
		Cart:          handler.NewCartHandler(cartUC),
		Order:         handler.NewOrderHandler(orderUC),
		Payment:       handler.NewPaymentHandler(paymentUC, cfg.MoMo.CallbackToken),
		Admin:         handler.NewAdminHandler(adminUC),
	})

	//Server起動
	addr := cfg.Port
	if addr != "" && addr[0] != ':' {
		addr = ":" + addr
	}
	if err := server.Start(e, addr); err != nil {
		logger.Fatalf("server: %v", err)
	}
}
