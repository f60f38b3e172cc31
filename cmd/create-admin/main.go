// create-admin は管理者アカウントを作成する。
package main

import (
	"context"
	"flag"
	"time"

	"phonemarket/internal/config"
	"phonemarket/internal/infra/db"
	infraRepo "phonemarket/internal/infra/repository"
	"phonemarket/internal/usecase"

	"github.com/labstack/gommon/log"
)

func main() {
	name := flag.String("name", "Admin", "display name")
	email := flag.String("email", "admin@example.com", "login email")
	password := flag.String("password", "admin123", "login password")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	gormDB, err := db.Connect(cfg.DSN(), false)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	uc := usecase.NewAuthUsecase(cfg.JWTSecret, infraRepo.NewUserGormRepository(gormDB))
	admin, err := uc.CreateAdmin(ctx, *name, *email, *password)
	if err != nil {
		if he, ok := usecase.AsHTTPError(err); ok {
			log.Fatalf("create admin: %s", he.Message)
		}
		log.Fatalf("create admin: %v", err)
	}

	log.Infof("admin user created: id=%d email=%s", admin.ID, admin.Email)
	if *password == "admin123" {
		log.Warn("default password in use, change it after first login")
	}
}
