// momo-setup はMoMo sandboxのAPIユーザーとAPIキーを発行し、トークン取得まで確認する。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"phonemarket/internal/infra/momo"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
)

func main() {
	_ = godotenv.Load()

	baseURL := flag.String("base-url", envOr("MOMO_API_BASE_URL", "https://sandbox.momodeveloper.mtn.com"), "MoMo API base url")
	subKey := flag.String("subscription-key", os.Getenv("MOMO_SUBSCRIPTION_KEY"), "Ocp-Apim-Subscription-Key")
	callbackHost := flag.String("callback-host", envOr("MOMO_CALLBACK_HOST", "webhook.site"), "providerCallbackHost")
	flag.Parse()

	if *subKey == "" {
		log.Fatal("subscription key is required (-subscription-key or MOMO_SUBSCRIPTION_KEY)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	userID := uuid.NewString()
	log.Infof("reference id (X-Reference-Id): %s", userID)

	setup := momo.NewClient(momo.Config{BaseURL: *baseURL, SubscriptionKey: *subKey}, nil)

	if err := setup.CreateAPIUser(ctx, userID, *callbackHost); err != nil {
		log.Fatalf("create api user: %v", err)
	}
	log.Info("api user created")

	u, err := setup.GetAPIUser(ctx, userID)
	if err != nil {
		log.Fatalf("get api user: %v", err)
	}
	log.Infof("target environment: %s, callback host: %s", u.TargetEnvironment, u.ProviderCallbackHost)

	apiKey, err := setup.CreateAPIKey(ctx, userID)
	if err != nil {
		log.Fatalf("create api key: %v", err)
	}
	log.Info("api key created")

	//発行した資格情報でトークンが取れるか
	client := momo.NewClient(momo.Config{
		BaseURL:         *baseURL,
		SubscriptionKey: *subKey,
		APIUserID:       userID,
		APIKey:          apiKey,
	}, nil)
	tok, err := client.RequestToken(ctx)
	if err != nil {
		log.Fatalf("token check: %v", err)
	}
	log.Infof("access token ok (type=%s, expires in %ds)", tok.TokenType, tok.ExpiresIn)

	fmt.Println("# add these to .env")
	fmt.Printf("MOMO_API_USER_ID=%s\n", userID)
	fmt.Printf("MOMO_API_KEY=%s\n", apiKey)
	if u.TargetEnvironment != "" {
		fmt.Printf("MOMO_ENVIRONMENT=%s\n", u.TargetEnvironment)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
