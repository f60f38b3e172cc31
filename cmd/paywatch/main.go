// paywatch は決済状態APIを一定間隔で照会し、確定するか上限回数に達するまで待つ。
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"phonemarket/internal/domain/model"
	"phonemarket/internal/poller"

	"github.com/joho/godotenv"
	"github.com/labstack/gommon/log"
)

type statusResponse struct {
	PaymentStatus string  `json:"paymentStatus"`
	OrderStatus   string  `json:"orderStatus"`
	Reason        *string `json:"reason"`
	Error         string  `json:"error"`
}

func main() {
	_ = godotenv.Load()

	api := flag.String("api", envOr("PAYWATCH_API", "http://localhost:8080"), "api base url")
	token := flag.String("token", os.Getenv("PAYWATCH_TOKEN"), "bearer token of the buyer")
	orderID := flag.Int64("order", 0, "order id")
	refID := flag.String("ref", "", "payment reference id")
	interval := flag.Duration("interval", durationEnv("POLL_INTERVAL", poller.DefaultInterval), "poll interval")
	maxAttempts := flag.Int("max", intEnv("POLL_MAX_ATTEMPTS", poller.DefaultMaxAttempts), "max attempts")
	flag.Parse()

	if *orderID <= 0 || *refID == "" || *token == "" {
		log.Fatal("-order, -ref and -token are required")
	}

	c := &statusClient{
		base:  strings.TrimRight(*api, "/"),
		token: *token,
		http:  &http.Client{Timeout: 15 * time.Second},
	}

	p := poller.New(*interval, *maxAttempts)
	p.OnAttempt = func(attempt int, status model.PaymentStatus, err error) {
		if err != nil {
			log.Warnf("attempt %d/%d: %v", attempt, p.MaxAttempts, err)
			return
		}
		log.Infof("attempt %d/%d: %s", attempt, p.MaxAttempts, status)
	}

	var last statusResponse
	status, err := p.Wait(context.Background(), func(ctx context.Context) (model.PaymentStatus, error) {
		res, err := c.check(ctx, *orderID, *refID)
		if err != nil {
			return "", err
		}
		last = res
		return model.PaymentStatus(res.PaymentStatus), nil
	})
	if errors.Is(err, poller.ErrTimeout) {
		fmt.Println("Payment is still pending. Check your orders page later.")
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("poll: %v", err)
	}

	switch status {
	case model.PaymentStatusSuccessful:
		fmt.Printf("Payment successful. Order status: %s\n", last.OrderStatus)
	default:
		reason := ""
		if last.Reason != nil {
			reason = " (" + *last.Reason + ")"
		}
		fmt.Printf("Payment failed%s. Order status: %s\n", reason, last.OrderStatus)
		os.Exit(1)
	}
}

type statusClient struct {
	base  string
	token string
	http  *http.Client
}

func (c *statusClient) check(ctx context.Context, orderID int64, refID string) (statusResponse, error) {
	q := url.Values{}
	q.Set("orderId", strconv.FormatInt(orderID, 10))
	q.Set("referenceId", refID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/payments/momo/status?"+q.Encode(), nil)
	if err != nil {
		return statusResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return statusResponse{}, err
	}
	defer resp.Body.Close()

	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return statusResponse{}, fmt.Errorf("decode: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return statusResponse{}, fmt.Errorf("status %d: %s", resp.StatusCode, out.Error)
	}
	return out, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}

func intEnv(key string, def int) int {
	if i, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return i
	}
	return def
}
