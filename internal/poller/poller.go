// Package poller は決済結果が確定するまで一定間隔で照会する。
package poller

import (
	"context"
	"errors"
	"time"

	"phonemarket/internal/domain/model"
)

const (
	DefaultInterval    = 6 * time.Second
	DefaultMaxAttempts = 20
)

// 上限まで照会しても確定しなかった
var ErrTimeout = errors.New("payment status still pending after max attempts")

// 1回分の照会
type CheckFunc func(ctx context.Context) (model.PaymentStatus, error)

type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	//1回ごとの通知（任意）
	OnAttempt func(attempt int, status model.PaymentStatus, err error)
}

func New(interval time.Duration, maxAttempts int) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Poller{Interval: interval, MaxAttempts: maxAttempts}
}

// Wait はcheckを最大MaxAttempts回呼ぶ。終端ステータスならそれを返す。
// 照会エラーは次の回で取り直す。上限に達したらErrTimeout
func (p *Poller) Wait(ctx context.Context, check CheckFunc) (model.PaymentStatus, error) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	var last model.PaymentStatus
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		status, err := check(ctx)
		if p.OnAttempt != nil {
			p.OnAttempt(attempt, status, err)
		}
		if err == nil {
			last = status
			if status.Terminal() {
				return status, nil
			}
		}
		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
	return last, ErrTimeout
}
