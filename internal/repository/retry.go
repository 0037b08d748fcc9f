package repository

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/lib/pq"
)

const (
	defaultTxMaxAttempts = 3
	txBaseDelay          = 20 * time.Millisecond
	txJitterFactor       = 0.3
)

// isRetryableError はトランザクションを再実行すれば成功しうるエラーかを返す。
// シリアライズ失敗（40001）、デッドロック（40P01）、接続例外（08xxx）が対象。
func isRetryableError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "40001", "40P01":
		return true
	}
	return strings.HasPrefix(string(pqErr.Code), "08")
}

// retryDelay はattempt回目（1始まり）の再実行前の待機時間を返す。
// 基準遅延を2倍ずつ増やし、ジッターを加える。
func retryDelay(attempt int) time.Duration {
	delay := txBaseDelay * time.Duration(1<<(attempt-1))
	jitter := rand.Float64() * float64(delay) * txJitterFactor //nolint:gosec // ジッター用途
	return delay + time.Duration(jitter)
}

// withRetry はfnを最大maxAttempts回実行する。再実行可能なエラー以外は即座に返す。
func withRetry(ctx context.Context, maxAttempts int, fn func(ctx context.Context) error, onRetry func(attempt int, err error)) error {
	if maxAttempts <= 0 {
		maxAttempts = defaultTxMaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil || !isRetryableError(lastErr) {
			return lastErr
		}
		if onRetry != nil && attempt+1 < maxAttempts {
			onRetry(attempt+1, lastErr)
		}
	}
	return lastErr
}
