package store

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// RetryConfig настраивает обёртку повторов для временных ошибок,
// которую требует адаптер хранилища документов.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryConfig — 3 попытки, базовая задержка 200мс.
var DefaultRetryConfig = RetryConfig{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond}

// IsTransient классифицирует ошибку драйвера как временную: ошибки
// соединения, таймауты выполнения и сбои записи, вызванные таймаутом.
// Всё остальное (дублирующийся ключ, ошибки валидации, сбои записи без
// таймаута) считается постоянным и распространяется немедленно.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, pgx.ErrTxClosed) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "57014", "08000", "08003", "08006", "08001", "08004":
			// serialization_failure, deadlock_detected, query_canceled
			// и семейство connection_exception.
			return true
		default:
			return false
		}
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// Do выполняет op, повторяя до cfg.MaxAttempts раз, пока ошибка
// классифицируется как временная, со сном base·2^(attempt-1) плюс
// равномерный джиттер в [0, min(1000мс, backoff)] между попытками.
// Отмена контекста прерывает выполнение немедленно — и между попытками,
// и во время задержки.
func Do(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		backoff := cfg.BaseDelay * time.Duration(1<<uint(attempt-1))
		jitterCeil := backoff
		if jitterCeil > time.Second {
			jitterCeil = time.Second
		}
		delay := backoff + time.Duration(rand.Int63n(int64(jitterCeil)+1))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
