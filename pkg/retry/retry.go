// Package retry повторяет операцию с экспоненциальной задержкой.
//
// Используется для ожидания готовности локальной БД хранилища при старте;
// запросы к удаленному сервису не повторяются.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config - параметры повторов
//
// delay = min(InitialDelay * Multiplier^attempt, MaxDelay) ± JitterFactor
type Config struct {
	// Attempts - число попыток, включая первую; меньше 1 = одна попытка
	Attempts int

	InitialDelay time.Duration // default: 250ms
	MaxDelay     time.Duration // default: 5s
	Multiplier   float64       // default: 2
	JitterFactor float64       // 0..1, default: 0

	// RetryIf решает, повторять ли ошибку; nil = повторять все
	RetryIf func(error) bool

	// OnRetry вызывается перед ожиданием очередной попытки
	OnRetry func(attempt int, err error, delay time.Duration)
}

func (c *Config) validate() {
	if c.Attempts < 1 {
		c.Attempts = 1
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 250 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier <= 0 {
		c.Multiplier = 2
	}
	c.JitterFactor = math.Min(math.Max(c.JitterFactor, 0), 1)
}

// delay - задержка перед попыткой attempt+1 (attempt с нуля)
func (c *Config) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(attempt))
	d = math.Min(d, float64(c.MaxDelay))
	if c.JitterFactor > 0 {
		d += d * c.JitterFactor * (rand.Float64()*2 - 1)
	}
	return time.Duration(math.Max(d, 0))
}

// Do выполняет operation до успеха, неповторяемой ошибки или исчерпания попыток.
//
// Возвращает последнюю ошибку операции; если контекст отменен до первой
// попытки - ошибку контекста.
func Do(ctx context.Context, operation func(ctx context.Context) error, cfg Config) error {
	_, err := DoWithResult(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	}, cfg)
	return err
}

// DoWithResult - Do для операции с результатом
func DoWithResult[T any](ctx context.Context, operation func(ctx context.Context) (T, error), cfg Config) (T, error) {
	cfg.validate()

	var zero T
	var lastErr error

	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		result, err := operation(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var perm *PermanentError
		if errors.As(err, &perm) {
			return zero, perm.Err
		}
		if cfg.RetryIf != nil && !cfg.RetryIf(err) {
			return zero, err
		}
		if attempt == cfg.Attempts-1 {
			break
		}

		delay := cfg.delay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// PermanentError - ошибка, которую повторять бессмысленно
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent помечает err как неповторяемую; Do вернет исходную ошибку
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}
