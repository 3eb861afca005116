// Package ratelimit - token bucket для ограничения частоты запросов.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// RateLimiter - token bucket
//
// Ведро наполняется со скоростью rate токенов в секунду до burst.
// Каждый запрос забирает один токен.
type RateLimiter struct {
	rate       float64
	burst      float64
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewRateLimiter создает limiter с полным ведром
func NewRateLimiter(rate, burst float64) *RateLimiter {
	return newRateLimiter(rate, burst, time.Now)
}

func newRateLimiter(rate, burst float64, now func() time.Time) *RateLimiter {
	if rate <= 0 {
		rate = 1
	}
	if burst < 1 {
		burst = math.Max(1, rate)
	}
	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst,
		lastRefill: now(),
		now:        now,
	}
}

// refill вызывается под mu
func (rl *RateLimiter) refill() {
	now := rl.now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens = math.Min(rl.burst, rl.tokens+elapsed*rl.rate)
	rl.lastRefill = now
}

// Allow забирает токен без ожидания.
//
// При отказе возвращает, через сколько появится следующий токен.
func (rl *RateLimiter) Allow() (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return true, 0
	}
	return false, time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
}

// Tokens - текущее число токенов (тесты, отладка)
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}

// KeyedLimiter - отдельное ведро на каждый ключ (например, имя пользователя)
//
// Ведра создаются при первом обращении с общими rate и burst.
type KeyedLimiter struct {
	rate     float64
	burst    float64
	now      func() time.Time
	limiters map[string]*RateLimiter
	mu       sync.Mutex
}

// NewKeyedLimiter создает пустой KeyedLimiter
func NewKeyedLimiter(rate, burst float64) *KeyedLimiter {
	return &KeyedLimiter{
		rate:     rate,
		burst:    burst,
		now:      time.Now,
		limiters: make(map[string]*RateLimiter),
	}
}

// Allow забирает токен из ведра ключа
func (kl *KeyedLimiter) Allow(key string) (bool, time.Duration) {
	return kl.get(key).Allow()
}

// Len - число ведер
func (kl *KeyedLimiter) Len() int {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	return len(kl.limiters)
}

func (kl *KeyedLimiter) get(key string) *RateLimiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	rl, ok := kl.limiters[key]
	if !ok {
		rl = newRateLimiter(kl.rate, kl.burst, kl.now)
		kl.limiters[key] = rl
	}
	return rl
}
