// Package querycache - кэш запросов к удаленному сервису для экранов.
//
// Ключ + функция загрузки → data/loading/error. Одновременные запросы одного
// ключа объединяются через singleflight.
package querycache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tradeconsole/internal/metrics"
)

// Status - состояние записи кэша
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result - снимок запроса
type Result struct {
	Data      interface{}
	Err       error
	Status    Status
	FetchedAt time.Time
}

// Loading - идет загрузка
func (r Result) Loading() bool {
	return r.Status == StatusLoading
}

// FetchFunc загружает данные для ключа
type FetchFunc func(ctx context.Context) (interface{}, error)

type entry struct {
	data      interface{}
	fetchedAt time.Time
}

// flightKey - ключ singleflight; эпоха не дает загрузке прошлой сессии
// отдать данные запросу, начатому после Invalidate/Clear
func flightKey(epoch uint64, key string) string {
	return strconv.FormatUint(epoch, 10) + "#" + key
}

// Cache - кэш с TTL; ошибки не кэшируются
type Cache struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu       sync.RWMutex
	entries  map[string]entry
	inFlight map[string]int
	epoch    uint64 // растет при Invalidate/Clear, старые загрузки не записываются
}

// New создает кэш; ttl=0 отключает повторное использование данных
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]entry),
		inFlight: make(map[string]int),
	}
}

// Key собирает ключ из частей: Key("balances", "UNIFIED") = "balances/UNIFIED"
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}

// Fetch возвращает свежие данные из кэша или загружает их
func (c *Cache) Fetch(ctx context.Context, key string, fetch FetchFunc) Result {
	if res, ok := c.fresh(key); ok {
		metrics.RecordCacheLookup("hit")
		return res
	}

	c.mu.Lock()
	c.inFlight[key]++
	epoch := c.epoch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.inFlight[key]--; c.inFlight[key] <= 0 {
			delete(c.inFlight, key)
		}
		c.mu.Unlock()
	}()

	ch := c.group.DoChan(flightKey(epoch, key), func() (interface{}, error) {
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		e := entry{data: data, fetchedAt: c.now()}
		c.mu.Lock()
		if c.epoch == epoch {
			c.entries[key] = e
		}
		c.mu.Unlock()
		return e, nil
	})

	select {
	case <-ctx.Done():
		return Result{Err: ctx.Err(), Status: StatusError}
	case r := <-ch:
		if r.Shared {
			metrics.RecordCacheLookup("shared")
		} else {
			metrics.RecordCacheLookup("miss")
		}
		if r.Err != nil {
			return Result{Err: r.Err, Status: StatusError}
		}
		e := r.Val.(entry)
		return Result{Data: e.data, Status: StatusSuccess, FetchedAt: e.fetchedAt}
	}
}

// Peek возвращает состояние ключа без загрузки
func (c *Cache) Peek(key string) Result {
	c.mu.RLock()
	loading := c.inFlight[key] > 0
	e, ok := c.entries[key]
	c.mu.RUnlock()

	switch {
	case loading:
		return Result{Data: e.data, Status: StatusLoading, FetchedAt: e.fetchedAt}
	case ok:
		return Result{Data: e.data, Status: StatusSuccess, FetchedAt: e.fetchedAt}
	default:
		return Result{Status: StatusIdle}
	}
}

// Invalidate удаляет записи с префиксом
func (c *Cache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.epoch++
}

// Clear удаляет все записи (выход из аккаунта)
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.epoch++
	c.mu.Unlock()
}

func (c *Cache) fresh(key string) (Result, bool) {
	if c.ttl <= 0 {
		return Result{}, false
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().Sub(e.fetchedAt) > c.ttl {
		return Result{}, false
	}
	return Result{Data: e.data, Status: StatusSuccess, FetchedAt: e.fetchedAt}, true
}
