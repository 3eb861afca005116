package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"tradeconsole/internal/models"
	"tradeconsole/internal/querycache"
	"tradeconsole/internal/remote"
	"tradeconsole/pkg/utils"
)

// Ключи запросов дашборда в кэше
const (
	QueryKeyInfo   = "keyinfo"
	QueryBalances  = "balances"
	QueryOpenOrder = "orders"
)

// MsgSessionRejected - сервис отверг токен сессии
const MsgSessionRejected = "session rejected by remote service"

// ErrInvalidQuery - недопустимые параметры дашборда
var ErrInvalidQuery = errors.New("invalid dashboard query")

// DashboardService загружает данные дашборда через кэш запросов.
//
// Три запроса (ключ API, балансы, открытые ордера) выполняются параллельно
// и независимо: ошибка одного не отменяет остальные.
type DashboardService struct {
	remote AccountRemoteInterface
	cache  QueryCacheInterface
	logger *utils.Logger
}

// NewDashboardService создает новый экземпляр DashboardService
func NewDashboardService(r AccountRemoteInterface, cache QueryCacheInterface, logger *utils.Logger) *DashboardService {
	if logger == nil {
		logger = utils.L()
	}
	return &DashboardService{
		remote: r,
		cache:  cache,
		logger: logger.WithComponent("dashboard"),
	}
}

// Keys возвращает ключи кэша для параметров дашборда
func Keys(q models.DashboardQuery) (keyInfo, balances, orders string) {
	return querycache.Key(QueryKeyInfo),
		querycache.Key(QueryBalances, q.AccountType),
		querycache.Key(QueryOpenOrder, q.Category, q.Symbol)
}

// NormalizeQuery подставляет значения по умолчанию и проверяет параметры
func NormalizeQuery(q models.DashboardQuery) (models.DashboardQuery, error) {
	q = q.WithDefaults()
	q.AccountType = strings.ToUpper(q.AccountType)
	q.Category = strings.ToLower(q.Category)

	if err := utils.ValidateOneOf("accountType", q.AccountType, models.AccountTypes...); err != nil {
		return q, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if err := utils.ValidateOneOf("category", q.Category, models.Categories...); err != nil {
		return q, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if err := utils.ValidateSymbol(q.Symbol); err != nil {
		return q, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return q, nil
}

// Load загружает все три запроса дашборда
func (s *DashboardService) Load(ctx context.Context, q models.DashboardQuery) (*models.DashboardView, error) {
	q, err := NormalizeQuery(q)
	if err != nil {
		return nil, err
	}
	keyInfoKey, balancesKey, ordersKey := Keys(q)

	view := &models.DashboardView{Query: q}

	var g errgroup.Group
	g.Go(func() error {
		res := s.cache.Fetch(ctx, keyInfoKey, func(ctx context.Context) (interface{}, error) {
			return s.remote.KeyInfo(ctx)
		})
		view.KeyInfo = s.toView(QueryKeyInfo, res)
		return nil
	})
	g.Go(func() error {
		res := s.cache.Fetch(ctx, balancesKey, func(ctx context.Context) (interface{}, error) {
			return s.remote.Balances(ctx, q.AccountType)
		})
		view.Balances = s.toView(QueryBalances, res)
		return nil
	})
	g.Go(func() error {
		res := s.cache.Fetch(ctx, ordersKey, func(ctx context.Context) (interface{}, error) {
			return s.remote.OpenOrders(ctx, q.Symbol, q.Category)
		})
		view.OpenOrders = s.toView(QueryOpenOrder, res)
		return nil
	})
	_ = g.Wait()

	return view, nil
}

// Status возвращает текущее состояние запросов без загрузки
func (s *DashboardService) Status(q models.DashboardQuery) (*models.DashboardView, error) {
	q, err := NormalizeQuery(q)
	if err != nil {
		return nil, err
	}
	keyInfoKey, balancesKey, ordersKey := Keys(q)

	return &models.DashboardView{
		Query:      q,
		KeyInfo:    s.toView(QueryKeyInfo, s.cache.Peek(keyInfoKey)),
		Balances:   s.toView(QueryBalances, s.cache.Peek(balancesKey)),
		OpenOrders: s.toView(QueryOpenOrder, s.cache.Peek(ordersKey)),
	}, nil
}

func (s *DashboardService) toView(query string, res querycache.Result) models.QueryView {
	view := models.QueryView{Loading: res.Loading()}
	if res.Err != nil {
		view.Error = errorMessage(res.Err)
		s.logger.Warn("dashboard query failed",
			utils.Operation(query),
			utils.StatusCode(remote.StatusOf(res.Err)),
			utils.Err(res.Err),
		)
		return view
	}
	view.Data = res.Data
	return view
}

// errorMessage - текст ошибки запроса для пользователя
func errorMessage(err error) string {
	var stale *remote.StaleSessionError
	if errors.As(err, &stale) {
		return MsgSessionRejected
	}
	var re *remote.RemoteError
	if errors.As(err, &re) {
		return re.Reason()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "request cancelled"
	}
	return "request failed"
}
