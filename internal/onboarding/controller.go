// Package onboarding - контроллер подключения ключей биржи.
//
// Контроллер ведет последовательность test → save и знает, сохранены ли ключи
// на сервисе. Все вызовы сервиса выполняются в горутине вызывающего под
// контекстом, который отменяется при Close. Результат, пришедший после Close,
// не меняет состояние.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tradeconsole/internal/metrics"
	"tradeconsole/internal/models"
	"tradeconsole/internal/remote"
	"tradeconsole/pkg/utils"
)

// Ошибки контроллера
var (
	ErrNotMounted        = errors.New("onboarding flow is not mounted")
	ErrActionInFlight    = errors.New("another onboarding action is in flight")
	ErrInvalidTransition = errors.New("action not allowed in current onboarding state")
)

// subscriberBuffer - размер буфера канала подписчика
const subscriberBuffer = 8

// Remote - операции сервиса, нужные контроллеру (реализуется remote.Client)
type Remote interface {
	OnboardingState(ctx context.Context) (*models.OnboardingState, error)
	TestCredentials(ctx context.Context, apiKey, apiSecret string, isTestnet bool) (*models.CredentialTestResult, error)
	SaveCredentials(ctx context.Context, apiKey, apiSecret string, isTestnet bool) (*models.CredentialSaveResult, error)
}

// draft - введенные ключи; живут только в контроллере и не логируются
type draft struct {
	apiKey    string
	apiSecret string
	isTestnet bool
}

func (d draft) String() string {
	return fmt.Sprintf("draft{apiKey:[REDACTED] apiSecret:[REDACTED] isTestnet:%t}", d.isTestnet)
}

// Controller - контроллер онбординга для одного пользователя
type Controller struct {
	remote Remote
	logger *utils.Logger

	mu         sync.Mutex
	state      State
	draft      draft
	mounted    bool
	inFlight   bool
	generation uint64
	lifetime   context.Context
	cancel     context.CancelFunc

	subscribers map[chan State]struct{}
}

// New создает контроллер в размонтированном состоянии
func New(r Remote, logger *utils.Logger) *Controller {
	if logger == nil {
		logger = utils.L()
	}
	return &Controller{
		remote:      r,
		logger:      logger.WithComponent("onboarding"),
		state:       loadingState(),
		subscribers: make(map[chan State]struct{}),
	}
}

// ============ Жизненный цикл ============

// Mount начинает новый сеанс онбординга со временем жизни lifetime.
//
// Возвращает false, если контроллер уже смонтирован. После Mount состояние
// Loading; начальную загрузку выполняет Refresh.
func (c *Controller) Mount(lifetime context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mounted {
		return false
	}

	c.lifetime, c.cancel = context.WithCancel(lifetime)
	c.mounted = true
	c.inFlight = false
	c.generation++
	c.draft = draft{isTestnet: true}
	c.setStateLocked(loadingState())

	c.logger.Debug("onboarding mounted")
	return true
}

// Close завершает сеанс: отменяет запросы в полете и отбрасывает их результаты
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.mounted {
		return
	}

	c.cancel()
	c.mounted = false
	c.inFlight = false
	c.generation++
	c.draft = draft{}
	c.setStateLocked(loadingState())

	c.logger.Debug("onboarding unmounted")
}

// Mounted - смонтирован ли контроллер
func (c *Controller) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

// State возвращает текущий снимок состояния
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// ============ Действия ============

// Refresh запрашивает у сервиса, сохранены ли ключи.
//
// Это единственный способ покинуть AlreadyOnboarded. Ошибка загрузки
// оставляет контроллер в Loading с LoadError.
func (c *Controller) Refresh(ctx context.Context) (State, error) {
	gen, err := c.begin(KeyLoading, loadingState(), draft{})
	if err != nil {
		return c.State(), err
	}

	callCtx, done := c.callContext(ctx)
	resp, callErr := c.remote.OnboardingState(callCtx)
	done()

	return c.finish(gen, func() State {
		if callErr != nil {
			c.logger.Warn("failed to load onboarding state", utils.Err(callErr))
			st := loadingState()
			st.Message = ""
			st.LoadError = MsgLoadFailed
			return st
		}
		if resp.HasTestnetCredentials {
			return alreadyOnboarded("", MsgAlreadySaved)
		}
		return editing(OutcomeNotTested, "", "")
	})
}

// Test проверяет ключи на сервисе. Совет, а не условие для Save.
func (c *Controller) Test(ctx context.Context, apiKey, apiSecret string) (State, error) {
	if err := requireCredentials(apiKey, apiSecret); err != nil {
		return c.State(), err
	}

	d := draft{apiKey: apiKey, apiSecret: apiSecret, isTestnet: true}
	gen, err := c.begin(KeyTesting, editing(OutcomeTesting, "", MsgTesting), d)
	if err != nil {
		return c.State(), err
	}

	callCtx, done := c.callContext(ctx)
	res, callErr := c.remote.TestCredentials(callCtx, d.apiKey, d.apiSecret, d.isTestnet)
	done()

	return c.finish(gen, func() State {
		switch {
		case callErr != nil:
			c.logger.Warn("credential test call failed", utils.Exchange(models.ExchangeBybit), utils.Err(callErr))
			return editing(OutcomeInvalid, ReasonRequestFailed, MsgTestCallFailed)
		case res.OK:
			return editing(OutcomeValid, "", MsgValid)
		default:
			return editing(OutcomeInvalid, res.Error, "Error: "+res.Error)
		}
	})
}

// Save сохраняет ключи на сервисе. Предварительный успешный Test не требуется.
func (c *Controller) Save(ctx context.Context, apiKey, apiSecret string) (State, error) {
	if err := requireCredentials(apiKey, apiSecret); err != nil {
		return c.State(), err
	}

	d := draft{apiKey: apiKey, apiSecret: apiSecret, isTestnet: true}
	gen, err := c.begin(KeySaveInFlight, editing(OutcomeSaveInFlight, "", MsgSaving), d)
	if err != nil {
		return c.State(), err
	}

	callCtx, done := c.callContext(ctx)
	res, callErr := c.remote.SaveCredentials(callCtx, d.apiKey, d.apiSecret, d.isTestnet)
	done()

	return c.finish(gen, func() State {
		switch {
		case callErr != nil:
			c.logger.Warn("credential save call failed", utils.Exchange(models.ExchangeBybit), utils.Err(callErr))
			return editing(OutcomeSaveFailed, reasonOf(callErr), MsgSaveCallFailed)
		case res.OK:
			c.draft = draft{isTestnet: true}
			return alreadyOnboarded(OutcomeSaved, MsgSaved)
		default:
			reason := res.Error
			if reason == "" {
				reason = "rejected by service"
			}
			return editing(OutcomeSaveFailed, reason, MsgSaveRejected)
		}
	})
}

// ============ Подписки ============

// Subscribe возвращает канал снимков состояния и функцию отписки.
//
// Медленный подписчик теряет промежуточные снимки, но всегда получает последний.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, subscriberBuffer)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	ch <- c.snapshotLocked()
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, ch)
			c.mu.Unlock()
		})
	}
}

// ============ Внутреннее ============

// begin переводит контроллер в состояние действия и возвращает его поколение
func (c *Controller) begin(toKey string, next State, d draft) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.mounted {
		return 0, ErrNotMounted
	}
	if c.inFlight {
		return 0, ErrActionInFlight
	}
	if from := c.state.Key(); !CanTransition(from, toKey) {
		return 0, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, toKey)
	}

	if d.apiKey != "" {
		c.draft = d
	}
	c.inFlight = true
	c.setStateLocked(next)
	return c.generation, nil
}

// finish применяет результат, если сеанс, начавший действие, еще жив.
// Результат после размонтирования отбрасывается молча: без изменения
// состояния и без ошибки.
func (c *Controller) finish(gen uint64, result func() State) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.mounted || gen != c.generation {
		c.logger.Debug("discarding onboarding result after unmount")
		return c.snapshotLocked(), nil
	}

	next := result()
	if from := c.state.Key(); !CanTransition(from, next.Key()) {
		// Таблица и код разошлись; состояние не трогаем
		c.inFlight = false
		c.logger.Error("invalid onboarding transition", utils.String("from", from), utils.String("to", next.Key()))
		return c.snapshotLocked(), fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next.Key())
	}

	c.inFlight = false
	c.setStateLocked(next)
	return c.snapshotLocked(), nil
}

// callContext объединяет контекст запроса и время жизни контроллера
func (c *Controller) callContext(ctx context.Context) (context.Context, func()) {
	c.mu.Lock()
	lifetime := c.lifetime
	c.mu.Unlock()

	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(lifetime, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}

func (c *Controller) setStateLocked(next State) {
	prev := c.state.Key()
	next.Mounted = c.mounted
	c.state = next

	metrics.RecordOnboardingTransition(next.Key())
	c.logger.Info("onboarding transition",
		utils.String("from", prev),
		utils.State(next.Key()),
		utils.Bool("mounted", c.mounted),
	)
	c.broadcastLocked(c.snapshotLocked())
}

func (c *Controller) snapshotLocked() State {
	st := c.state
	st.Mounted = c.mounted
	return st
}

// broadcastLocked отправляет снимок подписчикам без блокировки
func (c *Controller) broadcastLocked(st State) {
	for ch := range c.subscribers {
		select {
		case ch <- st:
			continue
		default:
		}
		// Буфер полон: выбрасываем самый старый снимок
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}

func requireCredentials(apiKey, apiSecret string) error {
	if name, empty := utils.FirstEmpty(utils.Required("apiKey", apiKey), utils.Required("apiSecret", apiSecret)); empty {
		return &remote.ValidationError{Field: name}
	}
	return nil
}

// reasonOf - короткая причина ошибки вызова для пользователя
func reasonOf(err error) string {
	var re *remote.RemoteError
	if errors.As(err, &re) {
		return re.Reason()
	}
	return ReasonRequestFailed
}
