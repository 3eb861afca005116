package websocket

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"tradeconsole/internal/onboarding"
	"tradeconsole/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// broadcastBuffer - размер очереди broadcast
const broadcastBuffer = 64

var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет WebSocket соединениями консоли
//
// Назначение:
// Рассылает открытым вкладкам консоли снимки контроллера онбординга и
// изменения сессии, чтобы экран обновлялся без polling.
//
// Последнее сообщение о состоянии онбординга запоминается и отправляется
// каждому новому клиенту сразу после подключения.
//
// Использование:
// 1. hub := NewHub(logger)
// 2. go hub.Run()
// 3. go hub.Relay(ctx, states)
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	mu   sync.RWMutex
	last []byte

	dropped atomic.Int64
	logger  *utils.Logger
}

// NewHub создает новый Hub
func NewHub(logger *utils.Logger) *Hub {
	if logger == nil {
		logger = utils.L()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.WithComponent("websocket"),
	}
}

// Run запускает главный цикл Hub до вызова Stop
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			last := h.last
			count := len(h.clients)
			h.mu.Unlock()
			if last != nil {
				select {
				case client.send <- last:
				default:
				}
			}
			h.logger.Debug("client connected", utils.Int("clients", count))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client disconnected", utils.Int("clients", count))

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					toRemove = append(toRemove, client)
				}
			}

			// Медленные клиенты отключаются
			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				h.mu.Unlock()
				h.logger.Warn("removed slow clients", utils.Int("removed", len(toRemove)))
			}
		}
	}
}

// Stop останавливает Run и закрывает каналы клиентов
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast сериализует сообщение и ставит его в очередь без блокировки.
// При полной очереди сообщение отбрасывается.
func (h *Hub) Broadcast(message interface{}) {
	data, ok := h.encode(message)
	if !ok {
		return
	}
	h.enqueue(data)
}

// BroadcastOnboardingState рассылает снимок онбординга и запоминает его для новых клиентов
func (h *Hub) BroadcastOnboardingState(st onboarding.State) {
	data, ok := h.encode(NewOnboardingStateMessage(st))
	if !ok {
		return
	}
	h.mu.Lock()
	h.last = data
	h.mu.Unlock()
	h.enqueue(data)
}

// BroadcastSession рассылает изменение сессии
func (h *Hub) BroadcastSession(authenticated bool, redirect string) {
	h.Broadcast(NewSessionMessage(authenticated, redirect))
}

// Relay пересылает снимки из states до отмены ctx или закрытия канала
func (h *Hub) Relay(ctx context.Context, states <-chan onboarding.State) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			h.BroadcastOnboardingState(st)
		}
	}
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages - сколько сообщений отброшено из-за полной очереди
func (h *Hub) DroppedMessages() int64 {
	return h.dropped.Load()
}

func (h *Hub) encode(message interface{}) ([]byte, bool) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer jsonBufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.logger.Error("failed to marshal broadcast message", utils.Err(err))
		return nil, false
	}

	data := bytes.TrimRight(buf.Bytes(), "\n")
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}

func (h *Hub) enqueue(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		h.dropped.Add(1)
	}
}
