package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"tradeconsole/pkg/utils"
)

const (
	// Время ожидания записи сообщения
	writeWait = 10 * time.Second

	// Время ожидания между pong сообщениями
	pongWait = 60 * time.Second

	// Интервал отправки ping сообщений (должен быть меньше pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Клиент консоли ничего не отправляет, кроме control frames
	maxMessageSize = 4096

	clientSendBufferSize = 32
)

// OriginChecker проверяет Origin с O(1) lookup через map
type OriginChecker struct {
	allowedOrigins map[string]struct{}
	allowAll       bool
}

// NewOriginChecker создает проверку origin; пустой список разрешает все (dev режим)
func NewOriginChecker(origins []string) *OriginChecker {
	checker := &OriginChecker{
		allowedOrigins: make(map[string]struct{}, len(origins)),
		allowAll:       len(origins) == 0,
	}
	for _, origin := range origins {
		checker.allowedOrigins[origin] = struct{}{}
	}
	return checker
}

// Check проверяет origin за O(1)
func (oc *OriginChecker) Check(origin string) bool {
	if origin == "" {
		return true // не браузер (curl, tradectl)
	}
	if oc.allowAll {
		return true
	}
	_, ok := oc.allowedOrigins[origin]
	return ok
}

// Upgrader создает websocket.Upgrader с проверкой origin
func (oc *OriginChecker) Upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return oc.Check(r.Header.Get("Origin"))
		},
	}
}

// Client представляет одно WebSocket соединение
//
// Каждый клиент имеет две горутины:
// 1. readPump - читает control frames и замечает отключение
// 2. writePump - пишет сообщения клиенту и отправляет ping
type Client struct {
	conn *websocket.Conn
	hub  *Hub
	send chan []byte
}

// readPump читает сообщения от клиента до ошибки соединения
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error", utils.Err(err))
			}
			return
		}
	}
}

// writePump отправляет сообщения клиенту
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS апгрейдит HTTP соединение и регистрирует клиента в Hub
//
// Каждое сообщение отправляется отдельным text frame.
func ServeWS(hub *Hub, upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("websocket upgrade failed", utils.Err(err))
		return
	}

	client := &Client{
		conn: conn,
		hub:  hub,
		send: make(chan []byte, clientSendBufferSize),
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
