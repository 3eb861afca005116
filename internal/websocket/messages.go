package websocket

import (
	"time"

	"tradeconsole/internal/onboarding"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeOnboardingState - новый снимок состояния онбординга
	MessageTypeOnboardingState MessageType = "onboardingState"

	// MessageTypeSession - изменилась сессия (логин или выход)
	MessageTypeSession MessageType = "session"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// OnboardingStateMessage - снимок контроллера онбординга
type OnboardingStateMessage struct {
	BaseMessage
	Data onboarding.State `json:"data"`
}

// SessionMessage - состояние сессии консоли
type SessionMessage struct {
	BaseMessage
	Authenticated bool   `json:"authenticated"`
	Redirect      string `json:"redirect,omitempty"`
}

// NewOnboardingStateMessage создает сообщение со снимком онбординга
func NewOnboardingStateMessage(st onboarding.State) *OnboardingStateMessage {
	return &OnboardingStateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeOnboardingState, Timestamp: time.Now()},
		Data:        st,
	}
}

// NewSessionMessage создает сообщение о сессии
func NewSessionMessage(authenticated bool, redirect string) *SessionMessage {
	return &SessionMessage{
		BaseMessage:   BaseMessage{Type: MessageTypeSession, Timestamp: time.Now()},
		Authenticated: authenticated,
		Redirect:      redirect,
	}
}
