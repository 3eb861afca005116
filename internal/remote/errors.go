package remote

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"tradeconsole/pkg/utils"
)

// maxErrorBody - сколько байт тела ответа сохраняется в RemoteError
const maxErrorBody = 512

// ErrMalformedResponse - сервис ответил 2xx, но тело не разобрать
var ErrMalformedResponse = errors.New("malformed response from remote service")

// RemoteError - ответ не 2xx или ошибка транспорта (Status == 0)
type RemoteError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("remote %s: transport error: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("remote %s: status %d", e.Op, e.Status)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Reason - короткое сообщение для пользователя: поле error/detail из тела или текст статуса
func (e *RemoteError) Reason() string {
	if e.Status == 0 {
		return "request failed"
	}
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal([]byte(e.Body), &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Detail != "" {
			return body.Detail
		}
	}
	if text := http.StatusText(e.Status); text != "" {
		return strings.ToLower(text)
	}
	return fmt.Sprintf("status %d", e.Status)
}

// ValidationError - обязательное поле пустое; запрос не отправлялся
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return e.Field + " is required"
}

func (e *ValidationError) Unwrap() error {
	return utils.ErrEmptyField
}

// StaleSessionError - сервис отверг запрос, отправленный с токеном (401/403).
//
// Оборачивает RemoteError, поэтому errors.As(err, **RemoteError) тоже срабатывает.
type StaleSessionError struct {
	Remote *RemoteError
}

func (e *StaleSessionError) Error() string {
	return fmt.Sprintf("session rejected by remote service: %v", e.Remote)
}

func (e *StaleSessionError) Unwrap() error {
	return e.Remote
}

// validateRequired возвращает ValidationError для первого пустого поля
func validateRequired(fields ...utils.RequiredField) error {
	if name, empty := utils.FirstEmpty(fields...); empty {
		return &ValidationError{Field: name}
	}
	return nil
}

// StatusOf возвращает HTTP статус из RemoteError в цепочке, 0 если его нет
func StatusOf(err error) int {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}

// IsAuthRejection - 401/403 от сервиса
func IsAuthRejection(err error) bool {
	status := StatusOf(err)
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
