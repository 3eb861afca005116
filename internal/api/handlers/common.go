package handlers

import (
	"errors"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"tradeconsole/internal/remote"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodySize - ограничение тела запроса к консоли
const maxBodySize = 64 << 10

// ErrorResponse стандартный формат ответа об ошибке
type ErrorResponse struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error"`
	Redirect string `json:"redirect,omitempty"`
}

// respondWithJSON отправляет JSON ответ
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"ok":false,"error":"Failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithError отправляет JSON ответ с ошибкой
func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, ErrorResponse{Error: message})
}

// decodeBody читает JSON тело запроса
func decodeBody(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errors.New("empty request body")
	}
	return json.Unmarshal(body, dst)
}

// remoteStatus - статус ответа консоли для ошибки удаленного сервиса.
// 4xx сервиса передается как есть, остальное - 502.
func remoteStatus(err error) int {
	var ve *remote.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	status := remote.StatusOf(err)
	if status >= 400 && status < 500 {
		return status
	}
	return http.StatusBadGateway
}

// remoteReason - сообщение об ошибке удаленного сервиса для пользователя
func remoteReason(err error) string {
	var ve *remote.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	var re *remote.RemoteError
	if errors.As(err, &re) {
		return re.Reason()
	}
	return "request failed"
}
