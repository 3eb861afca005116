package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Ошибки валидации
var (
	ErrEmptyField    = errors.New("field cannot be empty")
	ErrInvalidSymbol = errors.New("invalid symbol format")
	ErrInvalidOption = errors.New("value is not one of the allowed options")
)

// RequiredField - пара имя/значение для проверки на непустоту
type RequiredField struct {
	Name  string
	Value string
}

// Required создает RequiredField
func Required(name, value string) RequiredField {
	return RequiredField{Name: name, Value: value}
}

// FirstEmpty возвращает имя первого пустого поля.
//
// Пустым считается только строка нулевой длины: клиент не проверяет формат
// ключей и паролей, это делает удаленный сервис.
func FirstEmpty(fields ...RequiredField) (string, bool) {
	for _, f := range fields {
		if f.Value == "" {
			return f.Name, true
		}
	}
	return "", false
}

var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9\-_/]{2,30}$`)

// ValidateSymbol проверяет формат символа (BTCUSDT, BTC-USDT)
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol: %w", ErrEmptyField)
	}
	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return nil
}

// ValidateOneOf проверяет, что value входит в allowed (без учета регистра)
func ValidateOneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if strings.EqualFold(a, value) {
			return nil
		}
	}
	return fmt.Errorf("%s=%q: %w (allowed: %s)", field, value, ErrInvalidOption, strings.Join(allowed, ", "))
}
