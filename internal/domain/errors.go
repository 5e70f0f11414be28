package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Application errors
var (
	// ErrInvalidInput неверные входные данные
	ErrInvalidInput = errors.New("invalid input data")

	// ErrEmailRequired отсутствует email в запросе
	ErrEmailRequired = errors.New("email is required")

	// ErrConfiguration отсутствует обязательная конфигурация
	ErrConfiguration = errors.New("missing configuration")

	// ErrUpstream внешний API вернул ошибку
	ErrUpstream = errors.New("upstream error")

	// ErrInternal внутренняя ошибка
	ErrInternal = errors.New("internal error")
)

// ValidationError представляет ошибку валидации входных данных
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

// Error реализует интерфейс error
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s - %s", e.Field, e.Message)
}

// Is проверяет, является ли ошибка ошибкой валидации
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError создает новую ошибку валидации
func NewValidationError(field, message, hint string) *ValidationError {
	return &ValidationError{Field: field, Message: message, Hint: hint}
}

// ConfigurationError представляет ошибку отсутствующей конфигурации
type ConfigurationError struct {
	Missing []string
}

// Error реализует интерфейс error
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing configuration: %s", strings.Join(e.Missing, ", "))
}

// Is проверяет, является ли ошибка ошибкой конфигурации
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError создает новую ошибку конфигурации
func NewConfigurationError(missing ...string) *ConfigurationError {
	return &ConfigurationError{Missing: missing}
}

// UpstreamError представляет ошибку внешнего API Shopify
type UpstreamError struct {
	Stage       string // Этап, на котором выполнялся вызов
	StatusCode  int    // HTTP статус ответа внешнего API
	Details     string // Усеченное тело ответа
	OriginalErr error
}

// Error реализует интерфейс error
func (e *UpstreamError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("shopify error at %s [%d]: %s: %v", e.Stage, e.StatusCode, e.Details, e.OriginalErr)
	}
	return fmt.Sprintf("shopify error at %s [%d]: %s", e.Stage, e.StatusCode, e.Details)
}

// Unwrap возвращает оригинальную ошибку
func (e *UpstreamError) Unwrap() error {
	return e.OriginalErr
}

// Is проверяет, является ли ошибка ошибкой внешнего API
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// NewUpstreamError создает новую ошибку внешнего API
func NewUpstreamError(stage string, statusCode int, details string, err error) *UpstreamError {
	return &UpstreamError{
		Stage:       stage,
		StatusCode:  statusCode,
		Details:     details,
		OriginalErr: err,
	}
}

// Truncate усекает тело ответа внешнего API до max байт, не разрезая
// многобайтовые символы на границе
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
