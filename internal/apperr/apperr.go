// Package apperr содержит таксономию ошибок сервиса printhub.
//
// Каждая структурная ошибка разворачивается в свой sentinel, поэтому вызывающий
// код проверяет категорию через errors.Is, а детали достаёт через errors.As.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation возвращается, если входные данные нарушают предусловие операции.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState возвращается, если сущность находится не в том состоянии.
	ErrInvalidState = errors.New("invalid state")
	// ErrAllocationFailed возвращается, если счётчик не удалось увеличить за отведённое число попыток.
	ErrAllocationFailed = errors.New("identifier allocation failed")
	// ErrNotFound возвращается, если сущность не найдена.
	ErrNotFound = errors.New("not found")
	// ErrForbidden возвращается, если у вызывающего нет прав на операцию.
	ErrForbidden = errors.New("forbidden")
	// ErrAlreadyExists возвращается при нарушении уникальности (например, email).
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict обозначает временный конфликт конкурентных транзакций; операцию можно повторить.
	ErrConflict = errors.New("concurrent modification")
	// ErrInProgress возвращается, если запрос с тем же ключом идемпотентности ещё выполняется.
	ErrInProgress = errors.New("request with the same idempotency key is in progress")
)

// ValidationError описывает нарушение предусловия по конкретному полю.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid создаёт ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// InvalidStateError описывает попытку операции над сущностью в неподходящем состоянии.
type InvalidStateError struct {
	Entity string
	ID     string
	State  string
	Op     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in state %q", e.Op, e.Entity, e.ID, e.State)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// NotFoundError описывает отсутствующую сущность.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound создаёт NotFoundError.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// AllocationError описывает неудачное выделение идентификатора.
type AllocationError struct {
	Kind     string
	Attempts int
	Err      error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocate %s after %d attempts: %v", e.Kind, e.Attempts, e.Err)
}

func (e *AllocationError) Unwrap() []error {
	return []error{ErrAllocationFailed, e.Err}
}

// IsRetryable сообщает, имеет ли смысл повторить операцию.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError сообщает, вызвана ли ошибка некорректным запросом клиента.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInProgress)
}
