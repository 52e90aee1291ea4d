package pil

import "fmt"

// ErrorCategory категория ошибки ядра
type ErrorCategory string

const (
	ErrorCategoryConfig       ErrorCategory = "CONFIG"
	ErrorCategoryPermission   ErrorCategory = "PERMISSION"
	ErrorCategoryRegistration ErrorCategory = "REGISTRATION"
	ErrorCategoryLifecycle    ErrorCategory = "LIFECYCLE"
)

// String возвращает строковое представление категории
func (c ErrorCategory) String() string {
	return string(c)
}

// Error структурированная ошибка ядра.
// errors.Is сравнивает ошибки по коду.
type Error struct {
	Code     string
	Message  string
	Category ErrorCategory
	Cause    error
}

// Error реализует интерфейс error
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap возвращает исходную ошибку
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithCause возвращает копию ошибки с исходной причиной
func (e *Error) WithCause(cause error) *Error {
	out := *e
	out.Cause = cause
	return &out
}

var (
	// ErrNoAuthenticationCredentials учётные данные не заданы
	ErrNoAuthenticationCredentials = &Error{
		Code:     "NO_AUTHENTICATION_CREDENTIALS",
		Message:  "authentication credentials are not set",
		Category: ErrorCategoryConfig,
	}

	// ErrInvalidAuth учётные данные заданы, но некорректны
	ErrInvalidAuth = &Error{
		Code:     "INVALID_AUTH",
		Message:  "authentication credentials are invalid",
		Category: ErrorCategoryConfig,
	}

	// ErrRegistrationFailed регистратор отверг учётные данные или не ответил
	ErrRegistrationFailed = &Error{
		Code:     "REGISTRATION_FAILED",
		Message:  "registration failed",
		Category: ErrorCategoryRegistration,
	}

	// ErrClosed ядро уже закрыто вызовом Close
	ErrClosed = &Error{
		Code:     "CLOSED",
		Message:  "phone integration is closed",
		Category: ErrorCategoryLifecycle,
	}

	// ErrPermissionDenied шаблон ошибки отсутствующего разрешения
	ErrPermissionDenied = &Error{
		Code:     "PERMISSION_DENIED",
		Message:  "permission denied",
		Category: ErrorCategoryPermission,
	}
)

// PermissionDenied возвращает ошибку отсутствия системного разрешения
func PermissionDenied(permission string) *Error {
	return &Error{
		Code:     ErrPermissionDenied.Code,
		Message:  fmt.Sprintf("permission %s is not granted", permission),
		Category: ErrorCategoryPermission,
	}
}

// PermissionCallPhone системное разрешение на звонки
const PermissionCallPhone = "CALL_PHONE"
