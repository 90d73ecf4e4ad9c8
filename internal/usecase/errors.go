package usecase

import (
	"errors"
	"fmt"

	"storefront/internal/validator"
)

type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// フォーム検証エラー（フィールドごとのメッセージ付き）
type ValidationError struct {
	Fields validator.FieldErrors
}

func (e *ValidationError) Error() string {
	return e.Fields.Err().Error()
}

func (e *ValidationError) Unwrap() error {
	return validator.ErrInvalidInput
}

func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}
