package response

import (
	"errors"
	"net/http"

	"github.com/alanwang5210/telegram-bot/pkg/apperr"
)

// APIResponseCode is the application level result code carried in every envelope.
type APIResponseCode int

const (
	APIResponseCodeOK                APIResponseCode = 0
	APIResponseCodeBadRequest        APIResponseCode = 40000
	APIResponseCodeNotFound          APIResponseCode = 40400
	APIResponseCodeInvalidCode       APIResponseCode = 42201
	APIResponseCodeInvalidTransition APIResponseCode = 42202
	APIResponseCodeError             APIResponseCode = 50000
)

var codeToMsg = map[APIResponseCode]string{
	APIResponseCodeOK:                "ok",
	APIResponseCodeBadRequest:        "bad request",
	APIResponseCodeNotFound:          "not found",
	APIResponseCodeInvalidCode:       "invalid or already used activation code",
	APIResponseCodeInvalidTransition: "invalid transition",
	APIResponseCodeError:             "unexpected error",
}

// APIResponse is the generic response envelope used by HTTP APIs.
// Use OKT / ErrorT helpers to construct instances.
type APIResponse[T any] struct {
	Code    APIResponseCode `json:"code"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
}

// OKT returns a successful response with data.
func OKT[T any](data T) *APIResponse[T] {
	return &APIResponse[T]{Code: APIResponseCodeOK, Message: codeToMsg[APIResponseCodeOK], Data: data}
}

// ErrorT returns an error response with message and optional data.
func ErrorT[T any](code APIResponseCode, data T) *APIResponse[T] {
	return &APIResponse[T]{Code: code, Message: codeToMsg[code], Data: data}
}

// FromError maps the apperr taxonomy to a response code and HTTP status.
// Store and transport details never leak into the message.
func FromError(err error) (int, APIResponseCode) {
	switch {
	case err == nil:
		return http.StatusOK, APIResponseCodeOK
	case errors.Is(err, apperr.ErrInvalidCode):
		return http.StatusUnprocessableEntity, APIResponseCodeInvalidCode
	case errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, APIResponseCodeInvalidTransition
	case errors.Is(err, apperr.ErrInvalidArgument):
		return http.StatusBadRequest, APIResponseCodeBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, APIResponseCodeNotFound
	default:
		return http.StatusInternalServerError, APIResponseCodeError
	}
}
