package response

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanwang5210/telegram-bot/pkg/apperr"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   APIResponseCode
	}{
		{"nil", nil, http.StatusOK, APIResponseCodeOK},
		{"invalid code", fmt.Errorf("redeem: %w", apperr.ErrInvalidCode), http.StatusUnprocessableEntity, APIResponseCodeInvalidCode},
		{"regression", apperr.InvalidTransition("completed -> pending"), http.StatusUnprocessableEntity, APIResponseCodeInvalidTransition},
		{"bad input", apperr.InvalidArgument("count must be positive"), http.StatusBadRequest, APIResponseCodeBadRequest},
		{"missing user", apperr.NotFound("user"), http.StatusNotFound, APIResponseCodeNotFound},
		{"store down", &apperr.PersistenceError{Op: "insert", Err: errors.New("conn refused")}, http.StatusInternalServerError, APIResponseCodeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := FromError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestEnvelope(t *testing.T) {
	ok := OKT(map[string]int{"n": 1})
	assert.Equal(t, APIResponseCodeOK, ok.Code)
	assert.Equal(t, "ok", ok.Message)

	e := ErrorT[any](APIResponseCodeNotFound, nil)
	assert.Equal(t, "not found", e.Message)
}
