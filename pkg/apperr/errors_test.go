package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaxonomyMatching(t *testing.T) {
	cause := errors.New("connection reset")
	tests := []struct {
		name        string
		err         error
		target      error
		persistence bool
		transport   bool
	}{
		{name: "not found wrapped", err: NotFound("user"), target: ErrNotFound},
		{name: "invalid transition wrapped", err: InvalidTransition("completed -> pending"), target: ErrInvalidTransition},
		{name: "persistence keeps cause", err: fmt.Errorf("redeem: %w", &PersistenceError{Op: "claim", Err: cause}), target: cause, persistence: true},
		{name: "transport timeout", err: &TransportError{Channel: "email", Recipient: "a@b.c", Err: context.DeadlineExceeded}, target: context.DeadlineExceeded, transport: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.target)
			assert.Equal(t, tt.persistence, IsPersistence(tt.err))
			assert.Equal(t, tt.transport, IsTransport(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "user not found", NotFound("user").Error())
	assert.Equal(t, "invalid transition: plan \"x\" unknown", InvalidTransition("plan %q unknown", "x").Error())
	assert.Equal(t, "persistence: claim: boom", (&PersistenceError{Op: "claim", Err: errors.New("boom")}).Error())
}
