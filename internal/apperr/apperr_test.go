package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("canceling statement due to lock timeout")

	assert.Equal(t, KindValidation, KindOf(Validation("a", "b")))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("wrapped: %w", NotFound("cart not found"))))
	assert.Equal(t, KindConflict, KindOf(Conflict("busy", cause)))
	assert.Equal(t, KindForbidden, KindOf(Forbiddenf("no %s", "entry")))
	assert.Equal(t, KindInternal, KindOf(cause))
}

func TestMessagesOf_HidesInternals(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, MessagesOf(Validation("a", "b")))
	assert.Equal(t, []string{"internal server error"}, MessagesOf(errors.New("pq: relation does not exist")))
	assert.Equal(t, []string{"internal server error"}, MessagesOf(Internal(errors.New("boom"))))
}

func TestRetryable(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := Conflict("try again", cause)

	assert.True(t, Retryable(err))
	assert.False(t, Retryable(Validation("x")))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "deadlock detected")
}
