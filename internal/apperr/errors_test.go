package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifiersSeeThroughWrapping(t *testing.T) {
	v := fmt.Errorf("chat: %w", Validation("message", "is required"))
	assert.True(t, IsValidation(v))
	assert.False(t, IsProvider(v))
	assert.Equal(t, "chat: message: is required", v.Error())

	cause := errors.New("dial tcp: refused")
	p := fmt.Errorf("dispatch: %w", &ProviderError{Op: "chat", Err: cause})
	assert.True(t, IsProvider(p))
	assert.ErrorIs(t, p, cause)

	assert.True(t, IsPayloadTooLarge(&PayloadTooLargeError{Limit: 10}))
	assert.False(t, IsPayloadTooLarge(ErrBusy))
}
