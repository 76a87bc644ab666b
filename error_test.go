package siteclone_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fwojciec/siteclone"
	"github.com/stretchr/testify/assert"
)

func TestErrorf(t *testing.T) {
	t.Parallel()

	err := siteclone.Errorf(siteclone.ENOTFOUND, "session %q not found", "abc")

	assert.Equal(t, siteclone.ENOTFOUND, siteclone.ErrorCode(err))
	assert.Equal(t, "session \"abc\" not found", siteclone.ErrorMessage(err))
}

func TestErrorCode_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, siteclone.ErrorCode(nil))
}

func TestErrorMessage_NilError(t *testing.T) {
	t.Parallel()

	assert.Empty(t, siteclone.ErrorMessage(nil))
}

func TestErrorCode_UnwrapsWrappedErrors(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("capture: %w", siteclone.Errorf(siteclone.EPAGELOAD, "timeout"))

	assert.Equal(t, siteclone.EPAGELOAD, siteclone.ErrorCode(err))
	assert.Equal(t, "timeout", siteclone.ErrorMessage(err))
}

func TestErrorCode_PlainErrorIsInternal(t *testing.T) {
	t.Parallel()

	assert.Equal(t, siteclone.EINTERNAL, siteclone.ErrorCode(errors.New("boom")))
	assert.Equal(t, "Internal error.", siteclone.ErrorMessage(errors.New("boom")))
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"page load", siteclone.Errorf(siteclone.EPAGELOAD, "navigation failed"), true},
		{"wrapped page load", fmt.Errorf("attempt: %w", siteclone.Errorf(siteclone.EPAGELOAD, "x")), true},
		{"deadline", context.DeadlineExceeded, true},
		{"low content", siteclone.Errorf(siteclone.ELOWCONTENT, "thin"), false},
		{"invalid", siteclone.Errorf(siteclone.EINVALID, "bad url"), false},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("renderer crashed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, siteclone.IsRetryable(tt.err))
		})
	}
}
