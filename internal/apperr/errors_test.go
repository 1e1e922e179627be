package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("bad"), KindValidation},
		{"wrapped not found", fmt.Errorf("load job: %w", NotFound("job")), KindNotFound},
		{"conflict", Conflict("already archived"), KindConflict},
		{"unavailable keeps cause", Unavailable("storage down", errors.New("dial tcp")), KindUnavailable},
		{"plain error", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestFieldErrors(t *testing.T) {
	fe := FieldErrors{}
	assert.NoError(t, fe.Err())

	fe.Add("title", "title is required")
	fe.Add("title", "ignored second message")
	fe.Add("scheduledAt", "must not be in the past")

	err := fe.Err()
	var appErr *Error
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, KindValidation, appErr.Kind)
	assert.Equal(t, "title is required", appErr.Fields["title"])
	assert.Len(t, appErr.Fields, 2)
}

func TestUnavailableUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("mail transport failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}
