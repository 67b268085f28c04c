package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCodeThroughWrapping(t *testing.T) {
	base := New(CodeConflict, "already sealed").WithReason("DRAFT_ALREADY_SEALED")
	wrapped := fmt.Errorf("seal: %w", base)

	assert.True(t, HasCode(wrapped, CodeConflict))
	assert.False(t, HasCode(wrapped, CodeNotFound))

	de, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "DRAFT_ALREADY_SEALED", de.Reason)
}

func TestCodeOfForeignErrorIsInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeBadRequest:         http.StatusBadRequest,
		CodeUnauthorized:       http.StatusUnauthorized,
		CodeForbidden:          http.StatusForbidden,
		CodeNotFound:           http.StatusNotFound,
		CodeMethodNotAllowed:   http.StatusMethodNotAllowed,
		CodeConflict:           http.StatusConflict,
		CodeValidation:         http.StatusUnprocessableEntity,
		CodeInvariantViolation: http.StatusUnprocessableEntity,
		CodeTimeout:            http.StatusInternalServerError,
		CodeInternal:           http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, HTTPStatus(code), string(code))
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(errors.New("connection reset"), CodeInternal, "failed to load evidence")
	assert.Equal(t, "failed to load evidence: connection reset", err.Error())
	assert.ErrorIs(t, err, err.Err)
}
