package goerror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBusinessError_WrapsSentinel(t *testing.T) {
	sentinel := errors.New("two-factor is already enabled")

	err := NewBusinessError(sentinel, "Two-factor authentication is already enabled", CodeConflict)
	assert.ErrorIs(t, err, sentinel)

	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, TypeBusiness, ge.Type())
	assert.Equal(t, CodeConflict, ge.Code())
	assert.Equal(t, http.StatusConflict, ge.StatusCode())
	assert.Equal(t, "Two-factor authentication is already enabled", ge.Msg())
}

func TestNewUnavailable(t *testing.T) {
	cause := errors.Join(ErrUnavailable, errors.New("dial tcp: connection refused"))

	err := NewUnavailable(cause)
	assert.ErrorIs(t, err, ErrUnavailable)

	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, TypeServer, ge.Type())
	assert.Equal(t, http.StatusServiceUnavailable, ge.StatusCode())
	assert.Equal(t, "ERROR_CODE_UNAVAILABLE", ge.Code().String())
}

func TestNewInvalidInput_FieldPairs(t *testing.T) {
	err := NewInvalidInput(nil, "code", "code must be a 6-digit number")

	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, TypeValidation, ge.Type())
	assert.Equal(t, map[string]string{"code": "code must be a 6-digit number"}, ge.Fields())
}
