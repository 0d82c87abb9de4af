package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	err := fmt.Errorf("load: %w", ErrNoRoles)

	assert.True(t, errors.Is(err, ErrNoRoles))
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.True(t, IsForbidden(err))
	assert.False(t, errors.Is(err, ErrEstablishmentUnresolved))
	assert.False(t, IsNotFound(err))
}

func TestWrapError_KeepsCauseAndKind(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := WrapError("knack", "FetchRecords", ErrTransport, "request failed", cause)

	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, errors.Is(err, ErrExternalService))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsExternalService(err))
	assert.Equal(t, "knack.FetchRecords: request failed: dial tcp: connection refused", err.Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrKnackAPIRateLimited))
	assert.True(t, IsRetryable(ErrKnackAPITimeout))
	assert.False(t, IsRetryable(ErrKnackAPIInvalidResponse))
	assert.False(t, IsRetryable(ErrFetchInProgress))
}
