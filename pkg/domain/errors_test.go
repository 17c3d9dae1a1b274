package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKind_Severity(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want Severity
	}{
		{ErrInvalidExpression, Fatal},
		{ErrMissingGUIDVar, Fatal},
		{ErrConfig, Fatal},
		{ErrHistory, Fatal},
		{ErrNoMatch, Recoverable},
		{ErrTransport, Recoverable},
		{ErrHTTPStatus, Recoverable},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.Severity())
		})
	}
}

func TestIsRecoverable(t *testing.T) {
	t.Run("wrapped recoverable", func(t *testing.T) {
		err := fmt.Errorf("scrape: %w", NewError(ErrNoMatch, "the expression %q didn't match anything", "//h1"))
		assert.True(t, IsRecoverable(err))
		assert.True(t, IsKind(err, ErrNoMatch))
		assert.Contains(t, err.Error(), `the expression "//h1" didn't match anything`)
	})

	t.Run("fatal", func(t *testing.T) {
		err := NewError(ErrMissingGUIDVar, "a var called 'guid' must always be defined")
		assert.False(t, IsRecoverable(err))
		assert.Equal(t, Fatal, err.Severity())
	})

	t.Run("unclassified is fatal", func(t *testing.T) {
		err := errors.New("disk full")
		assert.False(t, IsRecoverable(err))
		_, ok := KindOf(err)
		assert.False(t, ok)
	})

	t.Run("nil", func(t *testing.T) {
		assert.False(t, IsRecoverable(nil))
	})
}

func TestWrapError(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(ErrTransport, cause, "fetch %s", "http://example.com")
	assert.Equal(t, "fetch http://example.com: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "recoverable", err.Severity().String())
}
