package model_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relaykit/agentcore/model"
)

func TestProviderError_Retryable(t *testing.T) {
	cases := []struct {
		kind      model.ErrorKind
		retryable bool
	}{
		{model.ErrorKindRateLimited, true},
		{model.ErrorKindUnavailable, true},
		{model.ErrorKindAuth, false},
		{model.ErrorKindInvalidRequest, false},
		{model.ErrorKindUnknown, false},
	}
	for _, tc := range cases {
		err := model.NewProviderError("test", tc.kind, errors.New("cause"))
		assert.Equal(t, tc.retryable, err.Retryable(), tc.kind)
	}
}

func TestProviderError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := model.NewProviderError("test", model.ErrorKindUnknown, cause)
	assert.ErrorIs(t, err, cause)
}
