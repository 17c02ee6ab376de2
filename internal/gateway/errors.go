package gateway

import (
	"errors"
	"fmt"
)

// ErrAdapterNotRegistered is returned when a known provider has no adapter wired into the Registry.
var ErrAdapterNotRegistered = errors.New("gateway adapter not registered")

// UnknownProviderError reports a gateway key that has no mapping or configuration.
type UnknownProviderError struct {
	Key string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("invalid provider: %s", e.Key)
}
