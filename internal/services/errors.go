// internal/services/errors.go
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAPIKey means no marketplace API key is available from memory,
	// environment, or the settings table. Recoverable by admin action.
	ErrNoAPIKey = errors.New("marketplace API key is not configured")

	// ErrMappingExists guards against bridging the same local order twice.
	ErrMappingExists = errors.New("order is already linked to a marketplace order")

	// ErrMappingNotFound means an operation requires a marketplace link that
	// does not exist.
	ErrMappingNotFound = errors.New("no marketplace order is linked to this order")

	ErrOrderNotPaid        = errors.New("order must be paid before it can be sent to the marketplace")
	ErrOrderNotCancellable = errors.New("shipped or delivered orders cannot be cancelled")
)

// AuthConfigurationError means the marketplace rejected the configured API
// key. Distinct from ErrNoAPIKey: the key exists but is wrong.
type AuthConfigurationError struct {
	Message string
}

func (e *AuthConfigurationError) Error() string {
	return fmt.Sprintf("marketplace rejected credentials: %s", e.Message)
}
