package helpers

import (
	"fmt"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type MarketDepthError struct {
	Message string
	Cause   error
}

func (e *MarketDepthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *MarketDepthError) Unwrap() error {
	return e.Cause
}

// Distinct error types for the failure taxonomy:
//   TransportError - socket/connection unavailable, retried with backoff
//   ParseError     - malformed payload, dropped without killing the session
//   SyncError      - snapshot/diff reconciliation failed for an instrument
//   DeliveryError  - a client queue rejected a message
//   DatabaseError  - persistence sink failure, never propagated to ingestion
type TransportError struct{ MarketDepthError }
type ParseError struct{ MarketDepthError }
type SyncError struct{ MarketDepthError }
type DeliveryError struct{ MarketDepthError }
type DatabaseError struct{ MarketDepthError }
type ConfigurationError struct{ MarketDepthError }

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

func NewTransportError(msg string, cause error) *TransportError {
	return &TransportError{MarketDepthError{Message: msg, Cause: cause}}
}

func NewParseError(msg string, cause error) *ParseError {
	return &ParseError{MarketDepthError{Message: msg, Cause: cause}}
}

func NewSyncError(msg string, cause error) *SyncError {
	return &SyncError{MarketDepthError{Message: msg, Cause: cause}}
}

func NewDeliveryError(msg string, cause error) *DeliveryError {
	return &DeliveryError{MarketDepthError{Message: msg, Cause: cause}}
}

func NewDatabaseError(msg string, cause error) *DatabaseError {
	return &DatabaseError{MarketDepthError{Message: msg, Cause: cause}}
}

func NewConfigurationError(msg string, cause error) *ConfigurationError {
	return &ConfigurationError{MarketDepthError{Message: msg, Cause: cause}}
}
