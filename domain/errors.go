package domain

import (
	"errors"
	"fmt"
)

var (
	// A single frame could not be understood. The frame is dropped, the connection survives.
	ErrProtocol = errors.New("protocol error")
	// The venue refused the credentials of a private connection.
	ErrAuthentication = errors.New("authentication error")
	// Any other error reported by the venue in an error frame.
	ErrExchange = errors.New("exchange error")
	// Internal state for a symbol or an order can no longer be trusted and must be resynchronized.
	ErrStateViolation = errors.New("state violation")

	ErrOrderBookNotFound = fmt.Errorf("%w: order book not found", ErrStateViolation)
	ErrOrderNotTracked   = fmt.Errorf("%w: order is not tracked", ErrStateViolation)

	ErrBadSymbol          = errors.New("bad symbol")
	ErrUnknownMarket      = errors.New("unknown market")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrNotConnected       = errors.New("connection is not established")
)

// NewAuthenticationError builds the error delivered to every waiter when the venue rejects credentials.
func NewAuthenticationError(reason string) error {
	return fmt.Errorf("%w: Authentication failed: %s", ErrAuthentication, reason)
}

func NewExchangeError(venue, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrExchange, venue, reason)
}

func NewProtocolError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}
