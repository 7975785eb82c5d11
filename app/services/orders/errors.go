package orders

import (
	"errors"
	"strings"
)

var (
	ErrUnknownProduct   = errors.New("orders: unknown product")
	ErrPayment          = errors.New("orders: payment provider failed")
	ErrNotPaid          = errors.New("orders: checkout session is not paid")
	ErrAlreadyCancelled = errors.New("orders: order is already cancelled")
	ErrNotCancellable   = errors.New("orders: order can no longer be cancelled")
	ErrConcurrentUpdate = errors.New("orders: order was updated concurrently")
)

// UnavailableError carries the availability errors that blocked checkout.
type UnavailableError struct {
	Errors []string
}

func (e *UnavailableError) Error() string {
	return "orders: items unavailable: " + strings.Join(e.Errors, "; ")
}

// StockConflictError means payment succeeded but stock could not be taken.
type StockConflictError struct {
	Message string
}

func (e *StockConflictError) Error() string { return "orders: stock conflict: " + e.Message }
