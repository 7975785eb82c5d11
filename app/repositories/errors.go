// Package repositories is the persistence layer. Every method takes a
// context and runs on the *gorm.DB it was built with, so the same repository
// type works on the pool or inside a transaction.
package repositories

import "errors"

var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("repositories: not found")
	// ErrInsufficientStock means a conditional decrement matched no row
	// because stock was lower than requested.
	ErrInsufficientStock = errors.New("repositories: insufficient stock")
	// ErrStaleStatus means a status transition lost a race: the row was no
	// longer in one of the expected source states.
	ErrStaleStatus = errors.New("repositories: order status changed concurrently")
)
