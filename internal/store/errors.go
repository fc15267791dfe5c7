package store

import "errors"

// Sentinel errors returned by store operations. Services translate these to
// HTTP statuses.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrNotOwner          = errors.New("resource belongs to another merchant")
)
