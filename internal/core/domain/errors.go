package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidLocation   = errors.New("invalid location, must be 'online' or 'club'")
	ErrInvalidAmount     = errors.New("quantity must be positive")
	ErrInvalidTransfer   = errors.New("source and destination must differ")
	ErrSizeNotFound      = errors.New("size not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
)

// An InsufficientStockError describes a rejected transfer.
//
// It matches [ErrInsufficientStock] with [errors.Is].
type InsufficientStockError struct {
	Size      string
	Location  Location
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf(
		"%s at %s for size %s: available %d, requested %d",
		ErrInsufficientStock, e.Location, e.Size, e.Available, e.Requested,
	)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// IsRejection reports whether err is a ledger rule violation
// caused by the caller input rather than by the infrastructure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidLocation) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidTransfer) ||
		errors.Is(err, ErrSizeNotFound) ||
		errors.Is(err, ErrInsufficientStock)
}
