package common

import (
	"errors"
	"math"
)

var (
	ErrCapacityExceeded        = errors.New("capacity exceeded")
	ErrCapacityCounterOverflow = errors.New("capacity counter overflow")
)

// Capacity bounds the number of concurrently outstanding items an address may
// hold with a module, e.g. open rental proposals per renter or per lender.
// A zero Max disables the check.
type Capacity struct {
	Max uint32
}

// CheckCapacity verifies that adding more items keeps the counter within the
// configured bound and returns the updated count.
func CheckCapacity(c Capacity, current uint32, add uint32) (uint32, error) {
	if add > 0 && current > math.MaxUint32-add {
		return current, ErrCapacityCounterOverflow
	}
	next := current + add
	if c.Max > 0 && next > c.Max {
		return current, ErrCapacityExceeded
	}
	return next, nil
}
