package token

import "errors"

var (
	ErrNotOwner          = errors.New("token: caller is not the owner")
	ErrPaused            = errors.New("token: transfers paused")
	ErrNotPaused         = errors.New("token: not paused")
	ErrCapExceeded       = errors.New("token: cap exceeded")
	ErrInvalidAmount     = errors.New("token: amount must be positive")
	ErrInvalidAddress    = errors.New("token: zero address")
	ErrInsufficientFunds = errors.New("token: insufficient balance")
	ErrAllowanceExceeded = errors.New("token: allowance exceeded")
)
