package vault

import "errors"

var (
	ErrNotOwner            = errors.New("vault: caller is not the owner")
	ErrNotWhitelistMaster  = errors.New("vault: caller is not a whitelist master")
	ErrNotApproved         = errors.New("vault: caller is not approved")
	ErrInvalidAmount       = errors.New("vault: amount must be positive")
	ErrInvalidAddress      = errors.New("vault: zero address")
	ErrInsufficientReserve = errors.New("vault: distribution exceeds reserve")
	ErrMasterAlreadySet    = errors.New("vault: whitelist master already set")
)
