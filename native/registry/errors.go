package registry

import "errors"

var (
	ErrNotOwner           = errors.New("registry: caller is not the owner")
	ErrAlreadyRegistered  = errors.New("registry: address already registered")
	ErrBlacklisted        = errors.New("registry: address blacklisted")
	ErrNotRegistered      = errors.New("registry: address not registered")
	ErrCooldownActive     = errors.New("registry: rental cooldown active")
	ErrCounterpartSet     = errors.New("registry: counterpart already set")
	ErrCounterpartMissing = errors.New("registry: counterpart not configured")
	ErrNotBlacklisted     = errors.New("registry: address not blacklisted")
)
