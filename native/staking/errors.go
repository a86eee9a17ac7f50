package staking

import "errors"

var (
	ErrInvalidAmount      = errors.New("staking: amount must be positive")
	ErrLockOutOfRange     = errors.New("staking: lock months out of range")
	ErrNoStake            = errors.New("staking: no stake for address")
	ErrInsufficientStake  = errors.New("staking: unstake exceeds staked amount")
	ErrEarlyUnstakeWindow = errors.New("staking: unstaking blocked during initial window")
	ErrNothingToClaim     = errors.New("staking: nothing to claim")
	ErrNoPriceFeed        = errors.New("staking: price feed not configured")
)
