package amm

import "errors"

var (
	ErrNotOwner              = errors.New("amm: caller is not the owner")
	ErrPoolNotSeeded         = errors.New("amm: first deposit is owner-only")
	ErrInvalidAmount         = errors.New("amm: amount must be positive")
	ErrInvalidRate           = errors.New("amm: swap rate must be positive")
	ErrRatioSlippage         = errors.New("amm: deposit ratio outside tolerance")
	ErrInsufficientFunds     = errors.New("amm: insufficient wallet balance")
	ErrInsufficientShares    = errors.New("amm: insufficient LP shares")
	ErrInsufficientLiquidity = errors.New("amm: pool cannot cover swap output")
	ErrExceedsLiquidityCap   = errors.New("amm: swap exceeds per-trade liquidity cap")
	ErrNothingFarmed         = errors.New("amm: no farmed shares")
	ErrNothingToHarvest      = errors.New("amm: no rewards accrued")
	ErrNoFees                = errors.New("amm: fee pool is empty")
)
