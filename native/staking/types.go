package staking

import "math/big"

// Staker is the per-address staking record. It survives a full unstake as an
// inert zero-amount record so lifetime history stays queryable.
type Staker struct {
	Owner           [20]byte `json:"owner"`
	Amount          *big.Int `json:"amount"`
	LockMonths      uint32   `json:"lockMonths"`
	ExtraMonths     uint32   `json:"extraMonths"`
	LockEnd         int64    `json:"lockEnd"`
	USDValueAtStake *big.Int `json:"usdValueAtStake"`
	StartTime       int64    `json:"startTime"`
	LastAccrual     int64    `json:"lastAccrual"`
	RewardDebt      *big.Int `json:"rewardDebt"`
}

func (s *Staker) Normalize() *Staker {
	if s.Amount == nil {
		s.Amount = big.NewInt(0)
	}
	if s.USDValueAtStake == nil {
		s.USDValueAtStake = big.NewInt(0)
	}
	if s.RewardDebt == nil {
		s.RewardDebt = big.NewInt(0)
	}
	return s
}

func (s *Staker) Clone() *Staker {
	if s == nil {
		return nil
	}
	return &Staker{
		Owner:           s.Owner,
		Amount:          new(big.Int).Set(s.Amount),
		LockMonths:      s.LockMonths,
		ExtraMonths:     s.ExtraMonths,
		LockEnd:         s.LockEnd,
		USDValueAtStake: new(big.Int).Set(s.USDValueAtStake),
		StartTime:       s.StartTime,
		LastAccrual:     s.LastAccrual,
		RewardDebt:      new(big.Int).Set(s.RewardDebt),
	}
}
