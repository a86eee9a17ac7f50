package types

import "math/big"

// Account holds the balances tracked for a single address: the W2R platform
// token and the MATIC gas token the AMM swaps against.
type Account struct {
	Nonce        uint64   `json:"nonce"`
	BalanceW2R   *big.Int `json:"balanceW2R"`
	BalanceMatic *big.Int `json:"balanceMatic"`
}

// NewAccount returns an account with zeroed, non-nil balances.
func NewAccount() *Account {
	return &Account{BalanceW2R: big.NewInt(0), BalanceMatic: big.NewInt(0)}
}

// Clone returns a deep copy so callers can mutate the result without touching
// the stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return NewAccount()
	}
	clone := &Account{Nonce: a.Nonce, BalanceW2R: big.NewInt(0), BalanceMatic: big.NewInt(0)}
	if a.BalanceW2R != nil {
		clone.BalanceW2R = new(big.Int).Set(a.BalanceW2R)
	}
	if a.BalanceMatic != nil {
		clone.BalanceMatic = new(big.Int).Set(a.BalanceMatic)
	}
	return clone
}

// Normalize ensures both balance fields are non-nil.
func (a *Account) Normalize() *Account {
	if a == nil {
		return NewAccount()
	}
	if a.BalanceW2R == nil {
		a.BalanceW2R = big.NewInt(0)
	}
	if a.BalanceMatic == nil {
		a.BalanceMatic = big.NewInt(0)
	}
	return a
}
