package amm

import "math/big"

// Pool is the single fixed-rate liquidity pool. SwapRate is the nominal
// number of W2R per MATIC; pricing is this constant ratio, not a curve.
type Pool struct {
	SwapRate     *big.Int `json:"swapRate"`
	MaticReserve *big.Int `json:"maticReserve"`
	W2RReserve   *big.Int `json:"w2rReserve"`
	FeePoolMatic *big.Int `json:"feePoolMatic"`
	FeePoolW2R   *big.Int `json:"feePoolW2r"`
	LPSupply     *big.Int `json:"lpSupply"`
}

func (p *Pool) Normalize() *Pool {
	if p.SwapRate == nil {
		p.SwapRate = big.NewInt(0)
	}
	if p.MaticReserve == nil {
		p.MaticReserve = big.NewInt(0)
	}
	if p.W2RReserve == nil {
		p.W2RReserve = big.NewInt(0)
	}
	if p.FeePoolMatic == nil {
		p.FeePoolMatic = big.NewInt(0)
	}
	if p.FeePoolW2R == nil {
		p.FeePoolW2R = big.NewInt(0)
	}
	if p.LPSupply == nil {
		p.LPSupply = big.NewInt(0)
	}
	return p
}

func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := &Pool{
		SwapRate:     new(big.Int).Set(p.SwapRate),
		MaticReserve: new(big.Int).Set(p.MaticReserve),
		W2RReserve:   new(big.Int).Set(p.W2RReserve),
		FeePoolMatic: new(big.Int).Set(p.FeePoolMatic),
		FeePoolW2R:   new(big.Int).Set(p.FeePoolW2R),
		LPSupply:     new(big.Int).Set(p.LPSupply),
	}
	return clone
}

// FarmRecord tracks a provider's staked LP shares. LPAmount only grows via
// Farm and only shrinks via ExitFarm; Pending accumulates checkpointed but
// unpaid rewards.
type FarmRecord struct {
	Owner       [20]byte `json:"owner"`
	LPAmount    *big.Int `json:"lpAmount"`
	Pending     *big.Int `json:"pending"`
	LastAccrual int64    `json:"lastAccrual"`
}

func (f *FarmRecord) Normalize() *FarmRecord {
	if f.LPAmount == nil {
		f.LPAmount = big.NewInt(0)
	}
	if f.Pending == nil {
		f.Pending = big.NewInt(0)
	}
	return f
}

func (f *FarmRecord) Clone() *FarmRecord {
	if f == nil {
		return nil
	}
	return &FarmRecord{
		Owner:       f.Owner,
		LPAmount:    new(big.Int).Set(f.LPAmount),
		Pending:     new(big.Int).Set(f.Pending),
		LastAccrual: f.LastAccrual,
	}
}

// UserBalances is the per-caller view over wallet and LP holdings.
type UserBalances struct {
	Matic  *big.Int `json:"matic"`
	W2R    *big.Int `json:"w2r"`
	LP     *big.Int `json:"lp"`
	Farmed *big.Int `json:"farmed"`
}
