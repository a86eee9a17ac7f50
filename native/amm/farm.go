package amm

import "math/big"

const secondsPerYear = 365 * 24 * 60 * 60

// Farm stakes lpAmount of the caller's free LP shares. Accrual is
// checkpointed before the stake changes so past rewards keep their old base.
func (e *Engine) Farm(caller [20]byte, lpAmount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	lp, err := positive(lpAmount)
	if err != nil {
		return err
	}
	shares, err := e.state.LPBalance(caller)
	if err != nil {
		return err
	}
	if shares.Cmp(lp) < 0 {
		return ErrInsufficientShares
	}
	record, ok, err := e.state.FarmRecordGet(caller)
	if err != nil {
		return err
	}
	if !ok {
		record = &FarmRecord{Owner: caller, LastAccrual: e.now()}
	}
	record = record.Normalize()
	if err := e.checkpoint(record); err != nil {
		return err
	}
	record.LPAmount = new(big.Int).Add(record.LPAmount, lp)
	if err := e.state.SetLPBalance(caller, new(big.Int).Sub(shares, lp)); err != nil {
		return err
	}
	if err := e.state.FarmRecordPut(record); err != nil {
		return err
	}
	e.emit(newPoolEvent(EventTypeFarmed, caller, map[string]string{
		"lp":    lp.String(),
		"total": record.LPAmount.String(),
	}))
	return nil
}

// ExitFarm returns every farmed share to the caller's free LP balance and
// pays out whatever has accrued.
func (e *Engine) ExitFarm(caller [20]byte) error {
	if err := e.guard(); err != nil {
		return err
	}
	record, ok, err := e.state.FarmRecordGet(caller)
	if err != nil {
		return err
	}
	if !ok || record.Normalize().LPAmount.Sign() == 0 {
		return ErrNothingFarmed
	}
	record = record.Normalize()
	if err := e.checkpoint(record); err != nil {
		return err
	}
	staked := new(big.Int).Set(record.LPAmount)
	record.LPAmount = big.NewInt(0)
	if err := e.payPending(caller, record); err != nil {
		return err
	}
	shares, err := e.state.LPBalance(caller)
	if err != nil {
		return err
	}
	if err := e.state.SetLPBalance(caller, new(big.Int).Add(shares, staked)); err != nil {
		return err
	}
	if err := e.state.FarmRecordPut(record); err != nil {
		return err
	}
	e.emit(newPoolEvent(EventTypeFarmExited, caller, map[string]string{
		"lp": staked.String(),
	}))
	return nil
}

// Harvest pays the caller's accrued farming rewards without touching the
// staked shares.
func (e *Engine) Harvest(caller [20]byte) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	record, ok, err := e.state.FarmRecordGet(caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNothingFarmed
	}
	record = record.Normalize()
	if err := e.checkpoint(record); err != nil {
		return nil, err
	}
	if record.Pending.Sign() == 0 {
		return nil, ErrNothingToHarvest
	}
	paid := new(big.Int).Set(record.Pending)
	if err := e.payPending(caller, record); err != nil {
		return nil, err
	}
	if err := e.state.FarmRecordPut(record); err != nil {
		return nil, err
	}
	e.emit(newPoolEvent(EventTypeHarvested, caller, map[string]string{
		"reward": paid.String(),
		"at":     formatSeconds(record.LastAccrual),
	}))
	return paid, nil
}

// PendingReward reports what a harvest would pay right now.
func (e *Engine) PendingReward(caller [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, ok, err := e.state.FarmRecordGet(caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	record = record.Normalize().Clone()
	if err := e.checkpoint(record); err != nil {
		return nil, err
	}
	return record.Pending, nil
}

// checkpoint folds the linear accrual since LastAccrual into Pending. The
// reward base is the staked shares' pro-rata claim on the pool valued in W2R
// at the fixed rate.
func (e *Engine) checkpoint(record *FarmRecord) error {
	now := e.now()
	elapsed := now - record.LastAccrual
	record.LastAccrual = now
	if elapsed <= 0 || record.LPAmount.Sign() == 0 {
		return nil
	}
	p, err := e.pool()
	if err != nil {
		return err
	}
	if p.LPSupply.Sign() == 0 {
		return nil
	}
	value := new(big.Int).Mul(p.MaticReserve, p.SwapRate)
	value.Add(value, p.W2RReserve)
	value.Mul(value, record.LPAmount)
	value.Div(value, p.LPSupply)

	reward := new(big.Int).Mul(value, big.NewInt(e.yieldBps))
	reward.Mul(reward, big.NewInt(elapsed))
	reward.Div(reward, big.NewInt(bpsDenominator))
	reward.Div(reward, big.NewInt(secondsPerYear))
	record.Pending = new(big.Int).Add(record.Pending, reward)
	return nil
}

func (e *Engine) payPending(caller [20]byte, record *FarmRecord) error {
	if record.Pending.Sign() == 0 {
		return nil
	}
	if e.rewards == nil {
		return nil
	}
	if err := e.rewards.DistributeW2R(ModuleAddress, caller, record.Pending); err != nil {
		return err
	}
	record.Pending = big.NewInt(0)
	return nil
}
