package rpc

import (
	"encoding/json"
	"math/big"

	"w2rchain/observability/metrics"
)

func (s *Server) handleStaking(method string, params []json.RawMessage) (interface{}, *RPCError) {
	eng := s.engines.Staking
	if eng == nil {
		return nil, &RPCError{Code: codeServerError, Message: "staking engine not configured"}
	}
	switch method {
	case "staking_stake":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		amount, rpcErr := amountParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		var lockMonths uint32
		if rpcErr := decodeParam(params, 2, &lockMonths); rpcErr != nil {
			return nil, rpcErr
		}
		extendLock, rpcErr := boolParam(params, 3)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.Stake(caller, amount, lockMonths, extendLock); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "staking_unstake":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		amount, rpcErr := amountParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		proportional, rpcErr := boolParam(params, 2)
		if rpcErr != nil {
			return nil, rpcErr
		}
		paid, err := eng.Unstake(caller, amount, proportional)
		if err != nil {
			return nil, engineError(err)
		}
		return paid.String(), nil
	case "staking_claimReward":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		paid, err := eng.ClaimReward(caller)
		if err != nil {
			return nil, engineError(err)
		}
		amount, _ := new(big.Float).SetInt(paid).Float64()
		metrics.Pool().AddRewardsPaid(amount)
		return paid.String(), nil
	case "staking_viewReward":
		addr, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		pending, err := eng.ViewReward(addr)
		if err != nil {
			return nil, engineError(err)
		}
		return pending.String(), nil
	case "staking_stakers":
		addr, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		staker, ok, err := eng.Stakers(addr)
		if err != nil {
			return nil, engineError(err)
		}
		if !ok {
			return nil, nil
		}
		return staker, nil
	case "staking_multiplier":
		addr, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		afterLock, rpcErr := boolParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		mult, err := eng.CalculateMultiplier(addr, afterLock)
		if err != nil {
			return nil, engineError(err)
		}
		return mult.String(), nil
	case "staking_maxLockPeriod":
		return eng.MaxLockPeriod(), nil
	case "staking_earlyUnstakePenalty":
		return eng.EarlyUnstakePenalty(), nil
	}
	return nil, &RPCError{Code: codeMethodNotFound, Message: "method not found", Data: method}
}
