package rpc

import (
	"encoding/json"
	"math/big"

	"w2rchain/observability/metrics"
)

func (s *Server) handleAMM(method string, params []json.RawMessage) (interface{}, *RPCError) {
	eng := s.engines.AMM
	if eng == nil {
		return nil, &RPCError{Code: codeServerError, Message: "amm engine not configured"}
	}
	switch method {
	case "amm_setSwapRate":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		rate, rpcErr := amountParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.SetSwapRate(caller, rate); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "amm_creditMatic":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		receiver, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		amount, rpcErr := amountParam(params, 2)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.CreditMatic(caller, receiver, amount); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "amm_addLiquidity":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		matic, rpcErr := amountParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		w2r, rpcErr := amountParam(params, 2)
		if rpcErr != nil {
			return nil, rpcErr
		}
		minted, err := eng.AddLiquidity(caller, matic, w2r)
		if err != nil {
			return nil, engineError(err)
		}
		return minted.String(), nil
	case "amm_removeLiquidity":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		lp, rpcErr := amountParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		matic, w2r, err := eng.RemoveLiquidity(caller, lp)
		if err != nil {
			return nil, engineError(err)
		}
		return map[string]string{"matic": matic.String(), "w2r": w2r.String()}, nil
	case "amm_swapMaticForW2R":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		amount, rpcErr := amountParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		out, err := eng.SwapMaticForW2R(caller, amount)
		if err != nil {
			return nil, engineError(err)
		}
		metrics.Pool().ObserveSwap("matic_to_w2r")
		return out.String(), nil
	case "amm_swapW2RForMatic":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		amount, rpcErr := amountParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		out, err := eng.SwapW2RForMatic(caller, amount)
		if err != nil {
			return nil, engineError(err)
		}
		metrics.Pool().ObserveSwap("w2r_to_matic")
		return out.String(), nil
	case "amm_withdrawFees":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.WithdrawFees(caller); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "amm_farm":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		lp, rpcErr := amountParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.Farm(caller, lp); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "amm_exitFarm":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.ExitFarm(caller); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "amm_harvest":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		paid, err := eng.Harvest(caller)
		if err != nil {
			return nil, engineError(err)
		}
		amount, _ := new(big.Float).SetInt(paid).Float64()
		metrics.Pool().AddRewardsPaid(amount)
		return paid.String(), nil
	case "amm_pendingReward":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		pending, err := eng.PendingReward(caller)
		if err != nil {
			return nil, engineError(err)
		}
		return pending.String(), nil
	case "amm_userBalances":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		balances, err := eng.GetUserBalances(caller)
		if err != nil {
			return nil, engineError(err)
		}
		return balances, nil
	case "amm_contractBalances":
		pool, err := eng.GetContractBalances()
		if err != nil {
			return nil, engineError(err)
		}
		return pool, nil
	case "amm_feesPercent":
		return eng.FeesPercent(), nil
	}
	return nil, &RPCError{Code: codeMethodNotFound, Message: "method not found", Data: method}
}
