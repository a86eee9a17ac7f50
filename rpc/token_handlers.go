package rpc

import (
	"encoding/json"
	"math/big"
)

func amountParam(params []json.RawMessage, i int) (*big.Int, *RPCError) {
	var raw string
	if rpcErr := decodeParam(params, i, &raw); rpcErr != nil {
		return nil, rpcErr
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, invalidParams("invalid amount: " + raw)
	}
	return amount, nil
}

func boolParam(params []json.RawMessage, i int) (bool, *RPCError) {
	var v bool
	if rpcErr := decodeParam(params, i, &v); rpcErr != nil {
		return false, rpcErr
	}
	return v, nil
}

func (s *Server) handleToken(method string, params []json.RawMessage) (interface{}, *RPCError) {
	eng := s.engines.Token
	if eng == nil {
		return nil, &RPCError{Code: codeServerError, Message: "token engine not configured"}
	}
	switch method {
	case "token_balanceOf":
		addr, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		balance, err := eng.BalanceOf(addr)
		if err != nil {
			return nil, engineError(err)
		}
		return balance.String(), nil
	case "token_totalSupply":
		supply, err := eng.TotalSupply()
		if err != nil {
			return nil, engineError(err)
		}
		return supply.String(), nil
	case "token_allowance":
		owner, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		spender, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		allowance, err := eng.Allowance(owner, spender)
		if err != nil {
			return nil, engineError(err)
		}
		return allowance.String(), nil
	case "token_paused":
		paused, err := eng.Paused()
		if err != nil {
			return nil, engineError(err)
		}
		return paused, nil
	case "token_mint":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		to, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		amount, rpcErr := amountParam(params, 2)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.Mint(caller, to, amount); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "token_burn":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		amount, rpcErr := amountParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.Burn(caller, amount); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "token_burnFrom":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		holder, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		amount, rpcErr := amountParam(params, 2)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.BurnFrom(caller, holder, amount); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "token_transfer":
		from, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		to, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		amount, rpcErr := amountParam(params, 2)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.Transfer(from, to, amount); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "token_transferFrom":
		spender, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		from, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		to, rpcErr := addressParam(params, 2)
		if rpcErr != nil {
			return nil, rpcErr
		}
		amount, rpcErr := amountParam(params, 3)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.TransferFrom(spender, from, to, amount); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "token_approve":
		owner, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		spender, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		amount, rpcErr := amountParam(params, 2)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.Approve(owner, spender, amount); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "token_pause":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.Pause(caller); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "token_unpause":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.Unpause(caller); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	}
	return nil, &RPCError{Code: codeMethodNotFound, Message: "method not found", Data: method}
}

func (s *Server) handleVault(method string, params []json.RawMessage) (interface{}, *RPCError) {
	eng := s.engines.Vault
	if eng == nil {
		return nil, &RPCError{Code: codeServerError, Message: "vault engine not configured"}
	}
	switch method {
	case "vault_reserve":
		reserve, err := eng.Reserve()
		if err != nil {
			return nil, engineError(err)
		}
		return reserve.String(), nil
	case "vault_approvedContract":
		addr, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		approved, err := eng.ApprovedContract(addr)
		if err != nil {
			return nil, engineError(err)
		}
		return approved, nil
	case "vault_setApprovedContract":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		addr, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		approved, rpcErr := boolParam(params, 2)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.SetApprovedContract(caller, addr, approved); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "vault_distributeW2R":
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
		if err := eng.DistributeW2R(caller, receiver, amount); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "vault_withdrawW2R":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		amount, rpcErr := amountParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.WithdrawW2R(caller, amount); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	}
	return nil, &RPCError{Code: codeMethodNotFound, Message: "method not found", Data: method}
}
