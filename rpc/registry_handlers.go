package rpc

import (
	"encoding/hex"
	"encoding/json"

	"w2rchain/native/registry"
)

func (s *Server) registryFor(params []json.RawMessage) (*registry.Engine, *RPCError) {
	var side string
	if rpcErr := decodeParam(params, 0, &side); rpcErr != nil {
		return nil, rpcErr
	}
	switch side {
	case "lender":
		if s.engines.LenderRegistry == nil {
			return nil, &RPCError{Code: codeServerError, Message: "lender registry not configured"}
		}
		return s.engines.LenderRegistry, nil
	case "renter":
		if s.engines.RenterRegistry == nil {
			return nil, &RPCError{Code: codeServerError, Message: "renter registry not configured"}
		}
		return s.engines.RenterRegistry, nil
	}
	return nil, invalidParams("side must be \"lender\" or \"renter\"")
}

type memberResult struct {
	Owner       string               `json:"owner"`
	Side        string               `json:"side"`
	TokenID     uint64               `json:"tokenId"`
	Bike        *registry.BikeInfo   `json:"bike,omitempty"`
	Renter      *registry.RenterInfo `json:"renter,omitempty"`
	Whitelisted bool                 `json:"whitelisted"`
	Blacklisted bool                 `json:"blacklisted"`
	CreatedAt   int64                `json:"createdAt"`
}

func newMemberResult(m *registry.Member) *memberResult {
	if m == nil {
		return nil
	}
	return &memberResult{
		Owner:       hex.EncodeToString(m.Owner[:]),
		Side:        m.Side.String(),
		TokenID:     m.TokenID,
		Bike:        m.Bike,
		Renter:      m.Renter,
		Whitelisted: m.Whitelisted,
		Blacklisted: m.Blacklisted,
		CreatedAt:   m.CreatedAt,
	}
}

func (s *Server) handleRegistry(method string, params []json.RawMessage) (interface{}, *RPCError) {
	switch method {
	case "registry_registerLender":
		eng := s.engines.LenderRegistry
		if eng == nil {
			return nil, &RPCError{Code: codeServerError, Message: "lender registry not configured"}
		}
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		var info registry.BikeInfo
		if rpcErr := decodeParam(params, 1, &info); rpcErr != nil {
			return nil, rpcErr
		}
		member, err := eng.RegisterLender(caller, &info)
		if err != nil {
			return nil, engineError(err)
		}
		return newMemberResult(member), nil
	case "registry_registerRenter":
		eng := s.engines.RenterRegistry
		if eng == nil {
			return nil, &RPCError{Code: codeServerError, Message: "renter registry not configured"}
		}
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		var info registry.RenterInfo
		if rpcErr := decodeParam(params, 1, &info); rpcErr != nil {
			return nil, rpcErr
		}
		member, err := eng.RegisterRenter(caller, &info)
		if err != nil {
			return nil, engineError(err)
		}
		return newMemberResult(member), nil
	case "registry_deregister":
		eng, rpcErr := s.registryFor(params)
		if rpcErr != nil {
			return nil, rpcErr
		}
		caller, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.Deregister(caller); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "registry_addToBlacklist":
		eng, rpcErr := s.registryFor(params)
		if rpcErr != nil {
			return nil, rpcErr
		}
		caller, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		addr, rpcErr := addressParam(params, 2)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.AddToBlacklist(caller, addr); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "registry_removeFromBlacklist":
		eng, rpcErr := s.registryFor(params)
		if rpcErr != nil {
			return nil, rpcErr
		}
		caller, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		addr, rpcErr := addressParam(params, 2)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.RemoveFromBlacklist(caller, addr); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "registry_member":
		eng, rpcErr := s.registryFor(params)
		if rpcErr != nil {
			return nil, rpcErr
		}
		addr, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		member, ok, err := eng.Member(addr)
		if err != nil {
			return nil, engineError(err)
		}
		if !ok {
			return nil, nil
		}
		return newMemberResult(member), nil
	case "registry_isWhitelisted":
		eng, rpcErr := s.registryFor(params)
		if rpcErr != nil {
			return nil, rpcErr
		}
		addr, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		ok, err := eng.IsWhitelisted(addr)
		if err != nil {
			return nil, engineError(err)
		}
		return ok, nil
	}
	return nil, &RPCError{Code: codeMethodNotFound, Message: "method not found", Data: method}
}
