package rpc

import (
	"encoding/json"
	"math/big"

	"w2rchain/observability/metrics"
)

func (s *Server) handleRental(method string, params []json.RawMessage) (interface{}, *RPCError) {
	eng := s.engines.Rental
	if eng == nil {
		return nil, &RPCError{Code: codeServerError, Message: "rental engine not configured"}
	}
	switch method {
	case "rental_destroy":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		owner, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		isLender, rpcErr := boolParam(params, 2)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.Destroy(caller, owner, isLender); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "rental_depositW2R":
		owner, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		isLender, rpcErr := boolParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		amount, rpcErr := amountParam(params, 2)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.DepositW2R(owner, isLender, amount); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "rental_withdrawFunds":
		owner, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		isLender, rpcErr := boolParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		amount, rpcErr := amountParam(params, 2)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.WithdrawFunds(owner, isLender, amount); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "rental_claimRewards":
		owner, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		isLender, rpcErr := boolParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		claimed, err := eng.ClaimRewards(owner, isLender)
		if err != nil {
			return nil, engineError(err)
		}
		paid, _ := new(big.Float).SetInt(claimed).Float64()
		metrics.Rental().AddRewardsPaid(paid)
		return claimed.String(), nil
	case "rental_totalRewards":
		owner, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		isLender, rpcErr := boolParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		total, err := eng.TotalRewards(owner, isLender)
		if err != nil {
			return nil, engineError(err)
		}
		return total.String(), nil
	case "rental_account":
		owner, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		isLender, rpcErr := boolParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		acct, ok, err := eng.Account(owner, isLender)
		if err != nil {
			return nil, engineError(err)
		}
		if !ok {
			return nil, nil
		}
		return acct, nil
	case "rental_activate":
		owner, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		var lat, lon string
		if rpcErr := decodeParam(params, 1, &lat); rpcErr != nil {
			return nil, rpcErr
		}
		if rpcErr := decodeParam(params, 2, &lon); rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.Activate(owner, lat, lon); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "rental_setGPS":
		owner, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		var lat, lon string
		if rpcErr := decodeParam(params, 1, &lat); rpcErr != nil {
			return nil, rpcErr
		}
		if rpcErr := decodeParam(params, 2, &lon); rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.SetGPS(owner, lat, lon); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "rental_config":
		owner, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		cfg, ok, err := eng.Config(owner)
		if err != nil {
			return nil, engineError(err)
		}
		if !ok {
			return nil, nil
		}
		return cfg, nil
	case "rental_proposeConfig":
		owner, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		rate, rpcErr := amountParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		deposit, rpcErr := amountParam(params, 2)
		if rpcErr != nil {
			return nil, rpcErr
		}
		var maxDays uint32
		if rpcErr := decodeParam(params, 3, &maxDays); rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.ProposeConfig(owner, rate, deposit, maxDays); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "rental_confirmConfig":
		owner, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.ConfirmConfig(owner); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "rental_makeProposal":
		renter, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		lender, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		var windowStart, windowEnd int64
		if rpcErr := decodeParam(params, 2, &windowStart); rpcErr != nil {
			return nil, rpcErr
		}
		if rpcErr := decodeParam(params, 3, &windowEnd); rpcErr != nil {
			return nil, rpcErr
		}
		var durationDays uint32
		if rpcErr := decodeParam(params, 4, &durationDays); rpcErr != nil {
			return nil, rpcErr
		}
		proposal, err := eng.MakeProposal(renter, lender, windowStart, windowEnd, durationDays)
		if err != nil {
			metrics.Rental().ObserveProposal("rejected")
			return nil, engineError(err)
		}
		metrics.Rental().ObserveProposal("made")
		return proposal, nil
	case "rental_cancelProposal":
		caller, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		lender, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		renter, rpcErr := addressParam(params, 2)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.CancelProposal(caller, lender, renter); err != nil {
			return nil, engineError(err)
		}
		return true, nil
	case "rental_deleteOldProposals":
		lender, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		removed, err := eng.DeleteOldProposals(lender)
		if err != nil {
			return nil, engineError(err)
		}
		return removed, nil
	case "rental_proposals":
		owner, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		isLender, rpcErr := boolParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		proposals, err := eng.ProposalsFor(owner, isLender)
		if err != nil {
			return nil, engineError(err)
		}
		return proposals, nil
	case "rental_acceptProposal":
		lender, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		renter, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		var meetingTime int64
		if rpcErr := decodeParam(params, 2, &meetingTime); rpcErr != nil {
			return nil, rpcErr
		}
		var lat, lon string
		if rpcErr := decodeParam(params, 3, &lat); rpcErr != nil {
			return nil, rpcErr
		}
		if rpcErr := decodeParam(params, 4, &lon); rpcErr != nil {
			return nil, rpcErr
		}
		r, err := eng.AcceptProposal(lender, renter, meetingTime, lat, lon)
		if err != nil {
			return nil, engineError(err)
		}
		metrics.Rental().ObserveTransition("started")
		return r, nil
	case "rental_confirmBikeTaken":
		lender, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		renter, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.ConfirmBikeTaken(lender, renter); err != nil {
			return nil, engineError(err)
		}
		metrics.Rental().ObserveTransition("taken")
		return true, nil
	case "rental_declareReturned":
		renter, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		lender, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		var token string
		if rpcErr := decodeParam(params, 2, &token); rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.DeclareReturned(renter, lender, token); err != nil {
			return nil, engineError(err)
		}
		metrics.Rental().ObserveTransition("declared")
		return true, nil
	case "rental_confirmBikeReturned":
		lender, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		renter, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		var token string
		if rpcErr := decodeParam(params, 2, &token); rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.ConfirmBikeReturned(lender, renter, token); err != nil {
			return nil, engineError(err)
		}
		metrics.Rental().ObserveSettlement()
		return true, nil
	case "rental_cancelRenting":
		renter, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		lender, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.CancelRenting(renter, lender); err != nil {
			return nil, engineError(err)
		}
		metrics.Rental().ObserveCancellation()
		return true, nil
	case "rental_cancelLending":
		lender, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		renter, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		if err := eng.CancelLending(lender, renter); err != nil {
			return nil, engineError(err)
		}
		metrics.Rental().ObserveCancellation()
		return true, nil
	case "rental_rentals":
		lender, rpcErr := addressParam(params, 0)
		if rpcErr != nil {
			return nil, rpcErr
		}
		renter, rpcErr := addressParam(params, 1)
		if rpcErr != nil {
			return nil, rpcErr
		}
		history, err := eng.Rentals(lender, renter)
		if err != nil {
			return nil, engineError(err)
		}
		return history, nil
	}
	return nil, &RPCError{Code: codeMethodNotFound, Message: "method not found", Data: method}
}
