package rental

import (
	"encoding/hex"
	"strconv"

	"w2rchain/core/types"
)

const (
	EventTypeProposalMade      = "rental.proposal_made"
	EventTypeProposalReceived  = "rental.proposal_received"
	EventTypeProposalCancelled = "rental.proposal_cancelled"
	EventTypeStarted           = "rental.started"
	EventTypeBikeTaken         = "rental.bike_taken"
	EventTypeDeclaredReturned  = "rental.declared_returned"
	EventTypeReturned          = "rental.returned"
	EventTypeCancelled         = "rental.cancelled"
	EventTypeActivated         = "rental.activated"
	EventTypeGPSUpdated        = "rental.gps_updated"
	EventTypeConfigProposed    = "rental.config_proposed"
	EventTypeConfigConfirmed   = "rental.config_confirmed"
	EventTypeDeposited         = "rental.deposited"
	EventTypeWithdrawn         = "rental.withdrawn"
	EventTypeRewardsClaimed    = "rental.rewards_claimed"
	EventTypeDestroyed         = "rental.destroyed"
)

func newProposalEvent(eventType string, p *Proposal) *types.Event {
	attrs := make(map[string]string)
	if p != nil {
		attrs["id"] = hex.EncodeToString(p.ID[:])
		attrs["lender"] = hex.EncodeToString(p.Lender[:])
		attrs["renter"] = hex.EncodeToString(p.Renter[:])
		attrs["windowStart"] = strconv.FormatInt(p.WindowStart, 10)
		attrs["windowEnd"] = strconv.FormatInt(p.WindowEnd, 10)
		attrs["durationDays"] = strconv.FormatUint(uint64(p.DurationDays), 10)
		attrs["total"] = p.Total().String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newRentalEvent(eventType string, r *Rental) *types.Event {
	attrs := make(map[string]string)
	if r != nil {
		attrs["id"] = hex.EncodeToString(r.ID[:])
		attrs["lender"] = hex.EncodeToString(r.Lender[:])
		attrs["renter"] = hex.EncodeToString(r.Renter[:])
		attrs["date"] = strconv.FormatInt(r.Date, 10)
		attrs["durationDays"] = strconv.FormatUint(uint64(r.DurationDays), 10)
		if r.PriceTotal != nil {
			attrs["priceTotal"] = r.PriceTotal.String()
		}
		if r.Deposit != nil {
			attrs["deposit"] = r.Deposit.String()
		}
		if r.RewardAmount != nil && r.RewardAmount.Sign() > 0 {
			attrs["reward"] = r.RewardAmount.String()
		}
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newAccountEvent(eventType string, owner [20]byte, lender bool, amount string) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"owner":  hex.EncodeToString(owner[:]),
			"lender": strconv.FormatBool(lender),
			"amount": amount,
		},
	}
}

func newConfigEvent(eventType string, cfg *LenderConfig) *types.Event {
	attrs := make(map[string]string)
	if cfg != nil {
		attrs["owner"] = hex.EncodeToString(cfg.Owner[:])
		attrs["version"] = strconv.FormatUint(uint64(cfg.Version), 10)
		if cfg.Rate != nil {
			attrs["rate"] = cfg.Rate.String()
		}
		if cfg.Deposit != nil {
			attrs["deposit"] = cfg.Deposit.String()
		}
		attrs["maxRentalDays"] = strconv.FormatUint(uint64(cfg.MaxRentalDays), 10)
		if cfg.Pending != nil {
			attrs["pendingRequired"] = strconv.FormatUint(uint64(cfg.Pending.Required), 10)
			attrs["pendingConfirmed"] = strconv.FormatUint(uint64(cfg.Pending.Confirmed), 10)
		}
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
