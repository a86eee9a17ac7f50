package staking

import (
	"encoding/hex"
	"strconv"

	"w2rchain/core/types"
)

const (
	EventTypeStaked        = "staking.staked"
	EventTypeUnstaked      = "staking.unstaked"
	EventTypeRewardClaimed = "staking.reward_claimed"
	EventTypeLockExtended  = "staking.lock_extended"
)

func newStakeEvent(eventType string, s *Staker, amount string) *types.Event {
	attrs := map[string]string{
		"owner":  hex.EncodeToString(s.Owner[:]),
		"amount": amount,
		"staked": s.Amount.String(),
	}
	if s.LockEnd > 0 {
		attrs["lockEnd"] = strconv.FormatInt(s.LockEnd, 10)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
