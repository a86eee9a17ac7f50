package amm

import (
	"encoding/hex"

	"w2rchain/core/types"
)

const (
	EventTypeLiquidityAdded   = "amm.liquidity_added"
	EventTypeLiquidityRemoved = "amm.liquidity_removed"
	EventTypeSwapped          = "amm.swapped"
	EventTypeFarmed           = "amm.farmed"
	EventTypeFarmExited       = "amm.farm_exited"
	EventTypeHarvested        = "amm.harvested"
	EventTypeRateUpdated      = "amm.rate_updated"
	EventTypeFeesWithdrawn    = "amm.fees_withdrawn"
	EventTypeMaticCredited    = "amm.matic_credited"
)

func newPoolEvent(eventType string, caller [20]byte, attrs map[string]string) *types.Event {
	if attrs == nil {
		attrs = make(map[string]string)
	}
	attrs["caller"] = hex.EncodeToString(caller[:])
	return &types.Event{Type: eventType, Attributes: attrs}
}
