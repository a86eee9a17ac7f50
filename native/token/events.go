package token

import (
	"encoding/hex"

	"w2rchain/core/types"
)

const (
	EventTypeMinted      = "token.minted"
	EventTypeBurned      = "token.burned"
	EventTypeTransferred = "token.transferred"
	EventTypePaused      = "token.paused"
	EventTypeUnpaused    = "token.unpaused"
	EventTypeApproved    = "token.approved"
)

func newTransferEvent(eventType string, from, to [20]byte, amount string) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"from":   hex.EncodeToString(from[:]),
			"to":     hex.EncodeToString(to[:]),
			"amount": amount,
		},
	}
}

func newPauseEvent(eventType string, caller [20]byte) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"caller": hex.EncodeToString(caller[:]),
		},
	}
}
