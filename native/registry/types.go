package registry

import (
	"fmt"
	"strings"
)

// Side distinguishes the two mirrored registries.
type Side uint8

const (
	SideLender Side = iota
	SideRenter
)

// String returns the canonical lowercase side name.
func (s Side) String() string {
	switch s {
	case SideLender:
		return "lender"
	case SideRenter:
		return "renter"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// Valid reports whether the side value is within the supported range.
func (s Side) Valid() bool {
	return s == SideLender || s == SideRenter
}

// BikeInfo carries the attributes encoded into a lender membership token.
type BikeInfo struct {
	Name         string `json:"name"`
	Brand        string `json:"brand"`
	Model        string `json:"model"`
	Serial       string `json:"serial"`
	Registration string `json:"registration"`
}

// Sanitize trims the fields and rejects an entirely empty record.
func (b *BikeInfo) Sanitize() (*BikeInfo, error) {
	if b == nil {
		return nil, fmt.Errorf("registry: nil bike info")
	}
	clean := &BikeInfo{
		Name:         strings.TrimSpace(b.Name),
		Brand:        strings.TrimSpace(b.Brand),
		Model:        strings.TrimSpace(b.Model),
		Serial:       strings.TrimSpace(b.Serial),
		Registration: strings.TrimSpace(b.Registration),
	}
	if clean.Name == "" || clean.Serial == "" {
		return nil, fmt.Errorf("registry: bike name and serial required")
	}
	return clean, nil
}

// RenterInfo carries the attributes encoded into a renter membership token.
type RenterInfo struct {
	Name       string `json:"name"`
	Preference string `json:"preference"`
}

// Sanitize trims the fields and rejects a missing name.
func (r *RenterInfo) Sanitize() (*RenterInfo, error) {
	if r == nil {
		return nil, fmt.Errorf("registry: nil renter info")
	}
	clean := &RenterInfo{
		Name:       strings.TrimSpace(r.Name),
		Preference: strings.TrimSpace(r.Preference),
	}
	if clean.Name == "" {
		return nil, fmt.Errorf("registry: renter name required")
	}
	return clean, nil
}

// Member is the Membership Record held per registered address. The membership
// token is non-transferable; TokenID is only meaningful while Whitelisted.
// Records survive removal so the blacklist flag persists.
type Member struct {
	Owner       [20]byte    `json:"owner"`
	Side        Side        `json:"side"`
	TokenID     uint64      `json:"tokenId"`
	Bike        *BikeInfo   `json:"bike,omitempty"`
	Renter      *RenterInfo `json:"renter,omitempty"`
	Whitelisted bool        `json:"whitelisted"`
	Blacklisted bool        `json:"blacklisted"`
	CreatedAt   int64       `json:"createdAt"`
}

// Clone returns a deep copy of the member record.
func (m *Member) Clone() *Member {
	if m == nil {
		return nil
	}
	clone := *m
	if m.Bike != nil {
		bike := *m.Bike
		clone.Bike = &bike
	}
	if m.Renter != nil {
		renter := *m.Renter
		clone.Renter = &renter
	}
	return &clone
}
