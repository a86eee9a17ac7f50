package rental

import "math/big"

// Params bounds proposal timing, concurrency, and settlement economics.
// Values are seconds unless noted.
type Params struct {
	// LeadTime is the minimum distance between now and a proposal's window
	// start.
	LeadTime int64
	// MinWindow and MaxWindow bound the meeting window width.
	MinWindow int64
	MaxWindow int64
	// RenterProposalCap bounds outstanding proposals per renter,
	// LenderProposalCap bounds received proposals per lender.
	RenterProposalCap uint32
	LenderProposalCap uint32
	// MaxActiveRentals bounds concurrently running rentals per lender.
	MaxActiveRentals uint32
	// RewardDivisor derives the settlement reward from the rental price.
	RewardDivisor int64
	// ReturnTokenTTL is the on-chain validity of the one-time return code.
	ReturnTokenTTL int64
	// Cooldown blocks deregistration after a rental ends.
	Cooldown int64
	// ReturnTokenLength is the exact length of the one-time return code.
	ReturnTokenLength int

	// Defaults applied to a lender's configuration at enrolment.
	DefaultRate          *big.Int
	DefaultDeposit       *big.Int
	DefaultMaxRentalDays uint32
}

// DefaultParams mirrors the platform's production parameters: a 3 hour lead
// buffer, 3-12 hour meeting windows, renter/lender caps of 3 and 5, and a
// 2 day post-rental cooldown.
func DefaultParams() Params {
	return Params{
		LeadTime:             10_700,
		MinWindow:            3 * 60 * 60,
		MaxWindow:            12 * 60 * 60,
		RenterProposalCap:    3,
		LenderProposalCap:    5,
		MaxActiveRentals:     1,
		RewardDivisor:        10,
		ReturnTokenTTL:       60,
		Cooldown:             2 * 24 * 60 * 60,
		ReturnTokenLength:    30,
		DefaultRate:          big.NewInt(0),
		DefaultDeposit:       big.NewInt(0),
		DefaultMaxRentalDays: 5,
	}
}

// Normalize fills zero fields with defaults so a partially-populated
// configuration cannot disable the guards.
func (p Params) Normalize() Params {
	def := DefaultParams()
	if p.LeadTime <= 0 {
		p.LeadTime = def.LeadTime
	}
	if p.MinWindow <= 0 {
		p.MinWindow = def.MinWindow
	}
	if p.MaxWindow <= 0 || p.MaxWindow < p.MinWindow {
		p.MaxWindow = def.MaxWindow
	}
	if p.RenterProposalCap == 0 {
		p.RenterProposalCap = def.RenterProposalCap
	}
	if p.LenderProposalCap == 0 {
		p.LenderProposalCap = def.LenderProposalCap
	}
	if p.MaxActiveRentals == 0 {
		p.MaxActiveRentals = def.MaxActiveRentals
	}
	if p.RewardDivisor <= 0 {
		p.RewardDivisor = def.RewardDivisor
	}
	if p.ReturnTokenTTL <= 0 {
		p.ReturnTokenTTL = def.ReturnTokenTTL
	}
	if p.Cooldown <= 0 {
		p.Cooldown = def.Cooldown
	}
	if p.ReturnTokenLength <= 0 {
		p.ReturnTokenLength = def.ReturnTokenLength
	}
	if p.DefaultRate == nil {
		p.DefaultRate = big.NewInt(0)
	}
	if p.DefaultDeposit == nil {
		p.DefaultDeposit = big.NewInt(0)
	}
	if p.DefaultMaxRentalDays == 0 {
		p.DefaultMaxRentalDays = def.DefaultMaxRentalDays
	}
	return p
}
