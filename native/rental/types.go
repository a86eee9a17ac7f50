package rental

import (
	"encoding/binary"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Proposal is an unaccepted rental offer between one lender and one renter.
// Price terms are frozen from the lender's configuration at creation so a
// later config change cannot reprice an outstanding offer.
type Proposal struct {
	ID            [32]byte `json:"id"`
	Lender        [20]byte `json:"lender"`
	Renter        [20]byte `json:"renter"`
	CreatedAt     int64    `json:"createdAt"`
	WindowStart   int64    `json:"windowStart"`
	WindowEnd     int64    `json:"windowEnd"`
	DurationDays  uint32   `json:"durationDays"`
	Rate          *big.Int `json:"rate"`
	Deposit       *big.Int `json:"deposit"`
	ConfigVersion uint32   `json:"configVersion"`
}

// Total returns rate×days + deposit, the escrow the renter must cover.
func (p *Proposal) Total() *big.Int {
	if p == nil {
		return big.NewInt(0)
	}
	total := big.NewInt(0)
	if p.Rate != nil {
		total.Mul(p.Rate, big.NewInt(int64(p.DurationDays)))
	}
	if p.Deposit != nil {
		total.Add(total, p.Deposit)
	}
	return total
}

// Clone returns a deep copy of the proposal.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Rate != nil {
		clone.Rate = new(big.Int).Set(p.Rate)
	}
	if p.Deposit != nil {
		clone.Deposit = new(big.Int).Set(p.Deposit)
	}
	return &clone
}

// Rental is an accepted, escrowed booking. Records are append-only per pair;
// completion and cancellation are flag transitions preserving audit history.
type Rental struct {
	ID            [32]byte `json:"id"`
	Lender        [20]byte `json:"lender"`
	Renter        [20]byte `json:"renter"`
	AcceptedAt    int64    `json:"acceptedAt"`
	Date          int64    `json:"date"`
	DurationDays  uint32   `json:"durationDays"`
	PriceTotal    *big.Int `json:"priceTotal"`
	Deposit       *big.Int `json:"deposit"`
	RewardAmount  *big.Int `json:"rewardAmount"`
	Latitude      string   `json:"latitude"`
	Longitude     string   `json:"longitude"`
	Taken         bool     `json:"taken"`
	SeemsReturned bool     `json:"seemsReturned"`
	Returned      bool     `json:"returned"`
	Cancelled     bool     `json:"cancelled"`
	Refunded      bool     `json:"refunded"`
	CannotCancel  bool     `json:"cannotCancel"`
	TokenDigest   [32]byte `json:"tokenDigest"`
	TokenIssuedAt int64    `json:"tokenIssuedAt"`
}

// Closed reports whether the rental reached a terminal state.
func (r *Rental) Closed() bool {
	if r == nil {
		return true
	}
	return r.Returned || r.Cancelled
}

// Escrow returns the amount held by the module for this rental.
func (r *Rental) Escrow() *big.Int {
	if r == nil {
		return big.NewInt(0)
	}
	total := big.NewInt(0)
	if r.PriceTotal != nil {
		total.Add(total, r.PriceTotal)
	}
	if r.Deposit != nil {
		total.Add(total, r.Deposit)
	}
	return total
}

// Clone returns a deep copy of the rental record.
func (r *Rental) Clone() *Rental {
	if r == nil {
		return nil
	}
	clone := *r
	if r.PriceTotal != nil {
		clone.PriceTotal = new(big.Int).Set(r.PriceTotal)
	}
	if r.Deposit != nil {
		clone.Deposit = new(big.Int).Set(r.Deposit)
	}
	if r.RewardAmount != nil {
		clone.RewardAmount = new(big.Int).Set(r.RewardAmount)
	}
	return &clone
}

// MemberAccount is the per-member ledger record inside the rental module:
// deposited W2R, reward accrual, and the counters the cooldown and
// concurrency guards read.
type MemberAccount struct {
	Owner            [20]byte `json:"owner"`
	Lender           bool     `json:"lender"`
	Balance          *big.Int `json:"balance"`
	RewardsUnclaimed *big.Int `json:"rewardsUnclaimed"`
	RewardsTotal     *big.Int `json:"rewardsTotal"`
	ActiveRentals    uint32   `json:"activeRentals"`
	LastRentalEnd    int64    `json:"lastRentalEnd"`
	Enrolled         bool     `json:"enrolled"`
}

// Normalize ensures all amount fields are non-nil.
func (a *MemberAccount) Normalize() *MemberAccount {
	if a == nil {
		return &MemberAccount{Balance: big.NewInt(0), RewardsUnclaimed: big.NewInt(0), RewardsTotal: big.NewInt(0)}
	}
	if a.Balance == nil {
		a.Balance = big.NewInt(0)
	}
	if a.RewardsUnclaimed == nil {
		a.RewardsUnclaimed = big.NewInt(0)
	}
	if a.RewardsTotal == nil {
		a.RewardsTotal = big.NewInt(0)
	}
	return a
}

// Clone returns a deep copy of the member account.
func (a *MemberAccount) Clone() *MemberAccount {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	if a.RewardsUnclaimed != nil {
		clone.RewardsUnclaimed = new(big.Int).Set(a.RewardsUnclaimed)
	}
	if a.RewardsTotal != nil {
		clone.RewardsTotal = new(big.Int).Set(a.RewardsTotal)
	}
	return &clone
}

// LenderConfig is the versioned economic configuration of one lender's bike.
type LenderConfig struct {
	Owner         [20]byte       `json:"owner"`
	Version       uint32         `json:"version"`
	Rate          *big.Int       `json:"rate"`
	Deposit       *big.Int       `json:"deposit"`
	MaxRentalDays uint32         `json:"maxRentalDays"`
	Latitude      string         `json:"latitude"`
	Longitude     string         `json:"longitude"`
	Active        bool           `json:"active"`
	Pending       *PendingConfig `json:"pending,omitempty"`
}

// PendingConfig is a proposed parameter change awaiting one confirmation per
// changed field before activation.
type PendingConfig struct {
	Rate          *big.Int `json:"rate,omitempty"`
	Deposit       *big.Int `json:"deposit,omitempty"`
	MaxRentalDays uint32   `json:"maxRentalDays,omitempty"`
	Required      uint32   `json:"required"`
	Confirmed     uint32   `json:"confirmed"`
	ProposedAt    int64    `json:"proposedAt"`
}

// Clone returns a deep copy of the lender configuration.
func (c *LenderConfig) Clone() *LenderConfig {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Rate != nil {
		clone.Rate = new(big.Int).Set(c.Rate)
	}
	if c.Deposit != nil {
		clone.Deposit = new(big.Int).Set(c.Deposit)
	}
	if c.Pending != nil {
		pending := *c.Pending
		if c.Pending.Rate != nil {
			pending.Rate = new(big.Int).Set(c.Pending.Rate)
		}
		if c.Pending.Deposit != nil {
			pending.Deposit = new(big.Int).Set(c.Pending.Deposit)
		}
		clone.Pending = &pending
	}
	return &clone
}

func pairID(lender, renter [20]byte, nonce int64) [32]byte {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(nonce))
	var id [32]byte
	copy(id[:], ethcrypto.Keccak256(lender[:], renter[:], ts[:]))
	return id
}

func tokenDigest(token string) [32]byte {
	var digest [32]byte
	copy(digest[:], ethcrypto.Keccak256([]byte(token)))
	return digest
}
