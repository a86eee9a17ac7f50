package rental

import (
	"errors"
	"math/big"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"w2rchain/core/events"
	"w2rchain/core/types"
	"w2rchain/native/common"
)

const ModuleName = "rental"

// ModuleAddress custodies every escrowed rental balance at the token level.
var ModuleAddress = deriveModuleAddress("module/" + ModuleName)

func deriveModuleAddress(name string) [20]byte {
	var addr [20]byte
	digest := ethcrypto.Keccak256([]byte(name))
	copy(addr[:], digest[12:])
	return addr
}

var errNilState = errors.New("rental: state not configured")

type rentalState interface {
	MemberAccountGet(owner [20]byte, lender bool) (*MemberAccount, bool, error)
	MemberAccountPut(acct *MemberAccount) error
	LenderConfigGet(owner [20]byte) (*LenderConfig, bool, error)
	LenderConfigPut(cfg *LenderConfig) error
	ProposalGet(lender, renter [20]byte) (*Proposal, bool, error)
	ProposalPut(p *Proposal) error
	ProposalDelete(lender, renter [20]byte) error
	ProposalsByLender(lender [20]byte) ([]*Proposal, error)
	ProposalsByRenter(renter [20]byte) ([]*Proposal, error)
	RentalsGet(lender, renter [20]byte) ([]*Rental, error)
	RentalsPut(lender, renter [20]byte, list []*Rental) error
	RentalPairs(owner [20]byte, lender bool) ([][20]byte, error)
}

// membership is the registry view the engine vets both parties against.
type membership interface {
	IsWhitelisted(addr [20]byte) (bool, error)
}

// ledger moves W2R between member wallets and the module escrow address.
type ledger interface {
	Transfer(from, to [20]byte, amount *big.Int) error
	BalanceOf(addr [20]byte) (*big.Int, error)
}

// rewardSource is the vault's spend-from-reserve right. The module address
// must be flagged approved by a whitelist master before settlements can pay
// rewards.
type rewardSource interface {
	DistributeW2R(caller, receiver [20]byte, amount *big.Int) error
}

type rentalEvent struct {
	evt *types.Event
}

func (e rentalEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e rentalEvent) Event() *types.Event { return e.evt }

// Engine runs the rental pair state machine over Proposal and Rental records
// keyed by (lender, renter), with role-based authorization in place of the
// historical per-user contract deployments.
type Engine struct {
	state    rentalState
	emitter  events.Emitter
	pauses   common.PauseView
	lenders  membership
	renters  membership
	ledger   ledger
	rewards  rewardSource
	registry [20]byte
	params   Params
	nowFn    func() int64
}

// NewEngine creates a rental engine with default parameters and a no-op
// emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		params:  DefaultParams(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state rentalState) { e.state = state }

// SetMemberships wires the lender and renter registry views.
func (e *Engine) SetMemberships(lenders, renters membership) {
	e.lenders = lenders
	e.renters = renters
}

// SetLedger wires the W2R token engine.
func (e *Engine) SetLedger(l ledger) { e.ledger = l }

// SetRewards wires the vault distribution right.
func (e *Engine) SetRewards(r rewardSource) { e.rewards = r }

// SetRegistryAddress records the address allowed to call Destroy.
func (e *Engine) SetRegistryAddress(addr [20]byte) { e.registry = addr }

// SetPauses wires the module pause switch.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetParams replaces the engine parameters after normalization.
func (e *Engine) SetParams(p Params) { e.params = p.Normalize() }

// Params returns the active parameters.
func (e *Engine) Params() Params { return e.params }

// SetNowFunc overrides the time source. Primarily for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(rentalEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) guard() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return common.Guard(e.pauses, ModuleName)
}

func (e *Engine) account(owner [20]byte, lender bool) (*MemberAccount, error) {
	acct, ok, err := e.state.MemberAccountGet(owner, lender)
	if err != nil {
		return nil, err
	}
	if !ok || !acct.Normalize().Enrolled {
		return nil, ErrNotEnrolled
	}
	return acct.Normalize(), nil
}

// Enroll creates the member's ledger record. Called by the registry during
// registration; idempotent for a re-registration after voluntary exit.
func (e *Engine) Enroll(owner [20]byte, isLender bool) error {
	if err := e.guard(); err != nil {
		return err
	}
	acct, ok, err := e.state.MemberAccountGet(owner, isLender)
	if err != nil {
		return err
	}
	if !ok {
		acct = &MemberAccount{Owner: owner, Lender: isLender}
	}
	acct = acct.Normalize()
	acct.Enrolled = true
	if err := e.state.MemberAccountPut(acct); err != nil {
		return err
	}
	if isLender {
		if _, ok, err := e.state.LenderConfigGet(owner); err != nil {
			return err
		} else if !ok {
			cfg := &LenderConfig{
				Owner:         owner,
				Version:       1,
				Rate:          new(big.Int).Set(e.params.DefaultRate),
				Deposit:       new(big.Int).Set(e.params.DefaultDeposit),
				MaxRentalDays: e.params.DefaultMaxRentalDays,
			}
			if err := e.state.LenderConfigPut(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// CooldownActive reports whether the member still has a running rental or is
// inside the post-rental safety window.
func (e *Engine) CooldownActive(owner [20]byte, isLender bool, now int64) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	acct, ok, err := e.state.MemberAccountGet(owner, isLender)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	acct = acct.Normalize()
	if acct.ActiveRentals > 0 {
		return true, nil
	}
	if acct.LastRentalEnd > 0 && now < acct.LastRentalEnd+e.params.Cooldown {
		return true, nil
	}
	return false, nil
}

// Teardown settles the member's record back to their wallet: outstanding
// proposals are swept, the deposited balance and unclaimed rewards are paid
// out, and the record is disabled. Registry-driven.
func (e *Engine) Teardown(owner [20]byte, isLender bool) error {
	if err := e.guard(); err != nil {
		return err
	}
	acct, ok, err := e.state.MemberAccountGet(owner, isLender)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	acct = acct.Normalize()

	var proposals []*Proposal
	if isLender {
		proposals, err = e.state.ProposalsByLender(owner)
	} else {
		proposals, err = e.state.ProposalsByRenter(owner)
	}
	if err != nil {
		return err
	}
	for _, p := range proposals {
		if err := e.state.ProposalDelete(p.Lender, p.Renter); err != nil {
			return err
		}
		e.emit(newProposalEvent(EventTypeProposalCancelled, p))
	}

	payout := new(big.Int).Add(acct.Balance, acct.RewardsUnclaimed)
	if payout.Sign() > 0 && e.ledger != nil {
		if err := e.ledger.Transfer(ModuleAddress, owner, payout); err != nil {
			return err
		}
	}
	acct.Balance = big.NewInt(0)
	acct.RewardsUnclaimed = big.NewInt(0)
	acct.Enrolled = false
	if err := e.state.MemberAccountPut(acct); err != nil {
		return err
	}
	if isLender {
		if cfg, ok, err := e.state.LenderConfigGet(owner); err != nil {
			return err
		} else if ok {
			cfg.Active = false
			cfg.Pending = nil
			if err := e.state.LenderConfigPut(cfg); err != nil {
				return err
			}
		}
	}
	e.emit(newAccountEvent(EventTypeDestroyed, owner, isLender, payout.String()))
	return nil
}

// Destroy is the registry-gated teardown entry point, preserving the
// "only the paired whitelist contract may trigger destruction" rule.
func (e *Engine) Destroy(caller, owner [20]byte, isLender bool) error {
	if caller == ([20]byte{}) || caller != e.registry {
		return ErrNotRegistry
	}
	active, err := e.CooldownActive(owner, isLender, e.now())
	if err != nil {
		return err
	}
	if active {
		return ErrCannotCancel
	}
	return e.Teardown(owner, isLender)
}

// DepositW2R moves amount from the member's wallet into their rental balance.
func (e *Engine) DepositW2R(owner [20]byte, isLender bool, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	acct, err := e.account(owner, isLender)
	if err != nil {
		return err
	}
	amt := big.NewInt(0)
	if amount != nil {
		amt.Set(amount)
	}
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := e.ledger.Transfer(owner, ModuleAddress, amt); err != nil {
		return err
	}
	acct.Balance = new(big.Int).Add(acct.Balance, amt)
	if err := e.state.MemberAccountPut(acct); err != nil {
		return err
	}
	e.emit(newAccountEvent(EventTypeDeposited, owner, isLender, amt.String()))
	return nil
}

// WithdrawFunds moves amount from the member's rental balance back to their
// wallet. Escrow held by accepted rentals was already deducted from the
// balance, so whatever remains is free.
func (e *Engine) WithdrawFunds(owner [20]byte, isLender bool, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	acct, err := e.account(owner, isLender)
	if err != nil {
		return err
	}
	amt := big.NewInt(0)
	if amount != nil {
		amt.Set(amount)
	}
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if acct.Balance.Cmp(amt) < 0 {
		return ErrInsufficientBalance
	}
	if err := e.ledger.Transfer(ModuleAddress, owner, amt); err != nil {
		return err
	}
	acct.Balance = new(big.Int).Sub(acct.Balance, amt)
	if err := e.state.MemberAccountPut(acct); err != nil {
		return err
	}
	e.emit(newAccountEvent(EventTypeWithdrawn, owner, isLender, amt.String()))
	return nil
}

// ClaimRewards pays out the member's unclaimed settlement rewards.
func (e *Engine) ClaimRewards(owner [20]byte, isLender bool) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	acct, err := e.account(owner, isLender)
	if err != nil {
		return nil, err
	}
	if acct.RewardsUnclaimed.Sign() <= 0 {
		return nil, ErrNoRewards
	}
	amount := new(big.Int).Set(acct.RewardsUnclaimed)
	if err := e.ledger.Transfer(ModuleAddress, owner, amount); err != nil {
		return nil, err
	}
	acct.RewardsUnclaimed = big.NewInt(0)
	if err := e.state.MemberAccountPut(acct); err != nil {
		return nil, err
	}
	e.emit(newAccountEvent(EventTypeRewardsClaimed, owner, isLender, amount.String()))
	return amount, nil
}

// TotalRewards reports the member's lifetime settlement rewards.
func (e *Engine) TotalRewards(owner [20]byte, isLender bool) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	acct, ok, err := e.state.MemberAccountGet(owner, isLender)
	if err != nil || !ok {
		return big.NewInt(0), err
	}
	return new(big.Int).Set(acct.Normalize().RewardsTotal), nil
}

// Account returns the member's rental ledger record.
func (e *Engine) Account(owner [20]byte, isLender bool) (*MemberAccount, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	acct, ok, err := e.state.MemberAccountGet(owner, isLender)
	if err != nil || !ok {
		return nil, ok, err
	}
	return acct.Normalize().Clone(), true, nil
}

// Activate switches a lender live once GPS and positive price terms are set.
func (e *Engine) Activate(owner [20]byte, latitude, longitude string) error {
	if err := e.guard(); err != nil {
		return err
	}
	if _, err := e.account(owner, true); err != nil {
		return err
	}
	cfg, ok, err := e.state.LenderConfigGet(owner)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotEnrolled
	}
	lat := strings.TrimSpace(latitude)
	lon := strings.TrimSpace(longitude)
	if lat == "" || lon == "" {
		return ErrGPSNotSet
	}
	if cfg.Rate == nil || cfg.Rate.Sign() <= 0 || cfg.Deposit == nil || cfg.Deposit.Sign() <= 0 {
		return ErrInvalidRate
	}
	cfg.Latitude = lat
	cfg.Longitude = lon
	cfg.Active = true
	if err := e.state.LenderConfigPut(cfg); err != nil {
		return err
	}
	e.emit(newConfigEvent(EventTypeActivated, cfg))
	return nil
}

// SetGPS updates the bike's meeting coordinates.
func (e *Engine) SetGPS(owner [20]byte, latitude, longitude string) error {
	if err := e.guard(); err != nil {
		return err
	}
	cfg, ok, err := e.state.LenderConfigGet(owner)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotEnrolled
	}
	lat := strings.TrimSpace(latitude)
	lon := strings.TrimSpace(longitude)
	if lat == "" || lon == "" {
		return ErrGPSNotSet
	}
	cfg.Latitude = lat
	cfg.Longitude = lon
	if err := e.state.LenderConfigPut(cfg); err != nil {
		return err
	}
	e.emit(newConfigEvent(EventTypeGPSUpdated, cfg))
	return nil
}

// Config returns the lender's current configuration.
func (e *Engine) Config(owner [20]byte) (*LenderConfig, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	cfg, ok, err := e.state.LenderConfigGet(owner)
	if err != nil || !ok {
		return nil, ok, err
	}
	return cfg.Clone(), true, nil
}

// ProposeConfig stages a change to the lender's economic parameters. A nil
// rate or deposit and a zero maxRentalDays leave the field untouched. One
// confirmation per changed field is required before the change activates.
func (e *Engine) ProposeConfig(owner [20]byte, rate, deposit *big.Int, maxRentalDays uint32) error {
	if err := e.guard(); err != nil {
		return err
	}
	if _, err := e.account(owner, true); err != nil {
		return err
	}
	cfg, ok, err := e.state.LenderConfigGet(owner)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotEnrolled
	}
	if cfg.Pending != nil {
		return ErrConfigPending
	}
	pending := &PendingConfig{ProposedAt: e.now()}
	if rate != nil && (cfg.Rate == nil || rate.Cmp(cfg.Rate) != 0) {
		if rate.Sign() <= 0 {
			return ErrInvalidRate
		}
		pending.Rate = new(big.Int).Set(rate)
		pending.Required++
	}
	if deposit != nil && (cfg.Deposit == nil || deposit.Cmp(cfg.Deposit) != 0) {
		if deposit.Sign() <= 0 {
			return ErrInvalidRate
		}
		pending.Deposit = new(big.Int).Set(deposit)
		pending.Required++
	}
	if maxRentalDays > 0 && maxRentalDays != cfg.MaxRentalDays {
		pending.MaxRentalDays = maxRentalDays
		pending.Required++
	}
	if pending.Required == 0 {
		return ErrNoChanges
	}
	cfg.Pending = pending
	if err := e.state.LenderConfigPut(cfg); err != nil {
		return err
	}
	e.emit(newConfigEvent(EventTypeConfigProposed, cfg))
	return nil
}

// ConfirmConfig records one confirmation of the pending change. When every
// changed field has been confirmed the configuration version increments and
// the new values apply.
func (e *Engine) ConfirmConfig(owner [20]byte) error {
	if err := e.guard(); err != nil {
		return err
	}
	cfg, ok, err := e.state.LenderConfigGet(owner)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotEnrolled
	}
	if cfg.Pending == nil {
		return ErrNoPendingConfig
	}
	cfg.Pending.Confirmed++
	if cfg.Pending.Confirmed >= cfg.Pending.Required {
		if cfg.Pending.Rate != nil {
			cfg.Rate = cfg.Pending.Rate
		}
		if cfg.Pending.Deposit != nil {
			cfg.Deposit = cfg.Pending.Deposit
		}
		if cfg.Pending.MaxRentalDays > 0 {
			cfg.MaxRentalDays = cfg.Pending.MaxRentalDays
		}
		cfg.Pending = nil
		cfg.Version++
	}
	if err := e.state.LenderConfigPut(cfg); err != nil {
		return err
	}
	e.emit(newConfigEvent(EventTypeConfigConfirmed, cfg))
	return nil
}
