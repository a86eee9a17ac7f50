package rental

import (
	"fmt"
	"math/big"
	"testing"

	"w2rchain/core/events"
)

type mockState struct {
	accounts  map[string]*MemberAccount
	configs   map[[20]byte]*LenderConfig
	proposals map[[40]byte]*Proposal
	rentals   map[[40]byte][]*Rental
}

func newMockState() *mockState {
	return &mockState{
		accounts:  make(map[string]*MemberAccount),
		configs:   make(map[[20]byte]*LenderConfig),
		proposals: make(map[[40]byte]*Proposal),
		rentals:   make(map[[40]byte][]*Rental),
	}
}

func acctKey(owner [20]byte, lender bool) string {
	return fmt.Sprintf("%x/%t", owner, lender)
}

func pairKey(lender, renter [20]byte) [40]byte {
	var key [40]byte
	copy(key[:20], lender[:])
	copy(key[20:], renter[:])
	return key
}

func (m *mockState) MemberAccountGet(owner [20]byte, lender bool) (*MemberAccount, bool, error) {
	acct, ok := m.accounts[acctKey(owner, lender)]
	if !ok {
		return nil, false, nil
	}
	return acct.Clone(), true, nil
}

func (m *mockState) MemberAccountPut(acct *MemberAccount) error {
	m.accounts[acctKey(acct.Owner, acct.Lender)] = acct.Clone()
	return nil
}

func (m *mockState) LenderConfigGet(owner [20]byte) (*LenderConfig, bool, error) {
	cfg, ok := m.configs[owner]
	if !ok {
		return nil, false, nil
	}
	return cfg.Clone(), true, nil
}

func (m *mockState) LenderConfigPut(cfg *LenderConfig) error {
	m.configs[cfg.Owner] = cfg.Clone()
	return nil
}

func (m *mockState) ProposalGet(lender, renter [20]byte) (*Proposal, bool, error) {
	p, ok := m.proposals[pairKey(lender, renter)]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

func (m *mockState) ProposalPut(p *Proposal) error {
	m.proposals[pairKey(p.Lender, p.Renter)] = p.Clone()
	return nil
}

func (m *mockState) ProposalDelete(lender, renter [20]byte) error {
	delete(m.proposals, pairKey(lender, renter))
	return nil
}

func (m *mockState) ProposalsByLender(lender [20]byte) ([]*Proposal, error) {
	var out []*Proposal
	for _, p := range m.proposals {
		if p.Lender == lender {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (m *mockState) ProposalsByRenter(renter [20]byte) ([]*Proposal, error) {
	var out []*Proposal
	for _, p := range m.proposals {
		if p.Renter == renter {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

func (m *mockState) RentalsGet(lender, renter [20]byte) ([]*Rental, error) {
	list := m.rentals[pairKey(lender, renter)]
	out := make([]*Rental, 0, len(list))
	for _, r := range list {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *mockState) RentalsPut(lender, renter [20]byte, list []*Rental) error {
	stored := make([]*Rental, 0, len(list))
	for _, r := range list {
		stored = append(stored, r.Clone())
	}
	m.rentals[pairKey(lender, renter)] = stored
	return nil
}

func (m *mockState) RentalPairs(owner [20]byte, lender bool) ([][20]byte, error) {
	var out [][20]byte
	for key := range m.rentals {
		var l, r [20]byte
		copy(l[:], key[:20])
		copy(r[:], key[20:])
		if lender && l == owner {
			out = append(out, r)
		}
		if !lender && r == owner {
			out = append(out, l)
		}
	}
	return out, nil
}

type mockLedger struct {
	balances map[[20]byte]*big.Int
}

func newMockLedger() *mockLedger {
	return &mockLedger{balances: make(map[[20]byte]*big.Int)}
}

func (m *mockLedger) credit(addr [20]byte, amount int64) {
	m.balances[addr] = big.NewInt(amount)
}

func (m *mockLedger) Transfer(from, to [20]byte, amount *big.Int) error {
	bal := m.balances[from]
	if bal == nil || bal.Cmp(amount) < 0 {
		return fmt.Errorf("ledger: insufficient funds")
	}
	m.balances[from] = new(big.Int).Sub(bal, amount)
	toBal := m.balances[to]
	if toBal == nil {
		toBal = big.NewInt(0)
	}
	m.balances[to] = new(big.Int).Add(toBal, amount)
	return nil
}

func (m *mockLedger) BalanceOf(addr [20]byte) (*big.Int, error) {
	bal := m.balances[addr]
	if bal == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

type mockRewards struct {
	reserve *big.Int
	paid    *big.Int
}

func (m *mockRewards) DistributeW2R(caller, receiver [20]byte, amount *big.Int) error {
	if m.reserve == nil || m.reserve.Cmp(amount) < 0 {
		return fmt.Errorf("vault: reserve too low")
	}
	m.reserve = new(big.Int).Sub(m.reserve, amount)
	if m.paid == nil {
		m.paid = big.NewInt(0)
	}
	m.paid = new(big.Int).Add(m.paid, amount)
	return nil
}

type allowAll struct{}

func (allowAll) IsWhitelisted(addr [20]byte) (bool, error) { return true, nil }

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

func (c *capturingEmitter) types() []string {
	out := make([]string, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.EventType())
	}
	return out
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

type fixture struct {
	engine  *Engine
	state   *mockState
	ledger  *mockLedger
	rewards *mockRewards
	emitter *capturingEmitter
	now     int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		state:   newMockState(),
		ledger:  newMockLedger(),
		rewards: &mockRewards{reserve: big.NewInt(1_000_000)},
		emitter: &capturingEmitter{},
		now:     1_700_000_000,
	}
	f.engine = NewEngine()
	f.engine.SetState(f.state)
	f.engine.SetLedger(f.ledger)
	f.engine.SetRewards(f.rewards)
	f.engine.SetMemberships(allowAll{}, allowAll{})
	f.engine.SetEmitter(f.emitter)
	f.engine.SetNowFunc(func() int64 { return f.now })
	return f
}

func (f *fixture) advance(seconds int64) { f.now += seconds }

func (f *fixture) enroll(t *testing.T, owner [20]byte, isLender bool) {
	t.Helper()
	if err := f.engine.Enroll(owner, isLender); err != nil {
		t.Fatalf("enroll: %v", err)
	}
}

func (f *fixture) configureLender(t *testing.T, owner [20]byte, rate, deposit int64, maxDays uint32) {
	t.Helper()
	if err := f.engine.ProposeConfig(owner, big.NewInt(rate), big.NewInt(deposit), maxDays); err != nil {
		t.Fatalf("propose config: %v", err)
	}
	cfg, _, err := f.engine.Config(owner)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	for i := uint32(0); i < cfg.Pending.Required; i++ {
		if err := f.engine.ConfirmConfig(owner); err != nil {
			t.Fatalf("confirm config: %v", err)
		}
	}
	if err := f.engine.Activate(owner, "48.8566", "2.3522"); err != nil {
		t.Fatalf("activate: %v", err)
	}
}

func (f *fixture) deposit(t *testing.T, owner [20]byte, isLender bool, amount int64) {
	t.Helper()
	f.ledger.credit(owner, amount)
	if err := f.engine.DepositW2R(owner, isLender, big.NewInt(amount)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func balance(t *testing.T, f *fixture, owner [20]byte, isLender bool) *big.Int {
	t.Helper()
	acct, ok, err := f.engine.Account(owner, isLender)
	if err != nil || !ok {
		t.Fatalf("account %x: ok=%v err=%v", owner, ok, err)
	}
	return acct.Balance
}

func TestDepositAndWithdraw(t *testing.T) {
	f := newFixture(t)
	renter := addr(1)
	f.enroll(t, renter, false)
	f.deposit(t, renter, false, 500)

	if got := balance(t, f, renter, false); got.Int64() != 500 {
		t.Fatalf("balance = %s, want 500", got)
	}
	if err := f.engine.WithdrawFunds(renter, false, big.NewInt(600)); err != ErrInsufficientBalance {
		t.Fatalf("over-withdraw err = %v, want ErrInsufficientBalance", err)
	}
	if err := f.engine.WithdrawFunds(renter, false, big.NewInt(200)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := balance(t, f, renter, false); got.Int64() != 300 {
		t.Fatalf("balance after withdraw = %s, want 300", got)
	}
	wallet, _ := f.ledger.BalanceOf(renter)
	if wallet.Int64() != 200 {
		t.Fatalf("wallet = %s, want 200", wallet)
	}
}

func TestDepositRequiresEnrollment(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.DepositW2R(addr(9), false, big.NewInt(10)); err != ErrNotEnrolled {
		t.Fatalf("err = %v, want ErrNotEnrolled", err)
	}
}

func TestConfigChangeRequiresPerFieldConfirmation(t *testing.T) {
	f := newFixture(t)
	lender := addr(2)
	f.enroll(t, lender, true)

	if err := f.engine.ProposeConfig(lender, big.NewInt(100), big.NewInt(200), 0); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if err := f.engine.ProposeConfig(lender, big.NewInt(50), nil, 0); err != ErrConfigPending {
		t.Fatalf("second propose err = %v, want ErrConfigPending", err)
	}

	// Two fields changed, so the first confirmation must not apply anything.
	if err := f.engine.ConfirmConfig(lender); err != nil {
		t.Fatalf("confirm 1: %v", err)
	}
	cfg, _, _ := f.engine.Config(lender)
	if cfg.Rate.Sign() != 0 || cfg.Version != 1 {
		t.Fatalf("config applied after one of two confirmations: %+v", cfg)
	}
	if err := f.engine.ConfirmConfig(lender); err != nil {
		t.Fatalf("confirm 2: %v", err)
	}
	cfg, _, _ = f.engine.Config(lender)
	if cfg.Rate.Int64() != 100 || cfg.Deposit.Int64() != 200 || cfg.Version != 2 {
		t.Fatalf("config not applied: %+v", cfg)
	}
	if err := f.engine.ConfirmConfig(lender); err != ErrNoPendingConfig {
		t.Fatalf("extra confirm err = %v, want ErrNoPendingConfig", err)
	}
}

func TestActivateRequiresGPSAndPositiveTerms(t *testing.T) {
	f := newFixture(t)
	lender := addr(3)
	f.enroll(t, lender, true)

	if err := f.engine.Activate(lender, "", ""); err != ErrGPSNotSet {
		t.Fatalf("blank GPS err = %v, want ErrGPSNotSet", err)
	}
	if err := f.engine.Activate(lender, "48.85", "2.35"); err != ErrInvalidRate {
		t.Fatalf("zero-rate err = %v, want ErrInvalidRate", err)
	}
	f.configureLender(t, lender, 100, 200, 5)
	cfg, _, _ := f.engine.Config(lender)
	if !cfg.Active {
		t.Fatalf("lender not active after Activate")
	}
}

func TestClaimRewards(t *testing.T) {
	f := newFixture(t)
	renter := addr(4)
	f.enroll(t, renter, false)

	if _, err := f.engine.ClaimRewards(renter, false); err != ErrNoRewards {
		t.Fatalf("empty claim err = %v, want ErrNoRewards", err)
	}

	acct, _, _ := f.state.MemberAccountGet(renter, false)
	acct.RewardsUnclaimed = big.NewInt(40)
	acct.RewardsTotal = big.NewInt(40)
	if err := f.state.MemberAccountPut(acct); err != nil {
		t.Fatalf("seed rewards: %v", err)
	}
	f.ledger.credit(ModuleAddress, 40)

	paid, err := f.engine.ClaimRewards(renter, false)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid.Int64() != 40 {
		t.Fatalf("paid = %s, want 40", paid)
	}
	wallet, _ := f.ledger.BalanceOf(renter)
	if wallet.Int64() != 40 {
		t.Fatalf("wallet = %s, want 40", wallet)
	}
	total, err := f.engine.TotalRewards(renter, false)
	if err != nil || total.Int64() != 40 {
		t.Fatalf("total rewards = %v %v, want 40", total, err)
	}
}

func TestTeardownSweepsProposalsAndPaysOut(t *testing.T) {
	f := newFixture(t)
	lender, renter := addr(5), addr(6)
	f.enroll(t, lender, true)
	f.enroll(t, renter, false)
	f.configureLender(t, lender, 100, 200, 5)
	f.deposit(t, renter, false, 1_000)

	start := f.now + f.engine.Params().LeadTime + 60
	if _, err := f.engine.MakeProposal(renter, lender, start, start+4*3600, 2); err != nil {
		t.Fatalf("make proposal: %v", err)
	}

	if err := f.engine.Teardown(renter, false); err != nil {
		t.Fatalf("teardown: %v", err)
	}
	if _, ok, _ := f.engine.Proposal(lender, renter); ok {
		t.Fatalf("proposal survived teardown")
	}
	wallet, _ := f.ledger.BalanceOf(renter)
	if wallet.Int64() != 1_000 {
		t.Fatalf("wallet after teardown = %s, want 1000", wallet)
	}
	if acct, ok, _ := f.engine.Account(renter, false); !ok || acct.Enrolled {
		t.Fatalf("account still enrolled after teardown")
	}
}

func TestDestroyRespectsRegistryGateAndCooldown(t *testing.T) {
	f := newFixture(t)
	registry := addr(7)
	renter := addr(8)
	f.engine.SetRegistryAddress(registry)
	f.enroll(t, renter, false)

	if err := f.engine.Destroy(addr(9), renter, false); err != ErrNotRegistry {
		t.Fatalf("stranger destroy err = %v, want ErrNotRegistry", err)
	}

	acct, _, _ := f.state.MemberAccountGet(renter, false)
	acct.LastRentalEnd = f.now - 3600
	if err := f.state.MemberAccountPut(acct); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := f.engine.Destroy(registry, renter, false); err != ErrCannotCancel {
		t.Fatalf("cooldown destroy err = %v, want ErrCannotCancel", err)
	}

	f.advance(f.engine.Params().Cooldown + 3601)
	if err := f.engine.Destroy(registry, renter, false); err != nil {
		t.Fatalf("destroy after cooldown: %v", err)
	}
}
