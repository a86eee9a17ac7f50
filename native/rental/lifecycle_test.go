package rental

import (
	"math/big"
	"strings"
	"testing"
)

const returnToken = "p3X9kQ7mB2cR5vT8nW1zL4jF6hD0aS" // 30 chars

func setupPair(t *testing.T) (*fixture, [20]byte, [20]byte) {
	t.Helper()
	f := newFixture(t)
	lender, renter := addr(10), addr(11)
	f.enroll(t, lender, true)
	f.enroll(t, renter, false)
	f.configureLender(t, lender, 100, 200, 5)
	f.deposit(t, renter, false, 10_000)
	return f, lender, renter
}

func propose(t *testing.T, f *fixture, renter, lender [20]byte) (*Proposal, int64) {
	t.Helper()
	start := f.now + 4*3600
	p, err := f.engine.MakeProposal(renter, lender, start, start+4*3600, 2)
	if err != nil {
		t.Fatalf("make proposal: %v", err)
	}
	return p, start
}

// Mirrors the platform's canonical walkthrough: 10,000 W2R deposited, rate
// 100/day, deposit 200, a 2-day rental proposed 4 hours out with a 4-hour
// window, accepted, taken, returned, and settled.
func TestFullRentalLifecycle(t *testing.T) {
	f, lender, renter := setupPair(t)
	p, start := propose(t, f, renter, lender)
	if p.Total().Int64() != 400 {
		t.Fatalf("proposal total = %s, want 400", p.Total())
	}

	r, err := f.engine.AcceptProposal(lender, renter, start+3600, "48.85", "2.35")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if r.PriceTotal.Int64() != 200 || r.Deposit.Int64() != 200 {
		t.Fatalf("rental terms = price %s deposit %s, want 200/200", r.PriceTotal, r.Deposit)
	}
	if got := balance(t, f, renter, false); got.Int64() != 9_600 {
		t.Fatalf("renter balance after accept = %s, want 9600", got)
	}
	if _, ok, _ := f.engine.Proposal(lender, renter); ok {
		t.Fatalf("proposal not consumed by acceptance")
	}

	// Handover cannot be confirmed before the agreed meeting time.
	if err := f.engine.ConfirmBikeTaken(lender, renter); err != ErrMeetingNotReached {
		t.Fatalf("early taken err = %v, want ErrMeetingNotReached", err)
	}
	f.now = start + 3600
	if err := f.engine.ConfirmBikeTaken(lender, renter); err != nil {
		t.Fatalf("confirm taken: %v", err)
	}

	if err := f.engine.DeclareReturned(renter, lender, returnToken); err != nil {
		t.Fatalf("declare returned: %v", err)
	}
	if err := f.engine.ConfirmBikeReturned(lender, renter, returnToken); err != nil {
		t.Fatalf("confirm returned: %v", err)
	}

	if got := balance(t, f, renter, false); got.Int64() != 9_800 {
		t.Fatalf("renter balance after settle = %s, want 9800 (deposit refunded)", got)
	}
	if got := balance(t, f, lender, true); got.Int64() != 200 {
		t.Fatalf("lender balance after settle = %s, want 200", got)
	}

	// Reward of price/10 per side, funded from the vault reserve.
	lenderAcct, _, _ := f.engine.Account(lender, true)
	renterAcct, _, _ := f.engine.Account(renter, false)
	if lenderAcct.RewardsUnclaimed.Int64() != 20 || renterAcct.RewardsUnclaimed.Int64() != 20 {
		t.Fatalf("rewards = %s/%s, want 20/20", lenderAcct.RewardsUnclaimed, renterAcct.RewardsUnclaimed)
	}
	if f.rewards.paid.Int64() != 40 {
		t.Fatalf("vault paid = %s, want 40", f.rewards.paid)
	}
	if lenderAcct.ActiveRentals != 0 || renterAcct.ActiveRentals != 0 {
		t.Fatalf("active rental counters not released")
	}
	if lenderAcct.LastRentalEnd != f.now || renterAcct.LastRentalEnd != f.now {
		t.Fatalf("cooldown anchor not recorded")
	}

	history, err := f.engine.Rentals(lender, renter)
	if err != nil || len(history) != 1 || !history[0].Returned {
		t.Fatalf("history = %v %v, want one returned rental", history, err)
	}
}

func TestAcceptGuards(t *testing.T) {
	f, lender, renter := setupPair(t)
	_, start := propose(t, f, renter, lender)

	if _, err := f.engine.AcceptProposal(lender, renter, start-1, "48.85", "2.35"); err != ErrMeetingOutsideWindow {
		t.Fatalf("meeting before window err = %v", err)
	}
	if _, err := f.engine.AcceptProposal(lender, renter, start+3600, "", ""); err != ErrGPSNotSet {
		t.Fatalf("blank GPS err = %v", err)
	}
	if _, err := f.engine.AcceptProposal(lender, addr(99), start, "48.85", "2.35"); err != ErrNotEnrolled {
		t.Fatalf("unknown renter err = %v", err)
	}
}

func TestAcceptEnforcesActiveRentalCap(t *testing.T) {
	f, lender, renter := setupPair(t)
	_, start := propose(t, f, renter, lender)
	if _, err := f.engine.AcceptProposal(lender, renter, start+3600, "48.85", "2.35"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	other := addr(12)
	f.enroll(t, other, false)
	f.deposit(t, other, false, 1_000)
	if _, err := f.engine.MakeProposal(other, lender, start, start+4*3600, 1); err != nil {
		t.Fatalf("second proposal: %v", err)
	}
	if _, err := f.engine.AcceptProposal(lender, other, start+3600, "48.85", "2.35"); err != ErrTooManyRentals {
		t.Fatalf("over-cap accept err = %v, want ErrTooManyRentals", err)
	}
}

func TestCancelBlockedOnceTaken(t *testing.T) {
	f, lender, renter := setupPair(t)
	_, start := propose(t, f, renter, lender)
	if _, err := f.engine.AcceptProposal(lender, renter, start+3600, "48.85", "2.35"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	f.now = start + 3600
	if err := f.engine.ConfirmBikeTaken(lender, renter); err != nil {
		t.Fatalf("taken: %v", err)
	}

	if err := f.engine.CancelRenting(renter, lender); err != ErrCannotCancel {
		t.Fatalf("renter cancel err = %v, want ErrCannotCancel", err)
	}
	if err := f.engine.CancelLending(lender, renter); err != ErrCannotCancel {
		t.Fatalf("lender cancel err = %v, want ErrCannotCancel", err)
	}
}

func TestCancelBeforeTakenRefundsEscrow(t *testing.T) {
	f, lender, renter := setupPair(t)
	_, start := propose(t, f, renter, lender)
	if _, err := f.engine.AcceptProposal(lender, renter, start+3600, "48.85", "2.35"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := f.engine.CancelRenting(renter, lender); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := balance(t, f, renter, false); got.Int64() != 10_000 {
		t.Fatalf("balance after cancel = %s, want full 10000 refund", got)
	}
	history, _ := f.engine.Rentals(lender, renter)
	if len(history) != 1 || !history[0].Cancelled || !history[0].Refunded {
		t.Fatalf("rental not flagged cancelled+refunded: %+v", history)
	}
	acct, _, _ := f.engine.Account(renter, false)
	if acct.ActiveRentals != 0 {
		t.Fatalf("active counter not released on cancel")
	}
	if acct.LastRentalEnd != 0 {
		t.Fatalf("pre-taken cancel must not start the cooldown")
	}
}

func TestReturnTokenValidation(t *testing.T) {
	f, lender, renter := setupPair(t)
	_, start := propose(t, f, renter, lender)
	if _, err := f.engine.AcceptProposal(lender, renter, start+3600, "48.85", "2.35"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	f.now = start + 3600

	if err := f.engine.DeclareReturned(renter, lender, returnToken); err != ErrNotTaken {
		t.Fatalf("declare before taken err = %v, want ErrNotTaken", err)
	}
	if err := f.engine.ConfirmBikeTaken(lender, renter); err != nil {
		t.Fatalf("taken: %v", err)
	}
	if err := f.engine.DeclareReturned(renter, lender, "short"); err != ErrInvalidToken {
		t.Fatalf("short token err = %v, want ErrInvalidToken", err)
	}
	if err := f.engine.ConfirmBikeReturned(lender, renter, returnToken); err != ErrNotDeclared {
		t.Fatalf("confirm before declare err = %v, want ErrNotDeclared", err)
	}

	if err := f.engine.DeclareReturned(renter, lender, returnToken); err != nil {
		t.Fatalf("declare: %v", err)
	}
	wrong := strings.Repeat("x", 30)
	if err := f.engine.ConfirmBikeReturned(lender, renter, wrong); err != ErrInvalidToken {
		t.Fatalf("wrong token err = %v, want ErrInvalidToken", err)
	}

	f.advance(f.engine.Params().ReturnTokenTTL + 1)
	if err := f.engine.ConfirmBikeReturned(lender, renter, returnToken); err != ErrTokenExpired {
		t.Fatalf("stale token err = %v, want ErrTokenExpired", err)
	}

	// A fresh declaration restarts the window.
	if err := f.engine.DeclareReturned(renter, lender, returnToken); err != nil {
		t.Fatalf("redeclare: %v", err)
	}
	if err := f.engine.ConfirmBikeReturned(lender, renter, returnToken); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := f.engine.ConfirmBikeReturned(lender, renter, returnToken); err != ErrNotRented {
		t.Fatalf("double settle err = %v, want ErrNotRented", err)
	}
}

func TestSettlementSurvivesDryVault(t *testing.T) {
	f, lender, renter := setupPair(t)
	f.rewards.reserve = big.NewInt(0)
	_, start := propose(t, f, renter, lender)
	if _, err := f.engine.AcceptProposal(lender, renter, start+3600, "48.85", "2.35"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	f.now = start + 3600
	if err := f.engine.ConfirmBikeTaken(lender, renter); err != nil {
		t.Fatalf("taken: %v", err)
	}
	if err := f.engine.DeclareReturned(renter, lender, returnToken); err != nil {
		t.Fatalf("declare: %v", err)
	}
	if err := f.engine.ConfirmBikeReturned(lender, renter, returnToken); err != nil {
		t.Fatalf("settle with dry vault: %v", err)
	}
	acct, _, _ := f.engine.Account(renter, false)
	if acct.RewardsUnclaimed.Sign() != 0 {
		t.Fatalf("reward credited with empty reserve")
	}
	if got := balance(t, f, renter, false); got.Int64() != 9_800 {
		t.Fatalf("deposit refund must not depend on the vault, got %s", got)
	}
}
