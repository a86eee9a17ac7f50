package rental

import (
	"math/big"
	"strings"

	"w2rchain/native/common"
)

func (e *Engine) openRental(lender, renter [20]byte) (*Rental, []*Rental, error) {
	list, err := e.state.RentalsGet(lender, renter)
	if err != nil {
		return nil, nil, err
	}
	for i := len(list) - 1; i >= 0; i-- {
		if !list[i].Closed() {
			return list[i], list, nil
		}
	}
	return nil, list, ErrNoActiveRental
}

// AcceptProposal promotes the open proposal into a Rental. Lender-only. Pulls
// price plus deposit out of the renter's rental balance into the pair's
// escrow, deletes the proposal, and appends the Rental to the pair history.
func (e *Engine) AcceptProposal(lender, renter [20]byte, meetingTime int64, latitude, longitude string) (*Rental, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	lenderAcct, err := e.account(lender, true)
	if err != nil {
		return nil, err
	}
	renterAcct, err := e.account(renter, false)
	if err != nil {
		return nil, err
	}
	p, ok, err := e.state.ProposalGet(lender, renter)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoProposal
	}
	if meetingTime < p.WindowStart || meetingTime > p.WindowEnd {
		return nil, ErrMeetingOutsideWindow
	}
	lat := strings.TrimSpace(latitude)
	lon := strings.TrimSpace(longitude)
	if lat == "" || lon == "" {
		return nil, ErrGPSNotSet
	}
	if _, err := common.CheckCapacity(common.Capacity{Max: e.params.MaxActiveRentals}, lenderAcct.ActiveRentals, 1); err != nil {
		return nil, ErrTooManyRentals
	}
	total := p.Total()
	if renterAcct.Balance.Cmp(total) < 0 {
		return nil, ErrInsufficientBalance
	}

	price := new(big.Int).Mul(p.Rate, big.NewInt(int64(p.DurationDays)))
	r := &Rental{
		ID:           pairID(lender, renter, e.now()),
		Lender:       lender,
		Renter:       renter,
		AcceptedAt:   e.now(),
		Date:         meetingTime,
		DurationDays: p.DurationDays,
		PriceTotal:   price,
		Deposit:      new(big.Int).Set(p.Deposit),
		RewardAmount: new(big.Int).Div(price, big.NewInt(e.params.RewardDivisor)),
		Latitude:     lat,
		Longitude:    lon,
	}

	renterAcct.Balance = new(big.Int).Sub(renterAcct.Balance, total)
	renterAcct.ActiveRentals++
	lenderAcct.ActiveRentals++

	if err := e.state.ProposalDelete(lender, renter); err != nil {
		return nil, err
	}
	list, err := e.state.RentalsGet(lender, renter)
	if err != nil {
		return nil, err
	}
	if err := e.state.RentalsPut(lender, renter, append(list, r)); err != nil {
		return nil, err
	}
	if err := e.state.MemberAccountPut(renterAcct); err != nil {
		return nil, err
	}
	if err := e.state.MemberAccountPut(lenderAcct); err != nil {
		return nil, err
	}
	e.emit(newRentalEvent(EventTypeStarted, r))
	return r.Clone(), nil
}

// ConfirmBikeTaken marks the handover. Lender-only, and only once the agreed
// meeting time has passed.
func (e *Engine) ConfirmBikeTaken(lender, renter [20]byte) error {
	if err := e.guard(); err != nil {
		return err
	}
	if _, err := e.account(lender, true); err != nil {
		return err
	}
	r, list, err := e.openRental(lender, renter)
	if err != nil {
		return err
	}
	if r.Taken {
		return ErrAlreadyTaken
	}
	if e.now() < r.Date {
		return ErrMeetingNotReached
	}
	r.Taken = true
	r.CannotCancel = true
	if err := e.state.RentalsPut(lender, renter, list); err != nil {
		return err
	}
	e.emit(newRentalEvent(EventTypeBikeTaken, r))
	return nil
}

// DeclareReturned is the renter's half of the return handshake: it stores the
// digest of a fresh one-time code that the lender must present within the
// token TTL to settle.
func (e *Engine) DeclareReturned(renter, lender [20]byte, token string) error {
	if err := e.guard(); err != nil {
		return err
	}
	if _, err := e.account(renter, false); err != nil {
		return err
	}
	r, list, err := e.openRental(lender, renter)
	if err != nil {
		return err
	}
	if !r.Taken {
		return ErrNotTaken
	}
	if len(token) != e.params.ReturnTokenLength {
		return ErrInvalidToken
	}
	r.SeemsReturned = true
	r.TokenDigest = tokenDigest(token)
	r.TokenIssuedAt = e.now()
	if err := e.state.RentalsPut(lender, renter, list); err != nil {
		return err
	}
	e.emit(newRentalEvent(EventTypeDeclaredReturned, r))
	return nil
}

// ConfirmBikeReturned settles the rental: the lender presents the renter's
// one-time code, the deposit flows back to the renter, the price to the
// lender, and each side earns a vault-funded reward.
func (e *Engine) ConfirmBikeReturned(lender, renter [20]byte, token string) error {
	if err := e.guard(); err != nil {
		return err
	}
	lenderAcct, err := e.account(lender, true)
	if err != nil {
		return err
	}
	renterAcct, err := e.account(renter, false)
	if err != nil {
		return err
	}
	r, list, err := e.openRental(lender, renter)
	if err != nil {
		if err == ErrNoActiveRental {
			return ErrNotRented
		}
		return err
	}
	if !r.SeemsReturned {
		return ErrNotDeclared
	}
	now := e.now()
	if now > r.TokenIssuedAt+e.params.ReturnTokenTTL {
		return ErrTokenExpired
	}
	if tokenDigest(token) != r.TokenDigest {
		return ErrInvalidToken
	}

	r.Returned = true
	r.CannotCancel = false
	renterAcct.Balance = new(big.Int).Add(renterAcct.Balance, r.Deposit)
	lenderAcct.Balance = new(big.Int).Add(lenderAcct.Balance, r.PriceTotal)
	e.creditReward(lenderAcct, r.RewardAmount)
	e.creditReward(renterAcct, r.RewardAmount)
	for _, acct := range []*MemberAccount{lenderAcct, renterAcct} {
		if acct.ActiveRentals > 0 {
			acct.ActiveRentals--
		}
		acct.LastRentalEnd = now
	}

	if err := e.state.RentalsPut(lender, renter, list); err != nil {
		return err
	}
	if err := e.state.MemberAccountPut(renterAcct); err != nil {
		return err
	}
	if err := e.state.MemberAccountPut(lenderAcct); err != nil {
		return err
	}
	e.emit(newRentalEvent(EventTypeReturned, r))
	return nil
}

// creditReward tops the member's unclaimed rewards up from the vault reserve.
// A dry vault skips the reward rather than failing the settlement.
func (e *Engine) creditReward(acct *MemberAccount, amount *big.Int) {
	if e.rewards == nil || amount == nil || amount.Sign() <= 0 {
		return
	}
	if err := e.rewards.DistributeW2R(ModuleAddress, ModuleAddress, amount); err != nil {
		return
	}
	acct.RewardsUnclaimed = new(big.Int).Add(acct.RewardsUnclaimed, amount)
	acct.RewardsTotal = new(big.Int).Add(acct.RewardsTotal, amount)
}

// CancelRenting aborts a not-yet-taken rental from the renter's side and
// refunds the full escrow.
func (e *Engine) CancelRenting(renter, lender [20]byte) error {
	if err := e.guard(); err != nil {
		return err
	}
	if _, err := e.account(renter, false); err != nil {
		return err
	}
	return e.cancelOpen(lender, renter)
}

// CancelLending is the lender-side mirror of CancelRenting.
func (e *Engine) CancelLending(lender, renter [20]byte) error {
	if err := e.guard(); err != nil {
		return err
	}
	if _, err := e.account(lender, true); err != nil {
		return err
	}
	return e.cancelOpen(lender, renter)
}

func (e *Engine) cancelOpen(lender, renter [20]byte) error {
	r, list, err := e.openRental(lender, renter)
	if err != nil {
		return err
	}
	if r.Taken || r.CannotCancel {
		return ErrCannotCancel
	}
	r.Cancelled = true
	r.Refunded = true

	renterAcct, err := e.account(renter, false)
	if err != nil {
		return err
	}
	lenderAcct, err := e.account(lender, true)
	if err != nil {
		return err
	}
	refund := new(big.Int).Add(r.PriceTotal, r.Deposit)
	renterAcct.Balance = new(big.Int).Add(renterAcct.Balance, refund)
	for _, acct := range []*MemberAccount{lenderAcct, renterAcct} {
		if acct.ActiveRentals > 0 {
			acct.ActiveRentals--
		}
	}

	if err := e.state.RentalsPut(lender, renter, list); err != nil {
		return err
	}
	if err := e.state.MemberAccountPut(renterAcct); err != nil {
		return err
	}
	if err := e.state.MemberAccountPut(lenderAcct); err != nil {
		return err
	}
	e.emit(newRentalEvent(EventTypeCancelled, r))
	return nil
}

// Rentals returns the pair's full rental history, newest last.
func (e *Engine) Rentals(lender, renter [20]byte) ([]*Rental, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	list, err := e.state.RentalsGet(lender, renter)
	if err != nil {
		return nil, err
	}
	out := make([]*Rental, 0, len(list))
	for _, r := range list {
		out = append(out, r.Clone())
	}
	return out, nil
}
