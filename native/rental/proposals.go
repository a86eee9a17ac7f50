package rental

import "math/big"

// MakeProposal records the renter's offer to rent from lender over the
// [windowStart, windowEnd] meeting window for durationDays. The renter must
// hold the full price plus deposit in their rental balance; the terms are
// snapshotted from the lender's configuration at proposal time.
func (e *Engine) MakeProposal(renter, lender [20]byte, windowStart, windowEnd int64, durationDays uint32) (*Proposal, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	acct, err := e.account(renter, false)
	if err != nil {
		return nil, err
	}
	if _, err := e.account(lender, true); err != nil {
		return nil, err
	}
	if err := e.checkWhitelisted(renter, false); err != nil {
		return nil, err
	}
	if err := e.checkWhitelisted(lender, true); err != nil {
		return nil, err
	}
	cfg, ok, err := e.state.LenderConfigGet(lender)
	if err != nil {
		return nil, err
	}
	if !ok || !cfg.Active {
		return nil, ErrLenderInactive
	}

	now := e.now()
	if windowEnd <= windowStart {
		return nil, ErrInvalidWindow
	}
	if windowStart < now+e.params.LeadTime {
		return nil, ErrLeadTimeTooShort
	}
	width := windowEnd - windowStart
	if width < e.params.MinWindow || width > e.params.MaxWindow {
		return nil, ErrWindowOutOfRange
	}
	if durationDays == 0 || durationDays > cfg.MaxRentalDays {
		return nil, ErrDurationOutOfRange
	}

	if _, ok, err := e.state.ProposalGet(lender, renter); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrProposalAlreadyMade
	}
	outgoing, err := e.state.ProposalsByRenter(renter)
	if err != nil {
		return nil, err
	}
	if uint32(len(outgoing)) >= e.params.RenterProposalCap {
		return nil, ErrTooManyProposals
	}
	incoming, err := e.state.ProposalsByLender(lender)
	if err != nil {
		return nil, err
	}
	if uint32(len(incoming)) >= e.params.LenderProposalCap {
		return nil, ErrTooManyProposals
	}

	p := &Proposal{
		ID:            pairID(lender, renter, now),
		Lender:        lender,
		Renter:        renter,
		CreatedAt:     now,
		WindowStart:   windowStart,
		WindowEnd:     windowEnd,
		DurationDays:  durationDays,
		Rate:          new(big.Int).Set(cfg.Rate),
		Deposit:       new(big.Int).Set(cfg.Deposit),
		ConfigVersion: cfg.Version,
	}
	if acct.Balance.Cmp(p.Total()) < 0 {
		return nil, ErrInsufficientBalance
	}
	if err := e.state.ProposalPut(p); err != nil {
		return nil, err
	}
	e.emit(newProposalEvent(EventTypeProposalMade, p))
	e.emit(newProposalEvent(EventTypeProposalReceived, p))
	return p.Clone(), nil
}

// CancelProposal withdraws the caller's side of an open proposal. Either
// party may cancel before acceptance.
func (e *Engine) CancelProposal(caller, lender, renter [20]byte) error {
	if err := e.guard(); err != nil {
		return err
	}
	if caller != lender && caller != renter {
		return ErrNotParty
	}
	p, ok, err := e.state.ProposalGet(lender, renter)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoProposal
	}
	if err := e.state.ProposalDelete(lender, renter); err != nil {
		return err
	}
	e.emit(newProposalEvent(EventTypeProposalCancelled, p))
	return nil
}

// DeleteOldProposals sweeps the lender's received proposals whose meeting
// window has already closed. Anyone may trigger the sweep.
func (e *Engine) DeleteOldProposals(lender [20]byte) (int, error) {
	if err := e.guard(); err != nil {
		return 0, err
	}
	incoming, err := e.state.ProposalsByLender(lender)
	if err != nil {
		return 0, err
	}
	now := e.now()
	removed := 0
	for _, p := range incoming {
		if p.WindowEnd >= now {
			continue
		}
		if err := e.state.ProposalDelete(p.Lender, p.Renter); err != nil {
			return removed, err
		}
		removed++
		e.emit(newProposalEvent(EventTypeProposalCancelled, p))
	}
	return removed, nil
}

// Proposal returns the open proposal between lender and renter.
func (e *Engine) Proposal(lender, renter [20]byte) (*Proposal, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	p, ok, err := e.state.ProposalGet(lender, renter)
	if err != nil || !ok {
		return nil, ok, err
	}
	return p.Clone(), true, nil
}

// ProposalsFor lists the member's open proposals on the given side.
func (e *Engine) ProposalsFor(owner [20]byte, isLender bool) ([]*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	var list []*Proposal
	var err error
	if isLender {
		list, err = e.state.ProposalsByLender(owner)
	} else {
		list, err = e.state.ProposalsByRenter(owner)
	}
	if err != nil {
		return nil, err
	}
	out := make([]*Proposal, 0, len(list))
	for _, p := range list {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (e *Engine) checkWhitelisted(owner [20]byte, isLender bool) error {
	reg := e.renters
	if isLender {
		reg = e.lenders
	}
	if reg == nil {
		return nil
	}
	ok, err := reg.IsWhitelisted(owner)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotMember
	}
	return nil
}
