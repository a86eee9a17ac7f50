package rental

import "errors"

var (
	// authorization
	ErrNotEnrolled = errors.New("rental: address not enrolled")
	ErrNotMember   = errors.New("rental: caller is not a whitelisted member")
	ErrNotParty    = errors.New("rental: caller is not a party to this record")
	ErrNotRegistry = errors.New("rental: caller is not the registry")

	// state
	ErrLenderInactive      = errors.New("rental: lender not activated")
	ErrNoProposal          = errors.New("rental: no proposal between pair")
	ErrProposalAlreadyMade = errors.New("rental: proposal already made")
	ErrNoActiveRental      = errors.New("rental: no active rental between pair")
	ErrAlreadyTaken        = errors.New("rental: bike already taken")
	ErrNotTaken            = errors.New("rental: bike not taken")
	ErrNotDeclared         = errors.New("rental: return not declared")
	ErrNotRented           = errors.New("rental: rental already settled")
	ErrCannotCancel        = errors.New("rental: cancellation blocked while taken")
	ErrConfigPending       = errors.New("rental: configuration change already pending")
	ErrNoPendingConfig     = errors.New("rental: no configuration change pending")
	ErrNoChanges           = errors.New("rental: no fields changed")

	// precondition
	ErrInvalidAmount       = errors.New("rental: amount must be positive")
	ErrInsufficientBalance = errors.New("rental: insufficient deposited balance")
	ErrGPSNotSet           = errors.New("rental: GPS coordinates required")
	ErrInvalidToken        = errors.New("rental: invalid return token")
	ErrInvalidWindow       = errors.New("rental: window end before start")
	ErrInvalidRate         = errors.New("rental: rate and deposit must be positive")

	// capacity
	ErrTooManyProposals = errors.New("rental: proposal cap reached")
	ErrTooManyRentals   = errors.New("rental: active rental cap reached")

	// timing
	ErrLeadTimeTooShort     = errors.New("rental: window starts too soon")
	ErrWindowOutOfRange     = errors.New("rental: window width out of range")
	ErrDurationOutOfRange   = errors.New("rental: duration out of range")
	ErrMeetingOutsideWindow = errors.New("rental: meeting time outside window")
	ErrMeetingNotReached    = errors.New("rental: meeting time still in the future")
	ErrTokenExpired         = errors.New("rental: return token expired")
	ErrNoRewards            = errors.New("rental: nothing to claim")
)
