package token

import (
	"errors"
	"math/big"

	"w2rchain/core/events"
	"w2rchain/core/types"
	"w2rchain/native/common"
)

// Symbol and Decimals describe the platform token. Every other native module
// settles in this unit of account.
const (
	Symbol     = "W2R"
	Decimals   = 18
	ModuleName = "token"
)

var errNilState = errors.New("token: state not configured")

type ledgerState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	TokenSupply() (*big.Int, error)
	SetTokenSupply(amount *big.Int) error
	TokenPaused() (bool, error)
	SetTokenPaused(paused bool) error
	TokenAllowance(owner, spender [20]byte) (*big.Int, error)
	SetTokenAllowance(owner, spender [20]byte, amount *big.Int) error
}

type tokenEvent struct {
	evt *types.Event
}

func (e tokenEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e tokenEvent) Event() *types.Event { return e.evt }

// Engine implements the capped, pausable W2R balance ledger. Supply control is
// owner-gated; transfers are open to any holder while unpaused.
type Engine struct {
	state   ledgerState
	emitter events.Emitter
	pauses  common.PauseView
	owner   [20]byte
	cap     *big.Int
}

// NewEngine creates a ledger engine with a no-op emitter and no cap. Callers
// configure both via the setters before serving traffic.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}, cap: big.NewInt(0)}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state ledgerState) { e.state = state }

// SetOwner configures the address holding supply control.
func (e *Engine) SetOwner(owner [20]byte) { e.owner = owner }

// SetCap configures the maximum total supply. A zero cap disables minting.
func (e *Engine) SetCap(cap *big.Int) {
	if cap == nil {
		e.cap = big.NewInt(0)
		return
	}
	e.cap = new(big.Int).Set(cap)
}

// SetPauses wires the module pause switch.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

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
	e.emitter.Emit(tokenEvent{evt: evt})
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (e *Engine) requireOwner(caller [20]byte) error {
	if caller != e.owner || e.owner == ([20]byte{}) {
		return ErrNotOwner
	}
	return nil
}

func (e *Engine) requireUnpaused() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	paused, err := e.state.TokenPaused()
	if err != nil {
		return err
	}
	if paused {
		return ErrPaused
	}
	return nil
}

// BalanceOf reports the W2R balance of addr.
func (e *Engine) BalanceOf(addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	acc, err := e.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	return cloneBigInt(acc.Normalize().BalanceW2R), nil
}

// TotalSupply reports the current minted supply.
func (e *Engine) TotalSupply() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	supply, err := e.state.TokenSupply()
	if err != nil {
		return nil, err
	}
	return cloneBigInt(supply), nil
}

// Allowance reports the remaining spend approval from owner to spender.
func (e *Engine) Allowance(owner, spender [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	allowance, err := e.state.TokenAllowance(owner, spender)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(allowance), nil
}

// Paused reports the global transfer switch.
func (e *Engine) Paused() (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	return e.state.TokenPaused()
}

// Mint credits newly issued tokens to the recipient. Owner-only, bounded by
// the configured cap.
func (e *Engine) Mint(caller, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return ErrInvalidAddress
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	supply, err := e.state.TokenSupply()
	if err != nil {
		return err
	}
	next := new(big.Int).Add(cloneBigInt(supply), amt)
	if e.cap == nil || e.cap.Sign() <= 0 || next.Cmp(e.cap) > 0 {
		return ErrCapExceeded
	}
	acc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	acc = acc.Normalize()
	acc.BalanceW2R = new(big.Int).Add(acc.BalanceW2R, amt)
	if err := e.state.PutAccount(to[:], acc); err != nil {
		return err
	}
	if err := e.state.SetTokenSupply(next); err != nil {
		return err
	}
	e.emit(newTransferEvent(EventTypeMinted, [20]byte{}, to, amt.String()))
	return nil
}

// Burn destroys tokens from the owner's own balance.
func (e *Engine) Burn(caller [20]byte, amount *big.Int) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	return e.burnFrom(caller, amount)
}

// BurnFrom destroys tokens from holder using the standard allowance granted to
// the owner. Owner-only, per the supply-control gate.
func (e *Engine) BurnFrom(caller, holder [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	allowance, err := e.state.TokenAllowance(holder, caller)
	if err != nil {
		return err
	}
	remaining := cloneBigInt(allowance)
	if remaining.Cmp(amt) < 0 {
		return ErrAllowanceExceeded
	}
	if err := e.burnFrom(holder, amt); err != nil {
		return err
	}
	return e.state.SetTokenAllowance(holder, caller, remaining.Sub(remaining, amt))
}

func (e *Engine) burnFrom(holder [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	acc, err := e.state.GetAccount(holder[:])
	if err != nil {
		return err
	}
	acc = acc.Normalize()
	if acc.BalanceW2R.Cmp(amt) < 0 {
		return ErrInsufficientFunds
	}
	acc.BalanceW2R = new(big.Int).Sub(acc.BalanceW2R, amt)
	if err := e.state.PutAccount(holder[:], acc); err != nil {
		return err
	}
	supply, err := e.state.TokenSupply()
	if err != nil {
		return err
	}
	next := new(big.Int).Sub(cloneBigInt(supply), amt)
	if next.Sign() < 0 {
		return ErrInsufficientFunds
	}
	if err := e.state.SetTokenSupply(next); err != nil {
		return err
	}
	e.emit(newTransferEvent(EventTypeBurned, holder, [20]byte{}, amt.String()))
	return nil
}

// Pause blocks all transfers until Unpause. Owner-only.
func (e *Engine) Pause(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	paused, err := e.state.TokenPaused()
	if err != nil {
		return err
	}
	if paused {
		return ErrPaused
	}
	if err := e.state.SetTokenPaused(true); err != nil {
		return err
	}
	e.emit(newPauseEvent(EventTypePaused, caller))
	return nil
}

// Unpause re-enables transfers. Owner-only.
func (e *Engine) Unpause(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	paused, err := e.state.TokenPaused()
	if err != nil {
		return err
	}
	if !paused {
		return ErrNotPaused
	}
	if err := e.state.SetTokenPaused(false); err != nil {
		return err
	}
	e.emit(newPauseEvent(EventTypeUnpaused, caller))
	return nil
}

// Approve grants spender the right to move up to amount from owner's balance.
func (e *Engine) Approve(owner, spender [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if spender == ([20]byte{}) {
		return ErrInvalidAddress
	}
	amt := cloneBigInt(amount)
	if amt.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := e.state.SetTokenAllowance(owner, spender, amt); err != nil {
		return err
	}
	e.emit(newTransferEvent(EventTypeApproved, owner, spender, amt.String()))
	return nil
}

// Transfer moves amount from the caller's balance to the recipient.
func (e *Engine) Transfer(from, to [20]byte, amount *big.Int) error {
	if err := e.requireUnpaused(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	return e.move(from, to, amount)
}

// TransferFrom moves amount from holder to the recipient, consuming the
// spender's allowance.
func (e *Engine) TransferFrom(spender, from, to [20]byte, amount *big.Int) error {
	if err := e.requireUnpaused(); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	allowance, err := e.state.TokenAllowance(from, spender)
	if err != nil {
		return err
	}
	remaining := cloneBigInt(allowance)
	if remaining.Cmp(amt) < 0 {
		return ErrAllowanceExceeded
	}
	if err := e.move(from, to, amt); err != nil {
		return err
	}
	return e.state.SetTokenAllowance(from, spender, remaining.Sub(remaining, amt))
}

func (e *Engine) move(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if to == ([20]byte{}) {
		return ErrInvalidAddress
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if from == to {
		return nil
	}
	fromAcc, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = fromAcc.Normalize()
	toAcc = toAcc.Normalize()
	if fromAcc.BalanceW2R.Cmp(amt) < 0 {
		return ErrInsufficientFunds
	}
	fromAcc.BalanceW2R = new(big.Int).Sub(fromAcc.BalanceW2R, amt)
	toAcc.BalanceW2R = new(big.Int).Add(toAcc.BalanceW2R, amt)
	if err := e.state.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	if err := e.state.PutAccount(to[:], toAcc); err != nil {
		return err
	}
	e.emit(newTransferEvent(EventTypeTransferred, from, to, amt.String()))
	return nil
}
