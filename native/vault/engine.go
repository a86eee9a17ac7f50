package vault

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"w2rchain/core/events"
	"w2rchain/core/types"
	"w2rchain/native/common"
)

const ModuleName = "vault"

// ModuleAddress is the account custodying the shared reward reserve. Derived
// deterministically from the module name so every deployment agrees on it.
var ModuleAddress = deriveModuleAddress("module/" + ModuleName)

func deriveModuleAddress(name string) [20]byte {
	var addr [20]byte
	digest := ethcrypto.Keccak256([]byte(name))
	copy(addr[:], digest[12:])
	return addr
}

var errNilState = errors.New("vault: state not configured")

const (
	EventTypeDistributed     = "vault.distributed"
	EventTypeWithdrawn       = "vault.withdrawn"
	EventTypeApprovalUpdated = "vault.approval_updated"
)

type vaultState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	VaultApproved(addr [20]byte) (bool, error)
	SetVaultApproved(addr [20]byte, approved bool) error
}

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e vaultEvent) Event() *types.Event { return e.evt }

// Engine custodies the W2R reward reserve. Reward-consuming modules never hold
// mint rights; they only hold a spend-from-reserve right toggled through the
// two whitelist-master registries.
type Engine struct {
	state   vaultState
	emitter events.Emitter
	pauses  common.PauseView
	owner   [20]byte

	lenderMaster [20]byte
	renterMaster [20]byte
}

// NewEngine creates a vault engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state vaultState) { e.state = state }

// SetOwner configures the address allowed to drain the reserve.
func (e *Engine) SetOwner(owner [20]byte) { e.owner = owner }

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
	e.emitter.Emit(vaultEvent{evt: evt})
}

// SetWhitelistLenders registers the lender registry as a whitelist master.
// Owner-only and set-once.
func (e *Engine) SetWhitelistLenders(caller, addr [20]byte) error {
	return e.setMaster(caller, addr, &e.lenderMaster)
}

// SetWhitelistRenters registers the renter registry as a whitelist master.
// Owner-only and set-once.
func (e *Engine) SetWhitelistRenters(caller, addr [20]byte) error {
	return e.setMaster(caller, addr, &e.renterMaster)
}

func (e *Engine) setMaster(caller, addr [20]byte, slot *[20]byte) error {
	if caller != e.owner || e.owner == ([20]byte{}) {
		return ErrNotOwner
	}
	if addr == ([20]byte{}) {
		return ErrInvalidAddress
	}
	if *slot != ([20]byte{}) {
		return ErrMasterAlreadySet
	}
	*slot = addr
	return nil
}

// SetApprovedContract flips the approval bit for addr. Only the two registered
// whitelist masters may call it.
func (e *Engine) SetApprovedContract(caller, addr [20]byte, approved bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller == ([20]byte{}) || (caller != e.lenderMaster && caller != e.renterMaster) {
		return ErrNotWhitelistMaster
	}
	if addr == ([20]byte{}) {
		return ErrInvalidAddress
	}
	if err := e.state.SetVaultApproved(addr, approved); err != nil {
		return err
	}
	e.emit(&types.Event{
		Type: EventTypeApprovalUpdated,
		Attributes: map[string]string{
			"contract": hex.EncodeToString(addr[:]),
			"approved": strconv.FormatBool(approved),
		},
	})
	return nil
}

// ApprovedContract reports whether addr may draw from the reserve.
func (e *Engine) ApprovedContract(addr [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	return e.state.VaultApproved(addr)
}

// Reserve reports the current distributable balance.
func (e *Engine) Reserve() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	acc, err := e.state.GetAccount(ModuleAddress[:])
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(acc.Normalize().BalanceW2R), nil
}

// DistributeW2R pays amount from the reserve to receiver. The caller must be
// an approved module address.
func (e *Engine) DistributeW2R(caller, receiver [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	approved, err := e.state.VaultApproved(caller)
	if err != nil {
		return err
	}
	if !approved {
		return ErrNotApproved
	}
	if err := e.pay(receiver, amount, EventTypeDistributed); err != nil {
		return err
	}
	return nil
}

// WithdrawW2R drains amount from the reserve to the owner. Emergency use.
func (e *Engine) WithdrawW2R(caller [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.owner || e.owner == ([20]byte{}) {
		return ErrNotOwner
	}
	return e.pay(e.owner, amount, EventTypeWithdrawn)
}

func (e *Engine) pay(receiver [20]byte, amount *big.Int, eventType string) error {
	if receiver == ([20]byte{}) {
		return ErrInvalidAddress
	}
	amt := big.NewInt(0)
	if amount != nil {
		amt = new(big.Int).Set(amount)
	}
	if amt.Sign() <= 0 {
		return ErrInvalidAmount
	}
	reserveAcc, err := e.state.GetAccount(ModuleAddress[:])
	if err != nil {
		return err
	}
	reserveAcc = reserveAcc.Normalize()
	if reserveAcc.BalanceW2R.Cmp(amt) < 0 {
		return ErrInsufficientReserve
	}
	receiverAcc, err := e.state.GetAccount(receiver[:])
	if err != nil {
		return err
	}
	receiverAcc = receiverAcc.Normalize()
	reserveAcc.BalanceW2R = new(big.Int).Sub(reserveAcc.BalanceW2R, amt)
	receiverAcc.BalanceW2R = new(big.Int).Add(receiverAcc.BalanceW2R, amt)
	if err := e.state.PutAccount(ModuleAddress[:], reserveAcc); err != nil {
		return err
	}
	if err := e.state.PutAccount(receiver[:], receiverAcc); err != nil {
		return err
	}
	e.emit(&types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"receiver": hex.EncodeToString(receiver[:]),
			"amount":   amt.String(),
		},
	})
	return nil
}
