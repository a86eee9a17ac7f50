package registry

import (
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"w2rchain/core/events"
	"w2rchain/core/types"
	"w2rchain/native/common"
)

const ModuleName = "registry"

var errNilState = errors.New("registry: state not configured")

const (
	EventTypeMemberAdded   = "registry.member_added"
	EventTypeMemberRemoved = "registry.member_removed"
	EventTypeBlacklisted   = "registry.blacklisted"
	EventTypeUnblacklisted = "registry.unblacklisted"
)

type registryState interface {
	RegistryMember(side Side, addr [20]byte) (*Member, bool, error)
	RegistryPutMember(member *Member) error
	RegistryTokenCounter(side Side) (uint64, error)
	SetRegistryTokenCounter(side Side, next uint64) error
}

// rentalBinding is the narrow hook into the rental engine: enrolment creates
// the member's rental ledger record, teardown settles it back to the owner.
type rentalBinding interface {
	Enroll(owner [20]byte, isLender bool) error
	Teardown(owner [20]byte, isLender bool) error
	CooldownActive(owner [20]byte, isLender bool, now int64) (bool, error)
}

type registryEvent struct {
	evt *types.Event
}

func (e registryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e registryEvent) Event() *types.Event { return e.evt }

// Engine is one side of the mirrored onboarding gate. Registration mints a
// non-transferable membership token and creates the caller's rental ledger
// record; the engine also acts as one of the vault's two whitelist masters.
type Engine struct {
	state       registryState
	emitter     events.Emitter
	pauses      common.PauseView
	side        Side
	owner       [20]byte
	rental      rentalBinding
	counterpart *Engine
	nowFn       func() int64
}

// NewEngine creates a registry engine for the given side with a no-op emitter.
func NewEngine(side Side) *Engine {
	return &Engine{
		side:    side,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state registryState) { e.state = state }

// SetOwner configures the moderation address.
func (e *Engine) SetOwner(owner [20]byte) { e.owner = owner }

// SetPauses wires the module pause switch.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetRental wires the rental engine hooks.
func (e *Engine) SetRental(binding rentalBinding) { e.rental = binding }

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

// SetCounterpart links the opposite-side registry. Owner-only and set-once so
// a lender registry can validate renter membership and vice versa.
func (e *Engine) SetCounterpart(caller [20]byte, counterpart *Engine) error {
	if caller != e.owner || e.owner == ([20]byte{}) {
		return ErrNotOwner
	}
	if e.counterpart != nil {
		return ErrCounterpartSet
	}
	e.counterpart = counterpart
	return nil
}

// Side reports which registry this engine serves.
func (e *Engine) Side() Side { return e.side }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(registryEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func memberAttributes(m *Member) map[string]string {
	attrs := map[string]string{
		"owner":   hex.EncodeToString(m.Owner[:]),
		"side":    m.Side.String(),
		"tokenId": strconv.FormatUint(m.TokenID, 10),
	}
	return attrs
}

// RegisterLender onboards a bike owner. Lender registries only.
func (e *Engine) RegisterLender(caller [20]byte, info *BikeInfo) (*Member, error) {
	if e.side != SideLender {
		return nil, errors.New("registry: lender registration on renter registry")
	}
	clean, err := info.Sanitize()
	if err != nil {
		return nil, err
	}
	return e.register(caller, &Member{Owner: caller, Side: e.side, Bike: clean})
}

// RegisterRenter onboards a renter. Renter registries only.
func (e *Engine) RegisterRenter(caller [20]byte, info *RenterInfo) (*Member, error) {
	if e.side != SideRenter {
		return nil, errors.New("registry: renter registration on lender registry")
	}
	clean, err := info.Sanitize()
	if err != nil {
		return nil, err
	}
	return e.register(caller, &Member{Owner: caller, Side: e.side, Renter: clean})
}

func (e *Engine) register(caller [20]byte, member *Member) (*Member, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	existing, ok, err := e.state.RegistryMember(e.side, caller)
	if err != nil {
		return nil, err
	}
	if ok {
		if existing.Blacklisted {
			return nil, ErrBlacklisted
		}
		if existing.Whitelisted {
			return nil, ErrAlreadyRegistered
		}
	}
	counter, err := e.state.RegistryTokenCounter(e.side)
	if err != nil {
		return nil, err
	}
	member.TokenID = counter + 1
	member.Whitelisted = true
	member.CreatedAt = e.now()
	if err := e.state.SetRegistryTokenCounter(e.side, member.TokenID); err != nil {
		return nil, err
	}
	if err := e.state.RegistryPutMember(member); err != nil {
		return nil, err
	}
	if e.rental != nil {
		if err := e.rental.Enroll(caller, e.side == SideLender); err != nil {
			return nil, err
		}
	}
	e.emit(&types.Event{Type: EventTypeMemberAdded, Attributes: memberAttributes(member)})
	return member.Clone(), nil
}

// Deregister voluntarily removes the caller's membership, burning the token
// and settling their rental ledger record back to them. Blocked while the
// post-rental cooldown is active.
func (e *Engine) Deregister(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	member, ok, err := e.state.RegistryMember(e.side, caller)
	if err != nil {
		return err
	}
	if !ok || !member.Whitelisted {
		return ErrNotRegistered
	}
	if e.rental != nil {
		active, err := e.rental.CooldownActive(caller, e.side == SideLender, e.now())
		if err != nil {
			return err
		}
		if active {
			return ErrCooldownActive
		}
	}
	return e.remove(member)
}

func (e *Engine) remove(member *Member) error {
	if e.rental != nil {
		if err := e.rental.Teardown(member.Owner, e.side == SideLender); err != nil {
			return err
		}
	}
	attrs := memberAttributes(member)
	member.Whitelisted = false
	member.TokenID = 0
	member.Bike = nil
	member.Renter = nil
	if err := e.state.RegistryPutMember(member); err != nil {
		return err
	}
	e.emit(&types.Event{Type: EventTypeMemberRemoved, Attributes: attrs})
	return nil
}

// AddToBlacklist bars addr from the platform, force-removing any active
// membership. Owner-only moderation.
func (e *Engine) AddToBlacklist(caller, addr [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.owner || e.owner == ([20]byte{}) {
		return ErrNotOwner
	}
	member, ok, err := e.state.RegistryMember(e.side, addr)
	if err != nil {
		return err
	}
	if !ok {
		member = &Member{Owner: addr, Side: e.side}
	}
	if member.Whitelisted {
		if err := e.remove(member); err != nil {
			return err
		}
	}
	member.Blacklisted = true
	if err := e.state.RegistryPutMember(member); err != nil {
		return err
	}
	e.emit(&types.Event{Type: EventTypeBlacklisted, Attributes: map[string]string{
		"owner": hex.EncodeToString(addr[:]),
		"side":  e.side.String(),
	}})
	return nil
}

// RemoveFromBlacklist lifts the bar; the address may register again.
// Owner-only moderation.
func (e *Engine) RemoveFromBlacklist(caller, addr [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.owner || e.owner == ([20]byte{}) {
		return ErrNotOwner
	}
	member, ok, err := e.state.RegistryMember(e.side, addr)
	if err != nil {
		return err
	}
	if !ok || !member.Blacklisted {
		return ErrNotBlacklisted
	}
	member.Blacklisted = false
	if err := e.state.RegistryPutMember(member); err != nil {
		return err
	}
	e.emit(&types.Event{Type: EventTypeUnblacklisted, Attributes: map[string]string{
		"owner": hex.EncodeToString(addr[:]),
		"side":  e.side.String(),
	}})
	return nil
}

// Member returns the Membership Record for addr.
func (e *Engine) Member(addr [20]byte) (*Member, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	member, ok, err := e.state.RegistryMember(e.side, addr)
	if err != nil || !ok {
		return nil, ok, err
	}
	return member.Clone(), true, nil
}

// IsWhitelisted reports whether addr holds an active, non-blacklisted
// membership on this side.
func (e *Engine) IsWhitelisted(addr [20]byte) (bool, error) {
	member, ok, err := e.Member(addr)
	if err != nil || !ok {
		return false, err
	}
	return member.Whitelisted && !member.Blacklisted, nil
}

// CounterpartWhitelisted validates membership on the opposite-side registry,
// the cross-registry linkage lenders use to vet renters and vice versa.
func (e *Engine) CounterpartWhitelisted(addr [20]byte) (bool, error) {
	if e.counterpart == nil {
		return false, ErrCounterpartMissing
	}
	return e.counterpart.IsWhitelisted(addr)
}
