package registry

import (
	"bytes"
	"errors"
	"testing"
)

type memberKey struct {
	side Side
	addr [20]byte
}

type mockState struct {
	members  map[memberKey]*Member
	counters map[Side]uint64
}

func newMockState() *mockState {
	return &mockState{
		members:  make(map[memberKey]*Member),
		counters: make(map[Side]uint64),
	}
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func (m *mockState) RegistryMember(side Side, addr [20]byte) (*Member, bool, error) {
	member, ok := m.members[memberKey{side, addr}]
	if !ok {
		return nil, false, nil
	}
	return member.Clone(), true, nil
}

func (m *mockState) RegistryPutMember(member *Member) error {
	m.members[memberKey{member.Side, member.Owner}] = member.Clone()
	return nil
}

func (m *mockState) RegistryTokenCounter(side Side) (uint64, error) {
	return m.counters[side], nil
}

func (m *mockState) SetRegistryTokenCounter(side Side, next uint64) error {
	m.counters[side] = next
	return nil
}

type mockRental struct {
	enrolled  map[[20]byte]bool
	tornDown  map[[20]byte]bool
	cooldown  bool
	enrollErr error
}

func newMockRental() *mockRental {
	return &mockRental{
		enrolled: make(map[[20]byte]bool),
		tornDown: make(map[[20]byte]bool),
	}
}

func (m *mockRental) Enroll(owner [20]byte, isLender bool) error {
	if m.enrollErr != nil {
		return m.enrollErr
	}
	m.enrolled[owner] = true
	return nil
}

func (m *mockRental) Teardown(owner [20]byte, isLender bool) error {
	m.tornDown[owner] = true
	return nil
}

func (m *mockRental) CooldownActive(owner [20]byte, isLender bool, now int64) (bool, error) {
	return m.cooldown, nil
}

func newTestEngines(state *mockState) (*Engine, *Engine, *mockRental, [20]byte) {
	owner := newTestAddress(0x01)
	rental := newMockRental()
	lenders := NewEngine(SideLender)
	renters := NewEngine(SideRenter)
	for _, engine := range []*Engine{lenders, renters} {
		engine.SetState(state)
		engine.SetOwner(owner)
		engine.SetRental(rental)
		engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	}
	if err := lenders.SetCounterpart(owner, renters); err != nil {
		panic(err)
	}
	if err := renters.SetCounterpart(owner, lenders); err != nil {
		panic(err)
	}
	return lenders, renters, rental, owner
}

func testBike() *BikeInfo {
	return &BikeInfo{Name: "City Cruiser", Brand: "Btwin", Model: "Elops 520", Serial: "SN-42", Registration: "FR-75-XYZ"}
}

func TestRegisterLenderMintsMembership(t *testing.T) {
	state := newMockState()
	lenders, _, rental, _ := newTestEngines(state)
	alice := newTestAddress(0x0A)

	member, err := lenders.RegisterLender(alice, testBike())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if member.TokenID != 1 {
		t.Fatalf("expected token id 1, got %d", member.TokenID)
	}
	if !member.Whitelisted {
		t.Fatalf("expected whitelisted")
	}
	if !rental.enrolled[alice] {
		t.Fatalf("expected rental enrolment")
	}

	if _, err := lenders.RegisterLender(alice, testBike()); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected duplicate guard, got %v", err)
	}

	bob := newTestAddress(0x0B)
	second, err := lenders.RegisterLender(bob, testBike())
	if err != nil {
		t.Fatalf("register bob: %v", err)
	}
	if second.TokenID != 2 {
		t.Fatalf("expected token id 2, got %d", second.TokenID)
	}
}

func TestRegisterRejectsInvalidInfo(t *testing.T) {
	state := newMockState()
	lenders, renters, _, _ := newTestEngines(state)
	addr := newTestAddress(0x0A)

	if _, err := lenders.RegisterLender(addr, &BikeInfo{Brand: "no name"}); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := renters.RegisterRenter(addr, &RenterInfo{Preference: "city"}); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := renters.RegisterLender(addr, testBike()); err == nil {
		t.Fatalf("expected side mismatch error")
	}
}

func TestDeregisterHonorsCooldown(t *testing.T) {
	state := newMockState()
	lenders, _, rental, _ := newTestEngines(state)
	alice := newTestAddress(0x0A)
	if _, err := lenders.RegisterLender(alice, testBike()); err != nil {
		t.Fatalf("register: %v", err)
	}

	rental.cooldown = true
	if err := lenders.Deregister(alice); !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("expected cooldown guard, got %v", err)
	}
	rental.cooldown = false
	if err := lenders.Deregister(alice); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	if !rental.tornDown[alice] {
		t.Fatalf("expected rental teardown")
	}
	member, ok, _ := lenders.Member(alice)
	if !ok || member.Whitelisted || member.TokenID != 0 {
		t.Fatalf("expected burned membership, got %+v", member)
	}
	if err := lenders.Deregister(alice); !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("expected not registered, got %v", err)
	}
}

func TestBlacklistLifecycle(t *testing.T) {
	state := newMockState()
	lenders, _, rental, owner := newTestEngines(state)
	alice := newTestAddress(0x0A)
	if _, err := lenders.RegisterLender(alice, testBike()); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := lenders.AddToBlacklist(alice, alice); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected owner gate, got %v", err)
	}
	if err := lenders.AddToBlacklist(owner, alice); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	if !rental.tornDown[alice] {
		t.Fatalf("expected forced teardown")
	}
	if _, err := lenders.RegisterLender(alice, testBike()); !errors.Is(err, ErrBlacklisted) {
		t.Fatalf("expected blacklist guard, got %v", err)
	}
	if err := lenders.RemoveFromBlacklist(owner, alice); err != nil {
		t.Fatalf("unblacklist: %v", err)
	}
	if _, err := lenders.RegisterLender(alice, testBike()); err != nil {
		t.Fatalf("re-register after unblacklist: %v", err)
	}
}

func TestCounterpartWhitelisted(t *testing.T) {
	state := newMockState()
	lenders, renters, _, _ := newTestEngines(state)
	renterAddr := newTestAddress(0x0C)
	if _, err := renters.RegisterRenter(renterAddr, &RenterInfo{Name: "Carol", Preference: "road"}); err != nil {
		t.Fatalf("register renter: %v", err)
	}

	ok, err := lenders.CounterpartWhitelisted(renterAddr)
	if err != nil || !ok {
		t.Fatalf("expected whitelisted counterpart, got %v %v", ok, err)
	}
	ok, err = lenders.CounterpartWhitelisted(newTestAddress(0x0D))
	if err != nil || ok {
		t.Fatalf("expected unknown counterpart, got %v %v", ok, err)
	}

	unlinked := NewEngine(SideLender)
	unlinked.SetState(state)
	if _, err := unlinked.CounterpartWhitelisted(renterAddr); !errors.Is(err, ErrCounterpartMissing) {
		t.Fatalf("expected missing counterpart error, got %v", err)
	}
}
