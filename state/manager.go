package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"w2rchain/core/types"
	"w2rchain/native/amm"
	"w2rchain/native/registry"
	"w2rchain/native/rental"
	"w2rchain/native/staking"
	"w2rchain/storage"
)

// Key prefixes. Every record is JSON under a typed prefix so unrelated
// modules can never collide.
const (
	prefixAccount        = "acct/"
	keyTokenSupply       = "token/supply"
	keyTokenPaused       = "token/paused"
	prefixTokenAllowance = "token/allow/"
	prefixVaultApproved  = "vault/approved/"
	prefixMember         = "registry/member/"
	prefixTokenCounter   = "registry/counter/"
	prefixRentalAccount  = "rental/acct/"
	prefixLenderConfig   = "rental/config/"
	prefixProposal       = "rental/proposal/"
	keyProposalIndex     = "rental/proposal_index"
	prefixRentalHistory  = "rental/history/"
	keyRentalPairIndex   = "rental/pair_index"
	keyAMMPool           = "amm/pool"
	prefixLPBalance      = "amm/lp/"
	prefixFarmRecord     = "amm/farm/"
	prefixStaker         = "staking/"
	keyPauses            = "pauses"
)

// Manager persists every native module's records through a storage.Database
// and serializes access with a single lock, mirroring the one-transition-at-
// a-time execution model.
type Manager struct {
	mu sync.RWMutex
	db storage.Database
}

// NewManager wraps db in a state manager.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) getJSON(key string, out any) (bool, error) {
	raw, err := m.db.Get([]byte(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) putJSON(key string, in any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put([]byte(key), raw)
}

func accountKey(addr []byte) string {
	return prefixAccount + fmt.Sprintf("%x", addr)
}

func pairSuffix(a, b [20]byte) string {
	return fmt.Sprintf("%x/%x", a, b)
}

// GetAccount loads the account for addr, returning a zeroed account when none
// is stored yet.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acct := new(types.Account)
	ok, err := m.getJSON(accountKey(addr), acct)
	if err != nil {
		return nil, err
	}
	if !ok {
		return types.NewAccount(), nil
	}
	return acct.Normalize(), nil
}

func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(accountKey(addr), account.Normalize())
}

// --- token ---

func (m *Manager) TokenSupply() (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	supply := new(big.Int)
	ok, err := m.getJSON(keyTokenSupply, supply)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return supply, nil
}

func (m *Manager) SetTokenSupply(amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(keyTokenSupply, amount)
}

func (m *Manager) TokenPaused() (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var paused bool
	if _, err := m.getJSON(keyTokenPaused, &paused); err != nil {
		return false, err
	}
	return paused, nil
}

func (m *Manager) SetTokenPaused(paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(keyTokenPaused, paused)
}

func (m *Manager) TokenAllowance(owner, spender [20]byte) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	amount := new(big.Int)
	ok, err := m.getJSON(prefixTokenAllowance+pairSuffix(owner, spender), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) SetTokenAllowance(owner, spender [20]byte, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(prefixTokenAllowance+pairSuffix(owner, spender), amount)
}

// --- vault ---

func (m *Manager) VaultApproved(addr [20]byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var approved bool
	if _, err := m.getJSON(prefixVaultApproved+fmt.Sprintf("%x", addr), &approved); err != nil {
		return false, err
	}
	return approved, nil
}

func (m *Manager) SetVaultApproved(addr [20]byte, approved bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(prefixVaultApproved+fmt.Sprintf("%x", addr), approved)
}

// --- registry ---

func memberKey(side registry.Side, addr [20]byte) string {
	return fmt.Sprintf("%s%s/%x", prefixMember, side, addr)
}

func (m *Manager) RegistryMember(side registry.Side, addr [20]byte) (*registry.Member, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	member := new(registry.Member)
	ok, err := m.getJSON(memberKey(side, addr), member)
	if err != nil || !ok {
		return nil, ok, err
	}
	return member, true, nil
}

func (m *Manager) RegistryPutMember(member *registry.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(memberKey(member.Side, member.Owner), member)
}

func (m *Manager) RegistryTokenCounter(side registry.Side) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var counter uint64
	if _, err := m.getJSON(prefixTokenCounter+side.String(), &counter); err != nil {
		return 0, err
	}
	return counter, nil
}

func (m *Manager) SetRegistryTokenCounter(side registry.Side, next uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(prefixTokenCounter+side.String(), next)
}

// --- rental ---

func rentalAccountKey(owner [20]byte, lender bool) string {
	role := "renter"
	if lender {
		role = "lender"
	}
	return fmt.Sprintf("%s%s/%x", prefixRentalAccount, role, owner)
}

func (m *Manager) MemberAccountGet(owner [20]byte, lender bool) (*rental.MemberAccount, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acct := new(rental.MemberAccount)
	ok, err := m.getJSON(rentalAccountKey(owner, lender), acct)
	if err != nil || !ok {
		return nil, ok, err
	}
	return acct.Normalize(), true, nil
}

func (m *Manager) MemberAccountPut(acct *rental.MemberAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(rentalAccountKey(acct.Owner, acct.Lender), acct)
}

func (m *Manager) LenderConfigGet(owner [20]byte) (*rental.LenderConfig, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := new(rental.LenderConfig)
	ok, err := m.getJSON(prefixLenderConfig+fmt.Sprintf("%x", owner), cfg)
	if err != nil || !ok {
		return nil, ok, err
	}
	return cfg, true, nil
}

func (m *Manager) LenderConfigPut(cfg *rental.LenderConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(prefixLenderConfig+fmt.Sprintf("%x", cfg.Owner), cfg)
}

// pairRef indexes a (lender, renter) pair for the list queries the storage
// layer cannot answer with a scan.
type pairRef struct {
	Lender [20]byte `json:"lender"`
	Renter [20]byte `json:"renter"`
}

func (m *Manager) pairIndex(key string) ([]pairRef, error) {
	var refs []pairRef
	if _, err := m.getJSON(key, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

func (m *Manager) addPairRef(key string, ref pairRef) error {
	refs, err := m.pairIndex(key)
	if err != nil {
		return err
	}
	for _, existing := range refs {
		if existing == ref {
			return nil
		}
	}
	return m.putJSON(key, append(refs, ref))
}

func (m *Manager) removePairRef(key string, ref pairRef) error {
	refs, err := m.pairIndex(key)
	if err != nil {
		return err
	}
	kept := refs[:0]
	for _, existing := range refs {
		if existing != ref {
			kept = append(kept, existing)
		}
	}
	return m.putJSON(key, kept)
}

func (m *Manager) ProposalGet(lender, renter [20]byte) (*rental.Proposal, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := new(rental.Proposal)
	ok, err := m.getJSON(prefixProposal+pairSuffix(lender, renter), p)
	if err != nil || !ok {
		return nil, ok, err
	}
	return p, true, nil
}

func (m *Manager) ProposalPut(p *rental.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.putJSON(prefixProposal+pairSuffix(p.Lender, p.Renter), p); err != nil {
		return err
	}
	return m.addPairRef(keyProposalIndex, pairRef{Lender: p.Lender, Renter: p.Renter})
}

func (m *Manager) ProposalDelete(lender, renter [20]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.Delete([]byte(prefixProposal + pairSuffix(lender, renter))); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return m.removePairRef(keyProposalIndex, pairRef{Lender: lender, Renter: renter})
}

func (m *Manager) proposalsWhere(match func(pairRef) bool) ([]*rental.Proposal, error) {
	refs, err := m.pairIndex(keyProposalIndex)
	if err != nil {
		return nil, err
	}
	var out []*rental.Proposal
	for _, ref := range refs {
		if !match(ref) {
			continue
		}
		p := new(rental.Proposal)
		ok, err := m.getJSON(prefixProposal+pairSuffix(ref.Lender, ref.Renter), p)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Manager) ProposalsByLender(lender [20]byte) ([]*rental.Proposal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.proposalsWhere(func(ref pairRef) bool { return ref.Lender == lender })
}

func (m *Manager) ProposalsByRenter(renter [20]byte) ([]*rental.Proposal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.proposalsWhere(func(ref pairRef) bool { return ref.Renter == renter })
}

func (m *Manager) RentalsGet(lender, renter [20]byte) ([]*rental.Rental, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var list []*rental.Rental
	if _, err := m.getJSON(prefixRentalHistory+pairSuffix(lender, renter), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *Manager) RentalsPut(lender, renter [20]byte, list []*rental.Rental) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.putJSON(prefixRentalHistory+pairSuffix(lender, renter), list); err != nil {
		return err
	}
	return m.addPairRef(keyRentalPairIndex, pairRef{Lender: lender, Renter: renter})
}

func (m *Manager) RentalPairs(owner [20]byte, lender bool) ([][20]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	refs, err := m.pairIndex(keyRentalPairIndex)
	if err != nil {
		return nil, err
	}
	var out [][20]byte
	for _, ref := range refs {
		if lender && ref.Lender == owner {
			out = append(out, ref.Renter)
		}
		if !lender && ref.Renter == owner {
			out = append(out, ref.Lender)
		}
	}
	return out, nil
}

// --- amm ---

func (m *Manager) AMMPool() (*amm.Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pool := new(amm.Pool)
	ok, err := m.getJSON(keyAMMPool, pool)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return pool.Normalize(), nil
}

func (m *Manager) SetAMMPool(pool *amm.Pool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(keyAMMPool, pool)
}

func (m *Manager) LPBalance(addr [20]byte) (*big.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	amount := new(big.Int)
	ok, err := m.getJSON(prefixLPBalance+fmt.Sprintf("%x", addr), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (m *Manager) SetLPBalance(addr [20]byte, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(prefixLPBalance+fmt.Sprintf("%x", addr), amount)
}

func (m *Manager) FarmRecordGet(addr [20]byte) (*amm.FarmRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record := new(amm.FarmRecord)
	ok, err := m.getJSON(prefixFarmRecord+fmt.Sprintf("%x", addr), record)
	if err != nil || !ok {
		return nil, ok, err
	}
	return record.Normalize(), true, nil
}

func (m *Manager) FarmRecordPut(record *amm.FarmRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(prefixFarmRecord+fmt.Sprintf("%x", record.Owner), record)
}

// --- staking ---

func (m *Manager) StakerGet(addr [20]byte) (*staking.Staker, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := new(staking.Staker)
	ok, err := m.getJSON(prefixStaker+fmt.Sprintf("%x", addr), s)
	if err != nil || !ok {
		return nil, ok, err
	}
	return s.Normalize(), true, nil
}

func (m *Manager) StakerPut(s *staking.Staker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putJSON(prefixStaker+fmt.Sprintf("%x", s.Owner), s)
}

// --- pauses ---

// IsPaused satisfies the engines' PauseView. Pause flips are persisted so a
// restart keeps a paused module paused.
func (m *Manager) IsPaused(module string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pauses := make(map[string]bool)
	if _, err := m.getJSON(keyPauses, &pauses); err != nil {
		return false
	}
	return pauses[module]
}

func (m *Manager) SetPaused(module string, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pauses := make(map[string]bool)
	if _, err := m.getJSON(keyPauses, &pauses); err != nil {
		return err
	}
	pauses[module] = paused
	return m.putJSON(keyPauses, pauses)
}
