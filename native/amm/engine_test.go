package amm

import (
	"fmt"
	"math/big"
	"testing"

	"w2rchain/core/types"
)

type mockState struct {
	accounts map[string]*types.Account
	pool     *Pool
	lp       map[[20]byte]*big.Int
	farms    map[[20]byte]*FarmRecord
}

func newMockState() *mockState {
	return &mockState{
		accounts: make(map[string]*types.Account),
		lp:       make(map[[20]byte]*big.Int),
		farms:    make(map[[20]byte]*FarmRecord),
	}
}

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	acct, ok := m.accounts[string(addr)]
	if !ok {
		return types.NewAccount(), nil
	}
	return acct.Clone(), nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	m.accounts[string(addr)] = account.Clone()
	return nil
}

func (m *mockState) AMMPool() (*Pool, error) {
	if m.pool == nil {
		return nil, nil
	}
	return m.pool.Clone(), nil
}

func (m *mockState) SetAMMPool(pool *Pool) error {
	m.pool = pool.Clone()
	return nil
}

func (m *mockState) LPBalance(addr [20]byte) (*big.Int, error) {
	bal, ok := m.lp[addr]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

func (m *mockState) SetLPBalance(addr [20]byte, amount *big.Int) error {
	m.lp[addr] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) FarmRecordGet(addr [20]byte) (*FarmRecord, bool, error) {
	record, ok := m.farms[addr]
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

func (m *mockState) FarmRecordPut(record *FarmRecord) error {
	m.farms[record.Owner] = record.Clone()
	return nil
}

type mockRewards struct {
	reserve *big.Int
	paid    map[[20]byte]*big.Int
}

func (m *mockRewards) DistributeW2R(caller, receiver [20]byte, amount *big.Int) error {
	if m.reserve == nil || m.reserve.Cmp(amount) < 0 {
		return fmt.Errorf("vault: reserve too low")
	}
	m.reserve = new(big.Int).Sub(m.reserve, amount)
	if m.paid == nil {
		m.paid = make(map[[20]byte]*big.Int)
	}
	prev := m.paid[receiver]
	if prev == nil {
		prev = big.NewInt(0)
	}
	m.paid[receiver] = new(big.Int).Add(prev, amount)
	return nil
}

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

type fixture struct {
	engine  *Engine
	state   *mockState
	rewards *mockRewards
	owner   [20]byte
	now     int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		state:   newMockState(),
		rewards: &mockRewards{reserve: big.NewInt(1_000_000)},
		owner:   addr(1),
		now:     1_700_000_000,
	}
	f.engine = NewEngine()
	f.engine.SetState(f.state)
	f.engine.SetOwner(f.owner)
	f.engine.SetRewards(f.rewards)
	f.engine.SetNowFunc(func() int64 { return f.now })
	return f
}

func (f *fixture) fund(addr [20]byte, matic, w2r int64) {
	acct := types.NewAccount()
	acct.BalanceMatic = big.NewInt(matic)
	acct.BalanceW2R = big.NewInt(w2r)
	f.state.accounts[string(addr[:])] = acct
}

// seed sets the rate to 10 W2R per MATIC and bootstraps 1,000 MATIC /
// 10,000 W2R of owner liquidity.
func (f *fixture) seed(t *testing.T) {
	t.Helper()
	if err := f.engine.SetSwapRate(f.owner, big.NewInt(10)); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	f.fund(f.owner, 10_000, 200_000)
	if _, err := f.engine.AddLiquidity(f.owner, big.NewInt(1_000), big.NewInt(10_000)); err != nil {
		t.Fatalf("seed liquidity: %v", err)
	}
}

func maticBalance(t *testing.T, f *fixture, a [20]byte) int64 {
	t.Helper()
	acct, err := f.state.GetAccount(a[:])
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	return acct.BalanceMatic.Int64()
}

func w2rBalance(t *testing.T, f *fixture, a [20]byte) int64 {
	t.Helper()
	acct, err := f.state.GetAccount(a[:])
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	return acct.BalanceW2R.Int64()
}

func TestFirstDepositIsOwnerOnly(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.SetSwapRate(f.owner, big.NewInt(10)); err != nil {
		t.Fatalf("set rate: %v", err)
	}
	stranger := addr(2)
	f.fund(stranger, 1_000, 10_000)
	if _, err := f.engine.AddLiquidity(stranger, big.NewInt(100), big.NewInt(1_000)); err != ErrPoolNotSeeded {
		t.Fatalf("err = %v, want ErrPoolNotSeeded", err)
	}
}

func TestSetSwapRateOwnerOnly(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.SetSwapRate(addr(2), big.NewInt(10)); err != ErrNotOwner {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
	if err := f.engine.SetSwapRate(f.owner, big.NewInt(0)); err != ErrInvalidRate {
		t.Fatalf("zero rate err = %v, want ErrInvalidRate", err)
	}
}

func TestAddLiquidityRatioTolerance(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	lp := addr(3)
	f.fund(lp, 1_000, 20_000)

	// Ideal for 100 MATIC at rate 10 is 1,000 W2R; 3% tolerance allows 970-1030.
	if _, err := f.engine.AddLiquidity(lp, big.NewInt(100), big.NewInt(1_031)); err != ErrRatioSlippage {
		t.Fatalf("high ratio err = %v, want ErrRatioSlippage", err)
	}
	if _, err := f.engine.AddLiquidity(lp, big.NewInt(100), big.NewInt(969)); err != ErrRatioSlippage {
		t.Fatalf("low ratio err = %v, want ErrRatioSlippage", err)
	}
	minted, err := f.engine.AddLiquidity(lp, big.NewInt(100), big.NewInt(1_030))
	if err != nil {
		t.Fatalf("in-tolerance deposit: %v", err)
	}
	// 100/1000 of the pool at 1000 existing shares.
	if minted.Int64() != 100 {
		t.Fatalf("minted = %s, want 100", minted)
	}
}

func TestRemoveLiquidityProRata(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	maticOut, w2rOut, err := f.engine.RemoveLiquidity(f.owner, big.NewInt(250))
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if maticOut.Int64() != 250 || w2rOut.Int64() != 2_500 {
		t.Fatalf("payout = %s/%s, want 250/2500", maticOut, w2rOut)
	}
	pool, _ := f.engine.GetContractBalances()
	if pool.MaticReserve.Int64() != 750 || pool.W2RReserve.Int64() != 7_500 || pool.LPSupply.Int64() != 750 {
		t.Fatalf("pool after remove = %+v", pool)
	}
	if _, _, err := f.engine.RemoveLiquidity(f.owner, big.NewInt(751)); err != ErrInsufficientShares {
		t.Fatalf("over-remove err = %v, want ErrInsufficientShares", err)
	}
}

func TestSwapAppliesFeeAndMovesReserves(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	trader := addr(4)
	f.fund(trader, 500, 0)

	// 40 MATIC in, gross 400 W2R, 1% fee = 4, net 396.
	out, err := f.engine.SwapMaticForW2R(trader, big.NewInt(40))
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if out.Int64() != 396 {
		t.Fatalf("out = %s, want 396", out)
	}
	if got := w2rBalance(t, f, trader); got != 396 {
		t.Fatalf("trader w2r = %d, want 396", got)
	}
	if got := maticBalance(t, f, trader); got != 460 {
		t.Fatalf("trader matic = %d, want 460", got)
	}
	pool, _ := f.engine.GetContractBalances()
	if pool.MaticReserve.Int64() != 1_040 || pool.W2RReserve.Int64() != 9_600 {
		t.Fatalf("reserves = %s/%s, want 1040/9600", pool.MaticReserve, pool.W2RReserve)
	}
	if pool.FeePoolW2R.Int64() != 4 {
		t.Fatalf("fee pool = %s, want 4", pool.FeePoolW2R)
	}
}

func TestSwapCapBoundsSingleTrade(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	trader := addr(5)
	f.fund(trader, 1_000, 10_000)

	// 5% of the 10,000 W2R reserve is 500 gross, so 50 MATIC is the largest
	// matic_to_w2r trade and 51 must fail.
	if _, err := f.engine.SwapMaticForW2R(trader, big.NewInt(51)); err != ErrExceedsLiquidityCap {
		t.Fatalf("over-cap err = %v, want ErrExceedsLiquidityCap", err)
	}
	if _, err := f.engine.SwapMaticForW2R(trader, big.NewInt(50)); err != nil {
		t.Fatalf("at-cap swap: %v", err)
	}

	// Opposite direction: 5% of 1,050 MATIC is 52 gross; 530 W2R in is 53.
	if _, err := f.engine.SwapW2RForMatic(trader, big.NewInt(530)); err != ErrExceedsLiquidityCap {
		t.Fatalf("reverse over-cap err = %v, want ErrExceedsLiquidityCap", err)
	}
	if _, err := f.engine.SwapW2RForMatic(trader, big.NewInt(520)); err != nil {
		t.Fatalf("reverse at-cap swap: %v", err)
	}
}

func TestWithdrawFeesOwnerOnly(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	trader := addr(6)
	f.fund(trader, 500, 0)
	if _, err := f.engine.SwapMaticForW2R(trader, big.NewInt(40)); err != nil {
		t.Fatalf("swap: %v", err)
	}

	if err := f.engine.WithdrawFees(trader); err != ErrNotOwner {
		t.Fatalf("stranger withdraw err = %v, want ErrNotOwner", err)
	}
	before := w2rBalance(t, f, f.owner)
	if err := f.engine.WithdrawFees(f.owner); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := w2rBalance(t, f, f.owner); got != before+4 {
		t.Fatalf("owner w2r = %d, want +4 fee", got)
	}
	if err := f.engine.WithdrawFees(f.owner); err != ErrNoFees {
		t.Fatalf("empty withdraw err = %v, want ErrNoFees", err)
	}
}

func TestCreditMaticFundsBridgedDeposits(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	trader := addr(7)

	if err := f.engine.CreditMatic(trader, trader, big.NewInt(100)); err != ErrNotOwner {
		t.Fatalf("stranger credit err = %v, want ErrNotOwner", err)
	}
	if err := f.engine.CreditMatic(f.owner, trader, big.NewInt(0)); err != ErrInvalidAmount {
		t.Fatalf("zero credit err = %v, want ErrInvalidAmount", err)
	}

	if err := f.engine.CreditMatic(f.owner, trader, big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if got := maticBalance(t, f, trader); got != 100 {
		t.Fatalf("trader matic = %d, want 100", got)
	}

	// A bridged balance is spendable like any other: 40 MATIC at rate 10
	// nets 396 W2R after the 1% fee.
	if _, err := f.engine.SwapMaticForW2R(trader, big.NewInt(40)); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if got := w2rBalance(t, f, trader); got != 396 {
		t.Fatalf("trader w2r = %d, want 396", got)
	}
}
