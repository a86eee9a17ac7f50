package amm

import (
	"encoding/hex"
	"errors"
	"math/big"
	"strconv"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"w2rchain/core/events"
	"w2rchain/core/types"
	"w2rchain/native/common"
)

const ModuleName = "amm"

// Basis-point denominators for the pool's percentage parameters.
const bpsDenominator = 10_000

// ModuleAddress custodies both pool reserves at the account level.
var ModuleAddress = deriveModuleAddress("module/" + ModuleName)

func deriveModuleAddress(name string) [20]byte {
	var addr [20]byte
	digest := ethcrypto.Keccak256([]byte(name))
	copy(addr[:], digest[12:])
	return addr
}

var errNilState = errors.New("amm: state not configured")

type ammState interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
	AMMPool() (*Pool, error)
	SetAMMPool(pool *Pool) error
	LPBalance(addr [20]byte) (*big.Int, error)
	SetLPBalance(addr [20]byte, amount *big.Int) error
	FarmRecordGet(addr [20]byte) (*FarmRecord, bool, error)
	FarmRecordPut(record *FarmRecord) error
}

type rewardSource interface {
	DistributeW2R(caller, receiver [20]byte, amount *big.Int) error
}

type ammEvent struct {
	evt *types.Event
}

func (e ammEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e ammEvent) Event() *types.Event { return e.evt }

// Engine implements the fixed-rate MATIC/W2R pool: liquidity shares, capped
// swaps with fee skimming, and LP farming against the vault reserve.
type Engine struct {
	state   ammState
	emitter events.Emitter
	pauses  common.PauseView
	rewards rewardSource
	owner   [20]byte

	feeBps      int64
	swapCapBps  int64
	ratioTolBps int64
	yieldBps    int64

	nowFn func() int64
}

// NewEngine creates an AMM engine with the production percentages: 1% swap
// fee, a 5% per-trade cap, 3% deposit ratio tolerance, and a 10% annual farm
// yield.
func NewEngine() *Engine {
	return &Engine{
		emitter:     events.NoopEmitter{},
		feeBps:      100,
		swapCapBps:  500,
		ratioTolBps: 300,
		yieldBps:    1_000,
		nowFn:       func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state ammState) { e.state = state }

// SetOwner configures the pool administrator.
func (e *Engine) SetOwner(owner [20]byte) { e.owner = owner }

// SetRewards wires the vault distribution right used by farming.
func (e *Engine) SetRewards(r rewardSource) { e.rewards = r }

// SetPauses wires the module pause switch.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

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

// FeesPercent reports the swap fee in basis points.
func (e *Engine) FeesPercent() int64 { return e.feeBps }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(ammEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) guard() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return common.Guard(e.pauses, ModuleName)
}

func (e *Engine) pool() (*Pool, error) {
	p, err := e.state.AMMPool()
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &Pool{}
	}
	return p.Normalize(), nil
}

func positive(amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return new(big.Int).Set(amount), nil
}

// moveMatic and moveW2R shuttle value between a caller account and the pool's
// module account.
func (e *Engine) moveMatic(from, to [20]byte, amount *big.Int) error {
	return e.move(from, to, amount, false)
}

func (e *Engine) moveW2R(from, to [20]byte, amount *big.Int) error {
	return e.move(from, to, amount, true)
}

func (e *Engine) move(from, to [20]byte, amount *big.Int, w2r bool) error {
	if from == to {
		return nil
	}
	fromAcct, err := e.state.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcct, err := e.state.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromBal, toBal := fromAcct.BalanceMatic, toAcct.BalanceMatic
	if w2r {
		fromBal, toBal = fromAcct.BalanceW2R, toAcct.BalanceW2R
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	fromBal.Sub(fromBal, amount)
	toBal.Add(toBal, amount)
	if err := e.state.PutAccount(from[:], fromAcct); err != nil {
		return err
	}
	return e.state.PutAccount(to[:], toAcct)
}

// SetSwapRate updates the nominal W2R-per-MATIC rate. Owner-only.
func (e *Engine) SetSwapRate(caller [20]byte, rate *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if caller != e.owner {
		return ErrNotOwner
	}
	if rate == nil || rate.Sign() <= 0 {
		return ErrInvalidRate
	}
	p, err := e.pool()
	if err != nil {
		return err
	}
	p.SwapRate = new(big.Int).Set(rate)
	if err := e.state.SetAMMPool(p); err != nil {
		return err
	}
	e.emit(newPoolEvent(EventTypeRateUpdated, caller, map[string]string{"rate": rate.String()}))
	return nil
}

// CreditMatic records a bridged MATIC deposit against the receiver's account.
// Owner-only: the bridge operator is the sole MATIC inflow, mirroring how W2R
// enters through the token engine's owner-gated mint.
func (e *Engine) CreditMatic(caller, receiver [20]byte, amount *big.Int) error {
	if err := e.guard(); err != nil {
		return err
	}
	if caller != e.owner {
		return ErrNotOwner
	}
	amount, err := positive(amount)
	if err != nil {
		return err
	}
	acct, err := e.state.GetAccount(receiver[:])
	if err != nil {
		return err
	}
	acct.BalanceMatic.Add(acct.BalanceMatic, amount)
	if err := e.state.PutAccount(receiver[:], acct); err != nil {
		return err
	}
	e.emit(newPoolEvent(EventTypeMaticCredited, caller, map[string]string{
		"receiver": hex.EncodeToString(receiver[:]),
		"amount":   amount.String(),
	}))
	return nil
}

// AddLiquidity deposits both sides at the current rate (within tolerance) and
// mints LP shares proportional to the MATIC contribution. The first deposit
// is owner-only and seeds the ratio.
func (e *Engine) AddLiquidity(caller [20]byte, maticAmount, w2rAmount *big.Int) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	matic, err := positive(maticAmount)
	if err != nil {
		return nil, err
	}
	w2r, err := positive(w2rAmount)
	if err != nil {
		return nil, err
	}
	p, err := e.pool()
	if err != nil {
		return nil, err
	}
	if p.SwapRate.Sign() <= 0 {
		return nil, ErrInvalidRate
	}
	if p.LPSupply.Sign() == 0 && caller != e.owner {
		return nil, ErrPoolNotSeeded
	}

	// |w2r - matic*rate| must stay within the ratio tolerance.
	ideal := new(big.Int).Mul(matic, p.SwapRate)
	diff := new(big.Int).Sub(w2r, ideal)
	diff.Abs(diff)
	tolerance := new(big.Int).Mul(ideal, big.NewInt(e.ratioTolBps))
	tolerance.Div(tolerance, big.NewInt(bpsDenominator))
	if diff.Cmp(tolerance) > 0 {
		return nil, ErrRatioSlippage
	}

	var minted *big.Int
	if p.LPSupply.Sign() == 0 {
		minted = new(big.Int).Set(matic)
	} else {
		minted = new(big.Int).Mul(p.LPSupply, matic)
		minted.Div(minted, p.MaticReserve)
	}
	if minted.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	if err := e.moveMatic(caller, ModuleAddress, matic); err != nil {
		return nil, err
	}
	if err := e.moveW2R(caller, ModuleAddress, w2r); err != nil {
		return nil, err
	}
	p.MaticReserve = new(big.Int).Add(p.MaticReserve, matic)
	p.W2RReserve = new(big.Int).Add(p.W2RReserve, w2r)
	p.LPSupply = new(big.Int).Add(p.LPSupply, minted)
	if err := e.state.SetAMMPool(p); err != nil {
		return nil, err
	}
	shares, err := e.state.LPBalance(caller)
	if err != nil {
		return nil, err
	}
	if err := e.state.SetLPBalance(caller, new(big.Int).Add(shares, minted)); err != nil {
		return nil, err
	}
	e.emit(newPoolEvent(EventTypeLiquidityAdded, caller, map[string]string{
		"matic":  matic.String(),
		"w2r":    w2r.String(),
		"minted": minted.String(),
	}))
	return minted, nil
}

// RemoveLiquidity burns lpAmount shares and pays out both sides pro-rata.
func (e *Engine) RemoveLiquidity(caller [20]byte, lpAmount *big.Int) (*big.Int, *big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, nil, err
	}
	lp, err := positive(lpAmount)
	if err != nil {
		return nil, nil, err
	}
	shares, err := e.state.LPBalance(caller)
	if err != nil {
		return nil, nil, err
	}
	if shares.Cmp(lp) < 0 {
		return nil, nil, ErrInsufficientShares
	}
	p, err := e.pool()
	if err != nil {
		return nil, nil, err
	}
	if p.LPSupply.Sign() == 0 {
		return nil, nil, ErrInsufficientLiquidity
	}

	maticOut := new(big.Int).Mul(p.MaticReserve, lp)
	maticOut.Div(maticOut, p.LPSupply)
	w2rOut := new(big.Int).Mul(p.W2RReserve, lp)
	w2rOut.Div(w2rOut, p.LPSupply)

	p.MaticReserve = new(big.Int).Sub(p.MaticReserve, maticOut)
	p.W2RReserve = new(big.Int).Sub(p.W2RReserve, w2rOut)
	p.LPSupply = new(big.Int).Sub(p.LPSupply, lp)
	if err := e.state.SetAMMPool(p); err != nil {
		return nil, nil, err
	}
	if err := e.state.SetLPBalance(caller, new(big.Int).Sub(shares, lp)); err != nil {
		return nil, nil, err
	}
	if maticOut.Sign() > 0 {
		if err := e.moveMatic(ModuleAddress, caller, maticOut); err != nil {
			return nil, nil, err
		}
	}
	if w2rOut.Sign() > 0 {
		if err := e.moveW2R(ModuleAddress, caller, w2rOut); err != nil {
			return nil, nil, err
		}
	}
	e.emit(newPoolEvent(EventTypeLiquidityRemoved, caller, map[string]string{
		"matic":  maticOut.String(),
		"w2r":    w2rOut.String(),
		"burned": lp.String(),
	}))
	return maticOut, w2rOut, nil
}

// SwapMaticForW2R trades MATIC for W2R at the fixed rate, minus the fee.
func (e *Engine) SwapMaticForW2R(caller [20]byte, maticAmount *big.Int) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	in, err := positive(maticAmount)
	if err != nil {
		return nil, err
	}
	p, err := e.pool()
	if err != nil {
		return nil, err
	}
	if p.SwapRate.Sign() <= 0 {
		return nil, ErrInvalidRate
	}
	gross := new(big.Int).Mul(in, p.SwapRate)
	net, fee, err := e.checkSwapOut(gross, p.W2RReserve)
	if err != nil {
		return nil, err
	}
	if err := e.moveMatic(caller, ModuleAddress, in); err != nil {
		return nil, err
	}
	if err := e.moveW2R(ModuleAddress, caller, net); err != nil {
		return nil, err
	}
	p.MaticReserve = new(big.Int).Add(p.MaticReserve, in)
	p.W2RReserve = new(big.Int).Sub(p.W2RReserve, gross)
	p.FeePoolW2R = new(big.Int).Add(p.FeePoolW2R, fee)
	if err := e.state.SetAMMPool(p); err != nil {
		return nil, err
	}
	e.emit(newPoolEvent(EventTypeSwapped, caller, map[string]string{
		"direction": "matic_to_w2r",
		"in":        in.String(),
		"out":       net.String(),
		"fee":       fee.String(),
	}))
	return net, nil
}

// SwapW2RForMatic trades W2R for MATIC at the fixed rate, minus the fee.
func (e *Engine) SwapW2RForMatic(caller [20]byte, w2rAmount *big.Int) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	in, err := positive(w2rAmount)
	if err != nil {
		return nil, err
	}
	p, err := e.pool()
	if err != nil {
		return nil, err
	}
	if p.SwapRate.Sign() <= 0 {
		return nil, ErrInvalidRate
	}
	gross := new(big.Int).Div(in, p.SwapRate)
	if gross.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	net, fee, err := e.checkSwapOut(gross, p.MaticReserve)
	if err != nil {
		return nil, err
	}
	if err := e.moveW2R(caller, ModuleAddress, in); err != nil {
		return nil, err
	}
	if err := e.moveMatic(ModuleAddress, caller, net); err != nil {
		return nil, err
	}
	p.W2RReserve = new(big.Int).Add(p.W2RReserve, in)
	p.MaticReserve = new(big.Int).Sub(p.MaticReserve, gross)
	p.FeePoolMatic = new(big.Int).Add(p.FeePoolMatic, fee)
	if err := e.state.SetAMMPool(p); err != nil {
		return nil, err
	}
	e.emit(newPoolEvent(EventTypeSwapped, caller, map[string]string{
		"direction": "w2r_to_matic",
		"in":        in.String(),
		"out":       net.String(),
		"fee":       fee.String(),
	}))
	return net, nil
}

// checkSwapOut enforces the per-trade cap (gross output at most swapCapBps of
// the opposite reserve) and splits the gross output into net and fee.
func (e *Engine) checkSwapOut(gross, reserve *big.Int) (net, fee *big.Int, err error) {
	if gross.Cmp(reserve) > 0 {
		return nil, nil, ErrInsufficientLiquidity
	}
	cap := new(big.Int).Mul(reserve, big.NewInt(e.swapCapBps))
	cap.Div(cap, big.NewInt(bpsDenominator))
	if gross.Cmp(cap) > 0 {
		return nil, nil, ErrExceedsLiquidityCap
	}
	fee = new(big.Int).Mul(gross, big.NewInt(e.feeBps))
	fee.Div(fee, big.NewInt(bpsDenominator))
	net = new(big.Int).Sub(gross, fee)
	if net.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	return net, fee, nil
}

// WithdrawFees pays both fee pools out to the owner.
func (e *Engine) WithdrawFees(caller [20]byte) error {
	if err := e.guard(); err != nil {
		return err
	}
	if caller != e.owner {
		return ErrNotOwner
	}
	p, err := e.pool()
	if err != nil {
		return err
	}
	if p.FeePoolMatic.Sign() == 0 && p.FeePoolW2R.Sign() == 0 {
		return ErrNoFees
	}
	matic := new(big.Int).Set(p.FeePoolMatic)
	w2r := new(big.Int).Set(p.FeePoolW2R)
	p.FeePoolMatic = big.NewInt(0)
	p.FeePoolW2R = big.NewInt(0)
	if err := e.state.SetAMMPool(p); err != nil {
		return err
	}
	if matic.Sign() > 0 {
		if err := e.moveMatic(ModuleAddress, caller, matic); err != nil {
			return err
		}
	}
	if w2r.Sign() > 0 {
		if err := e.moveW2R(ModuleAddress, caller, w2r); err != nil {
			return err
		}
	}
	e.emit(newPoolEvent(EventTypeFeesWithdrawn, caller, map[string]string{
		"matic": matic.String(),
		"w2r":   w2r.String(),
	}))
	return nil
}

// GetUserBalances reports the caller's wallet, LP, and farmed holdings.
func (e *Engine) GetUserBalances(caller [20]byte) (*UserBalances, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	acct, err := e.state.GetAccount(caller[:])
	if err != nil {
		return nil, err
	}
	shares, err := e.state.LPBalance(caller)
	if err != nil {
		return nil, err
	}
	farmed := big.NewInt(0)
	if record, ok, err := e.state.FarmRecordGet(caller); err != nil {
		return nil, err
	} else if ok {
		farmed = new(big.Int).Set(record.Normalize().LPAmount)
	}
	return &UserBalances{
		Matic:  new(big.Int).Set(acct.BalanceMatic),
		W2R:    new(big.Int).Set(acct.BalanceW2R),
		LP:     new(big.Int).Set(shares),
		Farmed: farmed,
	}, nil
}

// GetContractBalances reports the pool reserves and fee pools.
func (e *Engine) GetContractBalances() (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	p, err := e.pool()
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

func formatSeconds(v int64) string { return strconv.FormatInt(v, 10) }
