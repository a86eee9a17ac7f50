package staking

import (
	"errors"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"w2rchain/core/events"
	"w2rchain/core/types"
	"w2rchain/native/common"
	"w2rchain/native/pricefeed"
)

const ModuleName = "staking"

const (
	bpsDenominator = 10_000
	secondsPerYear = 365 * 24 * 60 * 60
	// Lock months are accounted in 30-day blocks.
	secondsPerMonth = 30 * 24 * 60 * 60
)

// ModuleAddress custodies every staked principal.
var ModuleAddress = deriveModuleAddress("module/" + ModuleName)

func deriveModuleAddress(name string) [20]byte {
	var addr [20]byte
	digest := ethcrypto.Keccak256([]byte(name))
	copy(addr[:], digest[12:])
	return addr
}

var errNilState = errors.New("staking: state not configured")

type stakingState interface {
	StakerGet(addr [20]byte) (*Staker, bool, error)
	StakerPut(s *Staker) error
}

type ledger interface {
	Transfer(from, to [20]byte, amount *big.Int) error
}

type rewardSource interface {
	DistributeW2R(caller, receiver [20]byte, amount *big.Int) error
}

type stakingEvent struct {
	evt *types.Event
}

func (e stakingEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e stakingEvent) Event() *types.Event { return e.evt }

// Engine implements time-locked staking with a duration multiplier, a hard
// 15-day early-unstake window, and reward accrual against the price feed's
// USD valuation.
type Engine struct {
	state   stakingState
	emitter events.Emitter
	pauses  common.PauseView
	ledger  ledger
	rewards rewardSource
	feed    pricefeed.Feed

	maxLockMonths uint32
	earlyWindow   int64
	penaltyBps    int64
	annualRateBps int64

	nowFn func() int64
}

// NewEngine creates a staking engine with the production parameters: a
// 12-month maximum lock, 15-day early-unstake window, 30% in-lock reward
// penalty, and a 12% base annual rate.
func NewEngine() *Engine {
	return &Engine{
		emitter:       events.NoopEmitter{},
		maxLockMonths: 12,
		earlyWindow:   15 * 24 * 60 * 60,
		penaltyBps:    3_000,
		annualRateBps: 1_200,
		nowFn:         func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state stakingState) { e.state = state }

// SetLedger wires the W2R token engine for principal custody.
func (e *Engine) SetLedger(l ledger) { e.ledger = l }

// SetRewards wires the vault distribution right.
func (e *Engine) SetRewards(r rewardSource) { e.rewards = r }

// SetFeed wires the fiat price feed.
func (e *Engine) SetFeed(f pricefeed.Feed) { e.feed = f }

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

// MaxLockPeriod reports the maximum lock in months.
func (e *Engine) MaxLockPeriod() uint32 { return e.maxLockMonths }

// EarlyUnstakePenalty reports the in-lock reward penalty in basis points.
func (e *Engine) EarlyUnstakePenalty() int64 { return e.penaltyBps }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(stakingEvent{evt: evt})
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

// usdValue converts a W2R amount to its fiat value through the feed.
func (e *Engine) usdValue(amount *big.Int) (*big.Int, error) {
	if e.feed == nil {
		return nil, ErrNoPriceFeed
	}
	answer, err := e.feed.LatestAnswer()
	if err != nil {
		return nil, err
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(e.feed.Decimals())), nil)
	value := new(big.Int).Mul(amount, answer)
	return value.Div(value, scale), nil
}

// Stake locks amount W2R. The first stake sets the lock; later stakes add to
// the pile and optionally extend the remaining lock, capped at the maximum.
func (e *Engine) Stake(caller [20]byte, amount *big.Int, lockMonths uint32, extendLock bool) error {
	if err := e.guard(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	amt := new(big.Int).Set(amount)
	s, ok, err := e.state.StakerGet(caller)
	if err != nil {
		return err
	}
	now := e.now()
	first := !ok || s.Normalize().Amount.Sign() == 0
	if first {
		if lockMonths < 1 || lockMonths > e.maxLockMonths {
			return ErrLockOutOfRange
		}
		s = &Staker{
			Owner:       caller,
			LockMonths:  lockMonths,
			LockEnd:     now + int64(lockMonths)*secondsPerMonth,
			StartTime:   now,
			LastAccrual: now,
		}
		s.Normalize()
	} else {
		s = s.Normalize()
		if err := e.checkpoint(s, now); err != nil {
			return err
		}
		if extendLock && lockMonths > 0 {
			total := s.LockMonths + s.ExtraMonths + lockMonths
			if total > e.maxLockMonths {
				return ErrLockOutOfRange
			}
			s.ExtraMonths += lockMonths
			s.LockEnd += int64(lockMonths) * secondsPerMonth
			e.emit(newStakeEvent(EventTypeLockExtended, s, amt.String()))
		}
	}

	if err := e.ledger.Transfer(caller, ModuleAddress, amt); err != nil {
		return err
	}
	s.Amount = new(big.Int).Add(s.Amount, amt)
	stakeValue, err := e.usdValue(amt)
	if err != nil {
		return err
	}
	s.USDValueAtStake = new(big.Int).Add(s.USDValueAtStake, stakeValue)
	if err := e.state.StakerPut(s); err != nil {
		return err
	}
	e.emit(newStakeEvent(EventTypeStaked, s, amt.String()))
	return nil
}

// checkpoint folds base accrual (multiplier applied at payout) into
// RewardDebt.
func (e *Engine) checkpoint(s *Staker, now int64) error {
	elapsed := now - s.LastAccrual
	s.LastAccrual = now
	if elapsed <= 0 || s.Amount.Sign() == 0 {
		return nil
	}
	reward := new(big.Int).Mul(s.Amount, big.NewInt(e.annualRateBps))
	reward.Mul(reward, big.NewInt(elapsed))
	reward.Div(reward, big.NewInt(bpsDenominator))
	reward.Div(reward, big.NewInt(secondsPerYear))
	s.RewardDebt = new(big.Int).Add(s.RewardDebt, reward)
	return nil
}

// CalculateMultiplier returns the duration multiplier applied to rewards paid
// after the lock: one point per lock month (base plus added), capped at a
// tenth of the staked fiat value, never below 1. Inside the lock the
// multiplier is forfeited.
func (e *Engine) CalculateMultiplier(addr [20]byte, afterLock bool) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if !afterLock {
		return big.NewInt(1), nil
	}
	s, ok, err := e.state.StakerGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(1), nil
	}
	s = s.Normalize()
	mult := big.NewInt(int64(s.LockMonths + s.ExtraMonths))
	ceiling := new(big.Int).Div(s.USDValueAtStake, big.NewInt(10))
	if ceiling.Cmp(big.NewInt(1)) < 0 {
		ceiling = big.NewInt(1)
	}
	if mult.Cmp(ceiling) > 0 {
		mult = ceiling
	}
	if mult.Cmp(big.NewInt(1)) < 0 {
		mult = big.NewInt(1)
	}
	return mult, nil
}

// payout turns base accrual into the amount actually owed: multiplied after
// the lock, penalized inside it.
func (e *Engine) payout(s *Staker, base *big.Int, now int64) (*big.Int, error) {
	if base.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if now >= s.LockEnd {
		mult, err := e.CalculateMultiplier(s.Owner, true)
		if err != nil {
			return nil, err
		}
		return new(big.Int).Mul(base, mult), nil
	}
	penalized := new(big.Int).Mul(base, big.NewInt(bpsDenominator-e.penaltyBps))
	return penalized.Div(penalized, big.NewInt(bpsDenominator)), nil
}

// Unstake withdraws amount of principal. Blocked entirely for the first 15
// days; inside the lock the accrued reward takes the early-unstake penalty
// and loses the multiplier. With proportionalReward the reward payout scales
// to the withdrawn fraction, leaving the rest accrued.
func (e *Engine) Unstake(caller [20]byte, amount *big.Int, proportionalReward bool) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	amt := new(big.Int).Set(amount)
	s, ok, err := e.state.StakerGet(caller)
	if err != nil {
		return nil, err
	}
	if !ok || s.Normalize().Amount.Sign() == 0 {
		return nil, ErrNoStake
	}
	s = s.Normalize()
	now := e.now()
	if now < s.StartTime+e.earlyWindow {
		return nil, ErrEarlyUnstakeWindow
	}
	if s.Amount.Cmp(amt) < 0 {
		return nil, ErrInsufficientStake
	}
	if err := e.checkpoint(s, now); err != nil {
		return nil, err
	}

	base := new(big.Int).Set(s.RewardDebt)
	if proportionalReward {
		base.Mul(base, amt)
		base.Div(base, s.Amount)
	}
	reward, err := e.payout(s, base, now)
	if err != nil {
		return nil, err
	}
	s.RewardDebt = new(big.Int).Sub(s.RewardDebt, base)

	// USD basis shrinks with the withdrawn fraction.
	usdOut := new(big.Int).Mul(s.USDValueAtStake, amt)
	usdOut.Div(usdOut, s.Amount)
	s.USDValueAtStake = new(big.Int).Sub(s.USDValueAtStake, usdOut)
	s.Amount = new(big.Int).Sub(s.Amount, amt)

	if err := e.ledger.Transfer(ModuleAddress, caller, amt); err != nil {
		return nil, err
	}
	if reward.Sign() > 0 && e.rewards != nil {
		if err := e.rewards.DistributeW2R(ModuleAddress, caller, reward); err != nil {
			return nil, err
		}
	}
	if err := e.state.StakerPut(s); err != nil {
		return nil, err
	}
	e.emit(newStakeEvent(EventTypeUnstaked, s, amt.String()))
	return reward, nil
}

// ClaimReward pays accrued rewards without touching principal.
func (e *Engine) ClaimReward(caller [20]byte) (*big.Int, error) {
	if err := e.guard(); err != nil {
		return nil, err
	}
	s, ok, err := e.state.StakerGet(caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoStake
	}
	s = s.Normalize()
	now := e.now()
	if err := e.checkpoint(s, now); err != nil {
		return nil, err
	}
	reward, err := e.payout(s, s.RewardDebt, now)
	if err != nil {
		return nil, err
	}
	if reward.Sign() == 0 {
		return nil, ErrNothingToClaim
	}
	s.RewardDebt = big.NewInt(0)
	if err := e.rewards.DistributeW2R(ModuleAddress, caller, reward); err != nil {
		return nil, err
	}
	if err := e.state.StakerPut(s); err != nil {
		return nil, err
	}
	e.emit(newStakeEvent(EventTypeRewardClaimed, s, reward.String()))
	return reward, nil
}

// ViewReward reports what a claim would pay right now.
func (e *Engine) ViewReward(addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	s, ok, err := e.state.StakerGet(addr)
	if err != nil || !ok {
		return big.NewInt(0), err
	}
	s = s.Normalize().Clone()
	now := e.now()
	if err := e.checkpoint(s, now); err != nil {
		return nil, err
	}
	return e.payout(s, s.RewardDebt, now)
}

// Stakers returns the record for addr.
func (e *Engine) Stakers(addr [20]byte) (*Staker, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	s, ok, err := e.state.StakerGet(addr)
	if err != nil || !ok {
		return nil, ok, err
	}
	return s.Normalize().Clone(), true, nil
}
