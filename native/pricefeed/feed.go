package pricefeed

import (
	"errors"
	"math/big"
	"sync"
)

// Decimals is the fixed-point scale of every answer, matching the
// latestAnswer-style aggregator feeds the staking engine valuates against.
const Decimals = 8

var ErrNoAnswer = errors.New("pricefeed: no answer available")

// Feed exposes a read-only USD price for the W2R token.
type Feed interface {
	LatestAnswer() (*big.Int, error)
	Decimals() uint8
}

// StaticFeed pins the answer to a configuration-supplied value. Deployments
// without an external aggregator run on it.
type StaticFeed struct {
	answer *big.Int
}

// NewStaticFeed returns a feed that always reports answer.
func NewStaticFeed(answer *big.Int) *StaticFeed {
	if answer == nil {
		answer = big.NewInt(0)
	}
	return &StaticFeed{answer: new(big.Int).Set(answer)}
}

func (f *StaticFeed) LatestAnswer() (*big.Int, error) {
	if f == nil || f.answer == nil || f.answer.Sign() <= 0 {
		return nil, ErrNoAnswer
	}
	return new(big.Int).Set(f.answer), nil
}

func (f *StaticFeed) Decimals() uint8 { return Decimals }

// MockFeed is a settable feed for deterministic tests.
type MockFeed struct {
	mu     sync.Mutex
	answer *big.Int
	err    error
}

// NewMockFeed returns a mock primed with answer.
func NewMockFeed(answer *big.Int) *MockFeed {
	feed := &MockFeed{}
	feed.SetAnswer(answer)
	return feed
}

// SetAnswer replaces the reported price.
func (f *MockFeed) SetAnswer(answer *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if answer == nil {
		f.answer = nil
		return
	}
	f.answer = new(big.Int).Set(answer)
}

// SetError forces LatestAnswer to fail until cleared.
func (f *MockFeed) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *MockFeed) LatestAnswer() (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.answer == nil || f.answer.Sign() <= 0 {
		return nil, ErrNoAnswer
	}
	return new(big.Int).Set(f.answer), nil
}

func (f *MockFeed) Decimals() uint8 { return Decimals }
