package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type PoolMetrics struct {
	swaps       *prometheus.CounterVec
	liquidity   *prometheus.GaugeVec
	feesAccrued *prometheus.GaugeVec
	stakedTotal prometheus.Gauge
	rewardsPaid prometheus.Counter
}

var (
	poolOnce     sync.Once
	poolRegistry *PoolMetrics
)

func Pool() *PoolMetrics {
	poolOnce.Do(func() {
		poolRegistry = &PoolMetrics{
			swaps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "amm_swaps_total",
				Help: "Count of swaps by direction.",
			}, []string{"direction"}),
			liquidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "amm_pool_reserve",
				Help: "Current pool reserve per asset.",
			}, []string{"asset"}),
			feesAccrued: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "amm_fee_pool",
				Help: "Accrued, unwithdrawn swap fees per asset.",
			}, []string{"asset"}),
			stakedTotal: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "staking_total_staked",
				Help: "W2R principal currently locked in staking.",
			}),
			rewardsPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staking_rewards_paid_total",
				Help: "W2R paid out of the vault as staking and farming rewards.",
			}),
		}
		prometheus.MustRegister(
			poolRegistry.swaps,
			poolRegistry.liquidity,
			poolRegistry.feesAccrued,
			poolRegistry.stakedTotal,
			poolRegistry.rewardsPaid,
		)
	})
	return poolRegistry
}

func (m *PoolMetrics) ObserveSwap(direction string) {
	if m == nil {
		return
	}
	if direction == "" {
		direction = "unknown"
	}
	m.swaps.WithLabelValues(direction).Inc()
}

func (m *PoolMetrics) SetReserve(asset string, amount float64) {
	if m == nil {
		return
	}
	m.liquidity.WithLabelValues(asset).Set(amount)
}

func (m *PoolMetrics) SetFeePool(asset string, amount float64) {
	if m == nil {
		return
	}
	m.feesAccrued.WithLabelValues(asset).Set(amount)
}

func (m *PoolMetrics) SetStakedTotal(amount float64) {
	if m == nil {
		return
	}
	m.stakedTotal.Set(amount)
}

func (m *PoolMetrics) AddRewardsPaid(amount float64) {
	if m == nil {
		return
	}
	m.rewardsPaid.Add(amount)
}
