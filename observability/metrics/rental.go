package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type RentalMetrics struct {
	proposals     *prometheus.CounterVec
	rentals       *prometheus.CounterVec
	settlements   prometheus.Counter
	cancellations prometheus.Counter
	escrowHeld    prometheus.Gauge
	rewardsPaid   prometheus.Counter
}

var (
	rentalOnce     sync.Once
	rentalRegistry *RentalMetrics
)

func Rental() *RentalMetrics {
	rentalOnce.Do(func() {
		rentalRegistry = &RentalMetrics{
			proposals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rental_proposals_total",
				Help: "Count of rental proposals by outcome.",
			}, []string{"outcome"}),
			rentals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "rental_transitions_total",
				Help: "Count of rental state transitions by step.",
			}, []string{"step"}),
			settlements: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "rental_settlements_total",
				Help: "Count of completed rental settlements.",
			}),
			cancellations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "rental_cancellations_total",
				Help: "Count of rentals cancelled before handover.",
			}),
			escrowHeld: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "rental_escrow_held",
				Help: "W2R currently escrowed by open rentals.",
			}),
			rewardsPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "rental_rewards_paid_total",
				Help: "W2R paid out of the vault as settlement rewards.",
			}),
		}
		prometheus.MustRegister(
			rentalRegistry.proposals,
			rentalRegistry.rentals,
			rentalRegistry.settlements,
			rentalRegistry.cancellations,
			rentalRegistry.escrowHeld,
			rentalRegistry.rewardsPaid,
		)
	})
	return rentalRegistry
}

func (m *RentalMetrics) ObserveProposal(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.proposals.WithLabelValues(outcome).Inc()
}

func (m *RentalMetrics) ObserveTransition(step string) {
	if m == nil {
		return
	}
	if step == "" {
		step = "unknown"
	}
	m.rentals.WithLabelValues(step).Inc()
}

func (m *RentalMetrics) ObserveSettlement() {
	if m == nil {
		return
	}
	m.settlements.Inc()
}

func (m *RentalMetrics) ObserveCancellation() {
	if m == nil {
		return
	}
	m.cancellations.Inc()
}

func (m *RentalMetrics) SetEscrowHeld(amount float64) {
	if m == nil {
		return
	}
	m.escrowHeld.Set(amount)
}

func (m *RentalMetrics) AddRewardsPaid(amount float64) {
	if m == nil {
		return
	}
	m.rewardsPaid.Add(amount)
}
