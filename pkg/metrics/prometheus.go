package metrics

import (
	"strconv"

	"SignalDesk/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var automationStates = []models.AutomationState{
	models.StateIdle, models.StateSearching, models.StateAdminWait, models.StateActive,
}

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsOpened   *prometheus.CounterVec
	signalsResolved *prometheus.CounterVec
	priceLookups    *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	automation      *prometheus.GaugeVec
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// New creates a recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		signalsOpened: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_signals_opened_total",
				Help: "Signals opened by source",
			},
			[]string{"source"},
		),
		signalsResolved: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_signals_resolved_total",
				Help: "Signals resolved by result; forced marks losses recorded without prices",
			},
			[]string{"result", "forced"},
		),
		priceLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_price_lookups_total",
				Help: "Point price lookups by outcome",
			},
			[]string{"outcome"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_price_fallbacks_total",
				Help: "Price fallbacks taken by kind",
			},
			[]string{"kind"},
		),
		automation: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signaldesk_automation_state",
				Help: "1 for the current automation state, 0 otherwise",
			},
			[]string{"state"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signaldesk_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) SignalOpened(source models.Source) {
	r.signalsOpened.WithLabelValues(string(source)).Inc()
}

func (r *Recorder) SignalResolved(result models.Result, forced bool) {
	r.signalsResolved.WithLabelValues(string(result), strconv.FormatBool(forced)).Inc()
}

func (r *Recorder) PriceLookup(outcome string) {
	r.priceLookups.WithLabelValues(outcome).Inc()
}

func (r *Recorder) FallbackUsed(kind string) {
	r.fallbacks.WithLabelValues(kind).Inc()
}

// AutomationState sets the gauge of state to 1 and every other state to 0.
func (r *Recorder) AutomationState(state models.AutomationState) {
	for _, s := range automationStates {
		v := 0.0
		if s == state {
			v = 1
		}
		r.automation.WithLabelValues(string(s)).Set(v)
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
