package ethcore

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

/*
Prometheus metrics for RPC calls and transaction watches. Create with
"NewMetrics", attach to a transport with "InstrumentTrans" and to watches via
"WatchOpts.Metrics". A nil *Metrics disables recording.
*/
type Metrics struct {
	RpcCallsTotal     *prometheus.CounterVec
	RpcErrorsTotal    *prometheus.CounterVec
	RpcCallDuration   *prometheus.HistogramVec
	TxTransitions     *prometheus.CounterVec
	TxOutcomesTotal   *prometheus.CounterVec
	TxConfirmDuration prometheus.Histogram
}

/*
Creates the metrics and registers them with the given registerer. Nil means
"prometheus.DefaultRegisterer". Registering twice with the same registerer
panics, like any duplicate Prometheus registration.
*/
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RpcCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ethcore_rpc_calls_total",
			Help: "The total number of RPC calls",
		}, []string{"method"}),
		RpcErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ethcore_rpc_errors_total",
			Help: "The total number of failed RPC calls",
		}, []string{"method", "kind"}),
		RpcCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ethcore_rpc_call_duration_seconds",
			Help:    "Duration of RPC calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		TxTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ethcore_tx_state_transitions_total",
			Help: "Transaction watch state transitions",
		}, []string{"from", "to"}),
		TxOutcomesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ethcore_tx_outcomes_total",
			Help: "Terminal outcomes of transaction watches",
		}, []string{"outcome"}),
		TxConfirmDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ethcore_tx_confirm_duration_seconds",
			Help:    "Time from the start of a watch to confirmation",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

func (self *Metrics) observeTransition(from, to TxState) {
	if self == nil {
		return
	}
	self.TxTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

func (self *Metrics) observeOutcome(outcome string, started time.Time, now time.Time) {
	if self == nil {
		return
	}
	self.TxOutcomesTotal.WithLabelValues(outcome).Inc()
	if outcome == TxConfirmed.String() {
		self.TxConfirmDuration.Observe(now.Sub(started).Seconds())
	}
}

/*
Wraps a transport, recording call counts, latencies and errors per method.
Errors are labeled "retryable" or "fatal" by the same rules as
"TransportError". Returns the transport unchanged when metrics are nil.
*/
func InstrumentTrans(trans Trans, metrics *Metrics) Trans {
	if metrics == nil {
		return trans
	}
	return instrumentedTrans{Trans: trans, metrics: metrics}
}

type instrumentedTrans struct {
	Trans
	metrics *Metrics
}

func (self instrumentedTrans) Call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	started := time.Now()
	err := self.Trans.Call(ctx, out, method, params...)

	self.metrics.RpcCallsTotal.WithLabelValues(method).Inc()
	self.metrics.RpcCallDuration.WithLabelValues(method).Observe(time.Since(started).Seconds())
	if err != nil {
		kind := "retryable"
		if IsFatal(transportError(method, err)) {
			kind = "fatal"
		}
		self.metrics.RpcErrorsTotal.WithLabelValues(method, kind).Inc()
	}
	return err
}
