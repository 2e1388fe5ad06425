package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the session client. A nil
// *Metrics is valid and records nothing, so components can run
// unmonitored.
type Metrics struct {
	SessionsTracked prometheus.Gauge
	SessionsStarted prometheus.Counter
	SessionsCloned  prometheus.Counter

	Patches        *prometheus.CounterVec
	KernelChanges  prometheus.Counter
	DroppedUpdates prometheus.Counter

	Reconciliations prometheus.Counter
	Disposals       prometheus.Counter

	TransportCalls  *prometheus.CounterVec
	TransportErrors *prometheus.CounterVec
}

// New creates a metrics collector registered on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a metrics collector registered on reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsTracked: factory.NewGauge(prometheus.GaugeOpts{
			Name: "jupyter_sessions_tracked",
			Help: "Number of live session connections tracked by the registry",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "jupyter_sessions_started_total",
			Help: "Total number of sessions started or connected",
		}),
		SessionsCloned: factory.NewCounter(prometheus.CounterOpts{
			Name: "jupyter_sessions_cloned_total",
			Help: "Total number of session connection clones handed out",
		}),
		Patches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jupyter_session_patches_total",
			Help: "Total number of session PATCH requests by field",
		}, []string{"field"}),
		KernelChanges: factory.NewCounter(prometheus.CounterOpts{
			Name: "jupyter_session_kernel_changes_total",
			Help: "Total number of kernel identity changes applied",
		}),
		DroppedUpdates: factory.NewCounter(prometheus.CounterOpts{
			Name: "jupyter_session_dropped_updates_total",
			Help: "Server updates dropped because a PATCH was in flight",
		}),
		Reconciliations: factory.NewCounter(prometheus.CounterOpts{
			Name: "jupyter_session_reconciliations_total",
			Help: "Total number of bulk reconciliation passes",
		}),
		Disposals: factory.NewCounter(prometheus.CounterOpts{
			Name: "jupyter_session_disposals_total",
			Help: "Total number of session connections disposed",
		}),
		TransportCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jupyter_transport_calls_total",
			Help: "Total number of session service calls by operation",
		}, []string{"op"}),
		TransportErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "jupyter_transport_errors_total",
			Help: "Total number of failed session service calls by operation",
		}, []string{"op"}),
	}
}

// TrackSession records a connection being added to the registry.
func (m *Metrics) TrackSession() {
	if m == nil {
		return
	}
	m.SessionsTracked.Inc()
	m.SessionsStarted.Inc()
}

// UntrackSession records a connection leaving the registry.
func (m *Metrics) UntrackSession() {
	if m == nil {
		return
	}
	m.SessionsTracked.Dec()
}

// ObserveClone records a clone being handed out.
func (m *Metrics) ObserveClone() {
	if m == nil {
		return
	}
	m.SessionsCloned.Inc()
}

// ObservePatch records a PATCH of the given field.
func (m *Metrics) ObservePatch(field string) {
	if m == nil {
		return
	}
	m.Patches.WithLabelValues(field).Inc()
}

// ObserveKernelChange records a kernel identity change.
func (m *Metrics) ObserveKernelChange() {
	if m == nil {
		return
	}
	m.KernelChanges.Inc()
}

// ObserveDroppedUpdate records an update dropped by the in-flight guard.
func (m *Metrics) ObserveDroppedUpdate() {
	if m == nil {
		return
	}
	m.DroppedUpdates.Inc()
}

// ObserveReconciliation records a bulk reconciliation pass.
func (m *Metrics) ObserveReconciliation() {
	if m == nil {
		return
	}
	m.Reconciliations.Inc()
}

// ObserveDisposal records a connection disposal.
func (m *Metrics) ObserveDisposal() {
	if m == nil {
		return
	}
	m.Disposals.Inc()
}

// ObserveCall records an attempted transport call.
func (m *Metrics) ObserveCall(op string) {
	if m == nil {
		return
	}
	m.TransportCalls.WithLabelValues(op).Inc()
}

// ObserveCallError records a failed transport call.
func (m *Metrics) ObserveCallError(op string) {
	if m == nil {
		return
	}
	m.TransportErrors.WithLabelValues(op).Inc()
}
