package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives engine events worth counting.
type Recorder interface {
	ClaimOutcome(outcome string)
	Transition(action string)
	ActionsFallback()
	EligibilityCheck(code string)
	NotificationFailed()
}

type Nop struct{}

func NewNop() *Nop { return &Nop{} }

func (*Nop) ClaimOutcome(string)     {}
func (*Nop) Transition(string)       {}
func (*Nop) ActionsFallback()        {}
func (*Nop) EligibilityCheck(string) {}
func (*Nop) NotificationFailed()     {}

// Prometheus is a Recorder backed by client_golang counters.
type Prometheus struct {
	claims        *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	fallbacks     prometheus.Counter
	eligibility   *prometheus.CounterVec
	notifyFailure prometheus.Counter
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus registers the engine counters on reg (the default registerer
// when nil) under namespace.
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "event_requests"
	}
	p := &Prometheus{
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_total",
			Help:      "Claim attempts by outcome (claimed, already-claimed, not-eligible, wrong-status).",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Successful state changes by action.",
		}, []string{"action"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_fallback_total",
			Help:      "Available-action lookups that degraded to view-only after an internal error.",
		}),
		eligibility: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eligibility_checks_total",
			Help:      "Coverage matcher verdicts by result code.",
		}, []string{"code"}),
		notifyFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Transition notifications the dispatcher refused.",
		}),
	}
	reg.MustRegister(p.claims, p.transitions, p.fallbacks, p.eligibility, p.notifyFailure)
	return p
}

func (p *Prometheus) ClaimOutcome(outcome string) {
	p.claims.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) Transition(action string) {
	p.transitions.WithLabelValues(action).Inc()
}

func (p *Prometheus) ActionsFallback() {
	p.fallbacks.Inc()
}

func (p *Prometheus) EligibilityCheck(code string) {
	if code == "" {
		code = "eligible"
	}
	p.eligibility.WithLabelValues(code).Inc()
}

func (p *Prometheus) NotificationFailed() {
	p.notifyFailure.Inc()
}
