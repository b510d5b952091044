package authapi

import (
	"github.com/prometheus/client_golang/prometheus"

	"porchlight/cmd/internal/auth/session"
)

// Metrics tracks auth outcomes. A nil Metrics records nothing.
type Metrics struct {
	loginOutcomes      *prometheus.CounterVec
	signupOutcomes     *prometheus.CounterVec
	sessionResolutions *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		loginOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "porchlight",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		signupOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "porchlight",
			Subsystem: "auth",
			Name:      "signup_attempts_total",
			Help:      "Signup attempts by outcome.",
		}, []string{"outcome"}),
		sessionResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "porchlight",
			Subsystem: "auth",
			Name:      "session_resolutions_total",
			Help:      "Session resolutions by winning credential source.",
		}, []string{"source"}),
	}
	if reg != nil {
		reg.MustRegister(m.loginOutcomes, m.signupOutcomes, m.sessionResolutions)
	}
	return m
}

func (m *Metrics) observeLogin(outcome string) {
	if m == nil {
		return
	}
	m.loginOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeSignup(outcome string) {
	if m == nil {
		return
	}
	m.signupOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeResolution(src session.Source) {
	if m == nil {
		return
	}
	m.sessionResolutions.WithLabelValues(string(src)).Inc()
}
