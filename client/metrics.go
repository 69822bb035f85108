package client

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts engine activity per service. Optional; services
// without metrics configured record nothing.
type Metrics struct {
	requestsBuilt   *prometheus.CounterVec
	responsesParsed *prometheus.CounterVec
	verifyFailures  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on the given
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsBuilt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oidc_client_requests_built_total",
			Help: "Number of protocol requests constructed and serialized.",
		}, []string{"service"}),
		responsesParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oidc_client_responses_parsed_total",
			Help: "Number of responses decoded and verified successfully.",
		}, []string{"service"}),
		verifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oidc_client_verify_failures_total",
			Help: "Number of responses that failed verification.",
		}, []string{"service"}),
	}

	reg.MustRegister(m.requestsBuilt, m.responsesParsed, m.verifyFailures)
	return m
}
