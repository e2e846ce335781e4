package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all Prometheus metrics
type Registry struct {
	requestsReceived prometheus.Counter
	requestsRejected prometheus.Counter
	emptyResults     prometheus.Counter
	published        prometheus.Counter
	publishErrors    prometheus.Counter
	deviceRequests   prometheus.Counter
	deviceErrors     prometheus.Counter
	loginAttempts    prometheus.Counter
	loginFailures    prometheus.Counter
	reconnects       prometheus.Counter
	brokerConnected  prometheus.Gauge
	failureStreak    prometheus.Gauge
	deviceDuration   prometheus.Histogram
}

// NewRegistry creates a new metrics registry
func NewRegistry() *Registry {
	return &Registry{
		requestsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "zte_bridge_requests_received_total",
			Help: "Total number of valid metric requests received over MQTT",
		}),
		requestsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "zte_bridge_requests_rejected_total",
			Help: "Total number of requests rejected as malformed or unknown",
		}),
		emptyResults: promauto.NewCounter(prometheus.CounterOpts{
			Name: "zte_bridge_empty_results_total",
			Help: "Total number of publishes suppressed because the result was empty",
		}),
		published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "zte_bridge_published_total",
			Help: "Total number of metric responses published",
		}),
		publishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "zte_bridge_publish_errors_total",
			Help: "Total number of failed broker publishes",
		}),
		deviceRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "zte_bridge_device_requests_total",
			Help: "Total number of HTTP polls sent to the modem",
		}),
		deviceErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "zte_bridge_device_errors_total",
			Help: "Total number of failed modem polls",
		}),
		loginAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "zte_bridge_login_attempts_total",
			Help: "Total number of modem login attempts",
		}),
		loginFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "zte_bridge_login_failures_total",
			Help: "Total number of failed modem logins",
		}),
		reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "zte_bridge_broker_reconnects_total",
			Help: "Total number of broker reconnect cycles",
		}),
		brokerConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "zte_bridge_broker_connected",
			Help: "Whether the bridge is connected to the broker (0 or 1)",
		}),
		failureStreak: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "zte_bridge_failure_streak",
			Help: "Consecutive failures since the last successful publish",
		}),
		deviceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "zte_bridge_device_request_duration_seconds",
			Help:    "Duration of modem HTTP polls",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),
	}
}

// IncRequestsReceived increments the requests received counter
func (r *Registry) IncRequestsReceived() {
	r.requestsReceived.Inc()
}

// IncRequestsRejected increments the rejected requests counter
func (r *Registry) IncRequestsRejected() {
	r.requestsRejected.Inc()
}

// IncEmptyResults increments the suppressed empty result counter
func (r *Registry) IncEmptyResults() {
	r.emptyResults.Inc()
}

// IncPublished increments the published responses counter
func (r *Registry) IncPublished() {
	r.published.Inc()
}

// IncPublishErrors increments the publish errors counter
func (r *Registry) IncPublishErrors() {
	r.publishErrors.Inc()
}

// IncDeviceRequests increments the modem poll counter
func (r *Registry) IncDeviceRequests() {
	r.deviceRequests.Inc()
}

// IncDeviceErrors increments the modem poll error counter
func (r *Registry) IncDeviceErrors() {
	r.deviceErrors.Inc()
}

// IncLoginAttempts increments the login attempt counter
func (r *Registry) IncLoginAttempts() {
	r.loginAttempts.Inc()
}

// IncLoginFailures increments the login failure counter
func (r *Registry) IncLoginFailures() {
	r.loginFailures.Inc()
}

// IncReconnects increments the broker reconnect counter
func (r *Registry) IncReconnects() {
	r.reconnects.Inc()
}

// SetBrokerConnected sets the broker connectivity gauge
func (r *Registry) SetBrokerConnected(connected bool) {
	if connected {
		r.brokerConnected.Set(1)
		return
	}
	r.brokerConnected.Set(0)
}

// SetFailureStreak sets the consecutive failure gauge
func (r *Registry) SetFailureStreak(failures int) {
	r.failureStreak.Set(float64(failures))
}

// ObserveDeviceRequestDuration records one modem poll duration
func (r *Registry) ObserveDeviceRequestDuration(seconds float64) {
	r.deviceDuration.Observe(seconds)
}
