package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexus-edge/zte-mqtt-bridge/internal/domain"
)

// BrokerStatus reports broker connectivity.
type BrokerStatus interface {
	IsConnected() bool
}

// DeviceStatus reports modem session state.
type DeviceStatus interface {
	IsAuthenticated() bool
}

// Checker provides health check endpoints
type Checker struct {
	broker BrokerStatus
	device DeviceStatus
	state  *domain.RunState
	logger zerolog.Logger
}

// NewChecker creates a new health checker
func NewChecker(broker BrokerStatus, device DeviceStatus, state *domain.RunState, logger zerolog.Logger) *Checker {
	return &Checker{
		broker: broker,
		device: device,
		state:  state,
		logger: logger.With().Str("component", "health-checker").Logger(),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// HealthHandler returns the overall health status
func (c *Checker) HealthHandler(w http.ResponseWriter, r *http.Request) {
	brokerStatus := "healthy"
	if !c.broker.IsConnected() {
		brokerStatus = "unhealthy"
	}

	deviceStatus := "healthy"
	if !c.device.IsAuthenticated() {
		deviceStatus = "unhealthy"
	}

	overallStatus := "healthy"
	if brokerStatus != "healthy" || deviceStatus != "healthy" {
		overallStatus = "degraded"
	}

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Components: map[string]string{
			"broker": brokerStatus,
			"device": deviceStatus,
		},
	}

	w.Header().Set("Content-Type", "application/json")

	if overallStatus != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(response)
}

// LiveHandler returns 200 if the process is running
func (c *Checker) LiveHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadyHandler returns 200 if the bridge is ready to answer requests
func (c *Checker) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	brokerReady := c.broker.IsConnected()
	deviceReady := c.device.IsAuthenticated()

	ready := brokerReady && deviceReady

	w.Header().Set("Content-Type", "application/json")

	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "not_ready",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"broker":    brokerReady,
			"device":    deviceReady,
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "ready",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// StatusHandler reports the live run state: connectivity, the last request
// seen, the last publish and the current failure streak.
func (c *Checker) StatusHandler(w http.ResponseWriter, r *http.Request) {
	snap := c.state.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(snap)
}
