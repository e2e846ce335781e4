package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/nexus-edge/zte-mqtt-bridge/internal/domain"
	"github.com/nexus-edge/zte-mqtt-bridge/internal/metrics"
)

// DeviceConn is the poll surface the aggregator needs from a modem session.
type DeviceConn interface {
	FetchFields(ctx context.Context, fields []string) (map[string]any, error)
}

// AggregatorConfig tunes the circuit breaker guarding the modem connection.
type AggregatorConfig struct {
	BreakerName      string
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
}

// Aggregator resolves metric requests against one modem session. Every public
// call costs exactly one device round trip; grouped and full snapshots slice
// the same poll result, so no request authenticates or polls twice.
type Aggregator struct {
	device  DeviceConn
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
	metrics *metrics.Registry
}

// NewAggregator creates an aggregator around a modem session.
func NewAggregator(cfg AggregatorConfig, device DeviceConn, logger zerolog.Logger, registry *metrics.Registry) *Aggregator {
	if cfg.BreakerName == "" {
		cfg.BreakerName = "zte-modem"
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	componentLogger := logger.With().Str("component", "aggregator").Logger()
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.BreakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			componentLogger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Device circuit breaker state changed")
		},
	})

	return &Aggregator{
		device:  device,
		breaker: breaker,
		logger:  componentLogger,
		metrics: registry,
	}
}

// Fetch resolves a single metric identifier to its coerced value. Unknown
// identifiers return ErrUnknownMetric; identifiers the device did not answer
// return ErrMetricUnavailable. The neighbor list is the one structured metric
// and decodes into cells instead of a scalar.
func (a *Aggregator) Fetch(ctx context.Context, metric string) (any, error) {
	id := strings.ToLower(strings.TrimSpace(metric))
	field, ok := domain.FieldForMetric(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownMetric, metric)
	}

	payload, err := a.loadPayload(ctx)
	if err != nil {
		return nil, err
	}

	raw, ok := payload[field]
	if !ok || raw == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrMetricUnavailable, id)
	}
	if field == domain.NeighborField {
		return domain.ParseNeighborCells(raw), nil
	}
	return domain.CoerceValue(raw), nil
}

// CollectGroup resolves a metric group ("lte", "nr5g" or "temp") to a map
// keyed by the short member names. Members the device did not answer are
// logged and skipped.
func (a *Aggregator) CollectGroup(ctx context.Context, group string) (map[string]any, error) {
	name := strings.ToLower(strings.TrimSpace(group))
	keys, ok := groupMembers(name)
	if !ok {
		return nil, fmt.Errorf("%w: group %s", domain.ErrUnknownMetric, group)
	}

	payload, err := a.loadPayload(ctx)
	if err != nil {
		return nil, err
	}
	return a.sliceGroup(payload, name, keys, true), nil
}

// CollectAll resolves the full device snapshot: the five top-level metrics
// plus the three groups nested under their names. Top-level keys are always
// present and nil when the device did not answer them; group members the
// device did not answer are left out.
func (a *Aggregator) CollectAll(ctx context.Context) (map[string]any, error) {
	payload, err := a.loadPayload(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := make(map[string]any, len(domain.SingleMetrics)+3)
	for _, id := range domain.SingleMetrics {
		field, _ := domain.FieldForMetric(id)
		raw, ok := payload[field]
		if !ok || raw == nil {
			snapshot[id] = nil
			continue
		}
		snapshot[id] = domain.CoerceValue(raw)
	}
	snapshot["lte"] = a.sliceGroup(payload, "lte", domain.LTEMetrics, false)
	snapshot["nr5g"] = a.sliceGroup(payload, "nr5g", domain.NR5GMetrics, false)
	snapshot["temp"] = a.sliceGroup(payload, "temp", domain.TempMetrics, false)
	return snapshot, nil
}

// loadPayload performs the one device round trip behind every public call.
// The circuit breaker opens after consecutive poll failures so a dead modem
// fails requests fast instead of stacking up timeouts.
func (a *Aggregator) loadPayload(ctx context.Context) (map[string]any, error) {
	result, err := a.breaker.Execute(func() (interface{}, error) {
		a.metrics.IncDeviceRequests()
		start := time.Now()
		payload, err := a.device.FetchFields(ctx, domain.QueryFields())
		a.metrics.ObserveDeviceRequestDuration(time.Since(start).Seconds())
		if err != nil {
			a.metrics.IncDeviceErrors()
		}
		return payload, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: device circuit open", domain.ErrRequest)
		}
		return nil, err
	}

	payload, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected payload shape", domain.ErrResponseParse)
	}
	return payload, nil
}

// sliceGroup picks one group's members out of a poll payload. warn controls
// whether skipped members are logged, which the standalone group collectors
// want and the full snapshot does not.
func (a *Aggregator) sliceGroup(payload map[string]any, group string, keys []string, warn bool) map[string]any {
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		id := group + "." + key
		field, ok := domain.FieldForMetric(id)
		if !ok {
			continue
		}
		raw, ok := payload[field]
		if !ok || raw == nil {
			if warn {
				a.logger.Warn().Str("metric", id).Msg("Metric missing from device payload")
			}
			continue
		}
		out[key] = domain.CoerceValue(raw)
	}
	return out
}

func groupMembers(group string) ([]string, bool) {
	switch group {
	case "lte":
		return domain.LTEMetrics, true
	case "nr5g":
		return domain.NR5GMetrics, true
	case "temp":
		return domain.TempMetrics, true
	default:
		return nil, false
	}
}
