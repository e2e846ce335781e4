package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexus-edge/zte-mqtt-bridge/internal/domain"
	"github.com/nexus-edge/zte-mqtt-bridge/internal/metrics"
)

// MetricReader resolves metric requests. The aggregator implements it against
// the live modem, the fixture modem against a canned payload.
type MetricReader interface {
	Fetch(ctx context.Context, metric string) (any, error)
	CollectGroup(ctx context.Context, group string) (map[string]any, error)
	CollectAll(ctx context.Context) (map[string]any, error)
}

// Publisher sends one response envelope to the broker.
type Publisher interface {
	Publish(ctx context.Context, envelope domain.PublishEnvelope) error
}

// DispatcherConfig binds the dispatcher to one root topic namespace.
type DispatcherConfig struct {
	RootTopic string
}

// Dispatcher turns inbound request topics into published metric responses.
// One message walks received -> parsed -> resolved -> published, or drops out
// as ignored or failed along the way. No error escapes HandleMessage; the
// transport's receive loop must survive anything a request does.
type Dispatcher struct {
	root      string
	rootGroup string
	reader    MetricReader
	publisher Publisher
	state     *domain.RunState
	logger    zerolog.Logger
	metrics   *metrics.Registry
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewDispatcher creates a dispatcher for the configured root topic.
func NewDispatcher(cfg DispatcherConfig, reader MetricReader, publisher Publisher, state *domain.RunState, logger zerolog.Logger, registry *metrics.Registry) (*Dispatcher, error) {
	root, err := domain.NormalizeTopic(cfg.RootTopic)
	if err != nil {
		return nil, fmt.Errorf("root topic: %w", err)
	}
	rootGroup, err := domain.RootGroup(root)
	if err != nil {
		return nil, fmt.Errorf("root topic: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		root:      root,
		rootGroup: rootGroup,
		reader:    reader,
		publisher: publisher,
		state:     state,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
		metrics:   registry,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// HandleMessage processes one inbound broker message. Topics outside the root
// namespace are ignored quietly; malformed request topics count as failures
// without counting as requests.
func (d *Dispatcher) HandleMessage(topic string, payload []byte, receivedAt time.Time) {
	request, err := domain.ParseRequestTopicForRoot(topic, d.root)
	if err != nil {
		if errors.Is(err, domain.ErrTopicForeignRoot) {
			d.logger.Debug().Str("topic", topic).Str("root", d.root).Msg("Ignoring message outside root topic")
			return
		}
		d.logger.Warn().Err(err).Str("topic", topic).Msg("Rejected malformed request topic")
		d.recordFailure()
		d.metrics.IncRequestsRejected()
		return
	}

	// The request counts as seen before resolution so failed lookups still
	// show up in the daemon state.
	d.state.RecordRequest(request.Topic)
	d.metrics.IncRequestsReceived()

	responseTopic, err := domain.BuildResponseTopic(d.root, request.Metric)
	if err != nil {
		d.logger.Warn().Err(err).Str("metric", request.Metric).Msg("Rejected unmappable metric path")
		d.recordFailure()
		d.metrics.IncRequestsRejected()
		return
	}

	value, err := d.resolve(request)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownMetric) || errors.Is(err, domain.ErrMetricUnavailable) {
			d.logger.Warn().Err(err).Str("metric", request.Metric).Msg("Requested metric unavailable")
			d.recordFailure()
			d.metrics.IncRequestsRejected()
			return
		}
		d.logger.Error().Err(err).Str("metric", request.Metric).Msg("Device interaction failed")
		d.recordFailure()
		return
	}

	// Whitespace strings and all-empty containers must not masquerade as
	// readings. Logged at error level so device-side gaps stay visible.
	if domain.IsEmptyValue(value) {
		d.logger.Error().Err(domain.ErrEmptyResult).Str("metric", request.Metric).Str("topic", request.Topic).Msg("Resolved value is empty, suppressing publish")
		d.recordFailure()
		d.metrics.IncEmptyResults()
		return
	}

	encoded, err := domain.EncodePayload(value)
	if err != nil {
		d.logger.Error().Err(err).Str("metric", request.Metric).Msg("Failed to encode response payload")
		d.recordFailure()
		return
	}
	envelope, err := domain.NewEnvelope(responseTopic, encoded, 0, false)
	if err != nil {
		d.logger.Error().Err(err).Str("topic", responseTopic).Msg("Failed to build publish envelope")
		d.recordFailure()
		return
	}

	if err := d.publisher.Publish(d.ctx, envelope); err != nil {
		d.logger.Error().Err(err).Str("topic", envelope.Topic).Msg("Failed to publish metric response")
		d.recordFailure()
		d.metrics.IncPublishErrors()
		return
	}

	d.state.RecordPublish()
	d.metrics.IncPublished()
	d.metrics.SetFailureStreak(0)
	d.logger.Info().
		Str("topic", envelope.Topic).
		Str("metric", request.Metric).
		Bool("aggregate", request.IsAggregate).
		Int("bytes", len(envelope.Payload)).
		Dur("elapsed", time.Since(receivedAt)).
		Msg("Published metric response")
}

// Stop cancels the dispatcher context, aborting any in-flight device polls.
func (d *Dispatcher) Stop() {
	d.cancel()
}

func (d *Dispatcher) resolve(request domain.MetricRequest) (any, error) {
	if !request.IsAggregate {
		return d.reader.Fetch(d.ctx, request.Metric)
	}
	if request.Metric == d.rootGroup {
		return d.reader.CollectAll(d.ctx)
	}
	return d.reader.CollectGroup(d.ctx, request.Metric)
}

func (d *Dispatcher) recordFailure() {
	d.state.RecordFailure()
	d.metrics.SetFailureStreak(d.state.Snapshot().Failures)
}
