package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/nexus-edge/zte-mqtt-bridge/internal/domain"
	"github.com/nexus-edge/zte-mqtt-bridge/internal/metrics"
)

// DeviceSession is the lifecycle surface of one modem session.
type DeviceSession interface {
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Close()
}

// BrokerConn is the broker lifecycle surface the supervisor drives.
type BrokerConn interface {
	Connect(ctx context.Context) error
	Subscribe(filter string) error
	Disconnect()
	Disconnected() <-chan struct{}
}

// ConnState is the supervisor's position in the connection lifecycle.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// SupervisorConfig tunes the supervision loop.
type SupervisorConfig struct {
	RootTopic         string
	ReconnectInterval time.Duration
}

// Supervisor owns the bridge lifecycle: it logs into the modem, connects and
// subscribes the broker client, then waits for the connection to drop or the
// context to end. Lost connections restart the whole cycle after a pause, so
// a flapping broker or modem never kills the process.
type Supervisor struct {
	cfg       SupervisorConfig
	filter    string
	session   DeviceSession
	broker    BrokerConn
	runState  *domain.RunState
	logger    zerolog.Logger
	metrics   *metrics.Registry
	connState atomic.Int32
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewSupervisor creates a supervisor for one device/broker pair.
func NewSupervisor(cfg SupervisorConfig, session DeviceSession, broker BrokerConn, runState *domain.RunState, logger zerolog.Logger, registry *metrics.Registry) (*Supervisor, error) {
	root, err := domain.NormalizeTopic(cfg.RootTopic)
	if err != nil {
		return nil, fmt.Errorf("root topic: %w", err)
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 5 * time.Second
	}

	return &Supervisor{
		cfg:      cfg,
		filter:   root + "/#",
		session:  session,
		broker:   broker,
		runState: runState,
		logger:   logger.With().Str("component", "supervisor").Logger(),
		metrics:  registry,
		cancel:   func() {},
		done:     make(chan struct{}),
	}, nil
}

// Start launches the supervision loop in its own goroutine.
func (s *Supervisor) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go func() {
		defer close(s.done)
		s.run(runCtx)
	}()
}

// Stop halts the loop and waits for teardown to finish or ctx to expire.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("supervisor shutdown timed out: %w", ctx.Err())
	}
}

// State reports the current connection lifecycle state.
func (s *Supervisor) State() ConnState {
	return ConnState(s.connState.Load())
}

func (s *Supervisor) run(ctx context.Context) {
	defer s.cleanup()

	for {
		err := s.cycle(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Error().Err(err).Msg("Bridge cycle failed")
			s.runState.RecordFailure()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.ReconnectInterval):
		}
		s.metrics.IncReconnects()
		s.logger.Info().Dur("interval", s.cfg.ReconnectInterval).Msg("Restarting bridge cycle")
	}
}

// cycle runs one connect-serve-disconnect pass. Panics are contained here so
// a bug in one cycle degrades into a reconnect instead of a crash.
func (s *Supervisor) cycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bridge cycle panicked: %v", r)
		}
	}()

	s.setState(StateConnecting)

	// The modem session comes first: a bridge that cannot reach the device
	// has nothing to say on the broker.
	s.metrics.IncLoginAttempts()
	if err := s.session.Login(ctx); err != nil {
		s.metrics.IncLoginFailures()
		return fmt.Errorf("device login: %w", err)
	}
	s.logger.Info().Msg("Device session established")

	if err := s.broker.Connect(ctx); err != nil {
		return fmt.Errorf("broker connect: %w", err)
	}
	if err := s.broker.Subscribe(s.filter); err != nil {
		s.teardownCycle()
		return fmt.Errorf("broker subscribe: %w", err)
	}

	s.setState(StateConnected)
	s.runState.MarkConnected()
	s.metrics.SetBrokerConnected(true)
	s.logger.Info().Str("filter", s.filter).Msg("Bridge online")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.broker.Disconnected():
		s.logger.Warn().Msg("Broker connection lost")
		s.teardownCycle()
		return nil
	}
}

// teardownCycle closes the broker side of one cycle, leaving the session
// alive for the next login.
func (s *Supervisor) teardownCycle() {
	s.setState(StateDisconnecting)
	s.broker.Disconnect()
	s.runState.MarkDisconnected()
	s.metrics.SetBrokerConnected(false)
	s.setState(StateDisconnected)
}

// cleanup is the final teardown when the loop exits for good. The modem is
// asked to drop the session cookie, but a modem that no longer answers must
// not block shutdown.
func (s *Supervisor) cleanup() {
	s.setState(StateDisconnecting)
	s.broker.Disconnect()

	logoutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.session.Logout(logoutCtx); err != nil {
		s.logger.Debug().Err(err).Msg("Best-effort logout failed")
	}
	s.session.Close()
	s.runState.MarkDisconnected()
	s.metrics.SetBrokerConnected(false)
	s.setState(StateDisconnected)
	s.logger.Info().Msg("Bridge stopped")
}

func (s *Supervisor) setState(state ConnState) {
	s.connState.Store(int32(state))
}
