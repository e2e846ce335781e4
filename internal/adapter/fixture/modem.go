package fixture

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/nexus-edge/zte-mqtt-bridge/internal/domain"
)

// Modem is a canned stand-in for the real device, backed by a YAML file of
// raw field values. It satisfies the same login and poll surface as the live
// session, so the rest of the bridge cannot tell the difference.
type Modem struct {
	path          string
	fields        map[string]string
	logger        zerolog.Logger
	authenticated atomic.Bool
}

type fixtureFile struct {
	Fields map[string]string `yaml:"fields"`
}

// Load reads a fixture file. The file must declare at least one field.
func Load(path string, logger zerolog.Logger) (*Modem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var parsed fixtureFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if len(parsed.Fields) == 0 {
		return nil, fmt.Errorf("fixture %s declares no fields", path)
	}

	return &Modem{
		path:   path,
		fields: parsed.Fields,
		logger: logger.With().Str("component", "fixture-modem").Logger(),
	}, nil
}

// Login marks the fixture session authenticated. It never fails.
func (m *Modem) Login(ctx context.Context) error {
	m.authenticated.Store(true)
	m.logger.Info().Str("path", m.path).Msg("Fixture modem session opened")
	return nil
}

// FetchFields answers a poll from the canned payload. Unknown fields are
// omitted, matching how the device leaves unknown fields out of its answer.
func (m *Modem) FetchFields(ctx context.Context, fields []string) (map[string]any, error) {
	if !m.authenticated.Load() {
		return nil, fmt.Errorf("%w: login required before making requests", domain.ErrAuthentication)
	}

	payload := make(map[string]any, len(fields))
	for _, field := range fields {
		if value, ok := m.fields[field]; ok {
			payload[field] = value
		}
	}
	return payload, nil
}

// Logout drops the fixture session. It never fails.
func (m *Modem) Logout(ctx context.Context) error {
	m.authenticated.Store(false)
	return nil
}

// IsAuthenticated reports whether Login has been called.
func (m *Modem) IsAuthenticated() bool {
	return m.authenticated.Load()
}

// Close drops the fixture session.
func (m *Modem) Close() {
	m.authenticated.Store(false)
}
