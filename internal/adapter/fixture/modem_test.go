package fixture

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-edge/zte-mqtt-bridge/internal/domain"
)

// --- loading tests ---

func TestLoad_ReadsFixtureFile(t *testing.T) {
	modem, err := Load(filepath.Join("testdata", "modem.yaml"), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "O2", modem.fields["network_provider_fullname"])
	assert.Equal(t, "-75", modem.fields["lte_rsrp_1"])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "does-not-exist.yaml"), zerolog.Nop())
	require.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fields: [not-a-map"), 0o644))

	_, err := Load(path, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse fixture")
}

func TestLoad_EmptyFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fields: {}\n"), 0o644))

	_, err := Load(path, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fields")
}

// --- session tests ---

func TestModem_FetchRequiresLogin(t *testing.T) {
	modem, err := Load(filepath.Join("testdata", "modem.yaml"), zerolog.Nop())
	require.NoError(t, err)

	_, err = modem.FetchFields(context.Background(), []string{"lte_rsrp_1"})
	require.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestModem_FetchAfterLogin(t *testing.T) {
	modem, err := Load(filepath.Join("testdata", "modem.yaml"), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, modem.Login(context.Background()))
	assert.True(t, modem.IsAuthenticated())

	payload, err := modem.FetchFields(context.Background(), []string{"lte_rsrp_1", "Z5g_SINR"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"lte_rsrp_1": "-75", "Z5g_SINR": "17"}, payload)
}

func TestModem_FetchOmitsUnknownFields(t *testing.T) {
	modem, err := Load(filepath.Join("testdata", "modem.yaml"), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, modem.Login(context.Background()))

	payload, err := modem.FetchFields(context.Background(), []string{"lte_rsrp_1", "no_such_field"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"lte_rsrp_1": "-75"}, payload)
}

func TestModem_LogoutDropsSession(t *testing.T) {
	modem, err := Load(filepath.Join("testdata", "modem.yaml"), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, modem.Login(context.Background()))

	require.NoError(t, modem.Logout(context.Background()))
	assert.False(t, modem.IsAuthenticated())
}

func TestModem_CloseDropsSession(t *testing.T) {
	modem, err := Load(filepath.Join("testdata", "modem.yaml"), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, modem.Login(context.Background()))

	modem.Close()
	assert.False(t, modem.IsAuthenticated())

	_, err = modem.FetchFields(context.Background(), []string{"lte_rsrp_1"})
	require.ErrorIs(t, err, domain.ErrAuthentication)
}
