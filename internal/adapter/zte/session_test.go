package zte

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-edge/zte-mqtt-bridge/internal/domain"
)

// fakeModem emulates the goform endpoints: it hands out a challenge,
// verifies login digests recomputed server-side, and answers field polls for
// authenticated cookies only.
type fakeModem struct {
	t *testing.T

	versionTag string
	crVersion  string
	rd         string
	ld         string
	password   string
	cookie     string

	omitChallengeField string
	rejectLogin        bool
	dataStatus         int32 // forced status for data requests, 0 = none
	expireOnce         int32 // answer 401 to the next data request

	challengeCalls int32
	loginCalls     int32
	logoutCalls    int32
	dataCalls      int32

	fields map[string]string
}

func newFakeModem(t *testing.T) *fakeModem {
	return &fakeModem{
		t:          t,
		versionTag: "RM520NGLAAR03A01M4G",
		crVersion:  "CR_LVWRC2B1MC889V1.0.0B04",
		rd:         "b2f50c1db3b57b66",
		ld:         "D703A1C3FE6C4EDD",
		password:   "secret",
		cookie:     "fa1e92b4c05f",
		fields: map[string]string{
			"network_provider_fullname": "O2",
			"wan_ipaddr":                "10.20.30.40",
			"lte_rsrp_1":                "-80",
		},
	}
}

func (m *fakeModem) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(getCmdPath, m.handleGet)
	mux.HandleFunc(setCmdPath, m.handleSet)
	return mux
}

func (m *fakeModem) handleGet(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("cmd") == challengeFields {
		calls := atomic.AddInt32(&m.challengeCalls, 1)
		// Contract: the challenge asks for exactly these two parameters.
		assert.Equal(m.t, url.Values{
			"cmd":        {"wa_inner_version,cr_version,RD,LD"},
			"multi_data": {"1"},
		}, query)
		assert.Equal(m.t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		assert.NotEmpty(m.t, r.Header.Get("User-Agent"))
		if calls == 1 {
			// Before any login the placeholder cookie goes out.
			assert.Equal(m.t, `stok=""`, r.Header.Get("Cookie"))
		}

		payload := map[string]string{
			"wa_inner_version": m.versionTag,
			"cr_version":       m.crVersion,
			"RD":               m.rd,
			"LD":               m.ld,
		}
		delete(payload, m.omitChallengeField)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload)
		return
	}

	atomic.AddInt32(&m.dataCalls, 1)
	if atomic.CompareAndSwapInt32(&m.expireOnce, 1, 0) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if status := atomic.LoadInt32(&m.dataStatus); status != 0 {
		w.WriteHeader(int(status))
		return
	}
	if r.Header.Get("Cookie") != "stok="+m.cookie {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	response := map[string]string{}
	for _, field := range strings.Split(query.Get("cmd"), ",") {
		if value, ok := m.fields[field]; ok {
			response[field] = value
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (m *fakeModem) handleSet(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		m.t.Errorf("parse form: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	assert.Equal(m.t, "false", r.PostForm.Get("isTest"))

	if r.PostForm.Get("goformId") == "LOGOUT" {
		atomic.AddInt32(&m.logoutCalls, 1)
		assert.Equal(m.t, "stok="+m.cookie, r.Header.Get("Cookie"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"result": "success"})
		return
	}

	atomic.AddInt32(&m.loginCalls, 1)
	assert.Equal(m.t, "LOGIN", r.PostForm.Get("goformId"))

	hash, _ := hashFamily(m.versionTag)
	wantPassword := hash(hash(m.password) + m.ld)
	wantAD := hash(hash(m.versionTag+m.crVersion) + m.rd)

	granted := !m.rejectLogin &&
		r.PostForm.Get("password") == wantPassword &&
		r.PostForm.Get("AD") == wantAD
	if granted {
		w.Header().Set("Set-Cookie", "stok="+m.cookie+"; path=/")
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"result": "0"})
}

func newTestSession(t *testing.T, modem *fakeModem) (*Session, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(modem.handler())
	t.Cleanup(server.Close)
	session := NewSession(SessionConfig{
		BaseURL:  server.URL,
		Password: modem.password,
	}, server.Client(), zerolog.Nop())
	return session, server
}

// --- login tests ---

func TestLogin_MD5Family(t *testing.T) {
	modem := newFakeModem(t)
	session, _ := newTestSession(t, modem)

	require.NoError(t, session.Login(context.Background()))
	assert.True(t, session.IsAuthenticated())
	assert.EqualValues(t, 1, atomic.LoadInt32(&modem.loginCalls))
}

func TestLogin_SHA256FamilyForMC888(t *testing.T) {
	modem := newFakeModem(t)
	modem.versionTag = "MC888_CZ_V1.0"
	session, _ := newTestSession(t, modem)

	// The fake recomputes digests with the family implied by the version
	// tag, so a successful login proves the client picked SHA-256 for both
	// the password digest and AD.
	require.NoError(t, session.Login(context.Background()))
	assert.True(t, session.IsAuthenticated())
}

func TestLogin_SHA256FamilyForMC889(t *testing.T) {
	modem := newFakeModem(t)
	modem.versionTag = "MC889AFM_V2"
	session, _ := newTestSession(t, modem)

	require.NoError(t, session.Login(context.Background()))
	assert.True(t, session.IsAuthenticated())
}

func TestLogin_MissingChallengeFieldSkipsPost(t *testing.T) {
	modem := newFakeModem(t)
	modem.omitChallengeField = "RD"
	session, _ := newTestSession(t, modem)

	err := session.Login(context.Background())
	assert.ErrorIs(t, err, domain.ErrResponseParse)
	assert.False(t, session.IsAuthenticated())
	assert.EqualValues(t, 0, atomic.LoadInt32(&modem.loginCalls))
}

func TestLogin_RejectedWithoutCookie(t *testing.T) {
	modem := newFakeModem(t)
	modem.rejectLogin = true
	session, _ := newTestSession(t, modem)

	err := session.Login(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthentication)
	assert.False(t, session.IsAuthenticated())
}

func TestLogin_WrongPassword(t *testing.T) {
	modem := newFakeModem(t)
	session, _ := newTestSession(t, modem)
	session.config.Password = "wrong"

	err := session.Login(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthentication)
	assert.False(t, session.IsAuthenticated())
}

// --- request tests ---

func TestRequest_RequiresLogin(t *testing.T) {
	modem := newFakeModem(t)
	session, _ := newTestSession(t, modem)

	_, err := session.Request(context.Background(), "wan_ipaddr", true)
	assert.ErrorIs(t, err, domain.ErrAuthentication)
	assert.EqualValues(t, 0, atomic.LoadInt32(&modem.dataCalls))
}

func TestRequest_FetchesJSON(t *testing.T) {
	modem := newFakeModem(t)
	session, _ := newTestSession(t, modem)
	require.NoError(t, session.Login(context.Background()))

	result, err := session.Request(context.Background(), "wan_ipaddr", true)
	require.NoError(t, err)
	payload, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "10.20.30.40", payload["wan_ipaddr"])
}

func TestRequest_PlainTextPassthrough(t *testing.T) {
	modem := newFakeModem(t)
	session, _ := newTestSession(t, modem)
	require.NoError(t, session.Login(context.Background()))

	result, err := session.Request(context.Background(), "wan_ipaddr", false)
	require.NoError(t, err)
	_, ok := result.(string)
	assert.True(t, ok)
}

func TestRequest_ReauthenticatesOnceOnExpiry(t *testing.T) {
	modem := newFakeModem(t)
	session, _ := newTestSession(t, modem)
	require.NoError(t, session.Login(context.Background()))
	atomic.StoreInt32(&modem.expireOnce, 1)

	result, err := session.Request(context.Background(), "wan_ipaddr", true)
	require.NoError(t, err)
	payload := result.(map[string]any)
	assert.Equal(t, "10.20.30.40", payload["wan_ipaddr"])
	assert.EqualValues(t, 2, atomic.LoadInt32(&modem.loginCalls), "one re-login")
	assert.EqualValues(t, 2, atomic.LoadInt32(&modem.dataCalls), "one retry")
}

func TestRequest_AuthRetryIsBounded(t *testing.T) {
	modem := newFakeModem(t)
	session, _ := newTestSession(t, modem)
	require.NoError(t, session.Login(context.Background()))
	atomic.StoreInt32(&modem.dataStatus, http.StatusUnauthorized)

	_, err := session.Request(context.Background(), "wan_ipaddr", true)
	assert.ErrorIs(t, err, domain.ErrAuthentication)
	assert.EqualValues(t, 2, atomic.LoadInt32(&modem.loginCalls), "exactly one re-login attempt")
	assert.EqualValues(t, 2, atomic.LoadInt32(&modem.dataCalls), "no retry storm")
}

func TestRequest_UnexpectedStatus(t *testing.T) {
	modem := newFakeModem(t)
	session, _ := newTestSession(t, modem)
	require.NoError(t, session.Login(context.Background()))
	atomic.StoreInt32(&modem.dataStatus, http.StatusBadGateway)

	_, err := session.Request(context.Background(), "wan_ipaddr", true)
	assert.ErrorIs(t, err, domain.ErrRequest)
	assert.Contains(t, err.Error(), "unexpected status code: 502")
}

func TestRequest_UndecodableJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cmd") == challengeFields {
			json.NewEncoder(w).Encode(map[string]string{
				"wa_inner_version": "X", "cr_version": "Y", "RD": "r", "LD": "l",
			})
			return
		}
		if r.Method == http.MethodPost {
			w.Header().Set("Set-Cookie", "stok=abc; path=/")
			w.Write([]byte("{}"))
			return
		}
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	session := NewSession(SessionConfig{BaseURL: server.URL, Password: "x"}, server.Client(), zerolog.Nop())
	require.NoError(t, session.Login(context.Background()))

	_, err := session.Request(context.Background(), "wan_ipaddr", true)
	assert.ErrorIs(t, err, domain.ErrResponseParse)
}

func TestRequest_Timeout(t *testing.T) {
	modem := newFakeModem(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cmd") == challengeFields || r.Method == http.MethodPost {
			modem.handler().ServeHTTP(w, r)
			return
		}
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	client := &http.Client{Timeout: 50 * time.Millisecond}
	session := NewSession(SessionConfig{BaseURL: server.URL, Password: modem.password}, client, zerolog.Nop())
	require.NoError(t, session.Login(context.Background()))

	_, err := session.Request(context.Background(), "wan_ipaddr", true)
	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func TestFetchFields_JoinsAndDecodes(t *testing.T) {
	modem := newFakeModem(t)
	session, _ := newTestSession(t, modem)
	require.NoError(t, session.Login(context.Background()))

	payload, err := session.FetchFields(context.Background(), []string{"wan_ipaddr", "lte_rsrp_1", "unknown_field"})
	require.NoError(t, err)
	assert.Equal(t, "10.20.30.40", payload["wan_ipaddr"])
	assert.Equal(t, "-80", payload["lte_rsrp_1"])
	_, present := payload["unknown_field"]
	assert.False(t, present)
}

func TestClose_DropsSession(t *testing.T) {
	modem := newFakeModem(t)
	session, _ := newTestSession(t, modem)
	require.NoError(t, session.Login(context.Background()))

	session.Close()
	assert.False(t, session.IsAuthenticated())

	_, err := session.Request(context.Background(), "wan_ipaddr", true)
	assert.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestLogout_TellsDeviceAndClearsState(t *testing.T) {
	modem := newFakeModem(t)
	session, _ := newTestSession(t, modem)
	require.NoError(t, session.Login(context.Background()))

	require.NoError(t, session.Logout(context.Background()))
	assert.False(t, session.IsAuthenticated())
	assert.Equal(t, int32(1), atomic.LoadInt32(&modem.logoutCalls))

	// A second logout has no session to drop and stays local.
	require.NoError(t, session.Logout(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&modem.logoutCalls))
}

func TestLogout_ClearsStateWhenDeviceUnreachable(t *testing.T) {
	modem := newFakeModem(t)
	session, server := newTestSession(t, modem)
	require.NoError(t, session.Login(context.Background()))

	server.Close()
	err := session.Logout(context.Background())
	require.Error(t, err)
	assert.False(t, session.IsAuthenticated())
}

// --- digest helpers ---

func TestDigestHelpers_UppercaseHex(t *testing.T) {
	assert.Equal(t, "5EBE2294ECD0E0F08EAB7690D2A6EE69", md5Hex("secret"))
	assert.Equal(t,
		"2BB80D537B1DA3E38BD30361AA855686BDE0EACD7162FEF6A25FE97BF527A25B",
		sha256Hex("secret"))
}

func TestHashFamily_Selection(t *testing.T) {
	_, family := hashFamily("MC888B_v1")
	assert.Equal(t, "sha256", family)
	_, family = hashFamily("MC889_CZ")
	assert.Equal(t, "sha256", family)
	_, family = hashFamily("MC801A")
	assert.Equal(t, "md5", family)
}
