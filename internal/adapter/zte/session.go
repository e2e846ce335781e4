package zte

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/nexus-edge/zte-mqtt-bridge/internal/domain"
)

const (
	getCmdPath = "/goform/goform_get_cmd_process"
	setCmdPath = "/goform/goform_set_cmd_process"

	// challengeFields is the exact field list the login challenge asks for.
	challengeFields = "wa_inner_version,cr_version,RD,LD"

	defaultTimeout = 10 * time.Second

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36"
)

// Doer issues HTTP requests. *http.Client satisfies it; tests substitute
// their own.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SessionConfig holds the settings for one modem session.
type SessionConfig struct {
	// BaseURL is the normalized modem URL, scheme included.
	BaseURL string
	// Password is the admin password.
	Password string
	// Timeout bounds each HTTP exchange.
	Timeout time.Duration
}

// Session is an authenticated REST session against the modem's goform
// endpoints. It performs the challenge/digest login, attaches the session
// cookie and browser-style headers to every request, and transparently
// re-authenticates once when the modem expires the session.
type Session struct {
	config  SessionConfig
	baseURL string
	client  Doer
	logger  zerolog.Logger

	mu    sync.Mutex
	state domain.SessionState
}

// NewSession creates a modem session. A nil client gets a default HTTP
// client bound to the configured timeout.
func NewSession(config SessionConfig, client Doer, logger zerolog.Logger) *Session {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return &Session{
		config:  config,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		client:  client,
		logger:  logger.With().Str("component", "zte-session").Logger(),
	}
}

// challenge is the four-field login challenge the modem hands out.
type challenge struct {
	versionTag string
	crVersion  string
	rd         string
	ld         string
}

// Login performs the challenge/digest exchange. The hash family is chosen
// from the device version tag, once per login, and used for every digest of
// that exchange. Success is a Set-Cookie header on the login response;
// anything else clears the session.
func (s *Session) Login(ctx context.Context) error {
	ch, err := s.fetchChallenge(ctx)
	if err != nil {
		return err
	}

	hash, family := hashFamily(ch.versionTag)
	passwordDigest := hash(s.config.Password)
	loginDigest := hash(passwordDigest + ch.ld)
	versionDigest := hash(hash(ch.versionTag+ch.crVersion) + ch.rd)

	form := url.Values{
		"isTest":   {"false"},
		"goformId": {"LOGIN"},
		"password": {loginDigest},
		"AD":       {versionDigest},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+setCmdPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRequest, err)
	}
	s.applyHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	setCookie := resp.Header.Get("Set-Cookie")
	if setCookie == "" {
		s.mu.Lock()
		s.state.Clear()
		s.mu.Unlock()
		return fmt.Errorf("%w: login rejected by device", domain.ErrAuthentication)
	}

	cookie := strings.SplitN(setCookie, ";", 2)[0]
	s.mu.Lock()
	s.state = domain.SessionState{
		Cookie:            cookie,
		Authenticated:     true,
		PasswordHash:      passwordDigest,
		PlaintextPassword: s.config.Password,
	}
	s.mu.Unlock()

	s.logger.Info().Str("hash", family).Msg("Logged in to device")
	return nil
}

// fetchChallenge requests the login challenge. All four fields must be
// present; a challenge with any of them missing fails the login before the
// credential post.
func (s *Session) fetchChallenge(ctx context.Context) (challenge, error) {
	query := url.Values{
		"cmd":        {challengeFields},
		"multi_data": {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+getCmdPath+"?"+query.Encode(), nil)
	if err != nil {
		return challenge{}, fmt.Errorf("%w: %v", domain.ErrRequest, err)
	}
	s.applyHeaders(req)

	resp, err := s.do(req)
	if err != nil {
		return challenge{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return challenge{}, fmt.Errorf("%w: unexpected status code: %d", domain.ErrRequest, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return challenge{}, fmt.Errorf("%w: %v", domain.ErrRequest, err)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return challenge{}, fmt.Errorf("%w: %v", domain.ErrResponseParse, err)
	}

	fields := make(map[string]string, 4)
	for _, key := range []string{"wa_inner_version", "cr_version", "RD", "LD"} {
		value, ok := payload[key]
		if !ok || value == nil {
			return challenge{}, fmt.Errorf("%w: challenge missing %s", domain.ErrResponseParse, key)
		}
		fields[key] = fieldString(value)
	}

	return challenge{
		versionTag: fields["wa_inner_version"],
		crVersion:  fields["cr_version"],
		rd:         fields["RD"],
		ld:         fields["LD"],
	}, nil
}

// Request runs one authenticated goform query. With expectJSON the body
// decodes into a map; otherwise the raw body comes back as a string. An
// expired session retries the request once after re-authenticating with the
// cached password.
func (s *Session) Request(ctx context.Context, cmd string, expectJSON bool) (any, error) {
	if !s.IsAuthenticated() {
		return nil, fmt.Errorf("%w: login required before making requests", domain.ErrAuthentication)
	}
	return s.perform(ctx, cmd, expectJSON, true)
}

// FetchFields polls the given raw fields in one round trip.
func (s *Session) FetchFields(ctx context.Context, fields []string) (map[string]any, error) {
	result, err := s.Request(ctx, strings.Join(fields, ","), true)
	if err != nil {
		return nil, err
	}
	payload, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected object payload", domain.ErrResponseParse)
	}
	return payload, nil
}

func (s *Session) perform(ctx context.Context, cmd string, expectJSON bool, retryOnAuth bool) (any, error) {
	query := url.Values{
		"cmd":        {cmd},
		"multi_data": {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+getCmdPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRequest, err)
	}
	s.applyHeaders(req)

	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		io.Copy(io.Discard, resp.Body)
		s.mu.Lock()
		s.state.Authenticated = false
		plaintext := s.state.PlaintextPassword
		s.mu.Unlock()

		if !retryOnAuth || plaintext == "" {
			return nil, fmt.Errorf("%w: session expired (status %d)", domain.ErrAuthentication, resp.StatusCode)
		}
		s.logger.Warn().Int("status", resp.StatusCode).Msg("Session expired, re-authenticating")
		if err := s.Login(ctx); err != nil {
			return nil, err
		}
		return s.perform(ctx, cmd, expectJSON, false)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: unexpected status code: %d", domain.ErrRequest, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRequest, err)
	}

	if !expectJSON {
		return string(body), nil
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrResponseParse, err)
	}
	return payload, nil
}

// do sends the request, mapping transport failures onto the error taxonomy.
func (s *Session) do(req *http.Request) (*http.Response, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %v", domain.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrRequest, err)
	}
	return resp, nil
}

// applyHeaders attaches the browser-style header set the modem firmware
// expects. Without a session cookie an empty stok placeholder goes out.
func (s *Session) applyHeaders(req *http.Request) {
	s.mu.Lock()
	cookie := s.state.Cookie
	s.mu.Unlock()
	if cookie == "" {
		cookie = `stok=""`
	}

	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", s.baseURL+"/")
	req.Header.Set("Origin", s.baseURL)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,cs;q=0.8,sk;q=0.7")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Cookie", cookie)
}

// IsAuthenticated reports whether the session currently holds a login.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Authenticated
}

// Logout asks the modem to drop the session, then clears local state. The
// call is best effort: the modem expires cookies on its own, so a failed
// logout still ends with a clean local session.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	authenticated := s.state.Authenticated
	s.mu.Unlock()
	if !authenticated {
		return nil
	}

	form := url.Values{
		"isTest":   {"false"},
		"goformId": {"LOGOUT"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+setCmdPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRequest, err)
	}
	s.applyHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.do(req)
	if err == nil {
		resp.Body.Close()
	}

	s.mu.Lock()
	s.state.Clear()
	s.mu.Unlock()
	s.logger.Debug().Msg("Session logged out")
	return err
}

// Close drops the session state and any idle connections without telling the
// modem; use Logout first when the device should forget the cookie too.
func (s *Session) Close() {
	s.mu.Lock()
	s.state.Clear()
	s.mu.Unlock()
	if client, ok := s.client.(*http.Client); ok {
		client.CloseIdleConnections()
	}
	s.logger.Debug().Msg("Session closed")
}

// hashFamily selects the digest algorithm from the device version tag.
// MC888 and MC889 firmware expects SHA-256, everything else MD5.
func hashFamily(versionTag string) (func(string) string, string) {
	if strings.Contains(versionTag, "MC888") || strings.Contains(versionTag, "MC889") {
		return sha256Hex, "sha256"
	}
	return md5Hex, "md5"
}

func md5Hex(value string) string {
	sum := md5.Sum([]byte(value))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func sha256Hex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func fieldString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}
