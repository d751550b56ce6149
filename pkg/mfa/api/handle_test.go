package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-mfa/pkg/mfa"
)

const testSecret = "test-secret"

type recordingSender struct {
	mutex    sync.Mutex
	messages []string
}

func (s *recordingSender) SendCode(ctx context.Context, destination, message string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.messages = append(s.messages, message)
	return nil
}

func (s *recordingSender) lastMessage() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if len(s.messages) == 0 {
		return ""
	}
	return s.messages[len(s.messages)-1]
}

func newTestServer(t *testing.T) (*httptest.Server, *recordingSender) {
	t.Helper()

	settingsService := mfa.NewSettingsService(mfa.NewInMemorySettingsStore())
	err := settingsService.SaveSystemSettings(context.Background(), mfa.Settings{
		Providers: []mfa.ProviderConfig{
			{ProviderType: mfa.ProviderTypeTOTP, Enabled: true, Issuer: "test"},
			{ProviderType: mfa.ProviderTypeSMS, Enabled: true, MessageTemplate: "${code}"},
		},
		MaxVerificationFailures: 3,
	})
	require.NoError(t, err)

	sender := &recordingSender{}
	mfaService := mfa.NewMfaService(
		settingsService,
		mfa.NewInMemoryAccountConfigStore(),
		mfa.NewInMemoryVerificationLedger(),
		[]mfa.Provider{mfa.NewTotpProvider(), mfa.NewSmsProvider(sender)},
	)

	handle := NewHandle(mfaService, settingsService, NewHmacJwtService(testSecret))
	server := httptest.NewServer(handle.Routes())
	t.Cleanup(server.Close)

	return server, sender
}

func signToken(t *testing.T, tenantID, userID uuid.UUID, roles ...string) string {
	t.Helper()

	roleClaims := make([]interface{}, 0, len(roles))
	for _, role := range roles {
		roleClaims = append(roleClaims, role)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"custom_claims": map[string]interface{}{
			"tenant_id": tenantID.String(),
			"user_id":   userID.String(),
			"roles":     roleClaims,
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandleUnauthorized(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doRequest(t, http.MethodGet, server.URL+"/account/config", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	badToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{}).SignedString([]byte("wrong-secret"))
	require.NoError(t, err)
	resp = doRequest(t, http.MethodGet, server.URL+"/account/config", badToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleEnrollmentFlow(t *testing.T) {
	server, sender := newTestServer(t)
	token := signToken(t, uuid.New(), uuid.New())

	// Nothing enrolled yet
	resp := doRequest(t, http.MethodGet, server.URL+"/account/config", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Submit an SMS draft; the code is delivered out-of-band
	draft := mfa.AccountConfig{ProviderType: mfa.ProviderTypeSMS, PhoneNumber: "+15005550006"}
	resp = doRequest(t, http.MethodPost, server.URL+"/account/config/submit", token, draft)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	code := sender.lastMessage()
	require.NotEmpty(t, code)

	// A wrong code is rejected
	resp = doRequest(t, http.MethodPost, server.URL+"/account/config?verificationCode=000000", token, draft)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The delivered code verifies and persists the config
	resp = doRequest(t, http.MethodPost, server.URL+"/account/config?verificationCode="+code, token, draft)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, server.URL+"/account/config", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var saved mfa.AccountConfig
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&saved))
	assert.Equal(t, draft, saved)

	resp = doRequest(t, http.MethodDelete, server.URL+"/account/config", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, server.URL+"/account/config", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestHandleGenerateAccountConfig(t *testing.T) {
	server, _ := newTestServer(t)
	token := signToken(t, uuid.New(), uuid.New())

	resp := doRequest(t, http.MethodPost, server.URL+"/account/config/generate?providerType=TOTP", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var config mfa.AccountConfig
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&config))
	assert.Equal(t, mfa.ProviderTypeTOTP, config.ProviderType)
	assert.NotEmpty(t, config.Secret)
	assert.Contains(t, config.AuthURL, "otpauth://totp/")

	resp = doRequest(t, http.MethodPost, server.URL+"/account/config/generate?providerType=BOGUS", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleGetAvailableProviders(t *testing.T) {
	server, _ := newTestServer(t)
	token := signToken(t, uuid.New(), uuid.New())

	resp := doRequest(t, http.MethodGet, server.URL+"/providers", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var providers []mfa.ProviderType
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&providers))
	assert.Equal(t, []mfa.ProviderType{mfa.ProviderTypeTOTP, mfa.ProviderTypeSMS}, providers)
}

func TestHandleSettingsScoping(t *testing.T) {
	server, _ := newTestServer(t)
	tenantID := uuid.New()
	tenantToken := signToken(t, tenantID, uuid.New())
	sysToken := signToken(t, uuid.New(), uuid.New(), ROLE_SYSADMIN)

	// Tenant has no settings of its own yet
	resp := doRequest(t, http.MethodGet, server.URL+"/settings", tenantToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Sysadmin reads the system settings seeded by the test server
	resp = doRequest(t, http.MethodGet, server.URL+"/settings", sysToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var settings mfa.Settings
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&settings))
	assert.Len(t, settings.Providers, 2)

	// A tenant write lands at tenant scope
	tenantSettings := mfa.Settings{
		Providers: []mfa.ProviderConfig{
			{ProviderType: mfa.ProviderTypeSMS, Enabled: true},
		},
	}
	resp = doRequest(t, http.MethodPost, server.URL+"/settings", tenantToken, tenantSettings)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, server.URL+"/settings", tenantToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&settings))
	require.Len(t, settings.Providers, 1)
	assert.Equal(t, mfa.ProviderTypeSMS, settings.Providers[0].ProviderType)

	// The tenant override narrows the provider list for that tenant only
	resp = doRequest(t, http.MethodGet, server.URL+"/providers", tenantToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var providers []mfa.ProviderType
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&providers))
	assert.Equal(t, []mfa.ProviderType{mfa.ProviderTypeSMS}, providers)

	// Invalid settings are rejected
	resp = doRequest(t, http.MethodPost, server.URL+"/settings", tenantToken, mfa.Settings{
		Providers: []mfa.ProviderConfig{
			{ProviderType: "BOGUS", Enabled: true},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
