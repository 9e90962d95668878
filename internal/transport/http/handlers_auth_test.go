package httptransport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"gatehouse/internal/auth/service"
	"gatehouse/internal/auth/store/credentials"
	"gatehouse/internal/credential"
	"gatehouse/internal/guard"
	"gatehouse/internal/platform/logger"
	"gatehouse/internal/quota"
	quotaStore "gatehouse/internal/quota/store"
	"gatehouse/internal/ratelimit"
	"gatehouse/internal/ratelimit/store/burst"
	"gatehouse/internal/ratelimit/store/window"
	"gatehouse/internal/session"
	sessionStore "gatehouse/internal/session/store"
	"gatehouse/internal/token"
	"gatehouse/internal/token/store/revocation"
)

// RouterSuite drives the whole stack through the HTTP surface: router,
// middleware, guard, services and in-memory stores.
type RouterSuite struct {
	suite.Suite
	server  *httptest.Server
	revoked *revocation.InMemoryList
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	log := logger.New("error")

	hasher := credential.New(credential.Config{Cost: bcrypt.MinCost, MinScore: 60, Workers: 2})
	source := credentials.NewInMemorySource(hasher)

	tokens, err := token.New(token.Config{
		Keys:         map[string]string{"v1": "test-signing-secret"},
		CurrentKeyID: "v1",
		AccessTTL:    time.Hour,
		RefreshTTL:   24 * time.Hour,
		ClockSkew:    5 * time.Second,
	})
	s.Require().NoError(err)

	s.revoked = revocation.NewInMemoryList()
	registry := session.NewRegistry(sessionStore.NewInMemoryStore(), s.revoked, session.Config{
		SessionTTL:      24 * time.Hour,
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})

	authService := service.NewService(source, hasher, tokens, registry, s.revoked)

	limiter := ratelimit.New(window.NewInMemoryStore(), burst.NewInMemoryStore(), ratelimit.Config{
		PerIP:        ratelimit.Rule{Limit: 100, Window: time.Minute},
		PerPrincipal: ratelimit.Rule{Limit: 20, Window: time.Minute},
		PerEndpoint: map[string]ratelimit.Rule{
			"/auth/login": {Limit: 5, Window: time.Minute},
		},
	})

	g := guard.New(guard.Config{CheckTimeout: time.Second}, []guard.Check{
		guard.NewRateLimitCheck(limiter),
		guard.NewTokenCheck(authService),
		guard.NewPrincipalRateLimitCheck(limiter),
		guard.NewSessionCheck(registry),
	})

	tracker := quota.New(quotaStore.NewInMemoryStore(), quota.Config{PerWindow: 200, Window: time.Hour})

	handler := NewHandler(authService, source, tracker, log)
	s.server = httptest.NewServer(NewRouter(handler, g, limiter, log))
}

func (s *RouterSuite) TearDownTest() {
	s.server.Close()
	s.revoked.Stop()
}

func (s *RouterSuite) post(path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	payload, err := json.Marshal(body)
	s.Require().NoError(err)

	req, err := http.NewRequest(http.MethodPost, s.server.URL+path, bytes.NewReader(payload))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp, decodeBody(s.T(), resp)
}

func (s *RouterSuite) get(path string, headers map[string]string) (*http.Response, map[string]any) {
	req, err := http.NewRequest(http.MethodGet, s.server.URL+path, nil)
	s.Require().NoError(err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	return resp, decodeBody(s.T(), resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil || len(raw) == 0 {
		return nil
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	return body
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func (s *RouterSuite) registerAndLogin() (string, string) {
	resp, _ := s.post("/auth/register", map[string]any{
		"username": "alice",
		"password": "Tr0ub4dor&3!",
		"scopes":   []string{"read"},
	}, nil)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	resp, body := s.post("/auth/login", map[string]string{
		"username": "alice",
		"password": "Tr0ub4dor&3!",
	}, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().NotEmpty(body["access_token"])
	s.Require().NotEmpty(body["refresh_token"])
	return body["access_token"].(string), body["refresh_token"].(string)
}

func (s *RouterSuite) TestLoginFlow() {
	access, _ := s.registerAndLogin()

	resp, body := s.get("/auth/sessions", bearer(access))
	s.Equal(http.StatusOK, resp.StatusCode)
	sessions := body["sessions"].([]any)
	s.Len(sessions, 1)
	current := sessions[0].(map[string]any)
	s.True(current["current"].(bool))
}

func (s *RouterSuite) TestLoginRejectsWeakRegistration() {
	resp, body := s.post("/auth/register", map[string]string{
		"username": "bob",
		"password": "password",
	}, nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	errBody := body["error"].(map[string]any)
	s.Equal("weak_secret", errBody["code"])
}

func (s *RouterSuite) TestGuardedRouteRequiresToken() {
	resp, body := s.get("/auth/sessions", nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	errBody := body["error"].(map[string]any)
	s.Equal("auth_required", errBody["code"])
}

func (s *RouterSuite) TestRefreshFlowAndReuse() {
	_, refresh := s.registerAndLogin()

	resp, body := s.post("/auth/refresh", map[string]string{"refresh_token": refresh}, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	newRefresh := body["refresh_token"].(string)
	s.NotEqual(refresh, newRefresh)

	// Replaying the spent token reports reuse and kills the session.
	resp, body = s.post("/auth/refresh", map[string]string{"refresh_token": refresh}, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	errBody := body["error"].(map[string]any)
	s.Equal("reuse_detected", errBody["code"])

	resp, body = s.post("/auth/refresh", map[string]string{"refresh_token": newRefresh}, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	errBody = body["error"].(map[string]any)
	s.Equal("session_revoked", errBody["code"])
}

func (s *RouterSuite) TestLogoutInvalidatesToken() {
	access, _ := s.registerAndLogin()

	resp, _ := s.post("/auth/logout", map[string]string{}, bearer(access))
	s.Require().Equal(http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, body := s.get("/auth/sessions", bearer(access))
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	errBody := body["error"].(map[string]any)
	s.Contains([]string{"token_revoked", "session_revoked"}, errBody["code"])
}

func (s *RouterSuite) TestLoginEndpointRateLimit() {
	var lastStatus int
	var lastBody map[string]any
	for i := range 6 {
		resp, body := s.post("/auth/login", map[string]string{
			"username": fmt.Sprintf("ghost-%d", i),
			"password": "Wr0ng-Passw0rd!",
		}, nil)
		lastStatus = resp.StatusCode
		lastBody = body
	}
	s.Equal(http.StatusTooManyRequests, lastStatus)
	errBody := lastBody["error"].(map[string]any)
	s.Equal("rate_limit_exceeded", errBody["code"])
}

func (s *RouterSuite) TestQuotaWindowEndpoint() {
	access, _ := s.registerAndLogin()

	resp, body := s.get("/quota/upstream-acct-1", bearer(access))
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(float64(200), body["limit"])
	s.Equal(float64(0), body["used"])
}

func (s *RouterSuite) TestHealthz() {
	resp, body := s.get("/healthz", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("ok", body["status"])
}

func (s *RouterSuite) TestMetricsEndpoint() {
	resp, _ := s.get("/metrics", nil)
	s.Equal(http.StatusOK, resp.StatusCode)
}
