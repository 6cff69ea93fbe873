package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/venalabs/authbridge/internal/identity"
	"github.com/venalabs/authbridge/internal/oauth"
	"github.com/venalabs/authbridge/internal/token"
	"github.com/venalabs/authbridge/pkg/observability"
)

const testClientID = "client-123.apps.googleusercontent.com"

type fakeCodes struct {
	idToken string
	err     error
	codeIn  string
}

func (f *fakeCodes) AuthCodeURL(state string) string {
	return "https://provider.example.com/consent?state=" + state
}

func (f *fakeCodes) Exchange(_ context.Context, code string) (string, error) {
	f.codeIn = code
	return f.idToken, f.err
}

type testEnv struct {
	router  *gin.Engine
	codes   *fakeCodes
	states  *oauth.MemoryStateStore
	store   *identity.MemoryStore
	metrics *observability.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	signer, err := token.NewSigner("vena-auth", time.Hour)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	store := identity.NewMemoryStore()
	svc := token.NewService(store, signer, zap.NewNop(),
		signer,
		&token.UnverifiedClaimsVerifier{ClientID: testClientID},
	)

	// Unregistered counter, so per-test instances never collide on the
	// default registry.
	metrics := &observability.Metrics{
		ExchangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "token_exchanges_total"},
			[]string{"outcome"},
		),
	}

	codes := &fakeCodes{}
	states := oauth.NewMemoryStateStore(time.Minute)
	h := NewHTTPHandler(svc, codes, states, zap.NewNop()).WithMetrics(metrics)

	router := gin.New()
	h.RegisterRoutes(router)

	return &testEnv{router: router, codes: codes, states: states, store: store, metrics: metrics}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func forgeIDToken(t *testing.T, overrides map[string]interface{}) string {
	t.Helper()

	claims := map[string]interface{}{
		"iss":            "accounts.google.com",
		"aud":            testClientID,
		"sub":            "10987654321",
		"email":          "pat@example.com",
		"email_verified": true,
		"name":           "Pat Example",
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range overrides {
		claims[k] = v
	}

	header, _ := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT"})
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}

	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + "." + enc.EncodeToString([]byte("sig"))
}

func TestExchangeGoogleTokenSuccess(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/google",
		map[string]interface{}{"idToken": forgeIDToken(t, nil)}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if tok, _ := body["customToken"].(string); tok == "" {
		t.Fatal("expected customToken in response")
	}
}

func TestExchangeGoogleTokenRejectsNonStringWith400(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/google", `{"idToken": 123}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] != "Invalid ID token" {
		t.Fatalf("error = %v, want Invalid ID token", body["error"])
	}
}

func TestExchangeGoogleTokenMalformedStringIs500(t *testing.T) {
	env := newTestEnv(t)

	// "not-a-token" is a string, so it passes input validation; the
	// decode failure downstream reports as 500 with details.
	w := env.do(t, http.MethodPost, "/api/auth/google",
		map[string]interface{}{"idToken": "not-a-token"}, nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] != "Internal Server Error" {
		t.Fatalf("error = %v", body["error"])
	}
	if details, _ := body["details"].(string); details == "" {
		t.Fatal("expected failure details in response")
	}
}

func TestExchangeGoogleTokenMalformedJSONIs400(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/google", `{"idToken": `, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestExchangeGoogleCode(t *testing.T) {
	env := newTestEnv(t)
	env.codes.idToken = forgeIDToken(t, nil)

	state, err := env.states.Issue(context.Background())
	if err != nil {
		t.Fatalf("issue state: %v", err)
	}

	w := env.do(t, http.MethodPost, "/api/auth/google/code",
		map[string]string{"code": "authcode-1", "state": state}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if env.codes.codeIn != "authcode-1" {
		t.Fatalf("exchanger saw code %q", env.codes.codeIn)
	}
	body := decodeBody(t, w)
	if tok, _ := body["customToken"].(string); tok == "" {
		t.Fatal("expected customToken in response")
	}
}

func TestGoogleSignInStartIssuesConsumableState(t *testing.T) {
	env := newTestEnv(t)
	env.codes.idToken = forgeIDToken(t, nil)

	w := env.do(t, http.MethodGet, "/api/auth/google/start", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	stateParam, _ := body["state"].(string)
	if stateParam == "" {
		t.Fatal("expected a state in the start response")
	}
	if url, _ := body["url"].(string); !strings.Contains(url, stateParam) {
		t.Fatalf("consent URL %q does not carry the issued state", url)
	}

	// The issued state is what the host shell hands back with the code.
	w = env.do(t, http.MethodPost, "/api/auth/google/code",
		map[string]string{"code": "authcode-2", "state": stateParam}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code exchange status = %d, body %s", w.Code, w.Body.String())
	}

	// One-time: a replay of the same state is rejected.
	w = env.do(t, http.MethodPost, "/api/auth/google/code",
		map[string]string{"code": "authcode-2", "state": stateParam}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("replayed state status = %d, want 400", w.Code)
	}
}

func TestExchangeGoogleCodeRejectsUnknownState(t *testing.T) {
	env := newTestEnv(t)
	env.codes.idToken = forgeIDToken(t, nil)

	w := env.do(t, http.MethodPost, "/api/auth/google/code",
		map[string]string{"code": "authcode-1", "state": "forged"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if env.store.Len() != 0 {
		t.Fatal("no account may be created on state mismatch")
	}
}

func TestExchangeOutcomesCounted(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/auth/google",
		map[string]interface{}{"idToken": forgeIDToken(t, nil)}, nil)
	env.do(t, http.MethodPost, "/api/auth/google",
		map[string]interface{}{"idToken": "not-a-token"}, nil)

	if got := testutil.ToFloat64(env.metrics.ExchangesTotal.WithLabelValues("success")); got != 1 {
		t.Fatalf("success count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(env.metrics.ExchangesTotal.WithLabelValues("failure")); got != 1 {
		t.Fatalf("failure count = %v, want 1", got)
	}
}

func TestAnonymousSignIn(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/anonymous", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	user, _ := body["user"].(map[string]interface{})
	if user == nil || user["anonymous"] != true {
		t.Fatalf("expected anonymous user in response, got %v", body)
	}
}

func TestSignupLoginMeFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"email":       "sam@example.com",
		"password":    "hunter2hunter2",
		"displayName": "Sam",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, body %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "sam@example.com",
		"password": "hunter2hunter2",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", w.Code, w.Body.String())
	}
	tok, _ := decodeBody(t, w)["customToken"].(string)
	if tok == "" {
		t.Fatal("expected customToken after login")
	}

	w = env.do(t, http.MethodGet, "/api/auth/me", nil, map[string]string{
		"Authorization": "Bearer " + tok,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("me status = %d, body %s", w.Code, w.Body.String())
	}
	if decodeBody(t, w)["email"] != "sam@example.com" {
		t.Fatalf("unexpected profile: %s", w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/auth/me", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated me status = %d, want 401", w.Code)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	env := newTestEnv(t)

	env.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"email":    "sam@example.com",
		"password": "hunter2hunter2",
	}, nil)

	w := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "sam@example.com",
		"password": "wrong-password",
	}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestJWKSPublished(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/.well-known/jwks.json", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "keys") {
		t.Fatalf("unexpected JWKS body: %s", w.Body.String())
	}
}
