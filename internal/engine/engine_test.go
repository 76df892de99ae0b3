package engine

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinara/shinara-go/internal/gateway"
	"github.com/shinara/shinara-go/internal/state"
)

// testGateway is a recording fake of the remote gateway.
type testGateway struct {
	srv *httptest.Server

	mu     sync.Mutex
	counts map[string]int
	bodies map[string][]string

	keyStatus      int
	keyResponse    string
	codeStatus     int
	codeResponse   string
	registerStatus int
	purchaseStatus int
	appOpenStatus  int
	handlerDelay   time.Duration
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	g := &testGateway{
		counts:         make(map[string]int),
		bodies:         make(map[string][]string),
		keyStatus:      http.StatusOK,
		keyResponse:    `{"app_id":"app_1"}`,
		codeStatus:     http.StatusOK,
		codeResponse:   `{"campaign_id":"camp_123","affiliate_code_id":"code_456"}`,
		registerStatus: http.StatusOK,
		purchaseStatus: http.StatusOK,
		appOpenStatus:  http.StatusOK,
	}
	g.srv = httptest.NewServer(http.HandlerFunc(g.handle))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *testGateway) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	g.mu.Lock()
	g.counts[r.URL.Path]++
	g.bodies[r.URL.Path] = append(g.bodies[r.URL.Path], string(body))
	delay := g.handlerDelay
	var status int
	var response string
	switch r.URL.Path {
	case "/api/key/validate":
		status, response = g.keyStatus, g.keyResponse
	case "/api/code/validate":
		status, response = g.codeStatus, g.codeResponse
	case "/newuser":
		status = g.registerStatus
	case "/iappurchase":
		status = g.purchaseStatus
	case "/appopen":
		status = g.appOpenStatus
	default:
		status = http.StatusNotFound
	}
	g.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	w.WriteHeader(status)
	if response != "" {
		w.Write([]byte(response))
	}
}

func (g *testGateway) count(path string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts[path]
}

func (g *testGateway) lastBody(t *testing.T, path string) map[string]any {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	bodies := g.bodies[path]
	require.NotEmpty(t, bodies, "no requests recorded for %s", path)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(bodies[len(bodies)-1]), &decoded))
	return decoded
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, g *testGateway, opts ...Option) *Engine {
	t.Helper()
	st, err := state.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	e, err := New(context.Background(), st, gateway.New(g.srv.URL, nil), opts...)
	require.NoError(t, err)
	return e
}

// initialized returns an engine with a validated key and, optionally, a
// resolved referral code.
func initialized(t *testing.T, g *testGateway, resolve bool) *Engine {
	t.Helper()
	e := newTestEngine(t, g)
	require.NoError(t, e.Initialize(context.Background(), "VALID"))
	if resolve {
		programID, err := e.ResolveReferralCode(context.Background(), "TEST01")
		require.NoError(t, err)
		require.Equal(t, "camp_123", programID)
	}
	return e
}

func TestInitialize_ValidKey(t *testing.T) {
	g := newTestGateway(t)
	e := newTestEngine(t, g)

	require.NoError(t, e.Initialize(context.Background(), "VALID"))
	assert.Equal(t, 1, g.count("/api/key/validate"))
}

func TestInitialize_InvalidKey(t *testing.T) {
	g := newTestGateway(t)
	g.keyStatus = http.StatusUnauthorized
	e := newTestEngine(t, g)

	err := e.Initialize(context.Background(), "INVALID")
	require.Error(t, err)
	assert.True(t, IsValidationFailed(err))
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
}

func TestInitialize_EmptyKey(t *testing.T) {
	g := newTestGateway(t)
	e := newTestEngine(t, g)

	err := e.Initialize(context.Background(), "")
	require.Error(t, err)
	assert.True(t, IsKeyNotSet(err))
	assert.Equal(t, 0, g.count("/api/key/validate"))
}

func TestInitialize_TransportFailure(t *testing.T) {
	g := newTestGateway(t)
	g.srv.Close() // Connection refused from here on
	e := newTestEngine(t, g)

	err := e.Initialize(context.Background(), "VALID")
	require.Error(t, err)
	assert.True(t, IsValidationFailed(err))
	assert.Equal(t, gateway.StatusUnknown, StatusOf(err))
	assert.True(t, gateway.IsTransport(err))
}

func TestInitialize_UndecodableBody(t *testing.T) {
	g := newTestGateway(t)
	g.keyResponse = "not json"
	e := newTestEngine(t, g)

	err := e.Initialize(context.Background(), "VALID")
	require.Error(t, err)
	assert.True(t, IsValidationFailed(err))
	assert.True(t, gateway.IsDecode(err))
}

func TestInitialize_TrackRetentionFiresAppOpen(t *testing.T) {
	g := newTestGateway(t)
	e := initialized(t, g, true) // stores code_456

	g.mu.Lock()
	g.keyResponse = `{"app_id":"app_1","track_retention":true}`
	g.mu.Unlock()

	require.NoError(t, e.Initialize(context.Background(), "VALID"))
	e.appOpen.Wait()

	assert.Equal(t, 1, g.count("/appopen"))
	body := g.lastBody(t, "/appopen")
	assert.Equal(t, "code_456", body["affiliate_code_id"])
}

func TestInitialize_AppOpenSkippedWithoutCodeID(t *testing.T) {
	g := newTestGateway(t)
	g.keyResponse = `{"app_id":"app_1","track_retention":true}`
	e := newTestEngine(t, g)

	require.NoError(t, e.Initialize(context.Background(), "VALID"))
	e.appOpen.Wait()

	assert.Equal(t, 0, g.count("/appopen"))
}

func TestInitialize_AppOpenFailureDoesNotSurface(t *testing.T) {
	g := newTestGateway(t)
	e := initialized(t, g, true)

	g.mu.Lock()
	g.keyResponse = `{"app_id":"app_1","track_retention":true}`
	g.appOpenStatus = http.StatusInternalServerError
	g.mu.Unlock()

	require.NoError(t, e.Initialize(context.Background(), "VALID"))
	e.appOpen.Wait()
	assert.Equal(t, 1, g.count("/appopen"))
}

func TestResolveReferralCode_Success(t *testing.T) {
	g := newTestGateway(t)
	e := initialized(t, g, false)

	programID, err := e.ResolveReferralCode(context.Background(), "TEST01")
	require.NoError(t, err)
	assert.Equal(t, "camp_123", programID)

	code, ok := e.ReferralCode()
	require.True(t, ok)
	assert.Equal(t, "TEST01", code)

	program, ok := e.ProgramID()
	require.True(t, ok)
	assert.Equal(t, "camp_123", program)
}

func TestResolveReferralCode_RequiresKey(t *testing.T) {
	g := newTestGateway(t)
	e := newTestEngine(t, g)

	_, err := e.ResolveReferralCode(context.Background(), "TEST01")
	require.Error(t, err)
	assert.True(t, IsKeyNotSet(err))
	assert.Equal(t, 0, g.count("/api/code/validate"))
}

func TestResolveReferralCode_NotFoundLeavesStateUnchanged(t *testing.T) {
	g := newTestGateway(t)
	e := initialized(t, g, true)

	g.mu.Lock()
	g.codeStatus = http.StatusNotFound
	g.mu.Unlock()

	_, err := e.ResolveReferralCode(context.Background(), "BOGUS")
	require.Error(t, err)
	assert.True(t, IsValidationFailed(err))
	assert.Equal(t, http.StatusNotFound, StatusOf(err))

	code, ok := e.ReferralCode()
	require.True(t, ok)
	assert.Equal(t, "TEST01", code)
}

func TestResolveReferralCode_EmptyCampaignID(t *testing.T) {
	g := newTestGateway(t)
	g.codeResponse = `{}`
	e := initialized(t, g, false)

	_, err := e.ResolveReferralCode(context.Background(), "TEST01")
	require.Error(t, err)
	assert.True(t, IsValidationFailed(err))
	assert.Equal(t, http.StatusOK, StatusOf(err))

	_, ok := e.ReferralCode()
	assert.False(t, ok)
}

func TestResolveReferralCode_OverwritesPreviousReferral(t *testing.T) {
	g := newTestGateway(t)
	e := initialized(t, g, true)

	g.mu.Lock()
	g.codeResponse = `{"campaign_id":"camp_999"}`
	g.mu.Unlock()

	programID, err := e.ResolveReferralCode(context.Background(), "TEST02")
	require.NoError(t, err)
	assert.Equal(t, "camp_999", programID)

	code, _ := e.ReferralCode()
	assert.Equal(t, "TEST02", code)
	program, _ := e.ProgramID()
	assert.Equal(t, "camp_999", program)
}

func TestRegisterUser_Success(t *testing.T) {
	g := newTestGateway(t)
	e := initialized(t, g, true)

	require.NoError(t, e.RegisterUser(context.Background(), "u1", UserDetails{Email: "u@example.com"}))

	userID, ok := e.UserID()
	require.True(t, ok)
	assert.Equal(t, "u1", userID)

	body := g.lastBody(t, "/newuser")
	assert.Equal(t, "TEST01", body["code"])
	assert.Equal(t, "go", body["platform"])
	assert.Equal(t, "code_456", body["affiliate_code_id"])
	user := body["conversion_user"].(map[string]any)
	assert.Equal(t, "u1", user["external_user_id"])
	assert.Equal(t, "u@example.com", user["email"])
}

func TestRegisterUser_Idempotent(t *testing.T) {
	g := newTestGateway(t)
	e := initialized(t, g, true)

	require.NoError(t, e.RegisterUser(context.Background(), "u1", UserDetails{}))
	require.NoError(t, e.RegisterUser(context.Background(), "u1", UserDetails{}))
	assert.Equal(t, 1, g.count("/newuser"))
}

func TestRegisterUser_WithoutReferralCode(t *testing.T) {
	g := newTestGateway(t)
	e := initialized(t, g, false)

	err := e.RegisterUser(context.Background(), "u1", UserDetails{})
	require.Error(t, err)
	assert.True(t, IsNoReferralCode(err))
	assert.Equal(t, 0, g.count("/newuser"))
}

func TestRegisterUser_RequiresKey(t *testing.T) {
	g := newTestGateway(t)
	e := newTestEngine(t, g)

	err := e.RegisterUser(context.Background(), "u1", UserDetails{})
	require.Error(t, err)
	assert.True(t, IsKeyNotSet(err))
}

func TestRegisterUser_FailureLeavesStateUnchanged(t *testing.T) {
	g := newTestGateway(t)
	e := initialized(t, g, true)

	g.mu.Lock()
	g.registerStatus = http.StatusInternalServerError
	g.mu.Unlock()

	err := e.RegisterUser(context.Background(), "u1", UserDetails{})
	require.Error(t, err)
	assert.True(t, IsRegistrationFailed(err))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))

	_, ok := e.UserID()
	assert.False(t, ok)

	// A later retry issues a fresh request; the failed attempt was not
	// recorded as a registration.
	g.mu.Lock()
	g.registerStatus = http.StatusOK
	g.mu.Unlock()
	require.NoError(t, e.RegisterUser(context.Background(), "u1", UserDetails{}))
	assert.Equal(t, 2, g.count("/newuser"))
}

func TestRegisterUser_MergesAutoGeneratedIdentity(t *testing.T) {
	g := newTestGateway(t)
	e := newTestEngine(t, g, WithIDGenerator(NewFixedGenerator("auto-1")))
	require.NoError(t, e.Initialize(context.Background(), "VALID"))
	_, err := e.ResolveReferralCode(context.Background(), "TEST01")
	require.NoError(t, err)

	// A purchase before any registration synthesizes the identity.
	require.NoError(t, e.AttributePurchase(context.Background(), "p1", "t1"))

	require.NoError(t, e.RegisterUser(context.Background(), "u1", UserDetails{}))

	user := g.lastBody(t, "/newuser")["conversion_user"].(map[string]any)
	assert.Equal(t, "auto-1", user["auto_generated_external_user_id"])

	// Once the real identity exists, purchases stop using the synthetic
	// one.
	require.NoError(t, e.AttributePurchase(context.Background(), "p2", "t2"))
	body := g.lastBody(t, "/iappurchase")
	assert.Equal(t, "u1", body["external_user_id"])
	assert.NotContains(t, body, "auto_generated_external_user_id")
}

func TestAttributePurchase_NoReferralCodeIsSilentNoop(t *testing.T) {
	g := newTestGateway(t)
	e := initialized(t, g, false)

	require.NoError(t, e.AttributePurchase(context.Background(), "p1", "t1"))
	assert.Equal(t, 0, g.count("/iappurchase"))
}

func TestAttributePurchase_RequiresKey(t *testing.T) {
	g := newTestGateway(t)
	e := newTestEngine(t, g)

	err := e.AttributePurchase(context.Background(), "p1", "t1")
	require.Error(t, err)
	assert.True(t, IsKeyNotSet(err))
}

func TestAttributePurchase_Success(t *testing.T) {
	g := newTestGateway(t)
	e := initialized(t, g, true)

	require.NoError(t, e.AttributePurchase(context.Background(), "p1", "t1"))

	body := g.lastBody(t, "/iappurchase")
	assert.Equal(t, "p1", body["product_id"])
	assert.Equal(t, "t1", body["transaction_id"])
	assert.Equal(t, "TEST01", body["code"])
	assert.Equal(t, "code_456", body["affiliate_code_id"])
	assert.Contains(t, body, "auto_generated_external_user_id")
}

func TestAttributePurchase_Idempotent(t *testing.T) {
	g := newTestGateway(t)
	e := initialized(t, g, true)

	require.NoError(t, e.AttributePurchase(context.Background(), "p1", "t1"))
	require.NoError(t, e.AttributePurchase(context.Background(), "p1", "t1"))
	assert.Equal(t, 1, g.count("/iappurchase"))
}

func TestAttributePurchase_SyntheticIdentityReusedAcrossFailures(t *testing.T) {
	g := newTestGateway(t)
	// A single id proves reuse: a second Generate() call would panic.
	e := newTestEngine(t, g, WithIDGenerator(NewFixedGenerator("auto-1")))
	require.NoError(t, e.Initialize(context.Background(), "VALID"))
	_, err := e.ResolveReferralCode(context.Background(), "TEST01")
	require.NoError(t, err)

	g.mu.Lock()
	g.purchaseStatus = http.StatusInternalServerError
	g.mu.Unlock()

	err = e.AttributePurchase(context.Background(), "p1", "t1")
	require.Error(t, err)
	assert.True(t, IsAttributionFailed(err))

	g.mu.Lock()
	g.purchaseStatus = http.StatusOK
	g.mu.Unlock()

	require.NoError(t, e.AttributePurchase(context.Background(), "p1", "t1"))
	body := g.lastBody(t, "/iappurchase")
	assert.Equal(t, "auto-1", body["auto_generated_external_user_id"])
}

func TestAttributePurchase_FailureDoesNotMarkProcessed(t *testing.T) {
	g := newTestGateway(t)
	e := initialized(t, g, true)

	g.mu.Lock()
	g.purchaseStatus = http.StatusBadGateway
	g.mu.Unlock()

	err := e.AttributePurchase(context.Background(), "p1", "t1")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))

	g.mu.Lock()
	g.purchaseStatus = http.StatusOK
	g.mu.Unlock()

	require.NoError(t, e.AttributePurchase(context.Background(), "p1", "t1"))
	assert.Equal(t, 2, g.count("/iappurchase"))
}

func TestAttributePurchase_ConcurrentSameTransaction(t *testing.T) {
	g := newTestGateway(t)
	e := initialized(t, g, true)

	// Slow the handler so both calls overlap in flight.
	g.mu.Lock()
	g.handlerDelay = 100 * time.Millisecond
	g.mu.Unlock()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = e.AttributePurchase(context.Background(), "p1", "t1")
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, g.count("/iappurchase"))
}

func TestEngine_StateSurvivesRestart(t *testing.T) {
	g := newTestGateway(t)
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	st, err := state.Open(path)
	require.NoError(t, err)
	e, err := New(ctx, st, gateway.New(g.srv.URL, nil), WithLogger(discardLogger()))
	require.NoError(t, err)
	require.NoError(t, e.Initialize(ctx, "VALID"))
	_, err = e.ResolveReferralCode(ctx, "TEST01")
	require.NoError(t, err)
	require.NoError(t, e.AttributePurchase(ctx, "p1", "t1"))
	require.NoError(t, st.Close())

	st2, err := state.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st2.Close() })
	e2, err := New(ctx, st2, gateway.New(g.srv.URL, nil), WithLogger(discardLogger()))
	require.NoError(t, err)
	require.NoError(t, e2.Initialize(ctx, "VALID"))

	code, ok := e2.ReferralCode()
	require.True(t, ok)
	assert.Equal(t, "TEST01", code)

	// The processed transaction stays deduplicated across restarts.
	require.NoError(t, e2.AttributePurchase(ctx, "p1", "t1"))
	assert.Equal(t, 1, g.count("/iappurchase"))
}

func TestAccessors_EmptyState(t *testing.T) {
	g := newTestGateway(t)
	e := newTestEngine(t, g)

	_, ok := e.ReferralCode()
	assert.False(t, ok)
	_, ok = e.ProgramID()
	assert.False(t, ok)
	_, ok = e.UserID()
	assert.False(t, ok)
}
