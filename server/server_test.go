package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"commitbet/commitment"
	"commitbet/events"
	"commitbet/models"
	"commitbet/repository/memory"
	"commitbet/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testAPI struct {
	t       *testing.T
	clock   *testClock
	handler http.Handler
}

func newTestAPI(t *testing.T, apiKey string) *testAPI {
	t.Helper()
	factory := memory.NewUnitOfWorkFactory(memory.NewStore(), events.NewBus())
	clock := &testClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	srv := New(Config{Addr: "127.0.0.1:0", APIKey: apiKey},
		service.NewMarketService(factory, clock, nil, nil),
		service.NewAccountService(factory, 1000),
	)
	return &testAPI{t: t, clock: clock, handler: srv.Handler()}
}

func (a *testAPI) do(method, path string, principal models.Principal, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if principal != "" {
		req.Header.Set(PrincipalHeader, string(principal))
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	body := decodeBody[errorResponse](t, rec)
	assert.Equal(t, code, body.Code)
	assert.NotEmpty(t, body.Error)
}

func (a *testAPI) createMarket(creator models.Principal, id string) marketResponse {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/markets", creator, map[string]any{
		"market_id": id,
		"oracle":    "oracle",
		"question":  "Will it ship by Friday?",
		"deadline":  a.clock.Now().Add(time.Hour),
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[marketResponse](a.t, rec)
}

func TestServer_Health(t *testing.T) {
	api := newTestAPI(t, "secret")

	rec := api.do(http.MethodGet, "/api/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestServer_APIKey(t *testing.T) {
	api := newTestAPI(t, "secret")

	rec := api.do(http.MethodPost, "/api/accounts", "alice", nil)
	assertError(t, rec, http.StatusUnauthorized, "unauthorized")

	req := httptest.NewRequest(http.MethodPost, "/api/accounts", nil)
	req.Header.Set(PrincipalHeader, "alice")
	req.Header.Set("X-API-Key", "secret")
	ok := httptest.NewRecorder()
	api.handler.ServeHTTP(ok, req)
	assert.Equal(t, http.StatusOK, ok.Code)
}

func TestServer_RequestIDPassthrough(t *testing.T) {
	api := newTestAPI(t, "")
	id := uuid.New().String()

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, id)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))
}

func TestServer_Accounts(t *testing.T) {
	api := newTestAPI(t, "")

	rec := api.do(http.MethodGet, "/api/accounts/me", "alice", nil)
	assertError(t, rec, http.StatusNotFound, "account_not_found")

	rec = api.do(http.MethodPost, "/api/accounts", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1000", decodeBody[accountResponse](t, rec).Balance)

	rec = api.do(http.MethodGet, "/api/accounts/me/ledger?limit=5", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ledger := decodeBody[struct {
		Entries []ledgerEntryResponse `json:"entries"`
	}](t, rec)
	require.Len(t, ledger.Entries, 1)
	assert.Equal(t, models.TransactionTypeInitial, ledger.Entries[0].TransactionType)
	assert.Equal(t, "1000", ledger.Entries[0].ChangeAmount)

	rec = api.do(http.MethodGet, "/api/accounts/me/ledger?limit=-1", "alice", nil)
	assertError(t, rec, http.StatusBadRequest, "bad_request")
}

func TestServer_RequestValidation(t *testing.T) {
	api := newTestAPI(t, "")
	market := api.createMarket("creator", "1")
	base := "/api/markets/" + market.MarketKey.String()

	tests := []struct {
		name      string
		method    string
		path      string
		principal models.Principal
		body      any
		status    int
		code      string
	}{
		{"missing principal", http.MethodPost, "/api/accounts", "", nil, http.StatusBadRequest, "bad_request"},
		{"padded principal", http.MethodPost, "/api/accounts", " alice", nil, http.StatusBadRequest, "invalid_principal"},
		{"bad market key", http.MethodGet, "/api/markets/zz", "", nil, http.StatusBadRequest, "invalid_key"},
		{"unknown market", http.MethodGet, "/api/markets/" + models.DeriveMarketKey("x", 9).String(), "", nil, http.StatusNotFound, "market_not_found"},
		{"unknown status filter", http.MethodGet, "/api/markets?status=pending", "", nil, http.StatusBadRequest, "bad_request"},
		{"unknown field", http.MethodPost, base + "/resolve", "oracle", map[string]any{"outcome": 1, "extra": true}, http.StatusBadRequest, "bad_request"},
		{"non-numeric amount", http.MethodPost, base + "/commit", "alice", map[string]any{"commitment_hash": models.Hash{}.String(), "amount": "ten"}, http.StatusBadRequest, "bad_request"},
		{"zero amount", http.MethodPost, base + "/commit", "alice", map[string]any{"commitment_hash": models.Hash{}.String(), "amount": "0"}, http.StatusBadRequest, "zero_bet_amount"},
		{"resolve before deadline", http.MethodPost, base + "/resolve", "oracle", map[string]any{"outcome": 1}, http.StatusConflict, "market_not_expired"},
		{"unknown bet", http.MethodGet, base + "/bets/nobody", "", nil, http.StatusNotFound, "bet_not_found"},
		{"deadline too far", http.MethodPost, "/api/markets", "creator", map[string]any{"market_id": "2", "oracle": "oracle", "deadline": models.MaxDeadline.Add(time.Hour)}, http.StatusBadRequest, "deadline_too_far"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(tt.method, tt.path, tt.principal, tt.body)
			assertError(t, rec, tt.status, tt.code)
		})
	}
}

func TestServer_MarketLifecycle(t *testing.T) {
	api := newTestAPI(t, "")
	for _, p := range []models.Principal{"alice", "bob"} {
		require.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/accounts", p, nil).Code)
	}

	market := api.createMarket("creator", "18446744073709551615")
	assert.Equal(t, "18446744073709551615", market.MarketID)
	assert.Equal(t, models.MarketStatusOpen, market.Status)
	base := "/api/markets/" + market.MarketKey.String()

	aliceSalt, err := commitment.NewSalt()
	require.NoError(t, err)
	bobSalt, err := commitment.NewSalt()
	require.NoError(t, err)

	rec := api.do(http.MethodPost, base+"/commit", "alice", map[string]any{
		"commitment_hash": commitment.Compute(100, models.OutcomeYes, aliceSalt),
		"amount":          "100",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "100", decodeBody[betResponse](t, rec).Amount)

	rec = api.do(http.MethodPost, base+"/commit", "bob", map[string]any{
		"commitment_hash": commitment.Compute(50, models.OutcomeNo, bobSalt),
		"amount":          "50",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, base+"/commit", "bob", map[string]any{
		"commitment_hash": commitment.Compute(50, models.OutcomeNo, bobSalt),
		"amount":          "50",
	})
	assertError(t, rec, http.StatusConflict, "duplicate_commitment")

	rec = api.do(http.MethodPost, base+"/reveal", "alice", map[string]any{"outcome": 1, "salt": aliceSalt})
	assertError(t, rec, http.StatusConflict, "market_not_expired")

	api.clock.Advance(time.Hour + time.Second)

	rec = api.do(http.MethodPost, base+"/reveal", "bob", map[string]any{"outcome": 1, "salt": bobSalt})
	assertError(t, rec, http.StatusUnprocessableEntity, "commitment_mismatch")

	rec = api.do(http.MethodPost, base+"/reveal", "alice", map[string]any{"outcome": 1, "salt": aliceSalt})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	revealed := decodeBody[betResponse](t, rec)
	assert.True(t, revealed.IsRevealed)
	require.NotNil(t, revealed.RevealedOutcome)
	assert.Equal(t, uint8(1), *revealed.RevealedOutcome)

	rec = api.do(http.MethodPost, base+"/reveal", "bob", map[string]any{"outcome": 0, "salt": bobSalt})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodPost, base+"/resolve", "bob", map[string]any{"outcome": 0})
	assertError(t, rec, http.StatusForbidden, "unauthorized_resolver")

	rec = api.do(http.MethodPost, base+"/resolve", "oracle", map[string]any{"outcome": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resolved := decodeBody[marketResponse](t, rec)
	assert.Equal(t, models.MarketStatusResolved, resolved.Status)
	assert.Equal(t, "100", resolved.YesPool)
	assert.Equal(t, "50", resolved.NoPool)
	assert.Equal(t, "0", resolved.UnrevealedPool)

	rec = api.do(http.MethodPost, base+"/claim", "bob", nil)
	assertError(t, rec, http.StatusConflict, "did_not_win")

	rec = api.do(http.MethodPost, base+"/claim", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	claimed := decodeBody[betResponse](t, rec)
	assert.True(t, claimed.IsClaimed)
	require.NotNil(t, claimed.Payout)
	assert.Equal(t, "150", *claimed.Payout)

	rec = api.do(http.MethodGet, "/api/accounts/me", "alice", nil)
	assert.Equal(t, "1050", decodeBody[accountResponse](t, rec).Balance)

	rec = api.do(http.MethodGet, base+"/bets", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bets := decodeBody[struct {
		Bets []betResponse `json:"bets"`
	}](t, rec)
	require.Len(t, bets.Bets, 2)
	assert.Equal(t, models.Principal("alice"), bets.Bets[0].Participant)

	rec = api.do(http.MethodGet, base+"/bets/bob", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[betResponse](t, rec).IsClaimed)

	rec = api.do(http.MethodGet, "/api/markets?status=resolved", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[struct {
		Markets []marketResponse `json:"markets"`
	}](t, rec)
	require.Len(t, list.Markets, 1)
	assert.Equal(t, market.MarketKey, list.Markets[0].MarketKey)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(models.ErrMarketBusy))
	assert.Equal(t, http.StatusConflict, statusFor(models.ErrInsufficientFunds))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(models.ErrOverflow))
	assert.Equal(t, http.StatusForbidden, statusFor(models.ErrInvalidVaultAuthority))
	assert.Equal(t, http.StatusConflict, statusFor(models.ErrRevealPeriodEnded))
}

func TestServer_Serve_ShutsDownOnCancel(t *testing.T) {
	factory := memory.NewUnitOfWorkFactory(memory.NewStore(), events.NewBus())
	srv := New(Config{Addr: "127.0.0.1:0"},
		service.NewMarketService(factory, service.SystemClock{}, nil, nil),
		service.NewAccountService(factory, 1000),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
