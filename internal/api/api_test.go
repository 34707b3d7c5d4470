package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenswap/internal/account"
	"github.com/roach88/tokenswap/internal/ledger"
	"github.com/roach88/tokenswap/internal/settings"
	"github.com/roach88/tokenswap/internal/swap"
	"github.com/roach88/tokenswap/internal/testutil"
	"github.com/roach88/tokenswap/internal/tokens"
)

var (
	secret     = []byte("test-secret")
	swapID     = account.MustParsePrincipal("rrkah-fqaaa-aaaaa-aaaaq-cai")
	aliceID    = account.MustParsePrincipal("ryjl3-tyaaa-aaaaa-aaaba-cai")
	operatorID = account.MustParsePrincipal("r7inp-6aaaa-aaaaa-aaabq-cai")

	activeIDs = ledger.ServiceIDs{
		OldLedger:  account.MustParsePrincipal("rno2w-sqaaa-aaaaa-aaacq-cai"),
		NewLedger:  account.MustParsePrincipal("y4gw4-rqkbi-faucq-kbifa-ucq"),
		OldIndexer: account.MustParsePrincipal("oq36z-ailbm-fqwcy-lbmfq-wcy"),
		NewIndexer: account.MustParsePrincipal("3nygy-vqmbq-gayda-mbqga-yda"),
	}
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	router *gin.Engine
	fakes  *testutil.Fakes
	clock  *testutil.FakeClock
}

func newFixture(t *testing.T, health HealthChecker) *fixture {
	t.Helper()
	cfg := settings.Default()
	cfg.AllowConversions = true
	cfg.AllowBurns = true
	cfg.NewFee = tokens.New(1_000)
	cfg.OldFee = tokens.Old(0)

	f := &fixture{fakes: testutil.NewFakes(swapID), clock: testutil.NewFakeClock(time.Time{})}
	svc := swap.New(swapID, f.fakes,
		swap.WithSettings(cfg),
		swap.WithServiceIDs(activeIDs),
		swap.WithControllers(operatorID),
		swap.WithClock(f.clock),
		swap.WithRequestTokens(testutil.NewFixedTokenGenerator("req")),
	)
	f.router = NewRouter(svc, Config{JWTSecret: secret, Health: health})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, caller *account.Principal, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		token, err := IssueToken(secret, *caller, time.Hour, time.Now())
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Error map[string]any `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","active":true}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	f = newFixture(t, pingFunc(func(context.Context) error { return errors.New("disk gone") }))
	w = f.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type pingFunc func(context.Context) error

func (p pingFunc) Ping(ctx context.Context) error { return p(ctx) }

func TestConvert_DefaultsOwnerToCaller(t *testing.T) {
	f := newFixture(t, nil)
	f.fakes.OldIndexer.Add(testutil.OldTransfer(1, account.New(aliceID), account.New(swapID), 12_000_000_000_000))
	f.fakes.NewLedger.NextID = 77

	w := f.do(t, http.MethodPost, "/v1/convert", &aliceID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"tx_id":77}`, w.Body.String())
	assert.Equal(t, "1199999000", f.fakes.NewLedger.Transfers[0].Amount.String())

	w = f.do(t, http.MethodPost, "/v1/convert", &aliceID, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "ON_COOLDOWN", body["code"])
	assert.Equal(t, "1m0s", body["remaining"])
	assert.Equal(t, "req", body["request_token"])
}

func TestConvert_AnonymousCallerIsInvalidAccount(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodPost, "/v1/convert", nil, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ACCOUNT", decodeError(t, w)["code"])
}

func TestConvert_OwnerChoosesAmount(t *testing.T) {
	f := newFixture(t, nil)
	f.fakes.NewIndexer.Add(testutil.NewTransfer(1, account.New(aliceID), account.New(swapID), 10_000))

	w := f.do(t, http.MethodPost, "/v1/convert", &aliceID, `{"owner":"ryjl3-tyaaa-aaaaa-aaaba-cai","amount":"2500"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "2500", f.fakes.NewLedger.Transfers[0].Amount.String())
}

func TestConvert_ThirdPartyCannotChooseAmount(t *testing.T) {
	f := newFixture(t, nil)
	f.fakes.NewIndexer.Add(testutil.NewTransfer(1, account.New(aliceID), account.New(swapID), 10_000))
	body := `{"owner":"ryjl3-tyaaa-aaaaa-aaaba-cai","amount":"1"}`

	w := f.do(t, http.MethodPost, "/v1/convert", nil, body)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.Equal(t, "NOT_PRIVILEGED", decodeError(t, w)["code"])

	bobID := account.MustParsePrincipal("rkp4c-7iaaa-aaaaa-aaaca-cai")
	w = f.do(t, http.MethodPost, "/v1/convert", &bobID, body)
	assert.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	assert.Zero(t, f.fakes.NewLedger.TransferCount())

	// The rejected requests left no cooldown behind.
	w = f.do(t, http.MethodPost, "/v1/convert", &aliceID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "9000", f.fakes.NewLedger.Transfers[0].Amount.String())
}

func TestConvert_ThirdPartyWholeBalancePaysOwner(t *testing.T) {
	f := newFixture(t, nil)
	f.fakes.NewIndexer.Add(testutil.NewTransfer(1, account.New(aliceID), account.New(swapID), 10_000))

	w := f.do(t, http.MethodPost, "/v1/convert", nil, `{"owner":"ryjl3-tyaaa-aaaaa-aaaba-cai"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sent := f.fakes.NewLedger.Transfers[0]
	assert.Equal(t, "9000", sent.Amount.String())
	assert.Equal(t, aliceID, sent.To.Owner)
}

func TestConvert_PrivilegedCallerMayChooseAmount(t *testing.T) {
	f := newFixture(t, nil)
	f.fakes.NewIndexer.Add(testutil.NewTransfer(1, account.New(aliceID), account.New(swapID), 10_000))

	w := f.do(t, http.MethodPost, "/v1/convert", &operatorID, `{"owner":"ryjl3-tyaaa-aaaaa-aaaba-cai","amount":"2500"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "2500", f.fakes.NewLedger.Transfers[0].Amount.String())
}

func TestConvert_BadRequests(t *testing.T) {
	f := newFixture(t, nil)
	cases := map[string]string{
		"bad owner":      `{"owner":"nope"}`,
		"bad subaccount": `{"subaccount":"zz"}`,
		"bad amount":     `{"amount":"-1"}`,
		"bad json":       `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/v1/convert", &aliceID, body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestConvert_StatusMapping(t *testing.T) {
	f := newFixture(t, nil)
	f.fakes.NewIndexer.Add(testutil.NewTransfer(1, account.New(aliceID), account.New(swapID), 200_000_000_000))

	w := f.do(t, http.MethodPost, "/v1/convert", &aliceID, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "IS_SEEDER", decodeError(t, w)["code"])
}

func TestConvert_LedgerRejection(t *testing.T) {
	f := newFixture(t, nil)
	f.fakes.NewIndexer.Add(testutil.NewTransfer(1, account.New(aliceID), account.New(swapID), 10_000))
	f.fakes.NewLedger.Err = &ledger.TransferError{Code: ledger.ErrCodeTemporarilyUnavailable}

	w := f.do(t, http.MethodPost, "/v1/convert", &aliceID, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "LEDGER_REJECTED", body["code"])
	assert.Equal(t, map[string]any{"code": "TemporarilyUnavailable"}, body["ledger_error"])
}

func TestGetAccount(t *testing.T) {
	f := newFixture(t, nil)
	f.fakes.OldIndexer.Add(testutil.OldTransfer(1, account.New(aliceID), account.New(swapID), 12_000_000_000_000))

	w := f.do(t, http.MethodGet, "/v1/accounts/ryjl3-tyaaa-aaaaa-aaaba-cai", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "1200000000", got["total"])
	assert.Equal(t, false, got["is_seeder"])

	w = f.do(t, http.MethodGet, "/v1/accounts/ryjl3-tyaaa-aaaaa-aaaba-cai?subaccount=01", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "subaccount must be 32 bytes")

	w = f.do(t, http.MethodGet, "/v1/accounts/not-a-principal", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBurn(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodPost, "/v1/burn", &aliceID, `{"amount":"1000"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/v1/burn", &operatorID, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/v1/burn", &operatorID, `{"amount":"1000"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, f.fakes.OldLedger.Burns, 1)
	assert.Equal(t, tokens.ScaleOld, f.fakes.OldLedger.Burns[0].Amount.Scale())
}

func TestSettings(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodGet, "/v1/settings", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "1000", got["new_fee"])

	update := `{"allow_conversions": false, "cooldown": "2m", "admins": ["ryjl3-tyaaa-aaaaa-aaaba-cai"]}`
	w = f.do(t, http.MethodPut, "/v1/settings", &aliceID, update)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPut, "/v1/settings", &operatorID, `{"scale_factor": 0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPut, "/v1/settings", &operatorID, update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"updated":true}`, w.Body.String())

	w = f.do(t, http.MethodGet, "/v1/settings", nil, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "2m0s", got["cooldown"])
	assert.Equal(t, "1000000", got["new_fee"], "absent fields reset to defaults")

	// alice is now an admin.
	w = f.do(t, http.MethodPut, "/v1/settings", &aliceID, `{}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServiceIDs(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodGet, "/v1/canisters", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var ids ledger.ServiceIDs
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ids))
	assert.Equal(t, activeIDs, ids)

	blank := `{"old_ledger":"aaaaa-aa","new_ledger":"aaaaa-aa","old_indexer":"aaaaa-aa","new_indexer":"aaaaa-aa"}`
	w = f.do(t, http.MethodPut, "/v1/canisters", &aliceID, blank)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPut, "/v1/canisters", &operatorID, blank)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/v1/convert", &aliceID, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "NOT_ACTIVE", decodeError(t, w)["code"])
}

func TestIdentify_RejectsBadTokens(t *testing.T) {
	f := newFixture(t, nil)

	for name, header := range map[string]string{
		"not bearer":   "Basic abc",
		"garbage":      "Bearer abc",
		"wrong secret": "Bearer " + mustIssue(t, []byte("other"), aliceID, time.Hour, time.Now()),
		"expired":      "Bearer " + mustIssue(t, secret, aliceID, time.Minute, time.Now().Add(-time.Hour)),
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/settings", nil)
			req.Header.Set("Authorization", header)
			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestParseToken_RoundTrip(t *testing.T) {
	token := mustIssue(t, secret, aliceID, 0, time.Now())
	p, err := ParseToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, aliceID, p)
}

func mustIssue(t *testing.T, key []byte, p account.Principal, ttl time.Duration, now time.Time) string {
	t.Helper()
	token, err := IssueToken(key, p, ttl, now)
	require.NoError(t, err)
	return token
}
