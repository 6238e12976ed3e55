package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpHandler "luka-points/internal/adapter/http/handler"
	"luka-points/internal/adapter/storage/postgres"
	redisStorage "luka-points/internal/adapter/storage/redis"
	"luka-points/internal/core/domain"
	"luka-points/internal/qr"
	"luka-points/internal/service"
	"luka-points/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp builds a full application stack over in-memory repos, with the
// relational store adapted on top of them. This exercises the real HTTP
// layer, middleware, handlers, services, and the atomic transfer path
// end-to-end.

type testApp struct {
	server      *httptest.Server
	redis       *miniredis.Miniredis
	transferSvc *service.TransferServiceImpl
}

func newTestApp(t *testing.T, withRateLimit bool) *testApp {
	t.Helper()

	log := logger.New("debug", false)

	accountRepo := newInMemoryAccountRepo()
	transferRepo := newInMemoryTransferRepo()
	store := postgres.NewStore(accountRepo, transferRepo, newInMemoryTransactor(), log)

	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", 24*time.Hour, "test-issuer")
	authSvc := service.NewAuthService(accountRepo, hashSvc, tokenSvc, 500)
	transferSvc := service.NewTransferService(store, store, service.ModeSerialized, log)

	var (
		mr             *miniredis.Miniredis
		rateLimitStore *redisStorage.RateLimitStore
	)
	if withRateLimit {
		mr = miniredis.RunT(t)
		rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		TransferSvc:    transferSvc,
		BalanceStore:   store,
		TransferLog:    store,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		Logger:         log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testApp{
		server:      server,
		redis:       mr,
		transferSvc: transferSvc,
	}
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", string(raw))
	}
	return resp.StatusCode, decoded
}

func (a *testApp) register(t *testing.T, email, name, role string) {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"name":     name,
		"role":     role,
		"password": "StrongPass123!",
	})
	require.Equal(t, http.StatusCreated, status, "register response: %v", body)
}

func (a *testApp) login(t *testing.T, email string) string {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    email,
		"password": "StrongPass123!",
	})
	require.Equal(t, http.StatusOK, status, "login response: %v", body)
	data := body["data"].(map[string]interface{})
	return data["token"].(string)
}

func (a *testApp) balance(t *testing.T, token, ref string) int64 {
	t.Helper()
	path := "/api/v1/accounts/balance"
	if ref != "" {
		path += "?ref=" + ref
	}
	status, body := a.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, status, "balance response: %v", body)
	data := body["data"].(map[string]interface{})
	return int64(data["balance"].(float64))
}

// --- Integration Tests ---

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t, false)

	status, body := app.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_RegisterLoginAndBalance(t *testing.T) {
	app := newTestApp(t, false)

	app.register(t, "alice@example.com", "Alice", "student")
	token := app.login(t, "alice@example.com")

	// Every new account starts with the configured grant.
	assert.Equal(t, int64(500), app.balance(t, token, ""))
}

func TestIntegration_LoginWrongCredentials(t *testing.T) {
	app := newTestApp(t, false)

	app.register(t, "alice@example.com", "Alice", "student")

	status, body := app.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "not-the-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])
}

func TestIntegration_DuplicateEmail(t *testing.T) {
	app := newTestApp(t, false)

	app.register(t, "alice@example.com", "Alice", "student")

	status, body := app.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "alice@example.com",
		"name":     "Alice Again",
		"role":     "student",
		"password": "StrongPass123!",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "AUTH_002", body["error_code"])
}

func TestIntegration_Unauthorized(t *testing.T) {
	app := newTestApp(t, false)

	status, _ := app.do(t, http.MethodGet, "/api/v1/accounts/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestIntegration_TransferEndToEnd(t *testing.T) {
	app := newTestApp(t, false)

	app.register(t, "alice@example.com", "Alice", "student")
	app.register(t, "bob@example.com", "Bob", "student")
	aliceToken := app.login(t, "alice@example.com")
	bobToken := app.login(t, "bob@example.com")

	status, body := app.do(t, http.MethodPost, "/api/v1/transfers", aliceToken, map[string]interface{}{
		"destinationAccountId": "bob@example.com",
		"amount":               int64(75),
	})
	require.Equal(t, http.StatusCreated, status, "transfer response: %v", body)

	data := body["data"].(map[string]interface{})
	transferID := data["id"].(string)
	assert.NotEmpty(t, transferID)
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, float64(75), data["amount"])

	assert.Equal(t, int64(425), app.balance(t, aliceToken, ""))
	assert.Equal(t, int64(575), app.balance(t, bobToken, ""))

	// The record is retrievable by id.
	status, body = app.do(t, http.MethodGet, "/api/v1/transfers/"+transferID, aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	fetched := body["data"].(map[string]interface{})
	assert.Equal(t, transferID, fetched["id"])
}

func TestIntegration_TransferHistoryNewestFirst(t *testing.T) {
	app := newTestApp(t, false)

	app.register(t, "alice@example.com", "Alice", "student")
	app.register(t, "bob@example.com", "Bob", "student")
	aliceToken := app.login(t, "alice@example.com")

	for _, amount := range []int64{10, 20, 30} {
		status, body := app.do(t, http.MethodPost, "/api/v1/transfers", aliceToken, map[string]interface{}{
			"destinationAccountId": "bob@example.com",
			"amount":               amount,
		})
		require.Equal(t, http.StatusCreated, status, "transfer response: %v", body)
	}

	status, body := app.do(t, http.MethodGet, "/api/v1/transfers/account/alice@example.com", aliceToken, nil)
	require.Equal(t, http.StatusOK, status, "history response: %v", body)

	records := body["data"].([]interface{})
	require.Len(t, records, 3)
	amounts := make([]float64, 0, 3)
	for _, rec := range records {
		amounts = append(amounts, rec.(map[string]interface{})["amount"].(float64))
	}
	assert.Equal(t, []float64{30, 20, 10}, amounts)
}

func TestIntegration_TransferErrors(t *testing.T) {
	app := newTestApp(t, false)

	app.register(t, "alice@example.com", "Alice", "student")
	app.register(t, "bob@example.com", "Bob", "student")
	aliceToken := app.login(t, "alice@example.com")

	tests := []struct {
		name       string
		body       map[string]interface{}
		wantStatus int
		wantCode   string
	}{
		{
			name: "insufficient funds",
			body: map[string]interface{}{
				"destinationAccountId": "bob@example.com",
				"amount":               int64(10_000),
			},
			wantStatus: http.StatusPaymentRequired,
			wantCode:   "TRF_004",
		},
		{
			name: "self transfer",
			body: map[string]interface{}{
				"destinationAccountId": "alice@example.com",
				"amount":               int64(10),
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "TRF_002",
		},
		{
			name: "unknown recipient",
			body: map[string]interface{}{
				"destinationAccountId": "nobody@example.com",
				"amount":               int64(10),
			},
			wantStatus: http.StatusNotFound,
			wantCode:   "TRF_003",
		},
		{
			name: "negative amount",
			body: map[string]interface{}{
				"destinationAccountId": "bob@example.com",
				"amount":               int64(-5),
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "TRF_001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := app.do(t, http.MethodPost, "/api/v1/transfers", aliceToken, tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body["error_code"])
		})
	}

	// Failed attempts never appear in history.
	status, body := app.do(t, http.MethodGet, "/api/v1/transfers/account/alice@example.com", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["data"])

	// And never move points.
	assert.Equal(t, int64(500), app.balance(t, aliceToken, ""))
}

func TestIntegration_SourceOverrideRequiresAdmin(t *testing.T) {
	app := newTestApp(t, false)

	app.register(t, "alice@example.com", "Alice", "student")
	app.register(t, "bob@example.com", "Bob", "student")
	app.register(t, "root@example.com", "Root", "admin")
	aliceToken := app.login(t, "alice@example.com")
	adminToken := app.login(t, "root@example.com")

	// A student may not move someone else's points.
	status, body := app.do(t, http.MethodPost, "/api/v1/transfers", aliceToken, map[string]interface{}{
		"sourceAccountId":      "bob@example.com",
		"destinationAccountId": "alice@example.com",
		"amount":               int64(10),
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "AUTH_004", body["error_code"])

	// An admin may.
	status, body = app.do(t, http.MethodPost, "/api/v1/transfers", adminToken, map[string]interface{}{
		"sourceAccountId":      "bob@example.com",
		"destinationAccountId": "alice@example.com",
		"amount":               int64(10),
	})
	require.Equal(t, http.StatusCreated, status, "transfer response: %v", body)
	assert.Equal(t, int64(490), app.balance(t, adminToken, "bob@example.com"))
}

func TestIntegration_AdminSetBalance(t *testing.T) {
	app := newTestApp(t, false)

	app.register(t, "alice@example.com", "Alice", "student")
	app.register(t, "root@example.com", "Root", "admin")
	aliceToken := app.login(t, "alice@example.com")
	adminToken := app.login(t, "root@example.com")

	status, body := app.do(t, http.MethodPut, "/api/v1/accounts/balance", aliceToken, map[string]interface{}{
		"ref":     "alice@example.com",
		"balance": int64(9999),
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "AUTH_004", body["error_code"])

	status, body = app.do(t, http.MethodPut, "/api/v1/accounts/balance", adminToken, map[string]interface{}{
		"ref":     "alice@example.com",
		"balance": int64(1200),
	})
	require.Equal(t, http.StatusOK, status, "set balance response: %v", body)
	assert.Equal(t, int64(1200), app.balance(t, aliceToken, ""))
}

func TestIntegration_AccountExists(t *testing.T) {
	app := newTestApp(t, false)

	app.register(t, "alice@example.com", "Alice", "student")
	token := app.login(t, "alice@example.com")

	status, body := app.do(t, http.MethodGet, "/api/v1/accounts/exists/alice@example.com", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["data"].(map[string]interface{})["exists"])

	status, body = app.do(t, http.MethodGet, "/api/v1/accounts/exists/nobody@example.com", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["data"].(map[string]interface{})["exists"])
}

// A scanned payment request and a manually entered transfer go through
// the same pipeline: encode the request into a QR image, decode it back,
// and execute it over the HTTP API.
func TestIntegration_ScannedPaymentEndToEnd(t *testing.T) {
	app := newTestApp(t, false)

	app.register(t, "alice@example.com", "Alice", "student")
	app.register(t, "bob@example.com", "Bob", "student")
	aliceToken := app.login(t, "alice@example.com")

	png, err := qr.EncodePaymentRequest(domain.PaymentRequest{
		Identifier: "bob@example.com",
		Amount:     30,
	})
	require.NoError(t, err)

	decoded, err := qr.DecodePaymentRequest(png)
	require.NoError(t, err)

	status, body := app.do(t, http.MethodPost, "/api/v1/transfers", aliceToken, map[string]interface{}{
		"destinationAccountId": decoded.Identifier,
		"amount":               decoded.Amount,
	})
	require.Equal(t, http.StatusCreated, status, "transfer response: %v", body)

	assert.Equal(t, int64(470), app.balance(t, aliceToken, ""))
	assert.Equal(t, int64(530), app.balance(t, aliceToken, "bob@example.com"))
}

func TestIntegration_ScannedPaymentViaService(t *testing.T) {
	app := newTestApp(t, false)

	app.register(t, "alice@example.com", "Alice", "student")
	app.register(t, "bob@example.com", "Bob", "student")
	aliceToken := app.login(t, "alice@example.com")

	png, err := qr.EncodePaymentRequest(domain.PaymentRequest{
		Identifier: "bob@example.com",
		Amount:     55,
	})
	require.NoError(t, err)

	decoded, err := qr.DecodePaymentRequest(png)
	require.NoError(t, err)

	transfer, err := app.transferSvc.TransferFromPayment(
		context.Background(), domain.RefFromEmail("alice@example.com"), *decoded)
	require.NoError(t, err)
	assert.Equal(t, int64(55), transfer.Amount)

	assert.Equal(t, int64(445), app.balance(t, aliceToken, ""))
	assert.Equal(t, int64(555), app.balance(t, aliceToken, "bob@example.com"))
}

func TestIntegration_RateLimitRegister(t *testing.T) {
	app := newTestApp(t, true)

	// The register group allows five requests per window.
	for i := 0; i < 5; i++ {
		status, _ := app.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
			"email":    fmt.Sprintf("user%d@example.com", i),
			"name":     "User",
			"role":     "student",
			"password": "StrongPass123!",
		})
		require.Equal(t, http.StatusCreated, status)
	}

	status, body := app.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "user6@example.com",
		"name":     "User",
		"role":     "student",
		"password": "StrongPass123!",
	})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_001", body["error_code"])

	// Counters expire with the window.
	app.redis.FastForward(2 * time.Hour)
	status, _ = app.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "user7@example.com",
		"name":     "User",
		"role":     "student",
		"password": "StrongPass123!",
	})
	assert.Equal(t, http.StatusCreated, status)
}
