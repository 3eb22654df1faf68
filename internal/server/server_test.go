package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/winwai/raffled/internal/clock"
	"github.com/winwai/raffled/internal/config"
	"github.com/winwai/raffled/internal/events"
	"github.com/winwai/raffled/internal/raffle/domain"
	"github.com/winwai/raffled/internal/raffle/service"
	"github.com/winwai/raffled/internal/selection"
)

const (
	adminToken = "test-admin-token"
	userToken  = "test-user-token"
)

var requestInstant = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, cfg config.Config) (*Server, *gorm.DB) {
	t.Helper()
	return newTestServerWithLogger(t, cfg, zap.NewNop())
}

func newTestServerWithLogger(t *testing.T, cfg config.Config, log *zap.Logger) (*Server, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Raffle{},
		&domain.Entry{},
		&domain.RaffleHistory{},
		&domain.Reward{},
		&events.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	admin := domain.User{
		ID:           11,
		DisplayName:  "Admin",
		APITokenHash: domain.HashAPIToken(adminToken),
		IsAdmin:      true,
		CreatedAt:    requestInstant,
	}
	watcher := domain.User{
		ID:           12,
		DisplayName:  "Watcher",
		APITokenHash: domain.HashAPIToken(userToken),
		CreatedAt:    requestInstant,
	}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	if err := db.Create(&watcher).Error; err != nil {
		t.Fatalf("seed watcher: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	svc := service.NewService(service.ServiceParam{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  clock.Fixed(requestInstant),
		Config: cfg,
		Picker: selection.NewPicker(11),
		Outbox: events.NewOutbox(db, node),
	})
	srv := NewServer(ServerParam{
		DB:     db,
		Log:    log,
		Config: cfg,
		Svc:    svc,
	})
	return srv, db
}

func defaultTestConfig() config.Config {
	return config.Config{
		Environment:        "test",
		DefaultECPM:        3,
		DefaultFillRate:    0.9,
		RewardValidityDays: 90,
		StatsCacheTTL:      time.Minute,
		AdViewRateLimit:    100,
		AdViewRateWindow:   time.Minute,
	}
}

func seedActiveRaffle(t *testing.T, db *gorm.DB, id snowflake.ID, withEntry bool) {
	t.Helper()
	raffle := domain.Raffle{
		ID:           id,
		Title:        "Dinner for Two",
		Category:     "dining",
		PrizeValue:   100,
		ECPM:         3,
		FillRate:     0.9,
		TotalAdViews: 50000,
		DrawDate:     requestInstant.Add(-time.Hour),
		Status:       domain.RaffleStatusActive,
		CreatedAt:    requestInstant.Add(-10 * 24 * time.Hour),
		UpdatedAt:    requestInstant.Add(-time.Hour),
	}
	if err := db.Create(&raffle).Error; err != nil {
		t.Fatalf("seed raffle: %v", err)
	}
	if withEntry {
		entry := domain.Entry{
			ID: id + 100000, RaffleID: id, UserID: 12, Tickets: 4,
			EnteredAt: requestInstant.Add(-time.Hour),
		}
		if err := db.Create(&entry).Error; err != nil {
			t.Fatalf("seed entry: %v", err)
		}
	}
}

func doRequest(srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error.Code
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, defaultTestConfig())

	rec := doRequest(srv, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, db := newTestServer(t, defaultTestConfig())
	seedActiveRaffle(t, db, 3001, false)

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"unknown token", "not-a-real-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(srv, http.MethodPost, "/v1/raffles/3001/ad-views", tt.token, nil)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if code := errorCode(t, rec); code != "unauthenticated" {
				t.Fatalf("expected unauthenticated code, got %q", code)
			}
		})
	}

	// Malformed Authorization header shape.
	req := httptest.NewRequest(http.MethodPost, "/v1/raffles/3001/ad-views", nil)
	req.Header.Set("Authorization", "Bearer")
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("malformed header: expected 401, got %d", rec.Code)
	}
}

func TestAdminRequired(t *testing.T) {
	srv, db := newTestServer(t, defaultTestConfig())
	seedActiveRaffle(t, db, 3002, true)

	rec := doRequest(srv, http.MethodPost, "/v1/raffles/3002/draw", userToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "permission-denied" {
		t.Fatalf("expected permission-denied code, got %q", code)
	}
}

func TestRunDrawManualEndpoint(t *testing.T) {
	srv, db := newTestServer(t, defaultTestConfig())
	seedActiveRaffle(t, db, 3003, true)

	rec := doRequest(srv, http.MethodPost, "/v1/raffles/3003/draw", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Success bool `json:"success"`
		Result  struct {
			Status   string `json:"status"`
			WinnerID string `json:"winner_id"`
		} `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Success || body.Result.Status != "completed" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if body.Result.WinnerID == "" {
		t.Fatal("expected a winner id in the response")
	}

	// Repeating the draw is a conflict, not a second completion.
	rec = doRequest(srv, http.MethodPost, "/v1/raffles/3003/draw", adminToken, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("repeat draw: expected 409, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "conflict" {
		t.Fatalf("expected conflict code, got %q", code)
	}
}

func TestRunDrawManualUnknownRaffle(t *testing.T) {
	srv, _ := newTestServer(t, defaultTestConfig())

	rec := doRequest(srv, http.MethodPost, "/v1/raffles/424242/draw", adminToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = doRequest(srv, http.MethodPost, "/v1/raffles/not-an-id/draw", adminToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
}

func TestRecordAdViewsEndpoint(t *testing.T) {
	srv, db := newTestServer(t, defaultTestConfig())
	seedActiveRaffle(t, db, 3004, false)

	// Empty body counts a single view.
	rec := doRequest(srv, http.MethodPost, "/v1/raffles/3004/ad-views", userToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.RecordAdViewsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !resp.Success || resp.AdCount != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	rec = doRequest(srv, http.MethodPost, "/v1/raffles/3004/ad-views", userToken,
		map[string]any{"ad_count": 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("batch: expected 200, got %d", rec.Code)
	}

	var raffle domain.Raffle
	if err := db.First(&raffle, "id = ?", 3004).Error; err != nil {
		t.Fatalf("reload raffle: %v", err)
	}
	if raffle.TotalAdViews != 50006 {
		t.Fatalf("expected 50006 total views, got %d", raffle.TotalAdViews)
	}

	rec = doRequest(srv, http.MethodPost, "/v1/raffles/3004/ad-views", userToken,
		map[string]any{"ad_count": -2})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative count: expected 400, got %d", rec.Code)
	}
	rec = doRequest(srv, http.MethodPost, "/v1/raffles/987654/ad-views", userToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown raffle: expected 404, got %d", rec.Code)
	}
}

func TestRecordAdViewsRateLimited(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.AdViewRateLimit = 2
	srv, db := newTestServer(t, cfg)
	seedActiveRaffle(t, db, 3005, false)

	for i := 0; i < 2; i++ {
		rec := doRequest(srv, http.MethodPost, "/v1/raffles/3005/ad-views", userToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	rec := doRequest(srv, http.MethodPost, "/v1/raffles/3005/ad-views", userToken, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "resource-exhausted" {
		t.Fatalf("expected resource-exhausted code, got %q", code)
	}
}

func TestGetRaffleStatsEndpoint(t *testing.T) {
	srv, db := newTestServer(t, defaultTestConfig())
	seedActiveRaffle(t, db, 3006, true)

	rec := doRequest(srv, http.MethodGet, "/v1/raffles/3006/stats", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var stats domain.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if stats.AdMetrics.RequiredAdViews != 40741 {
		t.Fatalf("required ad views: expected 40741, got %d", stats.AdMetrics.RequiredAdViews)
	}
	if !stats.Eligibility.CanDraw {
		t.Fatal("funded raffle past its date must be drawable")
	}

	rec = doRequest(srv, http.MethodGet, "/v1/raffles/70707/stats", adminToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown raffle: expected 404, got %d", rec.Code)
	}
}

func TestSimulateThresholdEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, defaultTestConfig())

	rec := doRequest(srv, http.MethodPost, "/v1/threshold/simulate", adminToken,
		map[string]any{"prize_value": 100})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		FinalWithMargin int64 `json:"final_with_margin"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.FinalWithMargin != 40741 {
		t.Fatalf("expected 40741 final ads, got %d", body.FinalWithMargin)
	}

	rec = doRequest(srv, http.MethodPost, "/v1/threshold/simulate", adminToken,
		map[string]any{"prize_value": -5})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative prize: expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "invalid-argument" {
		t.Fatalf("expected invalid-argument code, got %q", code)
	}
}

func TestSelectionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, defaultTestConfig())

	rec := doRequest(srv, http.MethodPost, "/v1/selection/test", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var report domain.SelectionReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if report.Iterations != 1000 {
		t.Fatalf("expected default 1000 iterations, got %d", report.Iterations)
	}
	if len(report.Results) != 4 {
		t.Fatalf("expected 4 pool entries, got %d", len(report.Results))
	}

	rec = doRequest(srv, http.MethodPost, "/v1/selection/test", adminToken,
		map[string]any{"iterations": 5_000_000})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("out of range: expected 400, got %d", rec.Code)
	}
}

func TestRequestLogCarriesTraceContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	srv, _ := newTestServerWithLogger(t, defaultTestConfig(), zap.New(core))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	srv.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	entries := logs.FilterMessage("http request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["trace_id"] != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("expected the propagated trace id, got %v", fields["trace_id"])
	}
	if _, ok := fields["span_id"]; !ok {
		t.Fatal("expected a span id on the request log")
	}
}
