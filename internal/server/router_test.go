package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/subseaops/divelog/internal/auth"
	"github.com/subseaops/divelog/internal/divers"
	"github.com/subseaops/divelog/internal/dives"
	"github.com/subseaops/divelog/internal/jobs"
	"github.com/subseaops/divelog/internal/profiles"
	"github.com/subseaops/divelog/internal/reports"
)

const jsonContentType = "application/json"

type testClock struct {
	current time.Time
}

func (c *testClock) Now() time.Time {
	return c.current
}

type testHarness struct {
	server     *httptest.Server
	db         *gorm.DB
	dispatcher *RealtimeDispatcher
	clock      *testClock
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:divelog_server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	err = db.AutoMigrate(&jobs.Job{}, &divers.Diver{}, &divers.Rank{}, &profiles.Profile{}, &dives.Dive{}, &dives.Event{}, &auth.Account{})
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	clock := &testClock{current: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	idProvider := dives.NewUUIDProvider()

	issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("server-test-secret"),
		Issuer:        "divelog-auth",
		Audience:      "divelog-api",
		TokenTTL:      time.Hour,
	})
	accounts, err := auth.NewService(auth.ServiceConfig{Database: db, IDProvider: idProvider, Issuer: issuer, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to build account service: %v", err)
	}
	profileService, err := profiles.NewService(profiles.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build profile service: %v", err)
	}
	jobService, err := jobs.NewService(jobs.ServiceConfig{Database: db, IDProvider: idProvider})
	if err != nil {
		t.Fatalf("failed to build job service: %v", err)
	}
	diverService, err := divers.NewService(divers.ServiceConfig{Database: db, IDProvider: idProvider})
	if err != nil {
		t.Fatalf("failed to build diver service: %v", err)
	}
	reportService, err := reports.NewService(reports.ServiceConfig{Database: db, IDProvider: idProvider})
	if err != nil {
		t.Fatalf("failed to build report service: %v", err)
	}
	store, err := dives.NewStore(db)
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}

	dispatcher := NewRealtimeDispatcher()
	sessions, err := dives.NewManager(dives.ManagerConfig{
		Gateway:    store,
		Profiles:   profileService,
		Clock:      clock.Now,
		IDProvider: idProvider,
		Logger:     zap.NewNop(),
		Notify: func(diveID string) {
			dispatcher.Publish(RealtimeMessage{EventType: RealtimeEventDiveChanged, DiveID: diveID, Timestamp: clock.Now()})
		},
	})
	if err != nil {
		t.Fatalf("failed to build session manager: %v", err)
	}
	t.Cleanup(sessions.Close)

	handler, err := NewHTTPHandler(Dependencies{
		Accounts:   accounts,
		Tokens:     issuer,
		Jobs:       jobService,
		Divers:     diverService,
		Sessions:   sessions,
		History:    store,
		Reports:    reportService,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		Clock:      clock.Now,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &testHarness{server: server, db: db, dispatcher: dispatcher, clock: clock}
}

func (h *testHarness) request(t *testing.T, method, path, token string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to encode payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.server.URL+path, body)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", jsonContentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func (h *testHarness) signUp(t *testing.T, email string) string {
	t.Helper()
	resp := h.request(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":    email,
		"password": "correct-horse",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected signup status: %d", resp.StatusCode)
	}
	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode signup response: %v", err)
	}
	if payload.AccessToken == "" {
		t.Fatalf("expected access token")
	}
	return payload.AccessToken
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestProtectedRoutesRequireBearerToken(t *testing.T) {
	harness := newTestHarness(t)

	resp := harness.request(t, http.MethodGet, "/jobs", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp = harness.request(t, http.MethodGet, "/jobs", "not-a-real-token", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", resp.StatusCode)
	}
}

func TestSignUpAndSignIn(t *testing.T) {
	harness := newTestHarness(t)
	harness.signUp(t, "super@example.com")

	resp := harness.request(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":    "super@example.com",
		"password": "another-pass",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", resp.StatusCode)
	}

	resp = harness.request(t, http.MethodPost, "/auth/signin", "", map[string]string{
		"email":    "super@example.com",
		"password": "wrong-password",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", resp.StatusCode)
	}

	resp = harness.request(t, http.MethodPost, "/auth/signin", "", map[string]string{
		"email":    "super@example.com",
		"password": "correct-horse",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for valid sign in, got %d", resp.StatusCode)
	}
	var credentials struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	decodeBody(t, resp, &credentials)
	if credentials.AccessToken == "" || credentials.TokenType != "Bearer" {
		t.Fatalf("unexpected credentials payload: %+v", credentials)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	harness := newTestHarness(t)
	token := harness.signUp(t, "super@example.com")

	resp := harness.request(t, http.MethodPost, "/dives/session/start", token, map[string]string{
		"job_id": "", "diver_id": "diver-1",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank job, got %d", resp.StatusCode)
	}

	resp = harness.request(t, http.MethodPost, "/dives/session/start", token, map[string]string{
		"job_id": "job-1", "diver_id": "diver-1",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var started struct {
		DiveID string `json:"dive_id"`
		DiveNo int64  `json:"dive_no"`
		Status string `json:"status"`
	}
	decodeBody(t, resp, &started)
	if started.DiveID == "" || started.DiveNo != 1 || started.Status != string(dives.DiveStatusInProgress) {
		t.Fatalf("unexpected start payload: %+v", started)
	}

	resp = harness.request(t, http.MethodPost, "/dives/session/start", token, map[string]string{
		"job_id": "job-2", "diver_id": "diver-2",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for second session, got %d", resp.StatusCode)
	}

	resp = harness.request(t, http.MethodPut, "/dives/session/depth", token, map[string]float64{"depth": 24})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for depth update, got %d", resp.StatusCode)
	}

	harness.clock.current = harness.clock.current.Add(30 * time.Second)
	resp = harness.request(t, http.MethodPost, "/dives/session/events", token, map[string]string{
		"event_type": "On Bottom", "description": "Reached work site",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for event, got %d", resp.StatusCode)
	}
	var event struct {
		EventType string  `json:"event_type"`
		Depth     float64 `json:"depth"`
	}
	decodeBody(t, resp, &event)
	if event.EventType != "On Bottom" || event.Depth != 24 {
		t.Fatalf("unexpected event payload: %+v", event)
	}

	resp = harness.request(t, http.MethodGet, "/dives/session", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for session state, got %d", resp.StatusCode)
	}
	var state struct {
		Active         bool    `json:"active"`
		DiveID         string  `json:"dive_id"`
		ElapsedSeconds int64   `json:"elapsed_seconds"`
		Elapsed        string  `json:"elapsed"`
		Depth          float64 `json:"depth"`
		Events         []struct {
			EventType string `json:"event_type"`
		} `json:"events"`
	}
	decodeBody(t, resp, &state)
	if !state.Active || state.DiveID != started.DiveID {
		t.Fatalf("expected active session, got %+v", state)
	}
	if state.ElapsedSeconds != 30 || state.Elapsed != "00:00:30" {
		t.Fatalf("unexpected elapsed: %+v", state)
	}
	if len(state.Events) != 2 || state.Events[0].EventType != "On Bottom" {
		t.Fatalf("expected most-recent-first log, got %+v", state.Events)
	}

	harness.clock.current = harness.clock.current.Add(40 * time.Second)
	resp = harness.request(t, http.MethodPost, "/dives/session/stop", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for stop, got %d", resp.StatusCode)
	}

	resp = harness.request(t, http.MethodPost, "/dives/session/stop", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for stop without session, got %d", resp.StatusCode)
	}

	var stored dives.Dive
	if err := harness.db.Where("id = ?", started.DiveID).Take(&stored).Error; err != nil {
		t.Fatalf("failed to load dive: %v", err)
	}
	if stored.Status != dives.DiveStatusCompleted {
		t.Fatalf("expected completed dive, got %s", stored.Status)
	}
	if stored.BottomTime != "1 minutes" {
		t.Fatalf("unexpected bottom time %q", stored.BottomTime)
	}
	if stored.MaxDepth != 24 {
		t.Fatalf("unexpected max depth %f", stored.MaxDepth)
	}
}

func TestManualCompletionAcceptsEarlierTimestamp(t *testing.T) {
	harness := newTestHarness(t)
	token := harness.signUp(t, "super@example.com")

	resp := harness.request(t, http.MethodPost, "/dives/session/start", token, map[string]string{
		"job_id": "job-1", "diver_id": "diver-1",
	})
	var started struct {
		DiveID string `json:"dive_id"`
	}
	decodeBody(t, resp, &started)

	endInstant := harness.clock.current.Add(-2 * time.Minute).Format(time.RFC3339)
	resp = harness.request(t, http.MethodPost, "/dives/session/complete", token, map[string]string{
		"event_time": endInstant,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	var stored dives.Dive
	if err := harness.db.Where("id = ?", started.DiveID).Take(&stored).Error; err != nil {
		t.Fatalf("failed to load dive: %v", err)
	}
	if stored.BottomTime != "-2 minutes" {
		t.Fatalf("expected negative bottom time persisted as-is, got %q", stored.BottomTime)
	}
}

func TestJobHistoryAndCascadeDelete(t *testing.T) {
	harness := newTestHarness(t)
	token := harness.signUp(t, "super@example.com")

	resp := harness.request(t, http.MethodPost, "/dives/session/start", token, map[string]string{
		"job_id": "job-1", "diver_id": "diver-1",
	})
	var started struct {
		DiveID string `json:"dive_id"`
	}
	decodeBody(t, resp, &started)
	resp = harness.request(t, http.MethodPost, "/dives/session/stop", token, nil)
	resp.Body.Close()

	resp = harness.request(t, http.MethodGet, "/jobs/job-1/history", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for history, got %d", resp.StatusCode)
	}
	var history struct {
		Dives []struct {
			DiveID string `json:"dive_id"`
		} `json:"dives"`
	}
	decodeBody(t, resp, &history)
	if len(history.Dives) != 1 || history.Dives[0].DiveID != started.DiveID {
		t.Fatalf("unexpected history: %+v", history)
	}

	resp = harness.request(t, http.MethodDelete, "/dives/"+started.DiveID, token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204 for delete, got %d", resp.StatusCode)
	}

	var diveCount, eventCount int64
	harness.db.Model(&dives.Dive{}).Where("id = ?", started.DiveID).Count(&diveCount)
	harness.db.Model(&dives.Event{}).Where("dive_id = ?", started.DiveID).Count(&eventCount)
	if diveCount != 0 || eventCount != 0 {
		t.Fatalf("expected cascade delete, got %d dives and %d events", diveCount, eventCount)
	}
}

func TestJobAndDiverEndpoints(t *testing.T) {
	harness := newTestHarness(t)
	token := harness.signUp(t, "super@example.com")

	resp := harness.request(t, http.MethodPost, "/jobs", token, map[string]string{
		"job_name": "Pier Inspection", "client_name": "Harbor Authority",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for job create, got %d", resp.StatusCode)
	}
	var job struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeBody(t, resp, &job)
	if job.Status != string(jobs.JobStatusActive) {
		t.Fatalf("expected active default, got %s", job.Status)
	}

	resp = harness.request(t, http.MethodPost, "/jobs", token, map[string]string{"job_name": "  "})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank job name, got %d", resp.StatusCode)
	}

	resp = harness.request(t, http.MethodPost, "/divers", token, map[string]string{
		"full_name": "Sam Reed", "rank": "Diver 1",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for diver create, got %d", resp.StatusCode)
	}

	resp = harness.request(t, http.MethodGet, "/jobs/active", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for active jobs, got %d", resp.StatusCode)
	}
	var activeJobs struct {
		Jobs []struct {
			ID string `json:"id"`
		} `json:"jobs"`
	}
	decodeBody(t, resp, &activeJobs)
	if len(activeJobs.Jobs) != 1 || activeJobs.Jobs[0].ID != job.ID {
		t.Fatalf("unexpected active jobs: %+v", activeJobs)
	}
}

func TestDiveReportEndpoint(t *testing.T) {
	harness := newTestHarness(t)
	token := harness.signUp(t, "super@example.com")

	resp := harness.request(t, http.MethodPost, "/dives/session/start", token, map[string]string{
		"job_id": "job-1", "diver_id": "diver-1",
	})
	var started struct {
		DiveID string `json:"dive_id"`
	}
	decodeBody(t, resp, &started)
	harness.clock.current = harness.clock.current.Add(time.Minute)
	resp = harness.request(t, http.MethodPost, "/dives/session/stop", token, nil)
	resp.Body.Close()

	resp = harness.request(t, http.MethodGet, "/reports/dives/"+started.DiveID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for report, got %d", resp.StatusCode)
	}
	var report struct {
		DiveID string `json:"dive_id"`
		Events []struct {
			EventType string `json:"event_type"`
		} `json:"events"`
	}
	decodeBody(t, resp, &report)
	if report.DiveID != started.DiveID {
		t.Fatalf("unexpected report dive id %s", report.DiveID)
	}
	if len(report.Events) != 2 || report.Events[0].EventType != dives.EventTypeDiveStarted {
		t.Fatalf("expected chronological bookends, got %+v", report.Events)
	}

	resp = harness.request(t, http.MethodGet, "/reports/dives/missing", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing dive, got %d", resp.StatusCode)
	}
}

func TestDailyReportDefaultsToToday(t *testing.T) {
	harness := newTestHarness(t)
	token := harness.signUp(t, "super@example.com")

	resp := harness.request(t, http.MethodPost, "/dives/session/start", token, map[string]string{
		"job_id": "job-1", "diver_id": "diver-1",
	})
	resp.Body.Close()

	resp = harness.request(t, http.MethodGet, "/reports/daily", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for daily report, got %d", resp.StatusCode)
	}
	var daily struct {
		Date  string `json:"date"`
		Dives []struct {
			DiveNo int64 `json:"dive_no"`
		} `json:"dives"`
	}
	decodeBody(t, resp, &daily)
	if daily.Date != "2026-03-01" {
		t.Fatalf("expected clock date, got %s", daily.Date)
	}
	if len(daily.Dives) != 1 {
		t.Fatalf("expected 1 dive, got %d", len(daily.Dives))
	}

	resp = harness.request(t, http.MethodGet, "/reports/daily?date=bogus", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid date, got %d", resp.StatusCode)
	}
}
