package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/artpar/roster/internal/core/domain"
	"github.com/artpar/roster/internal/core/validation"
	"github.com/artpar/roster/internal/shell/audit"
	"github.com/artpar/roster/internal/shell/employees"
	"github.com/artpar/roster/internal/shell/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

type testEnv struct {
	store    *store.SQLiteStore
	activity *audit.ActivityLog
	tracker  *audit.RequestTracker
	router   http.Handler
}

// newTestEnv wires the full stack against an in-memory database.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)

	cfg := audit.Config{BufferSize: 64, WriteTimeout: time.Second, RetryAttempts: 2, RetryDelay: time.Millisecond}
	activity := audit.NewActivityLog(s, cfg, nil)
	tracker := audit.NewRequestTracker(s, cfg, nil)
	activity.Start()
	tracker.Start()

	t.Cleanup(func() {
		activity.Stop()
		tracker.Stop()
		s.Close()
	})

	svc := employees.NewService(s, activity, tracker, nil)
	h := NewHandler(Config{Employees: svc, Store: s, Trails: []Trail{activity, tracker}})

	return &testEnv{store: s, activity: activity, tracker: tracker, router: h.Routes()}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// auditCounts flushes both sinks and returns the row counts of the
// activity and tracking tables.
func (e *testEnv) auditCounts(t *testing.T) (activity, tracking int) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.activity.Flush(ctx))
	require.NoError(t, e.tracker.Flush(ctx))

	activity, err := e.store.CountActivity(ctx)
	require.NoError(t, err)
	tracking, err = e.store.CountTracking(ctx)
	require.NoError(t, err)
	return activity, tracking
}

// parseResponse parses a JSON response body into the given type.
func parseResponse[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var result T
	require.NoError(t, json.NewDecoder(body).Decode(&result))
	return result
}

const anaJSON = `{"name":"Ana","age":30,"position":"Engineer","department":"R&D"}`

// =============================================================================
// Scenario Tests
// =============================================================================

func TestCreateEmployee_Success(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/employees", anaJSON)

	assert.Equal(t, http.StatusOK, rec.Code)
	employee := parseResponse[domain.Employee](t, rec.Body)
	assert.Positive(t, employee.ID)
	assert.Equal(t, "Ana", employee.Name)
	assert.Equal(t, 30, employee.Age)
	assert.Equal(t, "Engineer", employee.Position)
	assert.Equal(t, "R&D", employee.Department)

	activity, tracking := env.auditCounts(t)
	assert.Equal(t, 1, activity)
	assert.Equal(t, 1, tracking)
}

func TestCreateEmployee_ResponseHasExactlyFiveFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/employees", anaJSON)
	require.Equal(t, http.StatusOK, rec.Code)

	body := parseResponse[map[string]any](t, rec.Body)
	assert.Len(t, body, 5)
	for _, key := range []string{"id", "name", "age", "position", "department"} {
		assert.Contains(t, body, key)
	}
}

func TestCreateEmployee_EmptyName(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/employees", `{"name":"","age":30,"position":"Engineer","department":"R&D"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := parseResponse[employees.ValidationErrorsBody](t, rec.Body)
	assert.Equal(t, []string{validation.MsgNameInvalid}, body.Errors)

	list := env.do(t, http.MethodGet, "/api/employees", "")
	assert.Empty(t, parseResponse[[]domain.Employee](t, list.Body), "nothing persisted")
}

func TestCreateEmployee_AllFieldsInvalid(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/employees", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := parseResponse[employees.ValidationErrorsBody](t, rec.Body)
	assert.Equal(t, []string{
		validation.MsgNameInvalid,
		validation.MsgAgeInvalid,
		validation.MsgPositionInvalid,
		validation.MsgDepartmentInvalid,
	}, body.Errors)
}

func TestCreateEmployee_MalformedBody(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/employees", `{"name":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := parseResponse[employees.ValidationErrorsBody](t, rec.Body)
	assert.Equal(t, []string{employees.MsgBodyNotObject}, body.Errors)

	activity, tracking := env.auditCounts(t)
	assert.Equal(t, 1, activity)
	assert.Equal(t, 1, tracking)
}

func TestCreateEmployee_BodyTooLarge(t *testing.T) {
	env := newTestEnv(t)

	huge := `{"name":"` + strings.Repeat("a", int(DefaultMaxBodyBytes)) + `"}`
	rec := env.do(t, http.MethodPost, "/api/employees", huge)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := parseResponse[employees.ValidationErrorsBody](t, rec.Body)
	assert.Equal(t, []string{employees.MsgBodyUnreadable}, body.Errors)
}

func TestGetEmployee_InvalidID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/employees/abc", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := parseResponse[employees.ErrorBody](t, rec.Body)
	assert.Equal(t, "Invalid employee ID.", body.Error)

	activity, tracking := env.auditCounts(t)
	assert.Equal(t, 1, activity)
	assert.Equal(t, 1, tracking)

	entries, err := env.store.RecentTracking(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "GET - /api/employees/abc", entries[0].Endpoint)
	assert.Equal(t, http.StatusBadRequest, entries[0].StatusCode)
	assert.JSONEq(t, `{"error":"Invalid employee ID."}`, entries[0].Response)
}

func TestDeleteEmployee_Unknown(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodDelete, "/api/employees/999999", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := parseResponse[employees.ErrorBody](t, rec.Body)
	assert.Equal(t, "Employee not found", body.Error)

	activity, tracking := env.auditCounts(t)
	assert.Equal(t, 1, activity)
	assert.Equal(t, 1, tracking)
}

// =============================================================================
// CRUD Round Trip
// =============================================================================

func TestEmployeeLifecycle(t *testing.T) {
	env := newTestEnv(t)

	created := parseResponse[domain.Employee](t, env.do(t, http.MethodPost, "/api/employees", anaJSON).Body)
	path := "/api/employees/" + formatID(created.ID)

	rec := env.do(t, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, parseResponse[domain.Employee](t, rec.Body))

	rec = env.do(t, http.MethodPut, path, `{"name":"Ana","age":31,"position":"Lead","department":"R&D"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := parseResponse[domain.Employee](t, rec.Body)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, 31, updated.Age)
	assert.Equal(t, "Lead", updated.Position)

	rec = env.do(t, http.MethodGet, "/api/employees", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []domain.Employee{updated}, parseResponse[[]domain.Employee](t, rec.Body))

	rec = env.do(t, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.Confirmation{Message: "Employee deleted"}, parseResponse[domain.Confirmation](t, rec.Body))

	rec = env.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// One activity row and one tracking row per request.
	activity, tracking := env.auditCounts(t)
	assert.Equal(t, 7, activity)
	assert.Equal(t, 7, tracking)
}

func TestUpdateEmployee_Unknown(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPut, "/api/employees/42", anaJSON)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListEmployees_Empty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/employees", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestStoreFailure_ReturnsGenericError(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Close())

	rec := env.do(t, http.MethodGet, "/api/employees", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Server error"}`, rec.Body.String())
}

// =============================================================================
// Ambient Endpoints
// =============================================================================

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", parseResponse[HealthResponse](t, rec.Body).Status)

	activity, tracking := env.auditCounts(t)
	assert.Zero(t, activity, "health checks are not audited")
	assert.Zero(t, tracking)
}

func TestReady(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	ready := parseResponse[ReadyResponse](t, rec.Body)
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "ok", ready.Checks["database"])
	assert.Equal(t, "ok", ready.Checks["activity_log"])
	assert.Equal(t, "ok", ready.Checks["request_tracker"])

	require.NoError(t, env.store.Close())

	rec = env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	ready = parseResponse[ReadyResponse](t, rec.Body)
	assert.Equal(t, "not_ready", ready.Status)
	assert.Equal(t, "failed", ready.Checks["database"])
}

func TestReady_StoppedTrail(t *testing.T) {
	env := newTestEnv(t)
	env.tracker.Stop()

	rec := env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready := parseResponse[ReadyResponse](t, rec.Body)
	assert.Equal(t, "not_ready", ready.Status)
	assert.Equal(t, "ok", ready.Checks["database"])
	assert.Equal(t, "failed", ready.Checks["request_tracker"])
}

func TestReady_DegradedTrail(t *testing.T) {
	env := newTestEnv(t)
	env.activity.Stop()
	// Recorded while stopped, so the entry is dropped.
	env.activity.Record(domain.ActivityEntry{Action: "LIST_EMPLOYEES"})
	env.activity.Start()

	rec := env.do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	ready := parseResponse[ReadyResponse](t, rec.Body)
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, "degraded", ready.Checks["activity_log"])
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/api/employees/abc", nil)
	req.Header.Set(RequestIDHeader, "client-supplied")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, "client-supplied", rec.Header().Get(RequestIDHeader))

	env.auditCounts(t)
	entries, err := env.store.RecentTracking(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "client-supplied", entries[0].RequestID)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/employees", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOpenAPIDocs(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api-docs/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := parseResponse[map[string]any](t, rec.Body)
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/employees")
	assert.Contains(t, paths, "/employees/{id}")

	rec = env.do(t, http.MethodGet, "/api-docs/openapi.yaml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openapi: 3.0.3")
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/nope", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestCustomBasePath(t *testing.T) {
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	svc := employees.NewService(s, discard[domain.ActivityEntry]{}, discard[domain.TrackingEntry]{}, nil)
	router := NewHandler(Config{Employees: svc, Store: s, BasePath: "/v2/"}).Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v2/employees", bytes.NewBufferString(anaJSON)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/employees", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPanicIsRecovered(t *testing.T) {
	h := NewHandler(Config{Employees: nil, Store: panickingStore{}})

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// =============================================================================
// Test Doubles
// =============================================================================

type discard[T any] struct{}

func (discard[T]) Record(T) {}

// panickingStore panics on Ping so the recoverer can be observed.
type panickingStore struct {
	store.Store
}

func (panickingStore) Ping(ctx context.Context) error {
	panic(errors.New("boom"))
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
