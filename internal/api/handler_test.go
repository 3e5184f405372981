package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"campus-events/internal/models"
	"campus-events/internal/service"
	"campus-events/internal/store"
	"campus-events/internal/ticket"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type actorHeaders struct {
	id, role, email string
}

var (
	organizerHdr = actorHeaders{id: "org-1", role: "organizer"}
	aliceHdr     = actorHeaders{id: "alice", role: "participant", email: "alice@campus.local"}
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := filepath.Join(t.TempDir(), "api.db") + "?_pragma=busy_timeout(5000)"
	st, err := store.NewStore(store.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	issuer := ticket.NewIssuer(64)
	h := NewHandler(Services{
		Events:        service.NewEventService(st, nil),
		Registrations: service.NewRegistrationService(st, issuer, nil),
		Orders:        service.NewOrderService(st, service.NewInventoryClient(st, nil), issuer, nil),
		Attendance:    service.NewAttendanceService(st),
	}, map[string]Pinger{"database": st}, []string{"*"})

	router := gin.New()
	h.SetupRoutes(router)
	return router
}

func do(t *testing.T, router *gin.Engine, as actorHeaders, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as.id != "" {
		req.Header.Set(headerActorID, as.id)
		req.Header.Set(headerActorRole, as.role)
		req.Header.Set(headerActorEmail, as.email)
		req.Header.Set(headerActorAffiliation, "iiit")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func publishedEvent(t *testing.T, router *gin.Engine, capacity int) string {
	t.Helper()
	now := time.Now().UTC()
	w := do(t, router, organizerHdr, http.MethodPost, "/api/v1/events", gin.H{
		"name":                  "Hackathon",
		"type":                  "normal",
		"capacity":              capacity,
		"registration_deadline": now.Add(24 * time.Hour),
		"start_at":              now.Add(48 * time.Hour),
		"end_at":                now.Add(52 * time.Hour),
		"form_fields": []gin.H{
			{"position": 1, "kind": "text", "name": "team", "title": "Team name"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var e models.Event
	decode(t, w, &e)
	assert.Equal(t, models.EventStatusDraft, e.Status)

	w = do(t, router, organizerHdr, http.MethodPatch, "/api/v1/events/"+e.ID, gin.H{"status": "published"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return e.ID
}

func TestHealthAndReadiness(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, actorHeaders{}, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, actorHeaders{}, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflightAllowsActorHeaders(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/events", nil)
	req.Header.Set("Origin", "https://campus.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", headerActorID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestReadinessReportsFailingDependency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(Services{}, map[string]Pinger{"redis": downPinger{}}, nil).SetupRoutes(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "redis")
}

func TestActorHeadersRequired(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, actorHeaders{}, http.MethodGet, "/api/v1/events", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, actorHeaders{id: "x", role: "admin"}, http.MethodGet, "/api/v1/events", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterScanFlow(t *testing.T) {
	router := newTestRouter(t)
	eventID := publishedEvent(t, router, 0)

	w := do(t, router, aliceHdr, http.MethodPost, "/api/v1/events/"+eventID+"/registrations",
		gin.H{"responses": gin.H{"team": "rocket"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var reg models.Registration
	decode(t, w, &reg)
	require.NotNil(t, reg.TicketID)

	w = do(t, router, aliceHdr, http.MethodGet, "/api/v1/registrations/"+reg.ID+"/ticket", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ticket.ContentType, w.Header().Get("Content-Type"))

	scan := gin.H{"ticket_id": *reg.TicketID}
	w = do(t, router, organizerHdr, http.MethodPost, "/api/v1/events/"+eventID+"/scans", scan)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var first models.ScanOutcome
	decode(t, w, &first)
	assert.Equal(t, models.ScanScanned, first.Result)

	w = do(t, router, organizerHdr, http.MethodPost, "/api/v1/events/"+eventID+"/scans", scan)
	require.Equal(t, http.StatusOK, w.Code)
	var second models.ScanOutcome
	decode(t, w, &second)
	assert.Equal(t, models.ScanDuplicate, second.Result)

	w = do(t, router, aliceHdr, http.MethodGet, "/api/v1/registrations/"+reg.ID+"/attendance-history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var hist service.AttendanceHistory
	decode(t, w, &hist)
	assert.Len(t, hist.Scans, 2)
}

func TestErrorKindsMapToStatus(t *testing.T) {
	router := newTestRouter(t)
	eventID := publishedEvent(t, router, 1)

	w := do(t, router, aliceHdr, http.MethodGet, "/api/v1/events/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, aliceHdr, http.MethodPost, "/api/v1/events", gin.H{"name": "x", "type": "normal"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, router, aliceHdr, http.MethodPost, "/api/v1/events/"+eventID+"/registrations",
		gin.H{"responses": gin.H{"team": "rocket"}})
	require.Equal(t, http.StatusCreated, w.Code)

	bob := actorHeaders{id: "bob", role: "participant"}
	w = do(t, router, bob, http.MethodPost, "/api/v1/events/"+eventID+"/registrations",
		gin.H{"responses": gin.H{"team": "comet"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	var body struct {
		Error models.ErrorKind `json:"error"`
	}
	decode(t, w, &body)
	assert.Equal(t, models.KindCapacityReached, body.Error)

	w = do(t, router, aliceHdr, http.MethodPost, "/api/v1/events/"+eventID+"/scans", gin.H{"ticket_id": "t"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, router, organizerHdr, http.MethodPatch, "/api/v1/events/"+eventID,
		gin.H{"form_fields": []gin.H{{"position": 1, "kind": "text", "name": "nick", "title": "Nick"}}})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateOrderStatusRequiresBody(t *testing.T) {
	router := newTestRouter(t)

	w := do(t, router, organizerHdr, http.MethodPatch, "/api/v1/registrations/r-1/order-status", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
