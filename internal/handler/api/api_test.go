package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/internal/usecase"
	"SignalDesk/pkg/errors"
	xhttp "SignalDesk/pkg/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec.Code, env
}

func newEcho(handlers ...xhttp.Handler) *echo.Echo {
	e := echo.New()
	for _, h := range handlers {
		h.RegisterRoutes(e)
	}
	return e
}

func signal(id string, entry time.Time, result models.Result) *models.Signal {
	return &models.Signal{
		ID:        id,
		Pair:      "BTC/USDT",
		Direction: models.DirectionBuy,
		Timeframe: 1,
		EntryTime: entry,
		Result:    result,
		Source:    models.SourceAutomation,
	}
}

func TestSignalsRoutes(t *testing.T) {
	base := time.Now().UTC().Truncate(time.Minute)
	store := usecase.NewSignalStore()
	store.Add(signal("old", base.Add(-2*time.Minute), models.ResultWin))
	store.Add(signal("new", base, models.ResultNone))
	store.SetCurrent(signal("new", base, models.ResultNone))
	e := newEcho(NewSignalsHandler(store))

	code, env := do(t, e, http.MethodGet, "/api/signals?limit=1", "")
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Rows  []models.Signal `json:"rows"`
		Total int64           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.EqualValues(t, 2, list.Total)
	require.Len(t, list.Rows, 1)
	assert.Equal(t, "new", list.Rows[0].ID)

	code, env = do(t, e, http.MethodGet, "/api/signals/current", "")
	require.Equal(t, http.StatusOK, code)
	var cur models.Signal
	require.NoError(t, json.Unmarshal(env.Data, &cur))
	assert.Equal(t, "new", cur.ID)

	code, _ = do(t, e, http.MethodGet, "/api/signals/old", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, e, http.MethodGet, "/api/signals/missing", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, e, http.MethodGet, "/api/signals?limit=5000", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

type memAdmins struct {
	mu   sync.Mutex
	rows map[string]*models.AdminSignal
}

func (m *memAdmins) GetAdminSignals(_ context.Context, f models.AdminSignalFilter) ([]*models.AdminSignal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.AdminSignal, 0, len(m.rows))
	for _, a := range m.rows {
		if f.Status == "" || a.Status == f.Status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAdmins) GetAdminSignalByID(_ context.Context, id string) (*models.AdminSignal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.rows[id]; ok {
		return a, nil
	}
	return nil, errors.Newf(errors.ErrCodeDataNotFound, "admin signal %s not found", id)
}

func (m *memAdmins) MarkAdminSignalExecuted(context.Context, string) (bool, error) { return true, nil }
func (m *memAdmins) MarkAdminSignalExpired(context.Context, string) (bool, error)  { return true, nil }
func (m *memAdmins) ReopenAdminSignal(context.Context, string) (bool, error)       { return true, nil }

func (m *memAdmins) CreateAdminSignal(_ context.Context, a *models.AdminSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[a.ID] = a
	return nil
}

func (m *memAdmins) DeleteAdminSignal(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return errors.Newf(errors.ErrCodeDataNotFound, "admin signal %s not found", id)
	}
	delete(m.rows, id)
	return nil
}

func TestAdminSignalRoutes(t *testing.T) {
	repo := &memAdmins{rows: make(map[string]*models.AdminSignal)}
	svc := usecase.NewAdminSignalService(repo, nil, nil, nil)
	e := newEcho(NewAdminSignalsHandler(svc, nil, nil))

	at := time.Now().UTC().Add(10 * time.Minute).Format(time.RFC3339)
	code, env := do(t, e, http.MethodPost, "/api/admin-signals",
		`{"pair":"eth/usd","direction":"SELL","scheduledTime":"`+at+`"}`)
	require.Equal(t, http.StatusCreated, code)
	var created models.AdminSignal
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "ETH/USDT", created.Pair)
	assert.Equal(t, models.DirectionSell, created.Direction)
	assert.Equal(t, 1, created.Timeframe)

	code, _ = do(t, e, http.MethodPost, "/api/admin-signals", `{"pair":"BTC/USDT","direction":"hold","scheduledTime":"`+at+`"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	past := time.Now().UTC().Add(-5 * time.Minute).Format(time.RFC3339)
	code, _ = do(t, e, http.MethodPost, "/api/admin-signals", `{"pair":"BTC/USDT","direction":"buy","scheduledTime":"`+past+`"}`)
	assert.Equal(t, http.StatusConflict, code)

	code, env = do(t, e, http.MethodGet, "/api/admin-signals?status=pending", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), created.ID)

	code, _ = do(t, e, http.MethodDelete, "/api/admin-signals/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = do(t, e, http.MethodDelete, "/api/admin-signals/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, code)
}

type memSettings struct {
	mu      sync.Mutex
	enabled bool
}

func (m *memSettings) GetSystemEnabled(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled, nil
}

func (m *memSettings) SetSystemEnabled(_ context.Context, v bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = v
	return nil
}

func TestSystemRoutes(t *testing.T) {
	repo := &memSettings{enabled: true}
	e := newEcho(NewSystemHandler(usecase.NewSystemSettings(repo, time.Second, nil, nil)))

	code, env := do(t, e, http.MethodPut, "/api/system", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"enabled":false}`, string(env.Data))
	assert.False(t, repo.enabled)

	code, env = do(t, e, http.MethodGet, "/api/system", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"enabled":false}`, string(env.Data))

	code, _ = do(t, e, http.MethodPut, "/api/system", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestEventHubStreams(t *testing.T) {
	snap := []models.Event{{Type: models.EventAutomationState, State: models.StateSearching}}
	hub := NewEventHub(func() []models.Event { return snap }, nil)
	srv := httptest.NewServer(newEcho(hub))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/events", nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first models.Event
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, models.StateSearching, first.State)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), models.Event{
		Type:   models.EventSignalOpened,
		Signal: &models.Signal{ID: "s1"},
	}))

	var got models.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, models.EventSignalOpened, got.Type)
	assert.Equal(t, "s1", got.Signal.ID)

	hub.Close()
	assert.Zero(t, hub.Clients())
}
