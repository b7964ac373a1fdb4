package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chhz0/superv/core"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.DefaultMaxRetries = 0
	orch := core.New(cfg, nil, nil)
	return New(Config{HTTPAddr: ":0"}, orch, nil)
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func registerBody(id string) map[string]interface{} {
	return map[string]interface{}{
		"id":       id,
		"name":     id,
		"endpoint": "http://" + id + ":9000",
		"maxLoad":  5,
	}
}

func TestRegisterWorker(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv.Handler(), http.MethodPost, "/workers/register", registerBody("w1"))
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	worker := out["worker"].(map[string]interface{})
	assert.Equal(t, "w1", worker["id"])
	assert.Equal(t, "online", worker["status"])
}

func TestRegisterWorkerRejectsBadBody(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/workers/register", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterWorkerRequiresIDAndEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv.Handler(), http.MethodPost, "/workers/register",
		map[string]interface{}{"id": "w1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHeartbeatUnknownWorker(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv.Handler(), http.MethodPost, "/workers/heartbeat",
		map[string]interface{}{"workerId": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHeartbeatKnownWorker(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	do(t, h, http.MethodPost, "/workers/register", registerBody("w1"))
	rec := do(t, h, http.MethodPost, "/workers/heartbeat",
		map[string]interface{}{"workerId": "w1", "status": "busy", "currentLoad": 3})
	require.Equal(t, http.StatusOK, rec.Code)

	worker := decode(t, rec)["worker"].(map[string]interface{})
	assert.Equal(t, "busy", worker["status"])
	assert.Equal(t, float64(3), worker["currentLoad"])
}

func TestListWorkersIncludesHealth(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	do(t, h, http.MethodPost, "/workers/register", registerBody("w1"))
	rec := do(t, h, http.MethodGet, "/workers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	workers := decode(t, rec)["workers"].([]interface{})
	require.Len(t, workers, 1)
	health := workers[0].(map[string]interface{})["health"].(map[string]interface{})
	assert.Contains(t, health, "overall")
}

func TestUnregisterWorker(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	do(t, h, http.MethodPost, "/workers/register", registerBody("w1"))

	rec := do(t, h, http.MethodDelete, "/workers/w1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["success"])

	rec = do(t, h, http.MethodDelete, "/workers/w1", nil)
	assert.Equal(t, false, decode(t, rec)["success"])
}

func TestSubmitAndFetchTask(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	rec := do(t, h, http.MethodPost, "/tasks",
		map[string]interface{}{"type": "chat", "priority": "high"})
	require.Equal(t, http.StatusOK, rec.Code)

	task := decode(t, rec)["task"].(map[string]interface{})
	id := task["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "pending", task["status"])
	assert.Equal(t, "high", task["priority"])

	rec = do(t, h, http.MethodGet, "/tasks/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fetched := decode(t, rec)["task"].(map[string]interface{})
	assert.Equal(t, id, fetched["id"])
}

func TestSubmitTaskValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv.Handler(), http.MethodPost, "/tasks",
		map[string]interface{}{"priority": "high"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv.Handler(), http.MethodPost, "/tasks",
		map[string]interface{}{"type": "chat", "priority": "urgent"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownTask(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv.Handler(), http.MethodGet, "/tasks/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResultForUnknownTaskIsAccepted(t *testing.T) {
	srv := newTestServer(t)

	// Late results are dropped server-side, not bounced to the worker.
	rec := do(t, srv.Handler(), http.MethodPost, "/tasks/ghost/result",
		map[string]interface{}{"workerId": "w1", "success": true})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestResultRequiresWorkerID(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv.Handler(), http.MethodPost, "/tasks/t1/result",
		map[string]interface{}{"success": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	do(t, h, http.MethodPost, "/workers/register", registerBody("w1"))
	do(t, h, http.MethodPost, "/tasks", map[string]interface{}{"type": "chat"})

	rec := do(t, h, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode(t, rec)
	workers := out["workers"].(map[string]interface{})
	tasks := out["tasks"].(map[string]interface{})
	assert.Equal(t, float64(1), workers["total"])
	assert.Equal(t, float64(1), tasks["queued"])
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv.Handler(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv.Handler(), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv.Handler(), http.MethodOptions, "/tasks", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestEventsRouteAbsentWithoutPubSub(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv.Handler(), http.MethodGet, "/events", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
