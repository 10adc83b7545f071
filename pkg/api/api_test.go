package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/task-visualizer/pkg/api/dto"
	"github.com/LENAX/task-visualizer/pkg/api/middleware"
	"github.com/LENAX/task-visualizer/pkg/config"
	"github.com/LENAX/task-visualizer/pkg/core/engine"
	"github.com/LENAX/task-visualizer/pkg/core/graph"
	"github.com/LENAX/task-visualizer/pkg/core/task"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, websocket bool) (*engine.Engine, http.Handler) {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.TaskVisualizer.General.InstanceName = "robot"
	cfg.TaskVisualizer.Transport.WebSocket.Enabled = websocket

	eng, err := engine.NewEngineBuilder("").WithConfig(cfg).WithLogger(watermill.NopLogger{}).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Stop() })

	srv := NewAPIServer(eng, ServerConfigFrom(cfg), "1.0.0-test")
	return eng, srv.Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) dto.APIResponse[T] {
	t.Helper()
	var resp dto.APIResponse[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthAndReady(t *testing.T) {
	eng, h := newTestServer(t, false)

	w := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	health := decode[dto.HealthResponse](t, w)
	assert.Equal(t, "healthy", health.Data.Status)
	assert.Equal(t, "1.0.0-test", health.Data.Version)

	w = do(t, h, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	require.NoError(t, eng.Start(t.Context()))
	w = do(t, h, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSnapshotEndpoint(t *testing.T) {
	eng, h := newTestServer(t, false)
	drive := task.NewRun("drive", nil)
	eng.Scheduler().Schedule(task.NewInstant("once", nil), drive)
	eng.Scheduler().Run()

	t.Run("未发布时即时渲染", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/api/v1/snapshot", nil)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[dto.SnapshotResponse](t, w)
		assert.True(t, resp.Data.Fresh)
		assert.Equal(t, "running", resp.Data.Mode)
		assert.Equal(t, 1, resp.Data.Count)
		assert.Contains(t, string(resp.Data.Descriptors), `"drive"`)
	})

	t.Run("发布后返回最近快照", func(t *testing.T) {
		eng.Publisher().Tick()
		w := do(t, h, http.MethodGet, "/api/v1/snapshot", nil)
		resp := decode[dto.SnapshotResponse](t, w)
		assert.False(t, resp.Data.Fresh)
		assert.Equal(t, 1, resp.Data.Count)
	})

	t.Run("指定all模式", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/api/v1/snapshot?mode=all", nil)
		resp := decode[dto.SnapshotResponse](t, w)
		assert.True(t, resp.Data.Fresh)
		assert.Equal(t, "all", resp.Data.Mode)
		assert.Equal(t, 2, resp.Data.Count)
	})

	t.Run("非法模式", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/api/v1/snapshot?mode=some", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTasksEndpoint(t *testing.T) {
	eng, h := newTestServer(t, false)
	for _, name := range []string{"a", "b", "c"} {
		eng.Scheduler().Schedule(task.NewRun(name, nil))
	}

	w := do(t, h, http.MethodGet, "/api/v1/tasks?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[dto.ListResponse[dto.TaskSummary]](t, w)
	assert.Equal(t, 3, resp.Data.Total)
	assert.True(t, resp.Data.HasMore)
	require.Len(t, resp.Data.Items, 2)
	assert.Equal(t, "a", resp.Data.Items[0].Name)
	assert.Equal(t, "RunTask", resp.Data.Items[0].Kind)
	assert.True(t, resp.Data.Items[0].IsRunning)
	assert.NotZero(t, resp.Data.Items[0].ID)

	w = do(t, h, http.MethodGet, "/api/v1/tasks?offset=5", nil)
	resp = decode[dto.ListResponse[dto.TaskSummary]](t, w)
	assert.Empty(t, resp.Data.Items)

	w = do(t, h, http.MethodGet, "/api/v1/tasks?limit=0&mode=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDescribersEndpoint(t *testing.T) {
	_, h := newTestServer(t, false)
	w := do(t, h, http.MethodGet, "/api/v1/describers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[[]dto.DescriberInfo](t, w)
	require.NotEmpty(t, resp.Data)

	found := false
	for _, d := range resp.Data {
		if d.Kind == "WaitTask" {
			found = true
			assert.Equal(t, "WaitTaskDescriber", d.Describer)
		}
	}
	assert.True(t, found)
}

func TestGraphEndpoint(t *testing.T) {
	eng, h := newTestServer(t, false)
	step := task.NewRun("step", nil)
	eng.Scheduler().Schedule(task.NewSequential("auto", step, task.NewInstant("done", nil)))

	w := do(t, h, http.MethodGet, "/api/v1/graph", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[graph.Graph](t, w)
	assert.Len(t, resp.Data.Nodes, 3)
	assert.Len(t, resp.Data.Edges, 2)
	assert.Len(t, resp.Data.Roots, 1)
	assert.Equal(t, 1, resp.Data.MaxDepth)
}

func TestPublisherEndpoints(t *testing.T) {
	eng, h := newTestServer(t, false)

	w := do(t, h, http.MethodPost, "/api/v1/publisher/disable", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[dto.PublisherStateResponse](t, w).Data.Enabled)
	assert.False(t, eng.Publisher().Enabled())

	w = do(t, h, http.MethodPost, "/api/v1/publisher/enable", nil)
	assert.True(t, decode[dto.PublisherStateResponse](t, w).Data.Enabled)

	w = do(t, h, http.MethodPost, "/api/v1/publisher/mode", []byte(`{"mode":"all"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "all", eng.Publisher().Mode().String())

	w = do(t, h, http.MethodPost, "/api/v1/publisher/mode", []byte(`{"mode":"nope"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusEndpoint(t *testing.T) {
	_, h := newTestServer(t, true)
	w := do(t, h, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[engine.Status](t, w)
	assert.Equal(t, "robot", resp.Data.InstanceName)
	assert.Equal(t, "running", resp.Data.Mode)
	assert.NotNil(t, resp.Data.Hub)
}

func TestDashboard(t *testing.T) {
	eng, h := newTestServer(t, true)
	wait := task.NewWait(0, nil)
	wait.SetName("pause")
	eng.Scheduler().Schedule(task.NewSequential("auto", task.NewRun("drive", nil), wait))

	w := do(t, h, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(w.Body.String()))
	require.NoError(t, err)

	assert.Equal(t, "robot", doc.Find("h1").Text())
	assert.Equal(t, "running", doc.Find("#mode").Text())
	roots := doc.Find("#forest > li.task")
	require.Equal(t, 1, roots.Length())
	assert.Equal(t, "auto", roots.ChildrenFiltered(".name").Text())
	assert.True(t, roots.HasClass("running"))

	children := roots.ChildrenFiltered("ul").ChildrenFiltered("li.task")
	require.Equal(t, 2, children.Length())
	first := children.First()
	assert.Equal(t, "drive", first.ChildrenFiltered(".name").Text())
	assert.True(t, first.HasClass("running"))
	assert.True(t, first.HasClass("composed"))
	last := children.Last()
	assert.Equal(t, "WaitTask", last.AttrOr("data-kind", ""))
	assert.False(t, last.HasClass("running"))
	assert.Equal(t, 2, last.Find("dl.params dt").Length())

	assert.Contains(t, doc.Find("script").Text(), "/ws")
}

func TestDashboardEmpty(t *testing.T) {
	_, h := newTestServer(t, false)
	w := do(t, h, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("#empty").Length())
	assert.Equal(t, 0, doc.Find("script").Length())
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := watermill.NewCaptureLogger()
	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.GET("/panic", func(c *gin.Context) {
		panic("describer exploded")
	})

	w := do(t, router, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 500, decode[any](t, w).Code)

	errs := logger.Captured()[watermill.ErrorLogLevel]
	require.Len(t, errs, 1)
	assert.Equal(t, "/panic", errs[0].Fields["path"])
	assert.EqualError(t, errs[0].Err, "describer exploded")
}

func TestCORSPreflight(t *testing.T) {
	_, h := newTestServer(t, false)
	w := do(t, h, http.MethodOptions, "/api/v1/snapshot", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
