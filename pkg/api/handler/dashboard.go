package handler

import (
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LENAX/task-visualizer/pkg/api/dto"
	"github.com/LENAX/task-visualizer/pkg/core/describe"
	"github.com/LENAX/task-visualizer/pkg/core/engine"
)

// DashboardTemplateName 看板模板名
const DashboardTemplateName = "dashboard.tmpl"

const dashboardHTML = `{{define "node"}}<li class="task{{if .IsRunning}} running{{end}}{{if .IsComposed}} composed{{end}}" data-id="{{.ID}}" data-kind="{{.Kind}}">
<span class="name">{{.Name}}</span> <span class="kind">{{.Kind}}</span>
{{- if .Parameters}}<dl class="params">{{range $k, $v := .Parameters}}<dt>{{$k}}</dt><dd>{{$v}}</dd>{{end}}</dl>{{end}}
{{- if .SubCommands}}<ul>{{range .SubCommands}}{{template "node" .}}{{end}}</ul>{{end}}
</li>{{end}}
{{define "dashboard.tmpl"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Instance}} - 任务可视化</title>
<style>
body { font-family: monospace; }
li.task { margin: 2px 0; }
li.running > .name { color: #1a7f37; font-weight: bold; }
li.composed > .name { font-style: italic; }
dl.params { display: inline; margin-left: 8px; color: #666; }
dl.params dt, dl.params dd { display: inline; margin: 0 2px; }
</style>
</head>
<body>
<h1>{{.Instance}}</h1>
<p id="meta">mode=<span id="mode">{{.Mode}}</span> enabled=<span id="enabled">{{.Enabled}}</span> published_at=<span id="published-at">{{.PublishedAt}}</span></p>
{{if .Forest}}<ul id="forest">{{range .Forest}}{{template "node" .}}{{end}}</ul>{{else}}<p id="empty">当前没有被跟踪的任务</p>{{end}}
{{if .WebSocketPath}}<script>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "{{.WebSocketPath}}");
  ws.onmessage = function () { location.reload(); };
})();
</script>{{end}}
</body>
</html>{{end}}`

// DashboardTemplate 解析看板模板
func DashboardTemplate() *template.Template {
	return template.Must(template.New("").Parse(dashboardHTML))
}

// DashboardHandler HTML看板处理器
type DashboardHandler struct {
	engine *engine.Engine
}

// NewDashboardHandler 创建DashboardHandler
func NewDashboardHandler(eng *engine.Engine) *DashboardHandler {
	return &DashboardHandler{engine: eng}
}

type dashboardView struct {
	Instance      string
	Mode          string
	Enabled       bool
	PublishedAt   string
	WebSocketPath string
	Forest        []*describe.Descriptor
}

// Index 渲染当前快照的树形视图
// GET /
func (h *DashboardHandler) Index(c *gin.Context) {
	payload, at, err := h.engine.Snapshot()
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, err.Error()))
		return
	}
	forest, err := describe.UnmarshalForest(payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(500, err.Error()))
		return
	}

	cfg := h.engine.Config().TaskVisualizer
	view := dashboardView{
		Instance:    cfg.General.InstanceName,
		Mode:        h.engine.Publisher().Mode().String(),
		Enabled:     h.engine.Publisher().Enabled(),
		PublishedAt: at.Format(time.RFC3339),
		Forest:      forest,
	}
	if h.engine.Hub() != nil {
		view.WebSocketPath = cfg.Transport.WebSocket.Path
	}
	c.HTML(http.StatusOK, DashboardTemplateName, view)
}
