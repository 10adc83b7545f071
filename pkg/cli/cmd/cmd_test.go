package cmd

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/task-visualizer/pkg/api"
	"github.com/LENAX/task-visualizer/pkg/cli/output"
	"github.com/LENAX/task-visualizer/pkg/config"
	"github.com/LENAX/task-visualizer/pkg/core/engine"
	"github.com/LENAX/task-visualizer/pkg/core/task"
)

func setup(t *testing.T) (*engine.Engine, string) {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	eng, err := engine.NewEngineBuilder("").WithConfig(cfg).WithLogger(watermill.NopLogger{}).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Stop() })

	srv := httptest.NewServer(api.NewAPIServer(eng, api.ServerConfigFrom(cfg), "test").Handler())
	t.Cleanup(srv.Close)
	return eng, srv.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	prev, prevNoColor := output.Writer, color.NoColor
	output.Writer, color.NoColor = buf, true
	defer func() { output.Writer, color.NoColor = prev, prevNoColor }()

	outputJSON, snapshotFresh, snapshotMode, tasksMode = false, false, "", ""
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestSnapshotCommand(t *testing.T) {
	eng, url := setup(t)
	eng.Scheduler().Schedule(task.NewSequential("auto", task.NewRun("drive", nil)))

	out, err := run(t, "snapshot", "--server", url, "--fresh")
	require.NoError(t, err)
	assert.Contains(t, out, "● auto [SequentialGroup")
	assert.Contains(t, out, "└── ● drive [RunTask")

	out, err = run(t, "snapshot", "--server", url, "--json")
	require.NoError(t, err)
	var forest []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &forest))
	require.Len(t, forest, 1)
	assert.Equal(t, "auto", forest[0]["name"])
}

func TestSnapshotCommand_Empty(t *testing.T) {
	_, url := setup(t)
	out, err := run(t, "snapshot", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "暂无被跟踪的任务")
}

func TestTasksAndGraphCommands(t *testing.T) {
	eng, url := setup(t)
	eng.Scheduler().Schedule(task.NewRun("drive", nil), task.NewParallel("both", task.NewRun("a", nil), task.NewRun("b", nil)))

	out, err := run(t, "tasks", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "drive")
	assert.Contains(t, out, "ParallelGroup")

	out, err = run(t, "graph", "--server", url, "--fresh")
	require.NoError(t, err)
	assert.Contains(t, out, "节点: 4  边: 2  根: 2  最大深度: 1")
}

func TestPublisherCommands(t *testing.T) {
	eng, url := setup(t)

	out, err := run(t, "publisher", "disable", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "enabled=false")
	assert.False(t, eng.Publisher().Enabled())

	_, err = run(t, "publisher", "enable", "--server", url)
	require.NoError(t, err)
	assert.True(t, eng.Publisher().Enabled())

	out, err = run(t, "publisher", "mode", "all", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "mode=all")

	_, err = run(t, "publisher", "mode", "--server", url)
	assert.Error(t, err)
}

func TestStatusAndDescribersCommands(t *testing.T) {
	_, url := setup(t)

	out, err := run(t, "status", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Instance:   task-visualizer")
	assert.Contains(t, out, "QUEUE")
	assert.Contains(t, out, "STATE")

	out, err = run(t, "describers", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "WaitTaskDescriber")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    "+Version)
}

func TestCommandAgainstUnreachableServer(t *testing.T) {
	out, err := run(t, "tasks", "--server", "http://127.0.0.1:1")
	assert.Error(t, err)
	assert.Contains(t, out, "查询失败")
}
