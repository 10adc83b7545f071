package demo

import (
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/task-visualizer/pkg/config"
	"github.com/LENAX/task-visualizer/pkg/core/describe"
	"github.com/LENAX/task-visualizer/pkg/core/engine"
	"github.com/LENAX/task-visualizer/pkg/core/liveness"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	eng, err := engine.NewEngineBuilder("").WithConfig(cfg).WithLogger(watermill.NopLogger{}).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Stop() })
	return eng
}

func TestInstall_DescribesEveryDemoTask(t *testing.T) {
	eng := newEngine(t)
	r := Install(eng.Scheduler())
	defer r.Stop()

	payload, err := eng.Publisher().Render()
	require.NoError(t, err)
	forest, err := describe.UnmarshalForest(payload)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, d := range forest {
		names[d.Name] = true
	}
	assert.True(t, names["auto"])
	assert.True(t, names["heartbeat"])
	assert.True(t, names["vision-tracking"])
	assert.Zero(t, eng.Publisher().Stats().TaskFailures)

	for _, top := range r.Tasks() {
		assert.True(t, eng.Scheduler().IsScheduled(top), top.Name())
	}
}

func TestRoutine_ReschedulesAuto(t *testing.T) {
	eng := newEngine(t)
	clock := &manualClock{now: time.Unix(0, 0)}
	r := Install(eng.Scheduler(), WithClock(clock))
	defer r.Stop()

	for i := 0; i < 60 && r.Cycles() == 0; i++ {
		clock.Advance(500 * time.Millisecond)
		eng.Scheduler().Run()
	}
	require.GreaterOrEqual(t, r.Cycles(), int64(1))
	assert.True(t, eng.Scheduler().IsScheduled(r.Tasks()[0]))

	_, err := eng.Publisher().RenderMode(liveness.ModeAll)
	require.NoError(t, err)
}

func TestRoutine_Stop(t *testing.T) {
	eng := newEngine(t)
	r := Install(eng.Scheduler())
	r.Stop()
	r.Stop()

	assert.Empty(t, eng.Scheduler().Scheduled())
	assert.Zero(t, eng.Tracker().Stats().Running)
}
