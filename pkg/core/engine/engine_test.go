package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/task-visualizer/pkg/config"
	"github.com/LENAX/task-visualizer/pkg/core/describe"
	"github.com/LENAX/task-visualizer/pkg/core/liveness"
	"github.com/LENAX/task-visualizer/pkg/core/publisher"
	"github.com/LENAX/task-visualizer/pkg/core/realtime"
	"github.com/LENAX/task-visualizer/pkg/core/task"
	"github.com/LENAX/task-visualizer/pkg/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T, mutate func(cfg *config.VisualizerConfig), opts ...func(b *EngineBuilder)) (*Engine, *storage.MemoryKV) {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
	}
	kv := storage.NewMemoryKV()
	b := NewEngineBuilder("").WithConfig(cfg).WithLogger(watermill.NopLogger{}).WithKVStore(kv)
	for _, opt := range opts {
		opt(b)
	}
	eng, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Stop() })
	return eng, kv
}

func storedForest(t *testing.T, kv *storage.MemoryKV) []*describe.Descriptor {
	t.Helper()
	var payload string
	require.Eventually(t, func() bool {
		v, ok, _ := kv.Get(context.Background(), publisher.DefaultKey)
		payload = v
		return ok
	}, 3*time.Second, 5*time.Millisecond)
	forest, err := describe.UnmarshalForest(payload)
	require.NoError(t, err)
	return forest
}

func TestEngine_PublishesScheduledTasksToKV(t *testing.T) {
	eng, kv := newTestEngine(t, nil)
	drive := task.NewRun("drive", nil)
	eng.Scheduler().Schedule(drive)

	eng.Publisher().Tick()

	forest := storedForest(t, kv)
	require.Len(t, forest, 1)
	assert.Equal(t, "drive", forest[0].Name)
	assert.True(t, forest[0].IsRunning)
	assert.Equal(t, eng.Assigner().IDFor(drive), forest[0].ID)
}

func TestEngine_WaitScenario(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	clock := &fakeClock{now: time.Unix(1000, 0)}
	wait := task.NewWait(5*time.Second, clock)

	eng.Scheduler().Schedule(wait)
	clock.Advance(2 * time.Second)
	eng.Scheduler().Run()

	payload, err := eng.Publisher().Render()
	require.NoError(t, err)
	forest, err := describe.UnmarshalForest(payload)
	require.NoError(t, err)
	require.Len(t, forest, 1)
	assert.Equal(t, map[string]any{"duration": 5.0, "timeElapsed": 2.0}, forest[0].Parameters)
	assert.True(t, forest[0].IsRunning)
}

func TestEngine_FinishEventScenario(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	once := task.NewInstant("once", nil)
	drive := task.NewRun("drive", nil)
	eng.Scheduler().Schedule(once, drive)
	eng.Scheduler().Run()

	names := func() []string {
		payload, err := eng.Publisher().Render()
		require.NoError(t, err)
		forest, err := describe.UnmarshalForest(payload)
		require.NoError(t, err)
		out := []string{}
		for _, d := range forest {
			out = append(out, d.Name)
		}
		return out
	}

	assert.Equal(t, []string{"drive"}, names())
	eng.Publisher().SetMode(liveness.ModeAll)
	assert.Equal(t, []string{"once", "drive"}, names())

	summaries := eng.Tasks(liveness.ModeAll)
	require.Len(t, summaries, 2)
	assert.False(t, summaries[0].IsRunning)
	assert.True(t, summaries[1].Scheduled)
}

func TestEngine_DisableEnableScenario(t *testing.T) {
	eng, kv := newTestEngine(t, nil)
	eng.Scheduler().Schedule(task.NewRun("drive", nil))

	eng.DisablePublishing()
	eng.Publisher().Tick()
	time.Sleep(30 * time.Millisecond)
	_, ok, err := kv.Get(context.Background(), publisher.DefaultKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, eng.Tracker().Stats().Running)

	eng.EnablePublishing()
	eng.Publisher().Tick()
	assert.Len(t, storedForest(t, kv), 1)
}

func TestEngine_ComposedChildrenAreMarked(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	step := task.NewRun("step", nil)
	seq := task.NewSequential("auto", step)
	eng.Scheduler().Schedule(seq)

	d, err := eng.Describe(seq)
	require.NoError(t, err)
	require.Len(t, d.SubCommands, 1)
	assert.True(t, d.SubCommands[0].IsComposed)
	assert.True(t, d.SubCommands[0].IsRunning)
	assert.False(t, d.IsComposed)

	_, err = eng.Describe(nil)
	assert.ErrorIs(t, err, describe.ErrNilTask)
}

func TestEngine_DescribeIsIndependentOfRender(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	seq := task.NewSequential("auto", task.NewRun("a", nil), task.NewWrapper(task.NewRun("b", nil)))
	eng.Scheduler().Schedule(seq)

	d, err := eng.Describe(seq)
	require.NoError(t, err)
	before, err := d.ToJSON()
	require.NoError(t, err)

	eng.Scheduler().Cancel(seq)
	eng.Publisher().Tick()
	_, err = eng.Publisher().Render()
	require.NoError(t, err)

	after, err := d.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, before, after)
	assert.True(t, d.IsRunning)
}

func TestEngine_ConcurrentDescribeAndTick(t *testing.T) {
	eng, _ := newTestEngine(t, func(cfg *config.VisualizerConfig) {
		cfg.TaskVisualizer.Publisher.Mode = "all"
	})
	seq := task.NewSequential("auto", task.NewRun("a", nil), task.NewWrapper(task.NewRun("b", nil)))
	eng.Scheduler().Schedule(seq)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			eng.Publisher().Tick()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			d, err := eng.Describe(seq)
			if !assert.NoError(t, err) {
				return
			}
			_, err = d.ToJSON()
			assert.NoError(t, err)
			assert.Len(t, d.SubCommands, 2)
		}
	}()
	wg.Wait()
	assert.Equal(t, int64(200), eng.Publisher().Stats().Ticks)
}

func TestEngine_CustomDescriber(t *testing.T) {
	custom := task.NewKind("ArmTask", task.KindRun)
	eng, _ := newTestEngine(t, nil, func(b *EngineBuilder) {
		b.WithDescriber(custom, func(_ *describe.Pass, d *describe.Descriptor, _ task.Task, _ bool) error {
			d.SetFloat("angle", 42)
			return nil
		})
	})

	arm := &task.Run{}
	arm.Bind(arm, custom, "arm")
	d, err := eng.Describe(arm)
	require.NoError(t, err)
	assert.Equal(t, "ArmTaskDescriber", d.DescriberKind)
	assert.Equal(t, 42.0, d.Parameters["angle"])
}

func TestEngine_BuilderErrors(t *testing.T) {
	_, err := NewEngineBuilder("").WithConfig(nil).Build()
	assert.Error(t, err)

	_, err = NewEngineBuilder("").WithDescriber(nil, nil).Build()
	assert.Error(t, err)

	_, err = NewEngineBuilder("").WithSink("nil", nil).Build()
	assert.Error(t, err)

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.TaskVisualizer.Publisher.Interval = 10 * time.Millisecond
	_, err = NewEngineBuilder("").WithConfig(cfg).Build()
	assert.Error(t, err)
}

func TestEngine_ErrorHandlerReceivesSinkErrors(t *testing.T) {
	errs := make(chan error, 4)
	eng, _ := newTestEngine(t, nil, func(b *EngineBuilder) {
		b.WithErrorHandler(func(err error) { errs <- err })
		b.WithSink("broken", publisher.SinkFunc(func(string) error { return errors.New("offline") }))
	})
	eng.Publisher().Tick()

	select {
	case err := <-errs:
		var se *publisher.SinkError
		assert.True(t, errors.As(err, &se))
		assert.Equal(t, "broken", se.SinkName)
	case <-time.After(time.Second):
		t.Fatal("未收到Sink错误")
	}
}

func TestEngine_BusAndHubTransport(t *testing.T) {
	eng, _ := newTestEngine(t, func(cfg *config.VisualizerConfig) {
		cfg.TaskVisualizer.Transport.Watermill.Enabled = true
		cfg.TaskVisualizer.Transport.WebSocket.Enabled = true
	})
	require.NotNil(t, eng.Bus())
	require.NotNil(t, eng.Hub())
	require.NoError(t, eng.Start(context.Background()))

	var mu sync.Mutex
	var lifecycle []realtime.EventType
	for _, et := range []realtime.EventType{realtime.EventTaskInitialized, realtime.EventTaskInterrupted} {
		_, err := eng.Bus().Subscribe(et, func(e *realtime.Event) error {
			mu.Lock()
			defer mu.Unlock()
			lifecycle = append(lifecycle, e.Type)
			return nil
		})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		eng.Publisher().Tick()
		return eng.Bus().Stats().Snapshots >= 1
	}, 2*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		drive := task.NewRun("drive", nil)
		eng.Scheduler().Schedule(drive)
		eng.Scheduler().Cancel(drive)
		mu.Lock()
		defer mu.Unlock()
		return len(lifecycle) >= 2
	}, 2*time.Second, 20*time.Millisecond)

	status := eng.Status()
	assert.True(t, status.Running)
	require.NotNil(t, status.Bus)
	require.NotNil(t, status.Hub)
	assert.Len(t, status.Sinks, 2)
}

func TestEngine_StartStop(t *testing.T) {
	eng, kv := newTestEngine(t, nil)
	require.NoError(t, eng.Start(context.Background()))
	require.NoError(t, eng.Start(context.Background()))
	assert.True(t, eng.IsRunning())

	eng.Scheduler().Schedule(task.NewRun("drive", nil))
	assert.Len(t, storedForest(t, kv), 1)

	require.NoError(t, eng.Stop())
	require.NoError(t, eng.Stop())
	assert.False(t, eng.IsRunning())
	assert.Empty(t, eng.Scheduler().Scheduled())
	assert.Error(t, eng.Start(context.Background()))
}

func TestEngine_SnapshotFallsBackToRender(t *testing.T) {
	eng, _ := newTestEngine(t, nil)
	payload, _, err := eng.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "[]", payload)

	eng.Scheduler().Schedule(task.NewRun("drive", nil))
	eng.Publisher().Tick()
	payload, at, err := eng.Snapshot()
	require.NoError(t, err)
	assert.Contains(t, payload, `"drive"`)
	assert.False(t, at.IsZero())
}
