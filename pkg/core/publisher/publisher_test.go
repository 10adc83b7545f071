package publisher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/task-visualizer/pkg/core/cache"
	"github.com/LENAX/task-visualizer/pkg/core/describe"
	"github.com/LENAX/task-visualizer/pkg/core/identity"
	"github.com/LENAX/task-visualizer/pkg/core/liveness"
	"github.com/LENAX/task-visualizer/pkg/core/task"
	"github.com/LENAX/task-visualizer/pkg/storage"
)

type fixture struct {
	tracker   *liveness.Tracker
	builder   *describe.Builder
	publisher *Publisher
	errs      chan error
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	tracker := liveness.NewTracker()
	registry := describe.NewRegistry()
	describe.RegisterBuiltins(registry)
	builder := describe.NewBuilder(registry,
		describe.WithIDSource(identity.NewAssigner()),
		describe.WithRunning(tracker),
	)
	errs := make(chan error, 64)
	opts = append(opts, WithErrorHandler(func(err error) {
		select {
		case errs <- err:
		default:
		}
	}))
	p := New(tracker, builder, opts...)
	t.Cleanup(p.Close)
	return &fixture{tracker: tracker, builder: builder, publisher: p, errs: errs}
}

// recordingSink 记录收到的快照
type recordingSink struct {
	mu       sync.Mutex
	payloads []string
}

func (s *recordingSink) Publish(payload string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

func (s *recordingSink) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.payloads) == 0 {
		return ""
	}
	return s.payloads[len(s.payloads)-1]
}

func decodeNames(t *testing.T, payload string) []string {
	t.Helper()
	forest, err := describe.UnmarshalForest(payload)
	require.NoError(t, err)
	out := make([]string, 0, len(forest))
	for _, d := range forest {
		out = append(out, d.Name)
	}
	return out
}

func TestPublisher_TickDeliversToAllSinks(t *testing.T) {
	f := newFixture(t)
	f.tracker.TaskInitialized(task.NewRun("drive", nil))

	first, second := &recordingSink{}, &recordingSink{}
	_, err := f.publisher.RegisterSink("first", first)
	require.NoError(t, err)
	_, err = f.publisher.RegisterSink("second", second)
	require.NoError(t, err)

	f.publisher.Tick()

	require.Eventually(t, func() bool { return first.count() == 1 && second.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, first.last(), second.last())
	assert.Equal(t, []string{"drive"}, decodeNames(t, first.last()))

	payload, _, ok := f.publisher.LastPayload()
	assert.True(t, ok)
	assert.Equal(t, first.last(), payload)
}

func TestPublisher_DisableEnableScenario(t *testing.T) {
	f := newFixture(t)
	running := task.NewRun("drive", nil)
	f.tracker.TaskInitialized(running)

	sink := &recordingSink{}
	_, err := f.publisher.RegisterSink("sink", sink)
	require.NoError(t, err)

	f.publisher.Tick()
	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)

	f.publisher.Disable()
	assert.False(t, f.publisher.Enabled())
	for i := 0; i < 5; i++ {
		f.publisher.Tick()
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, int64(5), f.publisher.Stats().DisabledTicks)

	assert.Equal(t, []task.Task{running}, f.tracker.Running())
	assert.Equal(t, []task.Task{running}, f.tracker.All())
	assert.Len(t, f.publisher.Sinks(), 1)

	f.publisher.Enable()
	f.publisher.Tick()
	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestPublisher_FinishEventScenario(t *testing.T) {
	f := newFixture(t)
	done := task.NewInstant("done", nil)
	still := task.NewRun("still", nil)
	f.tracker.TaskInitialized(done)
	f.tracker.TaskInitialized(still)
	f.tracker.TaskFinished(done)

	payload, err := f.publisher.Render()
	require.NoError(t, err)
	assert.Equal(t, []string{"still"}, decodeNames(t, payload))

	f.publisher.SetMode(liveness.ModeAll)
	payload, err = f.publisher.Render()
	require.NoError(t, err)
	assert.Equal(t, []string{"done", "still"}, decodeNames(t, payload))

	forest, err := describe.UnmarshalForest(payload)
	require.NoError(t, err)
	assert.False(t, forest[0].IsRunning)
	assert.True(t, forest[1].IsRunning)
}

func TestPublisher_RenderModeKeepsPublisherMode(t *testing.T) {
	f := newFixture(t)
	done := task.NewInstant("done", nil)
	f.tracker.TaskInitialized(done)
	f.tracker.TaskFinished(done)

	payload, err := f.publisher.RenderMode(liveness.ModeAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"done"}, decodeNames(t, payload))
	assert.Equal(t, liveness.ModeRunning, f.publisher.Mode())
}

// newCachedPublisher 带描述符缓存的发布器，与引擎默认配置一致
func newCachedPublisher(t *testing.T, tracker *liveness.Tracker) *Publisher {
	t.Helper()
	registry := describe.NewRegistry()
	describe.RegisterBuiltins(registry)
	assigner := identity.NewAssigner()
	descriptors := cache.NewDescriptorCache(0)
	assigner.OnForget(descriptors.Forget)
	builder := describe.NewBuilder(registry,
		describe.WithIDSource(assigner),
		describe.WithRunning(tracker),
		describe.WithCache(descriptors),
	)
	p := New(tracker, builder, WithMode(liveness.ModeAll))
	t.Cleanup(p.Close)
	t.Cleanup(descriptors.Close)
	return p
}

func TestPublisher_CachedRenderKeepsProxyDelegateFlag(t *testing.T) {
	tracker := liveness.NewTracker()
	p := newCachedPublisher(t, tracker)

	delegate := task.NewRun("intake", nil)
	proxy := task.NewProxy(nil, delegate)
	tracker.TaskInitialized(proxy)
	tracker.TaskInitialized(delegate)
	tracker.TaskFinished(delegate)

	for round := 0; round < 3; round++ {
		payload, err := p.Render()
		require.NoError(t, err)

		forest, err := describe.UnmarshalForest(payload)
		require.NoError(t, err)
		require.Len(t, forest, 2)
		require.Len(t, forest[0].SubCommands, 1)
		assert.True(t, forest[0].SubCommands[0].IsRunning, "round %d", round)
		assert.Equal(t, forest[1].ID, forest[0].SubCommands[0].ID)
		assert.False(t, forest[1].IsRunning, "round %d", round)
	}
}

func TestPublisher_ConcurrentRenderAndTick(t *testing.T) {
	tracker := liveness.NewTracker()
	p := newCachedPublisher(t, tracker)

	seq := task.NewSequential("auto", task.NewRun("a", nil), task.NewWrapper(task.NewRun("b", nil)))
	tracker.TaskInitialized(seq)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if i%2 == 0 {
					p.Tick()
					continue
				}
				payload, err := p.Render()
				assert.NoError(t, err)
				forest, err := describe.UnmarshalForest(payload)
				if assert.NoError(t, err) && assert.Len(t, forest, 1) {
					assert.Equal(t, 2, len(forest[0].SubCommands))
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(100), p.Stats().Ticks)
}

func TestPublisher_TaskFailureIsSkipped(t *testing.T) {
	f := newFixture(t)
	broken := &task.Base{}
	broken.Bind(broken, task.KindWait, "broken")
	f.tracker.TaskInitialized(task.NewRun("before", nil))
	f.tracker.TaskInitialized(broken)
	f.tracker.TaskInitialized(task.NewRun("after", nil))

	payload, err := f.publisher.Render()
	require.NoError(t, err)
	assert.Equal(t, []string{"before", "after"}, decodeNames(t, payload))
	assert.Equal(t, int64(1), f.publisher.Stats().TaskFailures)

	err = <-f.errs
	var de *describe.DescriptionError
	assert.True(t, errors.As(err, &de))
}

// badParams 产生无法序列化的参数
type badParams struct {
	task.Base
}

func (b *badParams) DescribeSelf(_ *describe.Pass, d *describe.Descriptor, _ bool) error {
	d.Set("count", 42)
	return nil
}

func TestPublisher_SerializationFailureSkipsTick(t *testing.T) {
	f := newFixture(t)
	bad := &badParams{}
	bad.Bind(bad, task.NewKind("Bad", nil), "bad")
	f.tracker.TaskInitialized(bad)

	sink := &recordingSink{}
	_, err := f.publisher.RegisterSink("sink", sink)
	require.NoError(t, err)

	f.publisher.Tick()
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 0, sink.count())
	assert.Equal(t, int64(1), f.publisher.Stats().SerializationFailures)
	_, _, ok := f.publisher.LastPayload()
	assert.False(t, ok)

	var se *describe.SerializationError
	assert.True(t, errors.As(<-f.errs, &se))
}

func TestPublisher_FailingSinkIsIsolated(t *testing.T) {
	f := newFixture(t)
	f.tracker.TaskInitialized(task.NewRun("drive", nil))

	good := &recordingSink{}
	_, err := f.publisher.RegisterSink("failing", SinkFunc(func(string) error { return errors.New("rejected") }))
	require.NoError(t, err)
	_, err = f.publisher.RegisterSink("panicking", SinkFunc(func(string) error { panic("boom") }))
	require.NoError(t, err)
	_, err = f.publisher.RegisterSink("good", good)
	require.NoError(t, err)

	f.publisher.Tick()
	f.publisher.Tick()

	require.Eventually(t, func() bool { return good.count() == 2 }, time.Second, 5*time.Millisecond)

	var sinkErrors int
	require.Eventually(t, func() bool {
		for {
			select {
			case err := <-f.errs:
				var se *SinkError
				assert.True(t, errors.As(err, &se))
				sinkErrors++
			default:
				return sinkErrors == 4
			}
		}
	}, time.Second, 5*time.Millisecond)

	infos := f.publisher.Sinks()
	require.Len(t, infos, 3)
	assert.Equal(t, "failing", infos[0].Name)
	assert.Equal(t, int64(2), infos[0].Failed)
	assert.Equal(t, int64(2), infos[1].Failed)
	assert.Equal(t, int64(2), infos[2].Delivered)
}

func TestPublisher_SlowSinkDoesNotBlockTick(t *testing.T) {
	f := newFixture(t, WithSinkBuffer(1), WithCongestionThreshold(0.5))
	f.tracker.TaskInitialized(task.NewRun("drive", nil))

	release := make(chan struct{})
	var calls atomic.Int32
	_, err := f.publisher.RegisterSink("slow", SinkFunc(func(string) error {
		calls.Add(1)
		<-release
		return nil
	}))
	require.NoError(t, err)

	f.publisher.Tick()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	start := time.Now()
	for i := 0; i < 20; i++ {
		f.publisher.Tick()
	}
	assert.Less(t, time.Since(start), time.Second)

	infos := f.publisher.Sinks()
	require.Len(t, infos, 1)
	assert.Equal(t, 1, infos[0].Capacity)
	assert.Equal(t, 1, infos[0].Queued)
	assert.True(t, infos[0].Congested)

	close(release)
	require.Eventually(t, func() bool {
		infos := f.publisher.Sinks()
		return len(infos) == 1 && infos[0].Dropped > 0
	}, time.Second, 5*time.Millisecond)
}

func TestPublisher_UnregisterSink(t *testing.T) {
	f := newFixture(t)
	sink := &recordingSink{}
	id, err := f.publisher.RegisterSink("sink", sink)
	require.NoError(t, err)

	assert.True(t, f.publisher.UnregisterSink(id))
	assert.False(t, f.publisher.UnregisterSink(id))

	f.publisher.Tick()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, sink.count())
	assert.Empty(t, f.publisher.Sinks())
}

func TestPublisher_RegisterAfterClose(t *testing.T) {
	f := newFixture(t)
	f.publisher.Close()
	_, err := f.publisher.RegisterSink("late", &recordingSink{})
	assert.Error(t, err)

	_, err = newFixture(t).publisher.RegisterSink("nil", nil)
	assert.Error(t, err)
}

func TestPublisher_EmptyForest(t *testing.T) {
	f := newFixture(t)
	payload, err := f.publisher.Render()
	require.NoError(t, err)
	assert.Equal(t, "[]", payload)
}

func TestKVSink_WritesDefaultKey(t *testing.T) {
	f := newFixture(t)
	f.tracker.TaskInitialized(task.NewRun("drive", nil))
	kv := storage.NewMemoryKV()

	_, err := f.publisher.RegisterSink("kv", KVSink(kv, "", 0))
	require.NoError(t, err)
	f.publisher.Tick()

	require.Eventually(t, func() bool {
		v, ok, _ := kv.Get(context.Background(), DefaultKey)
		return ok && strings.Contains(v, `"drive"`)
	}, time.Second, 5*time.Millisecond)
}

type countingTicker struct{ n atomic.Int32 }

func (c *countingTicker) Tick() { c.n.Add(1) }

func TestCronTicker(t *testing.T) {
	_, err := NewCronTicker(&countingTicker{}, 10*time.Millisecond)
	assert.Error(t, err)
	_, err = NewCronTicker(nil, time.Second)
	assert.Error(t, err)

	target := &countingTicker{}
	ticker, err := NewCronTicker(target, time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, ticker.Interval())

	ticker.Start()
	ticker.Start()
	assert.False(t, ticker.Next().IsZero())
	require.Eventually(t, func() bool { return target.n.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	ticker.Stop()
	ticker.Stop()
}
