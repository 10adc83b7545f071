package engine

import (
	"errors"
	"fmt"
	"log"

	"github.com/ThreeDotsLabs/watermill"

	internalstorage "github.com/LENAX/task-visualizer/internal/storage"
	"github.com/LENAX/task-visualizer/pkg/config"
	"github.com/LENAX/task-visualizer/pkg/core/cache"
	"github.com/LENAX/task-visualizer/pkg/core/describe"
	"github.com/LENAX/task-visualizer/pkg/core/identity"
	"github.com/LENAX/task-visualizer/pkg/core/liveness"
	"github.com/LENAX/task-visualizer/pkg/core/publisher"
	"github.com/LENAX/task-visualizer/pkg/core/realtime"
	"github.com/LENAX/task-visualizer/pkg/core/scheduler"
	"github.com/LENAX/task-visualizer/pkg/core/task"
	"github.com/LENAX/task-visualizer/pkg/storage"
)

type describerBinding struct {
	kind *task.Kind
	name string
	fn   describe.Describer
}

type sinkBinding struct {
	name string
	sink publisher.Sink
}

// EngineBuilder 引擎构建器（链式调用）
type EngineBuilder struct {
	configPath string
	cfg        *config.VisualizerConfig
	logger     watermill.LoggerAdapter
	store      storage.KVStore
	describers []describerBinding
	sinks      []sinkBinding
	errHandler func(error)
	err        error
}

// NewEngineBuilder 创建引擎构建器（入口），configPath为空时使用默认配置
func NewEngineBuilder(configPath string) *EngineBuilder {
	return &EngineBuilder{configPath: configPath}
}

// WithConfig 直接使用已加载的配置（链式）
func (b *EngineBuilder) WithConfig(cfg *config.VisualizerConfig) *EngineBuilder {
	if b.err != nil {
		return b
	}
	if cfg == nil {
		b.err = errors.New("config is nil")
		return b
	}
	b.cfg = cfg
	return b
}

// WithLogger 设置日志（链式），默认按配置的log_level创建
func (b *EngineBuilder) WithLogger(logger watermill.LoggerAdapter) *EngineBuilder {
	b.logger = logger
	return b
}

// WithKVStore 使用外部键值存储（链式），优先于配置
func (b *EngineBuilder) WithKVStore(store storage.KVStore) *EngineBuilder {
	b.store = store
	return b
}

// WithDescriber 注册自定义任务类型的描述器（链式）
func (b *EngineBuilder) WithDescriber(kind *task.Kind, fn describe.Describer) *EngineBuilder {
	return b.WithNamedDescriber(kind, "", fn)
}

// WithNamedDescriber 注册带标识的描述器（链式）
func (b *EngineBuilder) WithNamedDescriber(kind *task.Kind, name string, fn describe.Describer) *EngineBuilder {
	if b.err != nil {
		return b
	}
	if kind == nil || fn == nil {
		b.err = errors.New("describer kind or function is empty")
		return b
	}
	b.describers = append(b.describers, describerBinding{kind: kind, name: name, fn: fn})
	return b
}

// WithSink 额外注册快照Sink（链式）
func (b *EngineBuilder) WithSink(name string, sink publisher.Sink) *EngineBuilder {
	if b.err != nil {
		return b
	}
	if sink == nil {
		b.err = fmt.Errorf("sink %s is nil", name)
		return b
	}
	b.sinks = append(b.sinks, sinkBinding{name: name, sink: sink})
	return b
}

// WithErrorHandler 设置描述与投递错误的回调（链式）
func (b *EngineBuilder) WithErrorHandler(fn func(error)) *EngineBuilder {
	b.errHandler = fn
	return b
}

// Build 构建引擎实例（最终步骤）
func (b *EngineBuilder) Build() (*Engine, error) {
	if b.err != nil {
		return nil, b.err
	}

	// 1. 加载并校验配置
	cfg := b.cfg
	if cfg == nil {
		loaded, err := config.LoadConfig(b.configPath)
		if err != nil {
			return nil, fmt.Errorf("load visualizer config failed: %w", err)
		}
		cfg = loaded
	}
	cfg.ApplyDefaults()
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate visualizer config failed: %w", err)
	}
	v := cfg.TaskVisualizer

	logger := b.logger
	if logger == nil {
		logger = cfg.NewLogger()
	}

	// 2. 描述器注册表
	registry := describe.NewRegistry()
	describe.RegisterBuiltins(registry)
	for _, d := range b.describers {
		if d.name == "" {
			registry.Register(d.kind, d.fn)
		} else {
			registry.RegisterNamed(d.kind, d.name, d.fn)
		}
	}

	// 3. 身份、跟踪、缓存与调度器
	assigner := identity.NewAssigner()
	tracker := liveness.NewTracker()
	descriptorCache := cache.NewDescriptorCache(v.Publisher.DescriptorCache)
	assigner.OnForget(descriptorCache.Forget)

	sched := scheduler.New(scheduler.WithLogger(logger))
	tracker.Subscribe(sched)

	// 发布器独占带缓存的构建器，即时描述使用不带缓存的构建器
	renderBuilder := describe.NewBuilder(registry,
		describe.WithIDSource(assigner),
		describe.WithComposition(sched),
		describe.WithRunning(tracker),
		describe.WithCache(descriptorCache),
	)
	builder := describe.NewBuilder(registry,
		describe.WithIDSource(assigner),
		describe.WithComposition(sched),
		describe.WithRunning(tracker),
	)

	pubOpts := []publisher.Option{
		publisher.WithMode(cfg.GetMode()),
		publisher.WithSinkBuffer(v.Publisher.SinkBuffer),
		publisher.WithEnabled(cfg.PublisherEnabled()),
		publisher.WithLogger(logger),
	}
	if b.errHandler != nil {
		pubOpts = append(pubOpts, publisher.WithErrorHandler(b.errHandler))
	}
	pub := publisher.New(tracker, renderBuilder, pubOpts...)

	ticker, err := publisher.NewCronTicker(pub, cfg.GetInterval())
	if err != nil {
		pub.Close()
		descriptorCache.Close()
		return nil, fmt.Errorf("create snapshot ticker failed: %w", err)
	}

	eng := &Engine{
		cfg:       cfg,
		logger:    logger,
		registry:  registry,
		assigner:  assigner,
		tracker:   tracker,
		cache:     descriptorCache,
		builder:   builder,
		publisher: pub,
		scheduler: sched,
		ticker:    ticker,
	}

	// 4. 传输层与Sink
	if err := b.initSinks(eng); err != nil {
		_ = eng.Stop()
		return nil, err
	}

	log.Printf("📝 [EngineBuilder] 已注册 %d 个描述器, %d 个Sink", registry.Len(), len(pub.Sinks()))
	return eng, nil
}

// initSinks 按配置创建键值存储、消息总线与WebSocket广播，并注册为快照Sink
func (b *EngineBuilder) initSinks(eng *Engine) error {
	v := eng.cfg.TaskVisualizer

	store := b.store
	if store == nil && v.Storage.KV.Enabled {
		created, err := internalstorage.NewKVStore(v.Storage.KV.Type, v.Storage.KV.DSN, eng.cfg.GetPoolConfig())
		if err != nil {
			return fmt.Errorf("init kv storage failed: %w", err)
		}
		store = created
	}
	if store != nil {
		eng.store = store
		if _, err := eng.publisher.RegisterSink("kv", publisher.KVSink(store, v.Publisher.NTKey, 0)); err != nil {
			return err
		}
	}

	if v.Transport.WebSocket.Enabled {
		eng.hub = realtime.NewHub(eng.logger, v.Transport.WebSocket.SendBuffer)
	}

	if v.Transport.Watermill.Enabled {
		bus, err := realtime.NewBus(
			realtime.WithBusLogger(eng.logger),
			realtime.WithSnapshotTopic(v.Transport.Watermill.Topic),
		)
		if err != nil {
			return fmt.Errorf("init message bus failed: %w", err)
		}
		eng.bus = bus
		bus.ObserveLifecycle(eng.scheduler, eng.assigner)
		if _, err := eng.publisher.RegisterSink("watermill", bus.Sink()); err != nil {
			return err
		}
		if eng.hub != nil {
			if _, err := bus.Subscribe(realtime.EventSnapshotPublished, eng.hub.HandleEvent); err != nil {
				return err
			}
		}
	} else if eng.hub != nil {
		if _, err := eng.publisher.RegisterSink("websocket", eng.hub); err != nil {
			return err
		}
	}

	for _, s := range b.sinks {
		if _, err := eng.publisher.RegisterSink(s.name, s.sink); err != nil {
			return err
		}
	}
	return nil
}
