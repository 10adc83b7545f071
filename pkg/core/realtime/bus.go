package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/LENAX/task-visualizer/pkg/core/describe"
	"github.com/LENAX/task-visualizer/pkg/core/liveness"
	"github.com/LENAX/task-visualizer/pkg/core/publisher"
	"github.com/LENAX/task-visualizer/pkg/core/task"
)

// ErrBusClosed 总线已关闭
var ErrBusClosed = errors.New("消息总线已关闭")

// BusStats 总线统计
type BusStats struct {
	Published      int64  `json:"published"`
	Snapshots      int64  `json:"snapshots"`
	Subscriptions  int    `json:"subscriptions"`
	LastSnapshotID string `json:"lastSnapshotId"`
}

type busOptions struct {
	logger        watermill.LoggerAdapter
	snapshotTopic string
	closeTimeout  time.Duration
}

// BusOption 总线选项
type BusOption func(*busOptions)

// WithBusLogger 设置总线日志
func WithBusLogger(logger watermill.LoggerAdapter) BusOption {
	return func(o *busOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSnapshotTopic 设置快照事件使用的topic
func WithSnapshotTopic(topic string) BusOption {
	return func(o *busOptions) {
		if topic != "" {
			o.snapshotTopic = topic
		}
	}
}

// WithCloseTimeout 设置关闭路由器的超时
func WithCloseTimeout(d time.Duration) BusOption {
	return func(o *busOptions) {
		if d > 0 {
			o.closeTimeout = d
		}
	}
}

// Bus 基于watermill GoChannel的事件总线（对外导出）
type Bus struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	logger watermill.LoggerAdapter
	topic  string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu            sync.Mutex
	subscriptions map[SubscriptionID]*message.Handler
	subSeq        int64
	closed        bool

	published atomic.Int64
	snapshots atomic.Int64
	lastSnap  atomic.Value
}

// NewBus 创建事件总线
func NewBus(opts ...BusOption) (*Bus, error) {
	o := &busOptions{
		logger:        watermill.NopLogger{},
		closeTimeout:  5 * time.Second,
		snapshotTopic: string(EventSnapshotPublished),
	}
	for _, opt := range opts {
		opt(o)
	}

	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		o.logger,
	)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: o.closeTimeout}, o.logger)
	if err != nil {
		return nil, fmt.Errorf("创建消息路由器失败: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		pubsub:        pubsub,
		router:        router,
		logger:        o.logger,
		topic:         o.snapshotTopic,
		ctx:           ctx,
		cancel:        cancel,
		subscriptions: make(map[SubscriptionID]*message.Handler),
	}
	b.lastSnap.Store("")

	// 内部处理器记录最近送达的快照ID
	router.AddNoPublisherHandler(
		"snapshot_tracker",
		o.snapshotTopic,
		pubsub,
		b.trackSnapshot,
	)
	return b, nil
}

// Start 启动路由器并等待其就绪
func (b *Bus) Start() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.router.Run(b.ctx); err != nil {
			b.logger.Error("消息路由器退出", err, nil)
		}
	}()
	<-b.router.Running()
}

// Publish 发布事件，topic为事件类型
func (b *Bus) Publish(event *Event) error {
	if b.isClosed() {
		return ErrBusClosed
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("timestamp", event.Timestamp.Format(time.RFC3339Nano))
	for k, v := range event.Metadata {
		msg.Metadata.Set(k, v)
	}

	if err := b.pubsub.Publish(b.topicFor(event.Type), msg); err != nil {
		return fmt.Errorf("发布事件失败: %w", err)
	}
	b.published.Add(1)
	return nil
}

// PublishSnapshot 以快照事件发布一份序列化后的描述符森林
func (b *Bus) PublishSnapshot(payload string) error {
	if !json.Valid([]byte(payload)) {
		return fmt.Errorf("快照不是合法的JSON")
	}
	event := newRawEvent(EventSnapshotPublished, json.RawMessage(payload))
	event.WithMetadata("snapshot_id", event.ID)
	if err := b.Publish(event); err != nil {
		return err
	}
	b.snapshots.Add(1)
	return nil
}

// Sink 返回把快照转发到总线的发布器Sink
func (b *Bus) Sink() publisher.Sink {
	return publisher.SinkFunc(b.PublishSnapshot)
}

// ObserveLifecycle 把调度器的生命周期事件转发到总线，ids可以为nil
func (b *Bus) ObserveLifecycle(src liveness.EventSource, ids describe.IDSource) {
	forward := func(eventType EventType) func(task.Task) {
		return func(t task.Task) {
			payload := TaskLifecyclePayload{TaskName: t.Name(), Kind: t.Kind().Name()}
			if ids != nil {
				payload.TaskID = ids.IDFor(t)
			}
			event, err := NewEvent(eventType, payload)
			if err == nil {
				err = b.Publish(event)
			}
			if err != nil && !errors.Is(err, ErrBusClosed) {
				b.logger.Error("转发生命周期事件失败", err, watermill.LogFields{"task": t.Name(), "type": string(eventType)})
			}
		}
	}
	src.OnInitialize(forward(EventTaskInitialized))
	src.OnFinish(forward(EventTaskFinished))
	src.OnInterrupt(forward(EventTaskInterrupted))
}

// Subscribe 订阅事件，处理器错误只记录日志，消息总是被确认
func (b *Bus) Subscribe(eventType EventType, handler EventHandler) (SubscriptionID, error) {
	if handler == nil {
		return "", errors.New("事件处理器不能为nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", ErrBusClosed
	}

	b.subSeq++
	id := SubscriptionID(fmt.Sprintf("sub-%d", b.subSeq))
	h := b.router.AddNoPublisherHandler(
		fmt.Sprintf("dynamic_handler_%s", id),
		b.topicFor(eventType),
		b.pubsub,
		func(msg *message.Message) error {
			var event Event
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				b.logger.Error("解析事件失败", err, watermill.LogFields{"subscription": string(id)})
				return nil
			}
			if err := handler(&event); err != nil {
				b.logger.Error("事件处理失败", err, watermill.LogFields{"subscription": string(id), "event": event.ID})
			}
			return nil
		},
	)
	b.subscriptions[id] = h

	if b.router.IsRunning() {
		if err := b.router.RunHandlers(b.ctx); err != nil {
			return "", fmt.Errorf("启动事件处理器失败: %w", err)
		}
	}
	return id, nil
}

// Unsubscribe 取消订阅
func (b *Bus) Unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	h, ok := b.subscriptions[id]
	delete(b.subscriptions, id)
	b.mu.Unlock()

	if ok {
		h.Stop()
	}
	return ok
}

// Stats 获取总线统计
func (b *Bus) Stats() BusStats {
	b.mu.Lock()
	subs := len(b.subscriptions)
	b.mu.Unlock()
	return BusStats{
		Published:      b.published.Load(),
		Snapshots:      b.snapshots.Load(),
		Subscriptions:  subs,
		LastSnapshotID: b.lastSnap.Load().(string),
	}
}

// Close 关闭路由器与Pub/Sub
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	var errs []error
	if err := b.router.Close(); err != nil {
		errs = append(errs, fmt.Errorf("关闭路由器失败: %w", err))
	}
	if err := b.pubsub.Close(); err != nil {
		errs = append(errs, fmt.Errorf("关闭 Pub/Sub 失败: %w", err))
	}
	b.cancel()
	b.wg.Wait()
	return errors.Join(errs...)
}

// SnapshotTopic 快照事件的topic
func (b *Bus) SnapshotTopic() string { return b.topic }

func (b *Bus) topicFor(eventType EventType) string {
	if eventType == EventSnapshotPublished {
		return b.topic
	}
	return string(eventType)
}

func (b *Bus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Bus) trackSnapshot(msg *message.Message) error {
	if id := msg.Metadata.Get("snapshot_id"); id != "" {
		b.lastSnap.Store(id)
	}
	return nil
}
