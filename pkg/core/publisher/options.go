package publisher

import (
	"github.com/ThreeDotsLabs/watermill"

	"github.com/LENAX/task-visualizer/pkg/core/liveness"
)

// options 发布器配置
type options struct {
	mode         liveness.Mode
	sinkBuffer   int
	threshold    float64
	enabled      bool
	logger       watermill.LoggerAdapter
	errorHandler func(error)
}

func defaultOptions() *options {
	return &options{
		mode:       liveness.ModeRunning,
		sinkBuffer: 16,
		threshold:  0.8,
		enabled:    true,
		logger:     watermill.NopLogger{},
	}
}

// Option 配置选项函数类型
type Option func(*options)

// WithMode 设置快照包含的任务范围
func WithMode(mode liveness.Mode) Option {
	return func(o *options) {
		o.mode = mode
	}
}

// WithSinkBuffer 设置每个Sink的缓冲区大小
func WithSinkBuffer(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.sinkBuffer = size
		}
	}
}

// WithCongestionThreshold 设置Sink队列进入拥塞的使用率
func WithCongestionThreshold(threshold float64) Option {
	return func(o *options) {
		if threshold > 0 && threshold <= 1 {
			o.threshold = threshold
		}
	}
}

// WithEnabled 设置初始启用状态
func WithEnabled(enabled bool) Option {
	return func(o *options) {
		o.enabled = enabled
	}
}

// WithLogger 设置日志
func WithLogger(logger watermill.LoggerAdapter) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithErrorHandler 设置错误回调，任务描述失败、序列化失败、Sink失败都会回调
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}
