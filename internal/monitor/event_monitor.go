package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blues/launchpad/internal/config"
	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/logger"
	"github.com/blues/launchpad/internal/metrics"
	"github.com/blues/launchpad/internal/xcm"
	"github.com/panjf2000/ants/v2"
	"github.com/segmentio/kafka-go"
)

// ResponseHandler 处理目标链响应
type ResponseHandler interface {
	HandleResponse(ctx context.Context, response xcm.Response) error
}

// MessageReader 响应消息来源
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ResponseMonitor 目标链响应监控器
type ResponseMonitor struct {
	reader          MessageReader
	handler         ResponseHandler
	pool            *ants.Pool // 协程池
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	mu              sync.RWMutex
	processed       int64
	rejected        int64
	lastOffset      int64
	retried         int64         // 处理失败后重试的次数
	retryDelay      time.Duration // 处理失败后的重试间隔
	retryCount      int           // 重试次数
	lastRetryTime   time.Time     // 上次重试时间
	backoffDuration time.Duration // 退避时间
}

// NewResponseMonitor 创建 kafka 响应监控器
func NewResponseMonitor(cfg config.KafkaConfig, handler ResponseHandler) (*ResponseMonitor, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.ResponseTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return NewResponseMonitorWithReader(reader, handler, cfg.ResponseWorker)
}

// NewResponseMonitorWithReader 使用给定的消息来源创建监控器
func NewResponseMonitorWithReader(reader MessageReader, handler ResponseHandler, workers int) (*ResponseMonitor, error) {
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create response pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &ResponseMonitor{
		reader:          reader,
		handler:         handler,
		pool:            pool,
		ctx:             ctx,
		cancel:          cancel,
		lastOffset:      -1,
		retryDelay:      time.Second * 5,
		lastRetryTime:   time.Now(),
		backoffDuration: time.Second * 5, // 初始退避时间5秒
	}, nil
}

// Start 启动监控
func (m *ResponseMonitor) Start() {
	logger.Info("Starting xcm response monitor")
	m.wg.Add(1)
	go m.loop()
}

// Stop 停止监控，等待处理中的响应完成
func (m *ResponseMonitor) Stop() {
	logger.Info("Stopping xcm response monitor")
	m.cancel()
	m.wg.Wait()
	m.pool.Release()
	if err := m.reader.Close(); err != nil {
		logger.Error("Failed to close response reader: %v", err)
	}
}

// inflight 已提交到协程池的消息，retry 表示需要重新处理
type inflight struct {
	msg   kafka.Message
	done  chan struct{}
	retry bool
}

// loop 拉取消息并交给协程池并发处理，偏移量由 commitLoop 按拉取顺序提交
func (m *ResponseMonitor) loop() {
	defer m.wg.Done()

	queue := make(chan *inflight, m.pool.Cap())
	m.wg.Add(1)
	go m.commitLoop(queue)
	defer close(queue)

	for {
		msg, err := m.reader.FetchMessage(m.ctx)
		if err != nil {
			if m.ctx.Err() != nil {
				logger.Info("Monitor stopped")
				return
			}
			m.handleError(err)
			if !m.wait(m.backoff()) {
				return
			}
			continue
		}
		m.resetRetry()

		item := &inflight{msg: msg, done: make(chan struct{})}
		if err := m.pool.Submit(func() {
			defer close(item.done)
			item.retry = m.process(msg)
		}); err != nil {
			logger.Error("Failed to submit response to pool: %v", err)
			item.retry = true
			close(item.done)
		}

		select {
		case queue <- item:
		case <-m.ctx.Done():
			return
		}
	}
}

// commitLoop 按拉取顺序等待处理结果，需要重试的消息处理成功前不提交后续偏移量
func (m *ResponseMonitor) commitLoop(queue <-chan *inflight) {
	defer m.wg.Done()

	for item := range queue {
		<-item.done
		retry := item.retry
		for retry {
			if !m.wait(m.retryDelay) {
				return
			}
			retry = m.process(item.msg)
		}
		if m.ctx.Err() != nil {
			return
		}
		if err := m.reader.CommitMessages(m.ctx, item.msg); err != nil && m.ctx.Err() == nil {
			logger.Error("Failed to commit offset %d: %v", item.msg.Offset, err)
		}
	}
}

// wait 等待 d，监控停止时返回 false
func (m *ResponseMonitor) wait(d time.Duration) bool {
	select {
	case <-m.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// process 处理单条响应，返回是否需要重试
//
// 无法解码或被引擎拒绝的响应记为 rejected 并跳过；其他错误（存储、超时）保留偏移量稍后重试。
func (m *ResponseMonitor) process(msg kafka.Message) bool {
	var response xcm.Response
	if err := json.Unmarshal(msg.Value, &response); err != nil {
		logger.Error("Failed to decode response at offset %d: %v", msg.Offset, err)
		m.record(msg.Offset, false)
		return false
	}

	ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
	defer cancel()

	err := m.handler.HandleResponse(ctx, response)
	switch {
	case err == nil:
		logger.Debug("Processed response for query %d", response.QueryID)
		m.record(msg.Offset, true)
		return false
	case errs.Kind(err) == nil:
		logger.Warn("Response for query %d at offset %d failed, retrying: %v", response.QueryID, msg.Offset, err)
		m.mu.Lock()
		m.retried++
		m.mu.Unlock()
		return true
	case errors.Is(err, errs.ErrNotFound):
		logger.Debug("Ignoring response for unknown query %d", response.QueryID)
	default:
		logger.Warn("Rejected response for query %d: %v", response.QueryID, err)
	}
	metrics.XcmResponses.WithLabelValues(string(response.Kind), "rejected").Inc()
	m.record(msg.Offset, false)
	return false
}

func (m *ResponseMonitor) record(offset int64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.processed++
	} else {
		m.rejected++
	}
	if offset > m.lastOffset {
		m.lastOffset = offset
	}
}

// handleError 处理错误
func (m *ResponseMonitor) handleError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.retryCount++
	m.lastRetryTime = time.Now()

	// 指数退避
	if m.retryCount > 5 {
		m.backoffDuration = time.Minute * 5 // 最大退避时间5分钟
	} else {
		m.backoffDuration = time.Duration(m.retryCount) * time.Second * 10
	}

	logger.Error("Monitor encountered error (retry %d): %v", m.retryCount, err)
}

func (m *ResponseMonitor) backoff() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backoffDuration
}

func (m *ResponseMonitor) resetRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryCount = 0
}

// GetStatus 获取监控状态
func (m *ResponseMonitor) GetStatus() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"processed":   m.processed,
		"rejected":    m.rejected,
		"last_offset": m.lastOffset,
		"retried":     m.retried,
		"retry_count": m.retryCount,
		"pool_status": map[string]interface{}{
			"running": m.pool.Running(),
			"free":    m.pool.Free(),
			"cap":     m.pool.Cap(),
		},
	}
}
