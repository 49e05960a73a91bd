package xcm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/logger"
	"github.com/segmentio/kafka-go"
)

// Transport 跨链消息发送
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// KafkaTransport 将消息写入 Kafka，由中继转发到目标链
type KafkaTransport struct {
	writer *kafka.Writer
}

// NewKafkaTransport 创建 Kafka 发送端
func NewKafkaTransport(brokers []string, topic string) *KafkaTransport {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // 同一目标链的消息保持有序
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
	}
	return &KafkaTransport{writer: writer}
}

// Send 同步等待写入确认，失败时返回 ErrTransportFailure
func (t *KafkaTransport) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = t.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(msg.Destination), 10)),
		Value: payload,
	})
	if err != nil {
		logger.Error("Failed to publish %s message %s to para %d: %v", msg.Kind, msg.ID, msg.Destination, err)
		return errs.New(errs.ErrTransportFailure, "kafka write error: %v", err)
	}

	logger.Debug("Published %s message %s to para %d", msg.Kind, msg.ID, msg.Destination)
	return nil
}

// Close 关闭连接
func (t *KafkaTransport) Close() error {
	return t.writer.Close()
}

// MemoryTransport 内存发送端，单机运行和测试使用
type MemoryTransport struct {
	mu        sync.Mutex
	sent      []Message
	fail      bool
	remaining int // 剩余可成功发送的次数，负数表示不限
}

// NewMemoryTransport 创建内存发送端
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{remaining: -1}
}

func (t *MemoryTransport) Send(_ context.Context, msg Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fail || t.remaining == 0 {
		return errs.New(errs.ErrTransportFailure, "transport unavailable")
	}
	if t.remaining > 0 {
		t.remaining--
	}
	t.sent = append(t.sent, msg)
	return nil
}

// SetFail 之后的发送全部失败
func (t *MemoryTransport) SetFail(fail bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fail = fail
	t.remaining = -1
}

// FailAfter 再成功发送 n 条后全部失败
func (t *MemoryTransport) FailAfter(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remaining = n
}

// Sent 已发送的消息
func (t *MemoryTransport) Sent() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.sent...)
}

// Last 最后一条消息
func (t *MemoryTransport) Last() (Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sent) == 0 {
		return Message{}, false
	}
	return t.sent[len(t.sent)-1], true
}
