package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/xcm"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	messages  chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-r.messages:
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range msgs {
		r.committed = append(r.committed, msg.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type fakeHandler struct {
	mu       sync.Mutex
	received []uint64
	failures int // 查询 7 在成功前返回存储错误的次数
}

func (h *fakeHandler) HandleResponse(_ context.Context, response xcm.Response) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, response.QueryID)
	switch response.QueryID {
	case 99:
		return errs.New(errs.ErrNotFound, "查询 %d 不存在", response.QueryID)
	case 98:
		return errs.New(errs.ErrValidity, "响应类型错误")
	case 7:
		if h.failures > 0 {
			h.failures--
			return fmt.Errorf("connection refused")
		}
	}
	return nil
}

func (h *fakeHandler) count(queryID uint64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, id := range h.received {
		if id == queryID {
			n++
		}
	}
	return n
}

func encode(t *testing.T, offset int64, response xcm.Response) kafka.Message {
	value, err := json.Marshal(response)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: value}
}

func TestResponseMonitorDispatchesAndCommits(t *testing.T) {
	reader := &fakeReader{messages: make(chan kafka.Message, 4)}
	handler := &fakeHandler{}
	monitor, err := NewResponseMonitorWithReader(reader, handler, 2)
	require.NoError(t, err)

	reader.messages <- encode(t, 0, xcm.Response{QueryID: 1, Kind: xcm.ResponseDispatchResult, Success: true})
	reader.messages <- kafka.Message{Offset: 1, Value: []byte("not json")}
	reader.messages <- encode(t, 2, xcm.Response{QueryID: 99, Kind: xcm.ResponseAssets})

	monitor.Start()
	require.Eventually(t, func() bool { return reader.commits() == 3 }, 2*time.Second, 10*time.Millisecond)
	monitor.Stop()

	assert.ElementsMatch(t, []uint64{1, 99}, handler.received)
	assert.Equal(t, []int64{0, 1, 2}, reader.committed)
	status := monitor.GetStatus()
	assert.Equal(t, int64(1), status["processed"])
	assert.Equal(t, int64(2), status["rejected"])
	assert.Equal(t, int64(2), status["last_offset"])
	assert.Equal(t, int64(0), status["retried"])
}

func TestResponseMonitorRetriesTransientFailures(t *testing.T) {
	reader := &fakeReader{messages: make(chan kafka.Message, 4)}
	handler := &fakeHandler{failures: 2}
	monitor, err := NewResponseMonitorWithReader(reader, handler, 4)
	require.NoError(t, err)
	monitor.retryDelay = 10 * time.Millisecond

	reader.messages <- encode(t, 0, xcm.Response{QueryID: 7, Kind: xcm.ResponseDispatchResult, Success: true})
	reader.messages <- encode(t, 1, xcm.Response{QueryID: 98, Kind: xcm.ResponseAssets})
	reader.messages <- encode(t, 2, xcm.Response{QueryID: 3, Kind: xcm.ResponseDispatchResult, Success: true})

	monitor.Start()
	require.Eventually(t, func() bool { return reader.commits() == 3 }, 2*time.Second, 10*time.Millisecond)
	monitor.Stop()

	// 存储错误重试到成功，领域错误直接跳过，偏移量按顺序提交
	assert.Equal(t, 3, handler.count(7))
	assert.Equal(t, 1, handler.count(98))
	assert.Equal(t, 1, handler.count(3))
	assert.Equal(t, []int64{0, 1, 2}, reader.committed)
	status := monitor.GetStatus()
	assert.Equal(t, int64(2), status["processed"])
	assert.Equal(t, int64(1), status["rejected"])
	assert.Equal(t, int64(2), status["retried"])
}

func TestResponseMonitorHoldsOffsetUntilRetrySucceeds(t *testing.T) {
	reader := &fakeReader{messages: make(chan kafka.Message, 4)}
	handler := &fakeHandler{failures: 1 << 20}
	monitor, err := NewResponseMonitorWithReader(reader, handler, 2)
	require.NoError(t, err)
	monitor.retryDelay = 5 * time.Millisecond

	reader.messages <- encode(t, 0, xcm.Response{QueryID: 7, Kind: xcm.ResponseDispatchResult, Success: true})
	reader.messages <- encode(t, 1, xcm.Response{QueryID: 3, Kind: xcm.ResponseDispatchResult, Success: true})

	monitor.Start()
	require.Eventually(t, func() bool { return handler.count(7) >= 3 && handler.count(3) == 1 }, 2*time.Second, 5*time.Millisecond)
	monitor.Stop()

	assert.Zero(t, reader.commits())
}
