package scheduler

import (
	"context"
	"time"

	"github.com/blues/launchpad/internal/chain"
	"github.com/blues/launchpad/internal/logger"
	"github.com/blues/launchpad/internal/metrics"
	"github.com/go-co-op/gocron/v2"
)

// BlockProcessor 每个区块开始时执行到期的状态转换
type BlockProcessor interface {
	OnInitialize(ctx context.Context) (int, error)
}

// BlockJob 出块任务，推进区块高度并处理到期转换
type BlockJob struct {
	engine   BlockProcessor
	clock    *chain.LocalClock
	interval time.Duration
}

// NewBlockJob 创建出块任务
func NewBlockJob(engine BlockProcessor, clock *chain.LocalClock, interval time.Duration) *BlockJob {
	return &BlockJob{
		engine:   engine,
		clock:    clock,
		interval: interval,
	}
}

// GetName 获取任务名称
func (j *BlockJob) GetName() string {
	return "block_producer"
}

// GetSchedule 获取调度配置
func (j *BlockJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *BlockJob) Execute() {
	defer metrics.ObserveTask(j.GetName())()

	block := j.clock.Advance()
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	applied, err := j.engine.OnInitialize(ctx)
	if err != nil {
		logger.Error("Failed to initialize block %d: %v", block, err)
		return
	}
	if applied > 0 {
		logger.Info("Block %d applied %d project updates", block, applied)
	} else {
		logger.Debug("Block %d produced", block)
	}
}
