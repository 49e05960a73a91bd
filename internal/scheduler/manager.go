package scheduler

import (
	"time"

	"github.com/blues/launchpad/internal/chain"
	"github.com/blues/launchpad/internal/config"
	"github.com/blues/launchpad/internal/logger"
	"github.com/go-co-op/gocron/v2"
)

// Manager 出块调度器
type Manager struct {
	scheduler gocron.Scheduler
	engine    BlockProcessor
	clock     *chain.LocalClock
	config    config.ChainConfig
}

// NewManager 创建出块调度器
func NewManager(engine BlockProcessor, clock *chain.LocalClock, cfg config.ChainConfig) *Manager {
	s, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatal("Failed to create scheduler: %v", err)
	}

	return &Manager{
		scheduler: s,
		engine:    engine,
		clock:     clock,
		config:    cfg,
	}
}

// Start 注册任务并启动调度器
func (m *Manager) Start() {
	m.RegisterJobs()
	m.scheduler.Start()

	logger.Info("Block scheduler started at block %d (block time %ds)", m.clock.BlockNumber(), m.config.BlockTime)
}

// RegisterJobs 注册所有任务
func (m *Manager) RegisterJobs() {
	m.RegisterBlockJob()
}

// RegisterBlockJob 注册出块任务
func (m *Manager) RegisterBlockJob() {
	interval := time.Duration(m.config.BlockTime) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	job := NewBlockJob(m.engine, m.clock, interval)

	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Error("Failed to register job %s: %v", job.GetName(), err)
	}
}

// Stop 停止调度器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Block scheduler stopped")
}
