package task

import (
	"time"

	"github.com/blues/launchpad/internal/config"
	"github.com/blues/launchpad/internal/logger"
	"github.com/blues/launchpad/internal/logic"
	"github.com/go-co-op/gocron/v2"
	"github.com/panjf2000/ants/v2"
)

// Manager 结算和迁移任务管理器
type Manager struct {
	scheduler gocron.Scheduler
	engine    *logic.Engine
	pool      *ants.Pool
	config    config.TaskConfig
}

// NewManager 创建任务管理器
func NewManager(engine *logic.Engine, cfg config.TaskConfig) *Manager {
	s, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatal("Failed to create scheduler: %v", err)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		logger.Fatal("Failed to create task pool: %v", err)
	}

	return &Manager{
		scheduler: s,
		engine:    engine,
		pool:      pool,
		config:    cfg,
	}
}

// Start 注册任务并启动调度器
func (m *Manager) Start() {
	m.RegisterJobs()
	m.scheduler.Start()

	logger.Info("Task manager started successfully")
}

// RegisterJobs 注册所有任务
func (m *Manager) RegisterJobs() {
	interval := time.Duration(m.config.Interval) * time.Second
	m.register(NewSettlementJob(m.engine, m.pool, interval))
	m.register(NewMigrationJob(m.engine, m.pool, interval))
}

// Job 周期任务
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

func (m *Manager) register(job Job) {
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

// Stop 停止任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	m.pool.Release()
	logger.Info("Task manager stopped")
}
