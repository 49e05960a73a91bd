package task

import (
	"context"
	"time"

	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/logger"
	"github.com/blues/launchpad/internal/logic"
	"github.com/blues/launchpad/internal/metrics"
	"github.com/blues/launchpad/internal/model"
	"github.com/go-co-op/gocron/v2"
	"github.com/panjf2000/ants/v2"
)

// MigrationJob 已开始迁移的项目逐个参与者发送迁移消息
type MigrationJob struct {
	engine   *logic.Engine
	pool     *ants.Pool
	interval time.Duration
}

// NewMigrationJob 创建迁移任务
func NewMigrationJob(engine *logic.Engine, pool *ants.Pool, interval time.Duration) *MigrationJob {
	return &MigrationJob{
		engine:   engine,
		pool:     pool,
		interval: interval,
	}
}

// GetName 获取任务名称
func (j *MigrationJob) GetName() string {
	return "ct_migrator"
}

// GetSchedule 获取调度配置
func (j *MigrationJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

// Execute 执行任务
func (j *MigrationJob) Execute() {
	defer metrics.ObserveTask(j.GetName())()

	ctx := context.Background()
	projects, err := j.engine.ListProjects(ctx, model.ProjectStatusSettlementStarted)
	if err != nil {
		logger.Error("Failed to fetch settling projects: %v", err)
		return
	}

	migrating := projects[:0]
	for _, project := range projects {
		if project.Details.MigrationStarted {
			migrating = append(migrating, project)
		}
	}
	if len(migrating) == 0 {
		return
	}

	sent := sweep(j.pool, migrating, func(project *model.Project) int {
		return j.migrateProject(ctx, project.ID)
	})
	logger.Info("Migration task completed. Sent %d messages", sent)
}

// migrateProject 为每个有待迁移记录的参与者发送消息
func (j *MigrationJob) migrateProject(ctx context.Context, projectID uint32) int {
	participants, err := j.pendingParticipants(ctx, projectID)
	if err != nil {
		logger.Error("Failed to collect participants of project %d: %v", projectID, err)
		return 0
	}

	sent := 0
	for _, participant := range participants {
		batches, err := j.engine.MigrateOneParticipant(ctx, projectID, participant)
		if err != nil {
			if errs.Kind(err) != errs.ErrNotFound {
				logger.Error("Failed to migrate %s of project %d: %v", participant, projectID, err)
			}
			continue
		}
		sent += batches
	}
	return sent
}

// pendingParticipants 按首次出现的顺序返回还有未发送记录的账户
func (j *MigrationJob) pendingParticipants(ctx context.Context, projectID uint32) ([]string, error) {
	seen := make(map[string]bool)
	var participants []string
	add := func(account string, status model.MigrationStatus) {
		if status.IsNotStarted() && !seen[account] {
			seen[account] = true
			participants = append(participants, account)
		}
	}

	evaluations, err := j.engine.ListEvaluations(ctx, projectID, "")
	if err != nil {
		return nil, err
	}
	for _, evaluation := range evaluations {
		if evaluation.RewardedOrSlashed != nil && evaluation.RewardedOrSlashed.Kind == model.OutcomeRewarded {
			add(evaluation.Evaluator, evaluation.CtMigrationStatus)
		}
	}

	bids, err := j.engine.ListBids(ctx, projectID, "")
	if err != nil {
		return nil, err
	}
	for _, bid := range bids {
		if bid.Status.IsWinning() {
			add(bid.Bidder, bid.CtMigrationStatus)
		}
	}

	contributions, err := j.engine.ListContributions(ctx, projectID, "")
	if err != nil {
		return nil, err
	}
	for _, contribution := range contributions {
		add(contribution.Contributor, contribution.CtMigrationStatus)
	}
	return participants, nil
}
