package logic

import (
	"context"

	"github.com/blues/launchpad/internal/calc"
	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/logger"
	"github.com/blues/launchpad/internal/metrics"
	"github.com/blues/launchpad/internal/model"
	"github.com/blues/launchpad/internal/store"
	"github.com/blues/launchpad/internal/xcm"
)

// ChannelDirection 跨链通道方向
type ChannelDirection string

const (
	ChannelProjectToHub ChannelDirection = "project_to_hub"
	ChannelHubToProject ChannelDirection = "hub_to_project"
)

// SetDestinationChainID 发行方设置代币迁移的目标链
func (e *Engine) SetDestinationChainID(ctx context.Context, caller string, projectID, paraID uint32) error {
	return e.execute(ctx, func(tx *txContext) error {
		project, err := tx.store.GetProject(projectID)
		if err != nil {
			return err
		}
		if err := e.ensureIssuer(project, caller); err != nil {
			return err
		}
		if project.Details.MigrationReadiness != nil {
			return errs.New(errs.ErrInvalidState, "项目 %d 已开始迁移检查", projectID)
		}
		project.Details.ParaID = &paraID
		return tx.store.SaveProject(project)
	})
}

// HandleChannelOpen 记录跨链通道已打开，双向都打开且结算成功时自动开始迁移检查
func (e *Engine) HandleChannelOpen(ctx context.Context, caller string, projectID uint32, direction ChannelDirection) error {
	return e.execute(ctx, func(tx *txContext) error {
		if caller != e.cfg.SystemAccount {
			return errs.New(errs.ErrUnauthorized, "只有系统账户可以报告通道状态")
		}
		project, err := tx.store.GetProject(projectID)
		if err != nil {
			return err
		}
		if project.Details.ParaID == nil {
			return errs.New(errs.ErrInvalidState, "项目 %d 没有设置目标链", projectID)
		}

		switch direction {
		case ChannelProjectToHub:
			project.Details.Channel.ProjectToHub = model.ChannelOpen
		case ChannelHubToProject:
			project.Details.Channel.HubToProject = model.ChannelOpen
		default:
			return errs.New(errs.ErrValidity, "未知的通道方向: %s", direction)
		}

		if project.Details.Channel.IsOpen() &&
			project.Details.Status == model.ProjectStatusSettlementStarted &&
			project.Details.SettlementOutcome == model.SettlementSuccess &&
			project.Details.MigrationReadiness == nil {
			return e.startMigrationReadinessCheck(tx, e.cfg.SystemAccount, project)
		}
		return tx.store.SaveProject(project)
	})
}

// StartMigrationReadinessCheck 向目标链查询持仓和接收模块
func (e *Engine) StartMigrationReadinessCheck(ctx context.Context, caller string, projectID uint32) error {
	return e.execute(ctx, func(tx *txContext) error {
		project, err := tx.store.GetProject(projectID)
		if err != nil {
			return err
		}
		return e.startMigrationReadinessCheck(tx, caller, project)
	})
}

func (e *Engine) startMigrationReadinessCheck(tx *txContext, caller string, project *model.Project) error {
	if err := ensureStatus(project, model.ProjectStatusSettlementStarted); err != nil {
		return err
	}
	if err := ensureOutcome(project, model.SettlementSuccess); err != nil {
		return err
	}
	if project.Details.ParaID == nil {
		return errs.New(errs.ErrInvalidState, "项目 %d 没有设置目标链", project.ID)
	}
	if !project.Details.Channel.IsOpen() {
		return errs.New(errs.ErrInvalidState, "项目 %d 的跨链通道未打开", project.ID)
	}

	readiness := project.Details.MigrationReadiness
	switch {
	case readiness == nil:
		if caller != e.cfg.SystemAccount {
			return errs.New(errs.ErrUnauthorized, "首次检查只能由系统账户发起")
		}
	case readiness.Retryable():
		if err := e.ensureIssuer(project, caller); err != nil {
			return err
		}
	default:
		return errs.New(errs.ErrInvalidState, "项目 %d 的迁移检查已在进行或已通过", project.ID)
	}

	holdingQuery, err := e.registerQuery(tx, project.ID, model.QueryKindHolding)
	if err != nil {
		return err
	}
	palletQuery, err := e.registerQuery(tx, project.ID, model.QueryKindPallet)
	if err != nil {
		return err
	}
	project.Details.MigrationReadiness = &model.MigrationReadinessCheck{
		HoldingCheck: model.QueryCheck{QueryID: holdingQuery, Outcome: model.CheckAwaitingResponse},
		PalletCheck:  model.QueryCheck{QueryID: palletQuery, Outcome: model.CheckAwaitingResponse},
	}
	if err := tx.store.SaveProject(project); err != nil {
		return err
	}

	msg := xcm.NewReadinessCheck(*project.Details.ParaID, project.ID, holdingQuery, palletQuery, e.migration.ReceiverPalletName)
	return e.send(tx, msg)
}

// expireReadinessQueries 将已超时的迁移检查记为失败，使发行方可以重新发起检查
func (e *Engine) expireReadinessQueries(tx *txContext) (int, error) {
	expired, err := tx.store.ExpiredQueries(tx.now, model.QueryKindHolding, model.QueryKindPallet)
	if err != nil {
		return 0, err
	}
	for _, query := range expired {
		if err := tx.store.DeleteActiveQuery(query.QueryID); err != nil {
			return 0, err
		}
		project, err := tx.store.GetProject(query.ProjectID)
		if err != nil {
			return 0, err
		}
		readiness := project.Details.MigrationReadiness
		if readiness == nil {
			continue
		}
		for _, check := range []*model.QueryCheck{&readiness.HoldingCheck, &readiness.PalletCheck} {
			if check.QueryID == query.QueryID && check.Outcome == model.CheckAwaitingResponse {
				check.Outcome = model.CheckFailed
			}
		}
		if err := tx.store.SaveProject(project); err != nil {
			return 0, err
		}
		kind, projectID, expiresAt := query.Kind, project.ID, query.ExpiresAt
		tx.afterCommit(func() {
			metrics.XcmResponses.WithLabelValues(string(kind), "expired").Inc()
			logger.Warn("Project %d %s check expired at block %d", projectID, kind, expiresAt)
		})
	}
	return len(expired), nil
}

// registerQuery 登记等待目标链响应的查询
func (e *Engine) registerQuery(tx *txContext, projectID uint32, kind model.QueryKind) (uint64, error) {
	queryID, err := tx.store.NextID(store.CounterQueryID)
	if err != nil {
		return 0, err
	}
	query := &model.ActiveQuery{
		QueryID:   queryID,
		ProjectID: projectID,
		Kind:      kind,
		ExpiresAt: tx.now + e.migration.QueryResponseTimeout,
	}
	if err := tx.store.SaveActiveQuery(query); err != nil {
		return 0, err
	}
	return queryID, nil
}

// send 作为事务的最后一步发送消息，失败时整个操作回滚
func (e *Engine) send(tx *txContext, msg xcm.Message) error {
	if err := e.transport.Send(tx.ctx, msg); err != nil {
		metrics.XcmMessages.WithLabelValues(string(msg.Kind), "failed").Inc()
		if errs.Kind(err) == nil {
			return errs.New(errs.ErrTransportFailure, "%v", err)
		}
		return err
	}
	tx.afterCommit(func() {
		metrics.XcmMessages.WithLabelValues(string(msg.Kind), "sent").Inc()
	})
	return nil
}

// HandleResponse 处理目标链的响应，按查询类型分发
func (e *Engine) HandleResponse(ctx context.Context, response xcm.Response) error {
	return e.execute(ctx, func(tx *txContext) error {
		if _, err := tx.store.GetUnconfirmedMigration(response.QueryID); err == nil {
			return e.confirmMigrations(tx, response)
		}
		return e.migrationCheckResponse(tx, response)
	})
}

// MigrationCheckResponse 处理迁移检查的响应
func (e *Engine) MigrationCheckResponse(ctx context.Context, response xcm.Response) error {
	return e.execute(ctx, func(tx *txContext) error {
		return e.migrationCheckResponse(tx, response)
	})
}

func (e *Engine) migrationCheckResponse(tx *txContext, response xcm.Response) error {
	query, err := tx.store.GetActiveQuery(response.QueryID)
	if err != nil {
		return err
	}
	if tx.now > query.ExpiresAt {
		return errs.New(errs.ErrInvalidState, "查询 %d 已在区块 %d 过期", query.QueryID, query.ExpiresAt)
	}
	project, err := tx.store.GetProject(query.ProjectID)
	if err != nil {
		return err
	}
	readiness := project.Details.MigrationReadiness
	if readiness == nil || project.Details.ParaID == nil {
		return errs.New(errs.ErrInvalidState, "项目 %d 没有进行中的迁移检查", project.ID)
	}
	if response.Origin != *project.Details.ParaID {
		return errs.New(errs.ErrUnauthorized, "响应来源 %d 不是项目目标链", response.Origin)
	}

	var check *model.QueryCheck
	var passed bool
	switch query.Kind {
	case model.QueryKindHolding:
		if response.Kind != xcm.ResponseAssets {
			return errs.New(errs.ErrValidity, "持仓查询收到 %s 响应", response.Kind)
		}
		check = &readiness.HoldingCheck
		passed = e.holdingPassed(project, response.Assets)
	case model.QueryKindPallet:
		if response.Kind != xcm.ResponsePalletsInfo {
			return errs.New(errs.ErrValidity, "模块查询收到 %s 响应", response.Kind)
		}
		check = &readiness.PalletCheck
		passed = e.palletPassed(response.Pallets)
	default:
		return errs.New(errs.ErrValidity, "查询 %d 不是迁移检查", query.QueryID)
	}
	if check.QueryID != query.QueryID {
		return errs.New(errs.ErrInvalidState, "查询 %d 不属于当前检查", query.QueryID)
	}

	check.Outcome = model.CheckFailed
	if passed {
		check.Outcome = model.CheckPassed
	}
	if err := tx.store.DeleteActiveQuery(query.QueryID); err != nil {
		return err
	}

	kind, outcome := query.Kind, check.Outcome
	tx.afterCommit(func() {
		metrics.XcmResponses.WithLabelValues(string(kind), string(outcome)).Inc()
		logger.Info("Project %d %s check %s", project.ID, kind, outcome)
	})
	return tx.store.SaveProject(project)
}

// holdingPassed 目标链持有足够的项目代币
func (e *Engine) holdingPassed(project *model.Project, assets []xcm.Asset) bool {
	if len(assets) != 1 {
		return false
	}
	asset := assets[0]
	return asset.ID == project.CtAsset() &&
		asset.Origin == *project.Details.ParaID &&
		asset.Amount.GreaterThanOrEqual(project.CtSold())
}

// palletPassed 目标链只有一个匹配的接收模块
func (e *Engine) palletPassed(pallets []xcm.PalletInfo) bool {
	if len(pallets) != 1 {
		return false
	}
	pallet := pallets[0]
	return pallet.Index == e.migration.ReceiverPalletIndex &&
		pallet.Name == e.migration.ReceiverPalletName &&
		pallet.ModuleName == e.migration.ReceiverPalletName
}

// StartMigration 两项检查都通过后发行方开始迁移
func (e *Engine) StartMigration(ctx context.Context, caller string, projectID uint32) error {
	return e.execute(ctx, func(tx *txContext) error {
		project, err := tx.store.GetProject(projectID)
		if err != nil {
			return err
		}
		if err := e.ensureIssuer(project, caller); err != nil {
			return err
		}
		if !project.Details.MigrationReadiness.IsReady() {
			return errs.New(errs.ErrInvalidState, "项目 %d 的迁移检查未通过", projectID)
		}
		if project.Details.MigrationStarted {
			return errs.New(errs.ErrInvalidState, "项目 %d 已开始迁移", projectID)
		}
		project.Details.MigrationStarted = true
		return tx.store.SaveProject(project)
	})
}

// MigrateOneParticipant 分批发送参与者尚未迁移的代币，返回本次发送的批次数。
// 每个批次单独提交：已发送的批次保持 Sent，发送失败只回滚当前批次
func (e *Engine) MigrateOneParticipant(ctx context.Context, projectID uint32, participant string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.BlockNumber()

	sent := 0
	for {
		done := false
		err := e.run(ctx, now, func(tx *txContext) error {
			batch, project, err := e.nextMigrationBatch(tx, projectID, participant)
			if err != nil {
				return err
			}
			if len(batch) == 0 {
				if sent == 0 {
					return errs.New(errs.ErrNotFound, "%s 在项目 %d 没有待迁移的代币", participant, projectID)
				}
				done = true
				return nil
			}
			return e.sendMigrationBatch(tx, project, participant, batch)
		})
		if err != nil {
			if sent > 0 {
				logger.Warn("Project %d migration of %s stopped after %d batches: %v", projectID, participant, sent, err)
			}
			return sent, err
		}
		if done {
			return sent, nil
		}
		sent++
	}
}

// nextMigrationBatch 参与者下一批待发送的迁移，没有时返回空
func (e *Engine) nextMigrationBatch(tx *txContext, projectID uint32, participant string) (model.Migrations, *model.Project, error) {
	project, err := tx.store.GetProject(projectID)
	if err != nil {
		return nil, nil, err
	}
	if !project.Details.MigrationStarted || project.Details.ParaID == nil {
		return nil, nil, errs.New(errs.ErrInvalidState, "项目 %d 未开始迁移", projectID)
	}

	migrations, err := e.pendingMigrations(tx, projectID, participant)
	if err != nil {
		return nil, nil, err
	}
	perMessage, err := xcm.MigrationsPerMessage(e.migration.MaxMessageSize, projectID, participant)
	if err != nil {
		return nil, nil, err
	}
	batches := xcm.Chunk(migrations, perMessage)
	if len(batches) == 0 {
		return nil, project, nil
	}
	return batches[0], project, nil
}

// sendMigrationBatch 登记查询、标记 Sent 并发送一批迁移
func (e *Engine) sendMigrationBatch(tx *txContext, project *model.Project, participant string, batch model.Migrations) error {
	queryID, err := e.registerQuery(tx, project.ID, model.QueryKindMigration)
	if err != nil {
		return err
	}
	payload, err := xcm.EncodeMigrations(project.ID, participant, batch, project.Metadata.TokenInformation.Decimals)
	if err != nil {
		return err
	}

	status := model.MigrationStatus{State: model.MigrationSent, QueryID: queryID}
	for _, origin := range batch.Origins() {
		if err := setMigrationStatus(tx, project.ID, origin, status); err != nil {
			return err
		}
	}
	pending := &model.UnconfirmedMigration{
		QueryID:   queryID,
		ProjectID: project.ID,
		User:      participant,
		Origins:   batch.Origins(),
	}
	if err := tx.store.SaveUnconfirmedMigration(pending); err != nil {
		return err
	}
	return e.send(tx, xcm.NewMigration(*project.Details.ParaID, project.ID, queryID, payload))
}

// pendingMigrations 参与者尚未发送的评估奖励、成交出价和购买记录
func (e *Engine) pendingMigrations(tx *txContext, projectID uint32, participant string) (model.Migrations, error) {
	var migrations model.Migrations

	evaluations, err := tx.store.ListEvaluations(projectID, participant)
	if err != nil {
		return nil, err
	}
	for _, evaluation := range evaluations {
		reward := evaluation.RewardedOrSlashed
		if reward == nil || reward.Kind != model.OutcomeRewarded || !reward.Amount.IsPositive() || !evaluation.CtMigrationStatus.IsNotStarted() {
			continue
		}
		migrations = append(migrations, model.Migration{
			Origin: model.MigrationOrigin{User: participant, ID: evaluation.ID, ParticipationType: model.ParticipationEvaluation},
			Info:   model.MigrationInfo{CtAmount: reward.Amount, VestingTime: calc.VestingDuration(1, e.cfg.BlocksPerHour)},
		})
	}

	bids, err := tx.store.ListBids(projectID, participant)
	if err != nil {
		return nil, err
	}
	for _, bid := range bids {
		if !bid.Status.IsWinning() || !bid.FinalCtAmount.IsPositive() || !bid.CtMigrationStatus.IsNotStarted() {
			continue
		}
		migrations = append(migrations, model.Migration{
			Origin: model.MigrationOrigin{User: participant, ID: bid.ID, ParticipationType: model.ParticipationBid},
			Info:   model.MigrationInfo{CtAmount: bid.FinalCtAmount, VestingTime: calc.VestingDuration(bid.Multiplier, e.cfg.BlocksPerHour)},
		})
	}

	contributions, err := tx.store.ListContributions(projectID, participant)
	if err != nil {
		return nil, err
	}
	for _, contribution := range contributions {
		if !contribution.CtAmount.IsPositive() || !contribution.CtMigrationStatus.IsNotStarted() {
			continue
		}
		migrations = append(migrations, model.Migration{
			Origin: model.MigrationOrigin{User: participant, ID: contribution.ID, ParticipationType: model.ParticipationContribution},
			Info:   model.MigrationInfo{CtAmount: contribution.CtAmount, VestingTime: calc.VestingDuration(contribution.Multiplier, e.cfg.BlocksPerHour)},
		})
	}
	return migrations, nil
}

func setMigrationStatus(tx *txContext, projectID uint32, origin model.MigrationOrigin, status model.MigrationStatus) error {
	switch origin.ParticipationType {
	case model.ParticipationEvaluation:
		evaluation, err := tx.store.GetEvaluation(projectID, origin.ID)
		if err != nil {
			return err
		}
		evaluation.CtMigrationStatus = status
		return tx.store.SaveEvaluation(evaluation)
	case model.ParticipationBid:
		bid, err := tx.store.GetBid(projectID, origin.ID)
		if err != nil {
			return err
		}
		bid.CtMigrationStatus = status
		return tx.store.SaveBid(bid)
	case model.ParticipationContribution:
		contribution, err := tx.store.GetContribution(projectID, origin.ID)
		if err != nil {
			return err
		}
		contribution.CtMigrationStatus = status
		return tx.store.SaveContribution(contribution)
	default:
		return errs.New(errs.ErrValidity, "未知的参与类型: %s", origin.ParticipationType)
	}
}

// ConfirmMigrations 处理迁移批次的执行结果，成功和失败都是终态
func (e *Engine) ConfirmMigrations(ctx context.Context, response xcm.Response) error {
	return e.execute(ctx, func(tx *txContext) error {
		return e.confirmMigrations(tx, response)
	})
}

func (e *Engine) confirmMigrations(tx *txContext, response xcm.Response) error {
	pending, err := tx.store.GetUnconfirmedMigration(response.QueryID)
	if err != nil {
		return err
	}
	project, err := tx.store.GetProject(pending.ProjectID)
	if err != nil {
		return err
	}
	if project.Details.ParaID == nil || response.Origin != *project.Details.ParaID {
		return errs.New(errs.ErrUnauthorized, "响应来源 %d 不是项目目标链", response.Origin)
	}
	if response.Kind != xcm.ResponseDispatchResult {
		return errs.New(errs.ErrValidity, "迁移查询收到 %s 响应", response.Kind)
	}

	status := model.MigrationStatus{State: model.MigrationConfirmed, QueryID: response.QueryID}
	if !response.Success {
		status = model.MigrationStatus{State: model.MigrationFailed, QueryID: response.QueryID, Error: response.Error}
	}
	for _, origin := range pending.Origins {
		if err := setMigrationStatus(tx, pending.ProjectID, origin, status); err != nil {
			return err
		}
	}
	if err := tx.store.DeleteUnconfirmedMigration(response.QueryID); err != nil {
		return err
	}
	if err := tx.store.DeleteActiveQuery(response.QueryID); err != nil {
		return err
	}

	projectID, user, count := pending.ProjectID, pending.User, len(pending.Origins)
	tx.afterCommit(func() {
		metrics.XcmResponses.WithLabelValues(string(model.QueryKindMigration), string(status.State)).Inc()
		logger.Info("Project %d migration batch %d for %s: %d records %s", projectID, status.QueryID, user, count, status.State)
	})
	return nil
}
