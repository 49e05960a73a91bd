package logic

import (
	"context"
	"time"

	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/model"
	"github.com/blues/launchpad/internal/store"
	"github.com/shopspring/decimal"
)

const (
	minTokenDecimals = 4
	maxTokenDecimals = 20
)

// CreateProject 创建项目
func (e *Engine) CreateProject(ctx context.Context, issuer string, metadata model.ProjectMetadata) (uint32, error) {
	if issuer == "" {
		return 0, errs.New(errs.ErrUnauthorized, "发行方不能为空")
	}
	if err := validateMetadata(metadata); err != nil {
		return 0, err
	}

	var projectID uint32
	err := e.execute(ctx, func(tx *txContext) error {
		id, err := tx.store.NextID(store.CounterProjectID)
		if err != nil {
			return err
		}
		projectID = uint32(id)

		now := time.Now()
		project := &model.Project{
			ID:        projectID,
			Issuer:    issuer,
			Metadata:  metadata,
			CreatedAt: now,
			UpdatedAt: now,
			Details: model.ProjectDetails{
				Status: model.ProjectStatusApplication,
				EvaluationRound: model.EvaluationRoundInfo{
					TotalBondedUsd:  decimal.Zero,
					TotalBondedPlmc: decimal.Zero,
				},
			},
		}
		e.resetAllocation(project)
		return tx.store.SaveProject(project)
	})
	if err != nil {
		return 0, err
	}
	return projectID, nil
}

// EditProject 修改项目元数据，评估开始后不可修改
func (e *Engine) EditProject(ctx context.Context, caller string, projectID uint32, metadata model.ProjectMetadata) error {
	if err := validateMetadata(metadata); err != nil {
		return err
	}
	return e.execute(ctx, func(tx *txContext) error {
		project, err := tx.store.GetProject(projectID)
		if err != nil {
			return err
		}
		if err := e.ensureIssuer(project, caller); err != nil {
			return err
		}
		if project.Details.Frozen {
			return errs.New(errs.ErrFrozen, "项目 %d 已冻结", projectID)
		}

		project.Metadata = metadata
		project.UpdatedAt = time.Now()
		e.resetAllocation(project)
		return tx.store.SaveProject(project)
	})
}

// RemoveProject 删除尚未开始评估的项目
func (e *Engine) RemoveProject(ctx context.Context, caller string, projectID uint32) error {
	return e.execute(ctx, func(tx *txContext) error {
		project, err := tx.store.GetProject(projectID)
		if err != nil {
			return err
		}
		if err := e.ensureIssuer(project, caller); err != nil {
			return err
		}
		if project.Details.Frozen {
			return errs.New(errs.ErrFrozen, "项目 %d 已冻结", projectID)
		}
		if err := ensureStatus(project, model.ProjectStatusApplication); err != nil {
			return err
		}
		if err := e.removeUpdate(tx, projectID); err != nil {
			return err
		}
		return tx.store.DeleteProject(projectID)
	})
}

func (e *Engine) resetAllocation(project *model.Project) {
	metadata := project.Metadata
	project.Details.RemainingAuctionTokens = metadata.AuctionAllocationSize
	project.Details.RemainingCommunityTokens = metadata.CommunityAllocationSize
	project.Details.FundingReached = decimal.Zero
	project.Details.FundraisingTarget = metadata.TotalAllocationSize().Mul(metadata.MinimumPrice).Truncate(int32(e.cfg.UsdDecimals))
}

func validateMetadata(metadata model.ProjectMetadata) error {
	token := metadata.TokenInformation
	if token.Name == "" || token.Symbol == "" {
		return errs.New(errs.ErrValidity, "代币名称和符号不能为空")
	}
	if token.Decimals < minTokenDecimals || token.Decimals > maxTokenDecimals {
		return errs.New(errs.ErrValidity, "代币精度 %d 不在 [%d, %d] 范围内", token.Decimals, minTokenDecimals, maxTokenDecimals)
	}
	if !metadata.MinimumPrice.IsPositive() {
		return errs.New(errs.ErrValidity, "最低价必须大于零")
	}
	if !metadata.AuctionAllocationSize.IsPositive() || !metadata.CommunityAllocationSize.IsPositive() {
		return errs.New(errs.ErrValidity, "拍卖和社区分配量必须大于零")
	}
	if metadata.FundingDestinationAccount == "" {
		return errs.New(errs.ErrValidity, "募资接收账户不能为空")
	}

	if len(metadata.ParticipationCurrencies) == 0 {
		return errs.New(errs.ErrValidity, "至少需要一种募资资产")
	}
	seen := make(map[model.AcceptedFundingAsset]bool, len(metadata.ParticipationCurrencies))
	for _, asset := range metadata.ParticipationCurrencies {
		if !isSupportedAsset(asset) {
			return errs.New(errs.ErrValidity, "不支持的募资资产: %s", asset)
		}
		if seen[asset] {
			return errs.New(errs.ErrValidity, "募资资产重复: %s", asset)
		}
		seen[asset] = true
	}

	tickets := map[string]model.TicketSize{
		"bidding.professional":       metadata.BiddingTicketSizes.Professional,
		"bidding.institutional":      metadata.BiddingTicketSizes.Institutional,
		"contributing.retail":        metadata.ContributingTicketSizes.Retail,
		"contributing.professional":  metadata.ContributingTicketSizes.Professional,
		"contributing.institutional": metadata.ContributingTicketSizes.Institutional,
	}
	for name, ticket := range tickets {
		if err := validateTicketSize(name, ticket); err != nil {
			return err
		}
	}
	return nil
}

func validateTicketSize(name string, ticket model.TicketSize) error {
	lower, upper := ticket.UsdMinimumPerParticipation, ticket.UsdMaximumPerDid
	if lower.Valid && lower.Decimal.IsNegative() {
		return errs.New(errs.ErrValidity, "%s 最小金额为负", name)
	}
	if upper.Valid && !upper.Decimal.IsPositive() {
		return errs.New(errs.ErrValidity, "%s 最大金额必须大于零", name)
	}
	if lower.Valid && upper.Valid && lower.Decimal.GreaterThan(upper.Decimal) {
		return errs.New(errs.ErrValidity, "%s 最小金额 %s 大于最大金额 %s", name, lower.Decimal, upper.Decimal)
	}
	return nil
}

func isSupportedAsset(asset model.AcceptedFundingAsset) bool {
	for _, supported := range model.SupportedFundingAssets {
		if supported == asset {
			return true
		}
	}
	return false
}

// checkTicket 检查单次金额下限和同一身份的累计上限
func checkTicket(ticket model.TicketSize, amount, didTotal decimal.Decimal) error {
	if ticket.UsdMinimumPerParticipation.Valid && amount.LessThan(ticket.UsdMinimumPerParticipation.Decimal) {
		return errs.New(errs.ErrValidity, "金额 %s 低于最小值 %s", amount, ticket.UsdMinimumPerParticipation.Decimal)
	}
	if ticket.UsdMaximumPerDid.Valid && didTotal.Add(amount).GreaterThan(ticket.UsdMaximumPerDid.Decimal) {
		return errs.New(errs.ErrValidity, "身份累计金额 %s 超过最大值 %s", didTotal.Add(amount), ticket.UsdMaximumPerDid.Decimal)
	}
	return nil
}
