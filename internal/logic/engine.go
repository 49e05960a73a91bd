package logic

import (
	"context"
	"sync"

	"github.com/blues/launchpad/internal/chain"
	"github.com/blues/launchpad/internal/config"
	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/ledger"
	"github.com/blues/launchpad/internal/model"
	"github.com/blues/launchpad/internal/oracle"
	"github.com/blues/launchpad/internal/store"
	"github.com/blues/launchpad/internal/xcm"
	"github.com/shopspring/decimal"
)

// Engine 募资引擎，所有操作串行执行，每个操作是一个完整事务
type Engine struct {
	mu        sync.Mutex
	store     store.Store
	oracle    *oracle.Client
	transport xcm.Transport
	clock     chain.Clock
	random    chain.Randomness
	cfg       config.EngineConfig
	migration config.MigrationConfig
}

// NewEngine 创建募资引擎
func NewEngine(
	st store.Store,
	oc *oracle.Client,
	transport xcm.Transport,
	clock chain.Clock,
	random chain.Randomness,
	cfg config.EngineConfig,
	migration config.MigrationConfig,
) *Engine {
	return &Engine{
		store:     st,
		oracle:    oc,
		transport: transport,
		clock:     clock,
		random:    random,
		cfg:       cfg,
		migration: migration,
	}
}

// txContext 单个操作的执行上下文
type txContext struct {
	ctx      context.Context
	store    store.Store
	ledger   *ledger.Ledger
	now      uint64
	onCommit []func()
}

// afterCommit 事务提交后执行，用于指标和日志
func (tx *txContext) afterCommit(fn func()) {
	tx.onCommit = append(tx.onCommit, fn)
}

// execute 加锁后在一个事务中执行 fn，now 只读取一次
func (e *Engine) execute(ctx context.Context, fn func(tx *txContext) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run(ctx, e.clock.BlockNumber(), fn)
}

func (e *Engine) run(ctx context.Context, now uint64, fn func(tx *txContext) error) error {
	var committed []func()
	err := e.store.Transaction(func(st store.Store) error {
		tx := &txContext{ctx: ctx, store: st, ledger: ledger.New(st), now: now}
		if err := fn(tx); err != nil {
			return err
		}
		committed = tx.onCommit
		return nil
	})
	if err != nil {
		return err
	}
	for _, hook := range committed {
		hook()
	}
	return nil
}

// Config 引擎参数
func (e *Engine) Config() config.EngineConfig {
	return e.cfg
}

// Now 当前区块
func (e *Engine) Now() uint64 {
	return e.clock.BlockNumber()
}

// LastBlock 最后一个已执行 OnInitialize 的区块，重启后时钟从这里继续
func (e *Engine) LastBlock(ctx context.Context) (uint64, error) {
	var height uint64
	err := e.execute(ctx, func(tx *txContext) (err error) {
		height, err = tx.store.GetCounter(store.CounterBlockHeight)
		return err
	})
	return height, err
}

// RegisterAssets 登记资产，已存在的资产跳过
func (e *Engine) RegisterAssets(ctx context.Context, assets []config.AssetConfig) error {
	return e.execute(ctx, func(tx *txContext) error {
		for _, asset := range assets {
			if _, err := tx.store.GetAsset(asset.ID); err == nil {
				continue
			}
			if err := tx.ledger.CreateAsset(asset.ID, asset.Decimals, asset.MinBalance, e.cfg.SystemAccount); err != nil {
				return err
			}
		}
		return nil
	})
}

// Mint 给账户发放资产，用于测试网水龙头和初始化
func (e *Engine) Mint(ctx context.Context, asset, account string, amount decimal.Decimal) error {
	return e.execute(ctx, func(tx *txContext) error {
		return tx.ledger.Mint(asset, account, amount)
	})
}

// GetProject 查询项目
func (e *Engine) GetProject(ctx context.Context, id uint32) (*model.Project, error) {
	var project *model.Project
	err := e.execute(ctx, func(tx *txContext) (err error) {
		project, err = tx.store.GetProject(id)
		return err
	})
	return project, err
}

// ListProjects 按状态查询项目，不传状态时返回全部
func (e *Engine) ListProjects(ctx context.Context, statuses ...model.ProjectStatus) ([]*model.Project, error) {
	var projects []*model.Project
	err := e.execute(ctx, func(tx *txContext) (err error) {
		projects, err = tx.store.ListProjects(statuses...)
		return err
	})
	return projects, err
}

// ListEvaluations 查询评估，account 为空时返回全部
func (e *Engine) ListEvaluations(ctx context.Context, projectID uint32, account string) ([]*model.Evaluation, error) {
	var evaluations []*model.Evaluation
	err := e.execute(ctx, func(tx *txContext) (err error) {
		if _, err = tx.store.GetProject(projectID); err != nil {
			return err
		}
		evaluations, err = tx.store.ListEvaluations(projectID, account)
		return err
	})
	return evaluations, err
}

// ListBids 查询出价
func (e *Engine) ListBids(ctx context.Context, projectID uint32, account string) ([]*model.Bid, error) {
	var bids []*model.Bid
	err := e.execute(ctx, func(tx *txContext) (err error) {
		if _, err = tx.store.GetProject(projectID); err != nil {
			return err
		}
		bids, err = tx.store.ListBids(projectID, account)
		return err
	})
	return bids, err
}

// ListContributions 查询购买记录
func (e *Engine) ListContributions(ctx context.Context, projectID uint32, account string) ([]*model.Contribution, error) {
	var contributions []*model.Contribution
	err := e.execute(ctx, func(tx *txContext) (err error) {
		if _, err = tx.store.GetProject(projectID); err != nil {
			return err
		}
		contributions, err = tx.store.ListContributions(projectID, account)
		return err
	})
	return contributions, err
}

// Balance 查询余额，reason 为空时返回可用余额
func (e *Engine) Balance(ctx context.Context, asset, account, reason string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := e.execute(ctx, func(tx *txContext) (err error) {
		balance, err = tx.store.GetBalance(asset, account, reason)
		return err
	})
	return balance, err
}

func (e *Engine) ensureIssuer(project *model.Project, account string) error {
	if project.Issuer != account {
		return errs.New(errs.ErrUnauthorized, "只有发行方可以操作项目 %d", project.ID)
	}
	return nil
}

func (e *Engine) ensureNotIssuer(project *model.Project, account string) error {
	if project.Issuer == account {
		return errs.New(errs.ErrUnauthorized, "发行方不能参与自己的项目 %d", project.ID)
	}
	return nil
}

func ensureStatus(project *model.Project, statuses ...model.ProjectStatus) error {
	for _, status := range statuses {
		if project.Details.Status == status {
			return nil
		}
	}
	return errs.New(errs.ErrInvalidState, "项目 %d 当前状态为 %s", project.ID, project.Details.Status)
}

func (e *Engine) plmcDecimals() (uint8, error) {
	return e.oracle.Decimals(model.NativeAsset)
}
