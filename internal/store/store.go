package store

import (
	"github.com/blues/launchpad/internal/model"
	"github.com/shopspring/decimal"
)

// 计数器名称
const (
	CounterProjectID      = "project_id"
	CounterEvaluationID   = "evaluation_id"
	CounterBidID          = "bid_id"
	CounterContributionID = "contribution_id"
	CounterQueryID        = "query_id"
	CounterRandomNonce    = "random_nonce"
	CounterBlockHeight    = "block_height"
)

// Store 账本存储，所有方法在调用它的事务内生效
type Store interface {
	// Transaction 在事务中执行 fn，fn 返回错误时回滚全部修改
	Transaction(fn func(tx Store) error) error

	// NextID 返回计数器当前值并加一
	NextID(counter string) (uint64, error)
	// GetCounter 读取计数器当前值，不存在时为 0
	GetCounter(counter string) (uint64, error)
	SetCounter(counter string, value uint64) error

	GetProject(id uint32) (*model.Project, error)
	SaveProject(project *model.Project) error
	DeleteProject(id uint32) error
	ListProjects(statuses ...model.ProjectStatus) ([]*model.Project, error)

	GetBucket(projectID uint32) (*model.Bucket, error)
	SaveBucket(bucket *model.Bucket) error
	DeleteBucket(projectID uint32) error

	GetEvaluation(projectID, id uint32) (*model.Evaluation, error)
	// ListEvaluations account 为空时返回项目全部评估，按ID升序
	ListEvaluations(projectID uint32, account string) ([]*model.Evaluation, error)
	SaveEvaluation(evaluation *model.Evaluation) error
	DeleteEvaluation(projectID, id uint32) error

	GetBid(projectID, id uint32) (*model.Bid, error)
	ListBids(projectID uint32, account string) ([]*model.Bid, error)
	SaveBid(bid *model.Bid) error
	DeleteBid(projectID, id uint32) error

	GetContribution(projectID, id uint32) (*model.Contribution, error)
	ListContributions(projectID uint32, account string) ([]*model.Contribution, error)
	SaveContribution(contribution *model.Contribution) error
	DeleteContribution(projectID, id uint32) error

	// DueUpdates 返回区块的待执行转换，按 Position 排序
	DueUpdates(block uint64) ([]model.ProjectUpdate, error)
	// SaveDueUpdates 替换区块的待执行转换，空列表表示删除
	SaveDueUpdates(block uint64, updates []model.ProjectUpdate) error
	// FindDueUpdate 查找项目所在的区块
	FindDueUpdate(projectID uint32) (uint64, bool, error)

	GetBalance(asset, account, reason string) (decimal.Decimal, error)
	SetBalance(asset, account, reason string, amount decimal.Decimal) error

	GetAsset(id string) (*model.Asset, error)
	SaveAsset(asset *model.Asset) error

	GetUnconfirmedMigration(queryID uint64) (*model.UnconfirmedMigration, error)
	SaveUnconfirmedMigration(migration *model.UnconfirmedMigration) error
	DeleteUnconfirmedMigration(queryID uint64) error

	GetActiveQuery(queryID uint64) (*model.ActiveQuery, error)
	SaveActiveQuery(query *model.ActiveQuery) error
	DeleteActiveQuery(queryID uint64) error
	// ExpiredQueries 返回指定类型中在 block 之前已过期的查询，按查询编号排序
	ExpiredQueries(block uint64, kinds ...model.QueryKind) ([]model.ActiveQuery, error)
}
