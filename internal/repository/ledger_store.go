package repository

import (
	"errors"
	"fmt"

	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/model"
	"github.com/blues/launchpad/internal/store"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerStore 基于 postgres 的账本存储
type LedgerStore struct {
	db   *gorm.DB
	inTx bool
}

// NewLedgerStore 创建账本存储
func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

var _ store.Store = (*LedgerStore)(nil)

// Transaction 开启数据库事务执行 fn
func (s *LedgerStore) Transaction(fn func(tx store.Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("开启事务失败: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(&LedgerStore{db: tx, inTx: true}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

func (s *LedgerStore) NextID(counter string) (uint64, error) {
	var c model.Counter
	err := s.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "name = ?", counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c = model.Counter{Name: counter, Value: 0}
	} else if err != nil {
		return 0, fmt.Errorf("读取计数器失败: %w", err)
	}

	id := c.Value
	c.Value++
	if err := s.upsert(&c); err != nil {
		return 0, fmt.Errorf("更新计数器失败: %w", err)
	}
	return id, nil
}

func (s *LedgerStore) GetCounter(counter string) (uint64, error) {
	var c model.Counter
	err := s.db.First(&c, "name = ?", counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("读取计数器失败: %w", err)
	}
	return c.Value, nil
}

func (s *LedgerStore) SetCounter(counter string, value uint64) error {
	if err := s.upsert(&model.Counter{Name: counter, Value: value}); err != nil {
		return fmt.Errorf("更新计数器失败: %w", err)
	}
	return nil
}

func (s *LedgerStore) GetProject(id uint32) (*model.Project, error) {
	var project model.Project
	if err := s.db.First(&project, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "项目不存在: %d", id)
	}
	return &project, nil
}

func (s *LedgerStore) SaveProject(project *model.Project) error {
	return s.upsert(project)
}

func (s *LedgerStore) DeleteProject(id uint32) error {
	return s.db.Delete(&model.Project{}, "id = ?", id).Error
}

func (s *LedgerStore) ListProjects(statuses ...model.ProjectStatus) ([]*model.Project, error) {
	var projects []*model.Project
	query := s.db.Order("id")
	if len(statuses) > 0 {
		query = query.Where("details_status IN ?", statuses)
	}
	if err := query.Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("获取项目列表失败: %w", err)
	}
	return projects, nil
}

func (s *LedgerStore) GetBucket(projectID uint32) (*model.Bucket, error) {
	var bucket model.Bucket
	if err := s.db.First(&bucket, "project_id = ?", projectID).Error; err != nil {
		return nil, notFound(err, "价格档位不存在: %d", projectID)
	}
	return &bucket, nil
}

func (s *LedgerStore) SaveBucket(bucket *model.Bucket) error {
	return s.upsert(bucket)
}

func (s *LedgerStore) DeleteBucket(projectID uint32) error {
	return s.db.Delete(&model.Bucket{}, "project_id = ?", projectID).Error
}

func (s *LedgerStore) GetEvaluation(projectID, id uint32) (*model.Evaluation, error) {
	var evaluation model.Evaluation
	if err := s.db.First(&evaluation, "project_id = ? AND id = ?", projectID, id).Error; err != nil {
		return nil, notFound(err, "评估不存在: %d/%d", projectID, id)
	}
	return &evaluation, nil
}

func (s *LedgerStore) ListEvaluations(projectID uint32, account string) ([]*model.Evaluation, error) {
	var evaluations []*model.Evaluation
	query := s.db.Where("project_id = ?", projectID)
	if account != "" {
		query = query.Where("evaluator = ?", account)
	}
	if err := query.Order("id").Find(&evaluations).Error; err != nil {
		return nil, fmt.Errorf("获取评估列表失败: %w", err)
	}
	return evaluations, nil
}

func (s *LedgerStore) SaveEvaluation(evaluation *model.Evaluation) error {
	return s.upsert(evaluation)
}

func (s *LedgerStore) DeleteEvaluation(projectID, id uint32) error {
	return s.db.Delete(&model.Evaluation{}, "project_id = ? AND id = ?", projectID, id).Error
}

func (s *LedgerStore) GetBid(projectID, id uint32) (*model.Bid, error) {
	var bid model.Bid
	if err := s.db.First(&bid, "project_id = ? AND id = ?", projectID, id).Error; err != nil {
		return nil, notFound(err, "出价不存在: %d/%d", projectID, id)
	}
	return &bid, nil
}

func (s *LedgerStore) ListBids(projectID uint32, account string) ([]*model.Bid, error) {
	var bids []*model.Bid
	query := s.db.Where("project_id = ?", projectID)
	if account != "" {
		query = query.Where("bidder = ?", account)
	}
	if err := query.Order("id").Find(&bids).Error; err != nil {
		return nil, fmt.Errorf("获取出价列表失败: %w", err)
	}
	return bids, nil
}

func (s *LedgerStore) SaveBid(bid *model.Bid) error {
	return s.upsert(bid)
}

func (s *LedgerStore) DeleteBid(projectID, id uint32) error {
	return s.db.Delete(&model.Bid{}, "project_id = ? AND id = ?", projectID, id).Error
}

func (s *LedgerStore) GetContribution(projectID, id uint32) (*model.Contribution, error) {
	var contribution model.Contribution
	if err := s.db.First(&contribution, "project_id = ? AND id = ?", projectID, id).Error; err != nil {
		return nil, notFound(err, "购买记录不存在: %d/%d", projectID, id)
	}
	return &contribution, nil
}

func (s *LedgerStore) ListContributions(projectID uint32, account string) ([]*model.Contribution, error) {
	var contributions []*model.Contribution
	query := s.db.Where("project_id = ?", projectID)
	if account != "" {
		query = query.Where("contributor = ?", account)
	}
	if err := query.Order("id").Find(&contributions).Error; err != nil {
		return nil, fmt.Errorf("获取购买记录失败: %w", err)
	}
	return contributions, nil
}

func (s *LedgerStore) SaveContribution(contribution *model.Contribution) error {
	return s.upsert(contribution)
}

func (s *LedgerStore) DeleteContribution(projectID, id uint32) error {
	return s.db.Delete(&model.Contribution{}, "project_id = ? AND id = ?", projectID, id).Error
}

func (s *LedgerStore) DueUpdates(block uint64) ([]model.ProjectUpdate, error) {
	var updates []model.ProjectUpdate
	if err := s.db.Where("block = ?", block).Order("position").Find(&updates).Error; err != nil {
		return nil, fmt.Errorf("获取待执行转换失败: %w", err)
	}
	return updates, nil
}

func (s *LedgerStore) SaveDueUpdates(block uint64, updates []model.ProjectUpdate) error {
	if err := s.db.Where("block = ?", block).Delete(&model.ProjectUpdate{}).Error; err != nil {
		return fmt.Errorf("清理待执行转换失败: %w", err)
	}
	if len(updates) == 0 {
		return nil
	}

	rows := make([]model.ProjectUpdate, len(updates))
	for i, update := range updates {
		update.ID = 0
		update.Block = block
		update.Position = i
		rows[i] = update
	}
	return s.db.Create(&rows).Error
}

func (s *LedgerStore) FindDueUpdate(projectID uint32) (uint64, bool, error) {
	var update model.ProjectUpdate
	err := s.db.Where("project_id = ?", projectID).Order("block").First(&update).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("查找待执行转换失败: %w", err)
	}
	return update.Block, true, nil
}

func (s *LedgerStore) GetBalance(asset, account, reason string) (decimal.Decimal, error) {
	var balance model.Balance
	err := s.db.First(&balance, "asset = ? AND account = ? AND reason = ?", asset, account, reason).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("读取余额失败: %w", err)
	}
	return balance.Amount, nil
}

func (s *LedgerStore) SetBalance(asset, account, reason string, amount decimal.Decimal) error {
	if amount.IsZero() {
		return s.db.Delete(&model.Balance{}, "asset = ? AND account = ? AND reason = ?", asset, account, reason).Error
	}
	return s.upsert(&model.Balance{Asset: asset, Account: account, Reason: reason, Amount: amount})
}

func (s *LedgerStore) GetAsset(id string) (*model.Asset, error) {
	var asset model.Asset
	if err := s.db.First(&asset, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "资产不存在: %s", id)
	}
	return &asset, nil
}

func (s *LedgerStore) SaveAsset(asset *model.Asset) error {
	return s.upsert(asset)
}

func (s *LedgerStore) GetUnconfirmedMigration(queryID uint64) (*model.UnconfirmedMigration, error) {
	var migration model.UnconfirmedMigration
	if err := s.db.First(&migration, "query_id = ?", queryID).Error; err != nil {
		return nil, notFound(err, "待确认迁移不存在: %d", queryID)
	}
	return &migration, nil
}

func (s *LedgerStore) SaveUnconfirmedMigration(migration *model.UnconfirmedMigration) error {
	return s.upsert(migration)
}

func (s *LedgerStore) DeleteUnconfirmedMigration(queryID uint64) error {
	return s.db.Delete(&model.UnconfirmedMigration{}, "query_id = ?", queryID).Error
}

func (s *LedgerStore) GetActiveQuery(queryID uint64) (*model.ActiveQuery, error) {
	var query model.ActiveQuery
	if err := s.db.First(&query, "query_id = ?", queryID).Error; err != nil {
		return nil, notFound(err, "查询不存在: %d", queryID)
	}
	return &query, nil
}

func (s *LedgerStore) SaveActiveQuery(query *model.ActiveQuery) error {
	return s.upsert(query)
}

func (s *LedgerStore) DeleteActiveQuery(queryID uint64) error {
	return s.db.Delete(&model.ActiveQuery{}, "query_id = ?", queryID).Error
}

func (s *LedgerStore) ExpiredQueries(block uint64, kinds ...model.QueryKind) ([]model.ActiveQuery, error) {
	var queries []model.ActiveQuery
	if len(kinds) == 0 {
		return queries, nil
	}
	err := s.db.Where("expires_at < ? AND kind IN ?", block, kinds).Order("query_id").Find(&queries).Error
	if err != nil {
		return nil, fmt.Errorf("获取过期查询失败: %w", err)
	}
	return queries, nil
}

// upsert 按主键插入或覆盖整行，主键为零值的行也会覆盖
func (s *LedgerStore) upsert(value interface{}) error {
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(value).Error
}

// notFound 将 gorm 的记录不存在转换为业务错误
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.New(errs.ErrNotFound, format, args...)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
