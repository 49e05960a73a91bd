package store

import (
	"sort"
	"sync"

	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/model"
	"github.com/shopspring/decimal"
)

type participationKey struct {
	projectID uint32
	id        uint32
}

type balanceKey struct {
	asset   string
	account string
	reason  string
}

// memState 内存状态，值语义保存，读写时复制
type memState struct {
	counters      map[string]uint64
	projects      map[uint32]model.Project
	buckets       map[uint32]model.Bucket
	evaluations   map[participationKey]model.Evaluation
	bids          map[participationKey]model.Bid
	contributions map[participationKey]model.Contribution
	dueUpdates    map[uint64][]model.ProjectUpdate
	balances      map[balanceKey]decimal.Decimal
	assets        map[string]model.Asset
	unconfirmed   map[uint64]model.UnconfirmedMigration
	queries       map[uint64]model.ActiveQuery
}

func newMemState() *memState {
	return &memState{
		counters:      make(map[string]uint64),
		projects:      make(map[uint32]model.Project),
		buckets:       make(map[uint32]model.Bucket),
		evaluations:   make(map[participationKey]model.Evaluation),
		bids:          make(map[participationKey]model.Bid),
		contributions: make(map[participationKey]model.Contribution),
		dueUpdates:    make(map[uint64][]model.ProjectUpdate),
		balances:      make(map[balanceKey]decimal.Decimal),
		assets:        make(map[string]model.Asset),
		unconfirmed:   make(map[uint64]model.UnconfirmedMigration),
		queries:       make(map[uint64]model.ActiveQuery),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.counters {
		c.counters[k] = v
	}
	for k, v := range s.projects {
		c.projects[k] = cloneProject(v)
	}
	for k, v := range s.buckets {
		c.buckets[k] = v
	}
	for k, v := range s.evaluations {
		c.evaluations[k] = cloneEvaluation(v)
	}
	for k, v := range s.bids {
		c.bids[k] = cloneBid(v)
	}
	for k, v := range s.contributions {
		c.contributions[k] = cloneContribution(v)
	}
	for k, v := range s.dueUpdates {
		c.dueUpdates[k] = append([]model.ProjectUpdate(nil), v...)
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.assets {
		c.assets[k] = v
	}
	for k, v := range s.unconfirmed {
		v.Origins = append([]model.MigrationOrigin(nil), v.Origins...)
		c.unconfirmed[k] = v
	}
	for k, v := range s.queries {
		c.queries[k] = v
	}
	return c
}

// MemoryStore 内存账本，事务通过快照实现
type MemoryStore struct {
	mu    *sync.Mutex
	state *memState
	inTx  bool
}

// NewMemoryStore 创建内存账本
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu:    &sync.Mutex{},
		state: newMemState(),
	}
}

// Transaction 在状态快照上执行 fn，成功后整体替换
func (m *MemoryStore) Transaction(fn func(tx Store) error) error {
	if m.inTx {
		return fn(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &MemoryStore{mu: m.mu, state: m.state.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *MemoryStore) NextID(counter string) (uint64, error) {
	id := m.state.counters[counter]
	m.state.counters[counter] = id + 1
	return id, nil
}

func (m *MemoryStore) GetCounter(counter string) (uint64, error) {
	return m.state.counters[counter], nil
}

func (m *MemoryStore) SetCounter(counter string, value uint64) error {
	m.state.counters[counter] = value
	return nil
}

func (m *MemoryStore) GetProject(id uint32) (*model.Project, error) {
	project, ok := m.state.projects[id]
	if !ok {
		return nil, errs.New(errs.ErrNotFound, "项目不存在: %d", id)
	}
	project = cloneProject(project)
	return &project, nil
}

func (m *MemoryStore) SaveProject(project *model.Project) error {
	m.state.projects[project.ID] = cloneProject(*project)
	return nil
}

func (m *MemoryStore) DeleteProject(id uint32) error {
	delete(m.state.projects, id)
	return nil
}

func (m *MemoryStore) ListProjects(statuses ...model.ProjectStatus) ([]*model.Project, error) {
	projects := make([]*model.Project, 0)
	for _, project := range m.state.projects {
		if len(statuses) > 0 && !containsStatus(statuses, project.Details.Status) {
			continue
		}
		p := cloneProject(project)
		projects = append(projects, &p)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ID < projects[j].ID })
	return projects, nil
}

func (m *MemoryStore) GetBucket(projectID uint32) (*model.Bucket, error) {
	bucket, ok := m.state.buckets[projectID]
	if !ok {
		return nil, errs.New(errs.ErrNotFound, "价格档位不存在: %d", projectID)
	}
	return &bucket, nil
}

func (m *MemoryStore) SaveBucket(bucket *model.Bucket) error {
	m.state.buckets[bucket.ProjectID] = *bucket
	return nil
}

func (m *MemoryStore) DeleteBucket(projectID uint32) error {
	delete(m.state.buckets, projectID)
	return nil
}

func (m *MemoryStore) GetEvaluation(projectID, id uint32) (*model.Evaluation, error) {
	evaluation, ok := m.state.evaluations[participationKey{projectID, id}]
	if !ok {
		return nil, errs.New(errs.ErrNotFound, "评估不存在: %d/%d", projectID, id)
	}
	evaluation = cloneEvaluation(evaluation)
	return &evaluation, nil
}

func (m *MemoryStore) ListEvaluations(projectID uint32, account string) ([]*model.Evaluation, error) {
	evaluations := make([]*model.Evaluation, 0)
	for key, evaluation := range m.state.evaluations {
		if key.projectID != projectID || (account != "" && evaluation.Evaluator != account) {
			continue
		}
		e := cloneEvaluation(evaluation)
		evaluations = append(evaluations, &e)
	}
	sort.Slice(evaluations, func(i, j int) bool { return evaluations[i].ID < evaluations[j].ID })
	return evaluations, nil
}

func (m *MemoryStore) SaveEvaluation(evaluation *model.Evaluation) error {
	m.state.evaluations[participationKey{evaluation.ProjectID, evaluation.ID}] = cloneEvaluation(*evaluation)
	return nil
}

func (m *MemoryStore) DeleteEvaluation(projectID, id uint32) error {
	delete(m.state.evaluations, participationKey{projectID, id})
	return nil
}

func (m *MemoryStore) GetBid(projectID, id uint32) (*model.Bid, error) {
	bid, ok := m.state.bids[participationKey{projectID, id}]
	if !ok {
		return nil, errs.New(errs.ErrNotFound, "出价不存在: %d/%d", projectID, id)
	}
	bid = cloneBid(bid)
	return &bid, nil
}

func (m *MemoryStore) ListBids(projectID uint32, account string) ([]*model.Bid, error) {
	bids := make([]*model.Bid, 0)
	for key, bid := range m.state.bids {
		if key.projectID != projectID || (account != "" && bid.Bidder != account) {
			continue
		}
		b := cloneBid(bid)
		bids = append(bids, &b)
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].ID < bids[j].ID })
	return bids, nil
}

func (m *MemoryStore) SaveBid(bid *model.Bid) error {
	m.state.bids[participationKey{bid.ProjectID, bid.ID}] = cloneBid(*bid)
	return nil
}

func (m *MemoryStore) DeleteBid(projectID, id uint32) error {
	delete(m.state.bids, participationKey{projectID, id})
	return nil
}

func (m *MemoryStore) GetContribution(projectID, id uint32) (*model.Contribution, error) {
	contribution, ok := m.state.contributions[participationKey{projectID, id}]
	if !ok {
		return nil, errs.New(errs.ErrNotFound, "购买记录不存在: %d/%d", projectID, id)
	}
	contribution = cloneContribution(contribution)
	return &contribution, nil
}

func (m *MemoryStore) ListContributions(projectID uint32, account string) ([]*model.Contribution, error) {
	contributions := make([]*model.Contribution, 0)
	for key, contribution := range m.state.contributions {
		if key.projectID != projectID || (account != "" && contribution.Contributor != account) {
			continue
		}
		c := cloneContribution(contribution)
		contributions = append(contributions, &c)
	}
	sort.Slice(contributions, func(i, j int) bool { return contributions[i].ID < contributions[j].ID })
	return contributions, nil
}

func (m *MemoryStore) SaveContribution(contribution *model.Contribution) error {
	m.state.contributions[participationKey{contribution.ProjectID, contribution.ID}] = cloneContribution(*contribution)
	return nil
}

func (m *MemoryStore) DeleteContribution(projectID, id uint32) error {
	delete(m.state.contributions, participationKey{projectID, id})
	return nil
}

func (m *MemoryStore) DueUpdates(block uint64) ([]model.ProjectUpdate, error) {
	return append([]model.ProjectUpdate(nil), m.state.dueUpdates[block]...), nil
}

func (m *MemoryStore) SaveDueUpdates(block uint64, updates []model.ProjectUpdate) error {
	if len(updates) == 0 {
		delete(m.state.dueUpdates, block)
		return nil
	}
	saved := make([]model.ProjectUpdate, len(updates))
	for i, update := range updates {
		update.Block = block
		update.Position = i
		saved[i] = update
	}
	m.state.dueUpdates[block] = saved
	return nil
}

func (m *MemoryStore) FindDueUpdate(projectID uint32) (uint64, bool, error) {
	blocks := make([]uint64, 0, len(m.state.dueUpdates))
	for block := range m.state.dueUpdates {
		blocks = append(blocks, block)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })
	for _, block := range blocks {
		for _, update := range m.state.dueUpdates[block] {
			if update.ProjectID == projectID {
				return block, true, nil
			}
		}
	}
	return 0, false, nil
}

func (m *MemoryStore) GetBalance(asset, account, reason string) (decimal.Decimal, error) {
	return m.state.balances[balanceKey{asset, account, reason}], nil
}

func (m *MemoryStore) SetBalance(asset, account, reason string, amount decimal.Decimal) error {
	key := balanceKey{asset, account, reason}
	if amount.IsZero() {
		delete(m.state.balances, key)
		return nil
	}
	m.state.balances[key] = amount
	return nil
}

func (m *MemoryStore) GetAsset(id string) (*model.Asset, error) {
	asset, ok := m.state.assets[id]
	if !ok {
		return nil, errs.New(errs.ErrNotFound, "资产不存在: %s", id)
	}
	return &asset, nil
}

func (m *MemoryStore) SaveAsset(asset *model.Asset) error {
	m.state.assets[asset.ID] = *asset
	return nil
}

func (m *MemoryStore) GetUnconfirmedMigration(queryID uint64) (*model.UnconfirmedMigration, error) {
	migration, ok := m.state.unconfirmed[queryID]
	if !ok {
		return nil, errs.New(errs.ErrNotFound, "待确认迁移不存在: %d", queryID)
	}
	migration.Origins = append([]model.MigrationOrigin(nil), migration.Origins...)
	return &migration, nil
}

func (m *MemoryStore) SaveUnconfirmedMigration(migration *model.UnconfirmedMigration) error {
	saved := *migration
	saved.Origins = append([]model.MigrationOrigin(nil), migration.Origins...)
	m.state.unconfirmed[migration.QueryID] = saved
	return nil
}

func (m *MemoryStore) DeleteUnconfirmedMigration(queryID uint64) error {
	delete(m.state.unconfirmed, queryID)
	return nil
}

func (m *MemoryStore) GetActiveQuery(queryID uint64) (*model.ActiveQuery, error) {
	query, ok := m.state.queries[queryID]
	if !ok {
		return nil, errs.New(errs.ErrNotFound, "查询不存在: %d", queryID)
	}
	return &query, nil
}

func (m *MemoryStore) SaveActiveQuery(query *model.ActiveQuery) error {
	m.state.queries[query.QueryID] = *query
	return nil
}

func (m *MemoryStore) DeleteActiveQuery(queryID uint64) error {
	delete(m.state.queries, queryID)
	return nil
}

func (m *MemoryStore) ExpiredQueries(block uint64, kinds ...model.QueryKind) ([]model.ActiveQuery, error) {
	var expired []model.ActiveQuery
	for _, query := range m.state.queries {
		if query.ExpiresAt < block && containsKind(kinds, query.Kind) {
			expired = append(expired, query)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].QueryID < expired[j].QueryID })
	return expired, nil
}

func containsKind(kinds []model.QueryKind, kind model.QueryKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func containsStatus(statuses []model.ProjectStatus, status model.ProjectStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func cloneProject(p model.Project) model.Project {
	p.Metadata.ParticipationCurrencies = append([]model.AcceptedFundingAsset(nil), p.Metadata.ParticipationCurrencies...)
	if p.Details.RandomCandleEnding != nil {
		v := *p.Details.RandomCandleEnding
		p.Details.RandomCandleEnding = &v
	}
	if p.Details.ParaID != nil {
		v := *p.Details.ParaID
		p.Details.ParaID = &v
	}
	if p.Details.MigrationReadiness != nil {
		v := *p.Details.MigrationReadiness
		p.Details.MigrationReadiness = &v
	}
	if p.Details.EvaluationRound.EvaluatorsOutcome.Reward != nil {
		v := *p.Details.EvaluationRound.EvaluatorsOutcome.Reward
		p.Details.EvaluationRound.EvaluatorsOutcome.Reward = &v
	}
	return p
}

func cloneEvaluation(e model.Evaluation) model.Evaluation {
	if e.RewardedOrSlashed != nil {
		v := *e.RewardedOrSlashed
		e.RewardedOrSlashed = &v
	}
	return e
}

func cloneBid(b model.Bid) model.Bid {
	if b.PlmcVestingInfo != nil {
		v := *b.PlmcVestingInfo
		b.PlmcVestingInfo = &v
	}
	return b
}

func cloneContribution(c model.Contribution) model.Contribution {
	if c.PlmcVestingInfo != nil {
		v := *c.PlmcVestingInfo
		c.PlmcVestingInfo = &v
	}
	return c
}
