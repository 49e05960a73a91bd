package logic

import (
	"context"
	"errors"
	"testing"

	"github.com/blues/launchpad/internal/chain"
	"github.com/blues/launchpad/internal/config"
	"github.com/blues/launchpad/internal/errs"
	"github.com/blues/launchpad/internal/ledger"
	"github.com/blues/launchpad/internal/model"
	"github.com/blues/launchpad/internal/oracle"
	"github.com/blues/launchpad/internal/store"
	"github.com/blues/launchpad/internal/xcm"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	issuer    = "issuer"
	evaluator = "eve"
	paraID    = uint32(2000)
)

var (
	alice = model.Caller{Account: "alice", Did: "did:alice", InvestorType: model.InvestorProfessional}
	bob   = model.Caller{Account: "bob", Did: "did:bob", InvestorType: model.InvestorProfessional}
	carol = model.Caller{Account: "carol", Did: "did:carol", InvestorType: model.InvestorRetail}
)

type harness struct {
	t         *testing.T
	ctx       context.Context
	engine    *Engine
	clock     *chain.LocalClock
	transport *xcm.MemoryTransport
	store     *store.MemoryStore
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testEngineConfig() config.EngineConfig {
	cfg := config.DefaultEngineConfig()
	cfg.BlocksPerHour = 1
	cfg.EvaluationDuration = 10
	cfg.AuctionInitializePeriodDuration = 5
	cfg.EnglishAuctionDuration = 5
	cfg.CandleAuctionDuration = 5
	cfg.CommunityFundingDuration = 5
	cfg.RemainderFundingDuration = 5
	cfg.ManualAcceptanceDuration = 5
	cfg.SuccessToSettlementTime = 2
	return cfg
}

func newHarness(t *testing.T, mutate func(cfg *config.EngineConfig)) *harness {
	t.Helper()

	cfg := testEngineConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	// 每条迁移消息最多两条记录
	size, err := xcm.FramedSize("carol", 2)
	require.NoError(t, err)
	migration := config.DefaultMigrationConfig()
	migration.MaxMessageSize = size

	prices := oracle.NewStaticProvider(map[string]decimal.Decimal{
		"PLMC": d("1"),
		"USDT": d("1"),
		"USDC": d("1"),
		"DOT":  d("5"),
	})
	client := oracle.NewClient(prices, map[string]uint8{"PLMC": 10, "USDT": 6, "USDC": 6, "DOT": 10}, 6)

	h := &harness{
		t:         t,
		ctx:       context.Background(),
		clock:     chain.NewLocalClock(1),
		transport: xcm.NewMemoryTransport(),
		store:     store.NewMemoryStore(),
	}
	h.engine = NewEngine(h.store, client, h.transport, h.clock, chain.NewKeccakRandomness("test"), cfg, migration)

	require.NoError(t, h.engine.RegisterAssets(h.ctx, config.DefaultAssets()))
	for _, account := range []string{evaluator, alice.Account, bob.Account, carol.Account} {
		require.NoError(t, h.engine.Mint(h.ctx, "PLMC", account, d("1000000")))
		require.NoError(t, h.engine.Mint(h.ctx, "USDT", account, d("1000000")))
	}
	return h
}

func metadata() model.ProjectMetadata {
	return model.ProjectMetadata{
		TokenInformation:        model.TokenInformation{Name: "Contribution Token", Symbol: "CT", Decimals: 10},
		AuctionAllocationSize:   d("100000"),
		CommunityAllocationSize: d("50000"),
		MinimumPrice:            d("1"),
		BiddingTicketSizes: model.BiddingTicketSizes{
			Professional:  model.TicketSize{UsdMinimumPerParticipation: decimal.NewNullDecimal(d("10"))},
			Institutional: model.TicketSize{UsdMinimumPerParticipation: decimal.NewNullDecimal(d("10"))},
		},
		ContributingTicketSizes: model.ContributingTicketSizes{
			Retail: model.TicketSize{UsdMinimumPerParticipation: decimal.NewNullDecimal(d("1"))},
		},
		ParticipationCurrencies:   []model.AcceptedFundingAsset{model.FundingAssetUSDT, model.FundingAssetUSDC},
		FundingDestinationAccount: "destination",
		OfferingDocumentHash:      "0xabc",
	}
}

func (h *harness) advance(n int) {
	h.t.Helper()
	for i := 0; i < n; i++ {
		h.clock.Advance()
		_, err := h.engine.OnInitialize(h.ctx)
		require.NoError(h.t, err)
	}
}

func (h *harness) advanceTo(block uint64) {
	h.t.Helper()
	for h.clock.BlockNumber() < block {
		h.advance(1)
	}
}

func (h *harness) project(id uint32) *model.Project {
	h.t.Helper()
	project, err := h.engine.GetProject(h.ctx, id)
	require.NoError(h.t, err)
	return project
}

func (h *harness) balance(asset, account, reason string) decimal.Decimal {
	h.t.Helper()
	balance, err := h.engine.Balance(h.ctx, asset, account, reason)
	require.NoError(h.t, err)
	return balance
}

func (h *harness) requireStatus(id uint32, status model.ProjectStatus) {
	h.t.Helper()
	require.Equal(h.t, status, h.project(id).Details.Status)
}

// toEnglishAuction 创建项目并推进到英式拍卖（区块 18）
func (h *harness) toEnglishAuction() uint32 {
	h.t.Helper()
	id, err := h.engine.CreateProject(h.ctx, issuer, metadata())
	require.NoError(h.t, err)
	require.NoError(h.t, h.engine.StartEvaluation(h.ctx, issuer, id))
	_, err = h.engine.Evaluate(h.ctx, evaluator, id, d("20000"))
	require.NoError(h.t, err)

	h.advanceTo(12)
	h.requireStatus(id, model.ProjectStatusAuctionInitializePeriod)
	h.advanceTo(18)
	h.requireStatus(id, model.ProjectStatusAuctionEnglish)
	return id
}

// toCommunity 推进到拍卖清算后的社区轮（区块 30）
func (h *harness) toCommunity(id uint32) {
	h.t.Helper()
	h.advanceTo(30)
	h.requireStatus(id, model.ProjectStatusCommunityRound)
}

// toSettlement 拍卖和社区轮全部售出，推进到结算（区块 33）
func (h *harness) toSettlement() uint32 {
	h.t.Helper()
	id := h.toEnglishAuction()
	_, err := h.engine.Bid(h.ctx, alice, id, d("100000"), 1, model.FundingAssetUSDT)
	require.NoError(h.t, err)
	h.toCommunity(id)

	for _, amount := range []string{"20000", "20000", "10000"} {
		_, err := h.engine.Contribute(h.ctx, carol, id, d(amount), 1, model.FundingAssetUSDT)
		require.NoError(h.t, err)
	}
	h.advance(1)
	h.requireStatus(id, model.ProjectStatusFundingSuccessful)
	h.advanceTo(33)
	h.requireStatus(id, model.ProjectStatusSettlementStarted)
	return id
}

func participationReason(id uint32) string {
	return ledger.HoldReason(ledger.ReasonParticipation, id)
}

func evaluationReason(id uint32) string {
	return ledger.HoldReason(ledger.ReasonEvaluation, id)
}

func TestMetadataRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	submitted := metadata()

	id, err := h.engine.CreateProject(h.ctx, issuer, submitted)
	require.NoError(t, err)

	project := h.project(id)
	assert.Equal(t, submitted, project.Metadata)
	assert.Equal(t, model.ProjectStatusApplication, project.Details.Status)
	assert.True(t, project.Details.FundraisingTarget.Equal(d("150000")))
	assert.True(t, project.Details.RemainingAuctionTokens.Equal(d("100000")))
	assert.True(t, project.Details.RemainingCommunityTokens.Equal(d("50000")))
}

func TestCreateProjectValidation(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name   string
		mutate func(m *model.ProjectMetadata)
	}{
		{"zero price", func(m *model.ProjectMetadata) { m.MinimumPrice = decimal.Zero }},
		{"no currencies", func(m *model.ProjectMetadata) { m.ParticipationCurrencies = nil }},
		{"unsupported currency", func(m *model.ProjectMetadata) {
			m.ParticipationCurrencies = []model.AcceptedFundingAsset{"BTC"}
		}},
		{"duplicate currency", func(m *model.ProjectMetadata) {
			m.ParticipationCurrencies = []model.AcceptedFundingAsset{model.FundingAssetUSDT, model.FundingAssetUSDT}
		}},
		{"min above max", func(m *model.ProjectMetadata) {
			m.BiddingTicketSizes.Professional = model.TicketSize{
				UsdMinimumPerParticipation: decimal.NewNullDecimal(d("100")),
				UsdMaximumPerDid:           decimal.NewNullDecimal(d("50")),
			}
		}},
		{"bad decimals", func(m *model.ProjectMetadata) { m.TokenInformation.Decimals = 2 }},
		{"zero allocation", func(m *model.ProjectMetadata) { m.AuctionAllocationSize = decimal.Zero }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metadata()
			tt.mutate(&m)
			_, err := h.engine.CreateProject(h.ctx, issuer, m)
			assert.True(t, errors.Is(err, errs.ErrValidity), "got %v", err)
		})
	}

	projects, err := h.engine.ListProjects(h.ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestEditAndRemoveProject(t *testing.T) {
	h := newHarness(t, nil)
	id, err := h.engine.CreateProject(h.ctx, issuer, metadata())
	require.NoError(t, err)

	edited := metadata()
	edited.MinimumPrice = d("2")
	assert.True(t, errors.Is(h.engine.EditProject(h.ctx, "mallory", id, edited), errs.ErrUnauthorized))
	require.NoError(t, h.engine.EditProject(h.ctx, issuer, id, edited))
	assert.True(t, h.project(id).Details.FundraisingTarget.Equal(d("300000")))

	require.NoError(t, h.engine.StartEvaluation(h.ctx, issuer, id))
	assert.True(t, errors.Is(h.engine.EditProject(h.ctx, issuer, id, metadata()), errs.ErrFrozen))
	assert.True(t, errors.Is(h.engine.RemoveProject(h.ctx, issuer, id), errs.ErrFrozen))

	other, err := h.engine.CreateProject(h.ctx, issuer, metadata())
	require.NoError(t, err)
	require.NoError(t, h.engine.RemoveProject(h.ctx, issuer, other))
	_, err = h.engine.GetProject(h.ctx, other)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestTooManyInsertionAttemptsRollsBack(t *testing.T) {
	h := newHarness(t, func(cfg *config.EngineConfig) {
		cfg.MaxProjectsToUpdatePerBlock = 1
		cfg.MaxProjectsToUpdateInsertionAttempts = 2
	})

	ids := make([]uint32, 3)
	for i := range ids {
		id, err := h.engine.CreateProject(h.ctx, issuer, metadata())
		require.NoError(t, err)
		ids[i] = id
	}

	require.NoError(t, h.engine.StartEvaluation(h.ctx, issuer, ids[0]))
	require.NoError(t, h.engine.StartEvaluation(h.ctx, issuer, ids[1]))

	block, update, err := h.engine.PendingUpdate(ids[1])
	require.NoError(t, err)
	require.NotNil(t, update)
	assert.Equal(t, uint64(13), block)

	err = h.engine.StartEvaluation(h.ctx, issuer, ids[2])
	assert.True(t, errors.Is(err, errs.ErrCapacityExceeded))

	project := h.project(ids[2])
	assert.Equal(t, model.ProjectStatusApplication, project.Details.Status)
	assert.False(t, project.Details.Frozen)
	_, update, err = h.engine.PendingUpdate(ids[2])
	require.NoError(t, err)
	assert.Nil(t, update)
}

func TestAutomaticTransitionIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	id := h.toEnglishAuction()

	assert.True(t, errors.Is(h.engine.EndEvaluation(h.ctx, id), errs.ErrInvalidState))
	assert.True(t, errors.Is(h.engine.StartEnglishAuction(h.ctx, issuer, id), errs.ErrInvalidState))

	h.advanceTo(24)
	h.requireStatus(id, model.ProjectStatusAuctionCandle)
	assert.True(t, errors.Is(h.engine.StartCandleAuction(h.ctx, id), errs.ErrInvalidState))
	h.requireStatus(id, model.ProjectStatusAuctionCandle)
}

func TestClockResumesFromLastBlock(t *testing.T) {
	h := newHarness(t, nil)
	id, err := h.engine.CreateProject(h.ctx, issuer, metadata())
	require.NoError(t, err)
	require.NoError(t, h.engine.StartEvaluation(h.ctx, issuer, id))
	_, err = h.engine.Evaluate(h.ctx, evaluator, id, d("20000"))
	require.NoError(t, err)
	h.advanceTo(12)
	h.requireStatus(id, model.ProjectStatusAuctionInitializePeriod)

	// 重启：新引擎共用同一个账本，时钟从配置的起始高度开始
	clock := chain.NewLocalClock(1)
	restarted := NewEngine(h.store, h.engine.oracle, h.transport, clock, chain.NewKeccakRandomness("test"), h.engine.cfg, h.engine.migration)
	last, err := restarted.LastBlock(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), last)
	clock.AdvanceTo(last)

	for clock.BlockNumber() < 18 {
		clock.Advance()
		_, err := restarted.OnInitialize(h.ctx)
		require.NoError(t, err)
	}
	project, err := restarted.GetProject(h.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusAuctionEnglish, project.Details.Status)

	last, err = restarted.LastBlock(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(18), last)
}

func TestManualEnglishAuctionStartRemovesPendingEntry(t *testing.T) {
	h := newHarness(t, nil)
	id, err := h.engine.CreateProject(h.ctx, issuer, metadata())
	require.NoError(t, err)
	require.NoError(t, h.engine.StartEvaluation(h.ctx, issuer, id))
	_, err = h.engine.Evaluate(h.ctx, evaluator, id, d("20000"))
	require.NoError(t, err)
	h.advanceTo(12)

	assert.True(t, errors.Is(h.engine.StartEnglishAuction(h.ctx, "mallory", id), errs.ErrUnauthorized))
	assert.True(t, errors.Is(h.engine.StartEnglishAuction(h.ctx, issuer, id), errs.ErrInvalidState))

	h.advance(1)
	require.NoError(t, h.engine.StartEnglishAuction(h.ctx, issuer, id))

	block, update, err := h.engine.PendingUpdate(id)
	require.NoError(t, err)
	require.NotNil(t, update)
	assert.Equal(t, model.UpdateCandleAuctionStart, update.UpdateType)
	assert.Equal(t, uint64(19), block)

	h.advanceTo(18)
	h.requireStatus(id, model.ProjectStatusAuctionEnglish)
}

func TestCandleEnding(t *testing.T) {
	for r := uint64(0); r < 50; r++ {
		end := candleEnding(model.BlockRange{Start: 10, End: 20}, r)
		assert.Greater(t, end, uint64(10))
		assert.Less(t, end, uint64(20))
	}
	assert.Equal(t, uint64(10), candleEnding(model.BlockRange{Start: 10, End: 11}, 7))
	assert.Equal(t, uint64(10), candleEnding(model.BlockRange{Start: 10, End: 10}, 7))
}
