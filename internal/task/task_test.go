package task

import (
	"context"
	"testing"
	"time"

	"github.com/blues/launchpad/internal/chain"
	"github.com/blues/launchpad/internal/config"
	"github.com/blues/launchpad/internal/logic"
	"github.com/blues/launchpad/internal/model"
	"github.com/blues/launchpad/internal/oracle"
	"github.com/blues/launchpad/internal/store"
	"github.com/blues/launchpad/internal/xcm"
	"github.com/panjf2000/ants/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const issuer = "issuer"

var (
	alice = model.Caller{Account: "alice", Did: "did:alice", InvestorType: model.InvestorProfessional}
	carol = model.Caller{Account: "carol", Did: "did:carol", InvestorType: model.InvestorRetail}
)

type fixture struct {
	ctx       context.Context
	engine    *logic.Engine
	clock     *chain.LocalClock
	transport *xcm.MemoryTransport
	pool      *ants.Pool
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.DefaultEngineConfig()
	cfg.BlocksPerHour = 1
	cfg.EvaluationDuration = 3
	cfg.AuctionInitializePeriodDuration = 2
	cfg.EnglishAuctionDuration = 2
	cfg.CandleAuctionDuration = 2
	cfg.CommunityFundingDuration = 2
	cfg.RemainderFundingDuration = 2
	cfg.ManualAcceptanceDuration = 2
	cfg.SuccessToSettlementTime = 1

	prices := oracle.NewStaticProvider(map[string]decimal.Decimal{"PLMC": d("1"), "USDT": d("1"), "USDC": d("1"), "DOT": d("5")})
	client := oracle.NewClient(prices, map[string]uint8{"PLMC": 10, "USDT": 6, "USDC": 6, "DOT": 10}, 6)

	pool, err := ants.NewPool(2)
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	f := &fixture{
		ctx:       context.Background(),
		clock:     chain.NewLocalClock(1),
		transport: xcm.NewMemoryTransport(),
		pool:      pool,
	}
	f.engine = logic.NewEngine(store.NewMemoryStore(), client, f.transport, f.clock,
		chain.NewKeccakRandomness("task"), cfg, config.DefaultMigrationConfig())

	require.NoError(t, f.engine.RegisterAssets(f.ctx, config.DefaultAssets()))
	for _, account := range []string{"eve", alice.Account, carol.Account} {
		require.NoError(t, f.engine.Mint(f.ctx, "PLMC", account, d("1000000")))
		require.NoError(t, f.engine.Mint(f.ctx, "USDT", account, d("1000000")))
	}
	return f
}

func (f *fixture) advanceUntil(t *testing.T, id uint32, status model.ProjectStatus) {
	t.Helper()
	for i := 0; i < 50; i++ {
		project, err := f.engine.GetProject(f.ctx, id)
		require.NoError(t, err)
		if project.Details.Status == status {
			return
		}
		f.clock.Advance()
		_, err = f.engine.OnInitialize(f.ctx)
		require.NoError(t, err)
	}
	t.Fatalf("project %d never reached %s", id, status)
}

// settledProject 拍卖和社区轮售罄后进入结算
func (f *fixture) settledProject(t *testing.T) uint32 {
	t.Helper()
	metadata := model.ProjectMetadata{
		TokenInformation:          model.TokenInformation{Name: "Token", Symbol: "TKN", Decimals: 10},
		AuctionAllocationSize:     d("1000"),
		CommunityAllocationSize:   d("500"),
		MinimumPrice:              d("1"),
		ParticipationCurrencies:   []model.AcceptedFundingAsset{model.FundingAssetUSDT},
		FundingDestinationAccount: "destination",
	}
	id, err := f.engine.CreateProject(f.ctx, issuer, metadata)
	require.NoError(t, err)
	require.NoError(t, f.engine.StartEvaluation(f.ctx, issuer, id))
	_, err = f.engine.Evaluate(f.ctx, "eve", id, d("500"))
	require.NoError(t, err)

	f.advanceUntil(t, id, model.ProjectStatusAuctionEnglish)
	_, err = f.engine.Bid(f.ctx, alice, id, d("1000"), 1, model.FundingAssetUSDT)
	require.NoError(t, err)

	f.advanceUntil(t, id, model.ProjectStatusCommunityRound)
	_, err = f.engine.Contribute(f.ctx, carol, id, d("500"), 1, model.FundingAssetUSDT)
	require.NoError(t, err)

	f.advanceUntil(t, id, model.ProjectStatusSettlementStarted)
	return id
}

func TestSettlementJobSettlesEverything(t *testing.T) {
	f := newFixture(t)
	id := f.settledProject(t)
	job := NewSettlementJob(f.engine, f.pool, time.Minute)

	// 释放期未结束，只能发币和划转资金
	job.Execute()
	bids, err := f.engine.ListBids(f.ctx, id, "")
	require.NoError(t, err)
	assert.True(t, bids[0].CtMinted)
	assert.True(t, bids[0].FundsReleased)
	assert.True(t, bids[0].PlmcBond.IsPositive())

	f.clock.Advance()
	job.Execute()

	bids, err = f.engine.ListBids(f.ctx, id, "")
	require.NoError(t, err)
	assert.True(t, bids[0].PlmcBond.IsZero())
	contributions, err := f.engine.ListContributions(f.ctx, id, "")
	require.NoError(t, err)
	assert.True(t, contributions[0].CtMinted)
	assert.True(t, contributions[0].PlmcBond.IsZero())
	evaluations, err := f.engine.ListEvaluations(f.ctx, id, "")
	require.NoError(t, err)
	require.NotNil(t, evaluations[0].RewardedOrSlashed)
	assert.True(t, evaluations[0].CurrentPlmcBond.IsZero())

	destination, err := f.engine.Balance(f.ctx, "USDT", "destination", "")
	require.NoError(t, err)
	assert.True(t, destination.Equal(d("1500")))

	// 再次执行不做任何事
	job.Execute()
}

func TestMigrationJobMigratesPendingParticipants(t *testing.T) {
	f := newFixture(t)
	id := f.settledProject(t)
	settlement := NewSettlementJob(f.engine, f.pool, time.Minute)
	f.clock.Advance()
	settlement.Execute()

	system := f.engine.Config().SystemAccount
	require.NoError(t, f.engine.SetDestinationChainID(f.ctx, issuer, id, 2000))
	require.NoError(t, f.engine.HandleChannelOpen(f.ctx, system, id, logic.ChannelProjectToHub))
	require.NoError(t, f.engine.HandleChannelOpen(f.ctx, system, id, logic.ChannelHubToProject))
	check, ok := f.transport.Last()
	require.True(t, ok)

	require.NoError(t, f.engine.HandleResponse(f.ctx, xcm.Response{
		QueryID: check.HoldingQueryID,
		Origin:  2000,
		Kind:    xcm.ResponseAssets,
		Assets:  []xcm.Asset{{ID: model.CtAsset(id), Origin: 2000, Amount: d("1500")}},
	}))
	require.NoError(t, f.engine.HandleResponse(f.ctx, xcm.Response{
		QueryID: check.PalletQueryID,
		Origin:  2000,
		Kind:    xcm.ResponsePalletsInfo,
		Pallets: []xcm.PalletInfo{{Index: 51, Name: "polimec_receiver", ModuleName: "polimec_receiver"}},
	}))

	job := NewMigrationJob(f.engine, f.pool, time.Minute)
	job.Execute()
	assert.Len(t, f.transport.Sent(), 1)

	require.NoError(t, f.engine.StartMigration(f.ctx, issuer, id))
	job.Execute()
	sent := f.transport.Sent()
	require.Len(t, sent, 4)

	users := make(map[string]bool)
	for _, msg := range sent[1:] {
		assert.Equal(t, xcm.KindMigration, msg.Kind)
		_, user, _, err := xcm.DecodeMigrations(msg.Payload, 10)
		require.NoError(t, err)
		users[user] = true
	}
	assert.Equal(t, map[string]bool{"eve": true, "alice": true, "carol": true}, users)

	job.Execute()
	assert.Len(t, f.transport.Sent(), 4)
}
