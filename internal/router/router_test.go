package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/blues/launchpad/internal/chain"
	"github.com/blues/launchpad/internal/config"
	"github.com/blues/launchpad/internal/handler"
	"github.com/blues/launchpad/internal/logic"
	"github.com/blues/launchpad/internal/model"
	"github.com/blues/launchpad/internal/oracle"
	"github.com/blues/launchpad/internal/store"
	"github.com/blues/launchpad/internal/xcm"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	prices := oracle.NewStaticProvider(map[string]decimal.Decimal{
		"PLMC": decimal.NewFromInt(1),
		"USDT": decimal.NewFromInt(1),
		"USDC": decimal.NewFromInt(1),
		"DOT":  decimal.NewFromInt(5),
	})
	client := oracle.NewClient(prices, map[string]uint8{"PLMC": 10, "USDT": 6, "USDC": 6, "DOT": 10}, 6)
	engine := logic.NewEngine(store.NewMemoryStore(), client, xcm.NewMemoryTransport(), chain.NewLocalClock(1),
		chain.NewKeccakRandomness("router"), config.DefaultEngineConfig(), config.DefaultMigrationConfig())

	ctx := context.Background()
	require.NoError(t, engine.RegisterAssets(ctx, config.DefaultAssets()))
	require.NoError(t, engine.Mint(ctx, "PLMC", "eve", decimal.NewFromInt(1_000_000)))

	status := func() map[string]interface{} { return map[string]interface{}{"ok": true} }
	return Setup(engine, map[string]StatusFunc{"test": status})
}

func do(t *testing.T, r *gin.Engine, method, path, account string, body interface{}) (int, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if account != "" {
		req.Header.Set(handler.HeaderAccount, account)
		req.Header.Set(handler.HeaderDid, "did:"+account)
		req.Header.Set(handler.HeaderInvestorType, string(model.InvestorRetail))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func testMetadata() model.ProjectMetadata {
	return model.ProjectMetadata{
		TokenInformation:        model.TokenInformation{Name: "Contribution Token", Symbol: "CT", Decimals: 10},
		AuctionAllocationSize:   decimal.NewFromInt(100_000),
		CommunityAllocationSize: decimal.NewFromInt(50_000),
		MinimumPrice:            decimal.NewFromInt(1),
		BiddingTicketSizes: model.BiddingTicketSizes{
			Professional:  model.TicketSize{UsdMinimumPerParticipation: decimal.NewNullDecimal(decimal.NewFromInt(10))},
			Institutional: model.TicketSize{UsdMinimumPerParticipation: decimal.NewNullDecimal(decimal.NewFromInt(10))},
		},
		ContributingTicketSizes: model.ContributingTicketSizes{
			Retail: model.TicketSize{UsdMinimumPerParticipation: decimal.NewNullDecimal(decimal.NewFromInt(1))},
		},
		ParticipationCurrencies:   []model.AcceptedFundingAsset{model.FundingAssetUSDT},
		FundingDestinationAccount: "destination",
		OfferingDocumentHash:      "0xabc",
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["block"])
	assert.Contains(t, body["components"], "test")
}

func TestProjectLifecycleOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	code, _ := do(t, r, http.MethodPost, "/api/v1/projects", "", testMetadata())
	assert.Equal(t, http.StatusUnauthorized, code)

	code, resp := do(t, r, http.MethodPost, "/api/v1/projects", "issuer", testMetadata())
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var created handler.ProjectIDResponse
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	base := "/api/v1/projects/" + strconv.FormatUint(uint64(created.ProjectID), 10)

	code, resp = do(t, r, http.MethodPost, base+"/evaluations", "eve", handler.EvaluateRequest{UsdAmount: decimal.NewFromInt(1000)})
	assert.Equal(t, http.StatusConflict, code, resp.Message)

	code, resp = do(t, r, http.MethodPost, base+"/evaluation", "mallory", nil)
	assert.Equal(t, http.StatusForbidden, code, resp.Message)
	code, resp = do(t, r, http.MethodPost, base+"/evaluation", "issuer", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)

	code, resp = do(t, r, http.MethodPost, base+"/evaluations", "eve", handler.EvaluateRequest{UsdAmount: decimal.NewFromInt(1000)})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var ids handler.ParticipationIDResponse
	require.NoError(t, json.Unmarshal(resp.Data, &ids))
	assert.Len(t, ids.IDs, 1)

	code, resp = do(t, r, http.MethodGet, base+"/evaluations?account=eve", "", nil)
	require.Equal(t, http.StatusOK, code)
	var evaluations []model.Evaluation
	require.NoError(t, json.Unmarshal(resp.Data, &evaluations))
	require.Len(t, evaluations, 1)
	assert.True(t, evaluations[0].OriginalPlmcBond.Equal(decimal.NewFromInt(1000)))

	code, resp = do(t, r, http.MethodGet, "/api/v1/balances/PLMC/eve", "", nil)
	require.Equal(t, http.StatusOK, code)
	var balance handler.BalanceResponse
	require.NoError(t, json.Unmarshal(resp.Data, &balance))
	assert.True(t, balance.Amount.Equal(decimal.NewFromInt(999_000)), balance.Amount.String())

	code, _ = do(t, r, http.MethodGet, "/api/v1/projects/999", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, r, http.MethodGet, "/api/v1/projects/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

